package stream_test

import (
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/emirpasic/gods/lists/arraylist"
	"github.com/google/go-cmp/cmp"
	"github.com/jrife/murre/utils/stream"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func ints(values []int) stream.Stream[int] {
	list := arraylist.New()

	for _, v := range values {
		list.Add(v)
	}

	iter := list.Iterator()

	return stream.FromIterator[int](&iter)
}

func Filter(ints []int, filter func(a int) bool) []int {
	filteredInts := []int{}

	for _, i := range ints {
		if filter(i) {
			filteredInts = append(filteredInts, i)
		}
	}

	return filteredInts
}

func Sort(ints []int) []int {
	sorted := append([]int{}, ints...)
	sort.Ints(sorted)

	return sorted
}

func Limit(ints []int, limit int) []int {
	if limit <= 0 || limit > len(ints) {
		return ints
	}

	return ints[:limit]
}

func Reverse(ints []int) []int {
	reversed := []int{}

	for i := len(ints) - 1; i >= 0; i-- {
		reversed = append(reversed, ints[i])
	}

	return reversed
}

func compare(a, b int) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}

	return 0
}

func negate(compare func(a, b int) int) func(a, b int) int {
	return func(a, b int) int {
		return -1 * compare(a, b)
	}
}

func TestStream(t *testing.T) {
	even := func(a int) bool { return a%2 == 0 }
	limit := 10
	input := rand.Perm(1000)

	testCases := map[string]struct {
		processors []stream.Processor[int]
		expected   []int
	}{
		"filter-sort-limit": {
			processors: []stream.Processor[int]{stream.Filter(even), stream.Sort(compare, -1), stream.Limit[int](limit)},
			expected:   Limit(Sort(Filter(input, even)), limit),
		},
		"filter-sort": {
			processors: []stream.Processor[int]{stream.Filter(even), stream.Sort(compare, -1)},
			expected:   Sort(Filter(input, even)),
		},
		"filter-reverse-sort": {
			processors: []stream.Processor[int]{stream.Filter(even), stream.Sort(negate(compare), -1)},
			expected:   Reverse(Sort(Filter(input, even))),
		},
		"sort-window": {
			processors: []stream.Processor[int]{stream.Sort(negate(compare), limit)},
			expected:   Limit(Reverse(Sort(input)), limit),
		},
		"no-limit": {
			processors: []stream.Processor[int]{stream.Limit[int](0)},
			expected:   input,
		},
	}

	for name, testCase := range testCases {
		testCase := testCase

		t.Run(name, func(t *testing.T) {
			output, err := stream.Collect(stream.Pipeline(ints(input), testCase.processors...))

			if err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			diff := cmp.Diff(testCase.expected, output)

			if diff != "" {
				t.Fatalf(diff)
			}
		})
	}
}

func TestFromIteratorUnexpectedType(t *testing.T) {
	list := arraylist.New(1, "two", 3)
	iter := list.Iterator()

	output, err := stream.Collect(stream.FromIterator[int](&iter))

	if !errors.Is(err, stream.ErrUnexpectedType) {
		t.Fatalf("expected err to be ErrUnexpectedType, got %#v", err)
	}

	diff := cmp.Diff([]int{1}, output)

	if diff != "" {
		t.Fatalf(diff)
	}
}

func TestLog(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	_, err := stream.Collect(stream.Pipeline(ints([]int{1, 2, 3}), stream.Log(logger, "value", func(v int) zap.Field { return zap.Int("v", v) })))

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if logs.FilterMessage("value").Len() != 3 {
		t.Fatalf("expected 3 log lines, got %d", logs.Len())
	}

	if stream.Log(zap.NewNop(), "value", func(v int) zap.Field { return zap.Int("v", v) }) != nil {
		t.Fatalf("expected a nil processor when debug logging is disabled")
	}
}
