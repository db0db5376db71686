package eviction_test

import (
	"errors"
	"testing"

	"github.com/jrife/murre/storage/eviction"
	"github.com/jrife/murre/storage/record"
)

func heap(used, total uint64) eviction.MemorySampler {
	return eviction.MemorySamplerFunc(func() eviction.MemoryStats {
		return eviction.MemoryStats{Used: used * 1024 * 1024, Total: total * 1024 * 1024}
	})
}

func TestPolicyChecker(t *testing.T) {
	testCases := map[string]struct {
		policy  eviction.Policy
		count   int
		heap    eviction.MemorySampler
		reached bool
	}{
		"disabled": {
			policy:  eviction.Policy{},
			count:   1000,
			reached: false,
		},
		"per-partition-at-bound": {
			policy:  eviction.Policy{MaxSize: []eviction.MaxSize{{Kind: eviction.PerPartition, Value: 2}}},
			count:   2,
			reached: false,
		},
		"per-partition-over-bound": {
			policy:  eviction.Policy{MaxSize: []eviction.MaxSize{{Kind: eviction.PerPartition, Value: 2}}},
			count:   3,
			reached: true,
		},
		"per-node-split-across-partitions": {
			policy:  eviction.Policy{PartitionCount: 10, MaxSize: []eviction.MaxSize{{Kind: eviction.PerNode, Value: 100}}},
			count:   11,
			reached: true,
		},
		"used-heap-size": {
			policy:  eviction.Policy{MaxSize: []eviction.MaxSize{{Kind: eviction.UsedHeapSize, Value: 64}}},
			heap:    heap(65, 128),
			reached: true,
		},
		"used-heap-percentage": {
			policy:  eviction.Policy{MaxSize: []eviction.MaxSize{{Kind: eviction.UsedHeapPercentage, Value: 50}}},
			heap:    heap(32, 128),
			reached: false,
		},
		"free-heap-size": {
			policy:  eviction.Policy{MaxSize: []eviction.MaxSize{{Kind: eviction.FreeHeapSize, Value: 16}}},
			heap:    heap(120, 128),
			reached: true,
		},
		"free-heap-percentage": {
			policy:  eviction.Policy{MaxSize: []eviction.MaxSize{{Kind: eviction.FreeHeapPercentage, Value: 10}}},
			heap:    heap(64, 128),
			reached: false,
		},
		"native-memory-unbounded": {
			policy:  eviction.Policy{MaxSize: []eviction.MaxSize{{Kind: eviction.FreeNativeMemorySize, Value: 16}}},
			reached: false,
		},
		"count-or-free-heap": {
			policy: eviction.Policy{Operator: eviction.Or, MaxSize: []eviction.MaxSize{
				{Kind: eviction.PerPartition, Value: 2},
				{Kind: eviction.FreeHeapPercentage, Value: 10},
			}},
			count:   3,
			heap:    heap(10, 128),
			reached: true,
		},
		"count-and-free-heap": {
			policy: eviction.Policy{Operator: eviction.And, MaxSize: []eviction.MaxSize{
				{Kind: eviction.PerPartition, Value: 2},
				{Kind: eviction.FreeHeapPercentage, Value: 10},
			}},
			count:   3,
			heap:    heap(10, 128),
			reached: false,
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			count := testCase.count
			checker, err := testCase.policy.Checker(eviction.Sources{
				Count: func() int { return count },
				Heap:  testCase.heap,
			})

			if err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			if checker.IsReachedMaxSize() != testCase.reached {
				t.Fatalf("IsReachedMaxSize() = %t, want %t", checker.IsReachedMaxSize(), testCase.reached)
			}
		})
	}
}

func TestPolicyCheckerInvalid(t *testing.T) {
	testCases := map[string]eviction.Policy{
		"unknown-kind":             {MaxSize: []eviction.MaxSize{{Kind: "bogus", Value: 1}}},
		"negative":                 {MaxSize: []eviction.MaxSize{{Kind: eviction.PerPartition, Value: -1}}},
		"percentage-over-100":      {MaxSize: []eviction.MaxSize{{Kind: eviction.UsedHeapPercentage, Value: 101}}},
		"per-node-no-partitions":   {MaxSize: []eviction.MaxSize{{Kind: eviction.PerNode, Value: 100}}},
		"two-criteria-no-operator": {MaxSize: []eviction.MaxSize{{Kind: eviction.PerPartition, Value: 1}, {Kind: eviction.PerPartition, Value: 2}}},
	}

	for name, policy := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := policy.Checker(eviction.Sources{Count: func() int { return 0 }, Heap: heap(0, 1)})

			if !errors.Is(err, eviction.ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %#v", err)
			}
		})
	}
}

func TestSelectors(t *testing.T) {
	candidates := []*record.Record{
		{Key: []byte("a"), Sequence: 5, Hits: 1},
		{Key: []byte("b"), Sequence: 2, Hits: 9},
		{Key: []byte("c"), Sequence: 7, Hits: 1},
	}

	if victim := eviction.LRU.Select(candidates); string(victim.Key) != "b" {
		t.Fatalf("LRU selected %s, want b", victim.Key)
	}

	if victim := eviction.LFU.Select(candidates); string(victim.Key) != "a" {
		t.Fatalf("LFU selected %s, want a", victim.Key)
	}

	victim := eviction.Random.Select(candidates)
	found := false

	for _, candidate := range candidates {
		if candidate == victim {
			found = true
		}
	}

	if !found {
		t.Fatalf("Random selected a record that is not a candidate")
	}

	if _, err := eviction.ParseSelector("fifo"); !errors.Is(err, eviction.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %#v", err)
	}
}

func TestMemoryStats(t *testing.T) {
	stats := eviction.MemoryStats{Used: 30, Total: 120}

	if stats.Free() != 90 || stats.FreePercentage() != 75 || stats.UsedPercentage() != 25 {
		t.Fatalf("unexpected stats: free %d, free%% %f, used%% %f", stats.Free(), stats.FreePercentage(), stats.UsedPercentage())
	}

	if (eviction.MemoryStats{Used: 10}).FreePercentage() != 100 {
		t.Fatalf("unbounded memory must be reported as free")
	}

	sampler := eviction.NewRuntimeSampler(0)

	if sampler.Sample().Total == 0 {
		t.Fatalf("expected the runtime sampler to report a heap size")
	}
}
