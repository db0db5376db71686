package eviction

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/jrife/murre/storage/record"
)

// Selector picks the record to evict from a sample of
// candidates. Candidates are never empty. Selectors are
// invoked from the partition goroutine that owns the records.
type Selector interface {
	Select(candidates []*record.Record) *record.Record
}

// SelectorFunc adapts a function to Selector
type SelectorFunc func(candidates []*record.Record) *record.Record

// Select implements Selector.Select
func (f SelectorFunc) Select(candidates []*record.Record) *record.Record {
	return f(candidates)
}

// LRU selects the least recently accessed candidate
var LRU Selector = SelectorFunc(func(candidates []*record.Record) *record.Record {
	victim := candidates[0]

	for _, candidate := range candidates[1:] {
		if candidate.Sequence < victim.Sequence {
			victim = candidate
		}
	}

	return victim
})

// LFU selects the least frequently accessed candidate.
// Ties go to the least recently accessed one.
var LFU Selector = SelectorFunc(func(candidates []*record.Record) *record.Record {
	victim := candidates[0]

	for _, candidate := range candidates[1:] {
		if candidate.Hits < victim.Hits || candidate.Hits == victim.Hits && candidate.Sequence < victim.Sequence {
			victim = candidate
		}
	}

	return victim
})

// Random selects any candidate
var Random Selector = SelectorFunc(func(candidates []*record.Record) *record.Record {
	return candidates[rand.Intn(len(candidates))]
})

// ParseSelector returns the selector for "lru", "lfu" or "random".
// An empty name selects LRU.
func ParseSelector(name string) (Selector, error) {
	switch strings.ToLower(name) {
	case "", "lru":
		return LRU, nil
	case "lfu":
		return LFU, nil
	case "random":
		return Random, nil
	}

	return nil, fmt.Errorf("unknown eviction policy %q: %w", name, ErrInvalidArgument)
}
