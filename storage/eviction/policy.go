package eviction

import (
	"fmt"
	"strings"
)

// MaxSizeKind names one max-size criterion
type MaxSizeKind string

const (
	// PerPartition bounds the entry count of one partition
	PerPartition MaxSizeKind = "per_partition"
	// PerNode bounds the entry count of the map on this node.
	// The bound is divided evenly across the partitions.
	PerNode MaxSizeKind = "per_node"
	// UsedHeapSize bounds used heap in megabytes
	UsedHeapSize MaxSizeKind = "used_heap_size"
	// UsedHeapPercentage bounds used heap as a percentage of the heap
	UsedHeapPercentage MaxSizeKind = "used_heap_percentage"
	// FreeHeapSize sets a floor on free heap in megabytes
	FreeHeapSize MaxSizeKind = "free_heap_size"
	// FreeHeapPercentage sets a floor on free heap as a percentage
	FreeHeapPercentage MaxSizeKind = "free_heap_percentage"
	// UsedNativeMemorySize bounds used native memory in megabytes
	UsedNativeMemorySize MaxSizeKind = "used_native_memory_size"
	// FreeNativeMemorySize sets a floor on free native memory in megabytes
	FreeNativeMemorySize MaxSizeKind = "free_native_memory_size"
)

const megabyte = 1024 * 1024

// MaxSize is one configured criterion
type MaxSize struct {
	Kind  MaxSizeKind
	Value int
}

// Policy is the eviction configuration of one map
type Policy struct {
	// Operator combines the criteria. It is only required
	// when there is more than one criterion.
	Operator Operator
	MaxSize  []MaxSize
	// PartitionCount is used to split PerNode bounds
	PartitionCount int
}

// Enabled returns true if at least one criterion is configured
func (policy Policy) Enabled() bool {
	return len(policy.MaxSize) > 0
}

// Sources supplies the state the checkers sample
type Sources struct {
	// Count returns the number of entries in the partition
	Count  func() int
	Heap   MemorySampler
	Native MemorySampler
}

// Checker translates the policy into a checker for one partition.
// It returns Never if no criterion is configured.
func (policy Policy) Checker(sources Sources) (MaxSizeChecker, error) {
	if !policy.Enabled() {
		return Never, nil
	}

	op := policy.Operator

	if op == OperatorUnset && len(policy.MaxSize) == 1 {
		op = Or
	}

	checkers := make([]MaxSizeChecker, 0, len(policy.MaxSize))

	for _, maxSize := range policy.MaxSize {
		checker, err := policy.checker(maxSize, sources)

		if err != nil {
			return nil, err
		}

		checkers = append(checkers, checker)
	}

	return NewComposite(op, checkers...)
}

func (policy Policy) checker(maxSize MaxSize, sources Sources) (MaxSizeChecker, error) {
	if maxSize.Value < 0 {
		return nil, fmt.Errorf("%s: value must be >= 0: %w", maxSize.Kind, ErrInvalidArgument)
	}

	switch maxSize.Kind {
	case PerPartition, PerNode:
		if sources.Count == nil {
			return nil, fmt.Errorf("%s: entry count source is required: %w", maxSize.Kind, ErrInvalidArgument)
		}

		max := maxSize.Value

		if maxSize.Kind == PerNode {
			if policy.PartitionCount <= 0 {
				return nil, fmt.Errorf("%s: partition count must be > 0: %w", maxSize.Kind, ErrInvalidArgument)
			}

			max = maxSize.Value / policy.PartitionCount
		}

		return &EntryCountChecker{Count: sources.Count, Max: max}, nil
	case UsedHeapSize, UsedHeapPercentage, FreeHeapSize, FreeHeapPercentage:
		if sources.Heap == nil {
			return nil, fmt.Errorf("%s: heap sampler is required: %w", maxSize.Kind, ErrInvalidArgument)
		}

		return memoryChecker(maxSize, sources.Heap)
	case UsedNativeMemorySize, FreeNativeMemorySize:
		native := sources.Native

		if native == nil {
			native = Unbounded
		}

		return memoryChecker(maxSize, native)
	}

	return nil, fmt.Errorf("unknown max size kind %q: %w", maxSize.Kind, ErrInvalidArgument)
}

func memoryChecker(maxSize MaxSize, sampler MemorySampler) (MaxSizeChecker, error) {
	switch maxSize.Kind {
	case UsedHeapSize, UsedNativeMemorySize:
		return &UsedSizeChecker{Sampler: sampler, MaxBytes: uint64(maxSize.Value) * megabyte}, nil
	case FreeHeapSize, FreeNativeMemorySize:
		return &FreeSizeChecker{Sampler: sampler, MinBytes: uint64(maxSize.Value) * megabyte}, nil
	}

	if maxSize.Value > 100 {
		return nil, fmt.Errorf("%s: percentage must be <= 100: %w", maxSize.Kind, ErrInvalidArgument)
	}

	if maxSize.Kind == UsedHeapPercentage {
		return &UsedPercentageChecker{Sampler: sampler, MaxPercentage: float64(maxSize.Value)}, nil
	}

	return &FreePercentageChecker{Sampler: sampler, MinPercentage: float64(maxSize.Value)}, nil
}

// ParseMaxSizeKind parses a max size kind name, ignoring case
func ParseMaxSizeKind(s string) (MaxSizeKind, error) {
	kind := MaxSizeKind(strings.ToLower(s))

	switch kind {
	case PerPartition, PerNode, UsedHeapSize, UsedHeapPercentage, FreeHeapSize, FreeHeapPercentage, UsedNativeMemorySize, FreeNativeMemorySize:
		return kind, nil
	}

	return "", fmt.Errorf("unknown max size kind %q: %w", s, ErrInvalidArgument)
}
