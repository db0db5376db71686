package eviction

import (
	"runtime"
	"sync"
	"time"
)

var _ MaxSizeChecker = (*EntryCountChecker)(nil)

// EntryCountChecker is reached when the entry count
// exceeds Max
type EntryCountChecker struct {
	Count func() int
	Max   int
}

// IsReachedMaxSize implements MaxSizeChecker.IsReachedMaxSize
func (checker *EntryCountChecker) IsReachedMaxSize() bool {
	return checker.Count() > checker.Max
}

// MemoryStats is a sample of heap usage in bytes
type MemoryStats struct {
	// Used is the number of bytes in use
	Used uint64
	// Total is the number of bytes obtained from the OS
	// or the configured limit for native memory. A Total
	// of zero means the memory is unbounded.
	Total uint64
}

// Free returns Total - Used
func (stats MemoryStats) Free() uint64 {
	if stats.Used >= stats.Total {
		return 0
	}

	return stats.Total - stats.Used
}

// FreePercentage returns the free memory as a percentage of Total.
// Unbounded memory is reported as 100% free.
func (stats MemoryStats) FreePercentage() float64 {
	if stats.Total == 0 {
		return 100
	}

	return float64(stats.Free()) / float64(stats.Total) * 100
}

// UsedPercentage returns the used memory as a percentage of Total
func (stats MemoryStats) UsedPercentage() float64 {
	return 100 - stats.FreePercentage()
}

// MemorySampler returns the current memory usage
type MemorySampler interface {
	Sample() MemoryStats
}

// MemorySamplerFunc adapts a function to MemorySampler
type MemorySamplerFunc func() MemoryStats

// Sample implements MemorySampler.Sample
func (f MemorySamplerFunc) Sample() MemoryStats {
	return f()
}

var _ MemorySampler = (*RuntimeSampler)(nil)

// RuntimeSampler samples the Go heap. runtime.ReadMemStats stops
// the world, so samples are cached for Interval. It is safe for
// concurrent use by every partition of a node.
type RuntimeSampler struct {
	Interval time.Duration

	mu      sync.Mutex
	last    MemoryStats
	sampled time.Time
}

// NewRuntimeSampler creates a sampler that refreshes at most
// once per interval
func NewRuntimeSampler(interval time.Duration) *RuntimeSampler {
	return &RuntimeSampler{Interval: interval}
}

// Sample implements MemorySampler.Sample
func (sampler *RuntimeSampler) Sample() MemoryStats {
	sampler.mu.Lock()
	defer sampler.mu.Unlock()

	if !sampler.sampled.IsZero() && time.Since(sampler.sampled) < sampler.Interval {
		return sampler.last
	}

	var memStats runtime.MemStats

	runtime.ReadMemStats(&memStats)

	sampler.last = MemoryStats{Used: memStats.HeapInuse, Total: memStats.HeapSys}
	sampler.sampled = time.Now()

	return sampler.last
}

// Unbounded reports zero usage of unbounded memory. It is the
// native memory sampler for nodes that don't use off-heap storage.
var Unbounded MemorySampler = MemorySamplerFunc(func() MemoryStats { return MemoryStats{} })

// UsedSizeChecker is reached when used memory exceeds MaxBytes
type UsedSizeChecker struct {
	Sampler  MemorySampler
	MaxBytes uint64
}

// IsReachedMaxSize implements MaxSizeChecker.IsReachedMaxSize
func (checker *UsedSizeChecker) IsReachedMaxSize() bool {
	return checker.Sampler.Sample().Used > checker.MaxBytes
}

// UsedPercentageChecker is reached when used memory exceeds
// MaxPercentage of the total
type UsedPercentageChecker struct {
	Sampler       MemorySampler
	MaxPercentage float64
}

// IsReachedMaxSize implements MaxSizeChecker.IsReachedMaxSize
func (checker *UsedPercentageChecker) IsReachedMaxSize() bool {
	return checker.Sampler.Sample().UsedPercentage() > checker.MaxPercentage
}

// FreeSizeChecker is reached when free memory drops
// below MinBytes
type FreeSizeChecker struct {
	Sampler  MemorySampler
	MinBytes uint64
}

// IsReachedMaxSize implements MaxSizeChecker.IsReachedMaxSize
func (checker *FreeSizeChecker) IsReachedMaxSize() bool {
	stats := checker.Sampler.Sample()

	if stats.Total == 0 {
		return false
	}

	return stats.Free() < checker.MinBytes
}

// FreePercentageChecker is reached when free memory drops
// below MinPercentage of the total
type FreePercentageChecker struct {
	Sampler       MemorySampler
	MinPercentage float64
}

// IsReachedMaxSize implements MaxSizeChecker.IsReachedMaxSize
func (checker *FreePercentageChecker) IsReachedMaxSize() bool {
	return checker.Sampler.Sample().FreePercentage() < checker.MinPercentage
}
