// Package recordstore implements the per-partition record
// store of a map. A record store owns the key to record
// mapping of one partition, notifies its observers of every
// change and enforces the map's eviction policy.
//
// A record store is not safe for concurrent use. Every call
// must be made from the goroutine that owns its partition.
package recordstore

import (
	"context"
	"time"

	"github.com/jrife/murre/storage/mutation"
	"github.com/jrife/murre/storage/record"
	"github.com/jrife/murre/storage/snapshot"
)

// UseDefaultTTL can be passed as the ttl of a write
// to apply the store's default TTL
const UseDefaultTTL time.Duration = -1

// Dispatcher runs a task on the goroutine that owns
// the store's partition
type Dispatcher func(task func())

// RecordStore is the record store of one partition of one map.
//
// Mutating calls apply their change to the store first and then
// notify every observer. If an observer fails the change is kept
// and the first observer error is returned once every observer
// was notified.
type RecordStore interface {
	snapshot.Source
	snapshot.Acceptor
	// Name returns the map name
	Name() string
	// PartitionID returns the partition this store belongs to
	PartitionID() int
	// AddObserver appends an observer. Observers can't be removed.
	AddObserver(observer mutation.Observer) error
	// Put inserts or updates the value for key and returns
	// the previous value, if any. Admitting a new entry may
	// evict other entries.
	Put(key []byte, value *record.Value, ttl time.Duration, backup bool) (*record.Value, error)
	// Set is Put without the previous value
	Set(key []byte, value *record.Value, ttl time.Duration, backup bool) error
	// PutIfAbsent writes the value only if key is absent. It
	// returns the existing value if there was one.
	PutIfAbsent(key []byte, value *record.Value, ttl time.Duration, backup bool) (*record.Value, error)
	// Replace writes the value only if key is present. It returns
	// the replaced value or nil if nothing was written.
	Replace(key []byte, value *record.Value, ttl time.Duration, backup bool) (*record.Value, error)
	// Remove deletes key and returns its value. Removing an
	// absent key does nothing.
	Remove(key []byte) (*record.Value, error)
	// Delete is Remove without the previous value
	Delete(key []byte) error
	// Evict evicts key. It returns false if key was absent.
	Evict(key []byte) (bool, error)
	// EvictIfNeeded evicts entries while the store's max size
	// checker reports that the store is full. excluded is never
	// evicted. It returns the number of evicted entries.
	EvictIfNeeded(excluded []byte) (int, error)
	// EvictExpired evicts up to limit expired entries. A limit
	// <= 0 evicts every expired entry.
	EvictExpired(now time.Time, limit int) (int, error)
	// Get returns the deserialized value of key
	Get(key []byte) (interface{}, bool, error)
	// GetRecord returns the record for key
	GetRecord(key []byte) (*record.Record, error)
	// PutFromLoad stores a value read from the backing store
	PutFromLoad(key []byte, value *record.Value, backup bool) error
	// PutReplicated stores a record received from the partition
	// owner or during migration
	PutReplicated(rec *record.Record, populateIndex bool) error
	// IsLoaded returns true once the initial load completed.
	// A store with no loader is always loaded.
	IsLoaded() bool
	// LoadError returns the error the initial load failed
	// with, if any
	LoadError() error
	// MaybeDoInitialLoad starts the initial load unless it
	// was already started
	MaybeDoInitialLoad(ctx context.Context) error
	// TriggerLoadIfNeeded starts the initial load unless it was
	// already started. It returns whether the store was already
	// loaded before the call.
	TriggerLoadIfNeeded(ctx context.Context) (bool, error)
	// Clear removes every entry. Observers receive a single
	// OnClear. It returns the number of removed entries.
	Clear() (int, error)
	// Reset removes every entry and forgets the load state
	Reset() error
	// Destroy removes every entry. Every later call fails
	// with ErrDestroyed.
	Destroy(isDuringShutdown bool, internal bool) error
	// Iterator iterates over the records present when it was created
	Iterator() (Iterator, error)
	// Values iterates over the deserialized values present
	// when it was created
	Values() (ValueIterator, error)
	// Size returns the number of entries
	Size() int
	// IsEmpty returns true if the store has no entries
	IsEmpty() bool
}

// Iterator iterates over records. Next returns
// ErrNoMoreEntries once it is exhausted.
type Iterator interface {
	Next() (*record.Record, error)
}

// ValueIterator iterates over deserialized values. Next
// returns ErrNoMoreEntries once it is exhausted.
type ValueIterator interface {
	Next() (key []byte, value interface{}, err error)
}
