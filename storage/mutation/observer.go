// Package mutation defines the contract through which subsystems observe
// changes to a record store and the composite that fans one mutation
// event out to every registered observer.
//
// Observers are always invoked from the goroutine that owns the record
// store's partition, one event at a time, in registration order. State an
// observer keeps per partition needs no locking. State shared across
// partitions (global statistics, for example) must be synchronized by the
// observer itself.
package mutation

import (
	"github.com/jrife/murre/storage/record"
)

// Observer receives one callback per mutation kind.
// A callback that fails returns an error. Panics are
// recovered by the composite and reported as *PanicError.
type Observer interface {
	// OnClear is called after all entries were removed
	// in one bulk operation
	OnClear() error
	// OnPutRecord is called after a new record was inserted or an
	// existing one was fully replaced. oldValue is nil for inserts.
	// backup is true when the store holds a backup replica.
	OnPutRecord(key []byte, rec *record.Record, oldValue *record.Value, backup bool) error
	// OnReplicationPutRecord is called after a record arrived through
	// partition replication or migration rather than a client write
	OnReplicationPutRecord(key []byte, rec *record.Record, populateIndex bool) error
	// OnUpdateRecord is called after an existing record's
	// value was changed in place
	OnUpdateRecord(key []byte, rec *record.Record, oldValue, newValue *record.Value, backup bool) error
	// OnRemoveRecord is called after a record was deleted
	// by an explicit remove
	OnRemoveRecord(key []byte, rec *record.Record) error
	// OnEvictRecord is called after a record was deleted
	// by the eviction subsystem (size or TTL)
	OnEvictRecord(key []byte, rec *record.Record) error
	// OnLoadRecord is called after a record was populated
	// from the backing store
	OnLoadRecord(key []byte, rec *record.Record, backup bool) error
	// OnDestroy is called when the record store is torn down.
	// No other callback follows it.
	OnDestroy(isDuringShutdown bool, internal bool) error
	// OnReset is called when in-memory state was discarded
	// without destroying the store
	OnReset() error
}

var _ Observer = Nop{}

// Nop implements every callback as a no-op. Embed
// it to implement only the callbacks you need.
type Nop struct{}

// OnClear implements Observer.OnClear
func (Nop) OnClear() error { return nil }

// OnPutRecord implements Observer.OnPutRecord
func (Nop) OnPutRecord(key []byte, rec *record.Record, oldValue *record.Value, backup bool) error {
	return nil
}

// OnReplicationPutRecord implements Observer.OnReplicationPutRecord
func (Nop) OnReplicationPutRecord(key []byte, rec *record.Record, populateIndex bool) error {
	return nil
}

// OnUpdateRecord implements Observer.OnUpdateRecord
func (Nop) OnUpdateRecord(key []byte, rec *record.Record, oldValue, newValue *record.Value, backup bool) error {
	return nil
}

// OnRemoveRecord implements Observer.OnRemoveRecord
func (Nop) OnRemoveRecord(key []byte, rec *record.Record) error { return nil }

// OnEvictRecord implements Observer.OnEvictRecord
func (Nop) OnEvictRecord(key []byte, rec *record.Record) error { return nil }

// OnLoadRecord implements Observer.OnLoadRecord
func (Nop) OnLoadRecord(key []byte, rec *record.Record, backup bool) error { return nil }

// OnDestroy implements Observer.OnDestroy
func (Nop) OnDestroy(isDuringShutdown bool, internal bool) error { return nil }

// OnReset implements Observer.OnReset
func (Nop) OnReset() error { return nil }
