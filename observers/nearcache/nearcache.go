// Package nearcache invalidates the near caches of a map's
// clients when entries held by a primary replica change.
package nearcache

import (
	"sync"

	"github.com/jrife/murre/storage/mutation"
	"github.com/jrife/murre/storage/record"
)

// Invalidation tells a near cache to drop a key. A nil
// Key invalidates the whole map.
type Invalidation struct {
	Map    string
	Key    []byte
	Source string
}

// Listener receives invalidations. Listeners are called
// from partition goroutines and must not block.
type Listener interface {
	Invalidate(invalidation Invalidation)
}

// ListenerFunc adapts a function to Listener
type ListenerFunc func(invalidation Invalidation)

// Invalidate implements Listener.Invalidate
func (f ListenerFunc) Invalidate(invalidation Invalidation) {
	f(invalidation)
}

// Broadcaster delivers invalidations to every registered
// listener. It is shared by every partition of a map.
type Broadcaster struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener
}

// NewBroadcaster creates a broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{listeners: map[int]Listener{}}
}

// Register adds a listener and returns a function removing it
func (broadcaster *Broadcaster) Register(listener Listener) func() {
	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()

	id := broadcaster.nextID
	broadcaster.nextID++
	broadcaster.listeners[id] = listener

	return func() {
		broadcaster.mu.Lock()
		defer broadcaster.mu.Unlock()

		delete(broadcaster.listeners, id)
	}
}

func (broadcaster *Broadcaster) publish(invalidation Invalidation) {
	broadcaster.mu.RLock()
	defer broadcaster.mu.RUnlock()

	for _, listener := range broadcaster.listeners {
		listener.Invalidate(invalidation)
	}
}

var _ mutation.Observer = (*Invalidator)(nil)

// Invalidator is the near cache observer of one record store.
// Writes flagged as backup writes and replication puts don't
// invalidate since clients only cache primary data.
type Invalidator struct {
	mapName     string
	source      string
	broadcaster *Broadcaster
}

// NewInvalidator creates an invalidator publishing to broadcaster.
// source names this member in every invalidation.
func NewInvalidator(mapName string, source string, broadcaster *Broadcaster) *Invalidator {
	return &Invalidator{mapName: mapName, source: source, broadcaster: broadcaster}
}

func (invalidator *Invalidator) invalidate(key []byte) error {
	invalidator.broadcaster.publish(Invalidation{Map: invalidator.mapName, Key: key, Source: invalidator.source})

	return nil
}

// OnClear implements mutation.Observer.OnClear
func (invalidator *Invalidator) OnClear() error {
	return invalidator.invalidate(nil)
}

// OnPutRecord implements mutation.Observer.OnPutRecord
func (invalidator *Invalidator) OnPutRecord(key []byte, rec *record.Record, oldValue *record.Value, backup bool) error {
	if backup {
		return nil
	}

	return invalidator.invalidate(key)
}

// OnReplicationPutRecord implements mutation.Observer.OnReplicationPutRecord
func (invalidator *Invalidator) OnReplicationPutRecord(key []byte, rec *record.Record, populateIndex bool) error {
	return nil
}

// OnUpdateRecord implements mutation.Observer.OnUpdateRecord
func (invalidator *Invalidator) OnUpdateRecord(key []byte, rec *record.Record, oldValue, newValue *record.Value, backup bool) error {
	if backup {
		return nil
	}

	return invalidator.invalidate(key)
}

// OnRemoveRecord implements mutation.Observer.OnRemoveRecord
func (invalidator *Invalidator) OnRemoveRecord(key []byte, rec *record.Record) error {
	return invalidator.invalidate(key)
}

// OnEvictRecord implements mutation.Observer.OnEvictRecord
func (invalidator *Invalidator) OnEvictRecord(key []byte, rec *record.Record) error {
	return invalidator.invalidate(key)
}

// OnLoadRecord implements mutation.Observer.OnLoadRecord
func (invalidator *Invalidator) OnLoadRecord(key []byte, rec *record.Record, backup bool) error {
	if backup {
		return nil
	}

	return invalidator.invalidate(key)
}

// OnDestroy implements mutation.Observer.OnDestroy
func (invalidator *Invalidator) OnDestroy(isDuringShutdown bool, internal bool) error {
	return invalidator.invalidate(nil)
}

// OnReset implements mutation.Observer.OnReset
func (invalidator *Invalidator) OnReset() error {
	return invalidator.invalidate(nil)
}
