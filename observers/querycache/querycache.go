// Package querycache maintains the result set of a continuous
// query over one record store and reports changes to it.
package querycache

import (
	"sort"

	"github.com/jrife/murre/storage/mutation"
	"github.com/jrife/murre/storage/record"
)

// EventType is the kind of change to the result set
type EventType int

const (
	// Added means a key entered the result set
	Added EventType = iota
	// Updated means a key in the result set changed value
	Updated
	// Removed means a key left the result set
	Removed
)

// Event describes one change to the result set. Value is
// nil for Removed events.
type Event struct {
	Type  EventType
	Key   []byte
	Value interface{}
}

// Predicate selects the entries in the result set
type Predicate func(key []byte, value interface{}) bool

var _ mutation.Observer = (*Cache)(nil)

// Cache is a continuous query over one record store. Every
// write is evaluated against the predicate, including backup
// and replicated writes.
type Cache struct {
	predicate  Predicate
	serializer record.Serializer
	listener   func(event Event)
	members    map[string]interface{}
}

// New creates a query cache. listener is called synchronously
// for every change and may be nil.
func New(predicate Predicate, serializer record.Serializer, listener func(event Event)) *Cache {
	if serializer == nil {
		serializer = record.RawSerializer{}
	}

	if listener == nil {
		listener = func(event Event) {}
	}

	return &Cache{predicate: predicate, serializer: serializer, listener: listener, members: map[string]interface{}{}}
}

// Keys returns the keys in the result set in order
func (cache *Cache) Keys() [][]byte {
	keys := make([]string, 0, len(cache.members))

	for key := range cache.members {
		keys = append(keys, key)
	}

	sort.Strings(keys)
	result := make([][]byte, len(keys))

	for i, key := range keys {
		result[i] = []byte(key)
	}

	return result
}

// Get returns the cached value of a key in the result set
func (cache *Cache) Get(key []byte) (interface{}, bool) {
	value, ok := cache.members[string(key)]

	return value, ok
}

func (cache *Cache) evaluate(key []byte, rec *record.Record) error {
	value, err := rec.Value.Object(cache.serializer)

	if err != nil {
		return err
	}

	_, member := cache.members[string(key)]

	if !cache.predicate(key, value) {
		return cache.remove(key)
	}

	cache.members[string(key)] = value

	if member {
		cache.listener(Event{Type: Updated, Key: key, Value: value})
	} else {
		cache.listener(Event{Type: Added, Key: key, Value: value})
	}

	return nil
}

func (cache *Cache) remove(key []byte) error {
	if _, ok := cache.members[string(key)]; !ok {
		return nil
	}

	delete(cache.members, string(key))
	cache.listener(Event{Type: Removed, Key: key})

	return nil
}

func (cache *Cache) clear() error {
	for _, key := range cache.Keys() {
		cache.remove(key)
	}

	return nil
}

// OnClear implements mutation.Observer.OnClear
func (cache *Cache) OnClear() error {
	return cache.clear()
}

// OnPutRecord implements mutation.Observer.OnPutRecord
func (cache *Cache) OnPutRecord(key []byte, rec *record.Record, oldValue *record.Value, backup bool) error {
	return cache.evaluate(key, rec)
}

// OnReplicationPutRecord implements mutation.Observer.OnReplicationPutRecord
func (cache *Cache) OnReplicationPutRecord(key []byte, rec *record.Record, populateIndex bool) error {
	return cache.evaluate(key, rec)
}

// OnUpdateRecord implements mutation.Observer.OnUpdateRecord
func (cache *Cache) OnUpdateRecord(key []byte, rec *record.Record, oldValue, newValue *record.Value, backup bool) error {
	return cache.evaluate(key, rec)
}

// OnRemoveRecord implements mutation.Observer.OnRemoveRecord
func (cache *Cache) OnRemoveRecord(key []byte, rec *record.Record) error {
	return cache.remove(key)
}

// OnEvictRecord implements mutation.Observer.OnEvictRecord
func (cache *Cache) OnEvictRecord(key []byte, rec *record.Record) error {
	return cache.remove(key)
}

// OnLoadRecord implements mutation.Observer.OnLoadRecord
func (cache *Cache) OnLoadRecord(key []byte, rec *record.Record, backup bool) error {
	return cache.evaluate(key, rec)
}

// OnDestroy implements mutation.Observer.OnDestroy
func (cache *Cache) OnDestroy(isDuringShutdown bool, internal bool) error {
	return cache.clear()
}

// OnReset implements mutation.Observer.OnReset
func (cache *Cache) OnReset() error {
	return cache.clear()
}
