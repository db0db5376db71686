// Package index maintains a secondary index over an attribute
// of the values in one record store.
package index

import (
	"fmt"
	"sort"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/jrife/murre/storage/mutation"
	"github.com/jrife/murre/storage/record"
)

// Extractor returns the indexed attribute of a value. Values
// without the attribute return false and are not indexed.
type Extractor func(value interface{}) (string, bool)

// FieldExtractor extracts a top level field of a JSON object
func FieldExtractor(field string) Extractor {
	return func(value interface{}) (string, bool) {
		object, ok := value.(map[string]interface{})

		if !ok {
			return "", false
		}

		attr, ok := object[field]

		if !ok || attr == nil {
			return "", false
		}

		return fmt.Sprint(attr), true
	}
}

var _ mutation.Observer = (*Indexer)(nil)

// Indexer is the index of one record store. Writes to a
// backup replica are only indexed when they arrive through
// replication with populateIndex set.
type Indexer struct {
	extractor  Extractor
	serializer record.Serializer
	// attr -> set of keys
	index *treemap.Map
	// key -> attr
	attrs map[string]string
}

// New creates an indexer
func New(extractor Extractor, serializer record.Serializer) *Indexer {
	if serializer == nil {
		serializer = record.RawSerializer{}
	}

	return &Indexer{
		extractor:  extractor,
		serializer: serializer,
		index:      treemap.NewWith(utils.StringComparator),
		attrs:      map[string]string{},
	}
}

// Keys returns the keys whose attribute equals attr
func (indexer *Indexer) Keys(attr string) [][]byte {
	keys, ok := indexer.index.Get(attr)

	if !ok {
		return [][]byte{}
	}

	return sortedKeys(keys.(map[string]struct{}))
}

// Range returns the keys whose attribute is in [from, to),
// ordered by attribute
func (indexer *Indexer) Range(from, to string) [][]byte {
	result := [][]byte{}
	iter := indexer.index.Iterator()

	for iter.Next() {
		attr := iter.Key().(string)

		if attr < from {
			continue
		}

		if attr >= to {
			break
		}

		result = append(result, sortedKeys(iter.Value().(map[string]struct{}))...)
	}

	return result
}

// Len returns the number of indexed keys
func (indexer *Indexer) Len() int {
	return len(indexer.attrs)
}

func (indexer *Indexer) add(key []byte, rec *record.Record) error {
	value, err := rec.Value.Object(indexer.serializer)

	if err != nil {
		return fmt.Errorf("could not index key %q: %w", key, err)
	}

	indexer.remove(key)

	attr, ok := indexer.extractor(value)

	if !ok {
		return nil
	}

	keys, found := indexer.index.Get(attr)

	if !found {
		keys = map[string]struct{}{}
		indexer.index.Put(attr, keys)
	}

	keys.(map[string]struct{})[string(key)] = struct{}{}
	indexer.attrs[string(key)] = attr

	return nil
}

func (indexer *Indexer) remove(key []byte) {
	attr, ok := indexer.attrs[string(key)]

	if !ok {
		return
	}

	delete(indexer.attrs, string(key))
	keys, _ := indexer.index.Get(attr)
	delete(keys.(map[string]struct{}), string(key))

	if len(keys.(map[string]struct{})) == 0 {
		indexer.index.Remove(attr)
	}
}

func (indexer *Indexer) clear() error {
	indexer.index.Clear()
	indexer.attrs = map[string]string{}

	return nil
}

// OnClear implements mutation.Observer.OnClear
func (indexer *Indexer) OnClear() error {
	return indexer.clear()
}

// OnPutRecord implements mutation.Observer.OnPutRecord
func (indexer *Indexer) OnPutRecord(key []byte, rec *record.Record, oldValue *record.Value, backup bool) error {
	if backup {
		return nil
	}

	return indexer.add(key, rec)
}

// OnReplicationPutRecord implements mutation.Observer.OnReplicationPutRecord
func (indexer *Indexer) OnReplicationPutRecord(key []byte, rec *record.Record, populateIndex bool) error {
	if !populateIndex {
		return nil
	}

	return indexer.add(key, rec)
}

// OnUpdateRecord implements mutation.Observer.OnUpdateRecord
func (indexer *Indexer) OnUpdateRecord(key []byte, rec *record.Record, oldValue, newValue *record.Value, backup bool) error {
	if backup {
		return nil
	}

	return indexer.add(key, rec)
}

// OnRemoveRecord implements mutation.Observer.OnRemoveRecord
func (indexer *Indexer) OnRemoveRecord(key []byte, rec *record.Record) error {
	indexer.remove(key)

	return nil
}

// OnEvictRecord implements mutation.Observer.OnEvictRecord
func (indexer *Indexer) OnEvictRecord(key []byte, rec *record.Record) error {
	indexer.remove(key)

	return nil
}

// OnLoadRecord implements mutation.Observer.OnLoadRecord
func (indexer *Indexer) OnLoadRecord(key []byte, rec *record.Record, backup bool) error {
	if backup {
		return nil
	}

	return indexer.add(key, rec)
}

// OnDestroy implements mutation.Observer.OnDestroy
func (indexer *Indexer) OnDestroy(isDuringShutdown bool, internal bool) error {
	return indexer.clear()
}

// OnReset implements mutation.Observer.OnReset
func (indexer *Indexer) OnReset() error {
	return indexer.clear()
}

func sortedKeys(set map[string]struct{}) [][]byte {
	keys := make([]string, 0, len(set))

	for key := range set {
		keys = append(keys, key)
	}

	sort.Strings(keys)
	result := make([][]byte, len(keys))

	for i, key := range keys {
		result[i] = []byte(key)
	}

	return result
}
