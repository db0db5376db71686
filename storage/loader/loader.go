// Package loader describes the boundary between a record store
// and the backing store it lazily loads its entries from.
package loader

import (
	"context"
	"errors"
)

// ErrNoSuchKey is returned by Load when the backing
// store has no value for a key
var ErrNoSuchKey = errors.New("no such key")

// Entry is one key/value pair read from a backing store
type Entry struct {
	Key   []byte
	Value []byte
}

// Loader reads the entries of one map from a backing store.
// Implementations must be safe for concurrent use since
// loads run off the partition goroutine.
type Loader interface {
	// LoadAllKeys returns every key the backing store holds
	// for this map.
	LoadAllKeys(ctx context.Context) ([][]byte, error)
	// LoadAll returns the entries for keys. Keys with no
	// value are skipped.
	LoadAll(ctx context.Context, keys [][]byte) ([]Entry, error)
	// Load returns the value for key or ErrNoSuchKey
	Load(ctx context.Context, key []byte) ([]byte, error)
}

// Owned filters keys to the ones accepted by owns.
// A nil owns accepts every key.
func Owned(keys [][]byte, owns func(key []byte) bool) [][]byte {
	if owns == nil {
		return keys
	}

	owned := make([][]byte, 0, len(keys))

	for _, key := range keys {
		if owns(key) {
			owned = append(owned, key)
		}
	}

	return owned
}

// LoadOwned loads every entry of the map whose key is accepted by owns
func LoadOwned(ctx context.Context, loader Loader, owns func(key []byte) bool) ([]Entry, error) {
	keys, err := loader.LoadAllKeys(ctx)

	if err != nil {
		return nil, err
	}

	keys = Owned(keys, owns)

	if len(keys) == 0 {
		return []Entry{}, nil
	}

	return loader.LoadAll(ctx, keys)
}
