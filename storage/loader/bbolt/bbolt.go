// Package bbolt implements a loader backed by a bbolt
// database. Each map's entries live in a bucket named
// after the map.
package bbolt

import (
	"context"
	"fmt"
	"os"

	"github.com/jrife/murre/storage/loader"
	"github.com/jrife/murre/utils/uuid"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// DriverName is the loader type used in configuration
const DriverName = "bbolt"

// Config configures a Store
type Config struct {
	Path   string
	Logger *zap.Logger
}

// Store is a bbolt database holding the backing
// entries of any number of maps
type Store struct {
	db     *bolt.DB
	logger *zap.Logger
}

// Open opens the bbolt database at config.Path,
// creating it if it does not exist
func Open(config Config) (*Store, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("\"path\" is required")
	}

	if config.Logger == nil {
		config.Logger = zap.L()
	}

	db, err := bolt.Open(config.Path, 0666, nil)

	if err != nil {
		return nil, fmt.Errorf("could not open bbolt store at %s: %s", config.Path, err.Error())
	}

	return &Store{db: db, logger: config.Logger.With(zap.String("loader", DriverName), zap.String("path", config.Path))}, nil
}

// OpenTemp opens a store in a new file under the
// system temp directory
func OpenTemp() (*Store, error) {
	return Open(Config{Path: fmt.Sprintf("%s/bbolt-%s", os.TempDir(), uuid.MustUUID())})
}

// Close closes the database
func (store *Store) Close() error {
	return store.db.Close()
}

// Delete closes the database and removes its file
func (store *Store) Delete() error {
	path := store.db.Path()

	if err := store.Close(); err != nil {
		return fmt.Errorf("could not close store: %s", err.Error())
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("could not remove path %s: %s", path, err.Error())
	}

	return nil
}

// Put writes an entry for a map to the backing store
func (store *Store) Put(mapName string, key, value []byte) error {
	return store.db.Update(func(txn *bolt.Tx) error {
		bucket, err := txn.CreateBucketIfNotExists([]byte(mapName))

		if err != nil {
			return fmt.Errorf("could not ensure bucket %s exists: %s", mapName, err.Error())
		}

		return bucket.Put(key, value)
	})
}

// Loader returns a loader for the entries of one map
func (store *Store) Loader(mapName string) loader.Loader {
	return &mapLoader{store: store, bucket: []byte(mapName), logger: store.logger.With(zap.String("map", mapName))}
}

var _ loader.Loader = (*mapLoader)(nil)

type mapLoader struct {
	store  *Store
	bucket []byte
	logger *zap.Logger
}

// LoadAllKeys implements loader.Loader.LoadAllKeys
func (mapLoader *mapLoader) LoadAllKeys(ctx context.Context) ([][]byte, error) {
	keys := [][]byte{}

	err := mapLoader.view(ctx, func(bucket *bolt.Bucket) error {
		return bucket.ForEach(func(k, v []byte) error {
			if v == nil {
				return nil
			}

			keys = append(keys, copyBytes(k))

			return ctx.Err()
		})
	})

	if err != nil {
		return nil, err
	}

	mapLoader.logger.Debug("loaded all keys", zap.Int("count", len(keys)))

	return keys, nil
}

// LoadAll implements loader.Loader.LoadAll
func (mapLoader *mapLoader) LoadAll(ctx context.Context, keys [][]byte) ([]loader.Entry, error) {
	entries := make([]loader.Entry, 0, len(keys))

	err := mapLoader.view(ctx, func(bucket *bolt.Bucket) error {
		for _, key := range keys {
			if err := ctx.Err(); err != nil {
				return err
			}

			if v := bucket.Get(key); v != nil {
				entries = append(entries, loader.Entry{Key: copyBytes(key), Value: copyBytes(v)})
			}
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return entries, nil
}

// Load implements loader.Loader.Load
func (mapLoader *mapLoader) Load(ctx context.Context, key []byte) ([]byte, error) {
	var value []byte

	err := mapLoader.view(ctx, func(bucket *bolt.Bucket) error {
		if v := bucket.Get(key); v != nil {
			value = copyBytes(v)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	if value == nil {
		return nil, loader.ErrNoSuchKey
	}

	return value, nil
}

// view runs fn against the map's bucket. A missing
// bucket is treated as an empty map.
func (mapLoader *mapLoader) view(ctx context.Context, fn func(bucket *bolt.Bucket) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := mapLoader.store.db.View(func(txn *bolt.Tx) error {
		bucket := txn.Bucket(mapLoader.bucket)

		if bucket == nil {
			return nil
		}

		return fn(bucket)
	})

	if err != nil {
		return fmt.Errorf("could not read bucket %s: %w", mapLoader.bucket, err)
	}

	return nil
}

// Values returned by bbolt are only valid for the
// life of the transaction
func copyBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)

	return c
}
