package recordstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrife/murre/storage/loader"
	"github.com/jrife/murre/storage/record"
	"go.uber.org/zap"
)

// Put implements RecordStore.Put
func (store *store) Put(key []byte, value *record.Value, ttl time.Duration, backup bool) (*record.Value, error) {
	defer store.enter()()

	if store.destroyed {
		return nil, ErrDestroyed
	}

	logger := store.logger.With(zap.String("operation", "Put"))
	logger.Debug("start Put()", zap.Binary("key", key), zap.Bool("backup", backup))

	old, err := store.put(logger, key, value, ttl, backup)

	logger.Debug("return from Put()", zap.Error(err))

	return old, err
}

// Set implements RecordStore.Set
func (store *store) Set(key []byte, value *record.Value, ttl time.Duration, backup bool) error {
	_, err := store.Put(key, value, ttl, backup)

	return err
}

// PutIfAbsent implements RecordStore.PutIfAbsent
func (store *store) PutIfAbsent(key []byte, value *record.Value, ttl time.Duration, backup bool) (*record.Value, error) {
	defer store.enter()()

	if store.destroyed {
		return nil, ErrDestroyed
	}

	logger := store.logger.With(zap.String("operation", "PutIfAbsent"))
	existing, err := store.read(logger, key)

	if existing != nil {
		return existing.Value, err
	}

	_, putErr := store.put(logger, key, value, ttl, backup)

	if err == nil {
		err = putErr
	}

	return nil, err
}

// Replace implements RecordStore.Replace
func (store *store) Replace(key []byte, value *record.Value, ttl time.Duration, backup bool) (*record.Value, error) {
	defer store.enter()()

	if store.destroyed {
		return nil, ErrDestroyed
	}

	logger := store.logger.With(zap.String("operation", "Replace"))
	existing, err := store.read(logger, key)

	if existing == nil || err != nil {
		return nil, err
	}

	return store.put(logger, key, value, ttl, backup)
}

// put writes the value, notifies the observers and then
// evicts entries if the store grew past its bound
func (store *store) put(logger *zap.Logger, key []byte, value *record.Value, ttl time.Duration, backup bool) (*record.Value, error) {
	if value == nil {
		return nil, fmt.Errorf("value must not be nil: %w", ErrInvalidArgument)
	}

	now := store.now()
	rec := store.get(key)
	var old *record.Value
	var err error

	if rec == nil {
		rec = record.New(key, value, store.ttl(ttl), now, store.nextSequence())
		store.records.Put(string(key), rec)
		err = store.delivered(logger, "put", store.observers.OnPutRecord(key, rec, nil, backup))
	} else {
		old = rec.Value
		rec.Update(value, now, store.nextSequence())
		rec.SetTTL(store.ttl(ttl), now)
		err = store.delivered(logger, "update", store.observers.OnUpdateRecord(key, rec, old, value, backup))
	}

	_, evictErr := store.evictIfNeeded(logger, key)

	if err == nil {
		err = evictErr
	}

	return old, err
}

// Remove implements RecordStore.Remove
func (store *store) Remove(key []byte) (*record.Value, error) {
	defer store.enter()()

	if store.destroyed {
		return nil, ErrDestroyed
	}

	logger := store.logger.With(zap.String("operation", "Remove"))
	logger.Debug("start Remove()", zap.Binary("key", key))

	rec := store.get(key)

	if rec == nil {
		logger.Debug("return from Remove()", zap.Bool("removed", false))

		return nil, nil
	}

	store.records.Remove(string(key))
	err := store.delivered(logger, "remove", store.observers.OnRemoveRecord(key, rec))

	logger.Debug("return from Remove()", zap.Bool("removed", true), zap.Error(err))

	return rec.Value, err
}

// Delete implements RecordStore.Delete
func (store *store) Delete(key []byte) error {
	_, err := store.Remove(key)

	return err
}

// Get implements RecordStore.Get
func (store *store) Get(key []byte) (interface{}, bool, error) {
	defer store.enter()()

	if store.destroyed {
		return nil, false, ErrDestroyed
	}

	rec, err := store.read(store.logger.With(zap.String("operation", "Get")), key)

	if rec == nil {
		return nil, false, err
	}

	value, convErr := rec.Value.Object(store.serializer)

	if convErr != nil {
		return nil, false, &PublicError{MemberID: store.memberID, Cause: convErr}
	}

	return value, true, err
}

// GetRecord implements RecordStore.GetRecord
func (store *store) GetRecord(key []byte) (*record.Record, error) {
	defer store.enter()()

	if store.destroyed {
		return nil, ErrDestroyed
	}

	return store.read(store.logger.With(zap.String("operation", "GetRecord")), key)
}

// read returns the live record for key and records the
// access. An expired record is evicted and treated as absent.
// A missing key is loaded from the backing store.
func (store *store) read(logger *zap.Logger, key []byte) (*record.Record, error) {
	rec := store.get(key)

	if rec == nil {
		return store.loadMissing(logger, key)
	}

	now := store.now()

	if rec.IsExpired(now) {
		return nil, store.evict(logger, rec)
	}

	rec.Touch(now, store.nextSequence())

	return rec, nil
}

// loadMissing reads key from the backing store. Keys the store
// doesn't own and keys the backing store doesn't hold are absent.
func (store *store) loadMissing(logger *zap.Logger, key []byte) (*record.Record, error) {
	if store.loader == nil || (store.owns != nil && !store.owns(key)) {
		return nil, nil
	}

	value, err := store.loader.Load(context.Background(), key)

	if errors.Is(err, loader.ErrNoSuchKey) {
		return nil, nil
	} else if err != nil {
		return nil, wrapError("could not load key", err)
	}

	logger.Debug("loaded missing key", zap.Binary("key", key))
	err = store.putFromLoad(logger, key, record.Bytes(value), store.backup)

	return store.get(key), err
}

// PutFromLoad implements RecordStore.PutFromLoad
func (store *store) PutFromLoad(key []byte, value *record.Value, backup bool) error {
	defer store.enter()()

	if store.destroyed {
		return ErrDestroyed
	}

	return store.putFromLoad(store.logger.With(zap.String("operation", "PutFromLoad")), key, value, backup)
}

func (store *store) putFromLoad(logger *zap.Logger, key []byte, value *record.Value, backup bool) error {
	now := store.now()
	rec := store.get(key)

	if rec == nil {
		rec = record.New(key, value, store.defaultTTL, now, store.nextSequence())
		store.records.Put(string(key), rec)
	} else {
		rec.Update(value, now, store.nextSequence())
	}

	err := store.delivered(logger, "load", store.observers.OnLoadRecord(key, rec, backup))
	_, evictErr := store.evictIfNeeded(logger, key)

	if err == nil {
		err = evictErr
	}

	return err
}

// PutReplicated implements RecordStore.PutReplicated
func (store *store) PutReplicated(rec *record.Record, populateIndex bool) error {
	defer store.enter()()

	if store.destroyed {
		return ErrDestroyed
	}

	if rec == nil || rec.Value == nil {
		return fmt.Errorf("record must have a value: %w", ErrInvalidArgument)
	}

	return store.putReplicated(store.logger.With(zap.String("operation", "PutReplicated")), rec.Clone(), populateIndex)
}

func (store *store) putReplicated(logger *zap.Logger, rec *record.Record, populateIndex bool) error {
	rec.Sequence = store.nextSequence()
	store.records.Put(string(rec.Key), rec)

	return store.delivered(logger, "replication put", store.observers.OnReplicationPutRecord(rec.Key, rec, populateIndex))
}
