package recordstore

import (
	"bytes"
	"math/rand"
	"time"

	"github.com/jrife/murre/storage/record"
	"github.com/jrife/murre/utils/stream"
	"go.uber.org/zap"
)

// Evict implements RecordStore.Evict
func (store *store) Evict(key []byte) (bool, error) {
	defer store.enter()()

	if store.destroyed {
		return false, ErrDestroyed
	}

	rec := store.get(key)

	if rec == nil {
		return false, nil
	}

	return true, store.evict(store.logger.With(zap.String("operation", "Evict")), rec)
}

// EvictIfNeeded implements RecordStore.EvictIfNeeded
func (store *store) EvictIfNeeded(excluded []byte) (int, error) {
	defer store.enter()()

	if store.destroyed {
		return 0, ErrDestroyed
	}

	return store.evictIfNeeded(store.logger.With(zap.String("operation", "EvictIfNeeded")), excluded)
}

// evictIfNeeded evicts one victim at a time for as long as the
// checker reports the store full. A failed delivery doesn't stop
// eviction. The first failure is returned once it is done.
func (store *store) evictIfNeeded(logger *zap.Logger, excluded []byte) (int, error) {
	evicted := 0
	var firstErr error

	for evicted < store.evictionBatchSize && store.maxSize.IsReachedMaxSize() {
		candidates := store.candidates(excluded)

		if len(candidates) == 0 {
			break
		}

		victim := store.selector.Select(candidates)

		if err := store.evict(logger, victim); err != nil && firstErr == nil {
			firstErr = err
		}

		evicted++
	}

	if evicted > 0 {
		logger.Debug("evicted entries", zap.Int("count", evicted), zap.Int("size", store.Size()))
	}

	return evicted, firstErr
}

// candidates samples up to sampleSize records other than excluded
func (store *store) candidates(excluded []byte) []*record.Record {
	candidates := make([]*record.Record, 0, store.sampleSizeFor(store.records.Size()))
	seen := 0
	iter := store.records.Iterator()

	for iter.Next() {
		rec := iter.Value().(*record.Record)

		if excluded != nil && bytes.Equal(rec.Key, excluded) {
			continue
		}

		seen++

		if store.sampleSize <= 0 || len(candidates) < store.sampleSize {
			candidates = append(candidates, rec)

			continue
		}

		// Reservoir sampling keeps every record equally likely
		if i := rand.Intn(seen); i < store.sampleSize {
			candidates[i] = rec
		}
	}

	return candidates
}

func (store *store) sampleSizeFor(size int) int {
	if store.sampleSize <= 0 || store.sampleSize > size {
		return size
	}

	return store.sampleSize
}

// EvictExpired implements RecordStore.EvictExpired
func (store *store) EvictExpired(now time.Time, limit int) (int, error) {
	defer store.enter()()

	if store.destroyed {
		return 0, ErrDestroyed
	}

	logger := store.logger.With(zap.String("operation", "EvictExpired"))
	iter := store.records.Iterator()
	expired, err := stream.Collect(stream.Pipeline(
		stream.FromIterator[*record.Record](&iter),
		stream.Filter(func(rec *record.Record) bool { return rec.IsExpired(now) }),
		stream.Sort(byExpiration, limit),
		stream.Log(logger, "expired", func(rec *record.Record) zap.Field { return zap.ByteString("key", rec.Key) }),
	))

	if err != nil {
		return 0, err
	}

	for _, rec := range expired {
		if evictErr := store.evict(logger, rec); evictErr != nil && err == nil {
			err = evictErr
		}
	}

	if len(expired) > 0 {
		logger.Debug("evicted expired entries", zap.Int("count", len(expired)))
	}

	return len(expired), err
}

// byExpiration orders records by expiration time, then key
func byExpiration(a, b *record.Record) int {
	if a.ExpirationTime.Before(b.ExpirationTime) {
		return -1
	} else if b.ExpirationTime.Before(a.ExpirationTime) {
		return 1
	}

	return bytes.Compare(a.Key, b.Key)
}

func (store *store) evict(logger *zap.Logger, rec *record.Record) error {
	store.records.Remove(string(rec.Key))

	return store.delivered(logger, "evict", store.observers.OnEvictRecord(rec.Key, rec))
}
