package recordstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jrife/murre/storage/record"
	"github.com/jrife/murre/utils/lvstream"
	"go.uber.org/zap"
)

// snapshotRecord is the encoding of one record in a snapshot
type snapshotRecord struct {
	Key            []byte        `json:"key"`
	Value          []byte        `json:"value"`
	Version        int64         `json:"version"`
	CreationTime   time.Time     `json:"creation_time"`
	LastAccessTime time.Time     `json:"last_access_time"`
	LastUpdateTime time.Time     `json:"last_update_time"`
	ExpirationTime time.Time     `json:"expiration_time"`
	TTL            time.Duration `json:"ttl"`
	Hits           int64         `json:"hits"`
}

// Snapshot implements snapshot.Source. The records are encoded
// when Snapshot is called so the returned reader can be consumed
// from any goroutine.
func (store *store) Snapshot(ctx context.Context) (io.ReadCloser, error) {
	defer store.enter()()

	if store.destroyed {
		return nil, ErrDestroyed
	}

	records := store.snapshotRecords()
	encoded := make([][]byte, 0, len(records))

	for _, rec := range records {
		value, err := rec.Value.Bytes(store.serializer)

		if err != nil {
			return nil, wrapError(fmt.Sprintf("could not serialize value of key %q", rec.Key), err)
		}

		raw, err := json.Marshal(snapshotRecord{
			Key:            rec.Key,
			Value:          value,
			Version:        rec.Version,
			CreationTime:   rec.CreationTime,
			LastAccessTime: rec.LastAccessTime,
			LastUpdateTime: rec.LastUpdateTime,
			ExpirationTime: rec.ExpirationTime,
			TTL:            rec.TTL,
			Hits:           rec.Hits,
		})

		if err != nil {
			return nil, wrapError("could not encode record", err)
		}

		encoded = append(encoded, raw)
	}

	store.logger.Debug("snapshot taken", zap.String("operation", "Snapshot"), zap.Int("records", len(encoded)))

	return lvstream.NewEncoder(func() ([]byte, error) {
		if len(encoded) == 0 {
			return nil, io.EOF
		}

		next := encoded[0]
		encoded = encoded[1:]

		return next, nil
	}, nil), nil
}

// ApplySnapshot implements snapshot.Acceptor. Every record is
// delivered through OnReplicationPutRecord. Indexes are populated
// unless this store holds a backup.
func (store *store) ApplySnapshot(ctx context.Context, snap io.Reader) error {
	defer store.enter()()

	if store.destroyed {
		return ErrDestroyed
	}

	logger := store.logger.With(zap.String("operation", "ApplySnapshot"))
	logger.Debug("start ApplySnapshot()")

	applied := 0
	var deliveryErr error

	decoder := lvstream.NewDecoder(func(raw []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		var encoded snapshotRecord

		if err := json.Unmarshal(raw, &encoded); err != nil {
			return fmt.Errorf("could not decode record: %w", err)
		}

		rec := &record.Record{
			Key:            encoded.Key,
			Value:          record.Bytes(encoded.Value),
			Version:        encoded.Version,
			CreationTime:   encoded.CreationTime,
			LastAccessTime: encoded.LastAccessTime,
			LastUpdateTime: encoded.LastUpdateTime,
			ExpirationTime: encoded.ExpirationTime,
			TTL:            encoded.TTL,
			Hits:           encoded.Hits,
		}

		if err := store.putReplicated(logger, rec, !store.backup); err != nil && deliveryErr == nil {
			deliveryErr = err
		}

		applied++

		return nil
	})

	if _, err := io.Copy(decoder, snap); err != nil {
		return wrapError("could not apply snapshot", err)
	}

	if err := decoder.Close(); err != nil {
		return wrapError("could not apply snapshot", err)
	}

	logger.Debug("return from ApplySnapshot()", zap.Int("applied", applied))

	return deliveryErr
}
