package transport

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jrife/murre/observers/stats"
	"github.com/jrife/murre/operation"
	"github.com/jrife/murre/partition"
	"github.com/jrife/murre/service"
	"github.com/jrife/murre/storage/recordstore"
	"google.golang.org/grpc/codes"
)

var _ MapServer = (*service.MapService)(nil)

// MapClient describes the operations a user of
// a murre node may want to perform
type MapClient interface {
	Put(ctx context.Context, mapName string, key []byte, value []byte, ttl time.Duration) (bool, error)
	Get(ctx context.Context, mapName string, key []byte) ([]byte, bool, error)
	Remove(ctx context.Context, mapName string, key []byte) (bool, error)
	TriggerLoad(ctx context.Context, mapName string) (bool, error)
}

// MapServer describes an interface that is
// passed to each type of frontend. Each frontend
// provides support for a different protocol.
type MapServer interface {
	Invoke(ctx context.Context, op operation.Operation) error
	TriggerLoad(ctx context.Context, mapName string) (bool, error)
	Clear(ctx context.Context, mapName string) (int, error)
	Stats(mapName string) (stats.LocalStats, error)
	IndexKeys(ctx context.Context, mapName string, attr string) ([][]byte, error)
}

// Code classifies an error returned by a MapServer
func Code(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, service.ErrNoSuchMap):
		return codes.NotFound
	case errors.Is(err, service.ErrNotOwner):
		return codes.FailedPrecondition
	case errors.Is(err, recordstore.ErrInvalidArgument), errors.Is(err, partition.ErrInvalidPartition):
		return codes.InvalidArgument
	case errors.Is(err, service.ErrClosed), errors.Is(err, recordstore.ErrDestroyed):
		return codes.Unavailable
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	}

	return codes.Internal
}

// ValueBytes returns the wire form of a value read from
// a map. Raw maps hold byte slices. Anything else is
// encoded as JSON.
func ValueBytes(value interface{}) ([]byte, error) {
	if data, ok := value.([]byte); ok {
		return data, nil
	}

	return json.Marshal(value)
}

// Get reads a key through a MapServer
func Get(ctx context.Context, server MapServer, mapName string, key []byte) ([]byte, bool, error) {
	op := &operation.Get{Keyed: operation.Keyed{Map: mapName, Key: key}}

	if err := server.Invoke(ctx, op); err != nil {
		return nil, false, err
	}

	if !op.Found {
		return nil, false, nil
	}

	value, err := ValueBytes(op.Value)

	if err != nil {
		return nil, false, err
	}

	return value, true, nil
}

// Put writes a key through a MapServer. It returns
// true if an existing value was replaced. A ttl of
// zero applies the map's default.
func Put(ctx context.Context, server MapServer, mapName string, key []byte, value []byte, ttl time.Duration) (bool, error) {
	op := &operation.Put{Keyed: operation.Keyed{Map: mapName, Key: key}, Value: value, TTL: ttl, HasTTL: ttl != 0}

	if err := server.Invoke(ctx, op); err != nil {
		return false, err
	}

	return op.Old != nil, nil
}

// Remove deletes a key through a MapServer. It returns
// true if the key existed.
func Remove(ctx context.Context, server MapServer, mapName string, key []byte) (bool, error) {
	op := &operation.Remove{Keyed: operation.Keyed{Map: mapName, Key: key}}

	if err := server.Invoke(ctx, op); err != nil {
		return false, err
	}

	return op.Old != nil, nil
}
