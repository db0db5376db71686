package recordstore

import (
	"context"

	"github.com/jrife/murre/storage/loader"
	"github.com/jrife/murre/storage/record"
	"go.uber.org/zap"
)

// loadState tracks the initial load of a store. It is only
// touched from the partition goroutine.
type loadState struct {
	triggered bool
	loaded    bool
	err       error
	// generation invalidates results of loads started
	// before a reset
	generation uint64
	cancelLoad context.CancelFunc
}

func (state *loadState) reset(loaded bool) {
	state.triggered = loaded
	state.loaded = loaded
	state.err = nil
	state.generation++
	state.cancelLoad = nil
}

func (state *loadState) cancel() {
	if state.cancelLoad != nil {
		state.cancelLoad()
		state.cancelLoad = nil
	}
}

// IsLoaded implements RecordStore.IsLoaded
func (store *store) IsLoaded() bool {
	return store.load.loaded
}

// LoadError implements RecordStore.LoadError
func (store *store) LoadError() error {
	return store.load.err
}

// TriggerLoadIfNeeded implements RecordStore.TriggerLoadIfNeeded
func (store *store) TriggerLoadIfNeeded(ctx context.Context) (bool, error) {
	alreadyLoaded := store.IsLoaded()

	return alreadyLoaded, store.MaybeDoInitialLoad(ctx)
}

// MaybeDoInitialLoad implements RecordStore.MaybeDoInitialLoad
func (store *store) MaybeDoInitialLoad(ctx context.Context) error {
	defer store.enter()()

	if store.destroyed {
		return ErrDestroyed
	}

	if store.load.triggered {
		return nil
	}

	store.load.triggered = true
	logger := store.logger.With(zap.String("operation", "MaybeDoInitialLoad"))
	logger.Debug("start initial load", zap.Bool("async", store.dispatcher != nil))
	generation := store.load.generation

	if store.dispatcher == nil {
		entries, err := loader.LoadOwned(ctx, store.loader, store.owns)
		store.completeLoad(logger, generation, entries, err)

		return wrapError("initial load failed", err)
	}

	// The load outlives the call that triggered it so it only
	// stops when the store is reset or destroyed
	loadCtx, cancel := context.WithCancel(context.Background())
	store.load.cancelLoad = cancel

	go func() {
		entries, err := loader.LoadOwned(loadCtx, store.loader, store.owns)

		store.dispatcher(func() {
			defer store.enter()()

			store.completeLoad(logger, generation, entries, err)
		})
	}()

	return nil
}

// completeLoad applies the results of a load on the partition goroutine
func (store *store) completeLoad(logger *zap.Logger, generation uint64, entries []loader.Entry, err error) {
	if store.destroyed || generation != store.load.generation {
		logger.Debug("dropping results of a stale load")

		return
	}

	store.load.cancelLoad = nil
	store.load.loaded = true

	if err != nil {
		store.load.err = err
		logger.Error("initial load failed", zap.Error(err))

		return
	}

	// Delivery failures are logged by the store and don't fail the
	// load. Each entry is followed by its own eviction check.
	for _, entry := range entries {
		store.putFromLoad(logger, entry.Key, record.Bytes(entry.Value), store.backup)
	}

	logger.Debug("initial load complete", zap.Int("entries", len(entries)), zap.Int("size", store.Size()))
}
