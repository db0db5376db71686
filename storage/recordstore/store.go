package recordstore

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/jrife/murre/storage/eviction"
	"github.com/jrife/murre/storage/loader"
	"github.com/jrife/murre/storage/mutation"
	"github.com/jrife/murre/storage/record"
	"go.uber.org/zap"
)

const (
	defaultEvictionBatchSize = 16
)

// Config contains configuration for a record store
type Config struct {
	// Name is the map name
	Name        string
	PartitionID int
	// Backup is true for a store holding a backup replica
	Backup    bool
	Logger    *zap.Logger
	Observers []mutation.Observer
	// MaxSize decides when entries must be evicted. If it is
	// nil and EvictionPolicy is enabled the policy is translated
	// into a checker counting this store's entries.
	MaxSize        eviction.MaxSizeChecker
	EvictionPolicy eviction.Policy
	// HeapSampler is used when translating EvictionPolicy.
	// Defaults to a runtime sampler.
	HeapSampler eviction.MemorySampler
	// Selector picks eviction victims. Defaults to LRU.
	Selector eviction.Selector
	// EvictionBatchSize bounds the entries evicted by
	// one EvictIfNeeded call. Defaults to 16.
	EvictionBatchSize int
	// SampleSize bounds the candidates the selector chooses
	// from. <= 0 considers every entry.
	SampleSize int
	// Loader is the backing store. A store with no
	// loader is loaded from the start.
	Loader loader.Loader
	// Owns filters backing store keys to this partition
	Owns func(key []byte) bool
	// Dispatcher re-enters load results onto the partition
	// goroutine. Without one the initial load runs synchronously.
	Dispatcher Dispatcher
	// Serializer converts values. Defaults to RawSerializer.
	Serializer record.Serializer
	Clock      func() time.Time
	DefaultTTL time.Duration
	// AssertSingleWriter makes every call panic with
	// ErrConcurrentAccess if another call is in flight
	AssertSingleWriter bool
	MemberID           string
}

var _ RecordStore = (*store)(nil)

type store struct {
	name               string
	partitionID        int
	backup             bool
	logger             *zap.Logger
	observers          *mutation.Composite
	maxSize            eviction.MaxSizeChecker
	selector           eviction.Selector
	evictionBatchSize  int
	sampleSize         int
	loader             loader.Loader
	owns               func(key []byte) bool
	dispatcher         Dispatcher
	serializer         record.Serializer
	clock              func() time.Time
	defaultTTL         time.Duration
	assertSingleWriter bool
	memberID           string
	records            *treemap.Map
	sequence           uint64
	destroyed          bool
	inFlight           int32
	load               loadState
}

// New creates a record store
func New(config Config) (RecordStore, error) {
	store := &store{
		name:               config.Name,
		partitionID:        config.PartitionID,
		backup:             config.Backup,
		logger:             config.Logger,
		observers:          mutation.NewComposite(config.Observers...),
		maxSize:            config.MaxSize,
		selector:           config.Selector,
		evictionBatchSize:  config.EvictionBatchSize,
		sampleSize:         config.SampleSize,
		loader:             config.Loader,
		owns:               config.Owns,
		dispatcher:         config.Dispatcher,
		serializer:         config.Serializer,
		clock:              config.Clock,
		defaultTTL:         config.DefaultTTL,
		assertSingleWriter: config.AssertSingleWriter,
		memberID:           config.MemberID,
		records: treemap.NewWith(func(a, b interface{}) int {
			return bytes.Compare([]byte(a.(string)), []byte(b.(string)))
		}),
	}

	if store.logger == nil {
		store.logger = zap.L()
	}

	store.logger = store.logger.With(zap.String("map", config.Name), zap.Int("partition", config.PartitionID))

	if store.selector == nil {
		store.selector = eviction.LRU
	}

	if store.evictionBatchSize <= 0 {
		store.evictionBatchSize = defaultEvictionBatchSize
	}

	if store.serializer == nil {
		store.serializer = record.RawSerializer{}
	}

	if store.clock == nil {
		store.clock = time.Now
	}

	if store.defaultTTL < 0 {
		return nil, fmt.Errorf("default ttl must be >= 0: %w", ErrInvalidArgument)
	}

	if store.maxSize == nil {
		heap := config.HeapSampler

		if heap == nil {
			heap = eviction.NewRuntimeSampler(time.Second)
		}

		checker, err := config.EvictionPolicy.Checker(eviction.Sources{Count: store.Size, Heap: heap})

		if err != nil {
			return nil, wrapError("could not translate eviction policy", err)
		}

		store.maxSize = checker
	}

	store.load.reset(store.loader == nil)

	return store, nil
}

// enter marks the start of a call. The returned
// function marks its end.
func (store *store) enter() func() {
	if !store.assertSingleWriter {
		return func() {}
	}

	if !atomic.CompareAndSwapInt32(&store.inFlight, 0, 1) {
		panic(ErrConcurrentAccess)
	}

	return func() { atomic.StoreInt32(&store.inFlight, 0) }
}

func (store *store) now() time.Time {
	return store.clock()
}

func (store *store) nextSequence() uint64 {
	store.sequence++

	return store.sequence
}

func (store *store) ttl(ttl time.Duration) time.Duration {
	if ttl < 0 {
		return store.defaultTTL
	}

	return ttl
}

func (store *store) get(key []byte) *record.Record {
	rec, ok := store.records.Get(string(key))

	if !ok {
		return nil
	}

	return rec.(*record.Record)
}

// delivered logs a failed delivery and returns its error
func (store *store) delivered(logger *zap.Logger, event string, delivery mutation.Delivery) error {
	if delivery.Err == nil {
		return nil
	}

	logger.Warn("observer delivery failed",
		zap.String("event", event),
		zap.Int("delivered", delivery.Delivered),
		zap.Int("failed", delivery.Failed),
		zap.Error(delivery.Err))

	return delivery.Err
}

// Name implements RecordStore.Name
func (store *store) Name() string {
	return store.name
}

// PartitionID implements RecordStore.PartitionID
func (store *store) PartitionID() int {
	return store.partitionID
}

// AddObserver implements RecordStore.AddObserver
func (store *store) AddObserver(observer mutation.Observer) error {
	defer store.enter()()

	if store.destroyed {
		return ErrDestroyed
	}

	if observer == nil {
		return fmt.Errorf("observer must not be nil: %w", ErrInvalidArgument)
	}

	store.observers.Add(observer)

	return nil
}

// Size implements RecordStore.Size
func (store *store) Size() int {
	return store.records.Size()
}

// IsEmpty implements RecordStore.IsEmpty
func (store *store) IsEmpty() bool {
	return store.records.Empty()
}

// Clear implements RecordStore.Clear
func (store *store) Clear() (int, error) {
	defer store.enter()()

	if store.destroyed {
		return 0, ErrDestroyed
	}

	logger := store.logger.With(zap.String("operation", "Clear"))
	logger.Debug("start Clear()")

	cleared := store.records.Size()
	store.records.Clear()
	err := store.delivered(logger, "clear", store.observers.OnClear())

	logger.Debug("return from Clear()", zap.Int("cleared", cleared))

	return cleared, err
}

// Reset implements RecordStore.Reset
func (store *store) Reset() error {
	defer store.enter()()

	if store.destroyed {
		return ErrDestroyed
	}

	logger := store.logger.With(zap.String("operation", "Reset"))
	logger.Debug("start Reset()")

	store.records.Clear()
	store.load.cancel()
	store.load.reset(store.loader == nil)
	err := store.delivered(logger, "reset", store.observers.OnReset())

	logger.Debug("return from Reset()")

	return err
}

// Destroy implements RecordStore.Destroy
func (store *store) Destroy(isDuringShutdown bool, internal bool) error {
	defer store.enter()()

	if store.destroyed {
		return ErrDestroyed
	}

	logger := store.logger.With(zap.String("operation", "Destroy"))
	logger.Debug("start Destroy()", zap.Bool("shutdown", isDuringShutdown), zap.Bool("internal", internal))

	store.records.Clear()
	store.load.cancel()
	store.destroyed = true
	err := store.delivered(logger, "destroy", store.observers.OnDestroy(isDuringShutdown, internal))

	logger.Debug("return from Destroy()")

	return err
}
