// Package service hosts the record stores of every map and
// partition held by a node and routes operations to them.
package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jrife/murre/config"
	"github.com/jrife/murre/observers/index"
	"github.com/jrife/murre/observers/nearcache"
	"github.com/jrife/murre/observers/stats"
	"github.com/jrife/murre/observers/wan"
	"github.com/jrife/murre/operation"
	"github.com/jrife/murre/partition"
	"github.com/jrife/murre/storage/eviction"
	"github.com/jrife/murre/storage/loader"
	"github.com/jrife/murre/storage/loader/bbolt"
	"github.com/jrife/murre/storage/mutation"
	"github.com/jrife/murre/storage/record"
	"github.com/jrife/murre/storage/recordstore"
	"github.com/jrife/murre/utils/log"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ObserverFactory creates an extra observer for a new record store
type ObserverFactory func(mapName string, partitionID int, backup bool) mutation.Observer

// Config contains configuration for a map service
type Config struct {
	Node   config.Config
	Logger *zap.Logger
	// Registerer receives the map metrics. Defaults to
	// prometheus.DefaultRegisterer.
	Registerer     prometheus.Registerer
	TracerProvider trace.TracerProvider
	// WANTarget receives WAN events of maps with WAN
	// replication enabled. Defaults to logging them.
	WANTarget wan.Target
	// HeapSampler is shared by every record store
	HeapSampler eviction.MemorySampler
	Clock       func() time.Time
}

type storeKey struct {
	mapName     string
	partitionID int
}

// partitionStore is a record store plus the observers
// the service queries
type partitionStore struct {
	store   recordstore.RecordStore
	indexer *index.Indexer
	stats   *stats.Collector
}

// mapState is what the service keeps per map
type mapState struct {
	config     config.MapConfig
	policy     eviction.Policy
	selector   eviction.Selector
	serializer record.Serializer
	loader     loader.Loader
	nearCache  *nearcache.Broadcaster
	wan        *wan.Publisher
}

// MapService hosts the record stores of a node
type MapService struct {
	node        config.Config
	logger      *zap.Logger
	pool        *partition.Pool
	runner      *operation.Runner
	metrics     *stats.Metrics
	heapSampler eviction.MemorySampler
	clock       func() time.Time
	owned       map[int]bool
	backups     map[int]bool
	maps        map[string]*mapState
	bboltStores map[string]*bbolt.Store

	mu        sync.Mutex
	stores    map[storeKey]*partitionStore
	factories []ObserverFactory
	closed    bool
	stop      chan struct{}
	done      chan struct{}
}

// New creates a map service. Backing stores are opened
// and WAN publishers started immediately.
func New(cfg Config) (*MapService, error) {
	if err := cfg.Node.Validate(); err != nil {
		return nil, err
	}

	if cfg.Logger == nil {
		cfg.Logger = zap.L()
	}

	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}

	if cfg.HeapSampler == nil {
		cfg.HeapSampler = eviction.NewRuntimeSampler(time.Second)
	}

	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	logger := cfg.Logger.With(zap.String("member", cfg.Node.MemberID))

	if cfg.WANTarget == nil {
		cfg.WANTarget = wan.LogTarget(logger)
	}

	service := &MapService{
		node:        cfg.Node,
		logger:      logger,
		pool:        partition.NewPool(partition.Config{Threads: cfg.Node.PartitionThreads, Logger: logger}),
		runner:      operation.NewRunner(cfg.TracerProvider, logger),
		metrics:     stats.NewMetrics(cfg.Registerer),
		heapSampler: cfg.HeapSampler,
		clock:       cfg.Clock,
		owned:       toSet(cfg.Node.OwnedPartitions),
		backups:     toSet(cfg.Node.BackupPartitions),
		maps:        map[string]*mapState{},
		bboltStores: map[string]*bbolt.Store{},
		stores:      map[storeKey]*partitionStore{},
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}

	go service.expire(cfg.Node.ExpiryInterval)

	for _, mapConfig := range cfg.Node.Maps {
		state, err := service.newMapState(mapConfig, cfg.WANTarget)

		if err != nil {
			service.Shutdown()

			return nil, err
		}

		service.maps[mapConfig.Name] = state
	}

	return service, nil
}

func (service *MapService) newMapState(mapConfig config.MapConfig, target wan.Target) (*mapState, error) {
	state := &mapState{config: mapConfig}
	var err error

	if state.policy, err = mapConfig.EvictionPolicy(service.node.PartitionCount); err != nil {
		return nil, fmt.Errorf("map %s: %w", mapConfig.Name, err)
	}

	if state.selector, err = eviction.ParseSelector(mapConfig.Eviction.Policy); err != nil {
		return nil, fmt.Errorf("map %s: %w", mapConfig.Name, err)
	}

	if state.serializer, err = mapConfig.RecordSerializer(); err != nil {
		return nil, fmt.Errorf("map %s: %w", mapConfig.Name, err)
	}

	if mapConfig.Loader != nil {
		store, ok := service.bboltStores[mapConfig.Loader.Path]

		if !ok {
			store, err = bbolt.Open(bbolt.Config{Path: mapConfig.Loader.Path, Logger: service.logger})

			if err != nil {
				return nil, fmt.Errorf("map %s: %w", mapConfig.Name, err)
			}

			service.bboltStores[mapConfig.Loader.Path] = store
		}

		state.loader = store.Loader(mapConfig.Name)
	}

	if mapConfig.NearCache {
		state.nearCache = nearcache.NewBroadcaster()
	}

	if mapConfig.WAN.Enabled {
		state.wan = wan.New(wan.Config{
			Map:        mapConfig.Name,
			QueueSize:  mapConfig.WAN.QueueSize,
			Target:     target,
			Serializer: state.serializer,
			Logger:     service.logger,
		})
		state.wan.Start()
	}

	return state, nil
}

// PartitionFor returns the partition owning key
func (service *MapService) PartitionFor(key []byte) int {
	hash := fnv.New32a()
	hash.Write(key)

	return int(hash.Sum32() % uint32(service.node.PartitionCount))
}

// Owns returns true if this node holds the primary
// replica of a partition
func (service *MapService) Owns(partitionID int) bool {
	return service.owned[partitionID]
}

// RegisterObserverFactory adds a factory called for every
// record store created afterwards
func (service *MapService) RegisterObserverFactory(factory ObserverFactory) {
	service.mu.Lock()
	defer service.mu.Unlock()

	service.factories = append(service.factories, factory)
}

// Invoke runs an operation on the goroutine owning its partition
func (service *MapService) Invoke(ctx context.Context, op operation.Operation) error {
	if _, ok := service.maps[op.MapName()]; !ok {
		return ErrNoSuchMap
	}

	partitionID := op.PartitionID()

	if key, ok := op.PartitionKey(); ok {
		partitionID = service.PartitionFor(key)
	}

	if partitionID < 0 || partitionID >= service.node.PartitionCount {
		return fmt.Errorf("partition %d: %w", partitionID, partition.ErrInvalidPartition)
	}

	if !service.owned[partitionID] && !service.backups[partitionID] {
		return ErrNotOwner
	}

	return service.submit(ctx, op.MapName(), partitionID, func(ctx context.Context, ps *partitionStore) error {
		return service.runner.Run(ctx, op, ps.store)
	})
}

// submit runs fn against the map's record store for a partition,
// creating the store if needed
func (service *MapService) submit(ctx context.Context, mapName string, partitionID int, fn func(ctx context.Context, ps *partitionStore) error) error {
	if _, ok := service.maps[mapName]; !ok {
		return ErrNoSuchMap
	}

	ctx = log.WithFields(ctx, zap.String("map", mapName), zap.Int("partition", partitionID))

	err := service.pool.Submit(ctx, partitionID, func(ctx context.Context) error {
		ps, err := service.partitionStore(mapName, partitionID)

		if err != nil {
			return err
		}

		return fn(ctx, ps)
	})

	if err == partition.ErrClosed {
		return ErrClosed
	}

	return err
}

// partitionStore returns the record store of a map partition,
// creating it on first use. It runs on the partition goroutine.
func (service *MapService) partitionStore(mapName string, partitionID int) (*partitionStore, error) {
	service.mu.Lock()
	defer service.mu.Unlock()

	if service.closed {
		return nil, ErrClosed
	}

	key := storeKey{mapName: mapName, partitionID: partitionID}

	if ps, ok := service.stores[key]; ok {
		return ps, nil
	}

	ps, err := service.newPartitionStore(service.maps[mapName], partitionID)

	if err != nil {
		return nil, err
	}

	service.stores[key] = ps

	return ps, nil
}

func (service *MapService) newPartitionStore(state *mapState, partitionID int) (*partitionStore, error) {
	mapName := state.config.Name
	backup := !service.owned[partitionID]
	ps := &partitionStore{}
	observers := []mutation.Observer{}

	if state.config.Index != nil {
		ps.indexer = index.New(index.FieldExtractor(state.config.Index.Attribute), state.serializer)
		observers = append(observers, ps.indexer)
	}

	if state.nearCache != nil {
		observers = append(observers, nearcache.NewInvalidator(mapName, service.node.MemberID, state.nearCache))
	}

	if state.wan != nil && !backup {
		observers = append(observers, state.wan)
	}

	for _, factory := range service.factories {
		if observer := factory(mapName, partitionID, backup); observer != nil {
			observers = append(observers, observer)
		}
	}

	store, err := recordstore.New(recordstore.Config{
		Name:              mapName,
		PartitionID:       partitionID,
		Backup:            backup,
		Logger:            service.logger,
		Observers:         observers,
		EvictionPolicy:    state.policy,
		HeapSampler:       service.heapSampler,
		Selector:          state.selector,
		EvictionBatchSize: state.config.Eviction.BatchSize,
		SampleSize:        state.config.Eviction.SampleSize,
		Loader:            state.loader,
		Owns:              func(key []byte) bool { return service.PartitionFor(key) == partitionID },
		Dispatcher:        service.pool.Dispatcher(partitionID),
		Serializer:        state.serializer,
		Clock:             service.clock,
		DefaultTTL:        state.config.TTL,
		MemberID:          service.node.MemberID,
	})

	if err != nil {
		return nil, fmt.Errorf("could not create record store for map %s partition %d: %w", mapName, partitionID, err)
	}

	if state.config.StatisticsEnabled() {
		ps.stats = stats.New(stats.Config{Map: mapName, Backup: backup, Metrics: service.metrics, Size: store.Size})

		if err := store.AddObserver(ps.stats); err != nil {
			return nil, err
		}
	}

	ps.store = store

	return ps, nil
}

// Partitions returns the partitions this node holds a primary
// replica of, in order
func (service *MapService) Partitions() []int {
	partitions := make([]int, 0, len(service.owned))

	for partitionID := range service.owned {
		partitions = append(partitions, partitionID)
	}

	sort.Ints(partitions)

	return partitions
}

// Clear clears a map on every owned partition and returns the
// number of removed entries
func (service *MapService) Clear(ctx context.Context, mapName string) (int, error) {
	cleared := 0

	for _, partitionID := range service.Partitions() {
		op := &operation.Clear{Partitioned: operation.Partitioned{Map: mapName, Partition: partitionID}}

		if err := service.Invoke(ctx, op); err != nil {
			return cleared, err
		}

		cleared += op.Cleared
	}

	return cleared, nil
}

// TriggerLoad triggers the initial load of a map on every owned
// partition. It returns true if every partition was already loaded.
func (service *MapService) TriggerLoad(ctx context.Context, mapName string) (bool, error) {
	alreadyLoaded := true

	for _, partitionID := range service.Partitions() {
		op := &operation.TriggerLoadIfNeeded{Partitioned: operation.Partitioned{Map: mapName, Partition: partitionID}}

		if err := service.Invoke(ctx, op); err != nil {
			return false, err
		}

		alreadyLoaded = alreadyLoaded && op.AlreadyLoaded
	}

	return alreadyLoaded, nil
}

// IndexKeys returns the keys of a map whose indexed attribute
// equals attr, across every owned partition
func (service *MapService) IndexKeys(ctx context.Context, mapName string, attr string) ([][]byte, error) {
	state, ok := service.maps[mapName]

	if !ok {
		return nil, ErrNoSuchMap
	}

	if state.config.Index == nil {
		return nil, fmt.Errorf("map %s has no index: %w", mapName, ErrNoSuchMap)
	}

	keys := [][]byte{}

	for _, partitionID := range service.Partitions() {
		err := service.submit(ctx, mapName, partitionID, func(ctx context.Context, ps *partitionStore) error {
			keys = append(keys, ps.indexer.Keys(attr)...)

			return nil
		})

		if err != nil {
			return nil, err
		}
	}

	return keys, nil
}

// Stats sums the local statistics of a map's record stores
func (service *MapService) Stats(mapName string) (stats.LocalStats, error) {
	if _, ok := service.maps[mapName]; !ok {
		return stats.LocalStats{}, ErrNoSuchMap
	}

	service.mu.Lock()
	defer service.mu.Unlock()

	var total stats.LocalStats

	for key, ps := range service.stores {
		if key.mapName != mapName || ps.stats == nil {
			continue
		}

		s := ps.stats.Stats()
		total.Puts += s.Puts
		total.Updates += s.Updates
		total.Removes += s.Removes
		total.Evictions += s.Evictions
		total.Loads += s.Loads
		total.Replications += s.Replications
		total.BackupWrites += s.BackupWrites
		total.Entries += s.Entries
	}

	return total, nil
}

// NearCache returns the invalidation broadcaster of a map
func (service *MapService) NearCache(mapName string) (*nearcache.Broadcaster, error) {
	state, ok := service.maps[mapName]

	if !ok || state.nearCache == nil {
		return nil, ErrNoSuchMap
	}

	return state.nearCache, nil
}

// Snapshot encodes the record store of a map partition
func (service *MapService) Snapshot(ctx context.Context, mapName string, partitionID int) (io.ReadCloser, error) {
	var snap io.ReadCloser

	err := service.submit(ctx, mapName, partitionID, func(ctx context.Context, ps *partitionStore) error {
		var err error
		snap, err = ps.store.Snapshot(ctx)

		return err
	})

	return snap, err
}

// ApplySnapshot applies a snapshot to the record store of a
// map partition this node holds
func (service *MapService) ApplySnapshot(ctx context.Context, mapName string, partitionID int, snap io.Reader) error {
	if !service.owned[partitionID] && !service.backups[partitionID] {
		return ErrNotOwner
	}

	return service.submit(ctx, mapName, partitionID, func(ctx context.Context, ps *partitionStore) error {
		return ps.store.ApplySnapshot(ctx, snap)
	})
}

// MigrateOut destroys every record store of a partition that
// moved to another node
func (service *MapService) MigrateOut(ctx context.Context, partitionID int) error {
	return service.forEachStore(ctx, partitionID, func(key storeKey, ps *partitionStore) error {
		service.mu.Lock()
		delete(service.stores, key)
		service.mu.Unlock()

		return ps.store.Destroy(false, true)
	})
}

// Rollback resets every record store of a partition after
// a failed migration
func (service *MapService) Rollback(ctx context.Context, partitionID int) error {
	return service.forEachStore(ctx, partitionID, func(key storeKey, ps *partitionStore) error {
		return ps.store.Reset()
	})
}

func (service *MapService) forEachStore(ctx context.Context, partitionID int, fn func(key storeKey, ps *partitionStore) error) error {
	return service.pool.Submit(ctx, partitionID, func(ctx context.Context) error {
		var firstErr error

		for key, ps := range service.storesOf(partitionID) {
			if err := fn(key, ps); err != nil && firstErr == nil {
				firstErr = err
			}
		}

		return firstErr
	})
}

func (service *MapService) storesOf(partitionID int) map[storeKey]*partitionStore {
	service.mu.Lock()
	defer service.mu.Unlock()

	stores := map[storeKey]*partitionStore{}

	for key, ps := range service.stores {
		if key.partitionID == partitionID {
			stores[key] = ps
		}
	}

	return stores
}

// expire periodically schedules a TTL sweep of every record
// store. A sweep still queued for a partition isn't queued twice.
func (service *MapService) expire(interval time.Duration) {
	defer close(service.done)

	if interval <= 0 {
		<-service.stop

		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			service.scheduleSweeps()
		case <-service.stop:
			return
		}
	}
}

func (service *MapService) scheduleSweeps() {
	service.mu.Lock()
	keys := make([]storeKey, 0, len(service.stores))

	for key := range service.stores {
		keys = append(keys, key)
	}

	service.mu.Unlock()

	for _, key := range keys {
		key := key

		service.pool.Schedule(key.partitionID, fmt.Sprintf("expire/%s/%d", key.mapName, key.partitionID), func() {
			service.mu.Lock()
			ps, ok := service.stores[key]
			service.mu.Unlock()

			if !ok {
				return
			}

			op := &operation.EvictExpired{Partitioned: operation.Partitioned{Map: key.mapName, Partition: key.partitionID}, Now: service.clock()}

			if err := service.runner.Run(context.Background(), op, ps.store); err != nil && err != recordstore.ErrDestroyed {
				service.logger.Warn("expiry sweep failed", zap.String("map", key.mapName), zap.Int("partition", key.partitionID), zap.Error(err))
			}
		})
	}
}

// Shutdown destroys every record store, stops the partition
// goroutines and closes the backing stores
func (service *MapService) Shutdown() {
	service.mu.Lock()

	if service.closed {
		service.mu.Unlock()

		return
	}

	service.closed = true
	service.mu.Unlock()

	close(service.stop)
	<-service.done

	partitions := map[int]bool{}

	for key := range service.storesSnapshot() {
		partitions[key.partitionID] = true
	}

	for partitionID := range partitions {
		err := service.pool.Submit(context.Background(), partitionID, func(ctx context.Context) error {
			for _, ps := range service.storesOf(partitionID) {
				ps.store.Destroy(true, false)
			}

			return nil
		})

		if err != nil {
			service.logger.Warn("could not destroy record stores", zap.Int("partition", partitionID), zap.Error(err))
		}
	}

	service.pool.Stop()

	for _, state := range service.maps {
		if state.wan != nil {
			state.wan.Stop()
		}
	}

	for path, store := range service.bboltStores {
		if err := store.Close(); err != nil {
			service.logger.Warn("could not close backing store", zap.String("path", path), zap.Error(err))
		}
	}
}

func (service *MapService) storesSnapshot() map[storeKey]*partitionStore {
	service.mu.Lock()
	defer service.mu.Unlock()

	stores := make(map[storeKey]*partitionStore, len(service.stores))

	for key, ps := range service.stores {
		stores[key] = ps
	}

	return stores
}

func toSet(partitions []int) map[int]bool {
	set := make(map[int]bool, len(partitions))

	for _, partitionID := range partitions {
		set[partitionID] = true
	}

	return set
}
