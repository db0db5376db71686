package service_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jrife/murre/config"
	"github.com/jrife/murre/observers/nearcache"
	"github.com/jrife/murre/observers/querycache"
	"github.com/jrife/murre/operation"
	"github.com/jrife/murre/service"
	"github.com/jrife/murre/storage/eviction"
	"github.com/jrife/murre/storage/loader/bbolt"
	"github.com/jrife/murre/storage/mutation"
	"github.com/jrife/murre/storage/record"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func newService(t *testing.T, yaml string, c *clock) *service.MapService {
	t.Helper()

	cfg, err := config.Parse([]byte(yaml))
	require.NoError(t, err)

	if c == nil {
		c = &clock{now: time.Unix(1000, 0)}
	}

	mapService, err := service.New(service.Config{
		Node:        cfg,
		Logger:      zap.NewNop(),
		Registerer:  prometheus.NewRegistry(),
		HeapSampler: eviction.MemorySamplerFunc(func() eviction.MemoryStats { return eviction.MemoryStats{Used: 1, Total: 1 << 40} }),
		Clock:       c.Now,
	})
	require.NoError(t, err)
	t.Cleanup(mapService.Shutdown)

	return mapService
}

func put(t *testing.T, mapService *service.MapService, mapName, key, value string) {
	t.Helper()

	err := mapService.Invoke(context.Background(), &operation.Put{Keyed: operation.Keyed{Map: mapName, Key: []byte(key)}, Value: []byte(value)})
	require.NoError(t, err)
}

func get(t *testing.T, mapService *service.MapService, mapName, key string) (string, bool) {
	t.Helper()

	op := &operation.Get{Keyed: operation.Keyed{Map: mapName, Key: []byte(key)}}
	require.NoError(t, mapService.Invoke(context.Background(), op))

	if !op.Found {
		return "", false
	}

	return string(op.Value.([]byte)), true
}

func TestPartitionFor(t *testing.T) {
	mapService := newService(t, "partition_count: 7\nmaps: [{name: a}]\n", nil)

	for i := 0; i < 100; i++ {
		key := []byte(fmt.Sprintf("key-%d", i))
		partitionID := mapService.PartitionFor(key)

		require.True(t, partitionID >= 0 && partitionID < 7)
		require.Equal(t, partitionID, mapService.PartitionFor(key))
	}

	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, mapService.Partitions())
}

func TestInvoke(t *testing.T) {
	mapService := newService(t, "partition_count: 4\nmaps: [{name: a}]\n", nil)

	put(t, mapService, "a", "k", "v1")
	value, ok := get(t, mapService, "a", "k")
	require.True(t, ok)
	require.Equal(t, "v1", value)

	update := &operation.Put{Keyed: operation.Keyed{Map: "a", Key: []byte("k")}, Value: []byte("v2")}
	require.NoError(t, mapService.Invoke(context.Background(), update))
	require.Equal(t, []byte("v1"), update.Old.Raw())

	remove := &operation.Remove{Keyed: operation.Keyed{Map: "a", Key: []byte("k")}}
	require.NoError(t, mapService.Invoke(context.Background(), remove))
	require.Equal(t, []byte("v2"), remove.Old.Raw())

	_, ok = get(t, mapService, "a", "k")
	require.False(t, ok)

	stats, err := mapService.Stats("a")
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Puts)
	require.Equal(t, int64(1), stats.Updates)
	require.Equal(t, int64(1), stats.Removes)
	require.Equal(t, int64(0), stats.Entries)
}

func TestInvokeErrors(t *testing.T) {
	mapService := newService(t, "partition_count: 4\nowned_partitions: [0, 1]\nmaps: [{name: a}]\n", nil)

	err := mapService.Invoke(context.Background(), &operation.Get{Keyed: operation.Keyed{Map: "b", Key: []byte("k")}})
	require.True(t, errors.Is(err, service.ErrNoSuchMap))

	var foreign []byte

	for i := 0; foreign == nil; i++ {
		key := []byte(fmt.Sprintf("key-%d", i))

		if !mapService.Owns(mapService.PartitionFor(key)) {
			foreign = key
		}
	}

	err = mapService.Invoke(context.Background(), &operation.Get{Keyed: operation.Keyed{Map: "a", Key: foreign}})
	require.True(t, errors.Is(err, service.ErrNotOwner))

	err = mapService.Invoke(context.Background(), &operation.Clear{Partitioned: operation.Partitioned{Map: "a", Partition: 9}})
	require.Error(t, err)

	_, err = mapService.Stats("b")
	require.True(t, errors.Is(err, service.ErrNoSuchMap))
}

func TestEviction(t *testing.T) {
	mapService := newService(t, `
partition_count: 1
maps:
  - name: bounded
    eviction:
      policy: lru
      max_size:
        - kind: per_partition
          value: 2
`, nil)

	put(t, mapService, "bounded", "A", "1")
	put(t, mapService, "bounded", "B", "2")
	put(t, mapService, "bounded", "C", "3")

	stats, err := mapService.Stats("bounded")
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Evictions)
	require.Equal(t, int64(2), stats.Entries)

	_, ok := get(t, mapService, "bounded", "A")
	require.False(t, ok)
	_, ok = get(t, mapService, "bounded", "C")
	require.True(t, ok)
}

func TestTriggerLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backing.db")
	backing, err := bbolt.Open(bbolt.Config{Path: path})
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		require.NoError(t, backing.Put("loaded", []byte(fmt.Sprintf("key-%d", i)), []byte(fmt.Sprintf("value-%d", i))))
	}

	require.NoError(t, backing.Close())

	mapService := newService(t, fmt.Sprintf(`
partition_count: 3
maps:
  - name: loaded
    loader:
      type: bbolt
      path: %s
`, path), nil)

	alreadyLoaded, err := mapService.TriggerLoad(context.Background(), "loaded")
	require.NoError(t, err)
	require.False(t, alreadyLoaded)

	require.Eventually(t, func() bool {
		alreadyLoaded, err := mapService.TriggerLoad(context.Background(), "loaded")

		return err == nil && alreadyLoaded
	}, 5*time.Second, 10*time.Millisecond)

	for i := 0; i < 20; i++ {
		value, ok := get(t, mapService, "loaded", fmt.Sprintf("key-%d", i))
		require.True(t, ok)
		require.Equal(t, fmt.Sprintf("value-%d", i), value)
	}

	stats, err := mapService.Stats("loaded")
	require.NoError(t, err)
	require.Equal(t, int64(20), stats.Loads)
	require.Equal(t, int64(20), stats.Entries)
}

func TestObservers(t *testing.T) {
	mapService := newService(t, `
partition_count: 2
maps:
  - name: users
    serializer: json
    index:
      attribute: color
    near_cache: true
    wan:
      enabled: true
`, nil)

	var mu sync.Mutex
	var invalidated []string
	var added []string

	broadcaster, err := mapService.NearCache("users")
	require.NoError(t, err)

	unregister := broadcaster.Register(nearcache.ListenerFunc(func(invalidation nearcache.Invalidation) {
		mu.Lock()
		defer mu.Unlock()

		invalidated = append(invalidated, string(invalidation.Key))
	}))
	defer unregister()

	mapService.RegisterObserverFactory(func(mapName string, partitionID int, backup bool) mutation.Observer {
		return querycache.New(func(key []byte, value interface{}) bool {
			return value.(map[string]interface{})["color"] == "red"
		}, record.JSONSerializer{}, func(event querycache.Event) {
			if event.Type != querycache.Added {
				return
			}

			mu.Lock()
			defer mu.Unlock()

			added = append(added, string(event.Key))
		})
	})

	put(t, mapService, "users", "alice", `{"color":"red"}`)
	put(t, mapService, "users", "bob", `{"color":"blue"}`)
	put(t, mapService, "users", "carol", `{"color":"red"}`)

	keys, err := mapService.IndexKeys(context.Background(), "users", "red")
	require.NoError(t, err)
	require.ElementsMatch(t, [][]byte{[]byte("alice"), []byte("carol")}, keys)

	mu.Lock()
	require.ElementsMatch(t, []string{"alice", "bob", "carol"}, invalidated)
	require.ElementsMatch(t, []string{"alice", "carol"}, added)
	mu.Unlock()

	_, err = mapService.IndexKeys(context.Background(), "missing", "red")
	require.True(t, errors.Is(err, service.ErrNoSuchMap))
	_, err = mapService.NearCache("missing")
	require.True(t, errors.Is(err, service.ErrNoSuchMap))
}

func TestMigrateOutAndRollback(t *testing.T) {
	mapService := newService(t, "partition_count: 1\nmaps: [{name: a}, {name: b}]\n", nil)

	put(t, mapService, "a", "k", "v")
	put(t, mapService, "b", "k", "v")
	require.NoError(t, mapService.Rollback(context.Background(), 0))

	_, ok := get(t, mapService, "a", "k")
	require.False(t, ok)

	put(t, mapService, "a", "k", "v")
	require.NoError(t, mapService.MigrateOut(context.Background(), 0))

	_, ok = get(t, mapService, "a", "k")
	require.False(t, ok)
	_, ok = get(t, mapService, "b", "k")
	require.False(t, ok)
}

func TestSnapshot(t *testing.T) {
	mapService := newService(t, "partition_count: 1\nmaps: [{name: a}, {name: b}]\n", nil)

	put(t, mapService, "a", "x", "1")
	put(t, mapService, "a", "y", "2")

	snap, err := mapService.Snapshot(context.Background(), "a", 0)
	require.NoError(t, err)
	defer snap.Close()

	require.NoError(t, mapService.ApplySnapshot(context.Background(), "b", 0, snap))

	value, ok := get(t, mapService, "b", "x")
	require.True(t, ok)
	require.Equal(t, "1", value)
	value, ok = get(t, mapService, "b", "y")
	require.True(t, ok)
	require.Equal(t, "2", value)

	stats, err := mapService.Stats("b")
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.Replications)
}

func TestClear(t *testing.T) {
	mapService := newService(t, "partition_count: 4\nmaps: [{name: a}]\n", nil)

	for i := 0; i < 10; i++ {
		put(t, mapService, "a", fmt.Sprintf("key-%d", i), "v")
	}

	cleared, err := mapService.Clear(context.Background(), "a")
	require.NoError(t, err)
	require.Equal(t, 10, cleared)
}

func TestExpirySweep(t *testing.T) {
	c := &clock{now: time.Unix(1000, 0)}
	mapService := newService(t, "partition_count: 2\nexpiry_interval: 10ms\nmaps: [{name: a, ttl: 1m}]\n", c)

	put(t, mapService, "a", "k1", "v")
	put(t, mapService, "a", "k2", "v")
	c.Advance(2 * time.Minute)

	require.Eventually(t, func() bool {
		stats, err := mapService.Stats("a")

		return err == nil && stats.Evictions == 2
	}, 5*time.Second, 10*time.Millisecond)
}

func TestShutdown(t *testing.T) {
	mapService := newService(t, "partition_count: 2\nmaps: [{name: a}]\n", nil)

	put(t, mapService, "a", "k", "v")
	mapService.Shutdown()
	mapService.Shutdown()

	err := mapService.Invoke(context.Background(), &operation.Get{Keyed: operation.Keyed{Map: "a", Key: []byte("k")}})
	require.True(t, errors.Is(err, service.ErrClosed))
}
