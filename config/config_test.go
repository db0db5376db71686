package config_test

import (
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jrife/murre/config"
	"github.com/jrife/murre/storage/eviction"
	"github.com/jrife/murre/utils/uuid"
	"github.com/stretchr/testify/require"
)

const sample = `
member_id: 6f1c1d1e-0a8b-4b44-9a57-5d1f6f0c2a11
partition_count: 8
partition_threads: 2
owned_partitions: [0, 1, 2, 3]
backup_partitions: [4, 5]
log_level: debug
expiry_interval: 500ms
maps:
  - name: sessions
    ttl: 30m
    serializer: json
    eviction:
      policy: lfu
      operator: or
      batch_size: 8
      max_size:
        - kind: per_node
          value: 800
        - kind: free_heap_percentage
          value: 10
    loader:
      type: bbolt
      path: /var/lib/murre/sessions.db
    index:
      attribute: user
    wan:
      enabled: true
      queue_size: 100
    near_cache: true
    statistics: false
  - name: blobs
`

func TestParse(t *testing.T) {
	cfg, err := config.Parse([]byte(sample))
	require.NoError(t, err)

	require.Equal(t, "6f1c1d1e-0a8b-4b44-9a57-5d1f6f0c2a11", cfg.MemberID)
	require.Equal(t, 8, cfg.PartitionCount)
	require.Equal(t, []int{0, 1, 2, 3}, cfg.OwnedPartitions)
	require.Equal(t, []int{4, 5}, cfg.BackupPartitions)
	require.Equal(t, 500*time.Millisecond, cfg.ExpiryInterval)
	require.Equal(t, config.DefaultRESTAddr, cfg.RESTAddr)

	sessions, ok := cfg.Map("sessions")
	require.True(t, ok)
	require.Equal(t, 30*time.Minute, sessions.TTL)
	require.False(t, sessions.StatisticsEnabled())
	require.Equal(t, "user", sessions.Index.Attribute)
	require.Equal(t, 100, sessions.WAN.QueueSize)

	policy, err := sessions.EvictionPolicy(cfg.PartitionCount)
	require.NoError(t, err)
	require.Equal(t, eviction.Policy{
		Operator:       eviction.Or,
		PartitionCount: 8,
		MaxSize: []eviction.MaxSize{
			{Kind: eviction.PerNode, Value: 800},
			{Kind: eviction.FreeHeapPercentage, Value: 10},
		},
	}, policy)

	blobs, ok := cfg.Map("blobs")
	require.True(t, ok)
	require.True(t, blobs.StatisticsEnabled())
	require.False(t, blobs.NearCache)
	require.Nil(t, blobs.Loader)
}

func TestDefaults(t *testing.T) {
	cfg := config.Default()

	require.True(t, uuid.Valid(cfg.MemberID))
	require.Equal(t, config.DefaultPartitionCount, cfg.PartitionCount)
	require.Equal(t, runtime.NumCPU(), cfg.PartitionThreads)
	require.Len(t, cfg.OwnedPartitions, config.DefaultPartitionCount)
	require.Equal(t, "info", cfg.LogLevel)
	require.NoError(t, cfg.Validate())

	logger, err := cfg.Logger()
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestInvalid(t *testing.T) {
	testCases := map[string]string{
		"unknown-field":       "bogus: 1",
		"owned-out-of-range":  "partition_count: 4\nowned_partitions: [4]",
		"owned-and-backup":    "partition_count: 4\nowned_partitions: [1]\nbackup_partitions: [1]",
		"bad-log-level":       "log_level: loud",
		"unnamed-map":         "maps: [{ttl: 1s}]",
		"duplicate-map":       "maps: [{name: a}, {name: a}]",
		"bad-operator":        "maps: [{name: a, eviction: {operator: xor}}]",
		"bad-kind":            "maps: [{name: a, eviction: {max_size: [{kind: bogus, value: 1}]}}]",
		"missing-operator":    "maps: [{name: a, eviction: {max_size: [{kind: per_partition, value: 1}, {kind: per_node, value: 1}]}}]",
		"bad-percentage":      "maps: [{name: a, eviction: {max_size: [{kind: used_heap_percentage, value: 150}]}}]",
		"bad-policy":          "maps: [{name: a, eviction: {policy: fifo}}]",
		"bad-loader":          "maps: [{name: a, loader: {type: redis, path: x}}]",
		"loader-without-path": "maps: [{name: a, loader: {type: bbolt}}]",
		"index-without-json":  "maps: [{name: a, index: {attribute: x}}]",
		"unknown-serializer":  "maps: [{name: a, serializer: xml}]",
	}

	for name, data := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := config.Parse([]byte(data))

			require.Error(t, err)
			require.True(t, errors.Is(err, config.ErrInvalidConfig), "expected ErrInvalidConfig, got %v", err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir, err := ioutil.TempDir("", "murre-config")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "murre.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte(sample), 0644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Maps, 2)

	_, err = config.Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
