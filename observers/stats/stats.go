// Package stats collects per partition statistics of a map
// and exports them as Prometheus metrics.
package stats

import (
	"sync/atomic"

	"github.com/jrife/murre/storage/mutation"
	"github.com/jrife/murre/storage/record"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the node wide metrics shared by every collector
type Metrics struct {
	events  *prometheus.CounterVec
	entries *prometheus.GaugeVec
}

// NewMetrics creates the metrics and registers them with registerer
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "murre",
				Name:      "map_events_total",
				Help:      "Total number of record store mutations",
			},
			[]string{"map", "event", "replica"},
		),
		entries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "murre",
				Name:      "map_entries",
				Help:      "Number of entries held by this node",
			},
			[]string{"map", "replica"},
		),
	}
}

// Entries returns the entry gauge of a map for a replica
// kind, "primary" or "backup"
func (metrics *Metrics) Entries(mapName, replica string) prometheus.Gauge {
	return metrics.entries.WithLabelValues(mapName, replica)
}

// LocalStats are the statistics of one record store
type LocalStats struct {
	Puts         int64
	Updates      int64
	Removes      int64
	Evictions    int64
	Loads        int64
	Replications int64
	// BackupWrites counts puts, updates and loads
	// flagged as backup writes
	BackupWrites int64
	Entries      int64
}

// Config configures a Collector
type Config struct {
	Map     string
	Backup  bool
	Metrics *Metrics
	// Size returns the entry count of the observed store
	Size func() int
}

var _ mutation.Observer = (*Collector)(nil)

// Collector is the statistics observer of one record store.
// Stats can be read from any goroutine.
type Collector struct {
	mapName string
	replica string
	metrics *Metrics
	size    func() int

	puts         int64
	updates      int64
	removes      int64
	evictions    int64
	loads        int64
	replications int64
	backupWrites int64
	entries      int64
}

// New creates a collector
func New(config Config) *Collector {
	replica := "primary"

	if config.Backup {
		replica = "backup"
	}

	return &Collector{
		mapName: config.Map,
		replica: replica,
		metrics: config.Metrics,
		size:    config.Size,
	}
}

// Stats returns a copy of the current statistics
func (collector *Collector) Stats() LocalStats {
	return LocalStats{
		Puts:         atomic.LoadInt64(&collector.puts),
		Updates:      atomic.LoadInt64(&collector.updates),
		Removes:      atomic.LoadInt64(&collector.removes),
		Evictions:    atomic.LoadInt64(&collector.evictions),
		Loads:        atomic.LoadInt64(&collector.loads),
		Replications: atomic.LoadInt64(&collector.replications),
		BackupWrites: atomic.LoadInt64(&collector.backupWrites),
		Entries:      atomic.LoadInt64(&collector.entries),
	}
}

func (collector *Collector) count(counter *int64, event string, backup bool) {
	atomic.AddInt64(counter, 1)

	if backup {
		atomic.AddInt64(&collector.backupWrites, 1)
	}

	if collector.metrics != nil {
		collector.metrics.events.WithLabelValues(collector.mapName, event, collector.replica).Inc()
	}

	collector.sample()
}

// sample moves the entry gauge by the change in store size
// since the last sample
func (collector *Collector) sample() {
	if collector.size == nil {
		return
	}

	collector.setEntries(int64(collector.size()))
}

func (collector *Collector) setEntries(entries int64) {
	previous := atomic.SwapInt64(&collector.entries, entries)

	if collector.metrics != nil && entries != previous {
		collector.metrics.entries.WithLabelValues(collector.mapName, collector.replica).Add(float64(entries - previous))
	}
}

// OnClear implements mutation.Observer.OnClear
func (collector *Collector) OnClear() error {
	collector.setEntries(0)

	return nil
}

// OnPutRecord implements mutation.Observer.OnPutRecord
func (collector *Collector) OnPutRecord(key []byte, rec *record.Record, oldValue *record.Value, backup bool) error {
	collector.count(&collector.puts, "put", backup)

	return nil
}

// OnReplicationPutRecord implements mutation.Observer.OnReplicationPutRecord
func (collector *Collector) OnReplicationPutRecord(key []byte, rec *record.Record, populateIndex bool) error {
	collector.count(&collector.replications, "replication", false)

	return nil
}

// OnUpdateRecord implements mutation.Observer.OnUpdateRecord
func (collector *Collector) OnUpdateRecord(key []byte, rec *record.Record, oldValue, newValue *record.Value, backup bool) error {
	collector.count(&collector.updates, "update", backup)

	return nil
}

// OnRemoveRecord implements mutation.Observer.OnRemoveRecord
func (collector *Collector) OnRemoveRecord(key []byte, rec *record.Record) error {
	collector.count(&collector.removes, "remove", false)

	return nil
}

// OnEvictRecord implements mutation.Observer.OnEvictRecord
func (collector *Collector) OnEvictRecord(key []byte, rec *record.Record) error {
	collector.count(&collector.evictions, "evict", false)

	return nil
}

// OnLoadRecord implements mutation.Observer.OnLoadRecord
func (collector *Collector) OnLoadRecord(key []byte, rec *record.Record, backup bool) error {
	collector.count(&collector.loads, "load", backup)

	return nil
}

// OnDestroy implements mutation.Observer.OnDestroy
func (collector *Collector) OnDestroy(isDuringShutdown bool, internal bool) error {
	collector.setEntries(0)

	return nil
}

// OnReset implements mutation.Observer.OnReset
func (collector *Collector) OnReset() error {
	collector.setEntries(0)

	return nil
}
