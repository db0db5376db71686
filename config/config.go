// Package config loads the configuration of a node
package config

import (
	"errors"
	"fmt"
	"io/ioutil"
	"runtime"
	"time"

	"github.com/jrife/murre/storage/eviction"
	"github.com/jrife/murre/storage/loader/bbolt"
	"github.com/jrife/murre/storage/record"
	"github.com/jrife/murre/utils/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v2"
)

const (
	// DefaultPartitionCount is the number of partitions of every map
	DefaultPartitionCount = 271
	// DefaultRESTAddr is the REST frontend's listen address
	DefaultRESTAddr = ":8080"
	// DefaultGRPCAddr is the gRPC frontend's listen address
	DefaultGRPCAddr = ":9090"
	// DefaultExpiryInterval is the period of the TTL sweep
	DefaultExpiryInterval = time.Second
)

// ErrInvalidConfig is wrapped by every validation error
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the configuration of a node
type Config struct {
	MemberID         string        `yaml:"member_id"`
	PartitionCount   int           `yaml:"partition_count"`
	PartitionThreads int           `yaml:"partition_threads"`
	OwnedPartitions  []int         `yaml:"owned_partitions"`
	BackupPartitions []int         `yaml:"backup_partitions"`
	RESTAddr         string        `yaml:"rest_addr"`
	GRPCAddr         string        `yaml:"grpc_addr"`
	LogLevel         string        `yaml:"log_level"`
	ExpiryInterval   time.Duration `yaml:"expiry_interval"`
	Maps             []MapConfig   `yaml:"maps"`
}

// MapConfig configures one map
type MapConfig struct {
	Name string `yaml:"name"`
	// TTL is the default time to live of entries. Zero
	// means entries never expire.
	TTL time.Duration `yaml:"ttl"`
	// Serializer is "raw" or "json"
	Serializer string         `yaml:"serializer"`
	Eviction   EvictionConfig `yaml:"eviction"`
	Loader     *LoaderConfig  `yaml:"loader"`
	Index      *IndexConfig   `yaml:"index"`
	WAN        WANConfig      `yaml:"wan"`
	NearCache  bool           `yaml:"near_cache"`
	Statistics *bool          `yaml:"statistics"`
}

// EvictionConfig configures a map's eviction
type EvictionConfig struct {
	// Policy is "lru", "lfu" or "random"
	Policy     string          `yaml:"policy"`
	Operator   string          `yaml:"operator"`
	BatchSize  int             `yaml:"batch_size"`
	SampleSize int             `yaml:"sample_size"`
	MaxSize    []MaxSizeConfig `yaml:"max_size"`
}

// MaxSizeConfig is one max size criterion
type MaxSizeConfig struct {
	Kind  string `yaml:"kind"`
	Value int    `yaml:"value"`
}

// LoaderConfig configures the backing store of a map
type LoaderConfig struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`
}

// IndexConfig configures the secondary index of a map
type IndexConfig struct {
	Attribute string `yaml:"attribute"`
}

// WANConfig configures WAN replication of a map
type WANConfig struct {
	Enabled   bool `yaml:"enabled"`
	QueueSize int  `yaml:"queue_size"`
}

// Default returns a configuration with every default applied
func Default() Config {
	config := Config{}
	config.applyDefaults()

	return config
}

// Load reads and validates the configuration file at path
func Load(path string) (Config, error) {
	data, err := ioutil.ReadFile(path)

	if err != nil {
		return Config{}, fmt.Errorf("could not read %s: %s", path, err.Error())
	}

	return Parse(data)
}

// Parse decodes and validates a YAML configuration
func Parse(data []byte) (Config, error) {
	var config Config

	if err := yaml.UnmarshalStrict(data, &config); err != nil {
		return Config{}, fmt.Errorf("could not decode configuration: %s: %w", err.Error(), ErrInvalidConfig)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

func (config *Config) applyDefaults() {
	if config.MemberID == "" {
		config.MemberID = uuid.MustUUID()
	}

	if config.PartitionCount == 0 {
		config.PartitionCount = DefaultPartitionCount
	}

	if config.PartitionThreads == 0 {
		config.PartitionThreads = runtime.NumCPU()
	}

	if config.OwnedPartitions == nil {
		config.OwnedPartitions = make([]int, config.PartitionCount)

		for i := range config.OwnedPartitions {
			config.OwnedPartitions[i] = i
		}
	}

	if config.RESTAddr == "" {
		config.RESTAddr = DefaultRESTAddr
	}

	if config.GRPCAddr == "" {
		config.GRPCAddr = DefaultGRPCAddr
	}

	if config.LogLevel == "" {
		config.LogLevel = "info"
	}

	if config.ExpiryInterval == 0 {
		config.ExpiryInterval = DefaultExpiryInterval
	}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidConfig)
}

// Validate checks the configuration
func (config Config) Validate() error {
	if config.PartitionCount <= 0 {
		return invalid("partition_count must be > 0")
	}

	if config.PartitionThreads <= 0 {
		return invalid("partition_threads must be > 0")
	}

	if config.ExpiryInterval < 0 {
		return invalid("expiry_interval must be >= 0")
	}

	if _, err := zapcore.ParseLevel(config.LogLevel); err != nil {
		return invalid("log_level: %s", err.Error())
	}

	owned := map[int]bool{}

	for _, partition := range config.OwnedPartitions {
		if partition < 0 || partition >= config.PartitionCount {
			return invalid("owned partition %d is out of range", partition)
		}

		owned[partition] = true
	}

	for _, partition := range config.BackupPartitions {
		if partition < 0 || partition >= config.PartitionCount {
			return invalid("backup partition %d is out of range", partition)
		}

		if owned[partition] {
			return invalid("partition %d can't be both owned and a backup", partition)
		}
	}

	names := map[string]bool{}

	for _, mapConfig := range config.Maps {
		if mapConfig.Name == "" {
			return invalid("map name is required")
		}

		if names[mapConfig.Name] {
			return invalid("map %s is configured twice", mapConfig.Name)
		}

		names[mapConfig.Name] = true

		if err := mapConfig.validate(config.PartitionCount); err != nil {
			return invalid("map %s: %s", mapConfig.Name, err.Error())
		}
	}

	return nil
}

func (mapConfig MapConfig) validate(partitionCount int) error {
	if mapConfig.TTL < 0 {
		return fmt.Errorf("ttl must be >= 0")
	}

	if _, err := mapConfig.RecordSerializer(); err != nil {
		return err
	}

	if _, err := eviction.ParseSelector(mapConfig.Eviction.Policy); err != nil {
		return err
	}

	policy, err := mapConfig.EvictionPolicy(partitionCount)

	if err != nil {
		return err
	}

	if _, err := policy.Checker(eviction.Sources{Count: func() int { return 0 }, Heap: eviction.Unbounded}); err != nil {
		return err
	}

	if mapConfig.Loader != nil {
		if mapConfig.Loader.Type != bbolt.DriverName {
			return fmt.Errorf("unknown loader type %q", mapConfig.Loader.Type)
		}

		if mapConfig.Loader.Path == "" {
			return fmt.Errorf("loader path is required")
		}
	}

	if mapConfig.Index != nil && mapConfig.Index.Attribute == "" {
		return fmt.Errorf("index attribute is required")
	}

	if mapConfig.Index != nil && mapConfig.Serializer != "json" {
		return fmt.Errorf("an index requires the json serializer")
	}

	return nil
}

// Map returns the configuration of the named map
func (config Config) Map(name string) (MapConfig, bool) {
	for _, mapConfig := range config.Maps {
		if mapConfig.Name == name {
			return mapConfig, true
		}
	}

	return MapConfig{}, false
}

// Logger builds the node's logger at the configured level
func (config Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(config.LogLevel)

	if err != nil {
		return nil, err
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	return zapConfig.Build()
}

// EvictionPolicy translates the eviction configuration
func (mapConfig MapConfig) EvictionPolicy(partitionCount int) (eviction.Policy, error) {
	policy := eviction.Policy{PartitionCount: partitionCount}

	if mapConfig.Eviction.Operator != "" {
		op, err := eviction.ParseOperator(mapConfig.Eviction.Operator)

		if err != nil {
			return eviction.Policy{}, err
		}

		policy.Operator = op
	}

	for _, maxSize := range mapConfig.Eviction.MaxSize {
		kind, err := eviction.ParseMaxSizeKind(maxSize.Kind)

		if err != nil {
			return eviction.Policy{}, err
		}

		policy.MaxSize = append(policy.MaxSize, eviction.MaxSize{Kind: kind, Value: maxSize.Value})
	}

	return policy, nil
}

// RecordSerializer returns the serializer of the map's values
func (mapConfig MapConfig) RecordSerializer() (record.Serializer, error) {
	switch mapConfig.Serializer {
	case "", "raw":
		return record.RawSerializer{}, nil
	case "json":
		return record.JSONSerializer{}, nil
	}

	return nil, fmt.Errorf("unknown serializer %q", mapConfig.Serializer)
}

// StatisticsEnabled returns true unless statistics were disabled
func (mapConfig MapConfig) StatisticsEnabled() bool {
	return mapConfig.Statistics == nil || *mapConfig.Statistics
}
