// Package wan publishes the changes made to a map's primary
// replicas to a remote cluster.
package wan

import (
	"context"
	"errors"
	"sync"

	"github.com/jrife/murre/storage/mutation"
	"github.com/jrife/murre/storage/record"
	"go.uber.org/zap"
)

const defaultQueueSize = 10000

// ErrQueueFull is returned by an observer callback when the
// event queue is full. The event is dropped.
var ErrQueueFull = errors.New("wan event queue is full")

// EventType is the kind of change an event describes
type EventType int

const (
	// Put is an insert of a new key
	Put EventType = iota
	// Update is a change to an existing key
	Update
	// Remove is a removal of a key
	Remove
)

func (eventType EventType) String() string {
	switch eventType {
	case Put:
		return "put"
	case Update:
		return "update"
	case Remove:
		return "remove"
	}

	return "unknown"
}

// Event is one replicated change
type Event struct {
	Type    EventType
	Map     string
	Key     []byte
	Value   []byte
	Version int64
}

// Target receives published events. Replicate is called
// from a single goroutine.
type Target interface {
	Replicate(ctx context.Context, event Event) error
}

// TargetFunc adapts a function to Target
type TargetFunc func(ctx context.Context, event Event) error

// Replicate implements Target.Replicate
func (f TargetFunc) Replicate(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// LogTarget writes events to a logger
func LogTarget(logger *zap.Logger) Target {
	return TargetFunc(func(ctx context.Context, event Event) error {
		logger.Info("wan event", zap.String("map", event.Map), zap.Stringer("type", event.Type), zap.Binary("key", event.Key), zap.Int64("version", event.Version))

		return nil
	})
}

// Config configures a Publisher
type Config struct {
	Map        string
	QueueSize  int
	Target     Target
	Serializer record.Serializer
	Logger     *zap.Logger
}

var _ mutation.Observer = (*Publisher)(nil)

// Publisher queues the changes of a map and replicates them to
// a target from a background goroutine. One publisher is shared
// by every record store of a map. Writes flagged as backup
// writes, evictions, loads and replication puts aren't published.
type Publisher struct {
	mapName    string
	queue      chan Event
	target     Target
	serializer record.Serializer
	logger     *zap.Logger
	startOnce  sync.Once
	stopOnce   sync.Once
	stop       chan struct{}
	done       chan struct{}
}

// New creates a publisher. Call Start to begin replicating.
func New(config Config) *Publisher {
	if config.QueueSize <= 0 {
		config.QueueSize = defaultQueueSize
	}

	if config.Serializer == nil {
		config.Serializer = record.RawSerializer{}
	}

	if config.Logger == nil {
		config.Logger = zap.L()
	}

	return &Publisher{
		mapName:    config.Map,
		queue:      make(chan Event, config.QueueSize),
		target:     config.Target,
		serializer: config.Serializer,
		logger:     config.Logger.With(zap.String("map", config.Map), zap.String("component", "wan")),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start replicates queued events until Stop is called
func (publisher *Publisher) Start() {
	publisher.startOnce.Do(func() {
		go publisher.run()
	})
}

// Stop stops replicating and waits for the in-flight event.
// Queued events are discarded.
func (publisher *Publisher) Stop() {
	// A publisher that never started has nothing to wait for
	publisher.startOnce.Do(func() {
		close(publisher.done)
	})

	publisher.stopOnce.Do(func() {
		close(publisher.stop)
	})

	<-publisher.done
}

// Pending returns the number of queued events
func (publisher *Publisher) Pending() int {
	return len(publisher.queue)
}

func (publisher *Publisher) run() {
	defer close(publisher.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-publisher.stop
		cancel()
	}()

	for {
		select {
		case event := <-publisher.queue:
			if err := publisher.target.Replicate(ctx, event); err != nil {
				publisher.logger.Warn("could not replicate event", zap.Stringer("type", event.Type), zap.Binary("key", event.Key), zap.Error(err))
			}
		case <-publisher.stop:
			return
		}
	}
}

func (publisher *Publisher) publish(eventType EventType, key []byte, rec *record.Record) error {
	event := Event{Type: eventType, Map: publisher.mapName, Key: key, Version: rec.Version}

	if eventType != Remove {
		value, err := rec.Value.Bytes(publisher.serializer)

		if err != nil {
			return err
		}

		event.Value = value
	}

	select {
	case publisher.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// OnClear implements mutation.Observer.OnClear
func (publisher *Publisher) OnClear() error {
	return nil
}

// OnPutRecord implements mutation.Observer.OnPutRecord
func (publisher *Publisher) OnPutRecord(key []byte, rec *record.Record, oldValue *record.Value, backup bool) error {
	if backup {
		return nil
	}

	return publisher.publish(Put, key, rec)
}

// OnReplicationPutRecord implements mutation.Observer.OnReplicationPutRecord
func (publisher *Publisher) OnReplicationPutRecord(key []byte, rec *record.Record, populateIndex bool) error {
	return nil
}

// OnUpdateRecord implements mutation.Observer.OnUpdateRecord
func (publisher *Publisher) OnUpdateRecord(key []byte, rec *record.Record, oldValue, newValue *record.Value, backup bool) error {
	if backup {
		return nil
	}

	return publisher.publish(Update, key, rec)
}

// OnRemoveRecord implements mutation.Observer.OnRemoveRecord
func (publisher *Publisher) OnRemoveRecord(key []byte, rec *record.Record) error {
	return publisher.publish(Remove, key, rec)
}

// OnEvictRecord implements mutation.Observer.OnEvictRecord
func (publisher *Publisher) OnEvictRecord(key []byte, rec *record.Record) error {
	return nil
}

// OnLoadRecord implements mutation.Observer.OnLoadRecord
func (publisher *Publisher) OnLoadRecord(key []byte, rec *record.Record, backup bool) error {
	return nil
}

// OnDestroy implements mutation.Observer.OnDestroy
func (publisher *Publisher) OnDestroy(isDuringShutdown bool, internal bool) error {
	return nil
}

// OnReset implements mutation.Observer.OnReset
func (publisher *Publisher) OnReset() error {
	return nil
}
