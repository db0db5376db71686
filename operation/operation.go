// Package operation defines the partition routed operations a
// map service runs against record stores.
package operation

import (
	"context"
	"time"

	"github.com/jrife/murre/storage/record"
	"github.com/jrife/murre/storage/recordstore"
)

// Operation runs against the record store of one partition of
// a map. Operations carry their response in their own fields.
type Operation interface {
	// Name names the operation in logs and traces
	Name() string
	MapName() string
	// PartitionKey returns the key the operation is routed by.
	// It returns false for an operation addressed to a partition.
	PartitionKey() ([]byte, bool)
	// PartitionID returns the partition of an operation that
	// isn't routed by key
	PartitionID() int
	// ReadOnly returns true if the operation never mutates
	ReadOnly() bool
	Run(ctx context.Context, store recordstore.RecordStore) error
}

// Keyed is embedded by operations routed by key
type Keyed struct {
	Map string
	Key []byte
}

// MapName implements Operation.MapName
func (keyed *Keyed) MapName() string {
	return keyed.Map
}

// PartitionKey implements Operation.PartitionKey
func (keyed *Keyed) PartitionKey() ([]byte, bool) {
	return keyed.Key, true
}

// PartitionID implements Operation.PartitionID
func (keyed *Keyed) PartitionID() int {
	return -1
}

// Partitioned is embedded by operations addressed to a partition
type Partitioned struct {
	Map       string
	Partition int
}

// MapName implements Operation.MapName
func (partitioned *Partitioned) MapName() string {
	return partitioned.Map
}

// PartitionKey implements Operation.PartitionKey
func (partitioned *Partitioned) PartitionKey() ([]byte, bool) {
	return nil, false
}

// PartitionID implements Operation.PartitionID
func (partitioned *Partitioned) PartitionID() int {
	return partitioned.Partition
}

var _ Operation = (*Put)(nil)

// Put writes a value
type Put struct {
	Keyed
	Value []byte
	// TTL defaults to the map's TTL
	TTL    time.Duration
	HasTTL bool
	Backup bool
	// Old is the previous value, if any
	Old *record.Value
}

// Name implements Operation.Name
func (op *Put) Name() string {
	return "Put"
}

// ReadOnly implements Operation.ReadOnly
func (op *Put) ReadOnly() bool {
	return false
}

// Run implements Operation.Run
func (op *Put) Run(ctx context.Context, store recordstore.RecordStore) error {
	ttl := recordstore.UseDefaultTTL

	if op.HasTTL {
		ttl = op.TTL
	}

	old, err := store.Put(op.Key, record.Bytes(op.Value), ttl, op.Backup)
	op.Old = old

	return err
}

var _ Operation = (*Get)(nil)

// Get reads a value
type Get struct {
	Keyed
	Value interface{}
	Found bool
}

// Name implements Operation.Name
func (op *Get) Name() string {
	return "Get"
}

// ReadOnly implements Operation.ReadOnly. Reads update access
// metadata and evict expired entries but never change values.
func (op *Get) ReadOnly() bool {
	return true
}

// Run implements Operation.Run
func (op *Get) Run(ctx context.Context, store recordstore.RecordStore) error {
	value, found, err := store.Get(op.Key)
	op.Value = value
	op.Found = found

	return err
}

var _ Operation = (*Remove)(nil)

// Remove deletes a key
type Remove struct {
	Keyed
	Old *record.Value
}

// Name implements Operation.Name
func (op *Remove) Name() string {
	return "Remove"
}

// ReadOnly implements Operation.ReadOnly
func (op *Remove) ReadOnly() bool {
	return false
}

// Run implements Operation.Run
func (op *Remove) Run(ctx context.Context, store recordstore.RecordStore) error {
	old, err := store.Remove(op.Key)
	op.Old = old

	return err
}

var _ Operation = (*Evict)(nil)

// Evict evicts a key
type Evict struct {
	Keyed
	Evicted bool
}

// Name implements Operation.Name
func (op *Evict) Name() string {
	return "Evict"
}

// ReadOnly implements Operation.ReadOnly
func (op *Evict) ReadOnly() bool {
	return false
}

// Run implements Operation.Run
func (op *Evict) Run(ctx context.Context, store recordstore.RecordStore) error {
	evicted, err := store.Evict(op.Key)
	op.Evicted = evicted

	return err
}

var _ Operation = (*Clear)(nil)

// Clear removes every entry of a partition
type Clear struct {
	Partitioned
	Cleared int
}

// Name implements Operation.Name
func (op *Clear) Name() string {
	return "Clear"
}

// ReadOnly implements Operation.ReadOnly
func (op *Clear) ReadOnly() bool {
	return false
}

// Run implements Operation.Run
func (op *Clear) Run(ctx context.Context, store recordstore.RecordStore) error {
	cleared, err := store.Clear()
	op.Cleared = cleared

	return err
}

var _ Operation = (*TriggerLoadIfNeeded)(nil)

// TriggerLoadIfNeeded starts the initial load of a partition's
// record store unless it was already started. AlreadyLoaded
// reports whether the store was loaded before the operation ran.
type TriggerLoadIfNeeded struct {
	Partitioned
	AlreadyLoaded bool
}

// Name implements Operation.Name
func (op *TriggerLoadIfNeeded) Name() string {
	return "TriggerLoadIfNeeded"
}

// ReadOnly implements Operation.ReadOnly
func (op *TriggerLoadIfNeeded) ReadOnly() bool {
	return true
}

// Run implements Operation.Run
func (op *TriggerLoadIfNeeded) Run(ctx context.Context, store recordstore.RecordStore) error {
	alreadyLoaded, err := store.TriggerLoadIfNeeded(ctx)
	op.AlreadyLoaded = alreadyLoaded

	return err
}

var _ Operation = (*EvictExpired)(nil)

// EvictExpired evicts the expired entries of a partition
type EvictExpired struct {
	Partitioned
	// Limit bounds the evictions. <= 0 evicts every expired entry.
	Limit   int
	Now     time.Time
	Evicted int
}

// Name implements Operation.Name
func (op *EvictExpired) Name() string {
	return "EvictExpired"
}

// ReadOnly implements Operation.ReadOnly
func (op *EvictExpired) ReadOnly() bool {
	return false
}

// Run implements Operation.Run
func (op *EvictExpired) Run(ctx context.Context, store recordstore.RecordStore) error {
	now := op.Now

	if now.IsZero() {
		now = time.Now()
	}

	evicted, err := store.EvictExpired(now, op.Limit)
	op.Evicted = evicted

	return err
}
