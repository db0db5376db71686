package record

import (
	"time"
)

// Record is one stored entry of a record store. Records
// are owned by exactly one record store and must only be
// mutated by the goroutine that owns that store's partition.
type Record struct {
	// Key is the serialized key. It is the identity
	// of the record.
	Key []byte
	// Value is the current value. It is never nil for
	// a record that is present in a store.
	Value *Value
	// Version starts at zero when the record is created
	// and is incremented on every update.
	Version        int64
	CreationTime   time.Time
	LastAccessTime time.Time
	LastUpdateTime time.Time
	// ExpirationTime is only meaningful when TTL > 0
	ExpirationTime time.Time
	// TTL of zero means the record never expires
	TTL time.Duration
	// Hits counts reads and writes since creation
	Hits int64
	// Sequence is a store-local logical clock value taken
	// on the last access. Victim selection uses it to order
	// records without relying on wall clock resolution.
	Sequence uint64
}

// New creates a record with version 0. The record
// keeps its own copy of key.
func New(key []byte, value *Value, ttl time.Duration, now time.Time, sequence uint64) *Record {
	r := &Record{
		Key:            append([]byte(nil), key...),
		Value:          value,
		CreationTime:   now,
		LastAccessTime: now,
		LastUpdateTime: now,
		Sequence:       sequence,
	}

	r.SetTTL(ttl, now)

	return r
}

// SetTTL resets the expiration time relative to now
func (r *Record) SetTTL(ttl time.Duration, now time.Time) {
	r.TTL = ttl

	if ttl <= 0 {
		r.TTL = 0
		r.ExpirationTime = time.Time{}

		return
	}

	r.ExpirationTime = now.Add(ttl)
}

// IsExpired returns true if the record has a TTL and
// its expiration time is not after now
func (r *Record) IsExpired(now time.Time) bool {
	return r.TTL > 0 && !now.Before(r.ExpirationTime)
}

// Touch records an access
func (r *Record) Touch(now time.Time, sequence uint64) {
	r.LastAccessTime = now
	r.Sequence = sequence
	r.Hits++
}

// Update replaces the value in place and bumps the version
func (r *Record) Update(value *Value, now time.Time, sequence uint64) {
	r.Value = value
	r.Version++
	r.LastUpdateTime = now
	r.Touch(now, sequence)
}

// Clone returns a copy of the record with its own key
// that shares the underlying value
func (r *Record) Clone() *Record {
	c := *r
	c.Key = append([]byte(nil), r.Key...)

	return &c
}
