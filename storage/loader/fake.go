package loader

import (
	"bytes"
	"context"
	"sync"

	"github.com/emirpasic/gods/maps/treemap"
)

var _ Loader = (*FakeLoader)(nil)

// FakeLoader is an in-memory implementation of the
// Loader interface. It counts LoadAllKeys calls and
// can be made to fail.
type FakeLoader struct {
	mu    sync.Mutex
	m     *treemap.Map
	calls int
	err   error
	block chan struct{}
}

// NewFakeLoader creates a new FakeLoader
func NewFakeLoader() *FakeLoader {
	return &FakeLoader{m: treemap.NewWith(func(a, b interface{}) int {
		return bytes.Compare([]byte(a.(string)), []byte(b.(string)))
	})}
}

// Put stores a value in the fake backing store
func (fake *FakeLoader) Put(key, value []byte) {
	fake.mu.Lock()
	defer fake.mu.Unlock()

	fake.m.Put(string(key), value)
}

// Fail makes every subsequent call return err
func (fake *FakeLoader) Fail(err error) {
	fake.mu.Lock()
	defer fake.mu.Unlock()

	fake.err = err
}

// Block makes LoadAllKeys wait until the returned
// function is called
func (fake *FakeLoader) Block() func() {
	fake.mu.Lock()
	defer fake.mu.Unlock()

	block := make(chan struct{})
	fake.block = block

	return func() { close(block) }
}

// Calls returns the number of times LoadAllKeys was called
func (fake *FakeLoader) Calls() int {
	fake.mu.Lock()
	defer fake.mu.Unlock()

	return fake.calls
}

// LoadAllKeys implements Loader.LoadAllKeys
func (fake *FakeLoader) LoadAllKeys(ctx context.Context) ([][]byte, error) {
	fake.mu.Lock()
	fake.calls++
	block := fake.block
	fake.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()

	if fake.err != nil {
		return nil, fake.err
	}

	keys := make([][]byte, 0, fake.m.Size())
	iter := fake.m.Iterator()

	for iter.Next() {
		keys = append(keys, []byte(iter.Key().(string)))
	}

	return keys, nil
}

// LoadAll implements Loader.LoadAll
func (fake *FakeLoader) LoadAll(ctx context.Context, keys [][]byte) ([]Entry, error) {
	fake.mu.Lock()
	defer fake.mu.Unlock()

	if fake.err != nil {
		return nil, fake.err
	}

	entries := make([]Entry, 0, len(keys))

	for _, key := range keys {
		v, ok := fake.m.Get(string(key))

		if !ok {
			continue
		}

		entries = append(entries, Entry{Key: key, Value: v.([]byte)})
	}

	return entries, nil
}

// Load implements Loader.Load
func (fake *FakeLoader) Load(ctx context.Context, key []byte) ([]byte, error) {
	fake.mu.Lock()
	defer fake.mu.Unlock()

	if fake.err != nil {
		return nil, fake.err
	}

	v, ok := fake.m.Get(string(key))

	if !ok {
		return nil, ErrNoSuchKey
	}

	return v.([]byte), nil
}
