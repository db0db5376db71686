package loader_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/murre/storage/loader"
)

func TestLoadOwned(t *testing.T) {
	fake := loader.NewFakeLoader()
	fake.Put([]byte("b"), []byte("2"))
	fake.Put([]byte("a"), []byte("1"))
	fake.Put([]byte("c"), []byte("3"))

	entries, err := loader.LoadOwned(context.Background(), fake, func(key []byte) bool {
		return string(key) != "b"
	})

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	diff := cmp.Diff([]loader.Entry{{Key: []byte("a"), Value: []byte("1")}, {Key: []byte("c"), Value: []byte("3")}}, entries)

	if diff != "" {
		t.Fatalf(diff)
	}

	if fake.Calls() != 1 {
		t.Fatalf("expected 1 call, got %d", fake.Calls())
	}
}

func TestLoadOwnedFailure(t *testing.T) {
	fake := loader.NewFakeLoader()
	expected := errors.New("backing store unavailable")
	fake.Fail(expected)

	if _, err := loader.LoadOwned(context.Background(), fake, nil); err != expected {
		t.Fatalf("expected %#v, got %#v", expected, err)
	}
}

func TestFakeLoaderLoad(t *testing.T) {
	fake := loader.NewFakeLoader()
	fake.Put([]byte("a"), []byte("1"))

	if _, err := fake.Load(context.Background(), []byte("b")); !errors.Is(err, loader.ErrNoSuchKey) {
		t.Fatalf("expected ErrNoSuchKey, got %#v", err)
	}

	value, err := fake.Load(context.Background(), []byte("a"))

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if string(value) != "1" {
		t.Fatalf("expected 1, got %s", value)
	}
}
