package nearcache_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/murre/observers/nearcache"
)

func TestInvalidator(t *testing.T) {
	broadcaster := nearcache.NewBroadcaster()
	received := []nearcache.Invalidation{}
	unregister := broadcaster.Register(nearcache.ListenerFunc(func(invalidation nearcache.Invalidation) {
		received = append(received, invalidation)
	}))
	invalidator := nearcache.NewInvalidator("m", "member-1", broadcaster)

	invalidator.OnPutRecord([]byte("a"), nil, nil, false)
	invalidator.OnPutRecord([]byte("b"), nil, nil, true)
	invalidator.OnReplicationPutRecord([]byte("c"), nil, true)
	invalidator.OnUpdateRecord([]byte("d"), nil, nil, nil, false)
	invalidator.OnEvictRecord([]byte("e"), nil)
	invalidator.OnClear()

	unregister()
	invalidator.OnRemoveRecord([]byte("f"), nil)

	diff := cmp.Diff([]nearcache.Invalidation{
		{Map: "m", Key: []byte("a"), Source: "member-1"},
		{Map: "m", Key: []byte("d"), Source: "member-1"},
		{Map: "m", Key: []byte("e"), Source: "member-1"},
		{Map: "m", Source: "member-1"},
	}, received)

	if diff != "" {
		t.Fatalf(diff)
	}
}
