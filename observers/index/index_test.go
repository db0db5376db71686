package index_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/murre/observers/index"
	"github.com/jrife/murre/storage/record"
)

func rec(key, value string) *record.Record {
	return record.New([]byte(key), record.Bytes([]byte(value)), 0, time.Unix(0, 0), 0)
}

func keys(k ...string) [][]byte {
	result := make([][]byte, len(k))

	for i, key := range k {
		result[i] = []byte(key)
	}

	return result
}

func TestIndexer(t *testing.T) {
	indexer := index.New(index.FieldExtractor("city"), record.JSONSerializer{})

	indexer.OnPutRecord([]byte("a"), rec("a", `{"city":"oslo"}`), nil, false)
	indexer.OnPutRecord([]byte("b"), rec("b", `{"city":"bergen"}`), nil, false)
	indexer.OnPutRecord([]byte("c"), rec("c", `{"city":"oslo"}`), nil, false)
	indexer.OnPutRecord([]byte("d"), rec("d", `{"name":"none"}`), nil, false)
	indexer.OnPutRecord([]byte("e"), rec("e", `{"city":"tromso"}`), nil, true)

	diff := cmp.Diff(keys("a", "c"), indexer.Keys("oslo"))

	if diff != "" {
		t.Fatalf(diff)
	}

	if indexer.Len() != 3 {
		t.Fatalf("expected 3 indexed keys, got %d", indexer.Len())
	}

	indexer.OnUpdateRecord([]byte("a"), rec("a", `{"city":"bergen"}`), nil, nil, false)
	indexer.OnEvictRecord([]byte("c"), nil)

	diff = cmp.Diff(keys("a", "b"), indexer.Keys("bergen"))

	if diff != "" {
		t.Fatalf(diff)
	}

	diff = cmp.Diff(keys(), indexer.Keys("oslo"))

	if diff != "" {
		t.Fatalf(diff)
	}

	indexer.OnReplicationPutRecord([]byte("f"), rec("f", `{"city":"oslo"}`), false)
	indexer.OnReplicationPutRecord([]byte("g"), rec("g", `{"city":"molde"}`), true)

	diff = cmp.Diff(keys("a", "b", "g"), indexer.Range("b", "n"))

	if diff != "" {
		t.Fatalf(diff)
	}

	indexer.OnReset()

	if indexer.Len() != 0 {
		t.Fatalf("expected the index to be dropped, got %d keys", indexer.Len())
	}
}

func TestIndexerDeserializationFailure(t *testing.T) {
	indexer := index.New(index.FieldExtractor("city"), record.JSONSerializer{})

	if err := indexer.OnPutRecord([]byte("a"), rec("a", `{`), nil, false); err == nil {
		t.Fatalf("expected an error")
	}
}
