package recordstore

import (
	"github.com/jrife/murre/storage/record"
)

// Iterator implements RecordStore.Iterator
func (store *store) Iterator() (Iterator, error) {
	defer store.enter()()

	if store.destroyed {
		return nil, ErrDestroyed
	}

	return &iterator{records: store.snapshotRecords()}, nil
}

// Values implements RecordStore.Values
func (store *store) Values() (ValueIterator, error) {
	defer store.enter()()

	if store.destroyed {
		return nil, ErrDestroyed
	}

	return &valueIterator{
		iterator:   iterator{records: store.snapshotRecords()},
		serializer: store.serializer,
		memberID:   store.memberID,
	}, nil
}

func (store *store) snapshotRecords() []*record.Record {
	records := make([]*record.Record, 0, store.records.Size())
	iter := store.records.Iterator()

	for iter.Next() {
		records = append(records, iter.Value().(*record.Record))
	}

	return records
}

var _ Iterator = (*iterator)(nil)

type iterator struct {
	records []*record.Record
}

func (iter *iterator) Next() (*record.Record, error) {
	if len(iter.records) == 0 {
		return nil, ErrNoMoreEntries
	}

	rec := iter.records[0]
	iter.records = iter.records[1:]

	return rec, nil
}

var _ ValueIterator = (*valueIterator)(nil)

type valueIterator struct {
	iterator
	serializer record.Serializer
	memberID   string
}

// Next returns ErrNoMoreEntries unchanged. Values that can't
// be deserialized are reported as a *PublicError.
func (iter *valueIterator) Next() ([]byte, interface{}, error) {
	rec, err := iter.iterator.Next()

	if err != nil {
		return nil, nil, err
	}

	value, err := rec.Value.Object(iter.serializer)

	if err != nil {
		return rec.Key, nil, &PublicError{MemberID: iter.memberID, Cause: err}
	}

	return rec.Key, value, nil
}
