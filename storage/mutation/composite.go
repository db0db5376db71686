package mutation

import (
	"fmt"
	"runtime/debug"

	"github.com/jrife/murre/storage/record"
)

// Delivery is the outcome of fanning one event out
// to the registered observers.
type Delivery struct {
	// Delivered counts observers that handled the event
	// without failing
	Delivered int
	// Failed counts observers that returned an error or panicked
	Failed int
	// Err is the first failure encountered, if any. Later
	// failures are counted in Failed but not retained.
	Err error
}

// Error returns the first failure or nil
func (delivery Delivery) Error() error {
	return delivery.Err
}

// PanicError is reported for an observer that panicked
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (err *PanicError) Error() string {
	return fmt.Sprintf("observer panicked: %v", err.Value)
}

// Unwrap returns the panic value if it was an error
func (err *PanicError) Unwrap() error {
	if e, ok := err.Value.(error); ok {
		return e
	}

	return nil
}

// Composite delivers each event to an ordered list of
// observers. Every observer receives every event exactly
// once, even when earlier observers fail. It is not safe
// for concurrent use. Observers are appended during record
// store construction and are never removed.
type Composite struct {
	observers []Observer
}

// NewComposite creates a composite with these observers.
// nil observers are skipped.
func NewComposite(observers ...Observer) *Composite {
	composite := &Composite{}

	for _, observer := range observers {
		composite.Add(observer)
	}

	return composite
}

// Add appends an observer. nil is ignored.
func (composite *Composite) Add(observer Observer) {
	if observer == nil {
		return
	}

	composite.observers = append(composite.observers, observer)
}

// Len returns the number of registered observers
func (composite *Composite) Len() int {
	return len(composite.observers)
}

func (composite *Composite) fanOut(notify func(observer Observer) error) Delivery {
	var delivery Delivery

	if len(composite.observers) == 0 {
		return delivery
	}

	for _, observer := range composite.observers {
		if err := invoke(observer, notify); err != nil {
			delivery.Failed++

			if delivery.Err == nil {
				delivery.Err = err
			}

			continue
		}

		delivery.Delivered++
	}

	return delivery
}

func invoke(observer Observer, notify func(observer Observer) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	return notify(observer)
}

// OnClear delivers Observer.OnClear
func (composite *Composite) OnClear() Delivery {
	return composite.fanOut(func(observer Observer) error {
		return observer.OnClear()
	})
}

// OnPutRecord delivers Observer.OnPutRecord
func (composite *Composite) OnPutRecord(key []byte, rec *record.Record, oldValue *record.Value, backup bool) Delivery {
	return composite.fanOut(func(observer Observer) error {
		return observer.OnPutRecord(key, rec, oldValue, backup)
	})
}

// OnReplicationPutRecord delivers Observer.OnReplicationPutRecord
func (composite *Composite) OnReplicationPutRecord(key []byte, rec *record.Record, populateIndex bool) Delivery {
	return composite.fanOut(func(observer Observer) error {
		return observer.OnReplicationPutRecord(key, rec, populateIndex)
	})
}

// OnUpdateRecord delivers Observer.OnUpdateRecord
func (composite *Composite) OnUpdateRecord(key []byte, rec *record.Record, oldValue, newValue *record.Value, backup bool) Delivery {
	return composite.fanOut(func(observer Observer) error {
		return observer.OnUpdateRecord(key, rec, oldValue, newValue, backup)
	})
}

// OnRemoveRecord delivers Observer.OnRemoveRecord
func (composite *Composite) OnRemoveRecord(key []byte, rec *record.Record) Delivery {
	return composite.fanOut(func(observer Observer) error {
		return observer.OnRemoveRecord(key, rec)
	})
}

// OnEvictRecord delivers Observer.OnEvictRecord
func (composite *Composite) OnEvictRecord(key []byte, rec *record.Record) Delivery {
	return composite.fanOut(func(observer Observer) error {
		return observer.OnEvictRecord(key, rec)
	})
}

// OnLoadRecord delivers Observer.OnLoadRecord
func (composite *Composite) OnLoadRecord(key []byte, rec *record.Record, backup bool) Delivery {
	return composite.fanOut(func(observer Observer) error {
		return observer.OnLoadRecord(key, rec, backup)
	})
}

// OnDestroy delivers Observer.OnDestroy
func (composite *Composite) OnDestroy(isDuringShutdown bool, internal bool) Delivery {
	return composite.fanOut(func(observer Observer) error {
		return observer.OnDestroy(isDuringShutdown, internal)
	})
}

// OnReset delivers Observer.OnReset
func (composite *Composite) OnReset() Delivery {
	return composite.fanOut(func(observer Observer) error {
		return observer.OnReset()
	})
}

// AsObserver returns the composite as an Observer reporting
// the first failure of every delivery, so composites nest
func (composite *Composite) AsObserver() Observer {
	return nested{composite}
}

type nested struct {
	composite *Composite
}

func (n nested) OnClear() error {
	return n.composite.OnClear().Err
}

func (n nested) OnPutRecord(key []byte, rec *record.Record, oldValue *record.Value, backup bool) error {
	return n.composite.OnPutRecord(key, rec, oldValue, backup).Err
}

func (n nested) OnReplicationPutRecord(key []byte, rec *record.Record, populateIndex bool) error {
	return n.composite.OnReplicationPutRecord(key, rec, populateIndex).Err
}

func (n nested) OnUpdateRecord(key []byte, rec *record.Record, oldValue, newValue *record.Value, backup bool) error {
	return n.composite.OnUpdateRecord(key, rec, oldValue, newValue, backup).Err
}

func (n nested) OnRemoveRecord(key []byte, rec *record.Record) error {
	return n.composite.OnRemoveRecord(key, rec).Err
}

func (n nested) OnEvictRecord(key []byte, rec *record.Record) error {
	return n.composite.OnEvictRecord(key, rec).Err
}

func (n nested) OnLoadRecord(key []byte, rec *record.Record, backup bool) error {
	return n.composite.OnLoadRecord(key, rec, backup).Err
}

func (n nested) OnDestroy(isDuringShutdown bool, internal bool) error {
	return n.composite.OnDestroy(isDuringShutdown, internal).Err
}

func (n nested) OnReset() error {
	return n.composite.OnReset().Err
}
