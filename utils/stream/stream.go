// Package stream composes lazy processing pipelines
// over sequences of values
package stream

// Stream describes a stream of values
type Stream[T any] interface {
	// Next advances the stream. It must
	// be called once at the start to advance
	// to the first item in the stream. It returns
	// true if there is a value available
	// or false otherwise. It may return false in
	// case of an error. Error() will return
	// an error if this is the case and must be checked
	// after Next() returns false.
	Next() bool
	// Value returns the value at the current position
	// or the zero value if iteration is done.
	Value() T
	// Error returns the error that occurred, if any
	Error() error
}

// Processor is a function that returns a stream
// derived from a source stream.
type Processor[T any] func(Stream[T]) Stream[T]

// Pipeline connects a series of processors to a source
// stream and returns the derived stream. Pipeline can
// be useful to create code that is more readable than
// simply invoking processor functions in a nested way
// like this processor3(processor2(processor1(stream)))
func Pipeline[T any](stream Stream[T], processors ...Processor[T]) Stream[T] {
	for _, processor := range processors {
		if processor == nil {
			continue
		}

		stream = processor(stream)
	}

	return stream
}

// Collect drains a stream into a slice
func Collect[T any](stream Stream[T]) ([]T, error) {
	values := []T{}

	for stream.Next() {
		values = append(values, stream.Value())
	}

	return values, stream.Error()
}

// Iterator is the iteration protocol of gods containers
type Iterator interface {
	Next() bool
	Value() interface{}
}

// FromIterator streams the values of an iterator. Values
// that aren't a T end the stream with ErrUnexpectedType.
func FromIterator[T any](iter Iterator) Stream[T] {
	return &iteratorStream[T]{iter: iter}
}

type iteratorStream[T any] struct {
	iter  Iterator
	value T
	err   error
}

func (stream *iteratorStream[T]) Next() bool {
	var zero T

	stream.value = zero

	if stream.err != nil || !stream.iter.Next() {
		return false
	}

	value, ok := stream.iter.Value().(T)

	if !ok {
		stream.err = ErrUnexpectedType

		return false
	}

	stream.value = value

	return true
}

func (stream *iteratorStream[T]) Value() T {
	return stream.value
}

func (stream *iteratorStream[T]) Error() error {
	return stream.err
}
