package stream

import "github.com/jrife/murre/utils/sortedwindow"

// Sort finds the lowest N elements in a stream as defined by the comparison
// function and returns them in ascending order. If limit > 0 then N = limit,
// otherwise N = the size of the stream. In other words, if limit is <= 0 then
// it sorts the entire collection. Elements that compare equal are kept once.
func Sort[T any](compare func(a T, b T) int, limit int) Processor[T] {
	return func(stream Stream[T]) Stream[T] {
		return &sortedStream[T]{
			Stream: stream,
			window: sortedwindow.New(func(a, b interface{}) int { return compare(a.(T), b.(T)) }, sortedwindow.WithLimit(limit)),
		}
	}
}

type sortedStream[T any] struct {
	Stream[T]
	window *sortedwindow.SortedMinWindow
	iter   *sortedwindow.Iterator
}

func (stream *sortedStream[T]) Next() bool {
	if stream.iter == nil {
		for stream.Stream.Next() {
			stream.window.Insert(stream.Stream.Value())
		}

		if stream.Stream.Error() != nil {
			return false
		}

		stream.iter = stream.window.Iterator()
	}

	return stream.iter.Next()
}

func (stream *sortedStream[T]) Value() T {
	var zero T

	if stream.iter == nil {
		return zero
	}

	value, _ := stream.iter.Value().(T)

	return value
}
