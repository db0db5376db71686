package stream

import "go.uber.org/zap"

// Log logs values at debug level as they pass through.
// field describes a value in the log line.
func Log[T any](logger *zap.Logger, msg string, field func(value T) zap.Field) Processor[T] {
	if !logger.Core().Enabled(zap.DebugLevel) {
		return nil
	}

	return func(stream Stream[T]) Stream[T] {
		return &loggedStream[T]{stream, logger, msg, field}
	}
}

type loggedStream[T any] struct {
	Stream[T]
	logger *zap.Logger
	msg    string
	field  func(value T) zap.Field
}

func (stream *loggedStream[T]) Next() bool {
	if !stream.Stream.Next() {
		return false
	}

	stream.logger.Debug(stream.msg, stream.field(stream.Value()))

	return true
}
