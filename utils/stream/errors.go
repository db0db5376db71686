package stream

import "errors"

// ErrUnexpectedType is returned by a stream whose
// source yields a value of the wrong type
var ErrUnexpectedType = errors.New("unexpected value type")
