// Package lvstream converts between a sequence of values
// and a byte stream of length-prefixed values:
//
//	msg,msg,msg -> [length|msg|length|msg...]
//	[length|msg|length|msg...] -> msg,msg,msg
//
// Lengths are 4 byte big endian unsigned integers.
package lvstream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
)

const lengthSize = 4

// MaxValueSize is the largest value a Decoder accepts (10 MB)
var MaxValueSize = 10 * 1024 * 1024

var (
	// ErrClosed is returned after a stream is closed
	ErrClosed = errors.New("closed")
	// ErrTruncated is returned by Decoder.Close when the
	// stream ended in the middle of a value
	ErrTruncated = errors.New("truncated stream")
)

var _ io.ReadCloser = (*Encoder)(nil)

// Encoder is a reader producing the encoded form of the values
// returned by nextValue. nextValue returns io.EOF once there are
// no more values.
type Encoder struct {
	nextValue func() ([]byte, error)
	cleanup   func()
	isLength  bool
	length    []byte
	value     []byte
	chunk     []byte
	err       error
}

// NewEncoder creates an encoder. cleanup is called once when the
// encoder reaches the end of its input, fails or is closed.
func NewEncoder(nextValue func() ([]byte, error), cleanup func()) *Encoder {
	if cleanup == nil {
		cleanup = func() {}
	}

	return &Encoder{
		length:    make([]byte, lengthSize),
		nextValue: nextValue,
		cleanup:   cleanup,
	}
}

// Read implements io.Reader
func (encoder *Encoder) Read(p []byte) (int, error) {
	if encoder.err != nil {
		return 0, encoder.err
	}

	n := 0

	for len(p) > 0 {
		if len(encoder.chunk) == 0 {
			if encoder.isLength {
				encoder.isLength = false
				encoder.chunk = encoder.value

				continue
			}

			value, err := encoder.nextValue()

			if err != nil {
				encoder.close(err)

				return n, encoder.err
			}

			encoder.isLength = true
			encoder.value = value
			binary.BigEndian.PutUint32(encoder.length, uint32(len(value)))
			encoder.chunk = encoder.length
		}

		c := copy(p, encoder.chunk)
		encoder.chunk = encoder.chunk[c:]
		p = p[c:]
		n += c
	}

	return n, nil
}

func (encoder *Encoder) close(err error) {
	if encoder.err != nil {
		return
	}

	encoder.err = err
	encoder.cleanup()
}

// Close implements io.Closer
func (encoder *Encoder) Close() error {
	encoder.close(ErrClosed)

	return nil
}

var _ io.WriteCloser = (*Decoder)(nil)

// Decoder is a writer that decodes the stream written to it
// and calls nextValue once for every complete value. The slice
// passed to nextValue is owned by the callee.
type Decoder struct {
	nextValue func([]byte) error
	isLength  bool
	chunkSize int
	chunk     []byte
	mu        sync.Mutex
	err       error
}

// NewDecoder creates a decoder
func NewDecoder(nextValue func([]byte) error) *Decoder {
	return &Decoder{
		chunkSize: lengthSize,
		chunk:     make([]byte, 0, lengthSize),
		isLength:  true,
		nextValue: nextValue,
	}
}

// Write implements io.Writer
func (decoder *Decoder) Write(p []byte) (int, error) {
	decoder.mu.Lock()
	defer decoder.mu.Unlock()

	if decoder.err != nil {
		return 0, decoder.err
	}

	written := 0

	for {
		copyAmount := min(decoder.chunkSize-len(decoder.chunk), len(p))
		decoder.chunk = append(decoder.chunk, p[:copyAmount]...)
		p = p[copyAmount:]
		written += copyAmount

		if len(decoder.chunk) < decoder.chunkSize {
			return written, nil
		}

		if decoder.isLength {
			length := binary.BigEndian.Uint32(decoder.chunk)

			if uint64(length) > uint64(MaxValueSize) {
				decoder.err = fmt.Errorf("encoded value length is too large: %d > max(%d)", length, MaxValueSize)

				return written, decoder.err
			}

			decoder.isLength = false
			decoder.chunkSize = int(length)
			decoder.chunk = make([]byte, 0, decoder.chunkSize)

			// A zero length value is complete as soon as its
			// length is read
			continue
		}

		if err := decoder.nextValue(decoder.chunk); err != nil {
			decoder.err = err

			return written, decoder.err
		}

		decoder.isLength = true
		decoder.chunkSize = lengthSize
		decoder.chunk = make([]byte, 0, lengthSize)

		if len(p) == 0 {
			return written, nil
		}
	}
}

// Close implements io.Closer. It returns ErrTruncated if the
// stream ended in the middle of a value.
func (decoder *Decoder) Close() error {
	decoder.mu.Lock()
	defer decoder.mu.Unlock()

	if decoder.err != nil {
		if decoder.err == ErrClosed {
			return nil
		}

		return decoder.err
	}

	if !decoder.isLength || len(decoder.chunk) != 0 {
		decoder.err = ErrTruncated

		return decoder.err
	}

	decoder.err = ErrClosed

	return nil
}

func min(a, b int) int {
	if a > b {
		return b
	}

	return a
}
