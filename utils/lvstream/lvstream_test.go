package lvstream_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/murre/utils/lvstream"
)

func encoder(values [][]byte) (*lvstream.Encoder, *bool) {
	cleaned := false

	return lvstream.NewEncoder(func() ([]byte, error) {
		if len(values) == 0 {
			return nil, io.EOF
		}

		next := values[0]
		values = values[1:]

		return next, nil
	}, func() { cleaned = true }), &cleaned
}

type smallWriter struct {
	w    io.Writer
	size int
}

func (w *smallWriter) Write(p []byte) (int, error) {
	written := 0

	for len(p) > 0 {
		n := w.size

		if n > len(p) {
			n = len(p)
		}

		c, err := w.w.Write(p[:n])
		written += c

		if err != nil {
			return written, err
		}

		p = p[n:]
	}

	return written, nil
}

func TestRoundTrip(t *testing.T) {
	testCases := map[string][][]byte{
		"empty":       {},
		"single":      {[]byte("a")},
		"several":     {[]byte("a"), []byte("bb"), []byte("ccc")},
		"zero-length": {[]byte("a"), {}, []byte("c"), {}},
		"large":       {bytes.Repeat([]byte("x"), 100000), []byte("y")},
	}

	for name, input := range testCases {
		for _, writeSize := range []int{1, 3, 5, 4096} {
			t.Run(name, func(t *testing.T) {
				output := [][]byte{}
				enc, cleaned := encoder(input)
				dec := lvstream.NewDecoder(func(value []byte) error {
					output = append(output, value)

					return nil
				})

				if _, err := io.Copy(&smallWriter{w: dec, size: writeSize}, enc); err != nil {
					t.Fatalf("expected err to be nil, got %#v", err)
				}

				if err := dec.Close(); err != nil {
					t.Fatalf("expected err to be nil, got %#v", err)
				}

				diff := cmp.Diff(input, output, cmp.Comparer(bytes.Equal))

				if diff != "" {
					t.Fatalf(diff)
				}

				if !*cleaned {
					t.Fatalf("expected cleanup to be called")
				}
			})
		}
	}
}

func TestDecoderTruncated(t *testing.T) {
	dec := lvstream.NewDecoder(func(value []byte) error { return nil })
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, 3)

	if _, err := dec.Write(append(length, 'a')); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := dec.Close(); err != lvstream.ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %#v", err)
	}
}

func TestDecoderTooLarge(t *testing.T) {
	dec := lvstream.NewDecoder(func(value []byte) error { return nil })
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(lvstream.MaxValueSize+1))

	if _, err := dec.Write(length); err == nil {
		t.Fatalf("expected an error")
	}
}

func TestEncoderClosed(t *testing.T) {
	enc, cleaned := encoder([][]byte{[]byte("a")})
	enc.Close()

	if _, err := enc.Read(make([]byte, 10)); err != lvstream.ErrClosed {
		t.Fatalf("expected ErrClosed, got %#v", err)
	}

	if !*cleaned {
		t.Fatalf("expected cleanup to be called")
	}
}
