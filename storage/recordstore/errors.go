package recordstore

import (
	"errors"
	"fmt"

	"github.com/jrife/murre/storage/eviction"
	"github.com/jrife/murre/storage/loader"
)

var (
	// ErrDestroyed is returned by every call on a destroyed store
	ErrDestroyed = errors.New("record store was destroyed")
	// ErrNoMoreEntries is returned by an exhausted iterator
	ErrNoMoreEntries = errors.New("no more entries")
	// ErrInvalidArgument is returned for invalid configuration
	// or arguments
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConcurrentAccess is the panic value raised when two calls
	// enter the same store at once and the single writer check is on
	ErrConcurrentAccess = errors.New("record store entered by more than one goroutine")
)

// PublicError is returned when a stored value can't be
// converted for a caller. It names the member that failed.
type PublicError struct {
	MemberID string
	Cause    error
}

func (err *PublicError) Error() string {
	return fmt.Sprintf("member %s: %s", err.MemberID, err.Cause.Error())
}

// Unwrap returns the cause
func (err *PublicError) Unwrap() error {
	return err.Cause
}

func wrapError(wrap string, err error) error {
	switch err {
	case eviction.ErrInvalidArgument:
		return ErrInvalidArgument
	case loader.ErrNoSuchKey:
		fallthrough
	case ErrDestroyed:
		fallthrough
	case ErrNoMoreEntries:
		fallthrough
	case nil:
		return err
	}

	return fmt.Errorf("%s: %w", wrap, err)
}
