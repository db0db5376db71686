// Package eviction decides whether a record store must evict. It provides
// the MaxSizeChecker contract, a composite that combines several checkers
// with AND or OR, the built-in checkers for each max-size policy and the
// victim selectors used once eviction has been decided.
package eviction

import (
	"errors"
)

// ErrInvalidArgument is returned when a checker or policy
// is constructed with an invalid configuration
var ErrInvalidArgument = errors.New("invalid argument")

// MaxSizeChecker answers whether a size bound has been reached.
// Implementations must not have observable side effects:
// composites may skip evaluating a checker.
type MaxSizeChecker interface {
	IsReachedMaxSize() bool
}

// CheckerFunc adapts a function to MaxSizeChecker
type CheckerFunc func() bool

// IsReachedMaxSize implements MaxSizeChecker.IsReachedMaxSize
func (f CheckerFunc) IsReachedMaxSize() bool {
	return f()
}

// Never is a checker that never reports the bound as reached
var Never MaxSizeChecker = CheckerFunc(func() bool { return false })
