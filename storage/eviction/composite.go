package eviction

import (
	"fmt"
	"strings"
)

// Operator composes the results of several checkers
type Operator int

const (
	// OperatorUnset is the zero value. It is not a valid operator.
	OperatorUnset Operator = iota
	// And reports the bound reached only if every checker does
	And
	// Or reports the bound reached if any checker does
	Or
)

func (op Operator) String() string {
	switch op {
	case And:
		return "and"
	case Or:
		return "or"
	}

	return "unset"
}

// ParseOperator parses "and" or "or", ignoring case
func ParseOperator(s string) (Operator, error) {
	switch strings.ToLower(s) {
	case "and":
		return And, nil
	case "or":
		return Or, nil
	}

	return OperatorUnset, fmt.Errorf("unknown composition operator %q: %w", s, ErrInvalidArgument)
}

var _ MaxSizeChecker = (*Composite)(nil)

// Composite combines one or more checkers with an operator.
// It is immutable after construction.
type Composite struct {
	op       Operator
	checkers []MaxSizeChecker
}

// NewComposite creates a composite checker. It fails with
// ErrInvalidArgument if op is not And or Or, if no checkers
// are given or if any checker is nil.
func NewComposite(op Operator, checkers ...MaxSizeChecker) (*Composite, error) {
	if op != And && op != Or {
		return nil, fmt.Errorf("composition operator cannot be %s: %w", op, ErrInvalidArgument)
	}

	if checkers == nil {
		return nil, fmt.Errorf("max size checkers cannot be nil: %w", ErrInvalidArgument)
	}

	if len(checkers) == 0 {
		return nil, fmt.Errorf("max size checkers cannot be empty: %w", ErrInvalidArgument)
	}

	for i, checker := range checkers {
		if checker == nil {
			return nil, fmt.Errorf("max size checker %d is nil: %w", i, ErrInvalidArgument)
		}
	}

	composite := &Composite{op: op, checkers: make([]MaxSizeChecker, len(checkers))}
	copy(composite.checkers, checkers)

	return composite, nil
}

// Operator returns the composition operator
func (composite *Composite) Operator() Operator {
	return composite.op
}

// IsReachedMaxSize implements MaxSizeChecker.IsReachedMaxSize
func (composite *Composite) IsReachedMaxSize() bool {
	switch composite.op {
	case And:
		for _, checker := range composite.checkers {
			if !checker.IsReachedMaxSize() {
				return false
			}
		}

		return true
	case Or:
		for _, checker := range composite.checkers {
			if checker.IsReachedMaxSize() {
				return true
			}
		}

		return false
	}

	panic(fmt.Sprintf("unexpected composition operator %d", composite.op))
}
