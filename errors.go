package datamap

import (
	"errors"
	"fmt"
)

var (
	// ErrNoColumns is returned when a mapper declares no needed columns.
	ErrNoColumns = errors.New("datamap: mapper declares no columns")

	// ErrColumnNotInSet is returned when a mapper needs a column that the
	// queried column set does not provide.
	ErrColumnNotInSet = errors.New("datamap: column not in column set")

	// ErrNilColumnSet is returned when a query is issued without a source.
	ErrNilColumnSet = errors.New("datamap: nil column set")
)

// Contract violations. These are carried by a *ContractError panic: they mean
// a mapper disagrees with the columns it declared, which no caller can recover
// from at run time.
var (
	ErrColumnNotFetched = errors.New("datamap: column not fetched")
	ErrUnknownVariant   = errors.New("datamap: no variant for discriminator")
	ErrAmbiguousVariant = errors.New("datamap: more than one variant present")
	ErrTypeMismatch     = errors.New("datamap: value does not fit destination")
)

// ContractError is the panic value raised when a mapper breaks its contract.
type ContractError struct {
	Err    error
	Detail string
}

func (e *ContractError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Detail
}

func (e *ContractError) Unwrap() error { return e.Err }

func violate(err error, format string, args ...any) {
	panic(&ContractError{Err: err, Detail: fmt.Sprintf(format, args...)})
}
