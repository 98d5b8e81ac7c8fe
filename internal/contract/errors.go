package contract

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidContract indicates a contract definition error.
	ErrInvalidContract = errors.New("contract: invalid contract")
	// ErrNotFound indicates a contract that is not registered.
	ErrNotFound = errors.New("contract: not found")
	// ErrDuplicate indicates a contract registered twice.
	ErrDuplicate = errors.New("contract: duplicate controller name")
)

// Error describes a problem with one contract.
type Error struct {
	Contract string
	Path     string // offending member, e.g. "fields[2].protoType"
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("contract")
	if e.Contract != "" {
		b.WriteString(" ")
		b.WriteString(e.Contract)
	}
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches ErrInvalidContract.
func (e *Error) Is(target error) bool { return target == ErrInvalidContract }

// Errors collects every problem found in one validation pass.
type Errors []*Error

func (es Errors) Error() string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

func (es Errors) Is(target error) bool { return target == ErrInvalidContract && len(es) > 0 }
