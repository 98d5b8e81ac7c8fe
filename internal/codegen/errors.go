package codegen

import (
	"errors"
	"strings"
)

// ErrGeneration matches every *GenerateError.
var ErrGeneration = errors.New("codegen: generation failed")

// GenerateError reports the failure of one contract. The orchestrator logs
// it and carries on with the remaining contracts.
type GenerateError struct {
	Contract string
	Err      error
}

func (e *GenerateError) Error() string {
	var b strings.Builder
	b.WriteString("codegen: contract ")
	b.WriteString(e.Contract)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *GenerateError) Unwrap() error { return e.Err }

func (e *GenerateError) Is(target error) bool { return target == ErrGeneration }

func generateError(name string, err error) error {
	var ge *GenerateError
	if errors.As(err, &ge) {
		return err
	}
	return &GenerateError{Contract: name, Err: err}
}
