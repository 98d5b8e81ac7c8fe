package executor

import (
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"

	language "github.com/hanpama/contractgraph/internal/language"
)

// Path addresses a value in the response: field names and list indices.
type Path []PathElement

type PathElement any

func (p Path) String() string {
	var b strings.Builder
	for i, el := range p {
		switch v := el.(type) {
		case int:
			b.WriteString("[" + strconv.Itoa(v) + "]")
		default:
			if i > 0 {
				b.WriteByte('.')
			}
			fmt.Fprint(&b, v)
		}
	}
	return b.String()
}

func (p Path) append(el PathElement) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, el)
}

// Location is a line and column in the query source.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// GraphQLError is one entry of the response's errors list.
type GraphQLError struct {
	Message    string         `json:"message"`
	Locations  []Location     `json:"locations,omitempty"`
	Path       Path           `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e GraphQLError) Error() string { return e.Message }

// ExtendedError is implemented by resolver errors that carry response
// extensions, such as an error code.
type ExtendedError interface {
	error
	Extensions() map[string]any
}

// ExecutionResult is the outcome of one operation. Data is nil when the
// operation could not start or a Non-Null root field became null.
type ExecutionResult struct {
	Data   any            `json:"data"`
	Errors []GraphQLError `json:"errors,omitempty"`
}

func requestError(format string, args ...any) *ExecutionResult {
	return &ExecutionResult{Errors: []GraphQLError{{Message: fmt.Sprintf(format, args...)}}}
}

func newFieldError(err error, path Path, fields []*language.Field) GraphQLError {
	ge := GraphQLError{Message: err.Error(), Path: path, Locations: locate(fields)}
	var ext ExtendedError
	if errors.As(err, &ext) {
		ge.Extensions = maps.Clone(ext.Extensions())
	}
	return ge
}

func locate(fields []*language.Field) []Location {
	if len(fields) == 0 || fields[0].Position == nil {
		return nil
	}
	return []Location{{Line: fields[0].Position.Line, Column: fields[0].Position.Column}}
}
