package ir

import (
	"fmt"
	"strings"

	language "github.com/hanpama/contractgraph/internal/language"
)

// Violation is one semantic problem found while merging sources. File, Line
// and Column are empty for problems that span the whole project.
type Violation struct {
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

func (v *Violation) String() string {
	if v.File == "" {
		return v.Message
	}
	return fmt.Sprintf("%s:%d:%d: %s", v.File, v.Line, v.Column, v.Message)
}

// ValidationError fails a build and lists every violation found by the
// stage that stopped it.
type ValidationError []*Violation

func (e ValidationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d schema violation(s)", len(e))
	for _, v := range e {
		sb.WriteString("\n  ")
		sb.WriteString(v.String())
	}
	return sb.String()
}

// violate records a violation at pos, which may be nil.
func (b *builder) violate(pos *language.Position, format string, args ...any) {
	v := &Violation{Message: fmt.Sprintf(format, args...)}
	if pos != nil {
		v.Line, v.Column = pos.Line, pos.Column
		if pos.Src != nil {
			v.File = pos.Src.Name
		}
	}
	b.violations = append(b.violations, v)
}

// checkpoint ends a build stage: it fails when the stage or an earlier one
// recorded violations.
func (b *builder) checkpoint() error {
	if len(b.violations) == 0 {
		return nil
	}
	return ValidationError(b.violations)
}
