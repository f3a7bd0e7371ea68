// Package validate checks that a document is well-formed JSON without
// analysing it. It drives the same tokenizer as the counting engine and keeps
// no tree.
package validate

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jacoelho/jsontally/internal/scan"
)

// ErrEmptyDocument is reported for blank input.
var ErrEmptyDocument = errors.New("document is empty")

// Issue locates a problem in the document. A read failure is placed where
// reading stopped. Line and Column are zero only when the document could not
// be opened, such as blank input.
type Issue struct {
	Line    int    `json:"line,omitempty" yaml:"line,omitempty"`
	Column  int    `json:"column,omitempty" yaml:"column,omitempty"`
	Message string `json:"message" yaml:"message"`
}

// Outcome is the result of a validation.
type Outcome struct {
	Valid bool   `json:"valid" yaml:"valid"`
	Error *Issue `json:"error,omitempty" yaml:"error,omitempty"`
}

// Describe renders the outcome as a single user-facing sentence.
func (o Outcome) Describe() string {
	switch {
	case o.Valid:
		return "JSON is valid."
	case o.Error == nil:
		return "JSON is not valid."
	case o.Error.Line == 0:
		return fmt.Sprintf("JSON is not valid: %s", o.Error.Message)
	default:
		return fmt.Sprintf("JSON is not valid. Line %d, Position %d: %s", o.Error.Line, o.Error.Column, o.Error.Message)
	}
}

// Text validates a complete document held in memory.
func Text(text string, opts ...scan.Option) Outcome {
	if strings.TrimSpace(text) == "" {
		return invalid(ErrEmptyDocument)
	}
	return Document(strings.NewReader(text), opts...)
}

// Document validates a document read from r until its end. An empty stream is
// valid, mirroring the counting engine; use Text to reject blank input.
func Document(r io.Reader, opts ...scan.Option) Outcome {
	sc, err := scan.New(r, opts...)
	if err != nil {
		return invalid(err)
	}

	for tok, err := range sc.All() {
		if err != nil {
			outcome := invalid(err)
			if outcome.Error.Line == 0 {
				outcome.Error.Line, outcome.Error.Column = sc.Position()
			}
			return outcome
		}
		if tok.Kind == scan.EndOfStream {
			break
		}
	}

	return Outcome{Valid: true}
}

func invalid(err error) Outcome {
	var pe *scan.ParseError
	if errors.As(err, &pe) {
		return Outcome{Error: &Issue{Line: pe.Line, Column: pe.Column, Message: pe.Msg}}
	}
	return Outcome{Error: &Issue{Message: err.Error()}}
}
