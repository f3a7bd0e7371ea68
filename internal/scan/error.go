package scan

import (
	"errors"
	"fmt"
	"io"
)

// ParseError records malformed JSON at a 1-based line and column.
type ParseError struct {
	Line   int
	Column int
	Msg    string
}

func (pe *ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", pe.Line, pe.Column, pe.Msg)
}

// newReadError wraps failures of the underlying reader. These are not
// grammar problems, so they are not reported as a ParseError.
func newReadError(err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("read json: %w", err)
}

func describe(b byte) string {
	if b < 0x80 {
		return fmt.Sprintf("%q", rune(b))
	}
	return fmt.Sprintf("0x%02x", b)
}
