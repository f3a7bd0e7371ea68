// Package scan implements a streaming JSON tokenizer. It produces a lazy,
// forward-only sequence of tokens from a byte stream while tracking the line
// and column of every token, so malformed input can be reported precisely.
// Memory use is bounded by the nesting depth and the longest single token;
// the document itself is never buffered.
package scan

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/jacoelho/jsontally/internal/stack"
)

// DefaultMaxDepth is the nesting limit applied when no MaxDepth option is given.
const DefaultMaxDepth = 1000

const bufferSize = 64 * 1024

const lowSurrogateStart = 0xDC00

var (
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	utf16BEBOM = []byte{0xFE, 0xFF}
	utf16LEBOM = []byte{0xFF, 0xFE}
	utf32BEBOM = []byte{0x00, 0x00, 0xFE, 0xFF}
	utf32LEBOM = []byte{0xFF, 0xFE, 0x00, 0x00}
)

type state int

const (
	stateBegin state = iota
	stateValue
	stateFirstElement
	stateFirstKey
	stateKey
	stateColon
	stateAfterValue
	stateDone
)

type position struct {
	line   int
	column int
}

// Option configures a Scanner.
type Option func(*Scanner)

// MaxDepth limits how deeply objects and arrays may nest. Zero or a negative
// value disables the limit.
func MaxDepth(n int) Option {
	return func(s *Scanner) {
		s.maxDepth = n
	}
}

// Scanner reads JSON tokens from a buffered stream. It accepts exactly one
// top-level value followed by optional white space. A Scanner is not safe for
// concurrent use.
type Scanner struct {
	r        *bufio.Reader
	line     int
	col      int
	prevCR   bool
	pending  int
	stack    *stack.Stack[byte]
	maxDepth int
	state    state
	buf      []byte
	err      error
}

// New returns a Scanner reading from r. A UTF-8 byte-order mark is skipped.
// Because only UTF-8 is supported, UTF-16 and UTF-32 byte-order marks are
// reported as a ParseError; transcoding is the caller's job.
func New(r io.Reader, opts ...Option) (*Scanner, error) {
	s := &Scanner{
		r:        bufio.NewReaderSize(r, bufferSize),
		line:     1,
		col:      1,
		maxDepth: DefaultMaxDepth,
		stack:    stack.NewWithCapacity[byte](32),
		buf:      make([]byte, 0, 256),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.handleBOM(); err != nil {
		return nil, err
	}

	return s, nil
}

// Position returns the line and column of the next unread character.
func (s *Scanner) Position() (line, column int) {
	return s.line, s.col
}

// Next returns the next token. Once the top-level value is complete and only
// white space remains, Next returns an EndOfStream token. After an error every
// further call returns the same error.
func (s *Scanner) Next() (Token, error) {
	if s.err != nil {
		return Token{}, s.err
	}

	for {
		switch s.state {
		case stateDone:
			return Token{Kind: EndOfStream, Line: s.line, Column: s.col}, nil
		case stateColon:
			ch, p, err := s.readAfterWS()
			if err != nil {
				return Token{}, s.failRead(err)
			}
			if ch != ':' {
				return Token{}, s.unexpected(ch, p, ", expecting ':' after property name")
			}
			s.state = stateValue
			continue
		case stateAfterValue:
			if s.stack.IsEmpty() {
				if err := s.finish(); err != nil {
					return Token{}, err
				}
				continue
			}
			return s.afterValue()
		}

		ch, p, err := s.readAfterWS()
		if err != nil {
			// An empty document has no tokens, which is not an error.
			if s.state == stateBegin && errors.Is(err, io.EOF) {
				s.state = stateDone
				continue
			}
			return Token{}, s.failRead(err)
		}

		switch s.state {
		case stateFirstKey:
			if ch == '}' {
				return s.closeContainer(ObjectEnd, p), nil
			}
			if ch != '"' {
				return Token{}, s.unexpected(ch, p, ", expecting property name or '}'")
			}
			return s.readName(p)
		case stateKey:
			if ch != '"' {
				return Token{}, s.unexpected(ch, p, ", expecting property name")
			}
			return s.readName(p)
		case stateFirstElement:
			if ch == ']' {
				return s.closeContainer(ArrayEnd, p), nil
			}
		}

		return s.readValue(ch, p)
	}
}

// All returns an iterator over the remaining tokens. Iteration stops after the
// EndOfStream token or after the first error, which is yielded with a zero
// Token.
func (s *Scanner) All() iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		for {
			tok, err := s.Next()
			if err != nil {
				yield(Token{}, err)
				return
			}
			if !yield(tok, nil) || tok.Kind == EndOfStream {
				return
			}
		}
	}
}

func (s *Scanner) afterValue() (Token, error) {
	ch, p, err := s.readAfterWS()
	if err != nil {
		return Token{}, s.failRead(err)
	}

	top, _ := s.stack.Peek()
	switch ch {
	case ',':
		if top == '{' {
			s.state = stateKey
		} else {
			s.state = stateValue
		}
		return s.Next()
	case '}':
		if top == '{' {
			return s.closeContainer(ObjectEnd, p), nil
		}
	case ']':
		if top == '[' {
			return s.closeContainer(ArrayEnd, p), nil
		}
	}

	if top == '{' {
		return Token{}, s.unexpected(ch, p, ", expecting ',' or '}'")
	}
	return Token{}, s.unexpected(ch, p, ", expecting ',' or ']'")
}

// finish consumes trailing white space after the top-level value.
func (s *Scanner) finish() error {
	ch, p, err := s.readAfterWS()
	if err == nil {
		return s.unexpected(ch, p, " after end of JSON value")
	}
	if !errors.Is(err, io.EOF) {
		return s.failRead(err)
	}
	s.state = stateDone
	return nil
}

func (s *Scanner) readValue(ch byte, p position) (Token, error) {
	switch ch {
	case '{':
		if err := s.push('{', p); err != nil {
			return Token{}, err
		}
		s.state = stateFirstKey
		return Token{Kind: ObjectStart, Line: p.line, Column: p.column}, nil
	case '[':
		if err := s.push('[', p); err != nil {
			return Token{}, err
		}
		s.state = stateFirstElement
		return Token{Kind: ArrayStart, Line: p.line, Column: p.column}, nil
	case '"':
		text, err := s.readString(p)
		if err != nil {
			return Token{}, err
		}
		s.state = stateAfterValue
		return Token{Kind: String, Value: text, Line: p.line, Column: p.column}, nil
	case 't':
		return s.readLiteral(p, "true", Boolean)
	case 'f':
		return s.readLiteral(p, "false", Boolean)
	case 'n':
		return s.readLiteral(p, "null", Null)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return s.readNumber(ch, p)
	default:
		return Token{}, s.unexpected(ch, p, ", expecting value")
	}
}

func (s *Scanner) readName(p position) (Token, error) {
	text, err := s.readString(p)
	if err != nil {
		return Token{}, err
	}
	s.state = stateColon
	return Token{Kind: PropertyName, Value: text, Line: p.line, Column: p.column}, nil
}

func (s *Scanner) push(container byte, p position) error {
	if s.maxDepth > 0 && s.stack.Size() >= s.maxDepth {
		return s.fail(p, "maximum nesting depth of %d exceeded", s.maxDepth)
	}
	s.stack.Push(container)
	return nil
}

func (s *Scanner) closeContainer(kind Kind, p position) Token {
	s.stack.Pop()
	s.state = stateAfterValue
	return Token{Kind: kind, Line: p.line, Column: p.column}
}

// readString reads string content after the opening quote and returns the
// unescaped text.
func (s *Scanner) readString(start position) (string, error) {
	s.buf = s.buf[:0]
	for {
		p := s.position()
		ch, err := s.readByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", s.fail(p, "unterminated string starting at line %d, column %d", start.line, start.column)
			}
			return "", s.failRead(err)
		}

		switch {
		case ch == '"':
			return string(s.buf), nil
		case ch == '\\':
			if err := s.readEscape(); err != nil {
				return "", err
			}
		case ch < 0x20:
			return "", s.fail(p, "invalid control character %s in string", describe(ch))
		default:
			s.buf = append(s.buf, ch)
		}
	}
}

func (s *Scanner) readEscape() error {
	p := s.position()
	ch, err := s.readByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return s.fail(p, "unterminated escape sequence")
		}
		return s.failRead(err)
	}

	switch ch {
	case '"', '\\', '/':
		s.buf = append(s.buf, ch)
	case 'b':
		s.buf = append(s.buf, '\b')
	case 'f':
		s.buf = append(s.buf, '\f')
	case 'n':
		s.buf = append(s.buf, '\n')
	case 'r':
		s.buf = append(s.buf, '\r')
	case 't':
		s.buf = append(s.buf, '\t')
	case 'u':
		return s.readUnicodeEscape()
	default:
		return s.fail(p, "invalid escape character %s", describe(ch))
	}
	return nil
}

// readUnicodeEscape decodes the hex digits after \u and appends the rune.
// A high surrogate followed by a \u low surrogate forms one rune. Unpaired
// surrogates decode to U+FFFD, and a high surrogate that fails to pair is
// retried against the escape after it.
func (s *Scanner) readUnicodeEscape() error {
	r, err := s.readHex4()
	if err != nil {
		return err
	}

	for {
		if !utf16.IsSurrogate(r) {
			s.buf = utf8.AppendRune(s.buf, r)
			return nil
		}
		if r >= lowSurrogateStart {
			s.buf = utf8.AppendRune(s.buf, utf8.RuneError)
			return nil
		}

		next, err := s.r.Peek(2)
		if err != nil || next[0] != '\\' || next[1] != 'u' {
			s.buf = utf8.AppendRune(s.buf, utf8.RuneError)
			return nil
		}
		_, _ = s.readByte()
		_, _ = s.readByte()

		low, err := s.readHex4()
		if err != nil {
			return err
		}
		if pair := utf16.DecodeRune(r, low); pair != utf8.RuneError {
			s.buf = utf8.AppendRune(s.buf, pair)
			return nil
		}

		s.buf = utf8.AppendRune(s.buf, utf8.RuneError)
		r = low
	}
}

func (s *Scanner) readHex4() (rune, error) {
	var r rune
	for range 4 {
		p := s.position()
		ch, err := s.readByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, s.fail(p, "unexpected end of input in unicode escape")
			}
			return 0, s.failRead(err)
		}

		var v byte
		switch {
		case ch >= '0' && ch <= '9':
			v = ch - '0'
		case ch >= 'a' && ch <= 'f':
			v = ch - 'a' + 10
		case ch >= 'A' && ch <= 'F':
			v = ch - 'A' + 10
		default:
			return 0, s.fail(p, "invalid character %s in unicode escape", describe(ch))
		}
		r = r<<4 | rune(v)
	}
	return r, nil
}

// readLiteral matches the rest of true, false or null after its first letter.
func (s *Scanner) readLiteral(start position, literal string, kind Kind) (Token, error) {
	for i := 1; i < len(literal); i++ {
		p := s.position()
		ch, err := s.readByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Token{}, s.fail(p, "unexpected end of input while parsing %q", literal)
			}
			return Token{}, s.failRead(err)
		}
		if ch != literal[i] {
			return Token{}, s.unexpected(ch, p, " while parsing "+`"`+literal+`"`)
		}
	}

	s.state = stateAfterValue
	tok := Token{Kind: kind, Line: start.line, Column: start.column}
	if kind == Boolean {
		tok.Value = literal
	}
	return tok, nil
}

// readNumber reads the rest of a number whose first character is first. The
// literal text is kept as written.
func (s *Scanner) readNumber(first byte, start position) (Token, error) {
	s.buf = append(s.buf[:0], first)

	lead := first
	if first == '-' {
		ch, err := s.expectDigit("after '-'")
		if err != nil {
			return Token{}, err
		}
		lead = ch
	}

	if lead != '0' {
		if err := s.readDigits(); err != nil {
			return Token{}, err
		}
	}

	ch, ok, err := s.peek()
	if err != nil {
		return Token{}, err
	}
	if ok && ch == '.' {
		_, _ = s.readByte()
		s.buf = append(s.buf, '.')
		if _, err := s.expectDigit("after decimal point"); err != nil {
			return Token{}, err
		}
		if err := s.readDigits(); err != nil {
			return Token{}, err
		}
		ch, ok, err = s.peek()
		if err != nil {
			return Token{}, err
		}
	}

	if ok && (ch == 'e' || ch == 'E') {
		_, _ = s.readByte()
		s.buf = append(s.buf, ch)
		sign, ok, err := s.peek()
		if err != nil {
			return Token{}, err
		}
		if ok && (sign == '+' || sign == '-') {
			_, _ = s.readByte()
			s.buf = append(s.buf, sign)
		}
		if _, err := s.expectDigit("in exponent"); err != nil {
			return Token{}, err
		}
		if err := s.readDigits(); err != nil {
			return Token{}, err
		}
	}

	s.state = stateAfterValue
	return Token{Kind: Number, Value: string(s.buf), Line: start.line, Column: start.column}, nil
}

func (s *Scanner) expectDigit(where string) (byte, error) {
	p := s.position()
	ch, err := s.readByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, s.fail(p, "unexpected end of input, expecting digit %s", where)
		}
		return 0, s.failRead(err)
	}
	if !isDigit(ch) {
		return 0, s.fail(p, "invalid number: unexpected character %s, expecting digit %s", describe(ch), where)
	}
	s.buf = append(s.buf, ch)
	return ch, nil
}

func (s *Scanner) readDigits() error {
	for {
		ch, ok, err := s.peek()
		if err != nil {
			return err
		}
		if !ok || !isDigit(ch) {
			return nil
		}
		_, _ = s.readByte()
		s.buf = append(s.buf, ch)
	}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// peek returns the next byte without consuming it. ok is false at end of input.
func (s *Scanner) peek() (byte, bool, error) {
	buf, err := s.r.Peek(1)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, false, nil
		}
		return 0, false, s.failRead(err)
	}
	return buf[0], true, nil
}

func (s *Scanner) readByte() (byte, error) {
	ch, err := s.r.ReadByte()
	if err != nil {
		return 0, err
	}
	s.advance(ch)
	return ch, nil
}

// readAfterWS consumes white space and returns the next byte with its position.
func (s *Scanner) readAfterWS() (byte, position, error) {
	for {
		p := s.position()
		ch, err := s.readByte()
		if err != nil {
			return 0, p, err
		}
		switch ch {
		case ' ', '\t', '\n', '\r':
		default:
			return ch, p, nil
		}
	}
}

// advance moves the position past ch. Columns count characters: the
// continuation bytes of a multi-byte UTF-8 sequence do not move the column,
// but a continuation byte with no lead byte counts as a character of its own.
// CR, LF and CRLF end a line.
func (s *Scanner) advance(ch byte) {
	switch {
	case ch == '\n':
		if !s.prevCR {
			s.line++
			s.col = 1
		}
		s.prevCR = false
		s.pending = 0
		return
	case ch == '\r':
		s.line++
		s.col = 1
		s.prevCR = true
		s.pending = 0
		return
	case ch&0xC0 == 0x80 && s.pending > 0:
		s.pending--
	default:
		s.col++
		s.pending = continuationBytes(ch)
	}
	s.prevCR = false
}

// continuationBytes returns how many continuation bytes follow a UTF-8 lead
// byte.
func continuationBytes(ch byte) int {
	switch {
	case ch&0xE0 == 0xC0:
		return 1
	case ch&0xF0 == 0xE0:
		return 2
	case ch&0xF8 == 0xF0:
		return 3
	default:
		return 0
	}
}

func (s *Scanner) position() position {
	return position{line: s.line, column: s.col}
}

func (s *Scanner) fail(p position, format string, args ...any) error {
	s.err = &ParseError{Line: p.line, Column: p.column, Msg: fmt.Sprintf(format, args...)}
	return s.err
}

func (s *Scanner) unexpected(ch byte, p position, context string) error {
	return s.fail(p, "unexpected character %s%s", describe(ch), context)
}

// failRead reports a read failure. Running out of input in the middle of a
// value is a grammar error at the end position; anything else comes from the
// underlying reader.
func (s *Scanner) failRead(err error) error {
	if s.err != nil {
		return s.err
	}
	if errors.Is(err, io.EOF) {
		return s.fail(s.position(), "unexpected end of input")
	}
	s.err = newReadError(err)
	return s.err
}

// handleBOM discards a UTF-8 byte-order mark and rejects other encodings.
// Inability to peek is a no-op and is handled by the normal parser.
func (s *Scanner) handleBOM() error {
	preamble, err := s.r.Peek(4)
	if err == nil && (bytes.Equal(preamble, utf32BEBOM) || bytes.Equal(preamble, utf32LEBOM)) {
		return s.fail(s.position(), "unsupported UTF-32 byte order mark")
	}

	preamble, err = s.r.Peek(2)
	if err != nil {
		return nil
	}
	if bytes.Equal(preamble, utf16BEBOM) || bytes.Equal(preamble, utf16LEBOM) {
		return s.fail(s.position(), "unsupported UTF-16 byte order mark")
	}

	preamble, err = s.r.Peek(3)
	if err != nil {
		return nil
	}
	if bytes.Equal(preamble, utf8BOM) {
		_, _ = s.r.Discard(3)
	}
	return nil
}
