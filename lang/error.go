package lang

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
)

// Predefined errors (sentinel values).
//
// Sentinels form a hierarchy: an error derived from [ErrIndent] also matches
// [ErrScan] under [errors.Is].
var (
	ErrScan               = NewError("scan error")
	ErrIndent             = ErrScan.Kind("malformed indentation")
	ErrUnexpectedChar     = ErrScan.Kind("unexpected character")
	ErrUnterminatedString = ErrScan.Kind("unterminated string literal")
	ErrUnterminatedAttrs  = ErrScan.Kind("unterminated attribute list")

	ErrContinuationExhausted = NewError("attribute list not closed before end of input")

	ErrSyntax        = NewError("syntax error")
	ErrUnknownFilter = ErrSyntax.Kind("unknown filter")

	ErrExpression = NewError("expression error")
	ErrStatement  = ErrExpression.Kind("invalid statement")
	ErrIterate    = ErrExpression.Kind("value is not iterable")
	ErrRender     = NewError("render error")
	ErrWrite      = NewError("write output")

	ErrInvalidOption = NewError("invalid option")
	ErrReadInput     = NewError("failed to read input")
)

// Position is a 1-based line and column in template source.
type Position struct {
	Line   int `json:"line"   yaml:"line"`
	Column int `json:"column" yaml:"column"`
}

// IsValid reports whether p refers to a location in the source.
func (p Position) IsValid() bool { return p.Line > 0 }

// String returns "line:column".
func (p Position) String() string {
	return strconv.Itoa(p.Line) + ":" + strconv.Itoa(p.Column)
}

// Error represents an error with optional structured logging attributes.
// It implements both error and slog.LogValuer interfaces.
type Error struct {
	msg    string
	kind   *Error // sentinel this error was derived from
	parent *Error // for sentinels: the broader kind
	err    error  // wrapped error (for errors.Unwrap)
	pos    Position
	attrs  []slog.Attr
}

// NewError creates a new sentinel Error with a message.
func NewError(msg string) *Error {
	e := &Error{msg: msg}
	e.kind = e

	return e
}

// Kind creates a sentinel that is a narrower kind of e.
func (e *Error) Kind(msg string) *Error {
	k := NewError(msg)
	k.parent = e.kind

	return k
}

// WrapError wraps a standard error into an Error.
func WrapError(err error) *Error {
	var ee *Error
	if errors.As(err, &ee) {
		return ee
	}

	return &Error{err: err}
}

// Error implements the error interface:
//
//	<msg> at <line:col>: <cause>
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(e.msg)

	if e.pos.IsValid() {
		if b.Len() > 0 {
			b.WriteString(" at ")
		}

		b.WriteString(e.pos.String())
	}

	if e.err != nil {
		if b.Len() > 0 {
			b.WriteString(": ")
		}

		b.WriteString(e.err.Error())
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error { return e.err }

// Is reports whether target is the sentinel e was derived from, or one of
// that sentinel's broader kinds.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.kind != t {
		return false
	}

	for k := e.kind; k != nil; k = k.parent {
		if k == t {
			return true
		}
	}

	return false
}

// Position returns the source position the error refers to, if any.
func (e *Error) Position() Position { return e.pos }

// LogValue implements slog.LogValuer for rich structured logging.
func (e *Error) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(e.attrs)+4)

	if e.msg != "" {
		attrs = append(attrs, slog.String("error", e.msg))
	}

	if e.pos.IsValid() {
		attrs = append(attrs,
			slog.Int("line", e.pos.Line),
			slog.Int("column", e.pos.Column),
		)
	}

	if e.err != nil {
		attrs = append(attrs, slog.String("cause", e.err.Error()))
	}

	return slog.GroupValue(append(attrs, e.attrs...)...)
}

func (e *Error) derive() *Error {
	return &Error{
		msg:   e.msg,
		kind:  e.kind,
		err:   e.err,
		pos:   e.pos,
		attrs: e.attrs,
	}
}

// Wrap creates a new Error wrapping another error.
func (e *Error) Wrap(err error) *Error {
	d := e.derive()
	d.err = err

	return d
}

// At returns a copy of e located at pos.
func (e *Error) At(pos Position) *Error {
	d := e.derive()
	d.pos = pos

	return d
}

// With adds attributes to the error for structured logging.
// This creates a new Error instance to maintain immutability.
func (e *Error) With(attrs ...slog.Attr) *Error {
	d := e.derive()
	d.attrs = make([]slog.Attr, 0, len(e.attrs)+len(attrs))
	d.attrs = append(append(d.attrs, e.attrs...), attrs...)

	return d
}

// Attr returns the value of the first attribute with the given key.
func (e *Error) Attr(key string) (slog.Value, bool) {
	for _, a := range e.attrs {
		if a.Key == key {
			return a.Value, true
		}
	}

	return slog.Value{}, false
}
