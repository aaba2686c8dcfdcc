package lang

import (
	"log/slog"

	"github.com/ardnew/hbml/log"
)

// Default option values.
const (
	DefaultIndentWidth = 2
	DefaultTag         = "div"
)

// Option configures compilation.
type Option func(*options)

type options struct {
	indentWidth int
	pretty      bool
	defaultTag  string
	engine      Engine
	logger      log.Logger

	customEngine bool
}

func makeOptions(opts ...Option) (*options, error) {
	o := &options{
		indentWidth: DefaultIndentWidth,
		defaultTag:  DefaultTag,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	if o.indentWidth <= 0 {
		return nil, ErrInvalidOption.With(
			slog.String("option", "indent width"),
			slog.Int("value", o.indentWidth),
		)
	}

	if !validTagName(o.defaultTag) {
		return nil, ErrInvalidOption.With(
			slog.String("option", "default tag"),
			slog.String("value", o.defaultTag),
		)
	}

	if o.engine == nil {
		o.engine = defaultEngine()
	}

	return o, nil
}

func validTagName(name string) bool {
	if name == "" || !isIdentStart(name[0]) {
		return false
	}

	for i := 1; i < len(name); i++ {
		if !isIdentChar(name[i]) {
			return false
		}
	}

	return true
}

// WithIndentWidth sets the number of spaces per indentation level. Source
// indentation must be a multiple of it, and pretty output indents by it.
func WithIndentWidth(n int) Option {
	return func(o *options) { o.indentWidth = n }
}

// WithPretty selects uncompressed output: one element per line, nested
// content indented. The default is compressed output with no whitespace
// between elements.
func WithPretty(pretty bool) Option {
	return func(o *options) { o.pretty = pretty }
}

// WithDefaultTag sets the tag name used when a brief has no % mark.
func WithDefaultTag(name string) Option {
	return func(o *options) { o.defaultTag = name }
}

// WithEngine sets the scripting engine that evaluates embedded expressions
// and statements. The default is a shared [ExprEngine].
func WithEngine(e Engine) Option {
	return func(o *options) {
		o.engine = e
		o.customEngine = e != nil
	}
}

// WithLogger sets the logger for compiler diagnostics (TRACE and DEBUG).
func WithLogger(logger log.Logger) Option {
	return func(o *options) { o.logger = logger }
}
