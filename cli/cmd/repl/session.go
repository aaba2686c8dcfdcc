package repl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/ardnew/hbml/lang"
	"github.com/ardnew/hbml/log"
)

// session is the template being built: its lines, the bindings it renders
// against, and the compile options.
type session struct {
	lines    []string
	bindings map[string]any
	pretty   bool
	opts     []lang.Option
	cache    *lang.Cache
	logger   log.Logger
}

func newSession(src string, bindings map[string]any, pretty bool, logger log.Logger, opts ...lang.Option) *session {
	if bindings == nil {
		bindings = map[string]any{}
	}

	return &session{
		lines:    splitLines(src),
		bindings: bindings,
		pretty:   pretty,
		opts:     append(slices.Clip(opts), lang.WithLogger(logger)),
		cache:    lang.NewCache(),
		logger:   logger,
	}
}

// source returns the template text.
func (s *session) source() string { return strings.Join(s.lines, "\n") }

func (s *session) compile(ctx context.Context, src string) (*lang.Program, error) {
	return s.cache.Compile(ctx, src, append(slices.Clip(s.opts), lang.WithPretty(s.pretty))...)
}

// render compiles and renders the whole template.
func (s *session) render(ctx context.Context) (string, error) {
	if len(s.lines) == 0 {
		return "", ErrNoTemplate
	}

	prog, err := s.compile(ctx, s.source())
	if err != nil {
		return "", err
	}

	return prog.RenderString(ctx, s.bindings)
}

// add appends line to the template when the result still compiles, and
// returns the new rendering. A line that leaves an attribute list open is
// accepted and reported by pending. A line that breaks compilation is
// rejected and the template is unchanged.
func (s *session) add(ctx context.Context, line string) (out string, pending bool, err error) {
	lines := append(slices.Clip(s.lines), line)

	_, err = s.compile(ctx, strings.Join(lines, "\n"))

	switch {
	case errors.Is(err, lang.ErrContinuationExhausted):
		s.lines = lines

		return "", true, nil

	case err != nil:
		s.logger.TraceContext(ctx, "repl line rejected",
			slog.String("line", line),
			slog.Any("error", err),
		)

		return "", false, err
	}

	s.lines = lines

	out, err = s.render(ctx)

	return out, false, err
}

// undo removes the last line.
func (s *session) undo() bool {
	if len(s.lines) == 0 {
		return false
	}

	s.lines = s.lines[:len(s.lines)-1]

	return true
}

// reset removes every line.
func (s *session) reset() { s.lines = nil }

// replace swaps in an edited template.
func (s *session) replace(src string) { s.lines = splitLines(src) }

// set binds name to text decoded as a YAML value; text that is not valid
// YAML binds as a string.
func (s *session) set(name, text string) {
	var v any
	if err := yaml.Unmarshal([]byte(text), &v); err != nil || v == nil {
		v = text
	}

	s.bindings[name] = v
}

// unset removes a binding and reports whether it existed.
func (s *session) unset(name string) bool {
	_, ok := s.bindings[name]
	delete(s.bindings, name)

	return ok
}

// vars lists the bindings as "name = value" lines, sorted by name.
func (s *session) vars() string {
	var b strings.Builder

	for _, name := range slices.Sorted(maps.Keys(s.bindings)) {
		fmt.Fprintf(&b, "%s = %s\n", name, formatValue(s.bindings[name]))
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// listing returns the template with 1-based line numbers.
func (s *session) listing() string {
	var b strings.Builder

	width := len(fmt.Sprint(len(s.lines)))

	for i, line := range s.lines {
		fmt.Fprintf(&b, "%*d  %s\n", width, i+1, line)
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// ops returns the render program listing.
func (s *session) ops(ctx context.Context) (string, error) {
	if len(s.lines) == 0 {
		return "", ErrNoTemplate
	}

	prog, err := s.compile(ctx, s.source())
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if err := prog.Format(&b); err != nil {
		return "", err
	}

	return strings.TrimSuffix(b.String(), "\n"), nil
}

// formatValue renders a binding in YAML flow style.
func formatValue(v any) string {
	data, err := yaml.MarshalWithOptions(v, yaml.Flow(true))
	if err != nil {
		return fmt.Sprint(v)
	}

	return strings.TrimSpace(string(data))
}
