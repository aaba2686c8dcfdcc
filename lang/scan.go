package lang

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"

	"github.com/ardnew/hbml/log"
)

// Scanner converts template source into a stream of [Token] values.
//
// The scanner is line oriented. Each non-blank physical line is measured
// against the indentation stack, producing [Indent] and [Outdent] tokens,
// and its body is tokenized by a small mode machine (see scanLine).
//
// An attribute list left open at the end of a line is reported as
// [ErrUnterminatedAttrs]; the caller may then invoke [Scanner.Continue] to
// join the next physical line and rescan. Any other error is fatal and is
// returned by every later call to [Scanner.Next].
type Scanner struct {
	src     *source
	opts    *options
	indents []int
	queue   []Token
	next    mode // modeFilter after a line whose brief names a filter

	pending    *logical // line waiting for continuation
	pendingErr error

	err  error
	done bool
	last int // number of the last line read
}

// logical is a line body (after indentation) that may span several
// physical lines when continued.
type logical struct {
	text   string
	no     int
	indent int
}

// NewScanner returns a Scanner over src.
func NewScanner(src string, opts ...Option) (*Scanner, error) {
	o, err := makeOptions(opts...)
	if err != nil {
		return nil, err
	}

	return newScanner(src, o), nil
}

func newScanner(src string, o *options) *Scanner {
	return &Scanner{
		src:     newSource(src),
		opts:    o,
		indents: []int{0},
	}
}

// Scan returns an iterator over the tokens of src. Iteration stops after
// [EOF] or the first error, which is yielded with a zero Token.
//
// Scan does not perform line continuation; an attribute list spanning lines
// yields [ErrUnterminatedAttrs]. Use [Tokens] for the stream the parser
// sees.
func Scan(src string, opts ...Option) iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		s, err := NewScanner(src, opts...)
		if err != nil {
			yield(Token{}, err)

			return
		}

		for {
			tok, err := s.Next()
			if err != nil {
				yield(Token{}, err)

				return
			}

			if !yield(tok, nil) || tok.Kind == EOF {
				return
			}
		}
	}
}

// Next returns the next token. After [EOF] it keeps returning EOF.
func (s *Scanner) Next() (Token, error) {
	for len(s.queue) == 0 {
		switch {
		case s.err != nil:
			return Token{}, s.err

		case s.pending != nil:
			return Token{}, s.pendingErr

		case s.done:
			return Token{Kind: EOF, Pos: Position{Line: s.last + 1, Column: 1}}, nil
		}

		if err := s.advance(); err != nil {
			s.err = err

			return Token{}, err
		}
	}

	tok := s.queue[0]
	s.queue = s.queue[1:]

	if ctx := context.TODO(); s.opts.logger.Enabled(ctx, log.LevelTrace) {
		s.opts.logger.TraceContext(ctx, "token", slog.String("token", tok.String()))
	}

	return tok, nil
}

// Continue joins the next non-blank physical line onto the logical line
// whose attribute list is still open and rescans it. It is a no-op when no
// line is waiting. When the source is exhausted it fails with
// [ErrContinuationExhausted].
func (s *Scanner) Continue() error {
	l := s.pending
	if l == nil {
		return nil
	}

	for {
		ln, ok := s.src.read()
		if !ok {
			s.err = ErrContinuationExhausted.
				At(Position{Line: l.no, Column: l.indent + 1}).
				With(slog.Int("end_line", s.last))
			s.pending, s.pendingErr = nil, nil

			return s.err
		}

		s.last = ln.no

		if ln.blank() {
			continue
		}

		l.text = strings.TrimRight(l.text, " \t") + " " + strings.TrimSpace(ln.text)
		s.pending, s.pendingErr = nil, nil

		if err := s.scanLogical(l); err != nil {
			s.err = err

			return err
		}

		return nil
	}
}

func (s *Scanner) advance() error {
	if s.next == modeFilter {
		s.next = modeDefault

		if s.captureFilter() {
			return nil
		}
	}

	for {
		ln, ok := s.src.read()
		if !ok {
			s.finish()

			return nil
		}

		s.last = ln.no

		if ln.blank() {
			continue
		}

		width, err := s.measure(ln)
		if err != nil {
			return err
		}

		if err := s.align(width, ln.no); err != nil {
			return err
		}

		return s.scanLogical(&logical{text: ln.text[width:], no: ln.no, indent: width})
	}
}

// measure returns the indentation width of a non-blank line.
func (s *Scanner) measure(ln line) (int, error) {
	width := 0

	for _, c := range []byte(ln.text) {
		if c == ' ' {
			width++

			continue
		}

		if c == '\t' {
			return 0, ErrIndent.
				At(Position{Line: ln.no, Column: width + 1}).
				With(slog.String("reason", "tab in indentation"))
		}

		break
	}

	if width%s.opts.indentWidth != 0 {
		return 0, ErrIndent.
			At(Position{Line: ln.no, Column: 1}).
			With(
				slog.String("reason", "width is not a multiple of the indent width"),
				slog.Int("width", width),
				slog.Int("indent_width", s.opts.indentWidth),
			)
	}

	return width, nil
}

// align updates the indentation stack for a line of the given width.
func (s *Scanner) align(width, no int) error {
	pos := Position{Line: no, Column: 1}
	top := s.indents[len(s.indents)-1]

	switch {
	case width > top:
		s.indents = append(s.indents, width)
		s.queue = append(s.queue, Token{Kind: Indent, Pos: pos})

	case width < top:
		for width < top {
			s.indents = s.indents[:len(s.indents)-1]
			s.queue = append(s.queue, Token{Kind: Outdent, Pos: pos})
			top = s.indents[len(s.indents)-1]
		}

		if width != top {
			return ErrIndent.
				At(pos).
				With(
					slog.String("reason", "outdent does not match any outer level"),
					slog.Int("width", width),
				)
		}
	}

	return nil
}

func (s *Scanner) scanLogical(l *logical) error {
	toks, err := scanLine(l.text, l.no, l.indent+1)
	if errors.Is(err, ErrUnterminatedAttrs) {
		s.pending, s.pendingErr = l, err

		return nil
	}

	if err != nil {
		return err
	}

	for _, tok := range toks {
		if tok.Kind == FilterMark {
			s.next = modeFilter
		}
	}

	s.queue = append(s.queue, toks...)

	return nil
}

// captureFilter consumes the lines nested under a filter tag and queues them
// as Indent RawText Outdent. It reports false if the tag has no body.
func (s *Scanner) captureFilter() bool {
	owner := s.indents[len(s.indents)-1]

	var (
		body []line
		base = -1
	)

	for {
		ln, ok := s.src.read()
		if !ok {
			break
		}

		if ln.blank() {
			body = append(body, ln)

			continue
		}

		width := leading(ln.text)
		if width <= owner {
			s.src.unread()

			break
		}

		if base < 0 {
			base = width
		}

		body = append(body, ln)
		s.last = ln.no
	}

	for len(body) > 0 && body[len(body)-1].blank() {
		body = body[:len(body)-1]
	}

	if base < 0 {
		return false
	}

	// Body lines are kept verbatim, leading whitespace included.
	text := make([]string, 0, len(body))
	for _, ln := range body {
		text = append(text, ln.text)
	}

	first := Position{Line: body[0].no, Column: 1}
	for _, ln := range body {
		if !ln.blank() {
			first = Position{Line: ln.no, Column: base + 1}

			break
		}
	}

	s.queue = append(s.queue,
		Token{Kind: Indent, Pos: first},
		Token{Kind: RawText, Text: strings.Join(text, "\n"), Pos: first},
		Token{Kind: Outdent, Pos: first},
	)

	return true
}

// finish closes every open indentation level and queues EOF.
func (s *Scanner) finish() {
	pos := Position{Line: s.last + 1, Column: 1}

	for len(s.indents) > 1 {
		s.indents = s.indents[:len(s.indents)-1]
		s.queue = append(s.queue, Token{Kind: Outdent, Pos: pos})
	}

	s.queue = append(s.queue, Token{Kind: EOF, Pos: pos})
	s.done = true
}
