package lang

import (
	"context"
	"errors"
	"iter"
	"log/slog"
)

// parser is a recursive descent parser over the continuation-aware token
// stream of a [Scanner]:
//
//	blocks    := block*
//	block     := header (INDENT (blocks | RAW) OUTDENT)?
//	header    := tag | statement | PLAINTEXT NEWLINE
//	tag       := (MARK KEYWORD)+ attrs? (PLAINTEXT | SELFCLOSE)? NEWLINE
//	attrs     := '(' (KEYWORD '=' value (',' KEYWORD '=' value)* ','?)? ')'
//	statement := FLAG EXPRTEXT NEWLINE
type parser struct {
	s      *Scanner
	opts   *options
	tok    Token
	peeked bool
}

func newParser(src string, o *options) *parser {
	return &parser{s: newScanner(src, o), opts: o}
}

// Parse parses template source into its Block Tree.
func Parse(ctx context.Context, src string, opts ...Option) (*Sequence, error) {
	o, err := makeOptions(opts...)
	if err != nil {
		return nil, err
	}

	return parse(ctx, src, o)
}

func parse(ctx context.Context, src string, o *options) (*Sequence, error) {
	p := newParser(src, o)

	seq, err := p.blocks(false)
	if err != nil {
		o.logger.DebugContext(ctx, "parse failed", slog.Any("error", err))

		return nil, err
	}

	if _, err := p.expect(EOF, "end of input"); err != nil {
		return nil, err
	}

	o.logger.TraceContext(ctx, "parsed",
		slog.Int("blocks", len(seq.Items)),
		slog.Int("lines", p.s.last),
	)

	return seq, nil
}

// Tokens returns an iterator over the token stream the parser consumes:
// the output of [Scan] with attribute lists spanning several physical lines
// joined into one logical line.
func Tokens(src string, opts ...Option) iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		o, err := makeOptions(opts...)
		if err != nil {
			yield(Token{}, err)

			return
		}

		p := newParser(src, o)

		for {
			tok, err := p.fetch()
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

// fetch pulls the next token, continuing open attribute lists.
func (p *parser) fetch() (Token, error) {
	for {
		tok, err := p.s.Next()
		if errors.Is(err, ErrUnterminatedAttrs) {
			if err := p.s.Continue(); err != nil {
				return Token{}, err
			}

			continue
		}

		return tok, err
	}
}

func (p *parser) peek() (Token, error) {
	if !p.peeked {
		tok, err := p.fetch()
		if err != nil {
			return Token{}, err
		}

		p.tok, p.peeked = tok, true
	}

	return p.tok, nil
}

func (p *parser) next() (Token, error) {
	tok, err := p.peek()
	p.peeked = false

	return tok, err
}

func (p *parser) expect(kind Kind, what string) (Token, error) {
	tok, err := p.next()
	if err != nil {
		return Token{}, err
	}

	if tok.Kind != kind {
		return Token{}, unexpected(tok, what)
	}

	return tok, nil
}

func unexpected(tok Token, what string) error {
	return ErrSyntax.
		At(tok.Pos).
		With(
			slog.String("found", tok.String()),
			slog.String("expected", what),
		)
}

func (p *parser) blocks(nested bool) (*Sequence, error) {
	seq := &Sequence{}

	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}

		switch {
		case tok.Kind == EOF:
			return seq, nil

		case tok.Kind == Outdent && nested:
			return seq, nil
		}

		if len(seq.Items) == 0 {
			seq.Pos = tok.Pos
		}

		n, err := p.block()
		if err != nil {
			return nil, err
		}

		seq.Items = append(seq.Items, n)
	}
}

func (p *parser) block() (Node, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}

	var n Node

	switch {
	case tok.Kind.IsMark():
		n, err = p.tag()

	case tok.Kind.IsFlag():
		n, err = p.statement()

	case tok.Kind == PlainText:
		p.next()

		n = &Text{Pos: tok.Pos, Text: tok.Text}
		_, err = p.expect(Newline, "end of line")

	default:
		return nil, unexpected(tok, "tag, statement or text")
	}

	if err != nil {
		return nil, err
	}

	if tok, err = p.peek(); err != nil || tok.Kind != Indent {
		return n, err
	}

	p.next()

	if err := p.body(n); err != nil {
		return nil, err
	}

	_, err = p.expect(Outdent, "end of indented block")

	return n, err
}

// body parses the indented block owned by header n.
func (p *parser) body(n Node) error {
	if tag, ok := n.(*Tag); ok {
		if _, filtered := tag.Brief.Filter(); filtered {
			raw, err := p.expect(RawText, "filter body")
			if err != nil {
				return err
			}

			tag.Body = &Raw{Pos: raw.Pos, Text: raw.Text}

			return nil
		}
	}

	seq, err := p.blocks(true)
	if err != nil {
		return err
	}

	switch n := n.(type) {
	case *Tag:
		n.Body = seq
	case *Statement:
		n.Body = seq
	case *Text:
		n.Body = seq
	}

	return nil
}

func (p *parser) statement() (*Statement, error) {
	flag, _ := p.next()

	text, err := p.expect(ExprText, "expression")
	if err != nil {
		return nil, err
	}

	if text.Text == "" {
		return nil, unexpected(text, "non-empty expression")
	}

	if _, err := p.expect(Newline, "end of line"); err != nil {
		return nil, err
	}

	return &Statement{Pos: flag.Pos, Flag: flag.Kind, Text: text.Text}, nil
}

func (p *parser) tag() (*Tag, error) {
	first, _ := p.peek()
	tag := &Tag{Pos: first.Pos}

	for {
		mark, err := p.peek()
		if err != nil {
			return nil, err
		}

		if !mark.Kind.IsMark() {
			break
		}

		p.next()

		name, err := p.expect(Keyword, "identifier")
		if err != nil {
			return nil, err
		}

		item := BriefItem{Mark: Mark(mark.Text[0]), Name: name.Text}

		if item.Mark == MarkFilter {
			if _, dup := tag.Brief.Filter(); dup {
				return nil, ErrSyntax.
					At(mark.Pos).
					With(slog.String("reason", "more than one filter"))
			}

			if _, ok := filters[item.Name]; !ok {
				return nil, ErrUnknownFilter.
					At(name.Pos).
					With(slog.String("filter", item.Name))
			}
		}

		tag.Brief = append(tag.Brief, item)
	}

	tok, err := p.peek()
	if err != nil {
		return nil, err
	}

	if tok.Kind == OpenParen {
		p.next()

		if tag.Attrs, err = p.attrs(); err != nil {
			return nil, err
		}

		if tok, err = p.peek(); err != nil {
			return nil, err
		}
	}

	switch tok.Kind {
	case SelfClose:
		p.next()

		tag.Tail = TailSelfClose

	case PlainText:
		p.next()

		tag.Tail, tag.Text = TailText, tok.Text
	}

	if _, err := p.expect(Newline, "end of line"); err != nil {
		return nil, err
	}

	return tag, nil
}

func (p *parser) attrs() ([]Attr, error) {
	attrs := []Attr{}

	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}

		if tok.Kind == CloseParen {
			return attrs, nil
		}

		if tok.Kind != Keyword {
			return nil, unexpected(tok, "attribute name or )")
		}

		if _, err := p.expect(Equal, "="); err != nil {
			return nil, err
		}

		val, err := p.next()
		if err != nil {
			return nil, err
		}

		attr := Attr{Key: tok.Text, Value: val.Text, Pos: tok.Pos}

		switch {
		case val.Kind == StringLiteral:
			attr.Literal = true

		case val.Kind == ExprText && val.Text != "":

		default:
			return nil, unexpected(val, "attribute value")
		}

		attrs = append(attrs, attr)

		sep, err := p.next()
		if err != nil {
			return nil, err
		}

		switch sep.Kind {
		case Comma:
		case CloseParen:
			return attrs, nil
		default:
			return nil, unexpected(sep, ", or )")
		}
	}
}
