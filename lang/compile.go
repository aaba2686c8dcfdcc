package lang

import (
	"context"
	"log/slog"
	"strings"
)

// Compile parses src and lowers it to a [Program].
func Compile(ctx context.Context, src string, opts ...Option) (*Program, error) {
	o, err := makeOptions(opts...)
	if err != nil {
		return nil, err
	}

	return compile(ctx, src, o)
}

func compile(ctx context.Context, src string, o *options) (*Program, error) {
	tree, err := parse(ctx, src, o)
	if err != nil {
		return nil, err
	}

	return lower(ctx, tree, o)
}

// Lower compiles a Block Tree to a [Program].
func Lower(tree *Sequence, opts ...Option) (*Program, error) {
	o, err := makeOptions(opts...)
	if err != nil {
		return nil, err
	}

	return lower(context.Background(), tree, o)
}

func lower(ctx context.Context, tree *Sequence, o *options) (*Program, error) {
	c := &compiler{ctx: ctx, opts: o}

	prog, err := c.program(tree, 0)
	if err != nil {
		o.logger.DebugContext(ctx, "lower failed", slog.Any("error", err))

		return nil, err
	}

	o.logger.TraceContext(ctx, "lowered",
		slog.Int("ops", prog.Len()),
		slog.Bool("pretty", o.pretty),
	)

	return prog, nil
}

type compiler struct {
	ctx  context.Context
	opts *options
}

func (c *compiler) program(seq *Sequence, depth int) (*Program, error) {
	var b builder

	if seq != nil {
		for _, n := range seq.Items {
			if err := c.node(&b, n, depth); err != nil {
				return nil, err
			}
		}
	}

	return &Program{ops: b.ops, engine: c.opts.engine, logger: c.opts.logger}, nil
}

func (c *compiler) node(b *builder, n Node, depth int) error {
	switch n := n.(type) {
	case *Tag:
		return c.tag(b, n, depth)

	case *Statement:
		return c.statement(b, n, depth)

	case *Text:
		c.line(b, depth, WriteLiteral{Text: n.Text})

		return c.block(b, n.Body, depth+1)

	case *Sequence:
		for _, it := range n.Items {
			if err := c.node(b, it, depth); err != nil {
				return err
			}
		}

		return nil
	}

	return ErrSyntax.At(n.Position()).With(slog.String("reason", "unexpected node"))
}

// line emits op on a line of its own when pretty.
func (c *compiler) line(b *builder, depth int, op Op) {
	b.literal(c.indent(depth))
	b.emit(op)
	c.newline(b)
}

func (c *compiler) indent(depth int) string {
	if !c.opts.pretty {
		return ""
	}

	return strings.Repeat(" ", depth*c.opts.indentWidth)
}

func (c *compiler) newline(b *builder) {
	if c.opts.pretty {
		b.literal("\n")
	}
}

func (c *compiler) block(b *builder, seq *Sequence, depth int) error {
	if seq == nil || len(seq.Items) == 0 {
		return nil
	}

	body, err := c.program(seq, depth)
	if err != nil {
		return err
	}

	b.emit(Block{Body: body})

	return nil
}

func (c *compiler) statement(b *builder, n *Statement, depth int) error {
	switch n.Flag {
	case StatementFlag:
		body, err := c.program(n.Body, depth)
		if err != nil {
			return err
		}

		b.emit(Control{Stmt: n.Text, Pos: n.Pos, Body: body})

		return nil

	case EchoFlag, EscapedEchoFlag:
		c.line(b, depth, WriteValue{Expr: n.Text, Escape: n.Flag == EscapedEchoFlag, Pos: n.Pos})

		return c.block(b, n.Body, depth+1)
	}

	return ErrSyntax.At(n.Pos).With(slog.String("flag", n.Flag.String()))
}

func (c *compiler) tag(b *builder, n *Tag, depth int) error {
	name := n.Brief.TagName(c.opts.defaultTag)

	b.literal(c.indent(depth))
	b.emit(OpenTag{Name: name})

	if id, ok := n.Brief.ID(); ok {
		b.literal(literalAttr("id", id))
	}

	if classes := n.Brief.Classes(); len(classes) > 0 {
		b.literal(literalAttr("class", strings.Join(classes, " ")))
	}

	for _, a := range n.Attrs {
		if a.Literal {
			b.literal(literalAttr(a.Key, a.Value))
		} else {
			b.emit(WriteAttr{Key: a.Key, Expr: a.Value, Pos: a.Pos})
		}
	}

	if n.Tail == TailSelfClose {
		if n.Body != nil {
			c.opts.logger.DebugContext(c.ctx, "ignoring body of self-closing tag",
				slog.String("tag", name),
				slog.String("pos", n.Pos.String()),
			)
		}

		b.emit(CloseAngle{SelfClose: true})
		c.newline(b)

		return nil
	}

	b.emit(CloseAngle{})

	if n.Tail == TailText {
		b.literal(n.Text)
	}

	switch body := n.Body.(type) {
	case *Raw:
		filter, _ := n.Brief.Filter()
		if _, ok := filters[filter]; !ok {
			return ErrUnknownFilter.At(n.Pos).With(slog.String("filter", filter))
		}

		b.literal("\n")
		b.emit(InvokeFilter{Name: filter, Text: body.Text})

		if c.opts.pretty {
			b.literal("\n" + c.indent(depth))
		}

	case *Sequence:
		if len(body.Items) > 0 {
			c.newline(b)

			if err := c.block(b, body, depth+1); err != nil {
				return err
			}

			b.literal(c.indent(depth))
		}
	}

	b.emit(CloseTag{Name: name})
	c.newline(b)

	return nil
}

func literalAttr(key, value string) string {
	return " " + key + `="` + escapeQuotes(value) + `"`
}
