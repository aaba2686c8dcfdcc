package lang

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"strings"

	"github.com/ardnew/hbml/log"
)

// Render renders p to w. It is shorthand for p.Render(ctx, w, bindings).
func Render(ctx context.Context, p *Program, w io.Writer, bindings map[string]any) error {
	return p.Render(ctx, w, bindings)
}

// Render executes the program against bindings, writing markup to w.
//
// Output written before a failure is not retracted.
func (p *Program) Render(ctx context.Context, w io.Writer, bindings map[string]any) error {
	if p == nil {
		return ErrRender.With(slog.String("reason", "nil program"))
	}

	scope := Scope(maps.Clone(bindings))
	if scope == nil {
		scope = Scope{}
	}

	r := &renderer{ctx: ctx, w: w, engine: p.engine, logger: p.logger}
	if r.engine == nil {
		r.engine = defaultEngine()
	}

	if err := r.run(p, scope); err != nil {
		p.logger.DebugContext(ctx, "render failed", slog.Any("error", err))

		return err
	}

	if len(r.open) > 0 {
		return ErrRender.With(slog.String("unclosed", r.open[len(r.open)-1]))
	}

	return nil
}

// RenderString renders the program and returns the output.
func (p *Program) RenderString(ctx context.Context, bindings map[string]any) (string, error) {
	var sb strings.Builder

	err := p.Render(ctx, &sb, bindings)

	return sb.String(), err
}

// renderer holds the state of one render.
type renderer struct {
	ctx    context.Context
	w      io.Writer
	engine Engine
	logger log.Logger
	open   []string
}

func (r *renderer) run(p *Program, scope Scope) error {
	depth := len(r.open)
	prev := OutcomeNone

	for _, op := range p.ops {
		if c, ok := op.(Control); ok {
			out, err := r.control(c, scope, prev)
			if err != nil {
				return err
			}

			prev = out

			continue
		}

		prev = OutcomeNone

		if err := r.exec(op, scope); err != nil {
			return err
		}
	}

	if len(r.open) != depth {
		return ErrRender.With(
			slog.Int("depth", depth),
			slog.Int("open", len(r.open)),
		)
	}

	return nil
}

func (r *renderer) exec(op Op, scope Scope) error {
	switch op := op.(type) {
	case WriteLiteral:
		return r.write(op.Text)

	case WriteValue:
		v, err := r.evaluate(op.Expr, op.Pos, scope)
		if err != nil {
			return err
		}

		s := Stringify(v)
		if op.Escape {
			s = Escape(s)
		}

		return r.write(s)

	case WriteAttr:
		v, err := r.evaluate(op.Expr, op.Pos, scope)
		if err != nil {
			return err
		}

		return r.write(literalAttr(op.Key, Stringify(v)))

	case OpenTag:
		r.open = append(r.open, op.Name)

		return r.write("<" + op.Name)

	case CloseAngle:
		if op.SelfClose {
			r.open = r.open[:len(r.open)-1]

			return r.write(" />")
		}

		return r.write(">")

	case CloseTag:
		if n := len(r.open); n == 0 || r.open[n-1] != op.Name {
			return ErrRender.With(
				slog.String("close", op.Name),
				slog.Any("open", r.open),
			)
		}

		r.open = r.open[:len(r.open)-1]

		return r.write("</" + op.Name + ">")

	case Block:
		return r.run(op.Body, scope)

	case InvokeFilter:
		fn, ok := filters[op.Name]
		if !ok {
			return ErrUnknownFilter.With(slog.String("filter", op.Name))
		}

		if err := fn(r.w, op.Text); err != nil {
			return ErrWrite.Wrap(err)
		}

		return nil
	}

	return ErrRender.With(slog.String("op", op.String()))
}

func (r *renderer) control(c Control, scope Scope, prev Outcome) (Outcome, error) {
	var bodyErr error

	out, err := r.engine.Execute(c.Stmt, scope, prev, func(s Scope) error {
		bodyErr = r.run(c.Body, s)

		return bodyErr
	})

	r.logger.TraceContext(r.ctx, "control",
		slog.String("stmt", c.Stmt),
		slog.String("prev", prev.String()),
		slog.String("outcome", out.String()),
	)

	switch {
	case err == nil:
		return out, nil

	case bodyErr != nil:
		// Errors from the body pass through the engine unchanged.
		return out, bodyErr

	default:
		return out, ErrExpression.
			At(c.Pos).
			With(slog.String("statement", c.Stmt)).
			Wrap(err)
	}
}

func (r *renderer) evaluate(expr string, pos Position, scope Scope) (any, error) {
	v, err := r.engine.Evaluate(expr, scope)
	if err != nil {
		return nil, ErrExpression.
			At(pos).
			With(slog.String("expression", expr)).
			Wrap(err)
	}

	return v, nil
}

func (r *renderer) write(s string) error {
	if s == "" {
		return nil
	}

	if _, err := io.WriteString(r.w, s); err != nil {
		return ErrWrite.Wrap(err)
	}

	return nil
}
