package cmd

import (
	"context"
	"log/slog"

	"github.com/ardnew/hbml/lang"
	"github.com/ardnew/hbml/log"
)

// Render compiles a template and renders it against bindings.
type Render struct {
	Template `embed:""`
	Bindings `embed:""`

	Output string `default:"-" help:"Output file or '-' for stdout" short:"o" type:"path"`
}

// Run executes the render command.
func (r *Render) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	bindings, err := r.load()
	if err != nil {
		return err
	}

	src, err := r.open()
	if err != nil {
		return err
	}
	defer src.Close()

	prog, err := lang.CompileReader(ctx, src, r.options()...)
	if err != nil {
		return err
	}

	out, err := create(r.Output, stdout(ctx))
	if err != nil {
		return err
	}

	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = ErrWriteOutput.With(slog.String("file", r.Output)).Wrap(cerr)
		}
	}()

	log.DebugContext(ctx, "render",
		slog.String("source", r.Source),
		slog.Int("ops", prog.Len()),
		slog.Int("bindings", len(bindings)),
	)

	return prog.Render(ctx, out, bindings)
}
