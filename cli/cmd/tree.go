package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/ardnew/hbml/lang"
)

// Tree prints the block tree of a template, or its render program.
type Tree struct {
	Template `embed:""`

	Format string `default:"yaml" enum:"yaml,json" help:"Block tree output format (${enum})" short:"f"`
	Indent int    `default:"2"                     help:"Output indentation; 0 prints a compact document"`
	Ops    bool   `help:"Print the render program instead of the block tree"`
}

// Run executes the tree command.
func (t *Tree) Run(ctx context.Context) error {
	src, err := t.read()
	if err != nil {
		return err
	}

	w := stdout(ctx)

	if t.Ops {
		prog, err := lang.Compile(ctx, src, t.options()...)
		if err != nil {
			return err
		}

		return prog.Format(w)
	}

	tree, err := lang.Parse(ctx, src, t.options()...)
	if err != nil {
		return err
	}

	data, err := t.marshal(ctx, lang.Value(tree))
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintln(w, strings.TrimRight(string(data), "\n")); err != nil {
		return ErrWriteOutput.Wrap(err)
	}

	return nil
}

func (t *Tree) marshal(ctx context.Context, v any) ([]byte, error) {
	switch t.Format {
	case "json":
		var (
			data []byte
			err  error
		)

		if t.Indent > 0 {
			data, err = json.MarshalIndent(v, "", strings.Repeat(" ", t.Indent))
		} else {
			data, err = json.Marshal(v)
		}

		if err != nil {
			return nil, ErrJSONMarshal.Wrap(err)
		}

		return data, nil

	case "yaml", "":
		opts := []yaml.EncodeOption{yaml.Flow(true)}
		if t.Indent > 0 {
			opts = []yaml.EncodeOption{yaml.Indent(t.Indent)}
		}

		data, err := yaml.MarshalContext(ctx, v, opts...)
		if err != nil {
			return nil, ErrYAMLMarshal.Wrap(err)
		}

		return data, nil

	default:
		return nil, ErrFormat.With(slog.String("format", t.Format))
	}
}
