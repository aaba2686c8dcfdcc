package cmd

import (
	"context"
	"log/slog"

	"github.com/ardnew/hbml/cli/cmd/repl"
	"github.com/ardnew/hbml/log"
)

// Repl builds a template line by line, rendering it after each line.
type Repl struct {
	Template `embed:""`
	Bindings `embed:""`
}

// Run executes the repl command. The template argument, when given, is the
// initial template; standard input is left to the terminal.
func (r *Repl) Run(ctx context.Context) error {
	var src string

	if r.Source != "" && r.Source != stdinSource {
		var err error
		if src, err = r.read(); err != nil {
			return err
		}
	}

	bindings, err := r.load()
	if err != nil {
		return err
	}

	var cacheDir string
	if ktx := kongContextFrom(ctx); ktx != nil {
		cacheDir = ktx.Model.Vars()[CacheIdentifier]
	}

	log.DebugContext(ctx, "repl",
		slog.String("source", r.Source),
		slog.Int("bindings", len(bindings)),
		slog.String("cache", cacheDir),
	)

	return repl.Run(ctx, repl.Config{
		Source:   src,
		Bindings: bindings,
		Pretty:   r.Pretty,
		Options:  r.options(),
		CacheDir: cacheDir,
		Logger:   log.Default(),
	})
}
