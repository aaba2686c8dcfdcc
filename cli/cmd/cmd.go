package cmd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"

	"github.com/ardnew/hbml/lang"
	"github.com/ardnew/hbml/log"
)

// contextKey is used to store a [kong.Context] value in [context.Context].
type contextKey struct{}

// WithContext returns a new context.Context containing the given kong.Context.
func WithContext(ctx context.Context, ktx *kong.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ktx)
}

func kongContextFrom(ctx context.Context) *kong.Context {
	ktx, ok := ctx.Value(contextKey{}).(*kong.Context)
	if !ok || ktx == nil {
		return nil
	}

	return ktx
}

// stdinSource names standard input as a template source or output.
const stdinSource = "-"

// stdin is replaced by tests.
var stdin io.Reader = os.Stdin

// Template holds the flags shared by commands that compile a template.
type Template struct {
	Source      string `arg:"" default:"-" help:"Template file or '-' for stdin" optional:""`
	IndentWidth int    `default:"2"        help:"Spaces per indentation level"`
	DefaultTag  string `default:"div"      help:"Tag name used when a tag has no explicit name"`
	Pretty      bool   `help:"Indent rendered markup and break lines"`
}

// options returns the compile options selected by the flags.
func (t *Template) options() []lang.Option {
	return []lang.Option{
		lang.WithIndentWidth(t.IndentWidth),
		lang.WithDefaultTag(t.DefaultTag),
		lang.WithPretty(t.Pretty),
		lang.WithLogger(log.Default()),
	}
}

// open returns a reader over the template source.
func (t *Template) open() (io.ReadCloser, error) {
	if t.Source == "" || t.Source == stdinSource {
		return io.NopCloser(stdin), nil
	}

	f, err := os.Open(t.Source)
	if err != nil {
		return nil, ErrReadSource.With(slog.String("file", t.Source)).Wrap(err)
	}

	return f, nil
}

// read returns the whole template source.
func (t *Template) read() (string, error) {
	r, err := t.open()
	if err != nil {
		return "", err
	}
	defer r.Close()

	b, err := io.ReadAll(r)
	if err != nil {
		return "", ErrReadSource.With(slog.String("file", t.Source)).Wrap(err)
	}

	return string(b), nil
}

// Bindings holds the flags that supply render bindings.
type Bindings struct {
	Define map[string]string `help:"Bind NAME to a YAML scalar or flow value" placeholder:"NAME=VALUE" short:"D"`
	Vars   string            `help:"YAML or JSON file of bindings"                                     type:"existingfile"`
}

// load merges the bindings file with the --define values, which take
// precedence.
func (b *Bindings) load() (map[string]any, error) {
	bindings := map[string]any{}

	if b.Vars != "" {
		f, err := os.Open(b.Vars)
		if err != nil {
			return nil, ErrBindings.With(slog.String("file", b.Vars)).Wrap(err)
		}
		defer f.Close()

		bindings, err = decodeBindings(f)
		if err != nil {
			return nil, ErrBindings.With(slog.String("file", b.Vars)).Wrap(err)
		}
	}

	for name, text := range b.Define {
		bindings[strings.TrimSpace(name)] = parseValue(text)
	}

	return bindings, nil
}

// decodeBindings decodes a YAML (or JSON) mapping. An empty document yields
// no bindings.
func decodeBindings(r io.Reader) (map[string]any, error) {
	bindings := map[string]any{}

	err := yaml.NewDecoder(r).Decode(&bindings)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	// An empty or null document decodes to a nil map.
	if bindings == nil {
		bindings = map[string]any{}
	}

	return bindings, nil
}

// parseValue decodes text as a YAML value, so "3" binds an integer and
// "[a, b]" a list. Text that is not valid YAML binds as a string.
func parseValue(text string) any {
	var v any
	if err := yaml.Unmarshal([]byte(text), &v); err != nil || v == nil {
		return text
	}

	return v
}

// create opens the output path for writing; "-" or "" is w.
func create(path string, w io.Writer) (io.WriteCloser, error) {
	if path == "" || path == stdinSource {
		return nopWriteCloser{w}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, ErrWriteOutput.With(slog.String("file", path)).Wrap(err)
	}

	return f, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// stdout returns the kong application's standard output, or [os.Stdout].
func stdout(ctx context.Context) io.Writer {
	if ktx := kongContextFrom(ctx); ktx != nil && ktx.Stdout != nil {
		return ktx.Stdout
	}

	return os.Stdout
}
