package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/google/go-cmp/cmp"

	"github.com/ardnew/hbml/lang"
)

// outputContext returns a context whose kong application writes to out.
func outputContext(t *testing.T, out io.Writer) context.Context {
	t.Helper()

	var cli struct{}

	parser, err := kong.New(&cli, kong.Writers(out, io.Discard))
	if err != nil {
		t.Fatal(err)
	}

	ktx, err := parser.Parse(nil)
	if err != nil {
		t.Fatal(err)
	}

	return WithContext(context.Background(), ktx)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	return path
}

func template(src string) Template {
	return Template{Source: src, IndentWidth: 2, DefaultTag: "div"}
}

func TestKongContext(t *testing.T) {
	if got := kongContextFrom(context.Background()); got != nil {
		t.Errorf("kongContextFrom(empty) = %v, want nil", got)
	}

	var buf bytes.Buffer

	ctx := outputContext(t, &buf)
	if kongContextFrom(ctx) == nil {
		t.Fatal("kongContextFrom() = nil")
	}

	if w := stdout(ctx); w != &buf {
		t.Errorf("stdout() = %T, want the kong writer", w)
	}

	if w := stdout(context.Background()); w != os.Stdout {
		t.Errorf("stdout() = %T, want os.Stdout", w)
	}
}

func TestTemplate_Read(t *testing.T) {
	path := writeFile(t, "page.hbml", "%p hi\n")

	tmpl := template(path)

	got, err := tmpl.read()
	if err != nil {
		t.Fatal(err)
	}

	if got != "%p hi\n" {
		t.Errorf("read() = %q", got)
	}

	missing := template(filepath.Join(t.TempDir(), "missing.hbml"))
	if _, err := missing.read(); !errors.Is(err, ErrReadSource) {
		t.Errorf("read() error = %v, want %v", err, ErrReadSource)
	}
}

func TestTemplate_ReadStdin(t *testing.T) {
	saved := stdin
	t.Cleanup(func() { stdin = saved })

	stdin = strings.NewReader("%b")

	for _, src := range []string{"", "-"} {
		stdin = strings.NewReader("%b")

		tmpl := template(src)

		got, err := tmpl.read()
		if err != nil {
			t.Fatal(err)
		}

		if got != "%b" {
			t.Errorf("read(%q) = %q, want %q", src, got, "%b")
		}
	}
}

func TestBindings_Load(t *testing.T) {
	yamlVars := writeFile(t, "vars.yaml", "title: Home\nitems:\n  - a\n  - b\ncount: 2\n")
	jsonVars := writeFile(t, "vars.json", `{"title": "Home", "n": 1}`)
	emptyVars := writeFile(t, "empty.yaml", "")
	nullVars := writeFile(t, "null.yaml", "~\n")
	badVars := writeFile(t, "bad.yaml", "- a\n- b\n")

	tests := []struct {
		name    string
		in      Bindings
		want    map[string]any
		wantErr error
	}{
		{
			name: "none",
			want: map[string]any{},
		},
		{
			name: "yaml file",
			in:   Bindings{Vars: yamlVars},
			want: map[string]any{
				"title": "Home",
				"items": []any{"a", "b"},
				"count": uint64(2),
			},
		},
		{
			name: "json file",
			in:   Bindings{Vars: jsonVars},
			want: map[string]any{"title": "Home", "n": uint64(1)},
		},
		{
			name: "empty file",
			in:   Bindings{Vars: emptyVars},
			want: map[string]any{},
		},
		{
			name: "empty file with defines",
			in: Bindings{
				Vars:   emptyVars,
				Define: map[string]string{"a": "1"},
			},
			want: map[string]any{"a": uint64(1)},
		},
		{
			name: "null document",
			in:   Bindings{Vars: nullVars},
			want: map[string]any{},
		},
		{
			name: "defines override file",
			in: Bindings{
				Vars:   yamlVars,
				Define: map[string]string{"title": "About", "flag": "true"},
			},
			want: map[string]any{
				"title": "About",
				"flag":  true,
				"items": []any{"a", "b"},
				"count": uint64(2),
			},
		},
		{
			name: "define values",
			in: Bindings{Define: map[string]string{
				"n":    "3",
				"list": "[x, y]",
				"text": "hello world",
				"none": "",
			}},
			want: map[string]any{
				"n":    uint64(3),
				"list": []any{"x", "y"},
				"text": "hello world",
				"none": "",
			},
		},
		{
			name:    "not a mapping",
			in:      Bindings{Vars: badVars},
			wantErr: ErrBindings,
		},
		{
			name:    "missing file",
			in:      Bindings{Vars: filepath.Join(t.TempDir(), "missing.yaml")},
			wantErr: ErrBindings,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.load()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("load() error = %v, want %v", err, tt.wantErr)
			}

			if tt.wantErr != nil {
				return
			}

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("load() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRender_Run(t *testing.T) {
	src := writeFile(t, "list.hbml", "%ul.nav\n  - for item in items\n    %li\n      = item\n")
	vars := writeFile(t, "vars.yaml", "items: [a, b]\n")

	var buf bytes.Buffer

	r := &Render{
		Template: template(src),
		Bindings: Bindings{Vars: vars},
		Output:   "-",
	}

	if err := r.Run(outputContext(t, &buf)); err != nil {
		t.Fatal(err)
	}

	want := `<ul class="nav"><li>a</li><li>b</li></ul>`
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("render mismatch (-want +got):\n%s", diff)
	}
}

func TestRender_RunToFile(t *testing.T) {
	src := writeFile(t, "page.hbml", "%div\n  %h1\n    = title\n")
	out := filepath.Join(t.TempDir(), "page.html")

	r := &Render{
		Template: Template{Source: src, IndentWidth: 2, DefaultTag: "div", Pretty: true},
		Bindings: Bindings{Define: map[string]string{"title": "Hi"}},
		Output:   out,
	}

	if err := r.Run(outputContext(t, io.Discard)); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}

	want := "<div>\n  <h1>\n    Hi\n  </h1>\n</div>\n"
	if diff := cmp.Diff(want, string(got)); diff != "" {
		t.Errorf("render mismatch (-want +got):\n%s", diff)
	}
}

func TestRender_RunErrors(t *testing.T) {
	bad := writeFile(t, "bad.hbml", "%div\n   %p\n")
	expr := writeFile(t, "expr.hbml", "= 1 +\n")

	tests := []struct {
		name    string
		render  Render
		wantErr error
	}{
		{
			name:    "scan error",
			render:  Render{Template: template(bad)},
			wantErr: lang.ErrScan,
		},
		{
			name:    "expression error",
			render:  Render{Template: template(expr)},
			wantErr: lang.ErrExpression,
		},
		{
			name:    "invalid indent width",
			render:  Render{Template: Template{Source: expr, DefaultTag: "div"}},
			wantErr: lang.ErrInvalidOption,
		},
		{
			name:    "missing source",
			render:  Render{Template: template(filepath.Join(t.TempDir(), "x.hbml"))},
			wantErr: ErrReadSource,
		},
		{
			name: "unwritable output",
			render: Render{
				Template: template(expr),
				Output:   filepath.Join(t.TempDir(), "missing", "out.html"),
			},
			wantErr: ErrWriteOutput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.render.Run(outputContext(t, io.Discard))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Run() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTree_Run(t *testing.T) {
	src := writeFile(t, "page.hbml", "%p.x hi\n")

	tests := []struct {
		name string
		tree Tree
		want []string
	}{
		{
			name: "yaml",
			tree: Tree{Template: template(src), Format: "yaml", Indent: 2},
			want: []string{"type: sequence", "type: tag", "tail: text", "text: hi"},
		},
		{
			name: "json",
			tree: Tree{Template: template(src), Format: "json", Indent: 2},
			want: []string{`"type": "tag"`, `"tail": "text"`, `"text": "hi"`},
		},
		{
			name: "compact json",
			tree: Tree{Template: template(src), Format: "json"},
			want: []string{`"type":"tag"`},
		},
		{
			name: "ops",
			tree: Tree{Template: template(src), Ops: true},
			want: []string{"0000 open p", `literal " class=\"x\""`, "close p"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			if err := tt.tree.Run(outputContext(t, &buf)); err != nil {
				t.Fatal(err)
			}

			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output missing %q:\n%s", want, buf.String())
				}
			}
		})
	}
}

func TestTree_RunErrors(t *testing.T) {
	src := writeFile(t, "page.hbml", "%p\n")
	bad := writeFile(t, "bad.hbml", "%p(a=\"x\n")

	tree := Tree{Template: template(src), Format: "toml"}
	if err := tree.Run(outputContext(t, io.Discard)); !errors.Is(err, ErrFormat) {
		t.Errorf("Run() error = %v, want %v", err, ErrFormat)
	}

	tree = Tree{Template: template(bad), Format: "yaml"}
	if err := tree.Run(outputContext(t, io.Discard)); !errors.Is(err, lang.ErrScan) {
		t.Errorf("Run() error = %v, want %v", err, lang.ErrScan)
	}
}

func TestTokens_Run(t *testing.T) {
	src := writeFile(t, "page.hbml", "%p hi\n")

	var buf bytes.Buffer

	tokens := Tokens{Template: template(src)}
	if err := tokens.Run(outputContext(t, &buf)); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) < 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}

	want := []string{
		"1:1     TagNameMark",
		`1:2     Keyword "p"`,
		`1:4     PlainText "hi"`,
	}

	if diff := cmp.Diff(want, lines[:3]); diff != "" {
		t.Errorf("tokens mismatch (-want +got):\n%s", diff)
	}
}

// Each case fails before the terminal UI starts.
func TestRepl_RunErrors(t *testing.T) {
	bad := writeFile(t, "bad.hbml", "%div\n   %p\n")

	tests := []struct {
		name    string
		repl    Repl
		wantErr error
	}{
		{
			name:    "missing source",
			repl:    Repl{Template: template(filepath.Join(t.TempDir(), "x.hbml"))},
			wantErr: ErrReadSource,
		},
		{
			name: "missing bindings",
			repl: Repl{
				Template: template(stdinSource),
				Bindings: Bindings{Vars: filepath.Join(t.TempDir(), "vars.yaml")},
			},
			wantErr: ErrBindings,
		},
		{
			name:    "initial template does not compile",
			repl:    Repl{Template: template(bad)},
			wantErr: lang.ErrScan,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.repl.Run(outputContext(t, io.Discard))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Run() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
