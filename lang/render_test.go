package lang

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func render(t *testing.T, src string, bindings map[string]any, opts ...Option) (string, error) {
	t.Helper()

	prog, err := Compile(context.Background(), src, opts...)
	if err != nil {
		t.Fatalf("Compile(%q) error = %v", src, err)
	}

	return prog.RenderString(context.Background(), bindings)
}

func TestRender_Markup(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		bindings map[string]any
		opts     []Option
		want     string
	}{
		{
			name: "nested tags",
			src:  "%div\n  %h1",
			want: "<div><h1></h1></div>",
		},
		{
			name: "id and classes",
			src:  "%div#yoyo.hello.goodbye",
			want: `<div id="yoyo" class="hello goodbye"></div>`,
		},
		{
			name: "self closing",
			src:  "%input/",
			want: "<input />",
		},
		{
			name: "self closing with attributes",
			src:  `%input(type="text", name=field)/`,
			bindings: map[string]any{
				"field": "q",
			},
			want: `<input type="text" name="q" />`,
		},
		{
			name: "self closing ignores body",
			src:  "%br/\n  %p",
			want: "<br />",
		},
		{
			name: "escaped quotes in literal",
			src:  `%a(onclick="alert(\"hello\")") yoyo`,
			want: `<a onclick="alert(\"hello\")">yoyo</a>`,
		},
		{
			name: "continued attributes",
			src:  "%a(href=\"/\",\n    title=\"home\") yoyo",
			want: `<a href="/" title="home">yoyo</a>`,
		},
		{
			name: "default tag",
			src:  ".x",
			want: `<div class="x"></div>`,
		},
		{
			name: "custom default tag",
			src:  "#main",
			opts: []Option{WithDefaultTag("section")},
			want: `<section id="main"></section>`,
		},
		{
			name: "last id wins and classes accumulate",
			src:  "%p#a.x#b.y",
			want: `<p id="b" class="x y"></p>`,
		},
		{
			name: "attribute order",
			src:  `.c#i(data-x="1", class="d")`,
			want: `<div id="i" class="c" data-x="1" class="d"></div>`,
		},
		{
			name: "plain filter",
			src:  "%pre:plain\n  <b>raw</b>\n    (x\n%p",
			want: "<pre>\n  <b>raw</b>\n    (x</pre><p></p>",
		},
		{
			name: "filter body keeps indentation",
			src:  "%div:plain\n  %p(x=1) <b>raw</b>\n    deeper\n%p after",
			want: "<div>\n  %p(x=1) <b>raw</b>\n    deeper</div><p>after</p>",
		},
		{
			name: "filter body runs to end of input",
			src:  "%pre:plain\n  x",
			want: "<pre>\n  x</pre>",
		},
		{
			name: "text lines",
			src:  "hello\n%p world",
			want: "hello<p>world</p>",
		},
		{
			name: "text body",
			src:  "hello\n  %b",
			want: "hello<b></b>",
		},
		{
			name: "echo",
			src:  "= 1 + 2",
			want: "3",
		},
		{
			name:     "echo is not escaped",
			src:      "= s",
			bindings: map[string]any{"s": "<b>"},
			want:     "<b>",
		},
		{
			name:     "escaped echo",
			src:      "=% s",
			bindings: map[string]any{"s": `<a href="x">&</a>`},
			want:     "&lt;a href=&#34;x&#34;&gt;&amp;&lt;/a&gt;",
		},
		{
			name:     "expression attribute",
			src:      "%a(href=url)",
			bindings: map[string]any{"url": `x"y`},
			want:     `<a href="x\"y"></a>`,
		},
		{
			name:     "nil renders empty",
			src:      "%p(title=missing)\n  = missing",
			bindings: map[string]any{"missing": nil},
			want:     `<p title=""></p>`,
		},
		{
			name: "pretty",
			src:  "%div\n  %h1",
			opts: []Option{WithPretty(true)},
			want: "<div>\n  <h1></h1>\n</div>\n",
		},
		{
			name: "pretty with text and statements",
			src:  "%ul\n  - for x in xs\n    %li\n      = x\n  done",
			opts: []Option{WithPretty(true), WithIndentWidth(2)},
			bindings: map[string]any{
				"xs": []string{"a", "b"},
			},
			want: "<ul>\n  <li>\n    a\n  </li>\n  <li>\n    b\n  </li>\n  done\n</ul>\n",
		},
		{
			name: "pretty filter",
			src:  "%pre:plain\n  raw",
			opts: []Option{WithPretty(true)},
			want: "<pre>\n  raw\n</pre>\n",
		},
		{
			name: "pretty self closing",
			src:  "%p\n  %br/",
			opts: []Option{WithPretty(true), WithIndentWidth(2)},
			want: "<p>\n  <br />\n</p>\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := render(t, tt.src, tt.bindings, tt.opts...)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Render() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRender_Statements(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		bindings map[string]any
		want     string
	}{
		{
			name:     "if taken",
			src:      "- if ok\n  %p yes\n- else\n  %p no",
			bindings: map[string]any{"ok": true},
			want:     "<p>yes</p>",
		},
		{
			name:     "else taken",
			src:      "- if ok\n  %p yes\n- else\n  %p no",
			bindings: map[string]any{"ok": false},
			want:     "<p>no</p>",
		},
		{
			name:     "elif chain",
			src:      "- if n == 1\n  one\n- elif n == 2\n  two\n- else if n == 3\n  three\n- else:\n  many",
			bindings: map[string]any{"n": 2},
			want:     "two",
		},
		{
			name:     "else if chain falls through",
			src:      "- if n == 1\n  one\n- elif n == 2\n  two\n- else if n == 3\n  three\n- else:\n  many",
			bindings: map[string]any{"n": 7},
			want:     "many",
		},
		{
			name:     "unless",
			src:      "- unless ok\n  no",
			bindings: map[string]any{"ok": false},
			want:     "no",
		},
		{
			name:     "for over slice",
			src:      "%ul\n  - for x in xs\n    %li\n      = x",
			bindings: map[string]any{"xs": []string{"a", "b"}},
			want:     "<ul><li>a</li><li>b</li></ul>",
		},
		{
			name:     "for over map in key order",
			src:      "- for k, v in m\n  = k\n  = v",
			bindings: map[string]any{"m": map[string]int{"b": 2, "a": 1}},
			want:     "a1b2",
		},
		{
			name:     "for with index",
			src:      "- for i, x in xs\n  = i\n  = x",
			bindings: map[string]any{"xs": []any{"a", "b"}},
			want:     "0a1b",
		},
		{
			name: "for over integer",
			src:  "- for i in 3\n  = i",
			want: "012",
		},
		{
			name:     "for over string",
			src:      "- for c in s\n  %i\n    = c",
			bindings: map[string]any{"s": "hé"},
			want:     "<i>h</i><i>é</i>",
		},
		{
			name:     "empty loop falls to else",
			src:      "- for x in xs\n  = x\n- else\n  none",
			bindings: map[string]any{"xs": []int{}},
			want:     "none",
		},
		{
			name:     "loop variable is scoped",
			src:      "- for x in xs\n  = x\n= x",
			bindings: map[string]any{"xs": []int{1, 2}, "x": "out"},
			want:     "12out",
		},
		{
			name:     "with binding",
			src:      "- with y = x * 2\n  = y",
			bindings: map[string]any{"x": 3},
			want:     "6",
		},
		{
			name:     "let binding",
			src:      "- let name = \"hbml\"\n  %p\n    = name",
			bindings: nil,
			want:     "<p>hbml</p>",
		},
		{
			name:     "text breaks a chain",
			src:      "- if ok\n  a\nb\n- if !ok\n  c\n- else\n  d",
			bindings: map[string]any{"ok": true},
			want:     "abd",
		},
		{
			name:     "builtins",
			src:      `= escape("<") + str(nil) + str(1.5)`,
			bindings: nil,
			want:     "&lt;1.5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := render(t, tt.src, tt.bindings)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Render() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRender_Errors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		bindings map[string]any
		want     error
		partial  string
	}{
		{
			name:    "malformed expression",
			src:     "%p\n= 1 +",
			want:    ErrExpression,
			partial: "<p></p>",
		},
		{
			name: "else without if",
			src:  "- else\n  x",
			want: ErrStatement,
		},
		{
			name: "unknown statement",
			src:  "- while true\n  x",
			want: ErrStatement,
		},
		{
			name:     "not iterable",
			src:      "- for x in f\n  = x",
			bindings: map[string]any{"f": 1.5},
			want:     ErrIterate,
		},
		{
			name:     "error inside loop body",
			src:      "%ul\n  - for x in xs\n    %li\n      = x +",
			bindings: map[string]any{"xs": []int{1}},
			want:     ErrExpression,
			partial:  "<ul><li>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := render(t, tt.src, tt.bindings)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Render() error = %v, want %v", err, tt.want)
			}

			if !errors.Is(err, ErrExpression) {
				t.Errorf("Render() error = %v, want kind of %v", err, ErrExpression)
			}

			if got != tt.partial {
				t.Errorf("partial output = %q, want %q", got, tt.partial)
			}
		})
	}
}

func TestRender_ExpressionPosition(t *testing.T) {
	_, err := render(t, "%p\n  = 1 +", nil)

	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("Render() error = %v, want *Error", err)
	}

	if want := pos(2, 3); e.Position() != want {
		t.Errorf("Position() = %v, want %v", e.Position(), want)
	}

	if v, ok := e.Attr("expression"); !ok || v.String() != "1 +" {
		t.Errorf("Attr(expression) = %v, %v", v, ok)
	}
}

type failWriter struct{ after int }

func (w *failWriter) Write(p []byte) (int, error) {
	if w.after <= 0 {
		return 0, errors.New("disk full")
	}

	w.after--

	return len(p), nil
}

func TestRender_WriteError(t *testing.T) {
	prog, err := Compile(context.Background(), "%div\n  %p hi")
	if err != nil {
		t.Fatal(err)
	}

	err = prog.Render(context.Background(), &failWriter{after: 2}, nil)
	if !errors.Is(err, ErrWrite) {
		t.Fatalf("Render() error = %v, want %v", err, ErrWrite)
	}

	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Render() error = %q, want cause", err)
	}
}

func TestRender_Deterministic(t *testing.T) {
	const src = "%ul#list\n  - for k, v in m\n    %li(data-k=k)\n      = v"

	bindings := map[string]any{"m": map[string]int{"c": 3, "a": 1, "b": 2}}

	p1, err := Compile(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}

	p2, err := Compile(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}

	want, err := p1.RenderString(context.Background(), bindings)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup

	for i := range 16 {
		p := p1
		if i%2 == 1 {
			p = p2
		}

		wg.Go(func() {
			got, err := p.RenderString(context.Background(), bindings)
			if err != nil {
				t.Errorf("RenderString() error = %v", err)

				return
			}

			if got != want {
				t.Errorf("RenderString() = %q, want %q", got, want)
			}
		})
	}

	wg.Wait()
}

func TestRender_DoesNotMutateBindings(t *testing.T) {
	bindings := map[string]any{"xs": []int{1}}

	if _, err := render(t, "- for x in xs\n  = x\n- with y = 2\n  = y", bindings); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(map[string]any{"xs": []int{1}}, bindings); diff != "" {
		t.Errorf("bindings changed (-want +got):\n%s", diff)
	}
}

func TestRender_Package(t *testing.T) {
	prog, err := Compile(context.Background(), "%p\n  = x")
	if err != nil {
		t.Fatal(err)
	}

	var sb strings.Builder
	if err := Render(context.Background(), prog, &sb, map[string]any{"x": 1}); err != nil {
		t.Fatal(err)
	}

	if got := sb.String(); got != "<p>1</p>" {
		t.Errorf("Render() = %q", got)
	}
}

func TestRender_NilProgram(t *testing.T) {
	var p *Program

	if _, err := p.RenderString(context.Background(), nil); !errors.Is(err, ErrRender) {
		t.Errorf("RenderString() error = %v, want %v", err, ErrRender)
	}
}
