package repl

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ardnew/hbml/lang"
	"github.com/ardnew/hbml/log"
)

func TestSession_Add(t *testing.T) {
	ctx := context.Background()
	s := newSession("", map[string]any{"xs": []any{"a", "b"}}, false, log.Default())

	steps := []struct {
		line        string
		wantOut     string
		wantPending bool
		wantErr     error
	}{
		{line: "%ul.nav", wantOut: `<ul class="nav"></ul>`},
		{line: "  - for x in xs", wantOut: `<ul class="nav"></ul>`},
		{line: "    %li", wantOut: `<ul class="nav"><li></li><li></li></ul>`},
		{line: "      = x", wantOut: `<ul class="nav"><li>a</li><li>b</li></ul>`},
		{line: "%a(x)", wantErr: lang.ErrSyntax},
		{line: `%a(href="/",`, wantPending: true},
		{line: `    title="home") yoyo`, wantOut: `<ul class="nav"><li>a</li><li>b</li></ul><a href="/" title="home">yoyo</a>`},
	}

	for _, step := range steps {
		out, pending, err := s.add(ctx, step.line)

		if step.wantErr != nil {
			if !errors.Is(err, step.wantErr) {
				t.Fatalf("add(%q) error = %v, want %v", step.line, err, step.wantErr)
			}

			continue
		}

		if err != nil {
			t.Fatalf("add(%q) error = %v", step.line, err)
		}

		if pending != step.wantPending {
			t.Errorf("add(%q) pending = %v, want %v", step.line, pending, step.wantPending)
		}

		if out != step.wantOut {
			t.Errorf("add(%q) = %q, want %q", step.line, out, step.wantOut)
		}
	}

	if got := len(s.lines); got != 6 {
		t.Errorf("lines = %d, want 6 (rejected line kept?)", got)
	}
}

func TestSession_UndoReset(t *testing.T) {
	ctx := context.Background()
	s := newSession("%div\n  %h1", nil, false, log.Default())

	if !s.undo() {
		t.Fatal("undo() = false, want true")
	}

	out, err := s.render(ctx)
	if err != nil {
		t.Fatalf("render() error = %v", err)
	}

	if out != "<div></div>" {
		t.Errorf("render() after undo = %q", out)
	}

	s.reset()

	if s.undo() {
		t.Error("undo() on empty template = true")
	}

	if _, err := s.render(ctx); !errors.Is(err, ErrNoTemplate) {
		t.Errorf("render() error = %v, want %v", err, ErrNoTemplate)
	}

	if _, err := s.ops(ctx); !errors.Is(err, ErrNoTemplate) {
		t.Errorf("ops() error = %v, want %v", err, ErrNoTemplate)
	}
}

func TestSession_Bindings(t *testing.T) {
	ctx := context.Background()
	s := newSession("= n + 1", nil, false, log.Default())

	s.set("n", "41")
	s.set("name", "ada lovelace")
	s.set("list", "[1, 2]")

	out, err := s.render(ctx)
	if err != nil {
		t.Fatalf("render() error = %v", err)
	}

	if out != "42" {
		t.Errorf("render() = %q, want %q", out, "42")
	}

	want := "list = [1, 2]\nn = 41\nname = ada lovelace"
	if diff := cmp.Diff(want, s.vars()); diff != "" {
		t.Errorf("vars() mismatch (-want +got):\n%s", diff)
	}

	if !s.unset("list") {
		t.Error("unset(list) = false, want true")
	}

	if s.unset("list") {
		t.Error("second unset(list) = true, want false")
	}
}

func TestSession_Pretty(t *testing.T) {
	ctx := context.Background()
	s := newSession("%div\n  %h1 Hi", nil, false, log.Default())

	compact, err := s.render(ctx)
	if err != nil {
		t.Fatal(err)
	}

	s.pretty = true

	pretty, err := s.render(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if compact != "<div><h1>Hi</h1></div>" {
		t.Errorf("compact = %q", compact)
	}

	// Tail text stays inline with its tag.
	if pretty != "<div>\n  <h1>Hi</h1>\n</div>\n" {
		t.Errorf("pretty = %q", pretty)
	}
}

func TestSession_ListingOps(t *testing.T) {
	ctx := context.Background()
	s := newSession("%p\n  = x\n", nil, false, log.Default())

	if got, want := s.listing(), "1  %p\n2    = x"; got != want {
		t.Errorf("listing() = %q, want %q", got, want)
	}

	ops, err := s.ops(ctx)
	if err != nil {
		t.Fatalf("ops() error = %v", err)
	}

	if !strings.Contains(ops, "x") {
		t.Errorf("ops() = %q, want the echoed expression", ops)
	}

	s.replace("%b")

	if got := s.source(); got != "%b" {
		t.Errorf("source() after replace = %q", got)
	}
}
