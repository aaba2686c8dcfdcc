package lang

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCompile_Ops(t *testing.T) {
	prog, err := Compile(context.Background(), "%p#x(title=t) hi\n  %b")
	if err != nil {
		t.Fatal(err)
	}

	ops := prog.Ops()

	var kinds []OpKind
	for _, op := range ops {
		kinds = append(kinds, op.Kind())
	}

	want := []OpKind{
		OpOpenTag, OpWriteLiteral, OpWriteAttr, OpCloseAngle,
		OpWriteLiteral, OpBlock, OpCloseTag,
	}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("op kinds mismatch (-want +got):\n%s", diff)
	}

	if got := ops[1].(WriteLiteral).Text; got != ` id="x"` {
		t.Errorf("id literal = %q", got)
	}

	// Ops returns a copy.
	ops[0] = WriteLiteral{Text: "changed"}
	if _, ok := prog.Ops()[0].(OpenTag); !ok {
		t.Error("Ops() exposed the program's operations")
	}

	if got := prog.Len(); got != 10 {
		t.Errorf("Len() = %d, want 10", got)
	}
}

func TestCompile_MergesLiterals(t *testing.T) {
	prog, err := Compile(context.Background(), "a\nb\nc")
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]Op{WriteLiteral{Text: "abc"}}, prog.Ops()); diff != "" {
		t.Errorf("Ops() mismatch (-want +got):\n%s", diff)
	}
}

func TestProgram_Format(t *testing.T) {
	prog, err := Compile(context.Background(), "%div\n  - if x\n    %p(a=b) hi\n  =% y")
	if err != nil {
		t.Fatal(err)
	}

	var sb strings.Builder
	if err := prog.Format(&sb); err != nil {
		t.Fatal(err)
	}

	want := strings.Join([]string{
		"0000 open div",
		"0001 angle",
		"0002 block",
		`  0000 control "if x"`,
		"    0000 open p",
		`    0001 attr a="b"`,
		"    0002 angle",
		`    0003 literal "hi"`,
		"    0004 close p",
		`  0001 value escaped "y"`,
		"0003 close div",
		"",
	}, "\n")

	if diff := cmp.Diff(want, sb.String()); diff != "" {
		t.Errorf("Format() mismatch (-want +got):\n%s", diff)
	}
}

func TestLower(t *testing.T) {
	tree := &Sequence{Items: []Node{
		&Tag{
			Brief: Brief{{MarkTag, "em"}},
			Tail:  TailText,
			Text:  "hi",
		},
	}}

	prog, err := Lower(tree)
	if err != nil {
		t.Fatal(err)
	}

	got, err := prog.RenderString(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}

	if got != "<em>hi</em>" {
		t.Errorf("RenderString() = %q", got)
	}
}

func TestLower_UnknownFilter(t *testing.T) {
	tree := &Sequence{Items: []Node{
		&Tag{
			Brief: Brief{{MarkTag, "pre"}, {MarkFilter, "markdown"}},
			Body:  &Raw{Text: "x"},
		},
	}}

	if _, err := Lower(tree); !errors.Is(err, ErrUnknownFilter) {
		t.Errorf("Lower() error = %v, want %v", err, ErrUnknownFilter)
	}
}

func TestCompile_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"zero indent", WithIndentWidth(0)},
		{"negative indent", WithIndentWidth(-2)},
		{"empty default tag", WithDefaultTag("")},
		{"bad default tag", WithDefaultTag("1x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Compile(context.Background(), "%p", tt.opt); !errors.Is(err, ErrInvalidOption) {
				t.Errorf("Compile() error = %v, want %v", err, ErrInvalidOption)
			}
		})
	}
}

func TestCompile_NoPartialProgram(t *testing.T) {
	prog, err := Compile(context.Background(), "%p\n  %q\n %r")
	if err == nil {
		t.Fatal("Compile() succeeded")
	}

	if prog != nil {
		t.Error("Compile() returned a program with an error")
	}
}

func TestCompile_IndentWidth(t *testing.T) {
	got, err := render(t, "%a\n    %b\n        %c", nil, WithIndentWidth(4))
	if err != nil {
		t.Fatal(err)
	}

	if want := "<a><b><c></c></b></a>"; got != want {
		t.Errorf("RenderString() = %q, want %q", got, want)
	}
}
