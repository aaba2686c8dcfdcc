package lang

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/ardnew/hbml/log"
)

// OpKind identifies the operation performed by an [Op].
type OpKind int

const (
	OpWriteLiteral OpKind = iota
	OpWriteValue
	OpWriteAttr
	OpOpenTag
	OpCloseAngle
	OpCloseTag
	OpBlock
	OpControl
	OpInvokeFilter
)

var opKindNames = [...]string{
	OpWriteLiteral: "literal",
	OpWriteValue:   "value",
	OpWriteAttr:    "attr",
	OpOpenTag:      "open",
	OpCloseAngle:   "angle",
	OpCloseTag:     "close",
	OpBlock:        "block",
	OpControl:      "control",
	OpInvokeFilter: "filter",
}

func (k OpKind) String() string {
	if k < 0 || int(k) >= len(opKindNames) {
		return "OpKind(" + strconv.Itoa(int(k)) + ")"
	}

	return opKindNames[k]
}

// Op is one operation of a [Program].
type Op interface {
	Kind() OpKind
	String() string
}

// WriteLiteral writes Text verbatim.
type WriteLiteral struct {
	Text string
}

// WriteValue writes the string form of an expression, markup-escaped when
// Escape is set.
type WriteValue struct {
	Expr   string
	Escape bool
	Pos    Position
}

// WriteAttr writes ` Key="value"` where value is the string form of Expr
// with double quotes backslash-escaped.
type WriteAttr struct {
	Key  string
	Expr string
	Pos  Position
}

// OpenTag writes "<Name".
type OpenTag struct {
	Name string
}

// CloseAngle ends an open tag with ">" or, when self-closing, " />".
type CloseAngle struct {
	SelfClose bool
}

// CloseTag writes "</Name>".
type CloseTag struct {
	Name string
}

// Block renders a nested program in the current scope.
type Block struct {
	Body *Program
}

// Control runs a statement through the engine, which renders Body zero or
// more times.
type Control struct {
	Stmt string
	Pos  Position
	Body *Program
}

// InvokeFilter passes the raw body of a filter tag through the named filter.
type InvokeFilter struct {
	Name string
	Text string
}

func (WriteLiteral) Kind() OpKind { return OpWriteLiteral }
func (WriteValue) Kind() OpKind   { return OpWriteValue }
func (WriteAttr) Kind() OpKind    { return OpWriteAttr }
func (OpenTag) Kind() OpKind      { return OpOpenTag }
func (CloseAngle) Kind() OpKind   { return OpCloseAngle }
func (CloseTag) Kind() OpKind     { return OpCloseTag }
func (Block) Kind() OpKind        { return OpBlock }
func (Control) Kind() OpKind      { return OpControl }
func (InvokeFilter) Kind() OpKind { return OpInvokeFilter }

func (o WriteLiteral) String() string { return "literal " + strconv.Quote(o.Text) }

func (o WriteValue) String() string {
	if o.Escape {
		return "value escaped " + strconv.Quote(o.Expr)
	}

	return "value " + strconv.Quote(o.Expr)
}

func (o WriteAttr) String() string { return "attr " + o.Key + "=" + strconv.Quote(o.Expr) }
func (o OpenTag) String() string   { return "open " + o.Name }

func (o CloseAngle) String() string {
	if o.SelfClose {
		return "angle self-close"
	}

	return "angle"
}

func (o CloseTag) String() string     { return "close " + o.Name }
func (o Block) String() string        { return "block" }
func (o Control) String() string      { return "control " + strconv.Quote(o.Stmt) }
func (o InvokeFilter) String() string { return "filter " + o.Name }

// Program is a compiled template: an immutable list of operations
// interpreted by [Program.Render]. A Program holds no per-render state and
// may be rendered from several goroutines at once.
type Program struct {
	ops    []Op
	engine Engine
	logger log.Logger
}

// Ops returns a copy of the program's top-level operations.
func (p *Program) Ops() []Op {
	if p == nil {
		return nil
	}

	return slices.Clone(p.ops)
}

// Len returns the total number of operations including nested programs.
func (p *Program) Len() int {
	if p == nil {
		return 0
	}

	n := len(p.ops)

	for _, op := range p.ops {
		switch op := op.(type) {
		case Block:
			n += op.Body.Len()
		case Control:
			n += op.Body.Len()
		}
	}

	return n
}

// Format writes a listing of the program, one operation per line, nested
// programs indented beneath the operation that owns them.
func (p *Program) Format(w io.Writer) error {
	return p.format(w, 0)
}

func (p *Program) format(w io.Writer, depth int) error {
	if p == nil {
		return nil
	}

	pad := strings.Repeat("  ", depth)

	for i, op := range p.ops {
		if _, err := fmt.Fprintf(w, "%s%04d %s\n", pad, i, op); err != nil {
			return ErrWrite.Wrap(err)
		}

		var body *Program

		switch op := op.(type) {
		case Block:
			body = op.Body
		case Control:
			body = op.Body
		}

		if err := body.format(w, depth+1); err != nil {
			return err
		}
	}

	return nil
}

// builder accumulates the operations of one program, merging adjacent
// literals.
type builder struct {
	ops []Op
}

func (b *builder) literal(text string) {
	if text == "" {
		return
	}

	if n := len(b.ops); n > 0 {
		if last, ok := b.ops[n-1].(WriteLiteral); ok {
			b.ops[n-1] = WriteLiteral{Text: last.Text + text}

			return
		}
	}

	b.ops = append(b.ops, WriteLiteral{Text: text})
}

func (b *builder) emit(op Op) {
	if lit, ok := op.(WriteLiteral); ok {
		b.literal(lit.Text)

		return
	}

	b.ops = append(b.ops, op)
}
