package lang

import "iter"

// Node is a node of the Block Tree.
type Node interface {
	// Position returns where the node's header starts in the source.
	Position() Position
	node()
}

// Mark identifies the role of a [BriefItem].
type Mark byte

const (
	MarkTag    Mark = '%'
	MarkClass  Mark = '.'
	MarkID     Mark = '#'
	MarkFilter Mark = ':'
)

func (m Mark) String() string { return string(m) }

// BriefItem is one mark and identifier pair of a tag brief.
type BriefItem struct {
	Mark Mark
	Name string
}

// Brief is the ordered list of marks that opens a tag line, e.g.
// %a#home.nav.active.
type Brief []BriefItem

// TagName returns the last % name, or def when there is none.
func (b Brief) TagName(def string) string {
	name := def

	for _, it := range b {
		if it.Mark == MarkTag {
			name = it.Name
		}
	}

	return name
}

// ID returns the last # name.
func (b Brief) ID() (string, bool) {
	id, ok := "", false

	for _, it := range b {
		if it.Mark == MarkID {
			id, ok = it.Name, true
		}
	}

	return id, ok
}

// Classes returns every . name in source order.
func (b Brief) Classes() []string {
	var classes []string

	for _, it := range b {
		if it.Mark == MarkClass {
			classes = append(classes, it.Name)
		}
	}

	return classes
}

// Filter returns the : name.
func (b Brief) Filter() (string, bool) {
	for _, it := range b {
		if it.Mark == MarkFilter {
			return it.Name, true
		}
	}

	return "", false
}

// Attr is an explicit attribute of a tag. Literal values hold the decoded
// string; otherwise Value is expression source evaluated at render time.
type Attr struct {
	Key     string
	Value   string
	Literal bool
	Pos     Position
}

// Tail describes what follows a tag's brief and attributes on its line.
type Tail int

const (
	TailNone Tail = iota
	TailText
	TailSelfClose
)

func (t Tail) String() string {
	switch t {
	case TailText:
		return "text"
	case TailSelfClose:
		return "self-close"
	default:
		return "none"
	}
}

// Tag is an element line. Body is nil, a *Sequence of nested blocks, or a
// *Raw for a filter tag.
type Tag struct {
	Pos   Position
	Brief Brief
	Attrs []Attr
	Tail  Tail
	Text  string // tail text when Tail is TailText
	Body  Node
}

// Statement is an embedded statement (-), echo (=) or escaped echo (=%).
type Statement struct {
	Pos  Position
	Flag Kind // StatementFlag, EchoFlag or EscapedEchoFlag
	Text string
	Body *Sequence
}

// Text is a plain text line.
type Text struct {
	Pos  Position
	Text string
	Body *Sequence
}

// Raw is the verbatim body of a filter tag.
type Raw struct {
	Pos  Position
	Text string
}

// Sequence is an ordered list of sibling blocks.
type Sequence struct {
	Pos   Position
	Items []Node
}

func (n *Tag) Position() Position       { return n.Pos }
func (n *Statement) Position() Position { return n.Pos }
func (n *Text) Position() Position      { return n.Pos }
func (n *Raw) Position() Position       { return n.Pos }
func (n *Sequence) Position() Position  { return n.Pos }

func (*Tag) node()       {}
func (*Statement) node() {}
func (*Text) node()      {}
func (*Raw) node()       {}
func (*Sequence) node()  {}

// Walk returns an iterator over n and its descendants in depth-first
// pre-order.
func Walk(n Node) iter.Seq[Node] {
	return func(yield func(Node) bool) {
		walk(n, yield)
	}
}

func walk(n Node, yield func(Node) bool) bool {
	if n == nil {
		return true
	}

	if !yield(n) {
		return false
	}

	switch n := n.(type) {
	case *Sequence:
		for _, it := range n.Items {
			if !walk(it, yield) {
				return false
			}
		}
	case *Tag:
		return walk(n.Body, yield)
	case *Statement:
		if n.Body != nil {
			return walk(n.Body, yield)
		}
	case *Text:
		if n.Body != nil {
			return walk(n.Body, yield)
		}
	}

	return true
}
