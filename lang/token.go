package lang

import (
	"strconv"
	"strings"
)

// Kind identifies the lexical category of a [Token].
type Kind int

const (
	KindInvalid Kind = iota

	// Tag brief marks.
	TagNameMark // %
	ClassMark   // .
	IDMark      // #
	FilterMark  // :

	Keyword // identifier following a mark, or an attribute key

	OpenParen
	CloseParen
	Comma
	Equal

	StringLiteral // decoded content of a quoted attribute value
	ExprText      // expression source, verbatim
	PlainText     // literal text
	SelfClose     // /

	StatementFlag   // "- "
	EchoFlag        // "= "
	EscapedEchoFlag // "=% "

	Newline
	Indent
	Outdent

	RawText // captured body of a filter tag
	EOF
)

var kindNames = [...]string{
	KindInvalid:     "Invalid",
	TagNameMark:     "TagNameMark",
	ClassMark:       "ClassMark",
	IDMark:          "IdMark",
	FilterMark:      "FilterMark",
	Keyword:         "Keyword",
	OpenParen:       "OpenParen",
	CloseParen:      "CloseParen",
	Comma:           "Comma",
	Equal:           "Equal",
	StringLiteral:   "StringLiteral",
	ExprText:        "ExprText",
	PlainText:       "PlainText",
	SelfClose:       "SelfClose",
	StatementFlag:   "StatementFlag",
	EchoFlag:        "EchoFlag",
	EscapedEchoFlag: "EscapedEchoFlag",
	Newline:         "Newline",
	Indent:          "Indent",
	Outdent:         "Outdent",
	RawText:         "RawText",
	EOF:             "EOF",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}

	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// IsMark reports whether k is one of the tag brief marks.
func (k Kind) IsMark() bool { return k >= TagNameMark && k <= FilterMark }

// IsFlag reports whether k introduces an embedded statement or echo.
func (k Kind) IsFlag() bool { return k >= StatementFlag && k <= EscapedEchoFlag }

// markKinds maps the brief mark characters to their token kinds.
var markKinds = map[byte]Kind{
	'%': TagNameMark,
	'.': ClassMark,
	'#': IDMark,
	':': FilterMark,
}

// Token is a lexical unit produced by the [Scanner].
type Token struct {
	Kind Kind
	Text string
	Pos  Position
}

// String renders the token for diagnostics, e.g. `Keyword("div")@1:2`.
func (t Token) String() string {
	var b strings.Builder

	b.WriteString(t.Kind.String())

	switch t.Kind {
	case Keyword, StringLiteral, ExprText, PlainText, RawText:
		b.WriteByte('(')
		b.WriteString(strconv.Quote(t.Text))
		b.WriteByte(')')
	}

	if t.Pos.IsValid() {
		b.WriteByte('@')
		b.WriteString(t.Pos.String())
	}

	return b.String()
}
