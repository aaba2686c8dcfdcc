package lang

import (
	"log/slog"
	"strings"
)

// mode is a lexical state of the line scanner. Modes are kept on a stack;
// exactly one, the top, is active.
type mode int

const (
	modeDefault mode = iota
	modeTagBrief
	modeTagAttrs
	modeAttrValue
	modeAttrValueBrace
	modeAttrValueString
	modeTagTail
	modeExpression
	modeFilter
)

var modeNames = [...]string{
	modeDefault:         "default",
	modeTagBrief:        "tag brief",
	modeTagAttrs:        "tag attributes",
	modeAttrValue:       "attribute value",
	modeAttrValueBrace:  "attribute value (parenthesized)",
	modeAttrValueString: "attribute value (string)",
	modeTagTail:         "tag tail",
	modeExpression:      "expression",
	modeFilter:          "filter",
}

func (m mode) String() string { return modeNames[m] }

// lineScanner tokenizes the body of one logical line.
type lineScanner struct {
	text  string
	pos   int
	line  int
	col   int // column of text[0]
	modes []mode
	toks  []Token

	start      int  // offset of the attribute value being scanned
	quote      byte // delimiter of the string being scanned
	quoteStart int
	attrsDone  bool
}

// scanLine tokenizes text, the body of a line starting at the given column.
// The result always ends with a Newline token.
func scanLine(text string, line, col int) ([]Token, error) {
	ls := &lineScanner{
		text:  text,
		line:  line,
		col:   col,
		modes: []mode{modeDefault},
	}

	for len(ls.modes) > 0 {
		var err error

		switch ls.mode() {
		case modeDefault:
			ls.lexDefault()
		case modeTagBrief:
			err = ls.lexTagBrief()
		case modeTagAttrs:
			err = ls.lexTagAttrs()
		case modeAttrValue, modeAttrValueBrace:
			err = ls.lexAttrValue()
		case modeAttrValueString:
			err = ls.lexString()
		case modeTagTail:
			ls.lexTagTail()
		case modeExpression:
			ls.lexExpression()
		}

		if err != nil {
			return nil, err
		}
	}

	return ls.toks, nil
}

func (ls *lineScanner) mode() mode { return ls.modes[len(ls.modes)-1] }

func (ls *lineScanner) push(m mode) { ls.modes = append(ls.modes, m) }

func (ls *lineScanner) pop() { ls.modes = ls.modes[:len(ls.modes)-1] }

// set replaces the active mode.
func (ls *lineScanner) set(m mode) { ls.modes[len(ls.modes)-1] = m }

func (ls *lineScanner) at(off int) Position {
	return Position{Line: ls.line, Column: ls.col + off}
}

func (ls *lineScanner) emit(kind Kind, text string, off int) {
	ls.toks = append(ls.toks, Token{Kind: kind, Text: text, Pos: ls.at(off)})
}

// end emits the line's Newline and leaves the active mode.
func (ls *lineScanner) end() {
	ls.emit(Newline, "", len(ls.text))
	ls.pop()
}

func (ls *lineScanner) peek() (byte, bool) {
	if ls.pos >= len(ls.text) {
		return 0, false
	}

	return ls.text[ls.pos], true
}

func (ls *lineScanner) skipSpace() {
	for ls.pos < len(ls.text) && (ls.text[ls.pos] == ' ' || ls.text[ls.pos] == '\t') {
		ls.pos++
	}
}

func (ls *lineScanner) unexpected(what string) error {
	found := "end of line"
	if c, ok := ls.peek(); ok {
		found = string(c)
	}

	return ErrUnexpectedChar.
		At(ls.at(ls.pos)).
		With(
			slog.String("mode", ls.mode().String()),
			slog.String("found", found),
			slog.String("expected", what),
		)
}

func (ls *lineScanner) unterminatedAttrs() error {
	return ErrUnterminatedAttrs.
		At(ls.at(ls.pos)).
		With(slog.String("mode", ls.mode().String()))
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || c == '-' || (c >= '0' && c <= '9')
}

// isAttrKeyChar additionally admits namespaced and dotted keys such as
// xlink:href or x-on.click.
func isAttrKeyChar(c byte) bool { return isIdentChar(c) || c == ':' || c == '.' }

// isBriefStart reports whether text begins with a mark and an identifier.
func isBriefStart(text string) bool {
	if len(text) < 2 {
		return false
	}

	_, mark := markKinds[text[0]]

	return mark && isIdentStart(text[1])
}

func (ls *lineScanner) lexDefault() {
	rest := ls.text

	flag := func(kind Kind, prefix string) {
		ls.emit(kind, strings.TrimSpace(prefix), 0)
		ls.pos = len(prefix)
		ls.set(modeExpression)
	}

	switch {
	case isBriefStart(rest):
		ls.set(modeTagBrief)

	case strings.HasPrefix(rest, "=% "):
		flag(EscapedEchoFlag, "=% ")

	case strings.HasPrefix(rest, "= "):
		flag(EchoFlag, "= ")

	case strings.HasPrefix(rest, "- "):
		flag(StatementFlag, "- ")

	default:
		ls.emit(PlainText, strings.TrimRight(rest, " \t"), 0)
		ls.end()
	}
}

func (ls *lineScanner) lexTagBrief() error {
	for {
		c, ok := ls.peek()
		if !ok {
			ls.end()

			return nil
		}

		if kind, mark := markKinds[c]; mark && !ls.attrsDone {
			if ls.pos+1 >= len(ls.text) || !isIdentStart(ls.text[ls.pos+1]) {
				ls.pos++

				return ls.unexpected("identifier after " + string(c))
			}

			ls.emit(kind, string(c), ls.pos)
			ls.pos++

			start := ls.pos
			for ls.pos < len(ls.text) && isIdentChar(ls.text[ls.pos]) {
				ls.pos++
			}

			ls.emit(Keyword, ls.text[start:ls.pos], start)

			continue
		}

		switch {
		case c == ' ' || c == '\t':
			ls.pos++
			ls.set(modeTagTail)

			return nil

		case c == '(' && !ls.attrsDone:
			ls.emit(OpenParen, "(", ls.pos)
			ls.pos++
			ls.push(modeTagAttrs)

			return nil

		case c == '/':
			ls.emit(SelfClose, "/", ls.pos)
			ls.pos++

			if strings.TrimSpace(ls.text[ls.pos:]) != "" {
				ls.skipSpace()

				return ls.unexpected("end of line after /")
			}

			ls.end()

			return nil

		default:
			if ls.attrsDone {
				return ls.unexpected("space, / or end of line after attributes")
			}

			return ls.unexpected("mark, (, /, space or end of line")
		}
	}
}

func (ls *lineScanner) lexTagAttrs() error {
	ls.skipSpace()

	c, ok := ls.peek()
	if !ok {
		return ls.unterminatedAttrs()
	}

	switch {
	case c == ')':
		ls.emit(CloseParen, ")", ls.pos)
		ls.pos++
		ls.pop()
		ls.attrsDone = true

	case c == ',':
		ls.emit(Comma, ",", ls.pos)
		ls.pos++

	case c == '=':
		ls.emit(Equal, "=", ls.pos)
		ls.pos++
		ls.start = ls.pos
		ls.push(modeAttrValue)

	case isIdentStart(c):
		start := ls.pos
		for ls.pos < len(ls.text) && isAttrKeyChar(ls.text[ls.pos]) {
			ls.pos++
		}

		ls.emit(Keyword, ls.text[start:ls.pos], start)

	default:
		return ls.unexpected("attribute name, =, , or )")
	}

	return nil
}

// lexAttrValue scans free expression text up to a top-level , or ).
// Parentheses nest through modeAttrValueBrace; quotes enter
// modeAttrValueString.
func (ls *lineScanner) lexAttrValue() error {
	for ls.pos < len(ls.text) {
		c := ls.text[ls.pos]

		switch c {
		case '"', '\'':
			ls.quote, ls.quoteStart = c, ls.pos
			ls.pos++
			ls.push(modeAttrValueString)

			return nil

		case '(':
			ls.pos++
			ls.push(modeAttrValueBrace)

			return nil

		case ')':
			if ls.mode() == modeAttrValueBrace {
				ls.pos++
				ls.pop()

				return nil
			}

			ls.emitValue()
			ls.pop()

			return nil

		case ',':
			if ls.mode() == modeAttrValue {
				ls.emitValue()
				ls.pop()

				return nil
			}
		}

		ls.pos++
	}

	return ls.unterminatedAttrs()
}

func (ls *lineScanner) lexString() error {
	for ls.pos < len(ls.text) {
		c := ls.text[ls.pos]
		if c == '\\' {
			ls.pos += 2

			continue
		}

		ls.pos++

		if c == ls.quote {
			ls.pop()

			return nil
		}
	}

	return ErrUnterminatedString.
		At(ls.at(ls.quoteStart)).
		With(slog.String("mode", modeAttrValueString.String()))
}

// emitValue emits the attribute value spanning start..pos: a StringLiteral
// when it is exactly one double-quoted string, ExprText otherwise.
func (ls *lineScanner) emitValue() {
	raw := ls.text[ls.start:ls.pos]
	off := ls.start + leading(raw)
	val := strings.TrimSpace(raw)

	if s, ok := unquote(val); ok {
		ls.emit(StringLiteral, s, off)

		return
	}

	ls.emit(ExprText, val, off)
}

// unquote decodes s if it is a single double-quoted string literal.
// Backslash escapes the next character; \n, \t and \r have their usual
// meaning.
func unquote(s string) (string, bool) {
	if len(s) < 2 || s[0] != '"' {
		return "", false
	}

	var b strings.Builder

	for i := 1; i < len(s); i++ {
		c := s[i]

		switch c {
		case '"':
			return b.String(), i == len(s)-1

		case '\\':
			i++
			if i >= len(s) {
				return "", false
			}

			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(s[i])
			}

		default:
			b.WriteByte(c)
		}
	}

	return "", false
}

func (ls *lineScanner) lexTagTail() {
	ls.skipSpace()

	rest := strings.TrimRight(ls.text[ls.pos:], " \t")

	switch rest {
	case "":
	case "/":
		ls.emit(SelfClose, "/", ls.pos)
	default:
		ls.emit(PlainText, rest, ls.pos)
	}

	ls.end()
}

func (ls *lineScanner) lexExpression() {
	ls.skipSpace()
	ls.emit(ExprText, strings.TrimRight(ls.text[ls.pos:], " \t"), ls.pos)
	ls.end()
}
