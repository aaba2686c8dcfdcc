package repl

import (
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/ardnew/hbml/lang"
)

// exprSignatures are the parameter lists of commonly used expr-lang
// builtins. Other builtins complete but show no hint.
var exprSignatures = map[string]string{
	"len":       "len(v)",
	"all":       "all(array, predicate)",
	"any":       "any(array, predicate)",
	"filter":    "filter(array, predicate)",
	"map":       "map(array, mapper)",
	"find":      "find(array, predicate)",
	"count":     "count(array, predicate)",
	"sortBy":    "sortBy(array, mapper)",
	"groupBy":   "groupBy(array, mapper)",
	"sum":       "sum(array)",
	"min":       "min(array)",
	"max":       "max(array)",
	"join":      "join(array, separator)",
	"split":     "split(string, separator)",
	"replace":   "replace(string, old, new)",
	"trim":      "trim(string)",
	"upper":     "upper(string)",
	"lower":     "lower(string)",
	"hasPrefix": "hasPrefix(string, prefix)",
	"hasSuffix": "hasSuffix(string, suffix)",
	"int":       "int(v)",
	"float":     "float(v)",
	"string":    "string(v)",
	"type":      "type(v)",
}

var (
	signatureStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	signatureNameStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("6")).
				Bold(true)
	currentParamStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("11")).
				Bold(true)
	docStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)

// functionCall is the call whose argument list contains the cursor.
type functionCall struct {
	name     string
	argIndex int // 0-based
	inCall   bool
}

// detectFunctionCall reports the innermost unclosed call before cursor and
// which of its arguments the cursor is in.
func detectFunctionCall(input string, cursor int) functionCall {
	cursor = min(cursor, len(input))

	depth := 0
	open := -1

	for i := cursor; i > 0 && open < 0; {
		r, size := utf8.DecodeLastRuneInString(input[:i])
		i -= size

		switch r {
		case ')':
			depth++
		case '(':
			if depth == 0 {
				open = i
			}

			depth--
		}
	}

	if open < 0 {
		return functionCall{}
	}

	start := open
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(input[:start])
		if r != '_' && r != '.' && !isIdentRune(r) {
			break
		}

		start -= size
	}

	name := input[start:open]
	if name == "" {
		return functionCall{}
	}

	call := functionCall{name: name, inCall: true}
	depth = 0

	for _, r := range input[open+1 : cursor] {
		switch r {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				call.argIndex++
			}
		}
	}

	return call
}

func isIdentRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'
}

// getSignature returns the signature of a template or expr-lang builtin, its
// parameter names and a description when one exists.
func getSignature(name string) (signature string, params []string, doc string) {
	if d, ok := lang.BuiltinDoc(name); ok {
		signature, doc, _ = strings.Cut(d, ") ")
		signature += ")"
	} else if s, ok := exprSignatures[name]; ok {
		signature = s
	} else {
		return "", nil, ""
	}

	open := strings.IndexByte(signature, '(')
	if inner := signature[open+1 : len(signature)-1]; inner != "" {
		params = strings.Split(inner, ", ")
	}

	return signature, params, doc
}

// renderSignatureHint renders a signature with the parameter at argIndex
// highlighted. A variadic parameter ("names...") stays highlighted for every
// later argument.
func renderSignatureHint(signature string, params []string, argIndex int, doc string) string {
	open := strings.IndexByte(signature, '(')
	if open < 0 {
		return signatureStyle.Render(signature)
	}

	var b strings.Builder

	b.WriteString(signatureNameStyle.Render(signature[:open]))
	b.WriteString(signatureStyle.Render("("))

	for i, param := range params {
		if i > 0 {
			b.WriteString(signatureStyle.Render(", "))
		}

		variadic := strings.HasSuffix(param, "...")
		if argIndex == i || variadic && argIndex > i {
			b.WriteString(currentParamStyle.Render(param))
		} else {
			b.WriteString(signatureStyle.Render(param))
		}
	}

	b.WriteString(signatureStyle.Render(")"))

	if doc != "" {
		b.WriteString(" ")
		b.WriteString(docStyle.Render(doc))
	}

	return b.String()
}
