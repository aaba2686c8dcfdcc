package repl

import (
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/expr-lang/expr/builtin"
	"github.com/sahilm/fuzzy"

	"github.com/ardnew/hbml/lang"
)

// ctrlCommands are the available control-mode commands.
var ctrlCommands = []string{
	"help", "show", "render", "undo", "reset", "set", "unset", "vars",
	"ops", "pretty", "edit", "clear", "quit",
}

// tagNames are offered after a '%' mark.
var tagNames = []string{
	"a", "article", "aside", "b", "body", "br", "button", "code", "div",
	"em", "footer", "form", "h1", "h2", "h3", "h4", "head", "header", "hr",
	"html", "i", "img", "input", "label", "li", "link", "main", "meta",
	"nav", "ol", "option", "p", "pre", "script", "section", "select", "span",
	"strong", "style", "table", "tbody", "td", "textarea", "th", "thead",
	"title", "tr", "ul",
}

// statementWords are offered for the first word of a "- " line.
var statementWords = []string{"if", "elif", "else", "unless", "for", "with", "let"}

// completion identifies what the word under the cursor can be.
type completion int

const (
	completeNone completion = iota
	completeTag
	completeFilter
	completeStatement
	completeExpr
)

// isWordBoundary reports whether r delimits a completion word. Hyphens are
// not boundaries because tag and attribute names may contain them.
func isWordBoundary(r rune) bool {
	switch r {
	case '.', ' ', '\t',
		'(', ')', '[', ']',
		'+', '*', '/', '%',
		'<', '>', '=', '!',
		'&', '|', ',', '?', ':', ';',
		'#', '"':
		return true
	}

	return false
}

// wordBounds returns the word at the cursor and its byte offsets in input.
// The word is empty when the cursor sits on a boundary.
func wordBounds(input string, cursor int) (word string, start, end int) {
	cursor = min(cursor, len(input))

	start = cursor
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(input[:start])
		if isWordBoundary(r) {
			break
		}

		start -= size
	}

	end = cursor
	for end < len(input) {
		r, size := utf8.DecodeRuneInString(input[end:])
		if isWordBoundary(r) {
			break
		}

		end += size
	}

	return input[start:end], start, end
}

// parentPath returns the member-access chain leading up to the word at
// wordStart: "user.name.fi" with the word "fi" yields "user.name".
func parentPath(input string, wordStart int) string {
	prefix := input[:wordStart]
	if !strings.HasSuffix(prefix, ".") {
		return ""
	}

	prefix = strings.TrimRight(prefix, ".")

	pos := len(prefix)
	for pos > 0 {
		r, size := utf8.DecodeLastRuneInString(prefix[:pos])
		if r != '.' && isWordBoundary(r) {
			break
		}

		pos -= size
	}

	return strings.TrimSpace(prefix[pos:])
}

// classify decides what kind of word starts at wordStart in a template line.
func classify(input string, wordStart int) completion {
	body := strings.TrimLeft(input, " ")
	lead := len(input) - len(body)

	if wordStart <= lead {
		return completeNone
	}

	switch {
	case strings.HasPrefix(body, "-"):
		if strings.TrimSpace(input[lead+1:wordStart]) == "" {
			return completeStatement
		}

		return completeExpr

	case strings.HasPrefix(body, "="):
		return completeExpr

	case body == "" || !strings.ContainsRune("%.#:", rune(body[0])):
		return completeNone
	}

	// Inside a tag brief or its attribute list.
	before := input[lead:wordStart]

	if open := strings.LastIndexByte(before, '('); open >= 0 && !strings.Contains(before[open:], ")") {
		if strings.HasSuffix(strings.TrimRight(before, " "), "=") {
			return completeExpr
		}

		return completeNone
	}

	if strings.ContainsAny(before, " )") {
		return completeNone
	}

	switch {
	case strings.HasSuffix(before, "%"):
		return completeTag
	case strings.HasSuffix(before, ":"):
		return completeFilter
	default:
		return completeNone
	}
}

// exprCandidates returns the names an expression can refer to: bindings and
// functions at the top level, or the keys of a binding map under parent.
func exprCandidates(bindings map[string]any, parent string) []string {
	if parent != "" {
		var v any = bindings

		for seg := range strings.SplitSeq(parent, ".") {
			m, ok := v.(map[string]any)
			if !ok {
				return nil
			}

			v = m[seg]
		}

		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}

		return slices.Sorted(maps.Keys(m))
	}

	names := slices.Sorted(maps.Keys(bindings))
	names = append(names, lang.Builtins()...)

	return append(names, builtin.Names...)
}

// computeMatches calculates the fuzzy matches for the word at the cursor,
// ranked best-first. An empty word yields no matches, except directly after
// a member-access dot where every key is listed.
func (m model) computeMatches() (
	matches fuzzy.Matches,
	candidates []string,
	wordStart, wordEnd int,
) {
	input := m.input.Value()

	word, wordStart, wordEnd := wordBounds(input, m.input.Position())

	if m.mode == modeCtrl {
		if word == "" || strings.TrimSpace(input[:wordStart]) != "" {
			return nil, nil, wordStart, wordEnd
		}

		return fuzzy.Find(word, ctrlCommands), ctrlCommands, wordStart, wordEnd
	}

	parent := ""

	switch classify(input, wordStart) {
	case completeTag:
		candidates = tagNames
	case completeFilter:
		candidates = lang.Filters()
	case completeStatement:
		candidates = statementWords
	case completeExpr:
		parent = parentPath(input, wordStart)
		candidates = exprCandidates(m.bindings, parent)
	}

	if len(candidates) == 0 {
		return nil, nil, wordStart, wordEnd
	}

	if word == "" {
		if parent == "" {
			return nil, nil, wordStart, wordEnd
		}

		matches = make(fuzzy.Matches, len(candidates))
		for i, c := range candidates {
			matches[i] = fuzzy.Match{Str: c, Index: i}
		}

		return matches, candidates, wordStart, wordEnd
	}

	return fuzzy.Find(word, candidates), candidates, wordStart, wordEnd
}

// renderCandidateBar builds the single-line completion bar, ellipsized to fit
// within width. The selected candidate (when tabbing) uses the selected
// style.
func renderCandidateBar(
	matches fuzzy.Matches,
	suggIdx int,
	tabActive bool,
	width int,
) string {
	if len(matches) == 0 || width <= 0 {
		return ""
	}

	const sep = "  "

	sepWidth := lipgloss.Width(sep)
	ellipsis := hintStyle.Render("...")
	ellipsisWidth := lipgloss.Width(ellipsis)

	var b strings.Builder

	used := 0

	for i, match := range matches {
		rendered := renderCandidate(match, tabActive && i == suggIdx)

		entryWidth := lipgloss.Width(rendered)
		if i > 0 {
			entryWidth += sepWidth
		}

		if i > 0 && used+entryWidth+ellipsisWidth > width {
			b.WriteString(sep)
			b.WriteString(ellipsis)

			break
		}

		if i > 0 {
			b.WriteString(sep)
		}

		b.WriteString(rendered)

		used += entryWidth
	}

	return b.String()
}

// renderCandidate renders one candidate with its matched characters
// highlighted. Functions get a "()" suffix that is not inserted on
// completion.
func renderCandidate(match fuzzy.Match, selected bool) string {
	baseStyle := suggestionStyle
	highlightStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("4")).
		Bold(true)

	if selected {
		baseStyle = selectedStyle
		highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("4")).
			Bold(true)
	}

	var b strings.Builder

	for i, r := range match.Str {
		if slices.Contains(match.MatchedIndexes, i) {
			b.WriteString(highlightStyle.Render(string(r)))
		} else {
			b.WriteString(baseStyle.Render(string(r)))
		}
	}

	if isFunction(match.Str) {
		b.WriteString(baseStyle.Render("()"))
	}

	return b.String()
}

// isFunction reports whether name is callable from an expression.
func isFunction(name string) bool {
	if _, ok := builtin.Index[name]; ok {
		return true
	}

	_, ok := lang.BuiltinDoc(name)

	return ok
}
