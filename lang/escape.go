package lang

import (
	"strings"

	"golang.org/x/net/html"
)

// Escape escapes the markup-significant characters & < > " ' (and carriage
// return) in s as character references.
func Escape(s string) string { return html.EscapeString(s) }

var quoteEscaper = strings.NewReplacer(`"`, `\"`)

// escapeQuotes prepares a value for a double-quoted attribute by
// backslash-escaping embedded double quotes.
func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }
