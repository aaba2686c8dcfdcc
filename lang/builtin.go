package lang

import (
	"slices"
	"strings"

	"github.com/ardnew/mung"
)

type builtin struct {
	name string
	fn   func(params ...any) (any, error)
	doc  string
}

// builtins are the functions every [ExprEngine] expression can call.
var builtins = []builtin{
	{
		name: "escape",
		doc:  "escape(v) escapes markup characters in the string form of v",
		fn: func(params ...any) (any, error) {
			return Escape(joinParams(params)), nil
		},
	},
	{
		name: "str",
		doc:  "str(v) returns the string form of v as a template would print it",
		fn: func(params ...any) (any, error) {
			return joinParams(params), nil
		},
	},
	{
		name: "classes",
		doc:  "classes(list, names...) prepends names to a space-separated class list",
		fn: func(params ...any) (any, error) {
			if len(params) == 0 {
				return "", nil
			}

			return classList(Stringify(params[0]), stringsOf(params[1:])...), nil
		},
	},
}

// Builtins returns the names of the functions available to expressions of
// an [ExprEngine], sorted.
func Builtins() []string {
	names := make([]string, 0, len(builtins))
	for _, b := range builtins {
		names = append(names, b.name)
	}

	slices.Sort(names)

	return names
}

// BuiltinDoc returns the one-line description of a builtin.
func BuiltinDoc(name string) (string, bool) {
	for _, b := range builtins {
		if b.name == name {
			return b.doc, true
		}
	}

	return "", false
}

func joinParams(params []any) string {
	return strings.Join(stringsOf(params), "")
}

// stringsOf stringifies params, flattening string slices and dropping
// empty results.
func stringsOf(params []any) []string {
	out := make([]string, 0, len(params))

	for _, p := range params {
		switch p := p.(type) {
		case []string:
			out = append(out, p...)
		case []any:
			out = append(out, stringsOf(p)...)
		default:
			if s := Stringify(p); s != "" {
				out = append(out, s)
			}
		}
	}

	return out
}

func classList(list string, names ...string) string {
	return mung.Make(
		mung.WithSubjectItems(list),
		mung.WithDelim(" "),
		mung.WithPrefixItems(names...),
	).String()
}
