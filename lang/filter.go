package lang

import (
	"io"
	"maps"
	"slices"
)

// filterFunc writes the output of a filter for the raw body text.
type filterFunc func(w io.Writer, text string) error

// filters is the registry of filter names accepted after a : mark.
var filters = map[string]filterFunc{
	"plain": func(w io.Writer, text string) error {
		_, err := io.WriteString(w, text)

		return err
	},
}

// Filters returns the names of the supported filters, sorted.
func Filters() []string { return slices.Sorted(maps.Keys(filters)) }
