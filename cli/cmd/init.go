package cmd

import (
	"context"
	"log/slog"
	"os"
	"reflect"
	"slices"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"

	"github.com/ardnew/hbml/log"
)

// defaultConfigIndent is the YAML indentation of the generated file.
const defaultConfigIndent = 2

// ignoredFlags are never written to the configuration file.
var ignoredFlags = []string{"help", "version", "force", "pprof-"}

// Init generates a configuration file with the current flag values.
type Init struct {
	Force bool `help:"Overwrite existing configuration file" short:"f"`
}

// Run executes the init command.
func (i *Init) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	ktx := kongContextFrom(ctx)

	confPath, ok := ktx.Model.Vars()[ConfigIdentifier]
	if !ok {
		panic("internal error: config path undefined")
	}

	_, err = os.Stat(confPath)
	if err == nil && !i.Force {
		return ErrWriteConfig.
			With(slog.String("file", confPath)).
			With(slog.Bool("exists", true)).
			Wrap(ErrFileExists)
	}

	data, err := yaml.MarshalContext(ctx, i.values(ktx), yaml.Indent(defaultConfigIndent))
	if err != nil {
		return ErrYAMLMarshal.Wrap(err)
	}

	if err := os.WriteFile(confPath, data, 0o600); err != nil {
		return ErrWriteConfig.
			With(slog.String("file", confPath)).
			Wrap(err)
	}

	log.DebugContext(ctx, "initialized configuration file",
		slog.String("path", confPath),
	)

	return nil
}

// values collects every configurable flag of the application and its
// commands, in declaration order, keyed by flag name.
func (i *Init) values(ktx *kong.Context) yaml.MapSlice {
	var (
		out  yaml.MapSlice
		seen = map[string]bool{}
	)

	var visit func(n *kong.Node)

	visit = func(n *kong.Node) {
		for _, flag := range n.Flags {
			if flag.Hidden || seen[flag.Name] || slices.ContainsFunc(ignoredFlags, func(p string) bool {
				return strings.HasPrefix(flag.Name, p)
			}) {
				continue
			}

			seen[flag.Name] = true

			if v, ok := configValue(ktx.FlagValue(flag)); ok {
				out = append(out, yaml.MapItem{Key: flag.Name, Value: v})
			}
		}

		for _, child := range n.Children {
			visit(child)
		}
	}

	visit(ktx.Model.Node)

	return out
}

// configValue normalizes a flag value for YAML output. Empty strings,
// collections and nil are omitted.
func configValue(v any) (any, bool) {
	if v == nil {
		return nil, false
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.String:
		if rv.Len() == 0 {
			return nil, false
		}

		// Named string types such as the log level enums.
		return rv.String(), true

	case reflect.Slice, reflect.Map:
		if rv.Len() == 0 {
			return nil, false
		}

		return v, true

	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, false
		}

		return configValue(rv.Elem().Interface())

	default:
		return v, true
	}
}
