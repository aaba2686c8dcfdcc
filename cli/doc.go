// Package cli contains the command line interface for hbml.
//
// # Commands
//
//	hbml [render] [FILE]   render a template (the default command)
//	hbml tokens [FILE]     print the token stream
//	hbml tree [FILE]       print the block tree, or the render program (--ops)
//	hbml init              write the current flag values to the config file
//	hbml repl [FILE]       build a template interactively
//
// A missing FILE or "-" reads the template from standard input. Bindings for
// expressions come from a YAML or JSON file (--vars) and from --define
// NAME=VALUE flags, which take precedence.
//
// # Configuration
//
// Flag defaults are read from config.yaml in the user configuration
// directory (for example ~/.config/hbml/config.yaml). Keys name flags and
// a mapping names a flag prefix, so
//
//	log:
//	  level: debug
//	indent_width: 4
//
// sets --log-level and --indent-width for every command that has it.
// Underscores in keys match hyphens in flag names. hbml init writes such a
// file from the effective flag values.
//
// # Logging Options
//
//   - --log-level: minimum log level (trace, debug, info, warn, error)
//   - --log-format: log output format (text, json)
//   - --log-time-layout: timestamp layout (RFC3339, Kitchen, ...)
//   - --log-caller: include the caller in log records
//   - --log-pretty: colorize log records
//
// # Profiling Options
//
// Profiling is only available when built with the pprof build tag:
//
//	go build -tags pprof -o hbml .
//
//   - --pprof-mode: enable a profile (allocs, block, clock, cpu, goroutine,
//     heap, mem, mutex, thread, trace)
//   - --pprof-dir: profile output directory (default ~/.cache/hbml/pprof)
//
// # Examples
//
//	# Render with bindings and pretty output
//	hbml --pretty -D title=Home --vars site.yaml page.hbml
//
//	# Inspect what the compiler produced
//	hbml tree --ops page.hbml
//
//	# Debug logging with CPU profiling
//	hbml --log-level=debug --pprof-mode=cpu render page.hbml
package cli
