// Package log provides a concurrency-safe simplified logging interface
// based on [log/slog].
//
// Loggers are created with [Make] and configured with functional options:
//
//	logger := log.Make(os.Stderr,
//		log.WithLevel(log.LevelDebug),
//		log.WithFormat(log.FormatJSON),
//		log.WithTimeLayout("RFC3339Nano"),
//		log.WithCaller(true))
//
// Configuration is fixed at creation; [Logger.Wrap] derives a logger with
// some options overridden and [Logger.With] one with extra attributes.
//
// The zero [Logger] discards everything, which lets libraries accept a
// Logger option without requiring callers to configure one.
//
// # Levels
//
// In addition to the four slog levels the package defines [LevelTrace],
// used for per-token and per-op diagnostics of the template compiler.
//
// # Pretty output
//
// With [WithPretty] the text and JSON handlers colorize keys and values
// using lipgloss. Color is dropped automatically when the output is not a
// terminal.
//
// # Package-level logger
//
// Functions such as [Info] and [ErrorContext] write through a default logger
// bound to stderr, reconfigured with [Config].
package log
