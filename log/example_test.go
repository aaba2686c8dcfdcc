package log_test

import (
	"log/slog"
	"os"

	"github.com/ardnew/hbml/log"
)

func Example() {
	logger := log.Make(os.Stdout,
		log.WithFormat(log.FormatJSON),
		log.WithPretty(false),
		log.WithTimeLayout("none"),
	)

	logger.Info("compiled", slog.String("template", "index.hbml"), slog.Int("ops", 12))
	logger.Debug("not shown at the default level")

	// Output:
	// {"level":"INFO","msg":"compiled","template":"index.hbml","ops":12}
}

func Example_levels() {
	logger := log.Make(os.Stdout,
		log.WithFormat(log.FormatJSON),
		log.WithPretty(false),
		log.WithTimeLayout("none"),
		log.WithLevel(log.LevelTrace),
	)

	logger.Trace("token", slog.String("kind", "Indent"))

	// Output:
	// {"level":"TRACE","msg":"token","kind":"Indent"}
}
