package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func plainJSON(w io.Writer, opts ...Option) Logger {
	return Make(w, append([]Option{
		WithFormat(FormatJSON),
		WithPretty(false),
		WithTimeLayout("none"),
	}, opts...)...)
}

func decode(t *testing.T, line string) map[string]any {
	t.Helper()

	var m map[string]any
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("invalid JSON %q: %v", line, err)
	}

	return m
}

func TestZeroLoggerDiscards(t *testing.T) {
	var l Logger

	l.Info("nothing")
	l.With(slog.String("k", "v")).Error("still nothing")

	if l.Level() != DefaultLevel || l.Format() != DefaultFormat {
		t.Error("zero logger should report defaults")
	}

	if l.Enabled(context.Background(), LevelError) {
		t.Error("zero logger should not be enabled")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	l := plainJSON(&buf, WithLevel(LevelWarn))

	l.Trace("t")
	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), buf.String())
	}

	if got := decode(t, lines[0])["level"]; got != "WARN" {
		t.Errorf("first level = %v", got)
	}
}

func TestTraceLevelName(t *testing.T) {
	var buf bytes.Buffer

	plainJSON(&buf, WithLevel(LevelTrace)).Trace("deep")

	if got := decode(t, strings.TrimSpace(buf.String()))["level"]; got != "TRACE" {
		t.Errorf("level = %v, want TRACE", got)
	}
}

func TestWithAttrs(t *testing.T) {
	var buf bytes.Buffer

	l := plainJSON(&buf).With(slog.String("component", "scanner"))
	l.Info("hello", slog.Int("line", 3))

	m := decode(t, strings.TrimSpace(buf.String()))
	if m["component"] != "scanner" || m["line"] != float64(3) {
		t.Errorf("missing attributes: %v", m)
	}
}

func TestWrapOverrides(t *testing.T) {
	var a, b bytes.Buffer

	base := plainJSON(&a, WithLevel(LevelError))
	wrapped := base.Wrap(WithOutput(&b), WithLevel(LevelDebug))

	base.Info("dropped")
	wrapped.Debug("kept")

	if a.Len() != 0 {
		t.Errorf("base logger wrote %q", a.String())
	}

	if !strings.Contains(b.String(), "kept") {
		t.Errorf("wrapped logger output = %q", b.String())
	}

	if base.Level() != LevelError || wrapped.Level() != LevelDebug {
		t.Error("Wrap modified the original configuration")
	}
}

func TestCallerPointsAtCallSite(t *testing.T) {
	var buf bytes.Buffer

	plainJSON(&buf, WithCaller(true)).Info("where")

	m := decode(t, strings.TrimSpace(buf.String()))

	src, ok := m["source"].(map[string]any)
	if !ok {
		t.Fatalf("no source in %v", m)
	}

	if file, _ := src["file"].(string); !strings.HasSuffix(file, "log_test.go") {
		t.Errorf("source file = %v, want log_test.go", src["file"])
	}
}

type logValued struct{}

func (logValued) LogValue() slog.Value {
	return slog.GroupValue(slog.String("error", "boom"), slog.Int("line", 2))
}

func TestPrettyTextHandler(t *testing.T) {
	var buf bytes.Buffer

	l := Make(&buf, WithFormat(FormatText), WithPretty(true), WithTimeLayout("none"))
	l.With(slog.String("pkg", "lang")).
		Info("compiled", slog.Bool("ok", true), slog.Any("err", logValued{}))

	out := buf.String()
	for _, want := range []string{"INFO", "compiled", "pkg=lang", "ok=true", "err.error=boom", "err.line=2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestPrettyJSONHandlerIsJSON(t *testing.T) {
	var buf bytes.Buffer

	l := Make(&buf, WithFormat(FormatJSON), WithPretty(true), WithTimeLayout("none"))
	l.Warn("careful", slog.Any("err", logValued{}), slog.String("q", `a "b"`))

	// Colors are stripped for non-terminal writers, leaving valid JSON.
	m := decode(t, buf.String())
	if m["msg"] != "careful" || m["q"] != `a "b"` {
		t.Errorf("unexpected record: %v", m)
	}

	if g, ok := m["err"].(map[string]any); !ok || g["error"] != "boom" {
		t.Errorf("group not nested: %v", m["err"])
	}
}

func TestConcurrentLogging(t *testing.T) {
	var (
		mu  sync.Mutex
		buf bytes.Buffer
	)

	l := plainJSON(&lockedWriter{mu: &mu, w: &buf})

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			l.Info("msg", slog.Int("i", i))
		}()
	}

	wg.Wait()

	if n := strings.Count(buf.String(), "\n"); n != 16 {
		t.Errorf("got %d lines, want 16", n)
	}
}

type lockedWriter struct {
	mu *sync.Mutex
	w  *bytes.Buffer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.w.Write(p)
}

func TestPackageLevelConfig(t *testing.T) {
	saved := Default()
	defer defaultLog.Store(&saved)

	var buf bytes.Buffer

	Config(WithOutput(&buf), WithFormat(FormatJSON), WithPretty(false), WithLevel(LevelDebug))

	Debug("one")
	InfoContext(context.Background(), "two")
	Warn("three", slog.Any("err", errors.New("x")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}

	if decode(t, lines[2])["err"] != "x" {
		t.Errorf("error attr not rendered: %s", lines[2])
	}
}
