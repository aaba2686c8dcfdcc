package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// palette holds the styles used by the pretty handlers. Styles are bound to a
// renderer for the handler's writer so color is dropped when the writer is
// not a terminal.
type palette struct {
	key, str, num, yes, no, dur, ts, null, src lipgloss.Style
	levels                                     [4]lipgloss.Style // error, warn, info, debug/trace
}

func newPalette(w io.Writer) palette {
	r := lipgloss.NewRenderer(w)
	fg := func(c string) lipgloss.Style {
		return r.NewStyle().Foreground(lipgloss.Color(c))
	}

	return palette{
		key:  fg("8"),
		str:  fg("6"),
		num:  fg("3"),
		yes:  fg("2"),
		no:   fg("1"),
		dur:  fg("5"),
		ts:   fg("4"),
		null: fg("8"),
		src:  fg("8").Italic(true),
		levels: [4]lipgloss.Style{
			fg("1").Bold(true),
			fg("3").Bold(true),
			fg("2").Bold(true),
			fg("4").Bold(true),
		},
	}
}

func (p palette) level(l slog.Level) lipgloss.Style {
	switch {
	case l >= slog.LevelError:
		return p.levels[0]
	case l >= slog.LevelWarn:
		return p.levels[1]
	case l >= slog.LevelInfo:
		return p.levels[2]
	default:
		return p.levels[3]
	}
}

// prettyBase carries what both pretty handlers share: options, output,
// preformatted attributes and the open group path.
type prettyBase struct {
	opts   slog.HandlerOptions
	mu     *sync.Mutex
	w      io.Writer
	pal    palette
	attrs  []slog.Attr
	groups []string
}

func newPrettyBase(w io.Writer, opts *slog.HandlerOptions) prettyBase {
	return prettyBase{
		opts: *opts,
		mu:   &sync.Mutex{},
		w:    w,
		pal:  newPalette(w),
	}
}

func (h prettyBase) enabled(level slog.Level) bool {
	min := slog.LevelInfo
	if h.opts.Level != nil {
		min = h.opts.Level.Level()
	}

	return level >= min
}

func (h prettyBase) withAttrs(attrs []slog.Attr) prettyBase {
	// Attributes added under an open group are nested in that group.
	for i := len(h.groups) - 1; i >= 0; i-- {
		attrs = []slog.Attr{{Key: h.groups[i], Value: slog.GroupValue(attrs...)}}
	}

	h.attrs = append(h.attrs[:len(h.attrs):len(h.attrs)], attrs...)

	return h
}

func (h prettyBase) withGroup(name string) prettyBase {
	if name != "" {
		h.groups = append(h.groups[:len(h.groups):len(h.groups)], name)
	}

	return h
}

// replace applies the ReplaceAttr hook to a top-level attribute.
func (h prettyBase) replace(a slog.Attr) slog.Attr {
	if h.opts.ReplaceAttr == nil {
		return a
	}

	return h.opts.ReplaceAttr(nil, a)
}

// recordAttrs collects the record's attributes nested under the open groups.
func (h prettyBase) recordAttrs(r slog.Record) []slog.Attr {
	attrs := make([]slog.Attr, 0, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)

		return true
	})

	for i := len(h.groups) - 1; i >= 0 && len(attrs) > 0; i-- {
		attrs = []slog.Attr{{Key: h.groups[i], Value: slog.GroupValue(attrs...)}}
	}

	return append(h.attrs[:len(h.attrs):len(h.attrs)], attrs...)
}

func (h prettyBase) source(r slog.Record) string {
	if !h.opts.AddSource || r.PC == 0 {
		return ""
	}

	src := r.Source()
	if src == nil {
		return ""
	}

	return fmt.Sprintf("%s:%d", src.File, src.Line)
}

func (h prettyBase) write(b []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := h.w.Write(b)

	return err
}

// prettyTextHandler writes one colorized line per record:
//
//	TIME LEVEL source message key=value group.key=value
type prettyTextHandler struct{ prettyBase }

func newPrettyTextHandler(w io.Writer, opts *slog.HandlerOptions) *prettyTextHandler {
	return &prettyTextHandler{newPrettyBase(w, opts)}
}

func (h *prettyTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.enabled(level)
}

func (h *prettyTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &prettyTextHandler{h.withAttrs(attrs)}
}

func (h *prettyTextHandler) WithGroup(name string) slog.Handler {
	return &prettyTextHandler{h.withGroup(name)}
}

func (h *prettyTextHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer

	sep := func() {
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
	}

	if !r.Time.IsZero() {
		if a := h.replace(slog.Time(slog.TimeKey, r.Time)); a.Key != "" {
			buf.WriteString(h.pal.ts.Render(a.Value.String()))
		}
	}

	level := h.replace(slog.Any(slog.LevelKey, r.Level))
	sep()
	buf.WriteString(h.pal.level(r.Level).Render(level.Value.String()))

	if src := h.source(r); src != "" {
		sep()
		buf.WriteString(h.pal.src.Render(src))
	}

	sep()
	buf.WriteString(r.Message)

	for _, a := range h.recordAttrs(r) {
		h.writeAttr(&buf, "", a)
	}

	buf.WriteByte('\n')

	return h.write(buf.Bytes())
}

func (h *prettyTextHandler) writeAttr(buf *bytes.Buffer, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			h.writeAttr(buf, key, ga)
		}

		return
	}

	buf.WriteByte(' ')
	buf.WriteString(h.pal.key.Render(key + "="))
	buf.WriteString(h.value(a.Value))
}

func (h *prettyTextHandler) value(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if s == "" || strings.ContainsAny(s, " \t\n\"=") {
			s = strconv.Quote(s)
		}

		return h.pal.str.Render(s)
	case slog.KindInt64, slog.KindUint64, slog.KindFloat64:
		return h.pal.num.Render(v.String())
	case slog.KindBool:
		if v.Bool() {
			return h.pal.yes.Render("true")
		}

		return h.pal.no.Render("false")
	case slog.KindDuration:
		return h.pal.dur.Render(v.Duration().String())
	case slog.KindTime:
		return h.pal.ts.Render(v.Time().Format(time.RFC3339))
	default:
		if v.Any() == nil {
			return h.pal.null.Render("<nil>")
		}

		return h.pal.str.Render(v.String())
	}
}

// prettyJSONHandler writes each record as an indented, colorized JSON object.
type prettyJSONHandler struct{ prettyBase }

func newPrettyJSONHandler(w io.Writer, opts *slog.HandlerOptions) *prettyJSONHandler {
	return &prettyJSONHandler{newPrettyBase(w, opts)}
}

func (h *prettyJSONHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.enabled(level)
}

func (h *prettyJSONHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &prettyJSONHandler{h.withAttrs(attrs)}
}

func (h *prettyJSONHandler) WithGroup(name string) slog.Handler {
	return &prettyJSONHandler{h.withGroup(name)}
}

func (h *prettyJSONHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make([]slog.Attr, 0, r.NumAttrs()+4)

	if !r.Time.IsZero() {
		if a := h.replace(slog.Time(slog.TimeKey, r.Time)); a.Key != "" {
			attrs = append(attrs, a)
		}
	}

	attrs = append(attrs, h.replace(slog.Any(slog.LevelKey, r.Level)))

	if src := h.source(r); src != "" {
		attrs = append(attrs, slog.String(slog.SourceKey, src))
	}

	attrs = append(attrs, slog.String(slog.MessageKey, r.Message))
	attrs = append(attrs, h.recordAttrs(r)...)

	var buf bytes.Buffer

	h.writeObject(&buf, attrs, 0)
	buf.WriteByte('\n')

	return h.write(buf.Bytes())
}

func (h *prettyJSONHandler) writeObject(buf *bytes.Buffer, attrs []slog.Attr, depth int) {
	indent := strings.Repeat("  ", depth+1)
	first := true

	buf.WriteString("{")

	for _, a := range attrs {
		a.Value = a.Value.Resolve()
		if a.Equal(slog.Attr{}) {
			continue
		}

		if !first {
			buf.WriteByte(',')
		}

		first = false

		buf.WriteByte('\n')
		buf.WriteString(indent)
		buf.WriteString(h.pal.key.Render(strconv.Quote(a.Key)))
		buf.WriteString(": ")

		if a.Value.Kind() == slog.KindGroup {
			h.writeObject(buf, a.Value.Group(), depth+1)

			continue
		}

		buf.WriteString(h.value(a.Value))
	}

	if !first {
		buf.WriteByte('\n')
		buf.WriteString(strings.Repeat("  ", depth))
	}

	buf.WriteString("}")
}

func (h *prettyJSONHandler) value(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return h.pal.str.Render(strconv.Quote(v.String()))
	case slog.KindInt64, slog.KindUint64, slog.KindFloat64:
		return h.pal.num.Render(v.String())
	case slog.KindBool:
		if v.Bool() {
			return h.pal.yes.Render("true")
		}

		return h.pal.no.Render("false")
	case slog.KindDuration:
		return h.pal.dur.Render(strconv.Quote(v.Duration().String()))
	case slog.KindTime:
		return h.pal.ts.Render(strconv.Quote(v.Time().Format(time.RFC3339Nano)))
	default:
		if v.Any() == nil {
			return h.pal.null.Render("null")
		}

		return h.pal.str.Render(strconv.Quote(v.String()))
	}
}
