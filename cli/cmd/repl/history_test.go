package repl

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func historyEntries(t *testing.T, h *History) []HistoryEntry {
	t.Helper()

	var out []HistoryEntry

	for i := range h.Len() {
		e, err := h.Entry(i)
		if err != nil {
			t.Fatalf("Entry(%d) error = %v", i, err)
		}

		out = append(out, e)
	}

	return out
}

func TestHistory_WriteLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), baseHistory)

	h := NewHistory(path)
	if err := h.Load(); err != nil {
		t.Fatalf("Load() on missing file error = %v", err)
	}

	for _, e := range []HistoryEntry{
		{"%ul", modeTemplate},
		{"  %li a", modeTemplate},
		{"vars", modeCtrl},
		{"vars", modeCtrl},    // repeat of the last entry
		{"   ", modeTemplate}, // blank
		{"%ul", modeCtrl},     // same text, other mode
	} {
		if _, err := h.Write(e.Line, e.Mode); err != nil {
			t.Fatalf("Write(%q) error = %v", e.Line, err)
		}
	}

	want := []HistoryEntry{
		{"%ul", modeTemplate},
		{"  %li a", modeTemplate},
		{"vars", modeCtrl},
		{"%ul", modeCtrl},
	}

	if diff := cmp.Diff(want, historyEntries(t, h)); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if got, wantFile := string(data), "T:%ul\nT:  %li a\nC:vars\nC:%ul\n"; got != wantFile {
		t.Errorf("file = %q, want %q", got, wantFile)
	}

	reloaded := NewHistory(path)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if diff := cmp.Diff(want, historyEntries(t, reloaded)); diff != "" {
		t.Errorf("reloaded entries mismatch (-want +got):\n%s", diff)
	}
}

func TestHistory_MovesDuplicate(t *testing.T) {
	path := filepath.Join(t.TempDir(), baseHistory)
	h := NewHistory(path)

	for _, line := range []string{"%p a", "%p b", "%p a"} {
		if _, err := h.Write(line, modeTemplate); err != nil {
			t.Fatalf("Write(%q) error = %v", line, err)
		}
	}

	want := []HistoryEntry{{"%p b", modeTemplate}, {"%p a", modeTemplate}}
	if diff := cmp.Diff(want, historyEntries(t, h)); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if got := string(data); got != "T:%p b\nT:%p a\n" {
		t.Errorf("file = %q after rewrite", got)
	}
}

func TestHistory_LoadUnprefixed(t *testing.T) {
	path := filepath.Join(t.TempDir(), baseHistory)
	if err := os.WriteFile(path, []byte("%div\n\nC:quit\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	h := NewHistory(path)
	if err := h.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := []HistoryEntry{{"%div", modeTemplate}, {"quit", modeCtrl}}
	if diff := cmp.Diff(want, historyEntries(t, h)); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestHistory_EntryOutOfBounds(t *testing.T) {
	h := NewHistory(filepath.Join(t.TempDir(), baseHistory))

	for _, i := range []int{-1, 0, 1} {
		if _, err := h.Entry(i); !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("Entry(%d) error = %v, want %v", i, err, ErrOutOfBounds)
		}
	}
}
