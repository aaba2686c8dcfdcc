package lang

import "strings"

// line is one physical line of template source, without its terminator.
type line struct {
	text string
	no   int
}

// blank reports whether the line holds only whitespace.
func (l line) blank() bool { return strings.TrimSpace(l.text) == "" }

// source yields the physical lines of a template in order.
type source struct {
	lines []string
	next  int
}

func newSource(src string) *source {
	src = strings.ReplaceAll(src, "\r\n", "\n")

	lines := strings.Split(src, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	return &source{lines: lines}
}

func (s *source) read() (line, bool) {
	if s.next >= len(s.lines) {
		return line{no: len(s.lines) + 1}, false
	}

	s.next++

	return line{text: s.lines[s.next-1], no: s.next}, true
}

// unread pushes back the most recently read line.
func (s *source) unread() {
	if s.next > 0 {
		s.next--
	}
}

// leading returns the number of leading space and tab bytes in text.
func leading(text string) int {
	return len(text) - len(strings.TrimLeft(text, " \t"))
}
