package repl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ardnew/hbml/lang"
	"github.com/ardnew/hbml/log"
)

// editDoneMsg is sent when the template was edited and compiles.
type editDoneMsg struct{ source string }

// editCancelledMsg is sent when the user cleared the editor content.
type editCancelledMsg struct{}

// editDeclinedMsg is sent when the user declined to re-edit after a compile
// error.
type editDeclinedMsg struct{}

// editErrorMsg is sent when the edit process fails for another reason.
type editErrorMsg struct{ err error }

const (
	templatePrompt = "➜ "
	ctrlPrompt     = " :"
)

const helpMessage = `
: Commands (press Esc to toggle mode):

  help              Print this help
  show              Show the template with line numbers
  render            Render the template again
  undo              Remove the last template line
  reset             Remove every template line
  set NAME VALUE    Bind NAME to a YAML value
  unset NAME        Remove a binding
  vars              List bindings
  ops               Show the compiled render program
  pretty            Toggle pretty output
  edit              Edit the template in $EDITOR
  clear             Clear screen
  quit              Exit REPL

Usage:
  Type a template line to append it; the template is rendered after each line
  Leading spaces indent the line under the previous one
  A line that does not compile is rejected and the template is unchanged
  Completions appear for tags after %, filters after :, statements after -,
    and bindings or functions in expressions
  Press Tab / Shift-Tab to cycle through candidates
  Press Esc to toggle between template and command modes
  Use Up/Down for history, Shift+Up/Down within the current mode only,
    Alt+Up/Down for command history
  Press Ctrl+C on empty line or Ctrl+D to exit
`

// inputMode represents the current input mode.
type inputMode int

const (
	modeTemplate inputMode = iota
	modeCtrl
)

// Styles.
var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("6")).
			Bold(true)
	ctrlPromptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("5")).
			Bold(true)
	inputStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	resultStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	hintStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	suggestionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	selectedStyle   = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("4"))
)

// Config configures a REPL session.
type Config struct {
	// Source is the initial template.
	Source   string
	Bindings map[string]any
	Pretty   bool
	Options  []lang.Option
	// CacheDir holds the history file.
	CacheDir string
	Logger   log.Logger
}

// model is the Bubble Tea model for the REPL.
type model struct {
	ctxFunc          func() context.Context
	input            textinput.Model
	session          *session
	bindings         map[string]any // same map as session.bindings
	logger           log.Logger
	history          *History
	historyIdx       int
	matches          fuzzy.Matches // current fuzzy match results
	candidates       []string      // backing candidate list
	wordStart        int           // byte offset of current word start
	wordEnd          int           // byte offset of current word end
	suggIdx          int           // selected candidate index
	tabActive        bool          // whether user is tab-cycling
	preTabText       string        // input text before tab-cycling began
	preTabCursor     int           // cursor position before tab-cycling began
	altNavActive     bool          // whether user is in Alt+Up/Down navigation
	altNavOrigMode   inputMode     // original mode before Alt navigation
	altNavOrigText   string        // original text before Alt navigation
	altNavOrigCursor int           // original cursor position before Alt navigation
	width            int           // terminal width for ellipsization
	quitting         bool
	mode             inputMode
	templateText     string
	templateCursor   int
	ctrlText         string
	ctrlCursor       int
}

// Run starts the REPL and blocks until the user quits.
func Run(ctx context.Context, cfg Config) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	logger := cfg.Logger

	s := newSession(cfg.Source, cfg.Bindings, cfg.Pretty, logger, cfg.Options...)

	if len(s.lines) > 0 {
		if _, err := s.compile(ctx, s.source()); err != nil {
			return err
		}
	}

	history := NewHistory(filepath.Join(cfg.CacheDir, baseHistory))
	if err := history.Load(); err != nil {
		logger.WarnContext(ctx, "could not load history", slog.Any("error", err))
	}

	logger.TraceContext(ctx, "repl start",
		slog.String("cache_dir", cfg.CacheDir),
		slog.Int("lines", len(s.lines)),
		slog.Int("bindings", len(s.bindings)),
		slog.Int("history", history.Len()),
	)

	p := tea.NewProgram(newModel(ctx, s, history, logger), tea.WithContext(ctx))
	_, err = p.Run()

	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}

	return err
}

const defaultWidth = 80

func newModel(ctx context.Context, s *session, history *History, logger log.Logger) model {
	ti := textinput.New()
	ti.Prompt = promptStyle.Render(templatePrompt)
	ti.Focus()
	ti.CharLimit = 1024
	ti.Width = defaultWidth

	return model{
		ctxFunc:    func() context.Context { return ctx },
		input:      ti,
		session:    s,
		bindings:   s.bindings,
		logger:     logger,
		history:    history,
		historyIdx: history.Len(),
		width:      defaultWidth,
		mode:       modeTemplate,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = msg.Width - len(templatePrompt) - 2

		return m, nil

	case editDoneMsg:
		m.session.replace(msg.source)
		m.logger.TraceContext(m.ctxFunc(), "repl edit complete",
			slog.Int("lines", len(m.session.lines)),
		)

		return m, tea.Sequence(
			tea.Println(resultStyle.Render("✔ template updated")),
			m.renderCmd(),
		)

	case editCancelledMsg:
		return m, tea.Println(hintStyle.Render("edit cancelled"))

	case editDeclinedMsg:
		m.quitting = true

		return m, tea.Quit

	case editErrorMsg:
		return m, tea.Println(errorStyle.Render("error: " + msg.err.Error()))
	}

	var cmd tea.Cmd

	m.input, cmd = m.input.Update(msg)

	return m, cmd
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.hintLine())
	b.WriteString("\n")

	return b.String()
}

// hintLine is the line under the input: history position, usage hint,
// function signature or completion candidates.
func (m model) hintLine() string {
	input := m.input.Value()

	if m.historyIdx < m.history.Len() {
		pos := lipgloss.NewStyle().Bold(true).Render(strconv.Itoa(m.historyIdx + 1))

		return hintStyle.Render(fmt.Sprintf("%s/%d", pos, m.history.Len()))
	}

	if strings.TrimSpace(input) == "" {
		if m.mode == modeCtrl {
			return hintStyle.Render("Type a command, help for a list (Esc to return)")
		}

		return hintStyle.Render(fmt.Sprintf(
			"Type a template line (%d so far) or press Esc for commands",
			len(m.session.lines),
		))
	}

	if m.mode == modeTemplate && classify(input, m.wordStart) == completeExpr {
		if call := detectFunctionCall(input, m.input.Position()); call.inCall {
			if sig, params, doc := getSignature(call.name); sig != "" {
				return renderSignatureHint(sig, params, call.argIndex, doc)
			}
		}
	}

	return renderCandidateBar(m.matches, m.suggIdx, m.tabActive, m.width)
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	m.logger.TraceContext(m.ctxFunc(), "repl keypress",
		slog.String("key", msg.String()),
		slog.Int("type", int(msg.Type)),
	)

	switch msg.Type {
	case tea.KeyCtrlC:
		if m.input.Value() == "" {
			m.quitting = true

			return m, tea.Quit
		}

		m.input.SetValue("")
		m.tabActive = false
		m.altNavActive = false
		m.historyIdx = m.history.Len()
		refreshMatches(&m, false)

		return m, nil

	case tea.KeyCtrlD:
		if m.input.Value() == "" {
			m.quitting = true

			return m, tea.Quit
		}

		return m, nil

	case tea.KeyEnter:
		m.altNavActive = false

		if !m.tabActive || len(m.matches) == 0 {
			return m.executeInput()
		}

		// Lock in the current tab candidate without executing.
		m.tabActive = false
		refreshMatches(&m, true)

		return m, nil

	case tea.KeyTab:
		return m.cycle(1), nil

	case tea.KeyShiftTab:
		return m.cycle(-1), nil

	case tea.KeyUp:
		if msg.Alt {
			return m.historyCtrl(-1), nil
		}

		m, _ = m.historyMove(-1, anyMode)

		return m, nil

	case tea.KeyDown:
		if msg.Alt {
			return m.historyCtrl(1), nil
		}

		return m.historyForward(anyMode), nil

	case tea.KeyShiftUp:
		m, _ = m.historyMove(-1, m.sameMode)

		return m, nil

	case tea.KeyShiftDown:
		return m.historyForward(m.sameMode), nil

	case tea.KeyEsc:
		if m.tabActive {
			m.tabActive = false
			m.setInput(m.preTabText, m.preTabCursor)

			return m, nil
		}

		m.altNavActive = false

		return m.toggleMode()

	case tea.KeyRunes:
		// Space accepts the candidate being cycled.
		if m.tabActive && msg.String() == " " {
			m.tabActive = false
		}

		var cmd tea.Cmd

		m.historyIdx = m.history.Len()
		m.input, cmd = m.input.Update(msg)
		refreshMatches(&m, true)

		return m, cmd
	}

	// Any other key (backspace, delete, arrows, etc.) edits without
	// auto-confirming a completion.
	var cmd tea.Cmd

	m.tabActive = false
	m.altNavActive = false
	m.historyIdx = m.history.Len()
	m.input, cmd = m.input.Update(msg)
	refreshMatches(&m, false)

	return m, cmd
}

// cycle moves the candidate selection by step, completing immediately when
// there is a single candidate.
func (m model) cycle(step int) model {
	n := len(m.matches)
	if n == 0 {
		return m
	}

	if n == 1 {
		replaceCurrentWord(&m, m.matches[0].Str)
		m.tabActive = false
		m.suggIdx = -1
		m.matches = nil

		return m
	}

	if m.tabActive {
		m.suggIdx = (m.suggIdx + step + n) % n
	} else {
		m.tabActive = true
		m.preTabText = m.input.Value()
		m.preTabCursor = m.input.Position()

		m.suggIdx = 0
		if step < 0 {
			m.suggIdx = n - 1
		}
	}

	replaceCurrentWord(&m, m.matches[m.suggIdx].Str)

	return m
}

// replaceCurrentWord replaces the current word in the input with
// replacement and moves the cursor after it.
func replaceCurrentWord(m *model, replacement string) {
	input := m.input.Value()
	cursor := m.wordStart + len(replacement)

	m.input.SetValue(input[:m.wordStart] + replacement + input[m.wordEnd:])
	m.input.SetCursor(cursor)

	m.wordEnd = cursor
}

// refreshMatches recomputes fuzzy matches for the current input. With
// autoConfirm it also accepts the sole remaining candidate once the typed
// word equals it. Deletions and cursor movement pass false so editing never
// completes unexpectedly.
func refreshMatches(m *model, autoConfirm bool) {
	m.matches, m.candidates, m.wordStart, m.wordEnd = m.computeMatches()

	if !m.tabActive {
		m.suggIdx = -1
	}

	if !autoConfirm || len(m.matches) != 1 {
		return
	}

	if m.input.Value()[m.wordStart:m.wordEnd] == m.matches[0].Str {
		m.tabActive = false
		m.suggIdx = -1
		m.matches = nil
	}
}

func (m *model) setInput(text string, cursor int) {
	m.input.SetValue(text)
	m.input.SetCursor(cursor)
	refreshMatches(m, false)
}

func (m model) executeInput() (model, tea.Cmd) {
	raw := strings.TrimRight(m.input.Value(), " \t")
	if strings.TrimSpace(raw) == "" {
		return m, nil
	}

	m.templateText, m.templateCursor = "", 0
	m.ctrlText, m.ctrlCursor = "", 0
	m.input.SetValue("")

	_, _ = m.history.Write(raw, m.mode)
	m.historyIdx = m.history.Len()

	if m.mode == modeCtrl {
		m.logger.TraceContext(m.ctxFunc(), "repl command", slog.String("input", raw))

		return m.executeCommand(strings.TrimSpace(raw))
	}

	m.logger.TraceContext(m.ctxFunc(), "repl line", slog.String("input", raw))

	echo := tea.Println(promptStyle.Render(templatePrompt) + inputStyle.Render(raw))

	out, pending, err := m.session.add(m.ctxFunc(), raw)

	// A rejected line stays in the input for correction. Otherwise the next
	// line starts at the same indentation.
	if err != nil {
		m.setInput(raw, len(raw))
	} else {
		indent := raw[:len(raw)-len(strings.TrimLeft(raw, " "))]
		m.setInput(indent, len(indent))
	}

	switch {
	case pending:
		return m, tea.Sequence(echo, tea.Println(hintStyle.Render("… attribute list continues")))
	case err != nil:
		return m, tea.Sequence(echo, tea.Println(errorStyle.Render("error: "+err.Error())))
	default:
		return m, tea.Sequence(echo, tea.Println(resultStyle.Render(out)))
	}
}

// renderCmd prints the current rendering or its error.
func (m model) renderCmd() tea.Cmd {
	out, err := m.session.render(m.ctxFunc())
	if err != nil {
		return tea.Println(errorStyle.Render("error: " + err.Error()))
	}

	return tea.Println(resultStyle.Render(out))
}

func (m model) executeCommand(input string) (model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}

	echo := tea.Println(ctrlPromptStyle.Render(ctrlPrompt) + inputStyle.Render(input))

	name, args := parts[0], parts[1:]

	m.logger.TraceContext(m.ctxFunc(), "repl exec command",
		slog.String("command", name),
		slog.Any("args", args),
	)

	if name == "q" || name == "quit" || name == "exit" {
		m.quitting = true

		return m, tea.Sequence(echo, tea.Quit)
	}

	switch name {
	case "c", "clear":
		return m, tea.ClearScreen

	case "e", "edit":
		return m, tea.Sequence(echo, m.editCmd())
	}

	out, err := m.command(name, args, input)

	switch {
	case err != nil:
		return m, tea.Sequence(echo, tea.Println(errorStyle.Render("error: "+err.Error())))
	case out == "":
		return m, echo
	default:
		return m, tea.Sequence(echo, tea.Println(out))
	}
}

// command runs a command that only prints. input is the whole command line,
// used to keep spaces in set values.
func (m model) command(name string, args []string, input string) (string, error) {
	ctx := m.ctxFunc()
	s := m.session

	switch name {
	case "h", "help":
		return helpMessage, nil

	case "show":
		if len(s.lines) == 0 {
			return "", ErrNoTemplate
		}

		return s.listing(), nil

	case "r", "render":
		out, err := s.render(ctx)

		return resultStyle.Render(out), err

	case "undo":
		if !s.undo() {
			return "", ErrNoTemplate
		}

		if len(s.lines) == 0 {
			return hintStyle.Render("template is empty"), nil
		}

		out, err := s.render(ctx)

		return resultStyle.Render(out), err

	case "reset":
		s.reset()

		return hintStyle.Render("template cleared"), nil

	case "set":
		if len(args) < 2 {
			return "", fmt.Errorf("%w: set NAME VALUE", ErrUsage)
		}

		_, rest, _ := strings.Cut(strings.TrimSpace(input), " ")
		_, value, _ := strings.Cut(strings.TrimSpace(rest), " ")

		s.set(args[0], strings.TrimSpace(value))

		return hintStyle.Render(args[0] + " = " + formatValue(s.bindings[args[0]])), nil

	case "unset":
		if len(args) != 1 {
			return "", fmt.Errorf("%w: unset NAME", ErrUsage)
		}

		if !s.unset(args[0]) {
			return hintStyle.Render(args[0] + " is not bound"), nil
		}

		return "", nil

	case "vars":
		if len(s.bindings) == 0 {
			return hintStyle.Render("no bindings"), nil
		}

		return s.vars(), nil

	case "ops":
		return s.ops(ctx)

	case "pretty":
		s.pretty = !s.pretty

		status := hintStyle.Render("pretty output " + map[bool]string{true: "on", false: "off"}[s.pretty])
		if len(s.lines) == 0 {
			return status, nil
		}

		out, err := s.render(ctx)

		return status + "\n" + resultStyle.Render(out), err

	default:
		return "", fmt.Errorf("unknown command %q (try 'help')", name)
	}
}

func (m model) editCmd() tea.Cmd {
	cmd := &editTemplateCommand{
		source:  m.session.source(),
		ctxFunc: m.ctxFunc,
		logger:  m.logger,
		compile: func(ctx context.Context, src string) error {
			_, err := m.session.compile(ctx, src)

			return err
		},
	}

	return tea.Exec(cmd, func(err error) tea.Msg {
		switch {
		case errors.Is(err, ErrEditDeclined):
			return editDeclinedMsg{}
		case err != nil:
			return editErrorMsg{err: err}
		case cmd.cancelled:
			return editCancelledMsg{}
		default:
			return editDoneMsg{source: cmd.edited}
		}
	})
}

func anyMode(HistoryEntry) bool { return true }

func (m model) sameMode(e HistoryEntry) bool { return e.Mode == m.mode }

// historyMove moves from the current history position by step to the next
// entry accepted by keep and loads it, switching modes when needed.
func (m model) historyMove(step int, keep func(HistoryEntry) bool) (model, bool) {
	for i := m.historyIdx + step; i >= 0 && i < m.history.Len(); i += step {
		entry, err := m.history.Entry(i)
		if err != nil || !keep(entry) {
			continue
		}

		m.historyIdx = i

		if m.mode != entry.Mode {
			m, _ = m.switchToMode(entry.Mode)
		}

		m.setInput(entry.Line, len(entry.Line))

		return m, true
	}

	return m, false
}

// historyForward moves forward in history, clearing the input past the
// newest entry.
func (m model) historyForward(keep func(HistoryEntry) bool) model {
	m, ok := m.historyMove(1, keep)
	if !ok && m.historyIdx < m.history.Len() {
		m.historyIdx = m.history.Len()
		m.setInput("", 0)
	}

	return m
}

// historyCtrl walks command history only. The first step saves the input
// and switches to command mode; walking off either end restores it.
func (m model) historyCtrl(step int) model {
	if !m.altNavActive {
		m.altNavActive = true
		m.altNavOrigMode = m.mode
		m.altNavOrigText = m.input.Value()
		m.altNavOrigCursor = m.input.Position()

		if m.mode != modeCtrl {
			m, _ = m.switchToMode(modeCtrl)
		}
	}

	m, ok := m.historyMove(step, func(e HistoryEntry) bool { return e.Mode == modeCtrl })
	if ok {
		return m
	}

	m.altNavActive = false

	if m.altNavOrigMode != m.mode {
		m, _ = m.switchToMode(m.altNavOrigMode)
	}

	m.historyIdx = m.history.Len()
	m.setInput(m.altNavOrigText, m.altNavOrigCursor)

	return m
}

// toggleMode switches between template and command modes.
func (m model) toggleMode() (model, tea.Cmd) {
	if m.mode == modeTemplate {
		return m.switchToMode(modeCtrl)
	}

	return m.switchToMode(modeTemplate)
}

// switchToMode switches to mode, keeping each mode's unfinished input.
func (m model) switchToMode(mode inputMode) (model, tea.Cmd) {
	if m.mode == modeTemplate {
		m.templateText, m.templateCursor = m.input.Value(), m.input.Position()
	} else {
		m.ctrlText, m.ctrlCursor = m.input.Value(), m.input.Position()
	}

	m.mode = mode

	if mode == modeTemplate {
		m.input.Prompt = promptStyle.Render(templatePrompt)
		m.setInput(m.templateText, m.templateCursor)
	} else {
		m.input.Prompt = ctrlPromptStyle.Render(ctrlPrompt)
		m.setInput(m.ctrlText, m.ctrlCursor)
	}

	return m, nil
}
