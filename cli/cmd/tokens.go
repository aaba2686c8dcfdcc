package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"github.com/ardnew/hbml/lang"
)

// Tokens prints the token stream of a template, one token per line.
type Tokens struct {
	Template `embed:""`
}

// tokenStyles colours token columns. Colours are dropped when the output is
// not a terminal.
type tokenStyles struct {
	pos, mark, flag, text, layout lipgloss.Style
}

func newTokenStyles(r *lipgloss.Renderer) tokenStyles {
	return tokenStyles{
		pos:    r.NewStyle().Foreground(lipgloss.Color("8")).Width(8),
		mark:   r.NewStyle().Foreground(lipgloss.Color("5")).Bold(true),
		flag:   r.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
		text:   r.NewStyle().Foreground(lipgloss.Color("2")),
		layout: r.NewStyle().Foreground(lipgloss.Color("6")),
	}
}

func (s tokenStyles) kind(k lang.Kind) lipgloss.Style {
	switch {
	case k.IsMark():
		return s.mark
	case k.IsFlag():
		return s.flag
	case k == lang.Newline || k == lang.Indent || k == lang.Outdent || k == lang.EOF:
		return s.layout
	default:
		return lipgloss.NewStyle()
	}
}

// Run executes the tokens command.
func (t *Tokens) Run(ctx context.Context) error {
	src, err := t.read()
	if err != nil {
		return err
	}

	w := stdout(ctx)
	styles := newTokenStyles(lipgloss.NewRenderer(w))

	for tok, err := range lang.Tokens(src, t.options()...) {
		if err != nil {
			return err
		}

		pos := "-"
		if tok.Pos.IsValid() {
			pos = tok.Pos.String()
		}

		line := styles.pos.Render(pos) + styles.kind(tok.Kind).Render(tok.Kind.String())

		switch tok.Kind {
		case lang.Keyword, lang.StringLiteral, lang.ExprText, lang.PlainText, lang.RawText:
			line += " " + styles.text.Render(strconv.Quote(tok.Text))
		}

		if _, err := fmt.Fprintln(w, line); err != nil {
			return ErrWriteOutput.Wrap(err)
		}
	}

	return nil
}
