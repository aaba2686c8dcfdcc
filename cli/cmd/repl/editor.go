package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/ardnew/hbml/log"
)

const defaultEditor = "vi"

// editTemplateCommand implements [tea.ExecCommand]. It writes the template
// to a temporary file, opens the user's editor and compiles the result. On
// a compile error the user is asked to edit again; declining ends the REPL.
type editTemplateCommand struct {
	source  string
	compile func(context.Context, string) error
	ctxFunc func() context.Context
	logger  log.Logger

	edited    string
	cancelled bool

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func (c *editTemplateCommand) SetStdin(r io.Reader)  { c.stdin = r }
func (c *editTemplateCommand) SetStdout(w io.Writer) { c.stdout = w }
func (c *editTemplateCommand) SetStderr(w io.Writer) { c.stderr = w }

// Run executes the edit-compile-retry loop. It returns [ErrEditDeclined] if
// the user refuses to fix a template that does not compile.
func (c *editTemplateCommand) Run() error {
	ctx := c.ctxFunc()

	f, err := os.CreateTemp("", "hbml-repl-*.hbml")
	if err != nil {
		return err
	}

	path := f.Name()
	defer os.Remove(path)

	if err := f.Close(); err != nil {
		return err
	}

	content := c.source
	prompt := bufio.NewScanner(c.stdin)

	for {
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			return err
		}

		if err := runEditor(ctx, c.stdin, c.stdout, c.stderr, path); err != nil {
			return err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		content = string(data)

		if strings.TrimSpace(content) == "" {
			c.cancelled = true

			return nil
		}

		compileErr := c.compile(ctx, content)

		c.logger.TraceContext(ctx, "editor compile attempt",
			slog.Int("content_length", len(content)),
			slog.Bool("success", compileErr == nil),
		)

		if compileErr == nil {
			c.edited = content

			return nil
		}

		fmt.Fprintf(c.stderr, "\nCompile error: %s\n", compileErr)
		fmt.Fprint(c.stdout, "Re-edit? [Y/n] ")

		if !prompt.Scan() {
			return ErrEditDeclined
		}

		switch strings.ToLower(strings.TrimSpace(prompt.Text())) {
		case "n", "no":
			return ErrEditDeclined
		}
	}
}

// runEditor runs $EDITOR (or vi) on path.
func runEditor(
	ctx context.Context,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
	path string,
) error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = defaultEditor
	}

	args := strings.Fields(editor)

	cmd := exec.CommandContext(ctx, args[0], append(args[1:], path)...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	return cmd.Run()
}

// splitLines splits template source into the REPL's line buffer.
func splitLines(src string) []string {
	src = strings.TrimRight(src, "\n")
	if src == "" {
		return nil
	}

	return strings.Split(src, "\n")
}
