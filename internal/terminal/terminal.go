// Package terminal is a line-oriented chat host for interactive use.
package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/hpungsan/bitcoach/internal/config"
)

var (
	coachTag = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	studentTag = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	menuStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Padding(0, 1)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))
)

// Host reads student messages one line at a time and prints coach replies.
type Host struct {
	in      *bufio.Reader
	out     io.Writer
	entries []config.Registration
	styled  bool
}

// New creates a host. Styling is applied only when out is a terminal.
func New(in io.Reader, out io.Writer, entries ...config.Registration) *Host {
	styled := false
	if f, ok := out.(*os.File); ok {
		styled = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Host{
		in:      bufio.NewReader(in),
		out:     out,
		entries: entries,
		styled:  styled,
	}
}

func (h *Host) render(style lipgloss.Style, s string) string {
	if !h.styled {
		return s
	}
	return style.Render(s)
}

// Input prompts for and returns one line without its line ending.
// A final line without a newline is returned before io.EOF.
func (h *Host) Input(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := fmt.Fprint(h.out, h.render(studentTag, "you> ")); err != nil {
		return "", err
	}
	line, err := h.in.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Write prints a coach message.
func (h *Host) Write(_ context.Context, text string) error {
	_, err := fmt.Fprintf(h.out, "%s %s\n\n", h.render(coachTag, "coach>"), text)
	return err
}

// Notice prints a dimmed status line.
func (h *Host) Notice(text string) error {
	_, err := fmt.Fprintln(h.out, h.render(dimStyle, text))
	return err
}

// ShowMenu lists the registered entry points.
func (h *Host) ShowMenu(_ context.Context) error {
	if _, err := fmt.Fprintln(h.out, h.render(menuStyle, "Menu")); err != nil {
		return err
	}
	for _, e := range h.entries {
		if _, err := fmt.Fprintf(h.out, "  [%s] %s\n", e.ID, e.Label); err != nil {
			return err
		}
	}
	return nil
}
