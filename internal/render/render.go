package render

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/polychat/internal/models"
)

// Markdown renders markdown content for terminal display.
func Markdown(content string, opts Options) (string, error) {
	renderer, err := globalPool.get(opts)
	if err != nil {
		return "", err
	}
	defer globalPool.put(opts, renderer)

	return renderer.Render(content)
}

// Line renders one revealed reply line. Emphasized lines are bold in the
// theme's primary color.
func Line(l models.Line) string {
	if !l.Emphasis {
		return l.Text
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(GetTUITheme().Primary).
		Render(l.Text)
}

// Lines renders revealed lines joined by newlines.
func Lines(lines []models.Line) string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = Line(l)
	}
	return strings.Join(out, "\n")
}
