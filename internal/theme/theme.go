// Package theme holds the lipgloss styles that color record statuses, shared
// by the console and the list command.
package theme

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/Joseda-hg/clutchdesk/internal/model"
)

var toneColors = map[model.Tone]lipgloss.Color{
	model.TonePositive: lipgloss.Color("2"),
	model.ToneWarning:  lipgloss.Color("3"),
	model.ToneNegative: lipgloss.Color("1"),
}

type Theme struct {
	renderer *lipgloss.Renderer
	tones    map[model.Tone]lipgloss.Style
	plain    lipgloss.Style
}

// New detects the color support of w.
func New(w io.Writer) *Theme {
	return build(lipgloss.NewRenderer(w))
}

// ANSI always renders the eight basic colors. gocui passes these escapes
// through to the terminal it owns.
func ANSI() *Theme {
	renderer := lipgloss.NewRenderer(io.Discard)
	renderer.SetColorProfile(termenv.ANSI)
	return build(renderer)
}

func build(renderer *lipgloss.Renderer) *Theme {
	t := &Theme{
		renderer: renderer,
		tones:    make(map[model.Tone]lipgloss.Style, len(toneColors)),
		plain:    renderer.NewStyle(),
	}
	for tone, color := range toneColors {
		t.tones[tone] = renderer.NewStyle().Foreground(color)
	}
	return t
}

// StatusStyle is the style for status; neutral statuses get an unstyled one.
func (t *Theme) StatusStyle(status string) lipgloss.Style {
	if style, ok := t.tones[model.StatusTone(status)]; ok {
		return style
	}
	return t.plain
}

// Status renders status in its tone, with "-" standing in for an empty one.
func (t *Theme) Status(status string) string {
	if status == "" {
		status = "-"
	}
	if _, ok := t.tones[model.StatusTone(status)]; !ok {
		return status
	}
	return t.StatusStyle(status).Render(status)
}

// Alert renders text in the negative tone.
func (t *Theme) Alert(text string) string {
	return t.tones[model.ToneNegative].Render(text)
}
