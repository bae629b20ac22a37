// Package render turns assistant markdown into terminal output.
package render

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Styles accepted by New.
const (
	StyleAuto  = "auto"
	StyleDark  = "dark"
	StyleLight = "light"
	StylePlain = "notty"
)

// DefaultWidth is the word-wrap column when none is given.
const DefaultWidth = 80

// Renderer renders markdown. A Renderer whose glamour setup failed still
// works and returns its input unchanged.
type Renderer struct {
	term *glamour.TermRenderer
}

// New builds a renderer for the given style and wrap width.
func New(style string, width int) (*Renderer, error) {
	if width <= 0 {
		width = DefaultWidth
	}

	var styleOpt glamour.TermRendererOption
	switch style {
	case "", StyleAuto:
		styleOpt = glamour.WithAutoStyle()
	default:
		styleOpt = glamour.WithStandardStyle(style)
	}

	term, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return &Renderer{}, err
	}
	return &Renderer{term: term}, nil
}

// Render returns the formatted markdown, or the raw text if formatting
// fails. It never returns an error so partial or malformed replies still
// reach the screen.
func (r *Renderer) Render(markdown string) string {
	if r == nil || r.term == nil || strings.TrimSpace(markdown) == "" {
		return markdown
	}
	out, err := r.term.Render(markdown)
	if err != nil {
		return markdown
	}
	return out
}
