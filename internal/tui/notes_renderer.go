package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Block notes are wrapped no tighter than this even in narrow terminals.
const notesMinWrap = 24

// notesRenderer styles block notes markdown for the info overlay. The
// underlying glamour renderer is tied to one wrap width, so it is rebuilt
// when the overlay width changes (in practice: a terminal resize).
type notesRenderer struct {
	wrap  int
	inner *glamour.TermRenderer
}

// render returns the styled notes, or the raw text when styling fails. The
// overlay must never blank out over a rendering problem.
func (r *notesRenderer) render(notes string, width int) string {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return ""
	}
	if err := r.ensure(max(width, notesMinWrap)); err != nil {
		return notes
	}
	styled, err := r.inner.Render(notes)
	if err != nil {
		return notes
	}
	return strings.TrimRight(styled, "\n")
}

func (r *notesRenderer) ensure(wrap int) error {
	if r.inner != nil && r.wrap == wrap {
		return nil
	}
	inner, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return err
	}
	r.wrap = wrap
	r.inner = inner
	return nil
}
