package tui

import (
	"strings"
	"testing"
)

func TestNotesRendererEmptyInput(t *testing.T) {
	var r notesRenderer
	if got := r.render("  \n ", 80); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}

func TestNotesRendererClampsNarrowWidths(t *testing.T) {
	var r notesRenderer
	out := r.render("# Escalation path", 5)
	if !strings.Contains(out, "Escalation path") {
		t.Fatalf("rendered output missing heading text: %q", out)
	}
	if r.wrap != notesMinWrap {
		t.Fatalf("wrap = %d, want %d", r.wrap, notesMinWrap)
	}
}

func TestNotesRendererRebuildsOnWidthChange(t *testing.T) {
	var r notesRenderer
	r.render("first pass", 60)
	inner := r.inner
	if inner == nil {
		t.Fatal("renderer not built")
	}

	r.render("same width", 60)
	if r.inner != inner {
		t.Fatal("renderer rebuilt without a width change")
	}

	r.render("wider", 90)
	if r.inner == inner {
		t.Fatal("renderer kept across a width change")
	}
}
