package tui

import (
	"testing"

	"github.com/hylla/ritning/internal/config"
)

// TestBindingFallback verifies fallback keys apply when config is blank.
func TestBindingFallback(t *testing.T) {
	b := binding("", "x", "trash")
	keys := b.Keys()
	if len(keys) != 1 || keys[0] != "x" {
		t.Fatalf("unexpected fallback keys %#v", keys)
	}
	if b.Help().Key != "x" || b.Help().Desc != "trash" {
		t.Fatalf("unexpected fallback help %#v", b.Help())
	}
}

// TestBindingSpaceAlias verifies a literal space maps to the "space" key name.
func TestBindingSpaceAlias(t *testing.T) {
	b := binding(" ", "g", "grab")
	keys := b.Keys()
	if len(keys) != 1 || keys[0] != "space" {
		t.Fatalf("unexpected space keys %#v", keys)
	}
	if b.Help().Key != "space" {
		t.Fatalf("unexpected space help %q", b.Help().Key)
	}
}

// TestKeyMapAppliesConfig verifies configured overrides replace defaults.
func TestKeyMapAppliesConfig(t *testing.T) {
	k := newKeyMap(config.KeyConfig{
		Palette: ";",
		Grab:    "g",
		Trash:   "d",
		Undo:    "u",
	})

	assertKeys := func(name string, got []string, expected string) {
		t.Helper()
		if len(got) != 1 || got[0] != expected {
			t.Fatalf("%s keys = %#v, want [%s]", name, got, expected)
		}
	}
	assertKeys("palette", k.palette.Keys(), ";")
	assertKeys("grab", k.grab.Keys(), "g")
	assertKeys("trash", k.trash.Keys(), "d")
	assertKeys("undo", k.undo.Keys(), "u")

	// Unconfigured bindings keep their fallbacks.
	assertKeys("duplicate", k.duplicate.Keys(), "y")
	assertKeys("filter", k.filter.Keys(), "f")
}

// TestHelpGroupsAreNonEmpty verifies the help surface stays populated.
func TestHelpGroupsAreNonEmpty(t *testing.T) {
	k := newKeyMap(config.KeyConfig{})
	if len(k.ShortHelp()) == 0 {
		t.Fatal("short help is empty")
	}
	for i, group := range k.FullHelp() {
		if len(group) == 0 {
			t.Fatalf("full help group %d is empty", i)
		}
	}
}
