package tui

import (
	"charm.land/bubbles/v2/key"

	"github.com/hylla/ritning/internal/config"
)

// keyMap represents key map data used by this package.
type keyMap struct {
	quit       key.Binding
	reload     key.Binding
	toggleHelp key.Binding
	moveLeft   key.Binding
	moveRight  key.Binding
	moveUp     key.Binding
	moveDown   key.Binding
	phasePrev  key.Binding
	phaseNext  key.Binding
	palette    key.Binding
	grab       key.Binding
	duplicate  key.Binding
	trash      key.Binding
	undo       key.Binding
	filter     key.Binding
	collapse   key.Binding
	blockInfo  key.Binding
	yank       key.Binding
	cancel     key.Binding

	addPhase     key.Binding
	addColumn    key.Binding
	renamePhase  key.Binding
	renameColumn key.Binding
	deleteColumn key.Binding
	deletePhase  key.Binding
}

// newKeyMap constructs key map from the configured bindings.
func newKeyMap(cfg config.KeyConfig) keyMap {
	return keyMap{
		quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveLeft:   key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "column left")),
		moveRight:  key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "column right")),
		moveUp:     key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "block up")),
		moveDown:   key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "block down")),
		phasePrev:  key.NewBinding(key.WithKeys("K", "shift+up"), key.WithHelp("K", "phase up")),
		phaseNext:  key.NewBinding(key.WithKeys("J", "shift+down"), key.WithHelp("J", "phase down")),
		palette:    binding(cfg.Palette, "p", "palette"),
		grab:       binding(cfg.Grab, " ", "grab/drop"),
		duplicate:  binding(cfg.Duplicate, "y", "duplicate drop"),
		trash:      binding(cfg.Trash, "x", "trash"),
		undo:       binding(cfg.Undo, "z", "undo"),
		filter:     binding(cfg.Filter, "f", "cycle filter"),
		collapse:   binding(cfg.Collapse, "c", "collapse phase"),
		blockInfo:  key.NewBinding(key.WithKeys("i", "enter"), key.WithHelp("i/enter", "block info")),
		yank:       key.NewBinding(key.WithKeys("Y"), key.WithHelp("Y", "yank content")),
		cancel:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),

		addPhase:     key.NewBinding(key.WithKeys("N"), key.WithHelp("N", "new phase")),
		addColumn:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new column")),
		renamePhase:  key.NewBinding(key.WithKeys("E"), key.WithHelp("E", "rename phase")),
		renameColumn: key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "rename column")),
		deleteColumn: key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "delete column")),
		deletePhase:  key.NewBinding(key.WithKeys("X"), key.WithHelp("X", "delete phase")),
	}
}

// binding builds one configurable binding with a fallback key.
func binding(configured, fallback, help string) key.Binding {
	k := configured
	if k == "" {
		k = fallback
	}
	// Bindings match on key names, so a literal space maps to "space".
	if k == " " {
		k = "space"
	}
	return key.NewBinding(key.WithKeys(k), key.WithHelp(k, help))
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.grab, k.palette, k.blockInfo, k.undo, k.filter, k.quit,
	}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.grab, k.duplicate, k.trash, k.palette, k.blockInfo, k.yank, k.undo},
		{k.moveLeft, k.moveRight, k.moveUp, k.moveDown, k.phasePrev, k.phaseNext},
		{k.addPhase, k.addColumn, k.renamePhase, k.renameColumn, k.deleteColumn, k.deletePhase},
		{k.filter, k.collapse, k.reload, k.toggleHelp, k.cancel, k.quit},
	}
}
