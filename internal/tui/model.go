package tui

import (
	"context"
	"fmt"
	"image/color"
	"strings"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/atotto/clipboard"

	"github.com/hylla/ritning/internal/app"
	"github.com/hylla/ritning/internal/config"
	"github.com/hylla/ritning/internal/domain"
	"github.com/hylla/ritning/internal/engine"
)

// Service represents service data used by this package.
type Service interface {
	Board() domain.Board
	Refresh(context.Context) (domain.Board, error)
	HandleDrop(context.Context, engine.DropEvent) (engine.Result, error)
	SetFilter(app.BoardFilter) error
	Filter() app.BoardFilter
	Departments() []string
	AddPhase(context.Context, string) (domain.Phase, error)
	RenamePhase(context.Context, int, string) error
	ToggleCollapsed(context.Context, int) error
	DeletePhase(context.Context, int) error
	AddColumn(context.Context, int, string) (domain.Column, error)
	RenameColumn(context.Context, domain.Coordinate, string) error
	DeleteColumn(context.Context, domain.Coordinate) error
	DeleteBlock(context.Context, string) error
	Undo(context.Context) (string, error)
}

// inputMode represents a selectable mode.
type inputMode int

// modeNone and related constants define package defaults.
const (
	modeNone inputMode = iota
	modePalette
	modeInput
	modeBlockInfo
	modeConfirm
)

// inputKind identifies which text-input prompt is active.
type inputKind int

const (
	inputAddPhase inputKind = iota
	inputAddColumn
	inputRenamePhase
	inputRenameColumn
)

// confirmKind identifies the structure a pending confirm would delete.
type confirmKind int

const (
	confirmBlock confirmKind = iota
	confirmColumn
	confirmPhase
)

// grabState tracks one in-progress drag gesture.
type grabState struct {
	kind        engine.DragKind
	draggedID   string
	source      domain.Coordinate
	sourceIndex int
	duplicate   bool
}

// loadedMsg carries one whole-board refresh result.
type loadedMsg struct {
	board domain.Board
	err   error
}

// droppedMsg carries one drop dispatch outcome.
type droppedMsg struct {
	result engine.Result
	err    error
}

// undoneMsg carries one undo outcome.
type undoneMsg struct {
	label string
	err   error
}

// mutatedMsg signals a completed structural edit.
type mutatedMsg struct {
	status string
	err    error
}

// BoardUpdatedMsg delivers a board loaded outside the TUI loop, typically
// from the background poller.
type BoardUpdatedMsg struct {
	Board domain.Board
}

// Model drives the board TUI. It renders phases as stacked rows of column
// boxes and turns grab/drop gestures into drop events for the service.
type Model struct {
	svc Service

	ready  bool
	width  int
	height int
	err    error

	status string

	help  help.Model
	keys  keyMap
	notes notesRenderer

	board domain.Board

	phase  int
	column int
	block  int

	mode       inputMode
	input      textinput.Model
	inputKind  inputKind
	grab       *grabState
	paletteIdx int
	confirm    confirmKind
}

// NewModel constructs a new value for this package.
func NewModel(svc Service, keys config.KeyConfig) Model {
	h := help.New()
	h.ShowAll = false
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 120
	return Model{
		svc:    svc,
		status: "loading...",
		help:   h,
		keys:   newKeyMap(keys),
		input:  input,
	}
}

// Init handles init.
func (m Model) Init() tea.Cmd {
	return m.loadData
}

// loadData loads required data for the current operation.
func (m Model) loadData() tea.Msg {
	board, err := m.svc.Refresh(context.Background())
	return loadedMsg{board: board, err: err}
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.board = msg.board
		m.status = "ready"
		m.clampCursor()
		return m, nil

	case BoardUpdatedMsg:
		m.board = msg.Board
		m.clampCursor()
		return m, nil

	case droppedMsg:
		if msg.err != nil {
			m.status = "drop failed: " + msg.err.Error()
			return m, nil
		}
		m.board = m.svc.Board()
		if msg.result.Changed {
			m.status = "dropped"
		} else if msg.result.Reason != "" {
			m.status = "drop " + msg.result.Reason
		}
		m.clampCursor()
		return m, nil

	case undoneMsg:
		if msg.err != nil {
			m.status = "undo: " + msg.err.Error()
			return m, nil
		}
		m.board = m.svc.Board()
		m.status = "undid " + msg.label
		m.clampCursor()
		return m, nil

	case mutatedMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		m.board = m.svc.Board()
		m.status = msg.status
		m.clampCursor()
		return m, nil

	case tea.KeyPressMsg:
		if m.mode != modeNone {
			return m.handleModalKey(msg)
		}
		return m.handleNormalModeKey(msg)
	}
	return m, nil
}

// handleNormalModeKey dispatches board-level key presses.
func (m Model) handleNormalModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.reload):
		return m, m.loadData

	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.moveLeft):
		m.column--
		m.clampCursor()
		return m, nil

	case key.Matches(msg, m.keys.moveRight):
		m.column++
		m.clampCursor()
		return m, nil

	case key.Matches(msg, m.keys.moveUp):
		m.block--
		m.clampCursor()
		return m, nil

	case key.Matches(msg, m.keys.moveDown):
		m.block++
		m.clampCursor()
		return m, nil

	case key.Matches(msg, m.keys.phasePrev):
		m.phase--
		m.column = 0
		m.clampCursor()
		return m, nil

	case key.Matches(msg, m.keys.phaseNext):
		m.phase++
		m.column = 0
		m.clampCursor()
		return m, nil

	case key.Matches(msg, m.keys.grab):
		return m.toggleGrab()

	case key.Matches(msg, m.keys.duplicate):
		if m.grab != nil && m.grab.kind == engine.DragBlock {
			m.grab.duplicate = !m.grab.duplicate
			if m.grab.duplicate {
				m.status = "drop will duplicate"
			} else {
				m.status = "drop will move"
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.trash):
		if m.grab != nil && m.grab.kind == engine.DragBlock {
			ev := m.dropEvent(engine.TrashID)
			m.grab = nil
			return m, m.dropCmd(ev)
		}
		if block, ok := m.selectedBlock(); ok {
			m.mode = modeConfirm
			m.confirm = confirmBlock
			m.status = "delete block " + truncate(block.Content, 24) + "? enter confirms"
		}
		return m, nil

	case key.Matches(msg, m.keys.undo):
		return m, m.undoCmd()

	case key.Matches(msg, m.keys.filter):
		m.cycleFilter()
		return m, nil

	case key.Matches(msg, m.keys.collapse):
		phase := m.phase
		return m, m.mutateCmd("phase toggled", func(ctx context.Context) error {
			return m.svc.ToggleCollapsed(ctx, phase)
		})

	case key.Matches(msg, m.keys.palette):
		m.mode = modePalette
		m.paletteIdx = 0
		return m, nil

	case key.Matches(msg, m.keys.blockInfo):
		if _, ok := m.selectedBlock(); ok {
			m.mode = modeBlockInfo
		}
		return m, nil

	case key.Matches(msg, m.keys.yank):
		if block, ok := m.selectedBlock(); ok {
			if err := clipboard.WriteAll(block.Content); err != nil {
				m.status = "yank failed: " + err.Error()
			} else {
				m.status = "yanked block content"
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.addPhase):
		return m.startInput(inputAddPhase, "phase name"), nil

	case key.Matches(msg, m.keys.addColumn):
		return m.startInput(inputAddColumn, "column name"), nil

	case key.Matches(msg, m.keys.renamePhase):
		if phase, ok := m.selectedPhase(); ok {
			next := m.startInput(inputRenamePhase, "phase name")
			next.input.SetValue(phase.Name)
			return next, nil
		}
		return m, nil

	case key.Matches(msg, m.keys.renameColumn):
		if column, ok := m.selectedColumn(); ok {
			next := m.startInput(inputRenameColumn, "column name")
			next.input.SetValue(column.Name)
			return next, nil
		}
		return m, nil

	case key.Matches(msg, m.keys.deleteColumn):
		if _, ok := m.selectedColumn(); ok {
			m.mode = modeConfirm
			m.confirm = confirmColumn
			m.status = "delete column and its blocks? enter confirms"
		}
		return m, nil

	case key.Matches(msg, m.keys.deletePhase):
		if _, ok := m.selectedPhase(); ok {
			m.mode = modeConfirm
			m.confirm = confirmPhase
			m.status = "delete phase and everything in it? enter confirms"
		}
		return m, nil

	case key.Matches(msg, m.keys.cancel):
		if m.grab != nil {
			m.grab = nil
			m.status = "grab cancelled"
		}
		return m, nil
	}
	return m, nil
}

// handleModalKey dispatches key presses for the active overlay.
func (m Model) handleModalKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modePalette:
		return m.handlePaletteKey(msg)
	case modeInput:
		return m.handleInputKey(msg)
	case modeBlockInfo:
		if key.Matches(msg, m.keys.cancel) || key.Matches(msg, m.keys.blockInfo) || key.Matches(msg, m.keys.quit) {
			m.mode = modeNone
		}
		return m, nil
	case modeConfirm:
		return m.handleConfirmKey(msg)
	}
	m.mode = modeNone
	return m, nil
}

// handlePaletteKey drives the block-type picker.
func (m Model) handlePaletteKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	types := domain.ValidBlockTypes()
	switch {
	case key.Matches(msg, m.keys.cancel), key.Matches(msg, m.keys.palette):
		m.mode = modeNone
	case key.Matches(msg, m.keys.moveUp):
		m.paletteIdx = clamp(m.paletteIdx-1, 0, len(types)-1)
	case key.Matches(msg, m.keys.moveDown):
		m.paletteIdx = clamp(m.paletteIdx+1, 0, len(types)-1)
	case msg.String() == "enter":
		m.mode = modeNone
		blockType := types[clamp(m.paletteIdx, 0, len(types)-1)]
		ev := engine.DropEvent{
			SourceID:         engine.PaletteID(blockType),
			DestinationID:    engine.CellID(m.cursorCell()),
			Kind:             engine.DragBlock,
			DestinationIndex: m.block,
		}
		return m, m.dropCmd(ev)
	}
	return m, nil
}

// handleInputKey drives the single-line name prompt.
func (m Model) handleInputKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.cancel):
		m.mode = modeNone
		m.input.Blur()
		return m, nil
	case msg.String() == "enter":
		name := strings.TrimSpace(m.input.Value())
		m.mode = modeNone
		m.input.Blur()
		if name == "" {
			m.status = "name required"
			return m, nil
		}
		return m, m.submitInput(name)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleConfirmKey resolves a pending destructive confirm.
func (m Model) handleConfirmKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.cancel) {
		m.mode = modeNone
		m.status = "cancelled"
		return m, nil
	}
	if msg.String() != "enter" {
		return m, nil
	}
	m.mode = modeNone
	switch m.confirm {
	case confirmBlock:
		block, ok := m.selectedBlock()
		if !ok {
			return m, nil
		}
		return m, m.mutateCmd("block deleted", func(ctx context.Context) error {
			return m.svc.DeleteBlock(ctx, block.ID)
		})
	case confirmColumn:
		at := m.cursorCell()
		return m, m.mutateCmd("column deleted", func(ctx context.Context) error {
			return m.svc.DeleteColumn(ctx, at)
		})
	case confirmPhase:
		phase := m.phase
		return m, m.mutateCmd("phase deleted", func(ctx context.Context) error {
			return m.svc.DeletePhase(ctx, phase)
		})
	}
	return m, nil
}

// startInput opens the name prompt for one structural edit.
func (m Model) startInput(kind inputKind, placeholder string) Model {
	m.mode = modeInput
	m.inputKind = kind
	m.input.SetValue("")
	m.input.Placeholder = placeholder
	m.input.Focus()
	return m
}

// submitInput routes the entered name to the matching service call.
func (m Model) submitInput(name string) tea.Cmd {
	phase := m.phase
	at := m.cursorCell()
	switch m.inputKind {
	case inputAddPhase:
		return m.mutateCmd("phase added", func(ctx context.Context) error {
			_, err := m.svc.AddPhase(ctx, name)
			return err
		})
	case inputAddColumn:
		return m.mutateCmd("column added", func(ctx context.Context) error {
			_, err := m.svc.AddColumn(ctx, phase, name)
			return err
		})
	case inputRenamePhase:
		return m.mutateCmd("phase renamed", func(ctx context.Context) error {
			return m.svc.RenamePhase(ctx, phase, name)
		})
	case inputRenameColumn:
		return m.mutateCmd("column renamed", func(ctx context.Context) error {
			return m.svc.RenameColumn(ctx, at, name)
		})
	}
	return nil
}

// toggleGrab starts a gesture on the selection or drops the grabbed item at
// the cursor.
func (m Model) toggleGrab() (tea.Model, tea.Cmd) {
	if m.grab == nil {
		if block, ok := m.selectedBlock(); ok {
			m.grab = &grabState{
				kind:        engine.DragBlock,
				draggedID:   block.ID,
				source:      m.cursorCell(),
				sourceIndex: m.block,
			}
			m.status = "grabbed block, move and press grab again"
			return m, nil
		}
		if column, ok := m.selectedColumn(); ok {
			m.grab = &grabState{
				kind:        engine.DragColumn,
				draggedID:   column.ID,
				source:      m.cursorCell(),
				sourceIndex: m.column,
			}
			m.status = "grabbed column, move and press grab again"
		}
		return m, nil
	}

	ev := m.dropEvent(engine.CellID(m.cursorCell()))
	m.grab = nil
	return m, m.dropCmd(ev)
}

// dropEvent assembles the drop for the current grab and destination id.
func (m Model) dropEvent(destinationID string) engine.DropEvent {
	g := m.grab
	ev := engine.DropEvent{
		SourceID:      engine.CellID(g.source),
		DestinationID: destinationID,
		DraggedID:     g.draggedID,
		Kind:          g.kind,
		SourceIndex:   g.sourceIndex,
		Duplicate:     g.duplicate,
	}
	if g.kind == engine.DragColumn {
		ev.DestinationIndex = m.column
	} else {
		ev.DestinationIndex = m.block
	}
	return ev
}

// dropCmd dispatches one drop through the service.
func (m Model) dropCmd(ev engine.DropEvent) tea.Cmd {
	return func() tea.Msg {
		res, err := m.svc.HandleDrop(context.Background(), ev)
		return droppedMsg{result: res, err: err}
	}
}

// undoCmd pops the most recent undo entry.
func (m Model) undoCmd() tea.Cmd {
	return func() tea.Msg {
		label, err := m.svc.Undo(context.Background())
		return undoneMsg{label: label, err: err}
	}
}

// mutateCmd runs one structural edit and reports its status.
func (m Model) mutateCmd(status string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(context.Background()); err != nil {
			return mutatedMsg{err: err}
		}
		return mutatedMsg{status: status}
	}
}

// cycleFilter advances the department filter: none, each department, none.
func (m *Model) cycleFilter() {
	departments := m.svc.Departments()
	if len(departments) == 0 {
		m.status = "no departments configured"
		return
	}
	current := m.svc.Filter().Department
	next := ""
	if current == "" {
		next = departments[0]
	} else {
		for i, dep := range departments {
			if dep == current && i+1 < len(departments) {
				next = departments[i+1]
				break
			}
		}
	}
	if err := m.svc.SetFilter(app.BoardFilter{Department: next}); err != nil {
		m.status = "filter: " + err.Error()
		return
	}
	if next == "" {
		m.status = "filter cleared"
	} else {
		m.status = "filter: " + next
	}
	m.clampCursor()
}

// cursorCell returns the coordinate under the cursor.
func (m Model) cursorCell() domain.Coordinate {
	return domain.Coordinate{Phase: m.phase, Column: m.column}
}

// selectedPhase returns the phase under the cursor.
func (m Model) selectedPhase() (domain.Phase, bool) {
	if m.phase < 0 || m.phase >= len(m.board.Phases) {
		return domain.Phase{}, false
	}
	return m.board.Phases[m.phase], true
}

// selectedColumn returns the column under the cursor.
func (m Model) selectedColumn() (domain.Column, bool) {
	return m.board.ColumnAt(m.cursorCell())
}

// selectedBlock returns the filter-visible block under the cursor.
func (m Model) selectedBlock() (domain.Block, bool) {
	blocks := m.visibleBlocksAt(m.cursorCell())
	if m.block < 0 || m.block >= len(blocks) {
		return domain.Block{}, false
	}
	return blocks[m.block], true
}

// visibleBlocksAt lists the cell's blocks that pass the active filter, in
// sequence order.
func (m Model) visibleBlocksAt(coord domain.Coordinate) []domain.Block {
	filter := m.svc.Filter()
	all := m.board.BlocksAt(coord)
	out := make([]domain.Block, 0, len(all))
	for _, b := range all {
		if filter.Matches(b) {
			out = append(out, b)
		}
	}
	return out
}

// clampCursor keeps the cursor inside the board after any reshape.
func (m *Model) clampCursor() {
	if len(m.board.Phases) == 0 {
		m.phase, m.column, m.block = 0, 0, 0
		return
	}
	m.phase = clamp(m.phase, 0, len(m.board.Phases)-1)
	columns := m.board.Phases[m.phase].Columns
	if len(columns) == 0 {
		m.column, m.block = 0, 0
		return
	}
	m.column = clamp(m.column, 0, len(columns)-1)
	visible := m.visibleBlocksAt(m.cursorCell())
	if len(visible) == 0 {
		m.block = 0
		return
	}
	m.block = clamp(m.block, 0, len(visible)-1)
}

// modeLabel names the active mode for the header.
func (m Model) modeLabel() string {
	if m.grab != nil {
		if m.grab.duplicate {
			return "grab+dup"
		}
		return "grab"
	}
	switch m.mode {
	case modePalette:
		return "palette"
	case modeInput:
		return "input"
	case modeBlockInfo:
		return "info"
	case modeConfirm:
		return "confirm"
	}
	return "normal"
}

// View renders the board.
func (m Model) View() tea.View {
	v := tea.NewView(m.viewContent())
	v.AltScreen = true
	return v
}

// viewContent renders the full frame as plain text.
func (m Model) viewContent() string {
	if m.err != nil {
		return "error: " + m.err.Error() + "\n\npress r to retry • q quit\n"
	}
	if !m.ready {
		return "loading..."
	}

	accent := lipgloss.Color("62")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle := lipgloss.NewStyle().Foreground(dim)

	header := titleStyle.Render("ritning")
	header += statusStyle.Render("  [" + m.modeLabel() + "]")
	if dep := m.svc.Filter().Department; dep != "" {
		header += statusStyle.Render("  filter: " + dep)
	}

	sections := []string{header, ""}
	for phaseIdx, phase := range m.board.Phases {
		sections = append(sections, m.renderPhase(phaseIdx, phase, accent, muted, dim))
	}
	if len(m.board.Phases) == 0 {
		sections = append(sections, "No phases yet. Press N to add one.")
	}
	if strings.TrimSpace(m.status) != "" && m.status != "ready" {
		sections = append(sections, "", statusStyle.Render(m.status))
	}
	content := strings.Join(sections, "\n")

	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))

	if m.height > 0 {
		helpHeight := lipgloss.Height(helpLine)
		content = fitLines(content, max(0, m.height-helpHeight))
	}
	fullContent := content + "\n" + helpLine

	if overlay := m.renderOverlay(accent, muted, dim); overlay != "" {
		overlayHeight := lipgloss.Height(fullContent)
		if m.height > 0 {
			overlayHeight = m.height
		}
		fullContent = overlayOnContent(fullContent, overlay, max(1, m.width), max(1, overlayHeight))
	}
	return fullContent
}

// renderPhase renders one phase row: a header plus its column boxes.
func (m Model) renderPhase(phaseIdx int, phase domain.Phase, accent, muted, dim color.Color) string {
	phaseTitle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	if phaseIdx != m.phase {
		phaseTitle = lipgloss.NewStyle().Bold(true).Foreground(muted)
	}

	blockCount := 0
	for colIdx := range phase.Columns {
		blockCount += len(m.board.BlocksAt(domain.Coordinate{Phase: phaseIdx, Column: colIdx}))
	}
	header := phaseTitle.Render(phase.Name)
	if phase.Collapsed {
		header += lipgloss.NewStyle().Foreground(dim).Render(
			fmt.Sprintf("  ▸ %d columns · %d blocks", len(phase.Columns), blockCount))
		return header
	}

	colWidth := m.columnWidth(len(phase.Columns))
	baseColStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dim).
		Padding(0, 1).
		MarginRight(1).
		Width(colWidth)
	selColStyle := baseColStyle.BorderForeground(accent)

	columnViews := make([]string, 0, len(phase.Columns))
	for colIdx, column := range phase.Columns {
		selected := phaseIdx == m.phase && colIdx == m.column
		style := baseColStyle
		if selected {
			style = selColStyle
		}
		columnViews = append(columnViews, style.Render(
			m.renderColumn(domain.Coordinate{Phase: phaseIdx, Column: colIdx}, column, selected, accent, muted, colWidth)))
	}
	if len(columnViews) == 0 {
		columnViews = append(columnViews, lipgloss.NewStyle().Foreground(dim).Render("(no columns)"))
	}
	return header + "\n" + lipgloss.JoinHorizontal(lipgloss.Top, columnViews...)
}

// renderColumn renders one column box body.
func (m Model) renderColumn(coord domain.Coordinate, column domain.Column, selected bool, accent, muted color.Color, colWidth int) string {
	colTitle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	itemStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	subStyle := lipgloss.NewStyle().Foreground(muted)
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	grabbedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)

	blocks := m.visibleBlocksAt(coord)
	lines := []string{colTitle.Render(fmt.Sprintf("%s (%d)", column.Name, len(blocks)))}
	if len(blocks) == 0 {
		lines = append(lines, subStyle.Render("(empty)"))
	}
	for blockIdx, block := range blocks {
		marker := "  "
		if selected && blockIdx == m.block {
			marker = "│ "
		}
		label := marker + truncate(block.Content, max(1, colWidth-6))
		style := itemStyle
		switch {
		case m.grab != nil && m.grab.draggedID == block.ID:
			style = grabbedStyle
			label = marker + "▒ " + truncate(block.Content, max(1, colWidth-8))
		case selected && blockIdx == m.block:
			style = selectedStyle
		}
		lines = append(lines, style.Render(label))

		sub := string(block.Type)
		if block.Department != "" {
			sub += " · " + block.Department
		}
		if block.Flagged {
			sub += " ⚑"
		}
		if len(block.Emoji) > 0 {
			sub += " " + strings.Join(block.Emoji, "")
		}
		lines = append(lines, subStyle.Render("  "+truncate(sub, max(1, colWidth-6))))
	}
	return strings.Join(lines, "\n")
}

// renderOverlay renders the active modal, if any.
func (m Model) renderOverlay(accent, muted, _ color.Color) string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(1, 2)
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	mutedStyle := lipgloss.NewStyle().Foreground(muted)

	switch m.mode {
	case modePalette:
		lines := []string{titleStyle.Render("Palette"), ""}
		for i, blockType := range domain.ValidBlockTypes() {
			prefix := "  "
			if i == m.paletteIdx {
				prefix = "│ "
			}
			lines = append(lines, prefix+string(blockType))
		}
		lines = append(lines, "", mutedStyle.Render("enter drops into the selected cell • esc cancels"))
		return boxStyle.Render(strings.Join(lines, "\n"))

	case modeInput:
		return boxStyle.Render(titleStyle.Render("Name") + "\n\n" + m.input.View())

	case modeBlockInfo:
		block, ok := m.selectedBlock()
		if !ok {
			return ""
		}
		nr := m.notes
		lines := []string{
			titleStyle.Render(truncate(block.Content, 60)),
			mutedStyle.Render(string(block.Type) + " · " + block.ID),
		}
		if block.Department != "" {
			lines = append(lines, mutedStyle.Render("department: "+block.Department))
		}
		if notes := nr.render(block.Notes, m.width/2); notes != "" {
			lines = append(lines, "", notes)
		}
		for _, comment := range block.Comments {
			lines = append(lines, "", mutedStyle.Render(comment.Author+": "+comment.Body))
		}
		return boxStyle.Render(strings.Join(lines, "\n"))

	case modeConfirm:
		return boxStyle.Render(titleStyle.Render("Confirm") + "\n\n" + m.status + "\n\n" + mutedStyle.Render("enter confirms • esc cancels"))
	}
	return ""
}

// columnWidth sizes column boxes so one phase row fits the terminal.
func (m Model) columnWidth(columns int) int {
	if columns <= 0 {
		columns = 1
	}
	width := (m.width / columns) - 3
	return clamp(width, 18, 44)
}

// clamp bounds v to the inclusive range.
func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// fitLines fits lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		padding := make([]string, maxLines-len(lines))
		lines = append(lines, padding...)
	}
	return strings.Join(lines, "\n")
}

// overlayOnContent overlays on content.
func overlayOnContent(base, overlay string, width, height int) string {
	if width <= 0 || height <= 0 {
		if strings.TrimSpace(overlay) == "" {
			return base
		}
		return overlay + "\n\n" + base
	}

	base = fitLines(base, height)
	canvas := lipgloss.NewCanvas(width, height)
	baseLayer := lipgloss.NewLayer(base).X(0).Y(0).Z(0)
	centeredOverlay := lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		overlay,
	)
	overlayLayer := lipgloss.NewLayer(centeredOverlay).X(0).Y(0).Z(10)

	canvas.Compose(baseLayer)
	canvas.Compose(overlayLayer)
	return canvas.Render()
}

// truncate truncates the requested operation.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	if max <= 1 {
		return string(rs[:max])
	}
	return string(rs[:max-1]) + "…"
}
