package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hylla/ritning/internal/domain"
)

// DragKind identifies what a drag gesture carried.
type DragKind string

const (
	DragColumn DragKind = "COLUMN"
	DragBlock  DragKind = "BLOCK"
)

// Drop-skip reasons reported when a dispatch changes nothing.
const (
	ReasonCancelled = "cancelled"
	ReasonSettling  = "settling"
)

// DropEvent is one completed drag gesture. Source and destination ids encode
// either a cell coordinate or a palette/trash sentinel; an empty destination
// means the drop was cancelled.
type DropEvent struct {
	SourceID         string
	DestinationID    string
	DraggedID        string
	Kind             DragKind
	SourceIndex      int
	DestinationIndex int
	Duplicate        bool
}

// targetKind classifies a parsed drop target.
type targetKind int

const (
	targetCell targetKind = iota
	targetPalette
	targetTrash
)

// target is a decoded source or destination id.
type target struct {
	kind      targetKind
	coord     domain.Coordinate
	blockType domain.BlockType
}

// CellID encodes a coordinate as a drop-target id.
func CellID(coord domain.Coordinate) string {
	return fmt.Sprintf("p%d:c%d", coord.Phase, coord.Column)
}

// PaletteID encodes a palette entry for one block type as a drag-source id.
func PaletteID(blockType domain.BlockType) string {
	return "palette:" + string(blockType)
}

// TrashID is the sentinel destination that deletes the dragged block.
const TrashID = "trash"

// parseTarget decodes a source/destination id. A false return marks the id
// as unresolvable, which callers treat as a cancelled drop.
func parseTarget(id string) (target, bool) {
	id = strings.TrimSpace(id)
	switch {
	case id == "":
		return target{}, false
	case id == TrashID:
		return target{kind: targetTrash}, true
	case id == "palette":
		return target{kind: targetPalette}, true
	case strings.HasPrefix(id, "palette:"):
		blockType := domain.BlockType(strings.TrimPrefix(id, "palette:"))
		if !blockType.Valid() {
			return target{}, false
		}
		return target{kind: targetPalette, blockType: blockType}, true
	}

	phasePart, colPart, ok := strings.Cut(id, ":")
	if !ok || !strings.HasPrefix(phasePart, "p") || !strings.HasPrefix(colPart, "c") {
		return target{}, false
	}
	phase, err := strconv.Atoi(strings.TrimPrefix(phasePart, "p"))
	if err != nil {
		return target{}, false
	}
	col, err := strconv.Atoi(strings.TrimPrefix(colPart, "c"))
	if err != nil {
		return target{}, false
	}
	if phase < 0 || col < 0 {
		return target{}, false
	}
	return target{kind: targetCell, coord: domain.Coordinate{Phase: phase, Column: col}}, true
}

// IDGenerator returns unique identifiers for minted blocks.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Result carries one dispatch outcome. Changed is false for cancelled,
// stale, or gated drops; Phases/Blocks are only populated when Changed.
type Result struct {
	Phases  []domain.Phase
	Blocks  []domain.Block
	Changed bool
	Reason  string
}

// Router classifies completed drag gestures and executes them through the
// reindexer and insertion locator. It holds no board state; the settle
// window is the only cross-call state and exists so a rendering host cannot
// re-enter mid-animation. A non-UI host passes SettleWindow 0.
type Router struct {
	idGen       IDGenerator
	clock       Clock
	filter      Filter
	window      time.Duration
	settleUntil time.Time
}

// NewRouter constructs a new value for this package. idGen must be non-nil:
// palette and duplicate drops mint block ids through it, and a missing
// generator is a construction bug, not a runtime condition.
func NewRouter(idGen IDGenerator, clock Clock, settleWindow time.Duration) *Router {
	if idGen == nil {
		panic("engine: NewRouter requires an id generator")
	}
	if clock == nil {
		clock = time.Now
	}
	if settleWindow < 0 {
		settleWindow = 0
	}
	return &Router{idGen: idGen, clock: clock, window: settleWindow}
}

// SetFilter installs the display filter applied before display-relative drop
// indices are interpreted.
func (r *Router) SetFilter(filter Filter) {
	r.filter = filter
}

// Settling reports whether the router is inside the post-drop settle window.
func (r *Router) Settling() bool {
	return r.clock().Before(r.settleUntil)
}

// skip returns an unchanged result for a drop that must not mutate anything.
func skip(reason string) Result {
	return Result{Reason: reason}
}

// Dispatch executes one completed drag gesture against the given board and
// returns replacement collections. The input board is never mutated; a
// cancelled or unresolvable drop returns Changed=false and nothing else.
func (r *Router) Dispatch(board domain.Board, ev DropEvent) Result {
	if r.Settling() {
		return skip(ReasonSettling)
	}

	dest, ok := parseTarget(ev.DestinationID)
	if !ok {
		return skip(ReasonCancelled)
	}
	src, srcOK := parseTarget(ev.SourceID)

	var result Result
	switch ev.Kind {
	case DragColumn:
		result = r.dispatchColumn(board, src, srcOK, dest)
	case DragBlock:
		result = r.dispatchBlock(board, ev, src, srcOK, dest)
	default:
		return skip(ReasonCancelled)
	}

	if result.Changed {
		verifyInvariants(result.Phases, result.Blocks)
		r.settleUntil = r.clock().Add(r.window)
	}
	return result
}

// dispatchColumn handles a column reorder drop.
func (r *Router) dispatchColumn(board domain.Board, src target, srcOK bool, dest target) Result {
	if !srcOK || src.kind != targetCell || dest.kind != targetCell {
		return skip(ReasonCancelled)
	}
	// The board may have changed between drag-start and drag-end; a stale
	// coordinate is an unresolvable drop, not a defect.
	if !board.HasCoordinate(src.coord) {
		return skip(ReasonCancelled)
	}
	if dest.coord.Phase < 0 || dest.coord.Phase >= len(board.Phases) {
		return skip(ReasonCancelled)
	}
	maxInsert := len(board.Phases[dest.coord.Phase].Columns)
	if dest.coord.Phase == src.coord.Phase {
		maxInsert--
	}
	if dest.coord.Column < 0 || dest.coord.Column > maxInsert {
		return skip(ReasonCancelled)
	}
	if src.coord == dest.coord {
		return skip(ReasonCancelled)
	}

	phases, blocks := MoveColumn(board.Phases, board.Blocks, src.coord, dest.coord)
	return Result{Phases: phases, Blocks: blocks, Changed: true}
}

// dispatchBlock handles create, delete, duplicate, and move drops.
func (r *Router) dispatchBlock(board domain.Board, ev DropEvent, src target, srcOK bool, dest target) Result {
	switch {
	case srcOK && src.kind == targetPalette:
		return r.createFromPalette(board, ev, src, dest)
	case dest.kind == targetTrash || dest.kind == targetPalette:
		return r.deleteDragged(board, ev)
	case dest.kind == targetCell && ev.Duplicate:
		return r.duplicateDragged(board, ev, dest)
	case dest.kind == targetCell:
		return r.moveDragged(board, ev, dest)
	default:
		return skip(ReasonCancelled)
	}
}

// createFromPalette mints a new block of the palette entry's type at the
// destination cell.
func (r *Router) createFromPalette(board domain.Board, ev DropEvent, src target, dest target) Result {
	if dest.kind != targetCell || !board.HasCoordinate(dest.coord) {
		return skip(ReasonCancelled)
	}
	blockType := src.blockType
	if blockType == "" {
		return skip(ReasonCancelled)
	}

	minted, err := domain.NewBlock(domain.BlockInput{
		ID:      r.idGen(),
		Type:    blockType,
		Content: blockType.DefaultContent(),
		Coord:   dest.coord,
	}, r.clock())
	if err != nil {
		panic(fmt.Sprintf("engine: mint palette block: %v", err))
	}

	blocks := cloneBlocks(board.Blocks)
	at := InsertionIndex(blocks, dest.coord, ev.DestinationIndex, r.filter)
	blocks = spliceBlock(blocks, minted, at)
	return Result{Phases: clonePhases(board.Phases), Blocks: blocks, Changed: true}
}

// deleteDragged removes the dragged block from the sequence.
func (r *Router) deleteDragged(board domain.Board, ev DropEvent) Result {
	_, at, ok := board.BlockByID(ev.DraggedID)
	if !ok {
		return skip(ReasonCancelled)
	}
	blocks := removeBlockAt(cloneBlocks(board.Blocks), at)
	return Result{Phases: clonePhases(board.Phases), Blocks: blocks, Changed: true}
}

// duplicateDragged clones the dragged block with a fresh id at the
// destination; the original stays where it was.
func (r *Router) duplicateDragged(board domain.Board, ev DropEvent, dest target) Result {
	if !board.HasCoordinate(dest.coord) {
		return skip(ReasonCancelled)
	}
	original, _, ok := board.BlockByID(ev.DraggedID)
	if !ok {
		return skip(ReasonCancelled)
	}

	clone := original.CloneWith(r.idGen(), dest.coord, r.clock())
	blocks := cloneBlocks(board.Blocks)
	at := InsertionIndex(blocks, dest.coord, ev.DestinationIndex, r.filter)
	blocks = spliceBlock(blocks, clone, at)
	return Result{Phases: clonePhases(board.Phases), Blocks: blocks, Changed: true}
}

// moveDragged removes the dragged block from its old sequence position,
// rewrites its coordinate, and reinserts it at the located splice point.
// The insertion index is computed after removal so the display-relative
// index refers to the list the user saw while dragging.
func (r *Router) moveDragged(board domain.Board, ev DropEvent, dest target) Result {
	if !board.HasCoordinate(dest.coord) {
		return skip(ReasonCancelled)
	}
	original, at, ok := board.BlockByID(ev.DraggedID)
	if !ok {
		return skip(ReasonCancelled)
	}

	moved := original.Clone()
	moved.Coord = dest.coord
	moved.UpdatedAt = r.clock().UTC()

	blocks := removeBlockAt(cloneBlocks(board.Blocks), at)
	insertAt := InsertionIndex(blocks, dest.coord, ev.DestinationIndex, r.filter)
	blocks = spliceBlock(blocks, moved, insertAt)
	return Result{Phases: clonePhases(board.Phases), Blocks: blocks, Changed: true}
}

// verifyInvariants fails fast when a mutation broke the coordinate model.
// Reaching this state means the input board was already inconsistent.
func verifyInvariants(phases []domain.Phase, blocks []domain.Block) {
	board := domain.Board{Phases: phases, Blocks: blocks}
	if err := board.Validate(); err != nil {
		panic(fmt.Sprintf("engine: invariant violation after dispatch: %v", err))
	}
}
