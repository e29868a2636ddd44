package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/hylla/ritning/internal/domain"
)

// fakeClock is a manually advanced clock for settle-window tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestRouter() (*Router, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	seq := 0
	idGen := func() string {
		seq++
		return fmt.Sprintf("gen-%d", seq)
	}
	return NewRouter(idGen, clock.Now, 0), clock
}

func blockIDsAt(blocks []domain.Block, coord domain.Coordinate) []string {
	var ids []string
	for _, b := range blocks {
		if b.Coord == coord {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

func TestDispatchCancelledIsNoOp(t *testing.T) {
	board := buildBoard(t)
	router, _ := newTestRouter()

	for _, dest := range []string{"", "  ", "nonsense", "p0", "pX:c0", "palette:widget"} {
		res := router.Dispatch(board, DropEvent{
			SourceID: "p0:c0", DestinationID: dest, DraggedID: "blk-a", Kind: DragBlock,
		})
		if res.Changed || res.Reason != ReasonCancelled {
			t.Fatalf("destination %q: expected cancelled no-op, got %+v", dest, res)
		}
	}
}

func TestDispatchColumnMove(t *testing.T) {
	board := buildBoard(t)
	router, _ := newTestRouter()

	res := router.Dispatch(board, DropEvent{
		SourceID:      CellID(domain.Coordinate{Phase: 0, Column: 0}),
		DestinationID: CellID(domain.Coordinate{Phase: 1, Column: 1}),
		Kind:          DragColumn,
	})
	if !res.Changed {
		t.Fatalf("expected change, got %+v", res)
	}
	if res.Phases[1].Columns[1].ID != "col-00" {
		t.Fatalf("moved column = %s, want col-00", res.Phases[1].Columns[1].ID)
	}
	if got := coordOf(t, res.Blocks, "blk-a"); got != (domain.Coordinate{Phase: 1, Column: 1}) {
		t.Fatalf("moved block coord = %v", got)
	}
}

func TestDispatchColumnMoveToSelfIsNoOp(t *testing.T) {
	board := buildBoard(t)
	router, _ := newTestRouter()

	res := router.Dispatch(board, DropEvent{
		SourceID:      "p0:c1",
		DestinationID: "p0:c1",
		Kind:          DragColumn,
	})
	if res.Changed {
		t.Fatalf("expected no-op, got %+v", res)
	}
}

func TestDispatchPaletteCreate(t *testing.T) {
	board := buildBoard(t)
	router, _ := newTestRouter()

	res := router.Dispatch(board, DropEvent{
		SourceID:         PaletteID(domain.BlockTouchpoint),
		DestinationID:    "p0:c0",
		Kind:             DragBlock,
		DestinationIndex: 0,
	})
	if !res.Changed {
		t.Fatalf("expected change, got %+v", res)
	}
	minted := res.Blocks[0]
	if minted.ID != "gen-1" || minted.Type != domain.BlockTouchpoint {
		t.Fatalf("unexpected minted block %#v", minted)
	}
	if minted.Content != domain.BlockTouchpoint.DefaultContent() {
		t.Fatalf("minted content = %q", minted.Content)
	}
	if minted.Coord != (domain.Coordinate{Phase: 0, Column: 0}) {
		t.Fatalf("minted coord = %v", minted.Coord)
	}
	if len(res.Blocks) != len(board.Blocks)+1 {
		t.Fatalf("block count = %d, want %d", len(res.Blocks), len(board.Blocks)+1)
	}
}

func TestDispatchPaletteCreateToStaleCellIsNoOp(t *testing.T) {
	board := buildBoard(t)
	router, _ := newTestRouter()

	res := router.Dispatch(board, DropEvent{
		SourceID:      PaletteID(domain.BlockRole),
		DestinationID: "p4:c0",
		Kind:          DragBlock,
	})
	if res.Changed {
		t.Fatalf("expected no-op for stale destination, got %+v", res)
	}
}

func TestDispatchTrashDelete(t *testing.T) {
	board := buildBoard(t)
	router, _ := newTestRouter()

	res := router.Dispatch(board, DropEvent{
		SourceID:      "p0:c1",
		DestinationID: TrashID,
		DraggedID:     "blk-b",
		Kind:          DragBlock,
	})
	if !res.Changed {
		t.Fatalf("expected change, got %+v", res)
	}
	if _, _, ok := (domain.Board{Phases: res.Phases, Blocks: res.Blocks}).BlockByID("blk-b"); ok {
		t.Fatal("trashed block survived")
	}
	if len(res.Blocks) != len(board.Blocks)-1 {
		t.Fatalf("block count = %d, want %d", len(res.Blocks), len(board.Blocks)-1)
	}
}

func TestDispatchMoveWithinColumn(t *testing.T) {
	board := buildBoard(t)
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	// Stack three blocks in one cell: display order A, B, C.
	cell := domain.Coordinate{Phase: 1, Column: 0}
	for _, id := range []string{"stack-a", "stack-b", "stack-c"} {
		b, err := domain.NewBlock(domain.BlockInput{ID: id, Type: domain.BlockNote, Coord: cell}, now)
		if err != nil {
			t.Fatalf("NewBlock(%s) error = %v", id, err)
		}
		board.Blocks = append(board.Blocks, b)
	}
	router, _ := newTestRouter()

	res := router.Dispatch(board, DropEvent{
		SourceID:         CellID(cell),
		DestinationID:    CellID(cell),
		DraggedID:        "stack-b",
		Kind:             DragBlock,
		SourceIndex:      2,
		DestinationIndex: 0,
	})
	if !res.Changed {
		t.Fatalf("expected change, got %+v", res)
	}
	got := blockIDsAt(res.Blocks, cell)
	want := []string{"stack-b", "blk-d", "stack-a", "stack-c"}
	// blk-d was the cell's pre-existing first block, so moving stack-b to
	// display position 0 puts it ahead of everything in that cell.
	if len(got) != len(want) {
		t.Fatalf("cell order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cell order = %v, want %v", got, want)
		}
	}
}

func TestDispatchMoveAcrossCells(t *testing.T) {
	board := buildBoard(t)
	router, _ := newTestRouter()

	res := router.Dispatch(board, DropEvent{
		SourceID:         "p0:c0",
		DestinationID:    "p1:c1",
		DraggedID:        "blk-a",
		Kind:             DragBlock,
		DestinationIndex: 1,
	})
	if !res.Changed {
		t.Fatalf("expected change, got %+v", res)
	}
	moved, _, ok := (domain.Board{Phases: res.Phases, Blocks: res.Blocks}).BlockByID("blk-a")
	if !ok || moved.Coord != (domain.Coordinate{Phase: 1, Column: 1}) {
		t.Fatalf("moved block coord = %v ok=%v", moved.Coord, ok)
	}
	got := blockIDsAt(res.Blocks, domain.Coordinate{Phase: 1, Column: 1})
	if len(got) != 2 || got[0] != "blk-e" || got[1] != "blk-a" {
		t.Fatalf("cell order = %v, want [blk-e blk-a]", got)
	}
}

func TestDispatchDuplicateKeepsOriginal(t *testing.T) {
	board := buildBoard(t)
	router, _ := newTestRouter()

	res := router.Dispatch(board, DropEvent{
		SourceID:      "p0:c0",
		DestinationID: "p1:c0",
		DraggedID:     "blk-a",
		Kind:          DragBlock,
		Duplicate:     true,
	})
	if !res.Changed {
		t.Fatalf("expected change, got %+v", res)
	}
	out := domain.Board{Phases: res.Phases, Blocks: res.Blocks}

	original, _, ok := out.BlockByID("blk-a")
	if !ok || original.Coord != (domain.Coordinate{Phase: 0, Column: 0}) {
		t.Fatalf("original moved or lost: %v ok=%v", original.Coord, ok)
	}
	dup, _, ok := out.BlockByID("gen-1")
	if !ok || dup.Coord != (domain.Coordinate{Phase: 1, Column: 0}) {
		t.Fatalf("duplicate missing or misplaced: %v ok=%v", dup.Coord, ok)
	}
	if dup.Content != original.Content || dup.Type != original.Type {
		t.Fatalf("duplicate lost content: %#v", dup)
	}
}

func TestDispatchStaleDraggedIDIsNoOp(t *testing.T) {
	board := buildBoard(t)
	router, _ := newTestRouter()

	res := router.Dispatch(board, DropEvent{
		SourceID:      "p0:c0",
		DestinationID: "p1:c0",
		DraggedID:     "gone",
		Kind:          DragBlock,
	})
	if res.Changed || res.Reason != ReasonCancelled {
		t.Fatalf("expected cancelled no-op, got %+v", res)
	}
}

func TestDispatchRespectsFilter(t *testing.T) {
	board := buildBoard(t)
	router, _ := newTestRouter()
	router.SetFilter(func(b domain.Block) bool { return b.Type == domain.BlockNote })

	// With only note blocks visible, display position 1 in (1,1) lands right
	// after blk-e regardless of hidden blocks elsewhere in the sequence.
	res := router.Dispatch(board, DropEvent{
		SourceID:         "p0:c0",
		DestinationID:    "p1:c1",
		DraggedID:        "blk-a",
		Kind:             DragBlock,
		DestinationIndex: 1,
	})
	if !res.Changed {
		t.Fatalf("expected change, got %+v", res)
	}
	got := blockIDsAt(res.Blocks, domain.Coordinate{Phase: 1, Column: 1})
	if len(got) != 2 || got[1] != "blk-a" {
		t.Fatalf("cell order = %v, want blk-a after blk-e", got)
	}
}

func TestSettleWindowGatesDispatch(t *testing.T) {
	board := buildBoard(t)
	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	router := NewRouter(func() string { return "gen" }, clock.Now, 150*time.Millisecond)

	first := router.Dispatch(board, DropEvent{
		SourceID: "p0:c0", DestinationID: TrashID, DraggedID: "blk-a", Kind: DragBlock,
	})
	if !first.Changed {
		t.Fatalf("expected first dispatch to apply, got %+v", first)
	}
	if !router.Settling() {
		t.Fatal("expected router to be settling after a successful dispatch")
	}

	gated := router.Dispatch(board, DropEvent{
		SourceID: "p0:c1", DestinationID: TrashID, DraggedID: "blk-b", Kind: DragBlock,
	})
	if gated.Changed || gated.Reason != ReasonSettling {
		t.Fatalf("expected settle-gated no-op, got %+v", gated)
	}

	clock.Advance(200 * time.Millisecond)
	after := router.Dispatch(board, DropEvent{
		SourceID: "p0:c1", DestinationID: TrashID, DraggedID: "blk-b", Kind: DragBlock,
	})
	if !after.Changed {
		t.Fatalf("expected dispatch after window, got %+v", after)
	}
}

func TestDispatchDoesNotMutateInput(t *testing.T) {
	board := buildBoard(t)
	router, _ := newTestRouter()

	router.Dispatch(board, DropEvent{
		SourceID: "p0:c0", DestinationID: TrashID, DraggedID: "blk-a", Kind: DragBlock,
	})
	if len(board.Blocks) != 5 || board.Blocks[0].ID != "blk-a" {
		t.Fatal("input board mutated by dispatch")
	}
}

func TestNewRouterRequiresIDGenerator(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for nil id generator")
		}
	}()
	NewRouter(nil, nil, 0)
}
