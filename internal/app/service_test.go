package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hylla/ritning/internal/domain"
	"github.com/hylla/ritning/internal/engine"
)

type fakeRepo struct {
	board domain.Board
	saves int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{}
}

func (f *fakeRepo) SaveBoard(_ context.Context, board domain.Board) error {
	f.board = board.Clone()
	f.saves++
	return nil
}

func (f *fakeRepo) LoadBoard(_ context.Context) (domain.Board, error) {
	return f.board.Clone(), nil
}

func newTestService(t *testing.T) (*Service, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	seq := 0
	idGen := func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	clock := func() time.Time {
		return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	}
	svc := NewService(repo, idGen, clock, ServiceConfig{
		UndoDepth:   3,
		Departments: []string{"sales", "ops"},
	})
	if _, err := svc.EnsureBoard(context.Background()); err != nil {
		t.Fatalf("EnsureBoard() error = %v", err)
	}
	return svc, repo
}

func TestEnsureBoardSeedsDefaults(t *testing.T) {
	svc, repo := newTestService(t)

	board := svc.Board()
	if len(board.Phases) != 2 {
		t.Fatalf("phase count = %d, want 2", len(board.Phases))
	}
	if len(board.Phases[0].Columns) != 2 {
		t.Fatalf("column count = %d, want 2", len(board.Phases[0].Columns))
	}
	if repo.saves != 1 {
		t.Fatalf("saves = %d, want 1", repo.saves)
	}

	// A second call loads the seeded board instead of reseeding.
	again, err := svc.EnsureBoard(context.Background())
	if err != nil {
		t.Fatalf("EnsureBoard() error = %v", err)
	}
	if len(again.Phases) != 2 || repo.saves != 1 {
		t.Fatalf("reseeded: phases=%d saves=%d", len(again.Phases), repo.saves)
	}
}

func TestPhaseLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	phase, err := svc.AddPhase(ctx, "Support")
	if err != nil {
		t.Fatalf("AddPhase() error = %v", err)
	}
	if phase.Name != "Support" || len(phase.Columns) != 1 {
		t.Fatalf("unexpected phase %#v", phase)
	}

	if err := svc.RenamePhase(ctx, 2, "Aftercare"); err != nil {
		t.Fatalf("RenamePhase() error = %v", err)
	}
	if got := svc.Board().Phases[2].Name; got != "Aftercare" {
		t.Fatalf("renamed phase = %q", got)
	}

	if err := svc.RenamePhase(ctx, 9, "x"); !errors.Is(err, ErrPhaseOutOfRange) {
		t.Fatalf("expected ErrPhaseOutOfRange, got %v", err)
	}

	if err := svc.ToggleCollapsed(ctx, 2); err != nil {
		t.Fatalf("ToggleCollapsed() error = %v", err)
	}
	if !svc.Board().Phases[2].Collapsed {
		t.Fatal("phase not collapsed")
	}

	if err := svc.DeletePhase(ctx, 2); err != nil {
		t.Fatalf("DeletePhase() error = %v", err)
	}
	if got := len(svc.Board().Phases); got != 2 {
		t.Fatalf("phase count = %d, want 2", got)
	}
}

func TestDeleteLastPhaseRefused(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.DeletePhase(ctx, 0); err != nil {
		t.Fatalf("DeletePhase() error = %v", err)
	}
	if err := svc.DeletePhase(ctx, 0); !errors.Is(err, ErrLastPhase) {
		t.Fatalf("expected ErrLastPhase, got %v", err)
	}
}

func TestMovePhaseTransposesBlocks(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	block, err := svc.CreateBlock(ctx, CreateBlockInput{
		Type:  domain.BlockAction,
		Coord: domain.Coordinate{Phase: 0, Column: 0},
	})
	if err != nil {
		t.Fatalf("CreateBlock() error = %v", err)
	}

	if err := svc.MovePhase(ctx, 0, 1); err != nil {
		t.Fatalf("MovePhase() error = %v", err)
	}
	moved, _, ok := svc.Board().BlockByID(block.ID)
	if !ok || moved.Coord.Phase != 1 {
		t.Fatalf("block not transposed: %v ok=%v", moved.Coord, ok)
	}
}

func TestColumnLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	column, err := svc.AddColumn(ctx, 0, "Triage")
	if err != nil {
		t.Fatalf("AddColumn() error = %v", err)
	}
	if column.Name != "Triage" {
		t.Fatalf("column name = %q", column.Name)
	}

	at := domain.Coordinate{Phase: 0, Column: 2}
	if err := svc.RenameColumn(ctx, at, "Intake"); err != nil {
		t.Fatalf("RenameColumn() error = %v", err)
	}
	if got := svc.Board().Phases[0].Columns[2].Name; got != "Intake" {
		t.Fatalf("renamed column = %q", got)
	}

	if err := svc.MoveColumn(ctx, at, domain.Coordinate{Phase: 1, Column: 0}); err != nil {
		t.Fatalf("MoveColumn() error = %v", err)
	}
	if got := svc.Board().Phases[1].Columns[0].Name; got != "Intake" {
		t.Fatalf("moved column = %q", got)
	}

	if err := svc.DeleteColumn(ctx, domain.Coordinate{Phase: 1, Column: 0}); err != nil {
		t.Fatalf("DeleteColumn() error = %v", err)
	}
	if got := len(svc.Board().Phases[1].Columns); got != 2 {
		t.Fatalf("column count = %d, want 2", got)
	}

	if err := svc.DeleteColumn(ctx, domain.Coordinate{Phase: 0, Column: 9}); !errors.Is(err, ErrColumnOutOfRange) {
		t.Fatalf("expected ErrColumnOutOfRange, got %v", err)
	}
}

func TestHandleDropPersists(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	res, err := svc.HandleDrop(ctx, engine.DropEvent{
		SourceID:      engine.PaletteID(domain.BlockRole),
		DestinationID: engine.CellID(domain.Coordinate{Phase: 0, Column: 0}),
		Kind:          engine.DragBlock,
	})
	if err != nil {
		t.Fatalf("HandleDrop() error = %v", err)
	}
	if !res.Changed {
		t.Fatalf("expected change, got %+v", res)
	}
	if len(repo.board.Blocks) != 1 {
		t.Fatalf("persisted block count = %d, want 1", len(repo.board.Blocks))
	}

	savesBefore := repo.saves
	cancelled, err := svc.HandleDrop(ctx, engine.DropEvent{
		SourceID: "p0:c0", DestinationID: "", Kind: engine.DragBlock,
	})
	if err != nil {
		t.Fatalf("HandleDrop() error = %v", err)
	}
	if cancelled.Changed || repo.saves != savesBefore {
		t.Fatalf("cancelled drop persisted: %+v saves=%d", cancelled, repo.saves)
	}
}

func TestBlockUpdates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	block, err := svc.CreateBlock(ctx, CreateBlockInput{
		Type:  domain.BlockTouchpoint,
		Coord: domain.Coordinate{Phase: 0, Column: 1},
	})
	if err != nil {
		t.Fatalf("CreateBlock() error = %v", err)
	}
	if block.Content != domain.BlockTouchpoint.DefaultContent() {
		t.Fatalf("default content = %q", block.Content)
	}

	content := "Call the customer"
	notes := "Use the **script**"
	dept := "sales"
	flagged := true
	updated, err := svc.UpdateBlock(ctx, UpdateBlockInput{
		BlockID:    block.ID,
		Content:    &content,
		Notes:      &notes,
		Department: &dept,
		Flagged:    &flagged,
	})
	if err != nil {
		t.Fatalf("UpdateBlock() error = %v", err)
	}
	if updated.Content != content || updated.Notes != notes || updated.Department != dept || !updated.Flagged {
		t.Fatalf("unexpected updated block %#v", updated)
	}

	if err := svc.AddBlockEmoji(ctx, block.ID, "🎉"); err != nil {
		t.Fatalf("AddBlockEmoji() error = %v", err)
	}
	comment, err := svc.AddBlockComment(ctx, block.ID, "sam", "looks good")
	if err != nil {
		t.Fatalf("AddBlockComment() error = %v", err)
	}
	if comment.Author != "sam" || comment.Body != "looks good" {
		t.Fatalf("unexpected comment %#v", comment)
	}

	if _, err := svc.UpdateBlock(ctx, UpdateBlockInput{BlockID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteBlockAndUndo(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	block, _ := svc.CreateBlock(ctx, CreateBlockInput{
		Type:  domain.BlockAction,
		Coord: domain.Coordinate{Phase: 0, Column: 0},
	})

	if err := svc.DeleteBlock(ctx, block.ID); err != nil {
		t.Fatalf("DeleteBlock() error = %v", err)
	}
	if _, _, ok := svc.Board().BlockByID(block.ID); ok {
		t.Fatal("deleted block still present")
	}

	label, err := svc.Undo(ctx)
	if err != nil {
		t.Fatalf("Undo() error = %v", err)
	}
	if label != "delete block" {
		t.Fatalf("undo label = %q", label)
	}
	if _, _, ok := svc.Board().BlockByID(block.ID); !ok {
		t.Fatal("undo did not restore block")
	}

	if _, err := svc.Undo(ctx); !errors.Is(err, ErrNothingToUndo) {
		t.Fatalf("expected ErrNothingToUndo, got %v", err)
	}
}

func TestBulkDeleteAndClearEmoji(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		b, err := svc.CreateBlock(ctx, CreateBlockInput{
			Type:  domain.BlockNote,
			Coord: domain.Coordinate{Phase: 0, Column: 0},
		})
		if err != nil {
			t.Fatalf("CreateBlock() error = %v", err)
		}
		if err := svc.AddBlockEmoji(ctx, b.ID, "⭐"); err != nil {
			t.Fatalf("AddBlockEmoji() error = %v", err)
		}
		ids = append(ids, b.ID)
	}

	cleared, err := svc.ClearAllEmoji(ctx)
	if err != nil {
		t.Fatalf("ClearAllEmoji() error = %v", err)
	}
	if cleared != 3 {
		t.Fatalf("cleared = %d, want 3", cleared)
	}

	removed, err := svc.BulkDeleteBlocks(ctx, append(ids[:2:2], "missing"))
	if err != nil {
		t.Fatalf("BulkDeleteBlocks() error = %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if got := len(svc.Board().Blocks); got != 1 {
		t.Fatalf("block count = %d, want 1", got)
	}

	// One undo entry covers the whole batch.
	if _, err := svc.Undo(ctx); err != nil {
		t.Fatalf("Undo() error = %v", err)
	}
	if got := len(svc.Board().Blocks); got != 3 {
		t.Fatalf("block count after undo = %d, want 3", got)
	}
}

func TestUndoDropsUnresolvableBlocks(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	block, _ := svc.CreateBlock(ctx, CreateBlockInput{
		Type:  domain.BlockAction,
		Coord: domain.Coordinate{Phase: 1, Column: 1},
	})
	if err := svc.DeleteBlock(ctx, block.ID); err != nil {
		t.Fatalf("DeleteBlock() error = %v", err)
	}
	// The snapshot references (1,1); deleting that column makes the
	// snapshot's coordinate unresolvable.
	if err := svc.DeleteColumn(ctx, domain.Coordinate{Phase: 1, Column: 1}); err != nil {
		t.Fatalf("DeleteColumn() error = %v", err)
	}

	if _, err := svc.Undo(ctx); err != nil {
		t.Fatalf("Undo() error = %v", err)
	}
	if _, _, ok := svc.Board().BlockByID(block.ID); ok {
		t.Fatal("block with unresolvable coordinate restored")
	}
	if err := svc.Board().Validate(); err != nil {
		t.Fatalf("Validate() after undo error = %v", err)
	}
}

func TestSetFilterValidatesDepartment(t *testing.T) {
	svc, _ := newTestService(t)

	if err := svc.SetFilter(BoardFilter{Department: "marketing"}); !errors.Is(err, ErrInvalidDepartment) {
		t.Fatalf("expected ErrInvalidDepartment, got %v", err)
	}
	if err := svc.SetFilter(BoardFilter{Department: "ops", Type: domain.BlockNote}); err != nil {
		t.Fatalf("SetFilter() error = %v", err)
	}
	if got := svc.Filter(); got.Department != "ops" || got.Type != domain.BlockNote {
		t.Fatalf("Filter() = %+v", got)
	}
}

func TestRefreshIsLastWriteWins(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateBlock(ctx, CreateBlockInput{
		Type:  domain.BlockAction,
		Coord: domain.Coordinate{Phase: 0, Column: 0},
	}); err != nil {
		t.Fatalf("CreateBlock() error = %v", err)
	}

	// Another process replaces the stored board out from under us.
	external := repo.board.Clone()
	external.Blocks = nil
	repo.board = external

	board, err := svc.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(board.Blocks) != 0 || len(svc.Board().Blocks) != 0 {
		t.Fatal("refresh did not replace collections wholesale")
	}
}

// failingRepo rejects saves on demand so commit failures can be simulated.
type failingRepo struct {
	*fakeRepo
	failSaves bool
}

func (f *failingRepo) SaveBoard(ctx context.Context, board domain.Board) error {
	if f.failSaves {
		return errors.New("save rejected")
	}
	return f.fakeRepo.SaveBoard(ctx, board)
}

func TestFailedSaveLeavesNoUndoEntry(t *testing.T) {
	repo := &failingRepo{fakeRepo: newFakeRepo()}
	seq := 0
	svc := NewService(repo, func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}, nil, ServiceConfig{UndoDepth: 3})
	ctx := context.Background()
	if _, err := svc.EnsureBoard(ctx); err != nil {
		t.Fatalf("EnsureBoard() error = %v", err)
	}

	block, err := svc.CreateBlock(ctx, CreateBlockInput{
		Type:  domain.BlockAction,
		Coord: domain.Coordinate{Phase: 0, Column: 0},
	})
	if err != nil {
		t.Fatalf("CreateBlock() error = %v", err)
	}

	repo.failSaves = true
	if err := svc.DeleteBlock(ctx, block.ID); err == nil {
		t.Fatal("expected DeleteBlock to surface the save failure")
	}
	if _, err := svc.BulkDeleteBlocks(ctx, []string{block.ID}); err == nil {
		t.Fatal("expected BulkDeleteBlocks to surface the save failure")
	}

	// No snapshot may survive a failed commit: an undo here would re-commit
	// the unchanged board under a stale label.
	if depth := svc.UndoDepth(); depth != 0 {
		t.Fatalf("undo depth after failed saves = %d, want 0", depth)
	}
	if _, err := svc.Undo(ctx); !errors.Is(err, ErrNothingToUndo) {
		t.Fatalf("expected ErrNothingToUndo, got %v", err)
	}

	repo.failSaves = false
	if _, _, ok := svc.Board().BlockByID(block.ID); !ok {
		t.Fatal("block lost despite failed delete")
	}
	if err := svc.DeleteBlock(ctx, block.ID); err != nil {
		t.Fatalf("DeleteBlock() error = %v", err)
	}
	if depth := svc.UndoDepth(); depth != 1 {
		t.Fatalf("undo depth after successful delete = %d, want 1", depth)
	}
}
