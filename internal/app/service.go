package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hylla/ritning/internal/domain"
	"github.com/hylla/ritning/internal/engine"
)

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	UndoDepth    int
	SettleWindow time.Duration
	Departments  []string
	PhaseSeeds   []PhaseSeed
}

// PhaseSeed describes one phase created on an empty board.
type PhaseSeed struct {
	Name    string
	Columns []string
}

// BoardFilter narrows the displayed blocks by department and block type.
// The zero value matches everything.
type BoardFilter struct {
	Department string
	Type       domain.BlockType
}

// Matches reports whether the block passes the filter.
func (f BoardFilter) Matches(b domain.Block) bool {
	if f.Department != "" && b.Department != f.Department {
		return false
	}
	if f.Type != "" && b.Type != f.Type {
		return false
	}
	return true
}

// Service owns the live board, routes drops and structural edits through the
// layout engine, and persists the whole board after every mutation. It is
// safe for concurrent use; the board TUI and the MCP server share one
// instance.
type Service struct {
	mu          sync.Mutex
	repo        Repository
	idGen       IDGenerator
	clock       Clock
	router      *engine.Router
	history     *engine.History
	filter      BoardFilter
	departments []string
	phaseSeeds  []PhaseSeed
	board       domain.Board
}

// NewService constructs a new value for this package. idGen must be non-nil:
// every new phase, column, and block is minted through it.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if clock == nil {
		clock = time.Now
	}
	seeds := cfg.PhaseSeeds
	if len(seeds) == 0 {
		seeds = defaultPhaseSeeds()
	}

	s := &Service{
		repo:        repo,
		idGen:       idGen,
		clock:       clock,
		router:      engine.NewRouter(engine.IDGenerator(idGen), engine.Clock(clock), cfg.SettleWindow),
		history:     engine.NewHistory(cfg.UndoDepth),
		departments: append([]string(nil), cfg.Departments...),
		phaseSeeds:  seeds,
	}
	return s
}

// defaultPhaseSeeds returns the phases created on a brand-new board.
func defaultPhaseSeeds() []PhaseSeed {
	return []PhaseSeed{
		{Name: "Discover", Columns: []string{"Entry", "Research"}},
		{Name: "Deliver", Columns: []string{"Build", "Handoff"}},
	}
}

// EnsureBoard loads the persisted board, seeding the default phases when the
// store is empty.
func (s *Service) EnsureBoard(ctx context.Context) (domain.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	board, err := s.repo.LoadBoard(ctx)
	if err != nil {
		return domain.Board{}, err
	}
	if len(board.Phases) == 0 {
		now := s.clock()
		for _, seed := range s.phaseSeeds {
			phase, phaseErr := domain.NewPhase(s.idGen(), seed.Name, now)
			if phaseErr != nil {
				return domain.Board{}, phaseErr
			}
			for _, colName := range seed.Columns {
				column, colErr := domain.NewColumn(s.idGen(), colName, now)
				if colErr != nil {
					return domain.Board{}, colErr
				}
				phase.Columns = append(phase.Columns, column)
			}
			board.Phases = append(board.Phases, phase)
		}
		if err := s.repo.SaveBoard(ctx, board); err != nil {
			return domain.Board{}, err
		}
	}

	s.board = board
	return board.Clone(), nil
}

// Board returns a deep copy of the live board.
func (s *Service) Board() domain.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Clone()
}

// Refresh replaces the live board with the persisted one. The reload is
// last-write-wins: whatever the store holds displaces the in-memory
// collections wholesale, including any concurrent edits not yet saved.
func (s *Service) Refresh(ctx context.Context) (domain.Board, error) {
	board, err := s.repo.LoadBoard(ctx)
	if err != nil {
		return domain.Board{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.board = board
	return board.Clone(), nil
}

// SetFilter installs the department/type display filter. The engine needs it
// because display-relative drop indices count visible blocks only.
func (s *Service) SetFilter(filter BoardFilter) error {
	if filter.Department != "" && len(s.departments) > 0 {
		found := false
		for _, dept := range s.departments {
			if dept == filter.Department {
				found = true
				break
			}
		}
		if !found {
			return ErrInvalidDepartment
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = filter
	if filter == (BoardFilter{}) {
		s.router.SetFilter(nil)
	} else {
		s.router.SetFilter(filter.Matches)
	}
	return nil
}

// Filter returns the active display filter.
func (s *Service) Filter() BoardFilter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// Departments returns the configured department vocabulary.
func (s *Service) Departments() []string {
	return append([]string(nil), s.departments...)
}

// HandleDrop routes one completed drag gesture. Cancelled and unresolvable
// drops come back with Changed=false and nothing persisted.
func (s *Service) HandleDrop(ctx context.Context, ev engine.DropEvent) (engine.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := s.router.Dispatch(s.board, ev)
	if !result.Changed {
		return result, nil
	}

	next := domain.Board{Phases: result.Phases, Blocks: result.Blocks}
	if err := s.repo.SaveBoard(ctx, next); err != nil {
		return engine.Result{}, err
	}
	s.board = next
	return result, nil
}

// AddPhase appends a phase with one starter column.
func (s *Service) AddPhase(ctx context.Context, name string) (domain.Phase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	phase, err := domain.NewPhase(s.idGen(), name, now)
	if err != nil {
		return domain.Phase{}, err
	}
	column, err := domain.NewColumn(s.idGen(), "New column", now)
	if err != nil {
		return domain.Phase{}, err
	}
	phase.Columns = []domain.Column{column}

	next := s.board.Clone()
	next.Phases = append(next.Phases, phase)
	if err := s.commit(ctx, next); err != nil {
		return domain.Phase{}, err
	}
	return phase, nil
}

// RenamePhase renames the phase at the index.
func (s *Service) RenamePhase(ctx context.Context, phase int, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if phase < 0 || phase >= len(s.board.Phases) {
		return ErrPhaseOutOfRange
	}
	next := s.board.Clone()
	if err := next.Phases[phase].Rename(name, s.clock()); err != nil {
		return err
	}
	return s.commit(ctx, next)
}

// ToggleCollapsed flips the collapsed state of the phase at the index.
func (s *Service) ToggleCollapsed(ctx context.Context, phase int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if phase < 0 || phase >= len(s.board.Phases) {
		return ErrPhaseOutOfRange
	}
	next := s.board.Clone()
	next.Phases[phase].ToggleCollapsed(s.clock())
	return s.commit(ctx, next)
}

// DeletePhase removes the phase at the index together with its blocks and
// shifts later phases down. The last phase cannot be deleted.
func (s *Service) DeletePhase(ctx context.Context, phase int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if phase < 0 || phase >= len(s.board.Phases) {
		return ErrPhaseOutOfRange
	}
	if len(s.board.Phases) == 1 {
		return ErrLastPhase
	}

	phases, blocks := engine.DeletePhase(s.board.Phases, s.board.Blocks, phase)
	return s.commit(ctx, domain.Board{Phases: phases, Blocks: blocks})
}

// MovePhase swaps the phases at the two indices; block coordinates are
// transposed with them.
func (s *Service) MovePhase(ctx context.Context, a, b int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a < 0 || a >= len(s.board.Phases) || b < 0 || b >= len(s.board.Phases) {
		return ErrPhaseOutOfRange
	}
	if a == b {
		return nil
	}

	phases, blocks := engine.MovePhase(s.board.Phases, s.board.Blocks, a, b)
	return s.commit(ctx, domain.Board{Phases: phases, Blocks: blocks})
}

// AddColumn appends a column to the phase at the index.
func (s *Service) AddColumn(ctx context.Context, phase int, name string) (domain.Column, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if phase < 0 || phase >= len(s.board.Phases) {
		return domain.Column{}, ErrPhaseOutOfRange
	}
	column, err := domain.NewColumn(s.idGen(), name, s.clock())
	if err != nil {
		return domain.Column{}, err
	}

	next := s.board.Clone()
	next.Phases[phase].Columns = append(next.Phases[phase].Columns, column)
	if err := s.commit(ctx, next); err != nil {
		return domain.Column{}, err
	}
	return column, nil
}

// RenameColumn renames the column at the coordinate.
func (s *Service) RenameColumn(ctx context.Context, at domain.Coordinate, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.board.HasCoordinate(at) {
		return ErrColumnOutOfRange
	}
	next := s.board.Clone()
	if err := next.Phases[at.Phase].Columns[at.Column].Rename(name, s.clock()); err != nil {
		return err
	}
	return s.commit(ctx, next)
}

// DeleteColumn removes the column at the coordinate together with its blocks
// and shifts later siblings down.
func (s *Service) DeleteColumn(ctx context.Context, at domain.Coordinate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.board.HasCoordinate(at) {
		return ErrColumnOutOfRange
	}
	phases, blocks := engine.DeleteColumn(s.board.Phases, s.board.Blocks, at)
	return s.commit(ctx, domain.Board{Phases: phases, Blocks: blocks})
}

// MoveColumn relocates the column at from to the insertion point at to. Both
// keyboard-driven moves and MCP calls go through here; drag gestures take
// the HandleDrop path instead.
func (s *Service) MoveColumn(ctx context.Context, from, to domain.Coordinate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.board.HasCoordinate(from) {
		return ErrColumnOutOfRange
	}
	if to.Phase < 0 || to.Phase >= len(s.board.Phases) {
		return ErrPhaseOutOfRange
	}
	maxInsert := len(s.board.Phases[to.Phase].Columns)
	if to.Phase == from.Phase {
		maxInsert--
	}
	if to.Column < 0 || to.Column > maxInsert {
		return ErrColumnOutOfRange
	}
	if from == to {
		return nil
	}

	phases, blocks := engine.MoveColumn(s.board.Phases, s.board.Blocks, from, to)
	return s.commit(ctx, domain.Board{Phases: phases, Blocks: blocks})
}

// CreateBlockInput holds input values for block creation outside a drag.
type CreateBlockInput struct {
	Type       domain.BlockType
	Content    string
	Coord      domain.Coordinate
	Department string
}

// CreateBlock appends a block to the destination cell. The MCP surface uses
// this; interactive creation goes through the palette drop path.
func (s *Service) CreateBlock(ctx context.Context, in CreateBlockInput) (domain.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.board.HasCoordinate(in.Coord) {
		return domain.Block{}, ErrColumnOutOfRange
	}
	if in.Content == "" {
		in.Content = in.Type.DefaultContent()
	}
	block, err := domain.NewBlock(domain.BlockInput{
		ID:         s.idGen(),
		Type:       in.Type,
		Content:    in.Content,
		Coord:      in.Coord,
		Department: in.Department,
	}, s.clock())
	if err != nil {
		return domain.Block{}, err
	}

	next := s.board.Clone()
	next.Blocks = append(next.Blocks, block)
	if err := s.commit(ctx, next); err != nil {
		return domain.Block{}, err
	}
	return block, nil
}

// UpdateBlockInput holds input values for block content updates. Nil fields
// are left unchanged.
type UpdateBlockInput struct {
	BlockID    string
	Content    *string
	Notes      *string
	Department *string
	Flagged    *bool
}

// UpdateBlock updates one block's editable fields.
func (s *Service) UpdateBlock(ctx context.Context, in UpdateBlockInput) (domain.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.board.Clone()
	_, at, ok := next.BlockByID(in.BlockID)
	if !ok {
		return domain.Block{}, ErrNotFound
	}

	now := s.clock()
	block := &next.Blocks[at]
	if in.Content != nil {
		block.SetContent(*in.Content, now)
	}
	if in.Notes != nil {
		block.Notes = *in.Notes
		block.UpdatedAt = now.UTC()
	}
	if in.Department != nil {
		block.Department = strings.TrimSpace(*in.Department)
		block.UpdatedAt = now.UTC()
	}
	if in.Flagged != nil {
		block.Flagged = *in.Flagged
		block.UpdatedAt = now.UTC()
	}

	if err := s.commit(ctx, next); err != nil {
		return domain.Block{}, err
	}
	return next.Blocks[at].Clone(), nil
}

// AddBlockEmoji appends one emoji reaction to the block.
func (s *Service) AddBlockEmoji(ctx context.Context, blockID, emoji string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.board.Clone()
	_, at, ok := next.BlockByID(blockID)
	if !ok {
		return ErrNotFound
	}
	next.Blocks[at].AddEmoji(emoji, s.clock())
	return s.commit(ctx, next)
}

// AddBlockComment appends a comment to the block.
func (s *Service) AddBlockComment(ctx context.Context, blockID, author, body string) (domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	body = strings.TrimSpace(body)
	if body == "" {
		return domain.Comment{}, domain.ErrInvalidName
	}

	next := s.board.Clone()
	_, at, ok := next.BlockByID(blockID)
	if !ok {
		return domain.Comment{}, ErrNotFound
	}
	comment := domain.Comment{
		ID:        s.idGen(),
		Author:    strings.TrimSpace(author),
		Body:      body,
		CreatedAt: s.clock().UTC(),
	}
	next.Blocks[at].Comments = append(next.Blocks[at].Comments, comment)
	next.Blocks[at].UpdatedAt = s.clock().UTC()

	if err := s.commit(ctx, next); err != nil {
		return domain.Comment{}, err
	}
	return comment, nil
}

// DeleteBlock removes one block. The pre-delete block sequence is pushed on
// the undo stack.
func (s *Service) DeleteBlock(ctx context.Context, blockID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.board.Clone()
	_, at, ok := next.BlockByID(blockID)
	if !ok {
		return ErrNotFound
	}

	// Snapshot before the board pointer moves, push only once the delete is
	// persisted; a failed save must not leave an undoable entry.
	prior := s.board.Blocks
	next.Blocks = append(next.Blocks[:at], next.Blocks[at+1:]...)
	if err := s.commit(ctx, next); err != nil {
		return err
	}
	s.history.Push("delete block", prior)
	return nil
}

// BulkDeleteBlocks removes every block whose id is listed. Unknown ids are
// ignored. One undo entry covers the whole batch.
func (s *Service) BulkDeleteBlocks(ctx context.Context, blockIDs []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doomed := make(map[string]struct{}, len(blockIDs))
	for _, id := range blockIDs {
		doomed[id] = struct{}{}
	}

	next := s.board.Clone()
	kept := make([]domain.Block, 0, len(next.Blocks))
	removed := 0
	for _, block := range next.Blocks {
		if _, ok := doomed[block.ID]; ok {
			removed++
			continue
		}
		kept = append(kept, block)
	}
	if removed == 0 {
		return 0, nil
	}

	prior := s.board.Blocks
	next.Blocks = kept
	if err := s.commit(ctx, next); err != nil {
		return 0, err
	}
	s.history.Push("bulk delete", prior)
	return removed, nil
}

// ClearAllEmoji drops every emoji reaction on the board in one undoable
// sweep.
func (s *Service) ClearAllEmoji(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.board.Clone()
	cleared := 0
	now := s.clock()
	for i := range next.Blocks {
		if len(next.Blocks[i].Emoji) == 0 {
			continue
		}
		next.Blocks[i].ClearEmoji(now)
		cleared++
	}
	if cleared == 0 {
		return 0, nil
	}

	prior := s.board.Blocks
	if err := s.commit(ctx, next); err != nil {
		return 0, err
	}
	s.history.Push("clear emoji", prior)
	return cleared, nil
}

// Undo restores the most recent block snapshot. Snapshots only capture
// blocks, so a snapshot taken before a structural change may reference cells
// that no longer exist; those blocks are dropped on restore to keep every
// coordinate resolvable.
func (s *Service) Undo(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.history.Pop()
	if !ok {
		return "", ErrNothingToUndo
	}

	next := s.board.Clone()
	restored := make([]domain.Block, 0, len(entry.Blocks))
	for _, block := range entry.Blocks {
		if !next.HasCoordinate(block.Coord) {
			continue
		}
		restored = append(restored, block)
	}
	next.Blocks = restored
	if err := s.commit(ctx, next); err != nil {
		return "", err
	}
	return entry.Label, nil
}

// UndoDepth returns the number of stacked undo snapshots.
func (s *Service) UndoDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Len()
}

// commit validates, persists, and installs the next board. Callers hold the
// lock.
func (s *Service) commit(ctx context.Context, next domain.Board) error {
	if err := next.Validate(); err != nil {
		return err
	}
	if err := s.repo.SaveBoard(ctx, next); err != nil {
		return err
	}
	s.board = next
	return nil
}
