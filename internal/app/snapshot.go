package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/ritning/internal/domain"
)

// SnapshotVersion defines a package constant value.
const SnapshotVersion = "ritning.snapshot.v1"

// Snapshot is the portable JSON form of a whole board. Slice order is
// load-bearing: phases, columns, and blocks are persisted in display order
// and the flat block sequence is the source of within-column order.
type Snapshot struct {
	Version    string          `json:"version"`
	ExportedAt time.Time       `json:"exported_at"`
	Phases     []SnapshotPhase `json:"phases"`
	Blocks     []SnapshotBlock `json:"blocks"`
}

// SnapshotPhase represents snapshot phase data used by this package.
type SnapshotPhase struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Collapsed bool             `json:"collapsed,omitempty"`
	Columns   []SnapshotColumn `json:"columns"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// SnapshotColumn represents snapshot column data used by this package.
type SnapshotColumn struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Image     string    `json:"image,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SnapshotBlock represents snapshot block data used by this package.
type SnapshotBlock struct {
	ID          string            `json:"id"`
	Type        domain.BlockType  `json:"type"`
	Content     string            `json:"content"`
	Coord       domain.Coordinate `json:"coord"`
	Notes       string            `json:"notes,omitempty"`
	Emoji       []string          `json:"emoji,omitempty"`
	Department  string            `json:"department,omitempty"`
	Flagged     bool              `json:"flagged,omitempty"`
	Attachments []string          `json:"attachments,omitempty"`
	Comments    []domain.Comment  `json:"comments,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// ExportSnapshot handles export snapshot.
func (s *Service) ExportSnapshot(ctx context.Context) (Snapshot, error) {
	board, err := s.repo.LoadBoard(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.clock().UTC(),
		Phases:     make([]SnapshotPhase, 0, len(board.Phases)),
		Blocks:     make([]SnapshotBlock, 0, len(board.Blocks)),
	}
	for _, phase := range board.Phases {
		snap.Phases = append(snap.Phases, snapshotPhaseFromDomain(phase))
	}
	for _, block := range board.Blocks {
		snap.Blocks = append(snap.Blocks, snapshotBlockFromDomain(block))
	}
	return snap, nil
}

// ImportSnapshot replaces the whole persisted board with the snapshot
// contents. Import is all-or-nothing: an invalid snapshot changes nothing.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}

	board := domain.Board{
		Phases: make([]domain.Phase, 0, len(snap.Phases)),
		Blocks: make([]domain.Block, 0, len(snap.Blocks)),
	}
	for _, phase := range snap.Phases {
		board.Phases = append(board.Phases, phase.toDomain())
	}
	for _, block := range snap.Blocks {
		board.Blocks = append(board.Blocks, block.toDomain())
	}
	if err := board.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.SaveBoard(ctx, board); err != nil {
		return err
	}
	s.board = board
	return nil
}

// Validate validates the requested operation.
func (s *Snapshot) Validate() error {
	if s.Version != "" && s.Version != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version: %q", s.Version)
	}

	phaseIDs := map[string]struct{}{}
	columnIDs := map[string]struct{}{}
	for i, p := range s.Phases {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("phases[%d].id is required", i)
		}
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("phases[%d].name is required", i)
		}
		if p.CreatedAt.IsZero() || p.UpdatedAt.IsZero() {
			return fmt.Errorf("phases[%d] timestamps are required", i)
		}
		if _, exists := phaseIDs[p.ID]; exists {
			return fmt.Errorf("duplicate phase id: %q", p.ID)
		}
		phaseIDs[p.ID] = struct{}{}

		for j, c := range p.Columns {
			if strings.TrimSpace(c.ID) == "" {
				return fmt.Errorf("phases[%d].columns[%d].id is required", i, j)
			}
			if strings.TrimSpace(c.Name) == "" {
				return fmt.Errorf("phases[%d].columns[%d].name is required", i, j)
			}
			if c.CreatedAt.IsZero() || c.UpdatedAt.IsZero() {
				return fmt.Errorf("phases[%d].columns[%d] timestamps are required", i, j)
			}
			if _, exists := columnIDs[c.ID]; exists {
				return fmt.Errorf("duplicate column id: %q", c.ID)
			}
			columnIDs[c.ID] = struct{}{}
		}
	}

	blockIDs := map[string]struct{}{}
	for i, b := range s.Blocks {
		if strings.TrimSpace(b.ID) == "" {
			return fmt.Errorf("blocks[%d].id is required", i)
		}
		if !b.Type.Valid() {
			return fmt.Errorf("blocks[%d].type invalid: %q", i, b.Type)
		}
		if b.Coord.Phase < 0 || b.Coord.Phase >= len(s.Phases) {
			return fmt.Errorf("blocks[%d] references unknown phase index %d", i, b.Coord.Phase)
		}
		if b.Coord.Column < 0 || b.Coord.Column >= len(s.Phases[b.Coord.Phase].Columns) {
			return fmt.Errorf("blocks[%d] references unknown column index %d in phase %d", i, b.Coord.Column, b.Coord.Phase)
		}
		if b.CreatedAt.IsZero() || b.UpdatedAt.IsZero() {
			return fmt.Errorf("blocks[%d] timestamps are required", i)
		}
		if _, exists := blockIDs[b.ID]; exists {
			return fmt.Errorf("duplicate block id: %q", b.ID)
		}
		blockIDs[b.ID] = struct{}{}
	}

	return nil
}

// snapshotPhaseFromDomain handles snapshot phase from domain.
func snapshotPhaseFromDomain(p domain.Phase) SnapshotPhase {
	out := SnapshotPhase{
		ID:        p.ID,
		Name:      p.Name,
		Collapsed: p.Collapsed,
		Columns:   make([]SnapshotColumn, 0, len(p.Columns)),
		CreatedAt: p.CreatedAt.UTC(),
		UpdatedAt: p.UpdatedAt.UTC(),
	}
	for _, c := range p.Columns {
		out.Columns = append(out.Columns, SnapshotColumn{
			ID:        c.ID,
			Name:      c.Name,
			Image:     c.Image,
			CreatedAt: c.CreatedAt.UTC(),
			UpdatedAt: c.UpdatedAt.UTC(),
		})
	}
	return out
}

// snapshotBlockFromDomain handles snapshot block from domain.
func snapshotBlockFromDomain(b domain.Block) SnapshotBlock {
	return SnapshotBlock{
		ID:          b.ID,
		Type:        b.Type,
		Content:     b.Content,
		Coord:       b.Coord,
		Notes:       b.Notes,
		Emoji:       append([]string(nil), b.Emoji...),
		Department:  b.Department,
		Flagged:     b.Flagged,
		Attachments: append([]string(nil), b.Attachments...),
		Comments:    append([]domain.Comment(nil), b.Comments...),
		CreatedAt:   b.CreatedAt.UTC(),
		UpdatedAt:   b.UpdatedAt.UTC(),
	}
}

// toDomain converts domain.
func (p SnapshotPhase) toDomain() domain.Phase {
	out := domain.Phase{
		ID:        strings.TrimSpace(p.ID),
		Name:      strings.TrimSpace(p.Name),
		Collapsed: p.Collapsed,
		Columns:   make([]domain.Column, 0, len(p.Columns)),
		CreatedAt: p.CreatedAt.UTC(),
		UpdatedAt: p.UpdatedAt.UTC(),
	}
	for _, c := range p.Columns {
		out.Columns = append(out.Columns, domain.Column{
			ID:        strings.TrimSpace(c.ID),
			Name:      strings.TrimSpace(c.Name),
			Image:     c.Image,
			CreatedAt: c.CreatedAt.UTC(),
			UpdatedAt: c.UpdatedAt.UTC(),
		})
	}
	return out
}

// toDomain converts domain.
func (b SnapshotBlock) toDomain() domain.Block {
	return domain.Block{
		ID:          strings.TrimSpace(b.ID),
		Type:        b.Type,
		Content:     b.Content,
		Coord:       b.Coord,
		Notes:       b.Notes,
		Emoji:       append([]string(nil), b.Emoji...),
		Department:  strings.TrimSpace(b.Department),
		Flagged:     b.Flagged,
		Attachments: append([]string(nil), b.Attachments...),
		Comments:    append([]domain.Comment(nil), b.Comments...),
		CreatedAt:   b.CreatedAt.UTC(),
		UpdatedAt:   b.UpdatedAt.UTC(),
	}
}
