package domain

import (
	"fmt"
	"strings"
	"time"
)

// Coordinate identifies the column a block is placed in. Both fields are
// positional indices into the board's phase sequence and that phase's
// column sequence; neither is a stable identifier.
type Coordinate struct {
	Phase  int `json:"phase_index"`
	Column int `json:"column_index"`
}

// Column represents column data used by this package.
type Column struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Image     string    `json:"image,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Phase represents phase data used by this package. Its position in the
// board's phase sequence is its phase index; the index is never stored on
// the phase itself.
type Phase struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Collapsed bool      `json:"collapsed"`
	Columns   []Column  `json:"columns"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Board is the aggregate root: ordered phases plus the flat, order-significant
// block sequence. Blocks sharing a coordinate take their within-column order
// from their relative order in Blocks; there is no per-column rank field.
type Board struct {
	Phases []Phase `json:"phases"`
	Blocks []Block `json:"blocks"`
}

// NewColumn constructs a new value for this package.
func NewColumn(id, name string, now time.Time) (Column, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" {
		return Column{}, ErrInvalidID
	}
	if name == "" {
		return Column{}, ErrInvalidName
	}
	return Column{
		ID:        id,
		Name:      name,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// NewPhase constructs a new value for this package.
func NewPhase(id, name string, now time.Time) (Phase, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" {
		return Phase{}, ErrInvalidID
	}
	if name == "" {
		return Phase{}, ErrInvalidName
	}
	return Phase{
		ID:        id,
		Name:      name,
		Columns:   []Column{},
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// Rename renames the requested operation.
func (p *Phase) Rename(name string, now time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	p.Name = name
	p.UpdatedAt = now.UTC()
	return nil
}

// ToggleCollapsed flips the collapsed display state.
func (p *Phase) ToggleCollapsed(now time.Time) {
	p.Collapsed = !p.Collapsed
	p.UpdatedAt = now.UTC()
}

// Rename renames the requested operation.
func (c *Column) Rename(name string, now time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	c.Name = name
	c.UpdatedAt = now.UTC()
	return nil
}

// HasCoordinate reports whether coord resolves to an existing phase/column.
func (b Board) HasCoordinate(coord Coordinate) bool {
	if coord.Phase < 0 || coord.Phase >= len(b.Phases) {
		return false
	}
	return coord.Column >= 0 && coord.Column < len(b.Phases[coord.Phase].Columns)
}

// ColumnAt returns the column at coord.
func (b Board) ColumnAt(coord Coordinate) (Column, bool) {
	if !b.HasCoordinate(coord) {
		return Column{}, false
	}
	return b.Phases[coord.Phase].Columns[coord.Column], true
}

// BlockByID returns the block with the given id and its position in the
// flat sequence.
func (b Board) BlockByID(id string) (Block, int, bool) {
	for idx, block := range b.Blocks {
		if block.ID == id {
			return block, idx, true
		}
	}
	return Block{}, -1, false
}

// BlocksAt returns the blocks placed at coord in their flat-sequence order.
func (b Board) BlocksAt(coord Coordinate) []Block {
	out := make([]Block, 0)
	for _, block := range b.Blocks {
		if block.Coord == coord {
			out = append(out, block)
		}
	}
	return out
}

// Validate checks the placement invariants: every block coordinate resolves
// to an existing phase/column and no id is used twice.
func (b Board) Validate() error {
	seenPhase := map[string]struct{}{}
	seenColumn := map[string]struct{}{}
	for idx, phase := range b.Phases {
		if strings.TrimSpace(phase.ID) == "" {
			return fmt.Errorf("phase %d: %w", idx, ErrInvalidID)
		}
		if _, ok := seenPhase[phase.ID]; ok {
			return fmt.Errorf("phase %q: %w", phase.ID, ErrDuplicateID)
		}
		seenPhase[phase.ID] = struct{}{}
		for colIdx, column := range phase.Columns {
			if strings.TrimSpace(column.ID) == "" {
				return fmt.Errorf("phase %d column %d: %w", idx, colIdx, ErrInvalidID)
			}
			if _, ok := seenColumn[column.ID]; ok {
				return fmt.Errorf("column %q: %w", column.ID, ErrDuplicateID)
			}
			seenColumn[column.ID] = struct{}{}
		}
	}

	seenBlock := map[string]struct{}{}
	for idx, block := range b.Blocks {
		if strings.TrimSpace(block.ID) == "" {
			return fmt.Errorf("block %d: %w", idx, ErrInvalidID)
		}
		if _, ok := seenBlock[block.ID]; ok {
			return fmt.Errorf("block %q: %w", block.ID, ErrDuplicateID)
		}
		seenBlock[block.ID] = struct{}{}
		if !b.HasCoordinate(block.Coord) {
			return fmt.Errorf("block %q at (%d,%d): %w", block.ID, block.Coord.Phase, block.Coord.Column, ErrInvalidCoordinate)
		}
	}
	return nil
}

// Clone deep-copies the board so engine output never aliases committed state.
func (b Board) Clone() Board {
	out := Board{
		Phases: make([]Phase, len(b.Phases)),
		Blocks: make([]Block, len(b.Blocks)),
	}
	for idx, phase := range b.Phases {
		cloned := phase
		cloned.Columns = append([]Column(nil), phase.Columns...)
		out.Phases[idx] = cloned
	}
	for idx, block := range b.Blocks {
		out.Blocks[idx] = block.Clone()
	}
	return out
}
