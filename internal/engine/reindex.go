// Package engine is the board layout and reorder core: pure transformations
// over a board's phase sequence and flat block sequence. Every function
// returns fresh slices and never mutates its input, so a host can treat the
// output as a whole-collection replacement and a cancelled operation as a
// strict no-op.
package engine

import (
	"fmt"

	"github.com/hylla/ritning/internal/domain"
)

// mustPhase asserts that idx resolves to a phase. Call sites derive indices
// from the current board, so a miss is a programming defect, not input error.
func mustPhase(phases []domain.Phase, idx int) {
	if idx < 0 || idx >= len(phases) {
		panic(fmt.Sprintf("engine: phase index %d out of range [0,%d)", idx, len(phases)))
	}
}

// mustColumn asserts that coord resolves to a column of an existing phase.
func mustColumn(phases []domain.Phase, coord domain.Coordinate) {
	mustPhase(phases, coord.Phase)
	cols := phases[coord.Phase].Columns
	if coord.Column < 0 || coord.Column >= len(cols) {
		panic(fmt.Sprintf("engine: column index %d out of range [0,%d) in phase %d", coord.Column, len(cols), coord.Phase))
	}
}

// clonePhases copies the phase sequence including each phase's column slice.
func clonePhases(phases []domain.Phase) []domain.Phase {
	out := make([]domain.Phase, len(phases))
	for idx, phase := range phases {
		cloned := phase
		cloned.Columns = append([]domain.Column(nil), phase.Columns...)
		out[idx] = cloned
	}
	return out
}

// cloneBlocks copies the flat block sequence.
func cloneBlocks(blocks []domain.Block) []domain.Block {
	out := make([]domain.Block, len(blocks))
	for idx, block := range blocks {
		out[idx] = block.Clone()
	}
	return out
}

// MoveColumn splices the column at from out of its phase and inserts it at
// to, then rewrites every affected block coordinate: blocks of the moved
// column follow it exactly, later siblings in the source phase shift down,
// and columns at or after the insertion point in the destination phase shift
// up. The decrement is computed from the pre-move index before the increment
// applies, which is what keeps the same-phase case correct.
func MoveColumn(phases []domain.Phase, blocks []domain.Block, from, to domain.Coordinate) ([]domain.Phase, []domain.Block) {
	mustColumn(phases, from)
	mustPhase(phases, to.Phase)

	newPhases := clonePhases(phases)
	moved := newPhases[from.Phase].Columns[from.Column]
	newPhases[from.Phase].Columns = append(
		newPhases[from.Phase].Columns[:from.Column],
		newPhases[from.Phase].Columns[from.Column+1:]...,
	)

	destCols := newPhases[to.Phase].Columns
	if to.Column < 0 || to.Column > len(destCols) {
		panic(fmt.Sprintf("engine: insertion index %d out of range [0,%d] in phase %d", to.Column, len(destCols), to.Phase))
	}
	destCols = append(destCols[:to.Column], append([]domain.Column{moved}, destCols[to.Column:]...)...)
	newPhases[to.Phase].Columns = destCols

	newBlocks := cloneBlocks(blocks)
	for idx := range newBlocks {
		coord := newBlocks[idx].Coord
		if coord == from {
			newBlocks[idx].Coord = to
			continue
		}
		if coord.Phase == from.Phase && coord.Column > from.Column {
			coord.Column--
		}
		if coord.Phase == to.Phase && coord.Column >= to.Column {
			coord.Column++
		}
		newBlocks[idx].Coord = coord
	}
	return newPhases, newBlocks
}

// DeleteColumn splices the column at the coordinate out of its phase, drops
// every block placed in it, and shifts later siblings' column indices down.
func DeleteColumn(phases []domain.Phase, blocks []domain.Block, at domain.Coordinate) ([]domain.Phase, []domain.Block) {
	mustColumn(phases, at)

	newPhases := clonePhases(phases)
	newPhases[at.Phase].Columns = append(
		newPhases[at.Phase].Columns[:at.Column],
		newPhases[at.Phase].Columns[at.Column+1:]...,
	)

	newBlocks := make([]domain.Block, 0, len(blocks))
	for _, block := range blocks {
		if block.Coord == at {
			continue
		}
		kept := block.Clone()
		if kept.Coord.Phase == at.Phase && kept.Coord.Column > at.Column {
			kept.Coord.Column--
		}
		newBlocks = append(newBlocks, kept)
	}
	return newPhases, newBlocks
}

// DeletePhase splices the phase out, drops every block placed in it, and
// shifts later phases' indices down.
func DeletePhase(phases []domain.Phase, blocks []domain.Block, phase int) ([]domain.Phase, []domain.Block) {
	mustPhase(phases, phase)

	newPhases := clonePhases(phases)
	newPhases = append(newPhases[:phase], newPhases[phase+1:]...)

	newBlocks := make([]domain.Block, 0, len(blocks))
	for _, block := range blocks {
		if block.Coord.Phase == phase {
			continue
		}
		kept := block.Clone()
		if kept.Coord.Phase > phase {
			kept.Coord.Phase--
		}
		newBlocks = append(newBlocks, kept)
	}
	return newPhases, newBlocks
}

// MovePhase swaps the phases at a and b. Blocks are transposed, not shifted:
// blocks at a become b and vice versa, all others are untouched.
func MovePhase(phases []domain.Phase, blocks []domain.Block, a, b int) ([]domain.Phase, []domain.Block) {
	mustPhase(phases, a)
	mustPhase(phases, b)

	newPhases := clonePhases(phases)
	newPhases[a], newPhases[b] = newPhases[b], newPhases[a]

	newBlocks := cloneBlocks(blocks)
	for idx := range newBlocks {
		switch newBlocks[idx].Coord.Phase {
		case a:
			newBlocks[idx].Coord.Phase = b
		case b:
			newBlocks[idx].Coord.Phase = a
		}
	}
	return newPhases, newBlocks
}
