package engine

import "github.com/hylla/ritning/internal/domain"

// Filter narrows which blocks of a column are visible to the host's display
// (department or type filters). The locator applies it before interpreting a
// display-relative index, because the index counts visible rows only.
type Filter func(domain.Block) bool

// InsertionIndex translates "drop at visual position displayIndex within the
// column at dest" into an absolute splice index in the flat block sequence.
//
// The flat sequence is the single source of within-column order, so the
// splice point must land relative to the dragged-over neighbors: position 0
// means "before the column's first block in the full sequence", position K
// means "immediately after the K-th visible block of that column". When the
// position cannot be resolved (empty column, stale index after a concurrent
// structural change) the block is appended at the end of the sequence rather
// than failing the drop.
func InsertionIndex(blocks []domain.Block, dest domain.Coordinate, displayIndex int, filter Filter) int {
	if displayIndex <= 0 {
		for idx, block := range blocks {
			if block.Coord == dest {
				return idx
			}
		}
		return len(blocks)
	}

	seen := 0
	for idx, block := range blocks {
		if block.Coord != dest {
			continue
		}
		if filter != nil && !filter(block) {
			continue
		}
		seen++
		if seen == displayIndex {
			return idx + 1
		}
	}
	return len(blocks)
}

// spliceBlock inserts block at the absolute index, clamping to the sequence
// bounds.
func spliceBlock(blocks []domain.Block, block domain.Block, at int) []domain.Block {
	if at < 0 {
		at = 0
	}
	if at > len(blocks) {
		at = len(blocks)
	}
	out := make([]domain.Block, 0, len(blocks)+1)
	out = append(out, blocks[:at]...)
	out = append(out, block)
	out = append(out, blocks[at:]...)
	return out
}

// removeBlockAt drops the block at the absolute index.
func removeBlockAt(blocks []domain.Block, at int) []domain.Block {
	out := make([]domain.Block, 0, len(blocks)-1)
	out = append(out, blocks[:at]...)
	out = append(out, blocks[at+1:]...)
	return out
}
