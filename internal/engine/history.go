package engine

import "github.com/hylla/ritning/internal/domain"

// DefaultHistoryDepth bounds the undo stack when no depth is configured.
const DefaultHistoryDepth = 5

// HistoryEntry is one undoable snapshot of the flat block sequence. Only
// blocks are captured: the structural mutations that change phases and
// columns are not undoable, matching the bulk-operation scope.
type HistoryEntry struct {
	Label  string
	Blocks []domain.Block
}

// History is a bounded stack of block-sequence snapshots taken before
// destructive bulk operations. When the stack is full the oldest snapshot is
// discarded, so the depth bounds memory regardless of session length.
type History struct {
	depth   int
	entries []HistoryEntry
}

// NewHistory constructs a new value for this package.
func NewHistory(depth int) *History {
	if depth <= 0 {
		depth = DefaultHistoryDepth
	}
	return &History{depth: depth}
}

// Push records a snapshot of blocks under the given label. The snapshot is a
// deep copy, so later mutations of the live sequence cannot corrupt it.
func (h *History) Push(label string, blocks []domain.Block) {
	entry := HistoryEntry{Label: label, Blocks: cloneBlocks(blocks)}
	h.entries = append(h.entries, entry)
	if len(h.entries) > h.depth {
		h.entries = h.entries[len(h.entries)-h.depth:]
	}
}

// Pop removes and returns the most recent snapshot. The second return is
// false when the stack is empty.
func (h *History) Pop() (HistoryEntry, bool) {
	if len(h.entries) == 0 {
		return HistoryEntry{}, false
	}
	last := h.entries[len(h.entries)-1]
	h.entries = h.entries[:len(h.entries)-1]
	return last, true
}

// Peek returns the most recent snapshot's label without removing it.
func (h *History) Peek() (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	return h.entries[len(h.entries)-1].Label, true
}

// Len returns the number of stacked snapshots.
func (h *History) Len() int {
	return len(h.entries)
}
