package domain

import (
	"slices"
	"strings"
	"time"
)

// BlockType enumerates the service-blueprint palette vocabulary.
type BlockType string

const (
	BlockRole       BlockType = "role"
	BlockAction     BlockType = "action"
	BlockTouchpoint BlockType = "touchpoint"
	BlockSystem     BlockType = "system"
	BlockPolicy     BlockType = "policy"
	BlockNote       BlockType = "note"
)

var validBlockTypes = []BlockType{
	BlockRole, BlockAction, BlockTouchpoint, BlockSystem, BlockPolicy, BlockNote,
}

// blockTypeDefaults holds the default content minted for palette drops.
var blockTypeDefaults = map[BlockType]string{
	BlockRole:       "New role",
	BlockAction:     "New action",
	BlockTouchpoint: "New touchpoint",
	BlockSystem:     "New system",
	BlockPolicy:     "New policy",
	BlockNote:       "",
}

// ValidBlockTypes returns the palette vocabulary in display order.
func ValidBlockTypes() []BlockType {
	return append([]BlockType(nil), validBlockTypes...)
}

// DefaultContent returns the content a palette drop of this type starts with.
func (t BlockType) DefaultContent() string {
	return blockTypeDefaults[t]
}

// Valid reports whether t names a known block type.
func (t BlockType) Valid() bool {
	return slices.Contains(validBlockTypes, t)
}

// Comment represents comment data used by this package.
type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Block is an atomic content unit. It lives in the board's flat block
// sequence and carries an explicit coordinate rather than being nested
// inside its column, so it can be filtered globally while staying placeable.
type Block struct {
	ID          string     `json:"id"`
	Type        BlockType  `json:"type"`
	Content     string     `json:"content"`
	Coord       Coordinate `json:"coord"`
	Notes       string     `json:"notes,omitempty"`
	Emoji       []string   `json:"emoji,omitempty"`
	Department  string     `json:"department,omitempty"`
	Flagged     bool       `json:"flagged,omitempty"`
	Attachments []string   `json:"attachments,omitempty"`
	Comments    []Comment  `json:"comments,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// BlockInput holds input values for block construction.
type BlockInput struct {
	ID         string
	Type       BlockType
	Content    string
	Coord      Coordinate
	Department string
}

// NewBlock constructs a new value for this package.
func NewBlock(in BlockInput, now time.Time) (Block, error) {
	in.ID = strings.TrimSpace(in.ID)
	if in.ID == "" {
		return Block{}, ErrInvalidID
	}
	if !in.Type.Valid() {
		return Block{}, ErrInvalidBlockType
	}
	if in.Coord.Phase < 0 || in.Coord.Column < 0 {
		return Block{}, ErrInvalidCoordinate
	}
	return Block{
		ID:         in.ID,
		Type:       in.Type,
		Content:    in.Content,
		Coord:      in.Coord,
		Department: strings.TrimSpace(in.Department),
		CreatedAt:  now.UTC(),
		UpdatedAt:  now.UTC(),
	}, nil
}

// SetContent handles set content.
func (b *Block) SetContent(content string, now time.Time) {
	b.Content = content
	b.UpdatedAt = now.UTC()
}

// AddEmoji appends one emoji reaction, de-duplicating.
func (b *Block) AddEmoji(emoji string, now time.Time) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || slices.Contains(b.Emoji, emoji) {
		return
	}
	b.Emoji = append(b.Emoji, emoji)
	b.UpdatedAt = now.UTC()
}

// ClearEmoji drops all emoji reactions.
func (b *Block) ClearEmoji(now time.Time) {
	if len(b.Emoji) == 0 {
		return
	}
	b.Emoji = nil
	b.UpdatedAt = now.UTC()
}

// Clone deep-copies the block including its auxiliary slices.
func (b Block) Clone() Block {
	out := b
	if b.Emoji != nil {
		out.Emoji = append([]string(nil), b.Emoji...)
	}
	if b.Attachments != nil {
		out.Attachments = append([]string(nil), b.Attachments...)
	}
	if b.Comments != nil {
		out.Comments = append([]Comment(nil), b.Comments...)
	}
	return out
}

// CloneWith mints a duplicate with a fresh identity at a new coordinate.
// The copy keeps content and auxiliary fields; identity is never reused.
func (b Block) CloneWith(id string, coord Coordinate, now time.Time) Block {
	out := b.Clone()
	out.ID = id
	out.Coord = coord
	out.CreatedAt = now.UTC()
	out.UpdatedAt = now.UTC()
	return out
}
