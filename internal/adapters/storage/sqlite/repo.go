package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hylla/ritning/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// Repository persists whole boards. Every save rewrites the phase, column,
// and block tables inside one transaction; the position and seq columns
// encode the display order the domain carries in slice order.
type Repository struct {
	db *sql.DB
}

// Open opens the requested operation.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens in memory.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, "file::memory:?cache=shared")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS phases (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			collapsed INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS columns_v1 (
			id TEXT PRIMARY KEY,
			phase_position INTEGER NOT NULL,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			image TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS blocks (
			id TEXT PRIMARY KEY,
			seq INTEGER NOT NULL,
			type TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			phase_index INTEGER NOT NULL,
			column_index INTEGER NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			emoji_json TEXT NOT NULL DEFAULT '[]',
			department TEXT NOT NULL DEFAULT '',
			flagged INTEGER NOT NULL DEFAULT 0,
			attachments_json TEXT NOT NULL DEFAULT '[]',
			comments_json TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_columns_phase_position ON columns_v1(phase_position, position);`,
		`CREATE INDEX IF NOT EXISTS idx_blocks_seq ON blocks(seq);`,
		`CREATE INDEX IF NOT EXISTS idx_blocks_cell ON blocks(phase_index, column_index, seq);`,
	}

	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// SaveBoard replaces the persisted board wholesale.
func (r *Repository) SaveBoard(ctx context.Context, board domain.Board) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"blocks", "columns_v1", "phases"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for pos, phase := range board.Phases {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO phases(id, position, name, collapsed, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, phase.ID, pos, phase.Name, boolToInt(phase.Collapsed), ts(phase.CreatedAt), ts(phase.UpdatedAt)); err != nil {
			return fmt.Errorf("insert phase: %w", err)
		}
		for colPos, column := range phase.Columns {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO columns_v1(id, phase_position, position, name, image, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, column.ID, pos, colPos, column.Name, column.Image, ts(column.CreatedAt), ts(column.UpdatedAt)); err != nil {
				return fmt.Errorf("insert column: %w", err)
			}
		}
	}

	for seq, block := range board.Blocks {
		emojiJSON, err := json.Marshal(emptySlice(block.Emoji))
		if err != nil {
			return fmt.Errorf("encode block emoji: %w", err)
		}
		attachmentsJSON, err := json.Marshal(emptySlice(block.Attachments))
		if err != nil {
			return fmt.Errorf("encode block attachments: %w", err)
		}
		commentsJSON, err := json.Marshal(emptyComments(block.Comments))
		if err != nil {
			return fmt.Errorf("encode block comments: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO blocks(
				id, seq, type, content, phase_index, column_index, notes,
				emoji_json, department, flagged, attachments_json, comments_json,
				created_at, updated_at
			)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, block.ID, seq, string(block.Type), block.Content, block.Coord.Phase, block.Coord.Column,
			block.Notes, string(emojiJSON), block.Department, boolToInt(block.Flagged),
			string(attachmentsJSON), string(commentsJSON), ts(block.CreatedAt), ts(block.UpdatedAt)); err != nil {
			return fmt.Errorf("insert block: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// LoadBoard returns the persisted board in display order. An empty store
// yields an empty board, not an error.
func (r *Repository) LoadBoard(ctx context.Context) (domain.Board, error) {
	phases, err := r.loadPhases(ctx)
	if err != nil {
		return domain.Board{}, err
	}
	blocks, err := r.loadBlocks(ctx)
	if err != nil {
		return domain.Board{}, err
	}
	return domain.Board{Phases: phases, Blocks: blocks}, nil
}

// loadPhases handles load phases.
func (r *Repository) loadPhases(ctx context.Context) ([]domain.Phase, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, position, name, collapsed, created_at, updated_at
		FROM phases
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	phases := []domain.Phase{}
	for rows.Next() {
		var (
			phase      domain.Phase
			position   int
			collapsed  int
			createdRaw string
			updatedRaw string
		)
		if err := rows.Scan(&phase.ID, &position, &phase.Name, &collapsed, &createdRaw, &updatedRaw); err != nil {
			return nil, err
		}
		phase.Collapsed = collapsed != 0
		phase.CreatedAt = parseTS(createdRaw)
		phase.UpdatedAt = parseTS(updatedRaw)
		phases = append(phases, phase)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	colRows, err := r.db.QueryContext(ctx, `
		SELECT id, phase_position, position, name, image, created_at, updated_at
		FROM columns_v1
		ORDER BY phase_position ASC, position ASC
	`)
	if err != nil {
		return nil, err
	}
	defer colRows.Close()

	for colRows.Next() {
		var (
			column        domain.Column
			phasePosition int
			position      int
			createdRaw    string
			updatedRaw    string
		)
		if err := colRows.Scan(&column.ID, &phasePosition, &position, &column.Name, &column.Image, &createdRaw, &updatedRaw); err != nil {
			return nil, err
		}
		if phasePosition < 0 || phasePosition >= len(phases) {
			return nil, fmt.Errorf("column %q references unknown phase position %d", column.ID, phasePosition)
		}
		column.CreatedAt = parseTS(createdRaw)
		column.UpdatedAt = parseTS(updatedRaw)
		phases[phasePosition].Columns = append(phases[phasePosition].Columns, column)
	}
	if err := colRows.Err(); err != nil {
		return nil, err
	}
	return phases, nil
}

// loadBlocks handles load blocks.
func (r *Repository) loadBlocks(ctx context.Context) ([]domain.Block, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, content, phase_index, column_index, notes,
			emoji_json, department, flagged, attachments_json, comments_json,
			created_at, updated_at
		FROM blocks
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	blocks := []domain.Block{}
	for rows.Next() {
		var (
			block           domain.Block
			typeRaw         string
			flagged         int
			emojiJSON       string
			attachmentsJSON string
			commentsJSON    string
			createdRaw      string
			updatedRaw      string
		)
		if err := rows.Scan(
			&block.ID, &typeRaw, &block.Content, &block.Coord.Phase, &block.Coord.Column,
			&block.Notes, &emojiJSON, &block.Department, &flagged,
			&attachmentsJSON, &commentsJSON, &createdRaw, &updatedRaw,
		); err != nil {
			return nil, err
		}
		block.Type = domain.BlockType(typeRaw)
		if !block.Type.Valid() {
			return nil, fmt.Errorf("decode block type %q: %w", typeRaw, domain.ErrInvalidBlockType)
		}
		block.Flagged = flagged != 0
		if err := json.Unmarshal([]byte(emojiJSON), &block.Emoji); err != nil {
			return nil, fmt.Errorf("decode block emoji: %w", err)
		}
		if err := json.Unmarshal([]byte(attachmentsJSON), &block.Attachments); err != nil {
			return nil, fmt.Errorf("decode block attachments: %w", err)
		}
		if err := json.Unmarshal([]byte(commentsJSON), &block.Comments); err != nil {
			return nil, fmt.Errorf("decode block comments: %w", err)
		}
		if len(block.Emoji) == 0 {
			block.Emoji = nil
		}
		if len(block.Attachments) == 0 {
			block.Attachments = nil
		}
		if len(block.Comments) == 0 {
			block.Comments = nil
		}
		block.CreatedAt = parseTS(createdRaw)
		block.UpdatedAt = parseTS(updatedRaw)
		blocks = append(blocks, block)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return blocks, nil
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}

// boolToInt handles bool to int.
func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// emptySlice handles empty slice.
func emptySlice(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

// emptyComments handles empty comments.
func emptyComments(in []domain.Comment) []domain.Comment {
	if in == nil {
		return []domain.Comment{}
	}
	return in
}
