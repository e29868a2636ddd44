package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Board    BoardConfig    `toml:"board"`
	Undo     UndoConfig     `toml:"undo"`
	Poll     PollConfig     `toml:"poll"`
	Keys     KeyConfig      `toml:"keys"`
	Server   ServerConfig   `toml:"server"`
	Logging  LoggingConfig  `toml:"logging"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type BoardConfig struct {
	Departments  []string      `toml:"departments"`
	Phases       []PhaseConfig `toml:"phases"`
	SettleMillis int           `toml:"settle_ms"`
}

type PhaseConfig struct {
	Name    string   `toml:"name"`
	Columns []string `toml:"columns"`
}

type UndoConfig struct {
	Depth int `toml:"depth"`
}

type PollConfig struct {
	Enabled         bool `toml:"enabled"`
	IntervalSeconds int  `toml:"interval_seconds"`
}

type KeyConfig struct {
	Palette   string `toml:"palette"`
	Grab      string `toml:"grab"`
	Duplicate string `toml:"duplicate"`
	Trash     string `toml:"trash"`
	Undo      string `toml:"undo"`
	Filter    string `toml:"filter"`
	Collapse  string `toml:"collapse"`
}

type ServerConfig struct {
	Addr         string `toml:"addr"`
	EndpointPath string `toml:"endpoint_path"`
}

type LoggingConfig struct {
	Level   string       `toml:"level"`
	DevFile DevLogConfig `toml:"dev_file"`
}

type DevLogConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

func defaultPhases() []PhaseConfig {
	return []PhaseConfig{
		{Name: "Discover", Columns: []string{"Entry", "Research"}},
		{Name: "Deliver", Columns: []string{"Build", "Handoff"}},
	}
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Board: BoardConfig{
			Departments:  []string{},
			Phases:       defaultPhases(),
			SettleMillis: 150,
		},
		Undo: UndoConfig{
			Depth: 5,
		},
		Poll: PollConfig{
			Enabled:         false,
			IntervalSeconds: 5,
		},
		Keys: KeyConfig{
			Palette:   "p",
			Grab:      " ",
			Duplicate: "y",
			Trash:     "x",
			Undo:      "z",
			Filter:    "f",
			Collapse:  "c",
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1:8822",
			EndpointPath: "/mcp",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	c.Database.Path = strings.TrimSpace(c.Database.Path)
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Board.SettleMillis < 0 {
		return fmt.Errorf("board.settle_ms must be >= 0, got %d", c.Board.SettleMillis)
	}
	seenDept := map[string]struct{}{}
	for idx, dept := range c.Board.Departments {
		dept = strings.TrimSpace(strings.ToLower(dept))
		if dept == "" {
			return fmt.Errorf("board.departments[%d] is empty", idx)
		}
		if _, ok := seenDept[dept]; ok {
			return fmt.Errorf("board.departments[%d] is duplicated: %s", idx, dept)
		}
		seenDept[dept] = struct{}{}
	}

	if len(c.Board.Phases) == 0 {
		return errors.New("board.phases must include at least one phase")
	}
	seenPhase := map[string]struct{}{}
	for idx, phase := range c.Board.Phases {
		name := strings.TrimSpace(phase.Name)
		if name == "" {
			return fmt.Errorf("board.phases[%d].name is required", idx)
		}
		if _, ok := seenPhase[name]; ok {
			return fmt.Errorf("board.phases[%d].name is duplicated: %s", idx, name)
		}
		seenPhase[name] = struct{}{}
		for j, col := range phase.Columns {
			if strings.TrimSpace(col) == "" {
				return fmt.Errorf("board.phases[%d].columns[%d] is empty", idx, j)
			}
		}
	}

	if c.Undo.Depth < 0 {
		return fmt.Errorf("undo.depth must be >= 0, got %d", c.Undo.Depth)
	}
	if c.Poll.Enabled && c.Poll.IntervalSeconds <= 0 {
		return fmt.Errorf("poll.interval_seconds must be > 0 when polling is enabled, got %d", c.Poll.IntervalSeconds)
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server.addr is required")
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		return errors.New("logging.level is required")
	}

	return nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
