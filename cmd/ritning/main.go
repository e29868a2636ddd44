package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	charmLog "github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hylla/ritning/internal/adapters/server/mcpapi"
	"github.com/hylla/ritning/internal/adapters/storage/sqlite"
	"github.com/hylla/ritning/internal/app"
	"github.com/hylla/ritning/internal/config"
	"github.com/hylla/ritning/internal/domain"
	"github.com/hylla/ritning/internal/platform"
	"github.com/hylla/ritning/internal/tui"
)

// version stores a package-level helper value.
var version = "dev"

// main handles main.
func main() {
	if err := fang.Execute(context.Background(), newRootCmd(), fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

// rootOptions carries the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
}

// runtime bundles the resolved startup state every command needs.
type runtime struct {
	cfg    config.Config
	paths  platform.Paths
	logger *runtimeLogger
	repo   *sqlite.Repository
	svc    *app.Service
}

// newRootCmd builds the CLI tree. The bare command runs the board TUI.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("RITNING_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	defaultAppName := "ritning"
	if envApp := strings.TrimSpace(os.Getenv("RITNING_APP_NAME")); envApp != "" {
		defaultAppName = envApp
	}

	cmd := &cobra.Command{
		Use:           "ritning",
		Short:         "Blueprint board with grab-and-drop layout editing",
		Long:          "ritning renders blueprint documents as a board of phases and columns, routes grab-and-drop gestures through a layout engine, and persists every change to sqlite.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBoard(cmd.Context(), opts, cmd.ErrOrStderr())
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config TOML")
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	cmd.PersistentFlags().StringVar(&opts.appName, "app", defaultAppName, "application name for config/data path resolution")
	cmd.PersistentFlags().BoolVar(&opts.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")

	cmd.AddCommand(
		newPathsCmd(opts),
		newExportCmd(opts),
		newImportCmd(opts),
		newServeCmd(opts),
	)
	return cmd
}

// newPathsCmd prints the resolved config/data locations.
func newPathsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths",
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, configPath, dbPath, err := resolvePaths(opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", configPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", dbPath)
			return nil
		},
	}
}

// newExportCmd writes the board snapshot as JSON.
func newExportCmd(opts *rootOptions) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the board as a snapshot JSON document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(opts, cmd.ErrOrStderr(), "export")
			if err != nil {
				return err
			}
			defer rt.shutdown()

			snap, err := rt.svc.ExportSnapshot(cmd.Context())
			if err != nil {
				return fmt.Errorf("export snapshot: %w", err)
			}
			encoded, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return fmt.Errorf("encode snapshot json: %w", err)
			}
			encoded = append(encoded, '\n')

			if outPath == "-" {
				_, err := cmd.OutOrStdout().Write(encoded)
				return err
			}
			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return fmt.Errorf("create export output dir: %w", err)
			}
			return os.WriteFile(outPath, encoded, 0o644)
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	return cmd
}

// newImportCmd replaces the board from a snapshot JSON document.
func newImportCmd(opts *rootOptions) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the board from a snapshot JSON document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(inPath) == "" {
				return errors.New("--in is required")
			}
			rt, err := bootstrap(opts, cmd.ErrOrStderr(), "import")
			if err != nil {
				return err
			}
			defer rt.shutdown()

			content, err := os.ReadFile(inPath)
			if err != nil {
				return fmt.Errorf("read import file: %w", err)
			}
			var snap app.Snapshot
			if err := json.Unmarshal(content, &snap); err != nil {
				return fmt.Errorf("decode snapshot json: %w", err)
			}
			if err := rt.svc.ImportSnapshot(cmd.Context(), snap); err != nil {
				return fmt.Errorf("import snapshot: %w", err)
			}
			rt.logger.Info("snapshot imported", "path", inPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input snapshot JSON file")
	return cmd
}

// newServeCmd exposes the board over the MCP streamable HTTP transport.
func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the board over MCP streamable HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(opts, cmd.ErrOrStderr(), "serve")
			if err != nil {
				return err
			}
			defer rt.shutdown()

			if _, err := rt.svc.EnsureBoard(cmd.Context()); err != nil {
				return fmt.Errorf("ensure board: %w", err)
			}

			handler, err := mcpapi.NewHandler(mcpapi.Config{
				ServerName:    opts.appName,
				ServerVersion: version,
				EndpointPath:  rt.cfg.Server.EndpointPath,
			}, rt.svc)
			if err != nil {
				return fmt.Errorf("build mcp handler: %w", err)
			}

			listenAddr := addr
			if strings.TrimSpace(listenAddr) == "" {
				listenAddr = rt.cfg.Server.Addr
			}
			server := &http.Server{Addr: listenAddr, Handler: handler}

			ctx := cmd.Context()
			errCh := make(chan error, 1)
			go func() {
				rt.logger.Info("mcp server listening", "addr", listenAddr, "endpoint", rt.cfg.Server.EndpointPath)
				errCh <- server.ListenAndServe()
			}()

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					rt.logger.Warn("mcp server shutdown failed", "err", err)
				}
				return nil
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("serve mcp: %w", err)
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr from config)")
	return cmd
}

// runBoard launches the board TUI with an optional background poller.
func runBoard(ctx context.Context, opts *rootOptions, stderr io.Writer) error {
	rt, err := bootstrap(opts, stderr, "board")
	if err != nil {
		return err
	}
	defer rt.shutdown()
	// Keep TUI rendering clean: runtime logs stay in the dev-file sink while the board is active.
	rt.logger.SetConsoleEnabled(false)

	if _, err := rt.svc.EnsureBoard(ctx); err != nil {
		return fmt.Errorf("ensure board: %w", err)
	}

	m := tui.NewModel(rt.svc, rt.cfg.Keys)
	program := tea.NewProgram(m)

	pollCtx, stopPoll := context.WithCancel(ctx)
	defer stopPoll()
	if rt.cfg.Poll.Enabled {
		poller := app.NewPoller(rt.svc, time.Duration(rt.cfg.Poll.IntervalSeconds)*time.Second, func(board domain.Board) {
			program.Send(tui.BoardUpdatedMsg{Board: board})
		})
		go func() {
			_ = poller.Run(pollCtx)
		}()
		rt.logger.Info("board poller enabled", "interval_seconds", rt.cfg.Poll.IntervalSeconds)
	}

	rt.logger.Info("starting tui program loop")
	if _, err := program.Run(); err != nil {
		rt.logger.Error("tui program terminated with error", "err", err)
		return fmt.Errorf("run tui program: %w", err)
	}
	rt.logger.Info("command flow complete", "command", "board")
	return nil
}

// resolvePaths applies flag/env/platform precedence for config and db paths.
func resolvePaths(opts *rootOptions) (platform.Paths, string, string, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: opts.appName,
		DevMode: opts.devMode,
	})
	if err != nil {
		return platform.Paths{}, "", "", err
	}

	configPath := opts.configPath
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("RITNING_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	dbPath := opts.dbPath
	if strings.TrimSpace(dbPath) == "" {
		if envPath := strings.TrimSpace(os.Getenv("RITNING_DB_PATH")); envPath != "" {
			dbPath = envPath
		} else {
			dbPath = paths.DBPath
		}
	}
	return paths, configPath, dbPath, nil
}

// bootstrap loads config, opens storage, and builds the board service.
func bootstrap(opts *rootOptions, stderr io.Writer, command string) (*runtime, error) {
	paths, configPath, dbPath, err := resolvePaths(opts)
	if err != nil {
		return nil, err
	}

	defaultCfg := config.Default(dbPath)
	cfg, err := config.Load(configPath, defaultCfg)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if strings.TrimSpace(opts.dbPath) != "" {
		cfg.Database.Path = opts.dbPath
	}

	logger, err := newRuntimeLogger(stderr, opts.appName, opts.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	logger.Info("startup configuration resolved", "app", opts.appName, "dev_mode", opts.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		_ = logger.Close()
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	logger.Info("sqlite repository ready", "db_path", cfg.Database.Path, "migrations", "ensured")

	svc := app.NewService(repo, uuid.NewString, nil, app.ServiceConfig{
		UndoDepth:    cfg.Undo.Depth,
		SettleWindow: time.Duration(cfg.Board.SettleMillis) * time.Millisecond,
		Departments:  cfg.Board.Departments,
		PhaseSeeds:   phaseSeedsFromConfig(cfg.Board.Phases),
	})
	logger.Debug("application service initialized", "undo_depth", cfg.Undo.Depth, "settle_ms", cfg.Board.SettleMillis)

	return &runtime{cfg: cfg, paths: paths, logger: logger, repo: repo, svc: svc}, nil
}

// shutdown releases runtime resources in reverse acquisition order.
func (rt *runtime) shutdown() {
	if rt == nil {
		return
	}
	if rt.repo != nil {
		if err := rt.repo.Close(); err != nil {
			rt.logger.Warn("sqlite close failed", "err", err)
		}
	}
	if rt.logger != nil {
		if err := rt.logger.Close(); err != nil && rt.logger.consoleActive() {
			rt.logger.Warn("close runtime log sink failed", "err", err)
		}
	}
}

// phaseSeedsFromConfig converts configured phases into service seeds.
func phaseSeedsFromConfig(phases []config.PhaseConfig) []app.PhaseSeed {
	seeds := make([]app.PhaseSeed, 0, len(phases))
	for _, phase := range phases {
		seeds = append(seeds, app.PhaseSeed{
			Name:    phase.Name,
			Columns: append([]string(nil), phase.Columns...),
		})
	}
	return seeds
}

// parseBoolEnv reads a boolean environment toggle.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return parsed, true
}

// runtimeLogger pairs a styled stderr logger with an optional logfmt dev
// file. The console half can be muted while the TUI owns the terminal; the
// file half keeps recording either way.
type runtimeLogger struct {
	console      *charmLog.Logger
	file         *charmLog.Logger
	consoleMuted bool
	devLogPath   string
	closeFile    func() error
}

// newRuntimeLogger configures runtime log output from CLI/config state.
func newRuntimeLogger(stderr io.Writer, appName string, devMode bool, cfg config.LoggingConfig, now func() time.Time) (*runtimeLogger, error) {
	level, err := charmLog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse logging level %q: %w", cfg.Level, err)
	}
	if stderr == nil {
		stderr = io.Discard
	}

	logger := &runtimeLogger{
		console: newLogSink(stderr, level, appName, charmLog.TextFormatter),
	}
	if !devMode || !cfg.DevFile.Enabled {
		return logger, nil
	}

	if now == nil {
		now = time.Now
	}
	path, err := devLogFilePath(cfg.DevFile.Dir, appName, now().UTC())
	if err != nil {
		return nil, fmt.Errorf("resolve dev log file path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dev log dir: %w", err)
	}
	logFile, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open dev log file: %w", err)
	}

	// logfmt in the file keeps dev logs grep- and parse-friendly.
	logger.file = newLogSink(logFile, level, appName, charmLog.LogfmtFormatter)
	logger.devLogPath = path
	logger.closeFile = logFile.Close
	return logger, nil
}

// newLogSink builds one charm logger with the shared runtime options.
func newLogSink(w io.Writer, level charmLog.Level, appName string, formatter charmLog.Formatter) *charmLog.Logger {
	return charmLog.NewWithOptions(w, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       formatter,
	})
}

// DevLogPath returns the dev log file path, empty when file logging is off.
func (l *runtimeLogger) DevLogPath() string {
	if l == nil {
		return ""
	}
	return l.devLogPath
}

// Close closes the optional dev-file half.
func (l *runtimeLogger) Close() error {
	if l == nil || l.closeFile == nil {
		return nil
	}
	return l.closeFile()
}

// SetConsoleEnabled mutes or restores stderr output. The board TUI mutes it
// so log lines never tear the render.
func (l *runtimeLogger) SetConsoleEnabled(enabled bool) {
	if l == nil {
		return
	}
	l.consoleMuted = !enabled
}

// consoleActive reports whether events currently reach stderr.
func (l *runtimeLogger) consoleActive() bool {
	return l != nil && l.console != nil && !l.consoleMuted
}

// emit sends one event to whichever halves are active.
func (l *runtimeLogger) emit(fn func(*charmLog.Logger)) {
	if l == nil {
		return
	}
	if l.consoleActive() {
		fn(l.console)
	}
	if l.file != nil {
		fn(l.file)
	}
}

func (l *runtimeLogger) Debug(msg string, keyvals ...any) {
	l.emit(func(s *charmLog.Logger) { s.Debug(msg, keyvals...) })
}

func (l *runtimeLogger) Info(msg string, keyvals ...any) {
	l.emit(func(s *charmLog.Logger) { s.Info(msg, keyvals...) })
}

func (l *runtimeLogger) Warn(msg string, keyvals ...any) {
	l.emit(func(s *charmLog.Logger) { s.Warn(msg, keyvals...) })
}

func (l *runtimeLogger) Error(msg string, keyvals ...any) {
	l.emit(func(s *charmLog.Logger) { s.Error(msg, keyvals...) })
}

// devLogFilePath resolves a workspace-local dev log file path for the current run day.
func devLogFilePath(configDir, appName string, now time.Time) (string, error) {
	baseDir := strings.TrimSpace(configDir)
	if baseDir == "" {
		baseDir = ".ritning/log"
	}
	if !filepath.IsAbs(baseDir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working dir: %w", err)
		}
		baseDir = filepath.Join(cwd, baseDir)
	}
	name := fmt.Sprintf("%s-%s.log", appName, now.Format("20060102"))
	return filepath.Join(baseDir, name), nil
}
