package platform

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Paths locates the config file, data directory, and database for one
// install.
type Paths struct {
	ConfigPath string
	DataDir    string
	DBPath     string
}

// Options select the app name the locations are derived from. DevMode gets
// its own suffixed directory tree so a dev build never touches the real
// board.
type Options struct {
	AppName string
	DevMode bool
}

const defaultAppName = "ritning"

// DefaultPathsWithOptions resolves the standard per-OS locations for the
// current process.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	appName := strings.TrimSpace(opts.AppName)
	if appName == "" {
		appName = defaultAppName
	}
	if opts.DevMode {
		appName += "-dev"
	}

	configBase, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, err
	}
	dataBase, err := userDataDir(configBase)
	if err != nil {
		return Paths{}, err
	}
	return resolve(runtime.GOOS, os.Getenv, configBase, dataBase, appName)
}

// userDataDir picks the OS data root. Linux separates data from config
// under ~/.local/share; Windows prefers LOCALAPPDATA; everywhere else the
// config root doubles as the data root.
func userDataDir(configBase string) (string, error) {
	switch runtime.GOOS {
	case "linux":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share"), nil
	case "windows":
		if v := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); v != "" {
			return v, nil
		}
	}
	return configBase, nil
}

// resolve applies the per-OS environment overrides on top of the detected
// base directories and lays out the app's file names. getenv is injected so
// the override rules stay testable per OS.
func resolve(goos string, getenv func(string) string, configBase, dataBase, appName string) (Paths, error) {
	if configBase == "" || dataBase == "" {
		return Paths{}, errors.New("platform: empty base directories")
	}
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return Paths{}, errors.New("platform: empty app name")
	}

	switch goos {
	case "linux":
		configBase = firstNonEmpty(getenv("XDG_CONFIG_HOME"), configBase)
		dataBase = firstNonEmpty(getenv("XDG_DATA_HOME"), dataBase)
	case "windows":
		configBase = firstNonEmpty(getenv("APPDATA"), configBase)
		dataBase = firstNonEmpty(getenv("LOCALAPPDATA"), dataBase)
	}

	dataDir := filepath.Join(dataBase, appName)
	return Paths{
		ConfigPath: filepath.Join(configBase, appName, "config.toml"),
		DataDir:    dataDir,
		DBPath:     filepath.Join(dataDir, appName+".db"),
	}, nil
}

func firstNonEmpty(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
