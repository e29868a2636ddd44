package platform

import (
	"path/filepath"
	"testing"
)

func envMap(env map[string]string) func(string) string {
	return func(key string) string { return env[key] }
}

func TestResolveLinuxHonorsXDG(t *testing.T) {
	p, err := resolve("linux", envMap(map[string]string{
		"XDG_CONFIG_HOME": "/xdg/config",
		"XDG_DATA_HOME":   "/xdg/data",
	}), "/fallback/config", "/fallback/data", "ritning")
	if err != nil {
		t.Fatalf("resolve() error = %v", err)
	}
	if want := filepath.Join("/xdg/config", "ritning", "config.toml"); p.ConfigPath != want {
		t.Fatalf("unexpected config path %q", p.ConfigPath)
	}
	if want := filepath.Join("/xdg/data", "ritning", "ritning.db"); p.DBPath != want {
		t.Fatalf("unexpected db path %q", p.DBPath)
	}
}

func TestResolveLinuxWithoutXDGKeepsBases(t *testing.T) {
	p, err := resolve("linux", envMap(nil), "/home/me/.config", "/home/me/.local/share", "ritning")
	if err != nil {
		t.Fatalf("resolve() error = %v", err)
	}
	if want := filepath.Join("/home/me/.local/share", "ritning"); p.DataDir != want {
		t.Fatalf("unexpected data dir %q", p.DataDir)
	}
}

func TestResolveWindowsUsesAppData(t *testing.T) {
	p, err := resolve("windows", envMap(map[string]string{
		"APPDATA":      `C:\Users\me\AppData\Roaming`,
		"LOCALAPPDATA": `C:\Users\me\AppData\Local`,
	}), `C:\fallback\config`, `C:\fallback\data`, "ritning")
	if err != nil {
		t.Fatalf("resolve() error = %v", err)
	}
	if want := filepath.Join(`C:\Users\me\AppData\Roaming`, "ritning", "config.toml"); p.ConfigPath != want {
		t.Fatalf("unexpected config path %q", p.ConfigPath)
	}
	if want := filepath.Join(`C:\Users\me\AppData\Local`, "ritning", "ritning.db"); p.DBPath != want {
		t.Fatalf("unexpected db path %q", p.DBPath)
	}
}

func TestResolveDarwinIgnoresXDG(t *testing.T) {
	base := "/Users/me/Library/Application Support"
	p, err := resolve("darwin", envMap(map[string]string{
		"XDG_CONFIG_HOME": "/ignored",
		"XDG_DATA_HOME":   "/ignored",
	}), base, base, "ritning")
	if err != nil {
		t.Fatalf("resolve() error = %v", err)
	}
	if want := filepath.Join(base, "ritning", "config.toml"); p.ConfigPath != want {
		t.Fatalf("unexpected config path %q", p.ConfigPath)
	}
}

func TestResolveRejectsEmptyInputs(t *testing.T) {
	if _, err := resolve("linux", envMap(nil), "", "/data", "ritning"); err == nil {
		t.Fatal("expected error for empty config base")
	}
	if _, err := resolve("linux", envMap(nil), "/cfg", "/data", "  "); err == nil {
		t.Fatal("expected error for blank app name")
	}
}

func TestDefaultPathsWithOptionsDevMode(t *testing.T) {
	p, err := DefaultPathsWithOptions(Options{AppName: "ritning", DevMode: true})
	if err != nil {
		t.Fatalf("DefaultPathsWithOptions() error = %v", err)
	}
	if filepath.Base(filepath.Dir(p.ConfigPath)) != "ritning-dev" {
		t.Fatalf("expected dev config dir suffix, got %q", p.ConfigPath)
	}
	if filepath.Base(p.DBPath) != "ritning-dev.db" {
		t.Fatalf("expected dev db name, got %q", p.DBPath)
	}
}

func TestDefaultPathsWithOptionsBlankNameFallsBack(t *testing.T) {
	p, err := DefaultPathsWithOptions(Options{})
	if err != nil {
		t.Fatalf("DefaultPathsWithOptions() error = %v", err)
	}
	if filepath.Base(p.DBPath) != defaultAppName+".db" {
		t.Fatalf("expected default app db name, got %q", p.DBPath)
	}
}
