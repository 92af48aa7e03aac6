package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dnorman/domcorder/browserdom/rodpage"
)

func TestDefault_AppliesDefaultsWithNoFile(t *testing.T) {
	cfg := Default()

	if cfg.Addr != ":7070" {
		t.Errorf("Addr = %q, want :7070", cfg.Addr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.SettingsDB != "recorderd.db" {
		t.Errorf("SettingsDB = %q, want recorderd.db", cfg.SettingsDB)
	}
	if cfg.Browser.Stealth != "headless" {
		t.Errorf("Browser.Stealth = %q, want headless", cfg.Browser.Stealth)
	}
	if cfg.Browser.MemoryLimit != 1<<30 {
		t.Errorf("Browser.MemoryLimit = %d, want %d", cfg.Browser.MemoryLimit, int64(1<<30))
	}
	if cfg.Recorder.FetchConcurrency != 6 {
		t.Errorf("Recorder.FetchConcurrency = %d, want 6", cfg.Recorder.FetchConcurrency)
	}
	if cfg.Recorder.DiffDebounce != 500*time.Millisecond {
		t.Errorf("Recorder.DiffDebounce = %v, want 500ms", cfg.Recorder.DiffDebounce)
	}
}

func TestLoadFile_OverridesOnlyGivenFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "domcorderd.yaml")
	contents := `
addr: ":9090"
browser:
  stealth: headful
recorder:
  fetch_concurrency: 3
`
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Addr != ":9090" {
		t.Errorf("Addr = %q, want :9090", cfg.Addr)
	}
	if cfg.Browser.Stealth != "headful" {
		t.Errorf("Browser.Stealth = %q, want headful", cfg.Browser.Stealth)
	}
	if cfg.Recorder.FetchConcurrency != 3 {
		t.Errorf("Recorder.FetchConcurrency = %d, want 3", cfg.Recorder.FetchConcurrency)
	}
	// Untouched fields still get their defaults.
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.Recorder.DiffDebounce != 500*time.Millisecond {
		t.Errorf("Recorder.DiffDebounce = %v, want 500ms", cfg.Recorder.DiffDebounce)
	}
}

func TestLoadFile_MissingFileErrors(t *testing.T) {
	if _, err := LoadFile("/nonexistent/domcorderd.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestBrowserConfig_StealthLevel(t *testing.T) {
	cases := []struct {
		stealth string
		want    rodpage.StealthLevel
	}{
		{"headless", rodpage.LevelHeadless},
		{"headful", rodpage.LevelHeadful},
		{"", rodpage.LevelHeadless},
		{"garbage", rodpage.LevelHeadless},
	}
	for _, c := range cases {
		b := BrowserConfig{Stealth: c.stealth}
		if got := b.StealthLevel(); got != c.want {
			t.Errorf("StealthLevel(%q) = %v, want %v", c.stealth, got, c.want)
		}
	}
}
