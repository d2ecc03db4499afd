package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Listen != DefaultListen || cfg.WeekStart != "sunday" || cfg.Storage.Backend != "json" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("mode = %o, want 600", perm)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("second Load() error: %v", err)
	}
	if again.Backup.Keep != DefaultBackupKeep {
		t.Errorf("round trip lost backup.keep: %+v", again.Backup)
	}
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `listen: ":9000"
week_start: friday
storage:
  backend: sqlite
  path: /tmp/board.db
feeds:
  sources:
    - id: public
      url: https://example.com/holidays.ics
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Listen != ":9000" {
		t.Errorf("listen = %q", cfg.Listen)
	}
	if cfg.WeekStart != "sunday" {
		t.Errorf("unknown week_start should fall back to sunday, got %q", cfg.WeekStart)
	}
	if cfg.Storage.Backend != "sqlite" || cfg.Storage.Path != "/tmp/board.db" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Backup.Cron != "" {
		t.Errorf("absent backup.cron must stay disabled, got %q", cfg.Backup.Cron)
	}
	if cfg.Timezone != DefaultTimezone || cfg.Feeds.CacheDir != DefaultFeedCache {
		t.Errorf("defaults not filled: %+v", cfg)
	}

	feeds := cfg.FeedList()
	if len(feeds) != 1 || feeds[0].Name != "public" {
		t.Errorf("FeedList() = %+v", feeds)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":      "listen: [",
		"bad backend":   "storage:\n  backend: postgres\n",
		"bad timezone":  "timezone: Mars/Olympus\n",
		"feed no url":   "feeds:\n  sources:\n    - id: a\n",
		"duplicate ids": "feeds:\n  sources:\n    - {id: a, url: 'http://x'}\n    - {id: a, url: 'http://y'}\n",
	}
	for name, yml := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestWeekdayAndCurrentMonth(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Weekday() != time.Sunday {
		t.Errorf("default week start = %v", cfg.Weekday())
	}
	cfg.WeekStart = "monday"
	if cfg.Weekday() != time.Monday {
		t.Errorf("week start = %v", cfg.Weekday())
	}

	cfg.Timezone = "Asia/Seoul"
	// 2024-05-31 20:00 UTC is already June in Seoul.
	now := time.Date(2024, 5, 31, 20, 0, 0, 0, time.UTC)
	if got := cfg.CurrentMonth(now).String(); got != "2024-06" {
		t.Errorf("CurrentMonth() = %s, want 2024-06", got)
	}
}

func TestSaveRejectsEmptyInput(t *testing.T) {
	if err := Save("", DefaultConfig()); err == nil {
		t.Error("expected error for empty path")
	}
	if err := Save(filepath.Join(t.TempDir(), "c.yaml"), nil); err == nil {
		t.Error("expected error for nil config")
	}
}
