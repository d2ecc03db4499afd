package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"guardboard/internal/calendar"
	"guardboard/internal/ics"
)

const (
	DefaultListen      = "127.0.0.1:8080"
	DefaultTimezone    = "UTC"
	DefaultWeekStart   = "sunday"
	DefaultLogLevel    = "info"
	DefaultBackend     = "json"
	DefaultStoragePath = "./var/data"
	DefaultBackupCron  = "0 3 * * *"
	DefaultBackupDir   = "./var/backups"
	DefaultBackupKeep  = 14
	DefaultFeedsCron   = "0 */6 * * *"
	DefaultFeedCache   = "./var/feed-cache"
)

// StorageConfig selects the blob store behind the record store.
type StorageConfig struct {
	// Backend is "json" (one file per key under Path) or "sqlite" (Path is
	// the database file).
	Backend string `yaml:"backend" json:"backend"`
	Path    string `yaml:"path" json:"path"`
}

// BackupConfig schedules CSV exports of the whole board.
type BackupConfig struct {
	// Cron is a 5-field schedule. Empty disables backups.
	Cron string `yaml:"cron" json:"cron"`
	Dir  string `yaml:"dir" json:"dir"`
	// Keep is how many backup files survive pruning.
	Keep int `yaml:"keep" json:"keep"`
}

// FeedSource describes a single holiday ICS subscription.
type FeedSource struct {
	// ID namespaces holiday ids derived from this feed; changing it
	// re-imports every event as new.
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

type FeedsConfig struct {
	Cron     string       `yaml:"cron" json:"cron"`
	CacheDir string       `yaml:"cache_dir" json:"cache_dir"`
	Sources  []FeedSource `yaml:"sources" json:"sources"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the board and API.
// PasswordHash is an argon2id hash from `guardboard hash-password`.
type BasicAuthConfig struct {
	Username     string `yaml:"username" json:"username"`
	PasswordHash string `yaml:"password_hash" json:"-"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the board and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used only to decide which month is "now".
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "sunday" (default) or "monday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	Storage StorageConfig `yaml:"storage" json:"storage"`
	Backup  BackupConfig  `yaml:"backup" json:"backup"`
	Feeds   FeedsConfig   `yaml:"feeds" json:"feeds"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:    DefaultListen,
		Timezone:  DefaultTimezone,
		WeekStart: DefaultWeekStart,
		LogLevel:  DefaultLogLevel,
		Storage:   StorageConfig{Backend: DefaultBackend, Path: DefaultStoragePath},
		Backup:    BackupConfig{Cron: DefaultBackupCron, Dir: DefaultBackupDir, Keep: DefaultBackupKeep},
		Feeds:     FeedsConfig{Cron: DefaultFeedsCron, CacheDir: DefaultFeedCache, Sources: []FeedSource{}},
	}
}

// Normalize fills in missing/zero values so partially-filled configs still
// behave. Schedules are left alone: an empty cron disables that job.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	switch c.WeekStart {
	case "sunday", "monday":
	default:
		c.WeekStart = DefaultWeekStart
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = DefaultBackend
	}
	if c.Storage.Path == "" {
		c.Storage.Path = DefaultStoragePath
	}
	if c.Backup.Dir == "" {
		c.Backup.Dir = DefaultBackupDir
	}
	if c.Backup.Keep <= 0 {
		c.Backup.Keep = DefaultBackupKeep
	}
	if c.Feeds.CacheDir == "" {
		c.Feeds.CacheDir = DefaultFeedCache
	}
	if c.Feeds.Sources == nil {
		c.Feeds.Sources = []FeedSource{}
	}
}

// Validate reports settings Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	switch c.Storage.Backend {
	case "json", "sqlite":
	default:
		return fmt.Errorf("storage.backend %q: want json or sqlite", c.Storage.Backend)
	}
	seen := make(map[string]bool, len(c.Feeds.Sources))
	for i, s := range c.Feeds.Sources {
		if s.ID == "" || s.URL == "" {
			return fmt.Errorf("feeds.sources[%d]: id and url are required", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("feeds.sources[%d]: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) Weekday() time.Weekday {
	if c.WeekStart == "monday" {
		return time.Monday
	}
	return time.Sunday
}

// CurrentMonth is the month containing now in the configured zone.
func (c *Config) CurrentMonth(now time.Time) calendar.Month {
	return calendar.MonthOf(now.In(c.Location()))
}

// FeedList converts the configured sources for the fetcher.
func (c *Config) FeedList() []ics.Feed {
	out := make([]ics.Feed, 0, len(c.Feeds.Sources))
	for _, s := range c.Feeds.Sources {
		name := s.Name
		if name == "" {
			name = s.ID
		}
		out = append(out, ics.Feed{ID: s.ID, Name: name, URL: s.URL})
	}
	return out
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist, a default config is written with 0600 perms
// and returned. Otherwise the YAML is decoded, normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".guardboard-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
