package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultListen   = "127.0.0.1:8080"
	defaultDatabase = "./var/joyous.db"
	defaultTimezone = "Asia/Tokyo"
	defaultBaseURL  = "http://localhost"
	defaultCacheDir = "./var/ics-cache"
	defaultRefresh  = "*/30 * * * *"
)

// FeedConfig describes a remote iCalendar feed imported on a schedule.
type FeedConfig struct {
	// ID is an internal identifier used for logging.
	ID string `yaml:"id" json:"id"`
	// URL is the iCalendar endpoint.
	URL string `yaml:"url" json:"url"`
	// Calendar is the slug of the calendar the feed is imported into.
	Calendar string `yaml:"calendar" json:"calendar"`
	// Refresh is a cron-style schedule (e.g. "*/30 * * * *").
	Refresh string `yaml:"refresh" json:"refresh"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Database is the SQLite file holding calendars and events.
	Database string `yaml:"database" json:"database"`

	// Timezone is the IANA zone used when an event names no zone or an
	// unknown one.
	Timezone string `yaml:"timezone" json:"timezone"`

	// BaseURL prefixes event paths to build the exported URL property.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// WeekStart is the week start applied to rules authored from the CLI:
	//   - "monday" (default)
	//   - "sunday"
	WeekStart string `yaml:"week_start" json:"week_start"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// CacheDir stores fetched feed bodies and their HTTP validators.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Feeds is the list of subscribed iCalendar feeds.
	Feeds []FeedConfig `yaml:"feeds" json:"feeds"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:    defaultListen,
		Database:  defaultDatabase,
		Timezone:  defaultTimezone,
		BaseURL:   defaultBaseURL,
		WeekStart: "monday",
		LogLevel:  "info",
		CacheDir:  defaultCacheDir,
		Feeds:     []FeedConfig{},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Database == "" {
		c.Database = defaultDatabase
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")

	switch strings.ToLower(c.WeekStart) {
	case "monday", "sunday":
		c.WeekStart = strings.ToLower(c.WeekStart)
	default:
		c.WeekStart = "monday"
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{}
	}
	for i := range c.Feeds {
		if c.Feeds[i].Refresh == "" {
			c.Feeds[i].Refresh = defaultRefresh
		}
		if c.Feeds[i].ID == "" {
			c.Feeds[i].ID = c.Feeds[i].Calendar
		}
	}
}

// Validate reports configuration that cannot be normalized away.
func (c *Config) Validate() error {
	for i, f := range c.Feeds {
		if f.URL == "" {
			return fmt.Errorf("feeds[%d]: url is empty", i)
		}
		if f.Calendar == "" {
			return fmt.Errorf("feeds[%d]: calendar is empty", i)
		}
	}
	return nil
}

// ApplyEnv overrides fields from JOYOUS_* environment variables. A .env
// file in the working directory is read first when present.
func (c *Config) ApplyEnv() {
	// Missing .env is the normal case.
	_ = godotenv.Load()

	overrides := []struct {
		key string
		dst *string
	}{
		{"JOYOUS_LISTEN", &c.Listen},
		{"JOYOUS_DATABASE", &c.Database},
		{"JOYOUS_TIMEZONE", &c.Timezone},
		{"JOYOUS_BASE_URL", &c.BaseURL},
		{"JOYOUS_LOG_LEVEL", &c.LogLevel},
		{"JOYOUS_CACHE_DIR", &c.CacheDir},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.key)); v != "" {
			*o.dst = v
		}
	}
	c.Normalize()
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
//
// Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				cfg.ApplyEnv()
				return cfg, err
			}
			cfg.ApplyEnv()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
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

	tmp, err := os.CreateTemp(dir, ".joyous-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
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

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
