package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

// ICSConfig describes a single ICS subscription source whose events are
// imported as reminders.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label shown in the UI.
	Name string `yaml:"name" json:"name"`
}

// SourceID returns ID, falling back to Name and then URL.
func (c ICSConfig) SourceID() string {
	switch {
	case c.ID != "":
		return c.ID
	case c.Name != "":
		return c.Name
	default:
		return c.URL
	}
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" json:"level"`
	// Format is "console" or "json".
	Format string `yaml:"format" json:"format"`
}

type SoundConfig struct {
	// Kind selects the sound backend:
	//   - "bell"   (default) terminal BEL on stdout
	//   - "buzzer" GPIO buzzer via periph.io
	//   - "none"
	Kind string `yaml:"kind" json:"kind"`
	// GPIOPin is the periph pin name for the buzzer, e.g. "GPIO18".
	GPIOPin string `yaml:"gpio_pin" json:"gpio_pin"`
	// Pulse is how long the buzzer stays on.
	Pulse Duration `yaml:"pulse" json:"pulse"`
	// MinInterval rate-limits sounds so a burst of due reminders beeps once.
	MinInterval Duration `yaml:"min_interval" json:"min_interval"`
}

type AlertConfig struct {
	// Platform selects the platform notifier:
	//   - "desktop" (default) freedesktop notifications over D-Bus
	//   - "browser" Web Notification API in a Chrome attached via DevTools
	//   - "none"    fallback messages only
	Platform string `yaml:"platform" json:"platform"`
	// BrowserDevtoolsURL is the DevTools websocket URL of the Chrome
	// instance used by the "browser" platform.
	BrowserDevtoolsURL string `yaml:"browser_devtools_url" json:"browser_devtools_url"`
	// QueueSize bounds pending alerts; extra alerts are dropped and logged.
	QueueSize int `yaml:"queue_size" json:"queue_size"`

	Sound SoundConfig `yaml:"sound" json:"sound"`
}

type ImportConfig struct {
	// Cron is a cron-style schedule string (e.g. "*/15 * * * *") used for
	// periodic re-import of the ICS sources.
	Cron string `yaml:"cron" json:"cron"`
	// HorizonDays is how far ahead occurrences become reminders.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`
	// WatchDir, if set, is a drop directory; *.ics files written there are
	// imported once.
	WatchDir string `yaml:"watch_dir" json:"watch_dir"`
	// CacheDir stores fetched ICS bodies and HTTP cache metadata.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
	// ICS is the list of subscribed ICS sources.
	ICS []ICSConfig `yaml:"ics" json:"ics"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used to resolve entered times and to
	// render them (e.g. "Asia/Seoul"). Empty means the host's local zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Tick is the due-check period.
	Tick Duration `yaml:"tick" json:"tick"`

	Log    LogConfig    `yaml:"log" json:"log"`
	Alert  AlertConfig  `yaml:"alert" json:"alert"`
	Import ImportConfig `yaml:"import" json:"import"`
}

const (
	defaultListen      = "127.0.0.1:8080"
	defaultTick        = time.Second
	defaultQueueSize   = 64
	defaultPulse       = 200 * time.Millisecond
	defaultMinInterval = 2 * time.Second
	defaultImportCron  = "*/15 * * * *"
	defaultHorizonDays = 7
	defaultCacheDir    = "./cache/ics-cache"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Tick <= 0 {
		c.Tick = Duration(defaultTick)
	}

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		c.Log.Format = "console"
	}

	switch c.Alert.Platform {
	case "desktop", "browser", "none":
		// ok
	default:
		// Unknown or empty; desktop degrades to fallback on its own.
		c.Alert.Platform = "desktop"
	}
	if c.Alert.QueueSize <= 0 {
		c.Alert.QueueSize = defaultQueueSize
	}
	switch c.Alert.Sound.Kind {
	case "bell", "buzzer", "none":
	default:
		c.Alert.Sound.Kind = "bell"
	}
	if c.Alert.Sound.Pulse <= 0 {
		c.Alert.Sound.Pulse = Duration(defaultPulse)
	}
	if c.Alert.Sound.MinInterval <= 0 {
		c.Alert.Sound.MinInterval = Duration(defaultMinInterval)
	}

	if c.Import.Cron == "" {
		c.Import.Cron = defaultImportCron
	}
	if c.Import.HorizonDays <= 0 {
		c.Import.HorizonDays = defaultHorizonDays
	}
	if c.Import.CacheDir == "" {
		c.Import.CacheDir = defaultCacheDir
	}
	if c.Import.ICS == nil {
		c.Import.ICS = []ICSConfig{}
	}
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, err
	}
	return loc, nil
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
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

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

	tmp, err := os.CreateTemp(dir, ".remindcal-config-*.tmp")
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

func (c *Config) Save(path string) error {
	return Save(path, c)
}
