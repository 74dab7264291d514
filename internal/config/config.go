package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// StorageConfig selects the remote store's persistence backend.
type StorageConfig struct {
	// Driver is "memory" (default) or "sqlite".
	Driver string `yaml:"driver" json:"driver"`
	// Path is the SQLite database file, ignored by the memory driver.
	Path string `yaml:"path" json:"path"`
}

// RemoteConfig points the client at the remote store API.
type RemoteConfig struct {
	URL            string `yaml:"url" json:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// RecurrenceConfig bounds recurrence expansion.
type RecurrenceConfig struct {
	// HorizonDays is how far a series without an end date runs.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`
	// MaxOccurrences caps a single expansion.
	MaxOccurrences int `yaml:"max_occurrences" json:"max_occurrences"`
}

// RemindersConfig schedules the reminder check.
type RemindersConfig struct {
	// Cron is a standard 5-field cron spec (e.g. "* * * * *").
	Cron string `yaml:"cron" json:"cron"`
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level configuration shared by the server and the client.
type Config struct {
	// Listen is the HTTP listen address of the remote store server.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone event dates and times are interpreted in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "sunday" (default) or "monday" for week views.
	WeekStart string `yaml:"week_start" json:"week_start"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Remote     RemoteConfig     `yaml:"remote" json:"remote"`
	Recurrence RecurrenceConfig `yaml:"recurrence" json:"recurrence"`
	Reminders  RemindersConfig  `yaml:"reminders" json:"reminders"`
	CORS       CORSConfig       `yaml:"cors" json:"cors"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen         = "127.0.0.1:3000"
	defaultTimezone       = "Asia/Seoul"
	defaultWeekStart      = "sunday"
	defaultLogLevel       = "info"
	defaultStorageDriver  = "memory"
	defaultStoragePath    = "/var/lib/repeatcal/events.db"
	defaultTimeoutSeconds = 10
	defaultHorizonDays    = 730
	defaultMaxOccurrences = 5000
	defaultReminderCron   = "* * * * *"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:    defaultListen,
		Timezone:  defaultTimezone,
		WeekStart: defaultWeekStart,
		LogLevel:  defaultLogLevel,
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
			Path:   defaultStoragePath,
		},
		Remote: RemoteConfig{
			URL:            "http://" + defaultListen,
			TimeoutSeconds: defaultTimeoutSeconds,
		},
		Recurrence: RecurrenceConfig{
			HorizonDays:    defaultHorizonDays,
			MaxOccurrences: defaultMaxOccurrences,
		},
		Reminders: RemindersConfig{Cron: defaultReminderCron},
		CORS:      CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}},
	}
}

// Normalize fills in missing/zero values with defaults so partially-filled
// configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	switch c.WeekStart {
	case "monday", "sunday":
	default:
		c.WeekStart = defaultWeekStart
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	switch c.Storage.Driver {
	case "memory", "sqlite":
	default:
		c.Storage.Driver = defaultStorageDriver
	}
	if c.Storage.Path == "" {
		c.Storage.Path = defaultStoragePath
	}
	if c.Remote.URL == "" {
		c.Remote.URL = "http://" + c.Listen
	}
	if c.Remote.TimeoutSeconds <= 0 {
		c.Remote.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.Recurrence.HorizonDays <= 0 {
		c.Recurrence.HorizonDays = defaultHorizonDays
	}
	if c.Recurrence.MaxOccurrences <= 0 {
		c.Recurrence.MaxOccurrences = defaultMaxOccurrences
	}
	if c.Reminders.Cron == "" {
		c.Reminders.Cron = defaultReminderCron
	}
	if c.CORS.AllowedOrigins == nil {
		c.CORS.AllowedOrigins = []string{}
	}
}

// ApplyEnv overrides file values with REPEATCAL_* environment variables:
// LISTEN, TIMEZONE, LOG_LEVEL, STORAGE_DRIVER, STORAGE_PATH, REMOTE_URL,
// REMOTE_TIMEOUT_SECONDS, HORIZON_DAYS, MAX_OCCURRENCES, REMINDER_CRON,
// BASIC_AUTH_USERNAME, BASIC_AUTH_PASSWORD.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv("REPEATCAL_" + key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := strings.TrimSpace(getenv("REPEATCAL_" + key)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("LISTEN", &c.Listen)
	str("TIMEZONE", &c.Timezone)
	str("LOG_LEVEL", &c.LogLevel)
	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("STORAGE_PATH", &c.Storage.Path)
	str("REMOTE_URL", &c.Remote.URL)
	num("REMOTE_TIMEOUT_SECONDS", &c.Remote.TimeoutSeconds)
	num("HORIZON_DAYS", &c.Recurrence.HorizonDays)
	num("MAX_OCCURRENCES", &c.Recurrence.MaxOccurrences)
	str("REMINDER_CRON", &c.Reminders.Cron)

	var auth BasicAuthConfig
	if c.BasicAuth != nil {
		auth = *c.BasicAuth
	}
	str("BASIC_AUTH_USERNAME", &auth.Username)
	str("BASIC_AUTH_PASSWORD", &auth.Password)
	if auth.Username != "" || auth.Password != "" {
		c.BasicAuth = &auth
	}

	c.Normalize()
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     permissions (parent directory created as needed) and returned.
//   - Otherwise the YAML is unmarshalled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
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

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) if needed.
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

	tmp, err := os.CreateTemp(dir, ".repeatcal-config-*.tmp")
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

// DefaultClientPath returns ~/.config/repeatcal/config.yaml.
func DefaultClientPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "repeatcal.yaml")
	}
	return filepath.Join(home, ".config", "repeatcal", "config.yaml")
}
