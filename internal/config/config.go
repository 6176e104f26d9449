// Package config loads offsync settings.
//
// Values are resolved in increasing precedence: built-in defaults, the TOML
// file at $OFFSYNC_HOME/config.toml (default ~/.offsync/config.toml),
// OFFSYNC_* environment variables (dots become underscores, so
// api.base_url is OFFSYNC_API_BASE_URL), then any command-line flags bound
// to the viper instance.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file name inside the home directory.
const FileName = "config.toml"

const defaultHome = "~/.offsync"

// Config is the resolved configuration.
type Config struct {
	Home      string
	DataDir   string
	DBPath    string
	TokenFile string

	API       APIConfig
	Sync      SyncConfig
	Monitor   MonitorConfig
	Dashboard DashboardConfig
	Log       LogConfig
}

// APIConfig configures the remote client.
type APIConfig struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64
	RateBurst int
}

// SyncConfig configures the orchestrator.
type SyncConfig struct {
	PeriodicInterval time.Duration
	OnStart          bool
	RetryBase        time.Duration
	RetryMax         time.Duration
}

// MonitorConfig configures connectivity probing. An empty ProbeURL means
// the API base URL is probed.
type MonitorConfig struct {
	Interval time.Duration
	ProbeURL string
}

// DashboardConfig configures the WebSocket dashboard.
type DashboardConfig struct {
	Enabled bool
	Port    int
}

// LogConfig configures the rotating log file. An empty File logs to stderr
// only.
type LogConfig struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// HomeDir returns $OFFSYNC_HOME, or ~/.offsync when unset.
func HomeDir() string {
	if home := strings.TrimSpace(os.Getenv("OFFSYNC_HOME")); home != "" {
		return mustExpand(home)
	}
	return mustExpand(defaultHome)
}

// New returns a viper instance with defaults, the config file under home,
// and environment lookup configured. Nothing is read until Load.
func New(home string) *viper.Viper {
	v := viper.New()
	setDefaults(v, home)

	v.SetConfigFile(filepath.Join(home, FileName))
	v.SetConfigType("toml")
	v.SetEnvPrefix("OFFSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("data_dir", home)
	v.SetDefault("db_path", "")
	v.SetDefault("token_file", "")

	v.SetDefault("api.base_url", "http://localhost:3000")
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("api.rate_limit", 10.0)
	v.SetDefault("api.rate_burst", 5)

	v.SetDefault("sync.periodic_interval", 15*time.Minute)
	v.SetDefault("sync.on_start", true)
	v.SetDefault("sync.retry_base", 5*time.Second)
	v.SetDefault("sync.retry_max", 5*time.Minute)

	v.SetDefault("monitor.interval", 2*time.Second)
	v.SetDefault("monitor.probe_url", "")

	v.SetDefault("dashboard.enabled", false)
	v.SetDefault("dashboard.port", 8787)

	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.compress", true)
}

// Load reads the config file if present and resolves every key. A missing
// file is not an error.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	home := filepath.Dir(v.ConfigFileUsed())
	dataDir := mustExpand(v.GetString("data_dir"))

	cfg := &Config{
		Home:      home,
		DataDir:   dataDir,
		DBPath:    v.GetString("db_path"),
		TokenFile: v.GetString("token_file"),
		API: APIConfig{
			BaseURL:   strings.TrimRight(strings.TrimSpace(v.GetString("api.base_url")), "/"),
			Timeout:   v.GetDuration("api.timeout"),
			RateLimit: v.GetFloat64("api.rate_limit"),
			RateBurst: v.GetInt("api.rate_burst"),
		},
		Sync: SyncConfig{
			PeriodicInterval: v.GetDuration("sync.periodic_interval"),
			OnStart:          v.GetBool("sync.on_start"),
			RetryBase:        v.GetDuration("sync.retry_base"),
			RetryMax:         v.GetDuration("sync.retry_max"),
		},
		Monitor: MonitorConfig{
			Interval: v.GetDuration("monitor.interval"),
			ProbeURL: strings.TrimSpace(v.GetString("monitor.probe_url")),
		},
		Dashboard: DashboardConfig{
			Enabled: v.GetBool("dashboard.enabled"),
			Port:    v.GetInt("dashboard.port"),
		},
		Log: LogConfig{
			File:       v.GetString("log.file"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
			Compress:   v.GetBool("log.compress"),
		},
	}

	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join(dataDir, "offsync.db")
	} else {
		cfg.DBPath = mustExpand(cfg.DBPath)
	}
	if strings.TrimSpace(cfg.TokenFile) == "" {
		cfg.TokenFile = filepath.Join(dataDir, "token")
	} else {
		cfg.TokenFile = mustExpand(cfg.TokenFile)
	}
	if strings.TrimSpace(cfg.Log.File) != "" {
		cfg.Log.File = mustExpand(cfg.Log.File)
	}
	if cfg.Monitor.ProbeURL == "" {
		cfg.Monitor.ProbeURL = cfg.API.BaseURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges that would otherwise fail deep inside a component.
func (c *Config) Validate() error {
	switch {
	case c.API.BaseURL == "":
		return fmt.Errorf("api.base_url is required")
	case c.API.Timeout <= 0:
		return fmt.Errorf("api.timeout must be positive")
	case c.API.RateLimit < 0:
		return fmt.Errorf("api.rate_limit cannot be negative")
	case c.Sync.PeriodicInterval < 0:
		return fmt.Errorf("sync.periodic_interval cannot be negative")
	case c.Sync.RetryBase <= 0:
		return fmt.Errorf("sync.retry_base must be positive")
	case c.Sync.RetryMax < c.Sync.RetryBase:
		return fmt.Errorf("sync.retry_max must be at least sync.retry_base")
	case c.Monitor.Interval <= 0:
		return fmt.Errorf("monitor.interval must be positive")
	case c.Dashboard.Port < 0 || c.Dashboard.Port > 65535:
		return fmt.Errorf("dashboard.port must be between 0 and 65535")
	}
	return nil
}

// EnsureDirs creates the data directory and the parents of the database,
// token and log files.
func (c *Config) EnsureDirs() error {
	dirs := []string{c.DataDir, filepath.Dir(c.DBPath), filepath.Dir(c.TokenFile)}
	if c.Log.File != "" {
		dirs = append(dirs, filepath.Dir(c.Log.File))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
