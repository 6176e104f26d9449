package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// fileConfig mirrors the on-disk layout. Durations are stored as strings
// such as "15m0s". Paths equal to their derived default are left empty so
// they keep following data_dir.
type fileConfig struct {
	DataDir   string `toml:"data_dir"`
	DBPath    string `toml:"db_path"`
	TokenFile string `toml:"token_file"`

	API struct {
		BaseURL   string  `toml:"base_url"`
		Timeout   string  `toml:"timeout"`
		RateLimit float64 `toml:"rate_limit"`
		RateBurst int     `toml:"rate_burst"`
	} `toml:"api"`

	Sync struct {
		PeriodicInterval string `toml:"periodic_interval"`
		OnStart          bool   `toml:"on_start"`
		RetryBase        string `toml:"retry_base"`
		RetryMax         string `toml:"retry_max"`
	} `toml:"sync"`

	Monitor struct {
		Interval string `toml:"interval"`
		ProbeURL string `toml:"probe_url"`
	} `toml:"monitor"`

	Dashboard struct {
		Enabled bool `toml:"enabled"`
		Port    int  `toml:"port"`
	} `toml:"dashboard"`

	Log struct {
		File       string `toml:"file"`
		MaxSizeMB  int    `toml:"max_size_mb"`
		MaxBackups int    `toml:"max_backups"`
		MaxAgeDays int    `toml:"max_age_days"`
		Compress   bool   `toml:"compress"`
	} `toml:"log"`
}

func toFile(c *Config) fileConfig {
	var f fileConfig
	f.DataDir = c.DataDir
	if c.DBPath != filepath.Join(c.DataDir, "offsync.db") {
		f.DBPath = c.DBPath
	}
	if c.TokenFile != filepath.Join(c.DataDir, "token") {
		f.TokenFile = c.TokenFile
	}

	f.API.BaseURL = c.API.BaseURL
	f.API.Timeout = c.API.Timeout.String()
	f.API.RateLimit = c.API.RateLimit
	f.API.RateBurst = c.API.RateBurst

	f.Sync.PeriodicInterval = c.Sync.PeriodicInterval.String()
	f.Sync.OnStart = c.Sync.OnStart
	f.Sync.RetryBase = c.Sync.RetryBase.String()
	f.Sync.RetryMax = c.Sync.RetryMax.String()

	f.Monitor.Interval = c.Monitor.Interval.String()
	if c.Monitor.ProbeURL != c.API.BaseURL {
		f.Monitor.ProbeURL = c.Monitor.ProbeURL
	}

	f.Dashboard.Enabled = c.Dashboard.Enabled
	f.Dashboard.Port = c.Dashboard.Port

	f.Log.File = c.Log.File
	f.Log.MaxSizeMB = c.Log.MaxSizeMB
	f.Log.MaxBackups = c.Log.MaxBackups
	f.Log.MaxAgeDays = c.Log.MaxAgeDays
	f.Log.Compress = c.Log.Compress
	return f
}

// Encode writes c as TOML.
func (c *Config) Encode(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(toFile(c)); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

const fileHeader = `# offsync configuration
#
# Every key can be overridden with an OFFSYNC_* environment variable, with
# dots replaced by underscores (api.base_url -> OFFSYNC_API_BASE_URL).
# Empty db_path and token_file default to files inside data_dir. An empty
# monitor.probe_url probes api.base_url.

`

// ErrConfigExists is returned by WriteFile when the target exists and
// overwrite was not requested.
var ErrConfigExists = errors.New("config file already exists")

// WriteFile writes c to path with an explanatory header. The file is
// replaced atomically.
func WriteFile(path string, c *Config, overwrite bool) error {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(fileHeader)
	if err := c.Encode(&buf); err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
