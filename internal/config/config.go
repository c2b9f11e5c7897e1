// Package config loads the webstorage YAML configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultListen        = "127.0.0.1:8080"
	DefaultDatabase      = "webstorage.db"
	DefaultLogLevel      = "info"
	DefaultCacheTTL      = 10 * time.Minute
	DefaultCursorTimeout = 3 * time.Minute
	DefaultSweepInterval = 3 * time.Minute
	DefaultBatchSize     = 100
)

// Config is the resolved configuration.
type Config struct {
	// Endpoint is the base URL of a remote endpoint. Empty means the
	// commands run an in-process endpoint over Database.
	Endpoint string

	// Listen is the address `serve` binds.
	Listen string

	// Database is the SQLite file of the in-process endpoint.
	Database string

	// Registry is the CUE file or directory of trusted descriptors.
	Registry string

	LogLevel      string
	CacheTTL      time.Duration
	CursorTimeout time.Duration
	SweepInterval time.Duration
	BatchSize     int
}

// file mirrors the YAML layout. Durations are strings for
// time.ParseDuration.
type file struct {
	Endpoint      string `yaml:"endpoint"`
	Listen        string `yaml:"listen"`
	Database      string `yaml:"database"`
	Registry      string `yaml:"registry"`
	LogLevel      string `yaml:"log_level"`
	CacheTTL      string `yaml:"cache_ttl"`
	CursorTimeout string `yaml:"cursor_timeout"`
	SweepInterval string `yaml:"sweep_interval"`
	BatchSize     *int   `yaml:"batch_size"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Listen:        DefaultListen,
		Database:      DefaultDatabase,
		LogLevel:      DefaultLogLevel,
		CacheTTL:      DefaultCacheTTL,
		CursorTimeout: DefaultCursorTimeout,
		SweepInterval: DefaultSweepInterval,
		BatchSize:     DefaultBatchSize,
	}
}

// Load reads the file at path over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg := Default()
	setString(&cfg.Endpoint, f.Endpoint)
	setString(&cfg.Listen, f.Listen)
	setString(&cfg.Database, f.Database)
	setString(&cfg.Registry, f.Registry)
	setString(&cfg.LogLevel, f.LogLevel)
	if f.BatchSize != nil {
		cfg.BatchSize = *f.BatchSize
	}

	for _, d := range []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"cache_ttl", f.CacheTTL, &cfg.CacheTTL},
		{"cursor_timeout", f.CursorTimeout, &cfg.CursorTimeout},
		{"sweep_interval", f.SweepInterval, &cfg.SweepInterval},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch {
	case c.CacheTTL <= 0:
		return fmt.Errorf("cache_ttl must be positive, got %s", c.CacheTTL)
	case c.CursorTimeout <= 0:
		return fmt.Errorf("cursor_timeout must be positive, got %s", c.CursorTimeout)
	case c.SweepInterval <= 0:
		return fmt.Errorf("sweep_interval must be positive, got %s", c.SweepInterval)
	case c.BatchSize <= 0:
		return fmt.Errorf("batch_size must be > 0, got %d", c.BatchSize)
	case c.Endpoint == "" && c.Database == "":
		return fmt.Errorf("either endpoint or database is required")
	}
	if c.Endpoint != "" && !strings.HasPrefix(c.Endpoint, "http://") && !strings.HasPrefix(c.Endpoint, "https://") {
		return fmt.Errorf("endpoint must be an http or https URL, got %q", c.Endpoint)
	}
	return nil
}

// ParseLevel maps a log_level value to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log_level: unknown level %q", s)
	}
	return level, nil
}
