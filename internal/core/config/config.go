package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultBackendURL        = "http://localhost:8000"
	DefaultRequestTimeout    = 30 * time.Second
	DefaultTypingInterval    = 20 * time.Millisecond
	DefaultRequestsPerSecond = 5.0
	DefaultLogLevel          = "info"
	DefaultExportTitle       = "{{title}} ({{session_id}})"
)

type Config struct {
	BackendURL        string
	RequestTimeout    time.Duration
	TypingInterval    time.Duration
	RequestsPerSecond float64
	LogLevel          string
	LogFile           string
	ExportDir         string
	ExportTitle       string // mustache template for pdf/markdown headers
	ContentDir        string // overrides for docs.txt, faq.txt, support.txt
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

type tomlConfig struct {
	BackendURL        string   `toml:"backend_url"`
	RequestTimeout    duration `toml:"request_timeout"`
	TypingInterval    duration `toml:"typing_interval"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	LogLevel          string   `toml:"log_level"`
	LogFile           string   `toml:"log_file"`
	ExportDir         string   `toml:"export_dir"`
	ExportTitle       string   `toml:"export_title"`
	ContentDir        string   `toml:"content_dir"`
}

// Dir returns ~/.config/supportchat
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "~"
	}
	return filepath.Join(home, ".config", "supportchat")
}

// Default returns the built-in configuration
func Default() *Config {
	dir := Dir()
	return &Config{
		BackendURL:        DefaultBackendURL,
		RequestTimeout:    DefaultRequestTimeout,
		TypingInterval:    DefaultTypingInterval,
		RequestsPerSecond: DefaultRequestsPerSecond,
		LogLevel:          DefaultLogLevel,
		LogFile:           filepath.Join(dir, "supportchat.log"),
		ExportTitle:       DefaultExportTitle,
		ContentDir:        dir,
	}
}

// Load reads config from ~/.config/supportchat/config.toml
func Load() (*Config, error) {
	return LoadFrom(filepath.Join(Dir(), "config.toml"))
}

// LoadFrom reads config from path. A missing file yields the defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err != nil {
		return cfg, nil // Use defaults
	}

	var tc tomlConfig
	if _, err := toml.DecodeFile(path, &tc); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if tc.BackendURL != "" {
		cfg.BackendURL = strings.TrimRight(tc.BackendURL, "/")
	}
	if tc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = tc.RequestTimeout.Duration
	}
	if tc.TypingInterval.Duration > 0 {
		cfg.TypingInterval = tc.TypingInterval.Duration
	}
	if tc.RequestsPerSecond > 0 {
		cfg.RequestsPerSecond = tc.RequestsPerSecond
	}
	if tc.LogLevel != "" {
		cfg.LogLevel = tc.LogLevel
	}
	if tc.LogFile != "" {
		cfg.LogFile = expandHome(tc.LogFile)
	}
	if tc.ExportDir != "" {
		cfg.ExportDir = expandHome(tc.ExportDir)
	}
	if tc.ExportTitle != "" {
		cfg.ExportTitle = tc.ExportTitle
	}
	if tc.ContentDir != "" {
		cfg.ContentDir = expandHome(tc.ContentDir)
	}

	return cfg, nil
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}
