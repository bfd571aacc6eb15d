package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/launchdash/dashboard"
	"github.com/hazyhaar/launchdash/internal/logging"
	"github.com/hazyhaar/launchdash/launches"
)

// Config holds all launchdash configuration.
type Config struct {
	Addr            string          `yaml:"addr"`
	Dataset         string          `yaml:"dataset"`
	DatasetTable    string          `yaml:"dataset_table"`
	ReloadInterval  time.Duration   `yaml:"reload_interval"` // 0 loads the dataset once
	Title           string          `yaml:"title"`
	SliderStep      float64         `yaml:"slider_step"`
	LogLevel        string          `yaml:"log_level"`
	LogFormat       string          `yaml:"log_format"`
	ObservabilityDB string          `yaml:"observability_db"`
	RetentionDays   int             `yaml:"observability_retention_days"`
	MCP             bool            `yaml:"mcp"`
	Auth            AuthConfig      `yaml:"auth"`
	Chart           ChartConfig     `yaml:"chart"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

// AuthConfig enables HTTP basic auth when Username is set.
type AuthConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"` // bcrypt
}

// ChartConfig sets the rendered chart size in pixels.
type ChartConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// RateLimitConfig caps chart updates per client IP per minute. Negative disables.
type RateLimitConfig struct {
	UpdatesPerMinute int `yaml:"updates_per_minute"`
}

func (c *Config) defaults() {
	if c.Addr == "" {
		c.Addr = ":8050"
	}
	if c.Dataset == "" {
		c.Dataset = "spacex_launch_dash.csv"
	}
	if c.DatasetTable == "" {
		c.DatasetTable = launches.DefaultTable
	}
	if c.Title == "" {
		c.Title = dashboard.DefaultTitle
	}
	if c.SliderStep <= 0 {
		c.SliderStep = dashboard.DefaultSliderStep
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = 30
	}
	if c.Chart.Width <= 0 {
		c.Chart.Width = dashboard.DefaultChartWidth
	}
	if c.Chart.Height <= 0 {
		c.Chart.Height = dashboard.DefaultChartHeight
	}
	if c.RateLimit.UpdatesPerMinute == 0 {
		c.RateLimit.UpdatesPerMinute = 600
	}
}

// applyEnv overrides file values with LAUNCHDASH_ADDR, LAUNCHDASH_DATASET
// and LOG_LEVEL when they are set.
func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("LAUNCHDASH_ADDR"); v != "" {
		c.Addr = v
	}
	if v := getenv("LAUNCHDASH_DATASET"); v != "" {
		c.Dataset = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("config: log_format must be json or text, got %q", c.LogFormat)
	}
	if c.Auth.Username != "" {
		if _, err := bcrypt.Cost([]byte(c.Auth.PasswordHash)); err != nil {
			return fmt.Errorf("config: auth.password_hash: %w", err)
		}
	}
	return nil
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// loadConfig layers the optional file, the environment, command-line
// overrides and the defaults, in that order.
func loadConfig(path string, getenv func(string) string, overrides ...func(*Config)) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		var err error
		if cfg, err = LoadConfigFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv(getenv)
	for _, o := range overrides {
		o(cfg)
	}
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
