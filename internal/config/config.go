// Package config loads and validates application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// MinPollInterval is the shortest allowed background polling interval.
const MinPollInterval = 15 * time.Minute

// Configuration validation errors.
var (
	ErrUnknownDriver       = errors.New("database.driver must be one of: file, sqlite, postgres")
	ErrMissingPath         = errors.New("database.path is required for the file and sqlite drivers")
	ErrMissingDSN          = errors.New("database.dsn is required for the postgres driver")
	ErrMissingAddr         = errors.New("server.addr is required")
	ErrInvalidTimeout      = errors.New("fetch.timeout must be positive")
	ErrInvalidRetries      = errors.New("fetch.retries must be non-negative")
	ErrInvalidConcurrency  = errors.New("fetch.concurrency must be at least 1")
	ErrInvalidDefaultLimit = errors.New("fetch.default_limit must be at least 1")
	ErrInvalidBatchSize    = errors.New("stories batch sizes must be at least 1")
	ErrInvalidStoryLimit   = errors.New("stories limits must be at least 1")
	ErrInvalidBonus        = errors.New("keywords.supporting_bonus must be non-negative")
	ErrInvalidLogLevel     = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat    = errors.New("logging.format must be 'text' or 'json'")
)

// Config is the complete application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Fetch    FetchConfig    `yaml:"fetch" toml:"fetch"`
	Stories  StoriesConfig  `yaml:"stories" toml:"stories"`
	Keywords KeywordsConfig `yaml:"keywords" toml:"keywords"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr      string `yaml:"addr" toml:"addr"`
	SiteTitle string `yaml:"site_title" toml:"site_title"`
	SiteURL   string `yaml:"site_url" toml:"site_url"`
}

// DatabaseConfig selects the feed configuration store.
type DatabaseConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	Path   string `yaml:"path" toml:"path"`
	DSN    string `yaml:"dsn" toml:"dsn"`
}

// FetchConfig controls feed fetching.
type FetchConfig struct {
	Timeout      Duration `yaml:"timeout" toml:"timeout"`
	UserAgent    string   `yaml:"user_agent" toml:"user_agent"`
	DefaultLimit int      `yaml:"default_limit" toml:"default_limit"`
	Retries      int      `yaml:"retries" toml:"retries"`
	Concurrency  int      `yaml:"concurrency" toml:"concurrency"`
	PollInterval Duration `yaml:"poll_interval" toml:"poll_interval"`
}

// StoriesConfig sizes the first page and each "load more" page.
type StoriesConfig struct {
	InitialFeedBatchSize int `yaml:"initial_feed_batch_size" toml:"initial_feed_batch_size"`
	InitialStoryLimit    int `yaml:"initial_story_limit" toml:"initial_story_limit"`
	FeedBatchSize        int `yaml:"feed_batch_size" toml:"feed_batch_size"`
	StoryLimit           int `yaml:"story_limit" toml:"story_limit"`
}

// KeywordsConfig overrides the built-in keyword lists when non-empty.
type KeywordsConfig struct {
	Primary         []string `yaml:"primary" toml:"primary"`
	Supporting      []string `yaml:"supporting" toml:"supporting"`
	SupportingBonus *int     `yaml:"supporting_bonus" toml:"supporting_bonus"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Duration decodes "20s"-style strings from YAML and TOML.
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// UnmarshalText implements encoding.TextUnmarshaler, which TOML uses.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:      "0.0.0.0:8080",
			SiteTitle: "Frontpage",
		},
		Database: DatabaseConfig{
			Driver: "file",
			Path:   filepath.Join("data", "feeds.json"),
		},
		Fetch: FetchConfig{
			Timeout:      Duration{20 * time.Second},
			UserAgent:    "Frontpage RSS Reader",
			DefaultLimit: 15,
			Retries:      1,
			Concurrency:  8,
			PollInterval: Duration{MinPollInterval},
		},
		Stories: StoriesConfig{
			InitialFeedBatchSize: 6,
			InitialStoryLimit:    40,
			FeedBatchSize:        4,
			StoryLimit:           30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a .env file if present, then the config file at path with
// ${VAR} references expanded. Keys missing from the file keep their
// defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	expanded := os.ExpandEnv(string(raw))

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config toml: %w", err)
		}
	} else if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration and clamps the poll interval.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "file", "sqlite":
		if c.Database.Path == "" {
			return ErrMissingPath
		}
	case "postgres":
		if c.Database.DSN == "" {
			return ErrMissingDSN
		}
	default:
		return ErrUnknownDriver
	}

	if c.Server.Addr == "" {
		return ErrMissingAddr
	}
	if c.Fetch.Timeout.Duration <= 0 {
		return ErrInvalidTimeout
	}
	if c.Fetch.Retries < 0 {
		return ErrInvalidRetries
	}
	if c.Fetch.Concurrency < 1 {
		return ErrInvalidConcurrency
	}
	if c.Fetch.DefaultLimit < 1 {
		return ErrInvalidDefaultLimit
	}
	if c.Fetch.PollInterval.Duration < MinPollInterval {
		c.Fetch.PollInterval.Duration = MinPollInterval
	}

	if c.Stories.InitialFeedBatchSize < 1 || c.Stories.FeedBatchSize < 1 {
		return ErrInvalidBatchSize
	}
	if c.Stories.InitialStoryLimit < 1 || c.Stories.StoryLimit < 1 {
		return ErrInvalidStoryLimit
	}
	if c.Keywords.SupportingBonus != nil && *c.Keywords.SupportingBonus < 0 {
		return ErrInvalidBonus
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return ErrInvalidLogFormat
	}
	return nil
}
