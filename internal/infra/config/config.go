// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server        ServerConfig            `yaml:"server"`
	Reading       ReadingConfig           `yaml:"reading"`
	Notifications NotificationsConfig     `yaml:"notifications"`
	Filters       map[string]FilterConfig `yaml:"filters"`
	Messages      MessagesConfig          `yaml:"messages"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080"`
	Token string      `yaml:"token"` // Empty disables authentication
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// ReadingConfig represents reading defaults.
type ReadingConfig struct {
	DefaultWPM int `yaml:"default_wpm" default:"300" validate:"gte=1,lte=1200"`
}

// NotificationsConfig represents notification delivery settings.
type NotificationsConfig struct {
	SendTimeoutMs int `yaml:"send_timeout_ms" default:"500" validate:"gte=1,lte=10000"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// MessagesConfig represents user-facing messages.
type MessagesConfig struct {
	Success           string `yaml:"success" default:"OK"`
	DefaultError      string `yaml:"default_error" default:"Something went wrong."`
	InvalidRate       string `yaml:"invalid_rate" default:"Please enter a valid WPM value from 1 to 1200."`
	NoDocument        string `yaml:"no_document" default:"No file selected."`
	UnsupportedFormat string `yaml:"unsupported_format" default:"Please choose a text file."`
	DocumentTooLarge  string `yaml:"document_too_large" default:"The document is too large."`
	TooManyWords      string `yaml:"too_many_words" default:"The document has too many words."`
	ReadingInProgress string `yaml:"reading_in_progress" default:"Stop reading before loading another document."`
	AlreadyStarted    string `yaml:"already_started" default:"Reading has already started."`
	NotReading        string `yaml:"not_reading" default:"Reading is not in progress."`
	NotPaused         string `yaml:"not_paused" default:"Reading is not paused."`
	AlreadyStopped    string `yaml:"already_stopped" default:"Reading is already stopped."`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	// Only fails on malformed default tags
	if err := defaults.Set(&cfg); err != nil {
		panic(err)
	}
	return &cfg
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	if err := cfg.overrideFromEnv(); err != nil {
		return nil, err
	}

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() error {
	if v := os.Getenv("READER_TOKEN"); v != "" {
		c.Server.Token = v
	}
	if v := os.Getenv("READER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("READER_DEFAULT_WPM"); v != "" {
		wpm, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "invalid READER_DEFAULT_WPM %q", v)
		}
		c.Reading.DefaultWPM = wpm
	}
	return nil
}

// GetMessage returns the message for the given code.
func (c *Config) GetMessage(code string) string {
	switch code {
	case "success":
		return c.Messages.Success
	case "invalid_rate":
		return c.Messages.InvalidRate
	case "no_document":
		return c.Messages.NoDocument
	case "unsupported_format":
		return c.Messages.UnsupportedFormat
	case "document_too_large":
		return c.Messages.DocumentTooLarge
	case "too_many_words":
		return c.Messages.TooManyWords
	case "reading_in_progress":
		return c.Messages.ReadingInProgress
	case "already_started":
		return c.Messages.AlreadyStarted
	case "not_reading":
		return c.Messages.NotReading
	case "not_paused":
		return c.Messages.NotPaused
	case "already_stopped":
		return c.Messages.AlreadyStopped
	default:
		return c.Messages.DefaultError
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// GetFilterSettings returns the settings for a filter.
func (c *Config) GetFilterSettings(filterName string) map[string]any {
	if f, ok := c.Filters[filterName]; ok {
		return f.Settings
	}
	return nil
}
