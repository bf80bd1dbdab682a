package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bft-labs/pryvlink/internal/app"
)

// Config holds CLI configuration for pryvlink.
type Config struct {
	APIEndpoint string
	Token       string

	ChunkSize   int
	HTTPTimeout time.Duration

	RateLimit  float64
	RateBurst  int
	MaxRetries int

	DisableStreaming bool
	DisableGzip      bool

	PollInterval time.Duration
	StateDir     string
	LogLevel     string
	Once         bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    app.DefaultChunkSize,
		HTTPTimeout:  app.DefaultHTTPTimeout,
		RateBurst:    1,
		PollInterval: app.DefaultPollInterval,
		StateDir:     "", // Derived from the user's home during Validate
		LogLevel:     "info",
		Token:        os.Getenv("PRYV_TOKEN"),
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.APIEndpoint == "" {
		return fmt.Errorf("api-endpoint is required")
	}
	if _, _, err := app.ParseAPIEndpoint(c.APIEndpoint, c.Token); err != nil {
		return err
	}

	if c.StateDir == "" {
		if h, err := os.UserHomeDir(); err == nil {
			c.StateDir = filepath.Join(h, ".pryvlink", "state")
		} else {
			c.StateDir = ".pryvlink"
		}
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}

	return nil
}

// Masked returns a copy safe to log: the token, whether standalone or
// embedded in the endpoint, is replaced.
func (c Config) Masked() Config {
	const mask = "*****"
	if c.Token != "" {
		c.Token = mask
	}
	if base, token, err := app.ParseAPIEndpoint(c.APIEndpoint, ""); err == nil && token != "" {
		c.APIEndpoint = app.FormatAPIEndpoint(base, mask)
	}
	return c
}

// Library converts the CLI configuration to the connection configuration.
func (c Config) Library() app.Config {
	cfg := app.DefaultConfig()
	cfg.APIEndpoint = c.APIEndpoint
	cfg.Token = c.Token
	cfg.ChunkSize = c.ChunkSize
	cfg.HTTPTimeout = c.HTTPTimeout
	cfg.RateLimit = c.RateLimit
	cfg.RateBurst = c.RateBurst
	cfg.MaxRetries = c.MaxRetries
	cfg.DisableStreaming = c.DisableStreaming
	cfg.DisableGzip = c.DisableGzip
	cfg.PollInterval = c.PollInterval
	cfg.StateDir = c.StateDir
	cfg.Once = c.Once
	return cfg
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setFloat sets a float64 value if positive and flag not changed.
func (s *configSetter) setFloat(flag string, value float64, dst *float64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setFloatAllowZero sets a float64 value if non-negative and flag not changed.
// Used for limits where 0 means "disabled".
func (s *configSetter) setFloatAllowZero(flag string, value *float64, dst *float64) {
	if value == nil || *value < 0 || s.changed[flag] {
		return
	}
	*dst = *value
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setFloatFromString parses a string to float64 and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if f <= 0 {
		return nil
	}
	*dst = f
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
