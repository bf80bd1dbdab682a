package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	APIEndpoint      string   `toml:"api_endpoint"`
	Token            string   `toml:"token"`
	ChunkSize        int      `toml:"chunk_size"`
	HTTPTimeout      string   `toml:"http_timeout"`
	RateLimit        *float64 `toml:"rate_limit"`
	RateBurst        int      `toml:"rate_burst"`
	MaxRetries       int      `toml:"max_retries"`
	DisableStreaming *bool    `toml:"disable_streaming"`
	DisableGzip      *bool    `toml:"disable_gzip"`
	PollInterval     string   `toml:"poll_interval"`
	StateDir         string   `toml:"state_dir"`
	LogLevel         string   `toml:"log_level"`
	Once             *bool    `toml:"once"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.pryvlink/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".pryvlink", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("api-endpoint", fc.APIEndpoint, &cfg.APIEndpoint)
	s.setString("token", fc.Token, &cfg.Token)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("poll", fc.PollInterval, &cfg.PollInterval); err != nil {
		return err
	}

	s.setInt("chunk-size", fc.ChunkSize, &cfg.ChunkSize)
	s.setInt("rate-burst", fc.RateBurst, &cfg.RateBurst)
	s.setInt("max-retries", fc.MaxRetries, &cfg.MaxRetries)
	s.setFloatAllowZero("rate-limit", fc.RateLimit, &cfg.RateLimit)

	s.setBool("no-stream", fc.DisableStreaming, &cfg.DisableStreaming)
	s.setBool("no-gzip", fc.DisableGzip, &cfg.DisableGzip)
	s.setBool("once", fc.Once, &cfg.Once)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
