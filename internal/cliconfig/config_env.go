package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (PRYV_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("api-endpoint", os.Getenv("PRYV_API_ENDPOINT"), &cfg.APIEndpoint)
	s.setString("token", os.Getenv("PRYV_TOKEN"), &cfg.Token)
	s.setString("state-dir", os.Getenv("PRYV_STATE_DIR"), &cfg.StateDir)
	s.setString("log-level", os.Getenv("PRYV_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("timeout", os.Getenv("PRYV_HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("poll", os.Getenv("PRYV_POLL_INTERVAL"), &cfg.PollInterval); err != nil {
		return err
	}

	if err := s.setIntFromString("chunk-size", os.Getenv("PRYV_CHUNK_SIZE"), &cfg.ChunkSize); err != nil {
		return err
	}
	if err := s.setIntFromString("rate-burst", os.Getenv("PRYV_RATE_BURST"), &cfg.RateBurst); err != nil {
		return err
	}
	if err := s.setIntFromString("max-retries", os.Getenv("PRYV_MAX_RETRIES"), &cfg.MaxRetries); err != nil {
		return err
	}
	if err := s.setFloatFromString("rate-limit", os.Getenv("PRYV_RATE_LIMIT"), &cfg.RateLimit); err != nil {
		return err
	}

	s.setBoolFromString("no-stream", os.Getenv("PRYV_DISABLE_STREAMING"), &cfg.DisableStreaming)
	s.setBoolFromString("no-gzip", os.Getenv("PRYV_DISABLE_GZIP"), &cfg.DisableGzip)
	s.setBoolFromString("once", os.Getenv("PRYV_ONCE"), &cfg.Once)

	return nil
}
