package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment variable
// overrides for secrets, and validates the result. Useful in tests where
// configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets secrets come from the environment (or a .env file
// loaded before config parsing) instead of the config file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.PostgresDSN = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("DEEPGRAM_API_KEY"); v != "" {
		if cfg.Providers.STT.Name == "deepgram" {
			cfg.Providers.STT.APIKey = v
		}
		if cfg.Providers.STTFallback.Name == "deepgram" {
			cfg.Providers.STTFallback.APIKey = v
		}
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	errs = append(errs, validateProvider("providers.stt", cfg.Providers.STT, true)...)
	errs = append(errs, validateProvider("providers.stt_fallback", cfg.Providers.STTFallback, false)...)

	if cfg.Database.PostgresDSN == "" {
		errs = append(errs, errors.New("database.postgres_dsn is required"))
	}
	if cfg.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}

	if cfg.Practice.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("practice.sample_rate %d must not be negative", cfg.Practice.SampleRate))
	}
	if cfg.Practice.TranscribeTimeout < 0 {
		errs = append(errs, fmt.Errorf("practice.transcribe_timeout %s must not be negative", cfg.Practice.TranscribeTimeout))
	}

	if cfg.Maintenance.PruneTime != "" {
		if _, err := time.Parse("15:04", cfg.Maintenance.PruneTime); err != nil {
			errs = append(errs, fmt.Errorf("maintenance.prune_time %q is not a valid HH:MM time", cfg.Maintenance.PruneTime))
		}
	}

	return errors.Join(errs...)
}

// validateProvider checks one STT provider entry. required entries must name
// a backend; optional entries are skipped when empty.
func validateProvider(prefix string, e ProviderEntry, required bool) []error {
	if e.Name == "" {
		if required {
			return []error{fmt.Errorf("%s.name is required", prefix)}
		}
		return nil
	}

	var errs []error
	if !slices.Contains(validProviderNames, e.Name) {
		errs = append(errs, fmt.Errorf("%s.name %q is invalid; valid values: deepgram, whisper", prefix, e.Name))
		return errs
	}
	switch e.Name {
	case "deepgram":
		if e.APIKey == "" {
			errs = append(errs, fmt.Errorf("%s.api_key is required for deepgram", prefix))
		}
	case "whisper":
		if e.BaseURL == "" {
			errs = append(errs, fmt.Errorf("%s.base_url is required for whisper", prefix))
		}
	}
	return errs
}
