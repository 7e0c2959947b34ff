package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"classifier": {"openai", "keyword"},
	"tts":        {"googletts", "elevenlabs"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
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

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider chains
	for i, entry := range cfg.Providers.Classifiers {
		prefix := fmt.Sprintf("providers.classifiers[%d]", i)
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		validateProviderName("classifier", entry.Name)
		if entry.Name == "openai" && entry.APIKey == "" {
			errs = append(errs, fmt.Errorf("%s.api_key is required for the openai classifier", prefix))
		}
	}
	for i, entry := range cfg.Providers.TTS {
		prefix := fmt.Sprintf("providers.tts[%d]", i)
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		validateProviderName("tts", entry.Name)
		if entry.APIKey == "" {
			errs = append(errs, fmt.Errorf("%s.api_key is required", prefix))
		}
	}
	if len(cfg.Providers.TTS) == 0 {
		slog.Warn("no TTS provider configured; responses will be text-only")
	}

	// Memory
	if cfg.Memory.EncryptionSecret == "" {
		errs = append(errs, errors.New("memory.encryption_secret is required"))
	}
	if cfg.Memory.SessionTTLHours < 0 {
		errs = append(errs, fmt.Errorf("memory.session_ttl_hours %d must not be negative", cfg.Memory.SessionTTLHours))
	}
	if cfg.Memory.PostgresDSN == "" {
		slog.Warn("memory.postgres_dsn is empty; sessions will not survive a restart")
	}

	// WebInfo
	if cfg.WebInfo.SearchAPIKey != "" && cfg.WebInfo.SearchEngineID == "" {
		errs = append(errs, errors.New("webinfo.search_engine_id is required when webinfo.search_api_key is set"))
	}
	if cfg.WebInfo.NewsAPIKey == "" {
		slog.Warn("webinfo.news_api_key is empty; news requests will answer with fallback links")
	}

	// Speech
	if cfg.Speech.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("speech.cache_size %d must not be negative", cfg.Speech.CacheSize))
	}
	if cfg.Speech.SpeakingRate != 0 {
		if cfg.Speech.SpeakingRate < 0.5 || cfg.Speech.SpeakingRate > 2.0 {
			errs = append(errs, fmt.Errorf("speech.speaking_rate %.2f is out of range [0.5, 2.0]", cfg.Speech.SpeakingRate))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
