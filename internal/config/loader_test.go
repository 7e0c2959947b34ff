package config_test

import (
	"strings"
	"testing"

	"github.com/swarajlabs/vaani/internal/config"
)

func TestLoadFromReader_CompleteConfigIsValid(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":8080"
  log_level: info
providers:
  classifiers:
    - name: openai
      api_key: sk-test
      model: gpt-4o-mini
    - name: keyword
  tts:
    - name: googletts
      api_key: g-test
    - name: elevenlabs
      api_key: xi-test
      options:
        voice_id: some-voice
memory:
  postgres_dsn: "postgres://localhost/vaani"
  encryption_secret: "super-secret"
webinfo:
  news_api_key: news-test
  search_api_key: search-test
  search_engine_id: cx-test
speech:
  cache_size: 100
  speaking_rate: 1.0
persona:
  name: Swaraj
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q", cfg.Server.ListenAddr)
	}
	if len(cfg.Providers.Classifiers) != 2 || cfg.Providers.Classifiers[0].Name != "openai" {
		t.Errorf("classifiers = %+v", cfg.Providers.Classifiers)
	}
	if got := cfg.Providers.TTS[1].Options["voice_id"]; got != "some-voice" {
		t.Errorf("voice_id option = %v", got)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := `
memory:
  encryption_secret: s
  postgress_dsn: "typo"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_EncryptionSecretRequired(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":8080"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing encryption secret, got nil")
	}
	if !strings.Contains(err.Error(), "encryption_secret") {
		t.Errorf("error should mention encryption_secret, got: %v", err)
	}
}

func TestValidate_OpenAIClassifierRequiresKey(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  classifiers:
    - name: openai
memory:
  encryption_secret: s
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for openai classifier without api_key, got nil")
	}
	if !strings.Contains(err.Error(), "api_key") {
		t.Errorf("error should mention api_key, got: %v", err)
	}
}

func TestValidate_SearchKeyRequiresEngineID(t *testing.T) {
	t.Parallel()
	yaml := `
memory:
  encryption_secret: s
webinfo:
  search_api_key: search-test
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for search key without engine id, got nil")
	}
	if !strings.Contains(err.Error(), "search_engine_id") {
		t.Errorf("error should mention search_engine_id, got: %v", err)
	}
}

func TestValidate_SpeakingRateRange(t *testing.T) {
	t.Parallel()
	yaml := `
memory:
  encryption_secret: s
speech:
  speaking_rate: 3.5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for out-of-range speaking rate, got nil")
	}
	if !strings.Contains(err.Error(), "speaking_rate") {
		t.Errorf("error should mention speaking_rate, got: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  tts:
    - name: ""
speech:
  cache_size: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "encryption_secret") || !strings.Contains(errStr, "cache_size") {
		t.Errorf("error should join all failures, got: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	found := false
	for _, n := range config.ValidProviderNames["classifier"] {
		if n == "keyword" {
			found = true
			break
		}
	}
	if !found {
		t.Error("ValidProviderNames[\"classifier\"] should contain \"keyword\"")
	}
}
