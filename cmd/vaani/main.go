// Command vaani is the main entry point for the Vaani voice assistant server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/swarajlabs/vaani/internal/action"
	"github.com/swarajlabs/vaani/internal/config"
	"github.com/swarajlabs/vaani/internal/health"
	"github.com/swarajlabs/vaani/internal/intent"
	"github.com/swarajlabs/vaani/internal/observe"
	"github.com/swarajlabs/vaani/internal/orchestrator"
	"github.com/swarajlabs/vaani/internal/resilience"
	"github.com/swarajlabs/vaani/internal/respond"
	"github.com/swarajlabs/vaani/internal/speech"
	"github.com/swarajlabs/vaani/internal/transport"
	"github.com/swarajlabs/vaani/internal/webinfo"
	"github.com/swarajlabs/vaani/pkg/memory"
	"github.com/swarajlabs/vaani/pkg/memory/memstore"
	"github.com/swarajlabs/vaani/pkg/memory/postgres"
	"github.com/swarajlabs/vaani/pkg/provider/classifier"
	"github.com/swarajlabs/vaani/pkg/provider/classifier/keyword"
	oaiclassifier "github.com/swarajlabs/vaani/pkg/provider/classifier/openai"
	"github.com/swarajlabs/vaani/pkg/provider/tts"
	"github.com/swarajlabs/vaani/pkg/provider/tts/elevenlabs"
	"github.com/swarajlabs/vaani/pkg/provider/tts/googletts"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "vaani: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "vaani: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("vaani starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "vaani"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Memory layer ──────────────────────────────────────────────────────────
	cipher, err := memory.NewCipher(cfg.Memory.EncryptionSecret)
	if err != nil {
		slog.Error("failed to initialise message encryption", "err", err)
		return 1
	}

	sessionTTL := memory.DefaultSessionTTL
	if cfg.Memory.SessionTTLHours > 0 {
		sessionTTL = time.Duration(cfg.Memory.SessionTTLHours) * time.Hour
	}

	var (
		store     memory.Store
		pgStore   *postgres.Store
		healthSrv *health.Handler
	)
	if cfg.Memory.PostgresDSN != "" {
		pgStore, err = postgres.New(ctx, cfg.Memory.PostgresDSN, postgres.WithTTL(sessionTTL))
		if err != nil {
			slog.Error("failed to connect to postgres", "err", err)
			return 1
		}
		defer pgStore.Close()
		store = pgStore
		healthSrv = health.New(health.StoreChecker(pgStore))
		slog.Info("session store: postgres")
	} else {
		store = memstore.New(memstore.WithTTL(sessionTTL))
		healthSrv = health.New()
		slog.Info("session store: in-memory")
	}
	layer := memory.NewLayer(store, cipher)

	// ── Web collaborators ─────────────────────────────────────────────────────
	deps := action.Deps{Notes: layer}
	if cfg.WebInfo.NewsAPIKey != "" {
		news, err := webinfo.NewNewsClient(cfg.WebInfo.NewsAPIKey)
		if err != nil {
			slog.Error("failed to build news client", "err", err)
			return 1
		}
		deps.News = news
	}
	if cfg.WebInfo.SearchAPIKey != "" && cfg.WebInfo.SearchEngineID != "" {
		search, err := webinfo.NewSearchClient(cfg.WebInfo.SearchAPIKey, cfg.WebInfo.SearchEngineID)
		if err != nil {
			slog.Error("failed to build search client", "err", err)
			return 1
		}
		deps.Search = search
	}

	// ── Action registry ───────────────────────────────────────────────────────
	registry := action.NewRegistry(metrics)
	action.RegisterBuiltins(registry, deps)

	// ── Intent classifier chain ───────────────────────────────────────────────
	classifierChain, err := buildClassifierChain(cfg, registry)
	if err != nil {
		slog.Error("failed to build classifier chain", "err", err)
		return 1
	}

	// ── Speech synthesis chain (optional) ─────────────────────────────────────
	synth, err := buildSynthesizer(cfg, metrics)
	if err != nil {
		slog.Error("failed to build speech chain", "err", err)
		return 1
	}

	// ── Orchestrator ──────────────────────────────────────────────────────────
	orch := orchestrator.New(orchestrator.Config{
		Memory:        layer,
		Classifier:    classifierChain,
		Validator:     intent.NewValidator(registry),
		Registry:      registry,
		Responder:     respond.NewGenerator(classifierChain),
		Synthesizer:   synth,
		Metrics:       metrics,
		ContextWindow: cfg.Memory.ContextWindow,
	})

	// ── HTTP/WebSocket server ─────────────────────────────────────────────────
	srvCfg := transport.Config{
		Addr:         cfg.Server.ListenAddr,
		Orchestrator: orch,
		Registry:     registry,
		Synthesizer:  synth,
		Health:       healthSrv,
		Metrics:      metrics,
	}
	if cfg.Server.TLS != nil {
		srvCfg.CertFile = cfg.Server.TLS.CertFile
		srvCfg.KeyFile = cfg.Server.TLS.KeyFile
	}
	server := transport.NewServer(srvCfg)

	slog.Info("server ready — press Ctrl+C to shut down")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	if synth != nil {
		g.Go(func() error {
			synth.Run(gctx)
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// buildClassifierChain assembles the ordered classifier fallback chain from
// config. The keyword classifier is always the final entry, so intent parsing
// keeps working with every remote provider down.
func buildClassifierChain(cfg *config.Config, registry *action.Registry) (classifier.Provider, error) {
	var (
		names     []string
		providers []classifier.Provider
	)
	for _, entry := range cfg.Providers.Classifiers {
		switch entry.Name {
		case "openai":
			var opts []oaiclassifier.Option
			if entry.BaseURL != "" {
				opts = append(opts, oaiclassifier.WithBaseURL(entry.BaseURL))
			}
			if entry.Model != "" {
				opts = append(opts, oaiclassifier.WithModel(entry.Model))
			}
			p, err := oaiclassifier.New(entry.APIKey, personaPrompt(cfg.Persona), registry.Functions(), opts...)
			if err != nil {
				return nil, fmt.Errorf("classifier %q: %w", entry.Name, err)
			}
			names = append(names, entry.Name)
			providers = append(providers, p)
		case "keyword":
			names = append(names, entry.Name)
			providers = append(providers, keyword.New())
		default:
			return nil, fmt.Errorf("unknown classifier provider %q", entry.Name)
		}
	}
	if len(names) == 0 || names[len(names)-1] != "keyword" {
		names = append(names, "keyword")
		providers = append(providers, keyword.New())
	}
	return resilience.NewClassifierChain(resilience.FallbackConfig{}, names, providers), nil
}

// buildSynthesizer assembles the TTS fallback chain and wraps it in the
// caching synthesizer. An empty chain disables synthesis; turns then complete
// text-only.
func buildSynthesizer(cfg *config.Config, metrics *observe.Metrics) (*speech.Synthesizer, error) {
	var (
		names     []string
		providers []tts.Provider
	)
	for _, entry := range cfg.Providers.TTS {
		switch entry.Name {
		case "googletts":
			var opts []googletts.Option
			if entry.BaseURL != "" {
				opts = append(opts, googletts.WithEndpoint(entry.BaseURL))
			}
			p, err := googletts.New(entry.APIKey, opts...)
			if err != nil {
				return nil, fmt.Errorf("tts %q: %w", entry.Name, err)
			}
			names = append(names, entry.Name)
			providers = append(providers, p)
		case "elevenlabs":
			var opts []elevenlabs.Option
			if entry.Model != "" {
				opts = append(opts, elevenlabs.WithModel(entry.Model))
			}
			if voice, ok := entry.Options["voice_id"].(string); ok && voice != "" {
				opts = append(opts, elevenlabs.WithVoiceID(voice))
			}
			if entry.BaseURL != "" {
				opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
			}
			p, err := elevenlabs.New(entry.APIKey, opts...)
			if err != nil {
				return nil, fmt.Errorf("tts %q: %w", entry.Name, err)
			}
			names = append(names, entry.Name)
			providers = append(providers, p)
		default:
			return nil, fmt.Errorf("unknown tts provider %q", entry.Name)
		}
	}
	if len(providers) == 0 {
		slog.Warn("no tts providers configured, speech synthesis disabled")
		return nil, nil
	}

	chain := resilience.NewSynthChain(resilience.FallbackConfig{}, names, providers)

	var opts []speech.Option
	if cfg.Speech.CacheSize > 0 {
		opts = append(opts, speech.WithCacheSize(cfg.Speech.CacheSize))
	}
	if cfg.Speech.CacheTTLHours > 0 {
		opts = append(opts, speech.WithCacheTTL(time.Duration(cfg.Speech.CacheTTLHours)*time.Hour))
	}
	if cfg.Speech.SpeakingRate > 0 {
		opts = append(opts, speech.WithSpeakingRate(cfg.Speech.SpeakingRate))
	}
	return speech.NewSynthesizer(chain, metrics, opts...), nil
}

// personaPrompt renders the persona block for the generative providers.
func personaPrompt(p config.PersonaConfig) string {
	name := p.Name
	if name == "" {
		name = "Swaraj"
	}
	style := p.Style
	if style == "" {
		style = "a friendly bilingual (Hindi/English) voice assistant with a casual, warm style; " +
			"mirrors the user's language, keeps replies short and speakable, and uses expressions " +
			"like \"bhai\" and \"yo\" naturally without overdoing them"
	}
	return fmt.Sprintf("You are %s, %s.", name, style)
}

// newLogger builds the process-wide slog logger at the configured level.
func newLogger(level config.LogLevel) *slog.Logger {
	var l slog.Level
	switch level {
	case config.LogDebug:
		l = slog.LevelDebug
	case config.LogWarn:
		l = slog.LevelWarn
	case config.LogError:
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
