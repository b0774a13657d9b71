// Command twisterd is the tongue-twister practice server: it serves the
// phrase catalog, scores recorded attempts against a speech-to-text backend,
// and tracks per-user progress and badges.
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

	"github.com/joho/godotenv"

	"github.com/zzatang/tongue-twisters-challenge/internal/auth"
	"github.com/zzatang/tongue-twisters-challenge/internal/badges"
	"github.com/zzatang/tongue-twisters-challenge/internal/config"
	"github.com/zzatang/tongue-twisters-challenge/internal/health"
	"github.com/zzatang/tongue-twisters-challenge/internal/maintenance"
	"github.com/zzatang/tongue-twisters-challenge/internal/observe"
	"github.com/zzatang/tongue-twisters-challenge/internal/practice"
	"github.com/zzatang/tongue-twisters-challenge/internal/resilience"
	"github.com/zzatang/tongue-twisters-challenge/internal/server"
	"github.com/zzatang/tongue-twisters-challenge/internal/store"
	"github.com/zzatang/tongue-twisters-challenge/pkg/provider/stt"
	"github.com/zzatang/tongue-twisters-challenge/pkg/provider/stt/deepgram"
	"github.com/zzatang/tongue-twisters-challenge/pkg/provider/stt/whisper"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// Secrets can live in a .env file next to the binary; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "twisterd: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "twisterd: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("twisterd starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"stt_provider", cfg.Providers.STT.Name,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "twisterd",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Database ──────────────────────────────────────────────────────────────
	pool, err := store.Connect(ctx, cfg.Database.PostgresDSN)
	if err != nil {
		slog.Error("failed to connect to database", "err", err)
		return 1
	}
	defer pool.Close()

	st := store.New(pool)
	if err := st.Migrate(ctx); err != nil {
		slog.Error("failed to run migrations", "err", err)
		return 1
	}
	slog.Info("database ready")

	// ── STT provider ──────────────────────────────────────────────────────────
	provider, err := buildSTT(cfg)
	if err != nil {
		slog.Error("failed to build stt provider", "err", err)
		return 1
	}

	// ── Application services ──────────────────────────────────────────────────
	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret)
	if err != nil {
		slog.Error("failed to initialise auth", "err", err)
		return 1
	}

	engine := badges.NewEngine(st, logger)
	svc := practice.NewService(practice.Config{
		ProviderName:      cfg.Providers.STT.Name,
		Language:          cfg.Practice.Language,
		Encoding:          cfg.Practice.Encoding,
		SampleRate:        cfg.Practice.SampleRate,
		TranscribeTimeout: cfg.Practice.TranscribeTimeout,
	}, provider, st, st, st, engine, nil, logger)

	healthHandler := health.New(health.Checker{Name: "database", Check: st.Ping})

	srv := server.New(cfg.Server.ListenAddr, st, svc, verifier, healthHandler, nil, logger)

	// ── Maintenance ───────────────────────────────────────────────────────────
	if !cfg.Maintenance.Disabled {
		pruneAt := cfg.Maintenance.PruneTime
		if pruneAt == "" {
			pruneAt = "03:30"
		}
		pruner := maintenance.NewPruner(st, logger)
		if err := pruner.Start(pruneAt); err != nil {
			slog.Error("failed to start maintenance job", "err", err)
			return 1
		}
		defer pruner.Stop()
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// buildSTT constructs the configured STT provider, wrapping it in a circuit
// breaker guard. A configured fallback is added behind its own breaker.
func buildSTT(cfg *config.Config) (stt.Provider, error) {
	primary, err := newProvider(cfg.Providers.STT)
	if err != nil {
		return nil, fmt.Errorf("primary stt %q: %w", cfg.Providers.STT.Name, err)
	}

	guard := resilience.NewGuardedSTT(primary, cfg.Providers.STT.Name, resilience.CircuitBreakerConfig{
		Name: cfg.Providers.STT.Name,
	})

	if cfg.Providers.STTFallback.Name != "" {
		fallback, err := newProvider(cfg.Providers.STTFallback)
		if err != nil {
			return nil, fmt.Errorf("fallback stt %q: %w", cfg.Providers.STTFallback.Name, err)
		}
		guard.AddFallback(cfg.Providers.STTFallback.Name, fallback)
		slog.Info("stt fallback configured", "name", cfg.Providers.STTFallback.Name)
	}

	return guard, nil
}

// newProvider constructs one STT backend from its config entry.
func newProvider(entry config.ProviderEntry) (stt.Provider, error) {
	switch entry.Name {
	case "deepgram":
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithBaseURL(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	case "whisper":
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		return whisper.New(entry.BaseURL, opts...)
	default:
		return nil, fmt.Errorf("unknown stt provider %q", entry.Name)
	}
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
