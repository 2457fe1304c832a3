// Command voiceonstudio runs the VoiceOn Studio clean-take analysis server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/robpineda/voiceonstudio/internal/analysis"
	"github.com/robpineda/voiceonstudio/internal/config"
	"github.com/robpineda/voiceonstudio/internal/gcpauth"
	"github.com/robpineda/voiceonstudio/internal/health"
	"github.com/robpineda/voiceonstudio/internal/observe"
	"github.com/robpineda/voiceonstudio/internal/resilience"
	"github.com/robpineda/voiceonstudio/internal/scriptmatch"
	"github.com/robpineda/voiceonstudio/internal/server"
	"github.com/robpineda/voiceonstudio/pkg/provider/llm"
	"github.com/robpineda/voiceonstudio/pkg/provider/llm/anyllm"
	oallm "github.com/robpineda/voiceonstudio/pkg/provider/llm/openai"
	"github.com/robpineda/voiceonstudio/pkg/provider/stt"
	"github.com/robpineda/voiceonstudio/pkg/provider/stt/gspeech"
)

// version is stamped at build time via -ldflags.
var version = "dev"

const shutdownTimeout = 15 * time.Second

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
			fmt.Fprintf(os.Stderr, "voiceonstudio: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voiceonstudio: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so a config reload can adjust verbosity
	// without recreating the handler.
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("voiceonstudio starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "voiceonstudio",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Provider registry ─────────────────────────────────────────────────────
	creds := gcpauth.NewResolver()
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, creds)

	sttProvider, llmProvider, err := buildProviders(cfg, reg, metrics)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Analysis pipeline ─────────────────────────────────────────────────────
	analyzer, scorer, err := buildPipeline(cfg, sttProvider, llmProvider, metrics)
	if err != nil {
		slog.Error("failed to build analysis pipeline", "err", err)
		return 1
	}

	srv, err := server.New(analyzer, scorer)
	if err != nil {
		slog.Error("failed to create server", "err", err)
		return 1
	}

	// ── HTTP routes ───────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	srv.Register(mux)
	health.New(health.Checker{
		Name: "credentials",
		Check: func(ctx context.Context) error {
			_, err := creds.Token(ctx)
			return err
		},
	}).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ── Config hot-reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		diff := config.Diff(old, new)
		if diff.LogLevelChanged {
			level.Set(slogLevel(diff.NewLogLevel))
			slog.Info("log level updated", "log_level", diff.NewLogLevel)
		}
		if diff.AnalysisChanged {
			analyzer, scorer, err := buildPipeline(new, sttProvider, llmProvider, metrics)
			if err != nil {
				slog.Error("config reload: keeping previous analysis settings", "err", err)
				return
			}
			srv.UpdatePipeline(analyzer, scorer)
			slog.Info("analysis settings updated", "analysis", new.Analysis)
		}
	})
	if err != nil {
		slog.Warn("config hot-reload disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── Serve ─────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", cfg.Server.ListenAddr, "tls", cfg.Server.TLS != nil)
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = httpServer.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry, creds *gcpauth.Resolver) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("gspeech", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []gspeech.Option
		if entry.BaseURL != "" {
			opts = append(opts, gspeech.WithEndpoint(entry.BaseURL))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, gspeech.WithLanguage(lang))
		}
		return gspeech.New(creds, opts...)
	})

	// ── LLM ───────────────────────────────────────────────────────────────────

	// openai uses the official SDK directly.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oallm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oallm.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, oallm.WithOrganization(org))
		}
		return oallm.New(entry.APIKey, entry.Model, opts...)
	})

	// The remaining hosted providers share one shape: optional APIKey +
	// optional BaseURL through the any-llm adapter.
	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})
}

// buildProviders instantiates the configured STT and LLM providers and wraps
// each in a circuit-breaking fallback group. A fallback provider declared in
// the config is built from its own block and registered after the primary.
func buildProviders(cfg *config.Config, reg *config.Registry, metrics *observe.Metrics) (stt.Provider, llm.Provider, error) {
	sttPrimary, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return nil, nil, fmt.Errorf("create stt provider %q: %w", cfg.Providers.STT.Name, err)
	}
	slog.Info("provider created", "kind", "stt", "name", cfg.Providers.STT.Name)

	llmPrimary, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		return nil, nil, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Name, err)
	}
	slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name, "model", cfg.Providers.LLM.Model)

	fbCfg := resilience.FallbackConfig{Metrics: metrics}
	sttProvider := resilience.NewSTTFallback(sttPrimary, cfg.Providers.STT.Name, fbCfg)
	llmProvider := resilience.NewLLMFallback(llmPrimary, cfg.Providers.LLM.Name, fbCfg)

	if fb := cfg.Providers.LLM.Fallback; fb != nil {
		fallback, err := reg.CreateLLM(fb.Entry())
		if err != nil {
			return nil, nil, fmt.Errorf("create llm fallback %q: %w", fb.Name, err)
		}
		llmProvider.AddFallback(fb.Name, fallback)
		slog.Info("provider created", "kind", "llm", "name", fb.Name, "model", fb.Model, "role", "fallback")
	}

	return sttProvider, llmProvider, nil
}

// buildPipeline assembles the analyzer and scorer from the hot-reloadable
// analysis settings.
func buildPipeline(cfg *config.Config, sttProvider stt.Provider, llmProvider llm.Provider, metrics *observe.Metrics) (*analysis.Analyzer, *scriptmatch.Scorer, error) {
	analyzerOpts := []analysis.AnalyzerOption{analysis.WithMetrics(metrics)}
	if cfg.Analysis.Language != "" {
		analyzerOpts = append(analyzerOpts, analysis.WithDefaultLanguage(cfg.Analysis.Language))
	}

	var extractorOpts []analysis.ExtractorOption
	if cfg.Analysis.Temperature != 0 {
		extractorOpts = append(extractorOpts, analysis.WithTemperature(cfg.Analysis.Temperature))
	}
	if cfg.Analysis.MaxTokens != 0 {
		extractorOpts = append(extractorOpts, analysis.WithMaxTokens(cfg.Analysis.MaxTokens))
	}

	analyzerOpts = append(analyzerOpts, analysis.WithExtractorOptions(extractorOpts...))

	analyzer, err := analysis.New(sttProvider, llmProvider, analyzerOpts...)
	if err != nil {
		return nil, nil, err
	}

	var scorerOpts []scriptmatch.Option
	if cfg.Analysis.PhoneticThreshold != 0 {
		scorerOpts = append(scorerOpts, scriptmatch.WithPhoneticThreshold(cfg.Analysis.PhoneticThreshold))
	}
	if cfg.Analysis.FuzzyThreshold != 0 {
		scorerOpts = append(scorerOpts, scriptmatch.WithFuzzyThreshold(cfg.Analysis.FuzzyThreshold))
	}
	return analyzer, scriptmatch.New(scorerOpts...), nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
