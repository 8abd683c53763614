package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ewilliams-labs/crossfade/internal/adapters/gemini"
	"github.com/ewilliams-labs/crossfade/internal/adapters/ollama"
	"github.com/ewilliams-labs/crossfade/internal/adapters/spotify"
	"github.com/ewilliams-labs/crossfade/internal/adapters/sqlite"
	"github.com/ewilliams-labs/crossfade/internal/cache"
	"github.com/ewilliams-labs/crossfade/internal/config"
	"github.com/ewilliams-labs/crossfade/internal/core/ports"
	"github.com/ewilliams-labs/crossfade/internal/core/services"
	"github.com/ewilliams-labs/crossfade/internal/logging"
	"github.com/ewilliams-labs/crossfade/internal/worker"
)

// app holds the wired dependencies shared by every subcommand.
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	store    *sqlite.Adapter
	tokens   *cache.MemoryCache
	pool     *worker.Pool
	sessions *services.SessionStore
	stats    *services.StatsAggregator
	svc      *services.Orchestrator

	closeLog func() error
}

func loadApp(ctx context.Context) (*app, error) {
	if err := config.LoadDotEnv(envPath); err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	log, closeLog, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	if !cfg.HasSpotifyCredentials() {
		closeLog()
		return nil, fmt.Errorf("SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET are required")
	}

	store, err := sqlite.NewAdapter(cfg.Database.Path)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	model, err := newModel(ctx, cfg.LLM)
	if err != nil {
		store.Close()
		closeLog()
		return nil, err
	}

	a := &app{cfg: cfg, log: log, store: store, closeLog: closeLog}
	a.tokens = cache.NewMemoryCache(time.Hour, 10*time.Minute)

	catalog := spotify.NewClient(&http.Client{Timeout: 15 * time.Second}, cfg.Spotify.APIBaseURL,
		spotify.WithCredentials(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, cfg.Spotify.TokenURL),
		spotify.WithTokenCache(a.tokens),
		spotify.WithMarket(cfg.Spotify.Market),
		spotify.WithRetry(cfg.Spotify.MaxRetries, time.Duration(cfg.Spotify.RetryBackoffMs)*time.Millisecond),
		spotify.WithLogger(log.WithField("component", "spotify")))
	publisher := spotify.NewPublisher(cfg.Spotify.APIBaseURL, log.WithField("component", "publisher"))

	a.pool = worker.NewPool(store, cfg.Worker.QueueSize, worker.WithLogger(log.WithField("component", "worker")))
	a.pool.Start(cfg.Worker.Workers)

	a.sessions = services.NewSessionStore(store)
	a.stats, err = services.NewStatsAggregator(ctx, store, time.Now)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}

	aggregator := services.NewAggregator(catalog, log.WithField("component", "aggregator"), cfg.Dialogue.TargetTracks)
	a.svc = services.NewOrchestrator(model, aggregator, a.sessions, a.stats,
		services.WithTrackMatcher(catalog),
		services.WithPublisher(publisher),
		services.WithBackground(a.pool),
		services.WithLogger(log.WithField("component", "orchestrator")),
		services.WithMaxQuestionRounds(cfg.Dialogue.MaxQuestionRounds))
	return a, nil
}

// newModel selects the language model adapter named by cfg.Provider.
func newModel(ctx context.Context, cfg config.LLMConfig) (ports.LanguageModel, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.NewClient(cfg.OllamaHost,
			ollama.WithModel(cfg.Model),
			ollama.WithSampling(cfg.Temperature, cfg.MaxTokens)), nil
	case config.ProviderGemini:
		return gemini.NewClient(ctx, cfg.GeminiAPIKey,
			gemini.WithModel(cfg.GeminiModel),
			gemini.WithTemperature(float32(cfg.Temperature)))
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// Close drains background jobs before closing storage.
func (a *app) Close() {
	a.pool.Stop()
	a.tokens.Close()
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("failed to close database")
	}
	_ = a.closeLog()
}
