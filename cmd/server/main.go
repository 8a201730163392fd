package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apihttp "trendscout/researchservice/internal/api/http"
	"trendscout/researchservice/internal/app"
	"trendscout/researchservice/internal/metrics"
	"trendscout/researchservice/internal/providers/assistant"
	"trendscout/researchservice/internal/providers/youtube"
	"trendscout/researchservice/internal/research"
	"trendscout/researchservice/internal/telemetry"
)

const (
	serviceName    = "trend-research"
	serviceVersion = "1.0.0"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), serviceName, serviceVersion)
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	location, err := cfg.Location()
	if err != nil {
		logger.Warn("unknown timezone, summaries use UTC",
			slog.String("timezone", cfg.Timezone),
			slog.String("error", err.Error()),
		)
	}

	logger.Info("configuration loaded",
		slog.String("service", serviceName),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.Duration("requestTimeout", cfg.RequestTimeout),
		slog.Bool("hasYouTubeKey", cfg.YouTubeAPIKey != ""),
		slog.Bool("hasYouTubeFallbackKey", cfg.YouTubeFallback != ""),
		slog.Bool("hasAssistantKey", cfg.AssistantAPIKey != ""),
		slog.Bool("hasRedis", strings.TrimSpace(cfg.RedisURL) != ""),
		slog.String("timezone", location.String()),
		slog.Any("regions", cfg.Regions),
		slog.Int("candidateCap", cfg.CandidateCap),
	)

	lexicon := loadLexicon(cfg, logger)

	youtubeClient := youtube.NewClient(youtube.Config{
		APIKey:         cfg.YouTubeAPIKey,
		FallbackAPIKey: cfg.YouTubeFallback,
		BaseURL:        cfg.YouTubeBaseURL,
		UserAgent:      cfg.UserAgent,
		Client:         &http.Client{Timeout: cfg.RequestTimeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
	})
	var provider research.VideoProvider
	if youtubeClient.Enabled() {
		provider = youtubeClient
	} else {
		logger.Warn("youtube api key not configured, research requests will fail")
	}

	serviceOpts := []research.ServiceOption{
		research.WithLogger(logger),
		research.WithLexicon(lexicon),
		research.WithProviderRateLimit(cfg.YouTubeRPS, 1),
		research.WithSessionStore(buildSessionStore(cfg, logger)),
	}
	if assistantClient := buildAssistant(cfg, logger); assistantClient != nil {
		serviceOpts = append(serviceOpts, research.WithAssistant(assistantClient))
	}

	researchService := research.NewService(provider, research.ServiceConfig{
		MaxVariants:      cfg.MaxVariants,
		PerQueryResults:  cfg.PerQueryResults,
		CandidateCap:     cfg.CandidateCap,
		DetailBatch:      cfg.DetailBatch,
		Regions:          cfg.Regions,
		DefaultLanguages: cfg.DefaultLanguages,
		Location:         location,
		TopTokens:        cfg.TopTokens,
		MaxConcurrent:    int64(cfg.MaxConcurrent),
	}, serviceOpts...)

	handler := apihttp.NewServer(researchService,
		apihttp.WithLogger(logger),
		apihttp.WithRateLimit(cfg.HTTPRateLimit, cfg.HTTPRateBurst),
	).Handler()
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// /research/stream stays open for the whole collection run.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("trend research service started",
		slog.String("addr", cfg.HTTPAddr),
		slog.Duration("timeout", cfg.RequestTimeout),
	)

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("trend research service stopped")
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func loadLexicon(cfg app.Config, logger *slog.Logger) research.Lexicon {
	path := strings.TrimSpace(cfg.LexiconPath)
	if path == "" {
		return research.DefaultLexicon()
	}
	lexicon, err := research.LoadLexicon(path)
	if err != nil {
		logger.Warn("lexicon file rejected, using built-in lexicon",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return research.DefaultLexicon()
	}
	logger.Info("lexicon loaded", slog.String("path", path), slog.Int("axes", len(lexicon.Axes)))
	return lexicon
}

func buildSessionStore(cfg app.Config, logger *slog.Logger) research.SessionStore {
	memory := research.NewMemorySessionStore(cfg.SessionMax, cfg.SessionTTL)
	redisURL := strings.TrimSpace(cfg.RedisURL)
	if redisURL == "" {
		return memory
	}
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("invalid redis url, sessions kept in memory", slog.String("error", err.Error()))
		return memory
	}
	client := redis.NewClient(redisOpts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	store := research.NewRedisSessionStore(client, cfg.SessionTTL)
	if err := store.Ping(ctx); err != nil {
		logger.Warn("redis not reachable, sessions kept in memory", slog.String("error", err.Error()))
		_ = client.Close()
		return memory
	}
	logger.Info("redis connected", slog.String("addr", redisOpts.Addr))
	return store
}

func buildAssistant(cfg app.Config, logger *slog.Logger) research.Assistant {
	client := assistant.NewClient(assistant.Config{
		APIKey:  cfg.AssistantAPIKey,
		BaseURL: cfg.AssistantBaseURL,
		Model:   cfg.AssistantModel,
		Client:  &http.Client{Timeout: 30 * time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)},
	})
	if !client.Enabled() {
		logger.Info("assistant api key not configured, ideas use local templates")
		return nil
	}
	logger.Info("assistant client initialized", slog.String("model", cfg.AssistantModel))
	return client
}
