package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/arcadia-shop/persona/internal/config"
	dbRedis "github.com/arcadia-shop/persona/internal/db/redis"
	"github.com/arcadia-shop/persona/internal/domain"
	domprofile "github.com/arcadia-shop/persona/internal/domain/profile"
	logpkg "github.com/arcadia-shop/persona/internal/logger"
	"github.com/arcadia-shop/persona/internal/metrics"
	catalogrepo "github.com/arcadia-shop/persona/internal/repository/catalog"
	corpusrepo "github.com/arcadia-shop/persona/internal/repository/corpus"
	deadletterrepo "github.com/arcadia-shop/persona/internal/repository/deadletter"
	deduprepo "github.com/arcadia-shop/persona/internal/repository/dedup"
	eventsrepo "github.com/arcadia-shop/persona/internal/repository/events"
	profilerepo "github.com/arcadia-shop/persona/internal/repository/profile"
	"github.com/arcadia-shop/persona/internal/repository/querycache"
	chiTransport "github.com/arcadia-shop/persona/internal/transport/chi"
	openaiEmb "github.com/arcadia-shop/persona/internal/transport/openai"
	embeddinguc "github.com/arcadia-shop/persona/internal/usecase/embedding"
	healthuc "github.com/arcadia-shop/persona/internal/usecase/health"
	pipelineuc "github.com/arcadia-shop/persona/internal/usecase/pipeline"
	profileuc "github.com/arcadia-shop/persona/internal/usecase/profile"
	searchuc "github.com/arcadia-shop/persona/internal/usecase/search"
	"github.com/arcadia-shop/persona/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting persona",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	catalog, err := catalogrepo.Open(cfg.Catalog.Path)
	if err != nil {
		logger.Fatal("Failed to open product catalog", zap.Error(err))
	}
	defer func() { _ = catalog.Close() }()

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	// Embedder chain: breaker inside, retries outside, so
	// each retry attempt consults the breaker.
	breaker := embeddinguc.NewCircuitBreaker(
		cfg.Embedding.Provider,
		cfg.Embedding.BreakerThreshold,
		time.Duration(cfg.Embedding.BreakerOpenTimeoutSec)*time.Second,
		logger,
	)
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Timeout:    time.Duration(cfg.Embedding.RequestTimeoutSec) * time.Second,
		Logger:     logger,
	})
	var embedder domain.Embedder = embeddinguc.NewBreakerEmbedder(base, breaker)
	embedder = embeddinguc.NewRetryingEmbedder(
		embedder,
		cfg.Embedding.MaxAttempts,
		time.Duration(cfg.Embedding.InitialBackoffMs)*time.Millisecond,
		cfg.Embedding.Provider,
		logger,
	)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// Repositories
	profiles := profilerepo.New(store)
	dedup := deduprepo.New(store, time.Duration(cfg.Profile.DedupTTLHours)*time.Hour)
	deadLetters := deadletterrepo.New(store)
	queryCache := querycache.New(store, time.Duration(cfg.Cache.QueryTTLSec)*time.Second, logger)
	corpus := corpusrepo.New(store, cfg.Search.HNSWM, cfg.Search.HNSWEFConstruct)
	publisher := eventsrepo.NewPublisher(store, cfg.Events.Stream)

	if err := syncCorpus(ctx, corpus, catalog, logger); err != nil {
		logger.Fatal("Corpus sync failed", zap.Error(err))
	}

	// Use case services
	decayCfg := domprofile.DecayConfig{
		DecayLambda:        cfg.Profile.DecayLambda,
		BatchWindowSeconds: cfg.Profile.BatchWindowSec,
		BatchEnabled:       cfg.Profile.BatchEnabled,
		MaxRetries:         cfg.Profile.MaxRetries,
		RetryDelayMs:       cfg.Profile.RetryDelayMs,
	}
	if err := decayCfg.Validate(); err != nil {
		logger.Fatal("Invalid profile config", zap.Error(err))
	}
	logger.Info("Profile decay configured",
		zap.Float64("lambda", decayCfg.DecayLambda),
		zap.Float64("half_life_days", decayCfg.HalfLifeDays()),
	)

	pipeline := pipelineuc.NewService(profiles, dedup, deadLetters, embedder, catalog, decayCfg, logger)
	consumer := pipelineuc.NewConsumer(store, pipeline, pipelineuc.ConsumerConfig{
		Stream:    cfg.Events.Stream,
		Group:     cfg.Events.Group,
		Workers:   cfg.Events.Workers,
		BatchSize: cfg.Events.BatchSize,
		Block:     time.Duration(cfg.Events.BlockMs) * time.Millisecond,
	}, logger)

	semantic := searchuc.NewSemanticService(embedder, queryCache, corpus, cfg.Search.KNNCandidates, logger)
	keyword := searchuc.NewKeywordService(catalog)
	facade := searchuc.NewFacade(semantic, keyword, logger)

	seed := profileuc.NewDisplayNameSeed(catalog, embedder)
	profileSvc := profileuc.NewService(profiles, corpus, seed, logger)

	healthSvc := healthuc.New(store, catalog, base, func() string {
		return breaker.CurrentState().String()
	})

	server := chiTransport.NewServer(facade, profileSvc, queryCache, publisher, healthSvc, deadLetters, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	// Event consumer runs until shutdown.
	consumerCtx, stopConsumer := context.WithCancel(ctx)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Run(consumerCtx); err != nil {
			logger.Error("Event consumer stopped", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	stopConsumer()
	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		logger.Warn("Event consumer did not stop in time")
	}

	logger.Info("Server stopped gracefully")
}

// syncCorpus ensures the vector index exists and mirrors every catalog
// product carrying an embedding into it.
func syncCorpus(
	ctx context.Context, corpus *corpusrepo.Corpus, catalog *catalogrepo.Repository, logger *zap.Logger,
) error {
	if err := corpus.EnsureIndex(ctx); err != nil {
		return err
	}

	count := 0
	err := catalog.List(ctx, func(e catalogrepo.Entry) error {
		if err := corpus.Upsert(ctx, e.Product, e.Vector); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("Corpus synced", zap.Int("products", count))
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
