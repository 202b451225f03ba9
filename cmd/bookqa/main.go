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
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/inkstream/bookqa/internal/config"
	dbRedis "github.com/inkstream/bookqa/internal/db/redis"
	logpkg "github.com/inkstream/bookqa/internal/logger"
	"github.com/inkstream/bookqa/internal/metrics"
	booksrepo "github.com/inkstream/bookqa/internal/repository/books"
	"github.com/inkstream/bookqa/internal/repository/chunkindex"
	"github.com/inkstream/bookqa/internal/repository/embcache"
	"github.com/inkstream/bookqa/internal/repository/pgmigrate"
	"github.com/inkstream/bookqa/internal/repository/querylog"
	chiTransport "github.com/inkstream/bookqa/internal/transport/chi"
	"github.com/inkstream/bookqa/internal/transport/cohere"
	openaiTransport "github.com/inkstream/bookqa/internal/transport/openai"
	healthuc "github.com/inkstream/bookqa/internal/usecase/health"
	ingestuc "github.com/inkstream/bookqa/internal/usecase/ingest"
	isolateuc "github.com/inkstream/bookqa/internal/usecase/isolate"
	raguc "github.com/inkstream/bookqa/internal/usecase/rag"
	retrieveuc "github.com/inkstream/bookqa/internal/usecase/retrieve"
	synthesizeuc "github.com/inkstream/bookqa/internal/usecase/synthesize"
	verifyuc "github.com/inkstream/bookqa/internal/usecase/verify"
	"github.com/inkstream/bookqa/internal/version"
)

func main() {
	// Local overrides from .env, ignored when absent
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting bookqa API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("redis_addrs", cfg.Redis.Addrs),
	)

	// Vector store (Redis with RediSearch)
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Redis.Addrs,
		Password: cfg.Redis.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create vector store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Redis.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Vector store not ready", zap.Error(err))
	}
	logger.Info("Connected to vector store")

	// Relational store (Postgres)
	if cfg.Postgres.AutoMigrate {
		if err := pgmigrate.Run(cfg.Postgres.URL); err != nil {
			logger.Fatal("Migrations failed", zap.Error(err))
		}
		logger.Info("Migrations applied")
	}

	pgCfg, err := pgxpool.ParseConfig(cfg.Postgres.URL)
	if err != nil {
		logger.Fatal("Invalid postgres url", zap.Error(err))
	}
	pgCfg.MaxConns = int32(cfg.Postgres.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, pgCfg)
	if err != nil {
		logger.Fatal("Failed to create postgres pool", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("Postgres not ready", zap.Error(err))
	}
	logger.Info("Connected to postgres")

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterProviderMetrics()

	// Model providers — composition root
	baseEmbedder := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Providers.Embedding.APIKey,
		BaseURL:    cfg.Providers.Embedding.BaseURL,
		Model:      cfg.Providers.Embedding.Model,
		Dimensions: cfg.Providers.Embedding.Dimensions,
		Provider:   "openai",
		Logger:     logger,
	})
	embedder := embcache.New(
		baseEmbedder,
		store,
		time.Duration(cfg.Providers.Embedding.CacheTTLSec)*time.Second,
		metrics.EmbeddingCacheTotal,
		logger,
	)

	generator := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:      cfg.Providers.Generation.APIKey,
		BaseURL:     cfg.Providers.Generation.BaseURL,
		Model:       cfg.Providers.Generation.Model,
		MaxTokens:   cfg.Providers.Generation.MaxTokens,
		Temperature: cfg.Providers.Generation.Temperature,
		Provider:    "openai",
		Logger:      logger,
	})

	reranker := cohere.New(&cohere.Config{
		APIKey:   cfg.Providers.Rerank.APIKey,
		BaseURL:  cfg.Providers.Rerank.BaseURL,
		Model:    cfg.Providers.Rerank.Model,
		Attempts: cfg.Providers.Rerank.Attempts,
		Provider: "cohere",
		Logger:   logger,
	})

	logger.Info("Providers created",
		zap.String("embedding_model", cfg.Providers.Embedding.Model),
		zap.Int("dimensions", cfg.Providers.Embedding.Dimensions),
		zap.String("generation_model", cfg.Providers.Generation.Model),
		zap.String("rerank_model", cfg.Providers.Rerank.Model),
	)

	// Repositories
	chunkIndex := chunkindex.New(store, chunkindex.Config{
		KeyPrefix:       cfg.Redis.KeyPrefix,
		Dimensions:      cfg.Providers.Embedding.Dimensions,
		HNSWM:           cfg.Redis.HNSWM,
		HNSWEFConstruct: cfg.Redis.HNSWEFConstruct,
	}, logger)
	if err := chunkIndex.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure chunk index", zap.Error(err))
	}

	booksRepo := booksrepo.New(pool)
	catalog := booksrepo.NewCachedCatalog(booksRepo, time.Duration(cfg.Pipeline.BookCacheTTLSec)*time.Second)
	queryLog := querylog.New(pool)

	// Use case services
	retriever := retrieveuc.New(embedder, chunkIndex, cfg.Pipeline.RetrievalLimit)
	guard := isolateuc.New(cfg.Pipeline.IsolationThreshold)
	synthesizer := synthesizeuc.New(generator, logger)
	verifier := verifyuc.New(reranker, cfg.Pipeline.AccuracyThreshold, logger)

	ingester := ingestuc.New(booksRepo, chunkIndex, embedder, catalog, ingestuc.Config{
		ChunkSize:    cfg.Pipeline.ChunkSize,
		ChunkOverlap: cfg.Pipeline.ChunkOverlap,
	}, logger)

	ragSvc := raguc.New(retriever, guard, synthesizer, verifier, queryLog, catalog, raguc.Config{
		RetrieveTimeout:   time.Duration(cfg.Pipeline.RetrieveTimeoutSec) * time.Second,
		SynthesizeTimeout: time.Duration(cfg.Pipeline.SynthesizeTimeout) * time.Second,
		VerifyTimeout:     time.Duration(cfg.Pipeline.VerifyTimeoutSec) * time.Second,
	}, logger)

	healthSvc := healthuc.New(chunkIndex, pool, baseEmbedder)

	// HTTP transport
	server := chiTransport.NewServer(ragSvc, ingester, catalog, queryLog, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.RegisterRoutes(r)

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

	logger.Info("Server stopped gracefully")
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

			// Canonical log line — one line per request
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
