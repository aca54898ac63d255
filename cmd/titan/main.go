// Command titan runs the Titan chat server: a local web chat front-end over
// a self-hosted model endpoint with streaming responses, tool calling, and
// per-session memory.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/titanchat/titan/internal/adapter/filestore"
	titanhttp "github.com/titanchat/titan/internal/adapter/http"
	titannats "github.com/titanchat/titan/internal/adapter/nats"
	"github.com/titanchat/titan/internal/adapter/natskv"
	"github.com/titanchat/titan/internal/adapter/ollama"
	"github.com/titanchat/titan/internal/adapter/otel"
	"github.com/titanchat/titan/internal/adapter/postgres"
	"github.com/titanchat/titan/internal/adapter/ristretto"
	"github.com/titanchat/titan/internal/adapter/tiered"
	"github.com/titanchat/titan/internal/adapter/websearch"
	"github.com/titanchat/titan/internal/adapter/ws"
	"github.com/titanchat/titan/internal/config"
	"github.com/titanchat/titan/internal/logger"
	"github.com/titanchat/titan/internal/middleware"
	"github.com/titanchat/titan/internal/resilience"
	"github.com/titanchat/titan/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	log.Info("config loaded",
		"port", cfg.Server.Port,
		"model", cfg.Model.Name,
		"log_level", cfg.Logging.Level,
	)

	ctx := context.Background()

	// --- Telemetry ---

	shutdownOtel, err := otel.Init(ctx, cfg.Telemetry, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(shutdownCtx); err != nil {
			log.Warn("telemetry shutdown", "error", err)
		}
	}()

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	log.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	log.Info("migrations applied")

	nc, err := titannats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = nc.Close() }()

	kv, err := nc.KeyValue(ctx, cfg.Cache.L2Bucket, cfg.Cache.TTL)
	if err != nil {
		return fmt.Errorf("nats kv: %w", err)
	}

	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("l1 cache: %w", err)
	}
	defer l1.Close()
	contextCache := tiered.New(l1, natskv.New(kv), cfg.Cache.TTL)

	chatStore, err := filestore.New(cfg.History.Dir, cfg.History.MaxBackups)
	if err != nil {
		return fmt.Errorf("chat store: %w", err)
	}
	feedbackStore, err := filestore.NewFeedbackStore(cfg.History.Dir)
	if err != nil {
		return fmt.Errorf("feedback store: %w", err)
	}

	// --- Outbound clients ---

	modelClient := ollama.NewClient(cfg.Model)
	modelClient.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	searchClient := websearch.NewClient(cfg.Search)
	searchClient.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	// --- Services ---

	hub := ws.NewHub()
	memoryStore := postgres.NewStore(pool)

	contexts := service.NewContexts(memoryStore, contextCache, cfg.Cache.TTL, log)

	tools := service.NewTools(memoryStore, searchClient, log)
	tools.SetMemoryWriteHook(contexts.Invalidate)

	exchange := service.NewExchange(modelClient, tools, metrics, log)
	exchange.SetBroadcaster(hub)

	sessions := service.NewSessions(cfg.Session, hub, log)
	stopCleanup := sessions.StartCleanup(cfg.Session.CleanupInterval)
	defer stopCleanup()

	cancels := service.NewCancels(log)
	feedbacks := service.NewFeedbacks(feedbackStore, log)

	// --- HTTP ---

	rateLimiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopRateCleanup := rateLimiter.StartCleanup(cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	defer stopRateCleanup()

	handlers := titanhttp.NewHandlers(sessions, exchange, cancels, contexts, feedbacks, chatStore, hub, log)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(titanhttp.SecurityHeaders)
	r.Use(titanhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(titanhttp.Logger)
	r.Use(otel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(rateLimiter.Handler)
	r.Use(chimw.Recoverer)

	titanhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Streaming responses hold the connection as long as the model
		// produces output; the write timeout must cover the thinking path.
		WriteTimeout: cfg.Model.ThinkingTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
		}
	}()

	<-done
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
