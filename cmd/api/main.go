package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tawhid126/hotelhub/internal/app"
	"github.com/tawhid126/hotelhub/internal/bus"
	"github.com/tawhid126/hotelhub/internal/clock"
	"github.com/tawhid126/hotelhub/internal/config"
	"github.com/tawhid126/hotelhub/internal/ledger"
	"github.com/tawhid126/hotelhub/internal/ratelimit"
	"github.com/tawhid126/hotelhub/internal/storage/memory"
	"github.com/tawhid126/hotelhub/internal/storage/postgres"
	"github.com/tawhid126/hotelhub/internal/subscribe"
	transporthttp "github.com/tawhid126/hotelhub/internal/transport/http"
	"github.com/tawhid126/hotelhub/migrations"
	"go.uber.org/zap"
)

const (
	shutdownTimeout = 10 * time.Second
	sweepInterval   = time.Minute
)

// inventoryStore is everything the services need from persistence.
type inventoryStore interface {
	ledger.InventoryStore
	app.CategoryStore
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var logger *zap.Logger
	if cfg.Development() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var store inventoryStore
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("connect to db", zap.Error(err))
		}
		defer pool.Close()

		if err := pool.Ping(startupCtx); err != nil {
			logger.Fatal("db ping", zap.Error(err))
		}
		if err := migrations.Apply(startupCtx, pool); err != nil {
			logger.Fatal("apply migrations", zap.Error(err))
		}
		store = postgres.NewInventoryStore(pool)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory inventory store")
		store = memory.NewStore()
	}

	eventBus := bus.New(logger, bus.WithBufferSize(cfg.Stream.Buffer))
	defer eventBus.Close()

	ledgerSvc := ledger.New(store, eventBus, clock.NewSystem(),
		ledger.WithLogger(logger),
		ledger.WithIdempotencyTTL(cfg.Ledger.IdempotencyTTL.Std()),
		ledger.WithConflictRetries(cfg.Ledger.ConflictRetries),
		ledger.WithSnapshotNights(cfg.Ledger.SnapshotNights),
	)
	subSvc := subscribe.New(eventBus, ledgerSvc, store, logger,
		subscribe.WithStreamBuffer(cfg.Stream.Buffer))
	adminSvc := app.NewAdminService(store)

	policies := make(map[string]ratelimit.Policy, len(cfg.RateLimits))
	for class, pol := range cfg.RateLimits {
		policies[class] = ratelimit.Policy{Limit: pol.Limit, Window: pol.Window.Std()}
	}
	governor := ratelimit.New(policies, clock.NewSystem(),
		ratelimit.WithDevMode(cfg.Development()),
		ratelimit.WithLogger(logger),
	)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go governor.Run(sweepCtx, sweepInterval)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", transporthttp.HealthHandler)
	mux.Handle("/bookings", transporthttp.HandleCreateBooking(ledgerSvc))
	mux.Handle("/cancellations", transporthttp.HandleCreateCancellation(ledgerSvc))
	mux.Handle("/availability/stream", transporthttp.HandleAvailabilityStream(subSvc, logger))
	mux.Handle("/availability/", transporthttp.HandleAvailability(ledgerSvc))
	mux.Handle("/admin/categories", transporthttp.HandleAdminCategories(adminSvc))
	mux.Handle("/admin/ratelimit/reset", transporthttp.HandleRateLimitReset(governor))
	mux.Handle("/", transporthttp.NotFoundHandler())

	handler := transporthttp.RequestLogger(
		transporthttp.CORS(cfg.CORSOrigins,
			transporthttp.RateLimit(governor, transporthttp.RouteClassifier(), mux)),
		logger,
	)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handler,
	}

	logger.Info("api listening", zap.String("addr", cfg.ListenAddr), zap.String("mode", cfg.Mode))

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", zap.Error(err))
	}

	// Tear the bus down last so streams drain with a close frame.
	eventBus.Close()
	logger.Info("server stopped")
}
