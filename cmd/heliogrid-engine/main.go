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

	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/heliogrid/heliogrid/internal/adapters/duckdb"
	"github.com/heliogrid/heliogrid/internal/adapters/payment"
	"github.com/heliogrid/heliogrid/internal/config"
	"github.com/heliogrid/heliogrid/internal/core/services"
	"github.com/heliogrid/heliogrid/pkg/engine"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger.Info("starting heliogrid engine")

	if err := run(logger); err != nil {
		logger.Error("engine startup failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		cancel()
	}()

	cfg := config.FromEnv()

	store, err := duckdb.NewStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to init store: %w", err)
	}
	defer store.Close()

	bus := services.NewEventBus(logger)

	backend := payment.Build(logger, cfg.GatewayURL, cfg.GatewayKey, cfg.SimSuccessProb)
	settlement := services.NewSettlement(logger, backend, store, services.SettlementConfig{
		RatePerMinute: cfg.RatePerMinute,
		PayoutShare:   cfg.PayoutShare,
	})

	scheduler := services.NewScheduler(logger, store, settlement, bus, services.SchedulerConfig{
		TickInterval:      cfg.TickInterval,
		FailureCostFactor: cfg.FailureFactor,
	})

	apiServer := engine.NewServer(logger, store, scheduler, bus)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: c.Handler(apiServer.Handler()),
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return scheduler.Run(gCtx)
	})

	g.Go(func() error {
		logger.Info("starting api server", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
