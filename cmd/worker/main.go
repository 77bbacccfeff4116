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

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kirillkom/bid-reconciler/internal/bootstrap"
	"github.com/kirillkom/bid-reconciler/internal/config"
	"github.com/kirillkom/bid-reconciler/internal/core/domain"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "worker")
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()
	logger := app.Logger

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           app.Metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker metrics server error", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	defaults := cfg.ReconcileDefaults()
	logger.Info("worker subscribed", zap.String("subject", cfg.NATSSubject), zap.String("metrics_port", cfg.WorkerMetricsPort))
	err = app.Queue.SubscribeReconcileRequested(ctx, func(handlerCtx context.Context, job domain.ReconcileJob) error {
		runCtx, cancel := context.WithTimeout(handlerCtx, cfg.ReconcileTimeout)
		defer cancel()
		_, err := app.ReconcileUC.ReconcileBid(runCtx, job.TenderID, job.BidID, job.Options(defaults))
		if domain.IsKind(err, domain.ErrInvalidState) {
			// Redelivered or already claimed by another replica.
			logger.Info("skip reconcile job", zap.String("bid_id", job.BidID), zap.Error(err))
			return nil
		}
		return err
	})
	if err != nil {
		logger.Error("worker subscribe error", zap.Error(err))
	}
}
