package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kirillkom/bid-reconciler/internal/config"
	"github.com/kirillkom/bid-reconciler/internal/core/ports"
	"github.com/kirillkom/bid-reconciler/internal/core/usecase"
	"github.com/kirillkom/bid-reconciler/internal/infrastructure/fuzzy"
	"github.com/kirillkom/bid-reconciler/internal/infrastructure/queue/nats"
	"github.com/kirillkom/bid-reconciler/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/bid-reconciler/internal/infrastructure/spreadsheet/excel"
	"github.com/kirillkom/bid-reconciler/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/bid-reconciler/internal/observability/logging"
	"github.com/kirillkom/bid-reconciler/internal/observability/metrics"
)

// drainGrace covers the status write that follows a run cut off by its timeout.
const drainGrace = 30 * time.Second

type App struct {
	Config config.Config
	Logger *zap.Logger

	Queue   ports.MessageQueue
	Metrics *metrics.HTTPServerMetrics

	CatalogUC   ports.CatalogImporter
	BidImportUC ports.BidImporter
	ReconcileUC ports.BidReconciler
	PricingUC   ports.PricingReader

	closeFn func()
}

// New wires the shared process graph for the api and worker binaries. The
// returned logger also replaces the zap globals.
func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	logger, err := logging.NewJSONLogger(service, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	restoreGlobals := zap.ReplaceGlobals(logger)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		restoreGlobals()
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		restoreGlobals()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	storeExec := postgres.WithExecutor(postgres.NewExecutor(cfg.Resilience, logger))
	bids := postgres.NewBidRepository(db, storeExec)
	catalog := postgres.NewCatalogRepository(db, storeExec)
	records := postgres.NewPricingRecordRepository(db, storeExec)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		restoreGlobals()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		DrainTimeout: cfg.ReconcileTimeout + drainGrace,
		Publish:      cfg.Resilience,
		Logger:       logger,
	})
	if err != nil {
		_ = db.Close()
		restoreGlobals()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	httpMetrics := metrics.NewHTTPServerMetrics(service)
	reconcileMetrics := metrics.NewReconcileMetrics(service, httpMetrics.Registry())

	sheets := excel.NewReader(excel.Options{})
	catalogUC := usecase.NewImportCatalogUseCase(catalog, storage, sheets)
	bidImportUC := usecase.NewImportBidUseCase(bids, catalog, storage, sheets, queue)
	reconcileUC := usecase.NewReconcileUseCase(
		bids, catalog, records, fuzzy.NewMatcher(),
		usecase.WithReconcileMetrics(reconcileMetrics),
		usecase.WithReconcileLogger(logger),
		usecase.WithStaleAfter(cfg.ReconcileStaleAfter),
	)
	pricingUC := usecase.NewPricingQueryUseCase(bids, records)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Queue:   queue,
		Metrics: httpMetrics,

		CatalogUC:   catalogUC,
		BidImportUC: bidImportUC,
		ReconcileUC: reconcileUC,
		PricingUC:   pricingUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
			_ = logger.Sync()
			restoreGlobals()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
