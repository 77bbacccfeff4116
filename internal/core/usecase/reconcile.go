package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kirillkom/bid-reconciler/internal/core/domain"
	"github.com/kirillkom/bid-reconciler/internal/core/ports"
	"github.com/kirillkom/bid-reconciler/internal/core/reconcile"
)

// DefaultStaleAfter is how long a bid may sit in matching before another run
// may take it over.
const DefaultStaleAfter = 15 * time.Minute

type ReconcileUseCase struct {
	bids    ports.BidRepository
	catalog ports.CatalogRepository
	records ports.PricingRecordStore
	engine  *reconcile.Engine
	metrics ports.ReconcileMetrics
	logger  *zap.Logger

	staleAfter time.Duration
	now        func() time.Time
}

type ReconcileOption func(*ReconcileUseCase)

func WithReconcileMetrics(metrics ports.ReconcileMetrics) ReconcileOption {
	return func(uc *ReconcileUseCase) {
		uc.metrics = metrics
	}
}

func WithReconcileLogger(logger *zap.Logger) ReconcileOption {
	return func(uc *ReconcileUseCase) {
		if logger != nil {
			uc.logger = logger
		}
	}
}

func WithStaleAfter(d time.Duration) ReconcileOption {
	return func(uc *ReconcileUseCase) {
		if d > 0 {
			uc.staleAfter = d
		}
	}
}

func withClock(now func() time.Time) ReconcileOption {
	return func(uc *ReconcileUseCase) {
		uc.now = now
	}
}

func NewReconcileUseCase(
	bids ports.BidRepository,
	catalog ports.CatalogRepository,
	records ports.PricingRecordStore,
	matcher ports.FuzzyMatcher,
	opts ...ReconcileOption,
) *ReconcileUseCase {
	uc := &ReconcileUseCase{
		bids:       bids,
		catalog:    catalog,
		records:    records,
		engine:     reconcile.NewEngine(matcher),
		logger:     zap.NewNop(),
		staleAfter: DefaultStaleAfter,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Reconcile runs the engine over corrected lines carried in the request
// envelope. Each envelope line replaces the stored line with the same row
// index, so pricing records keep pointing at rows of the uploaded sheet;
// unknown or repeated row indexes are rejected before any state change.
// Stored lines the envelope leaves out are not matched in this run.
func (uc *ReconcileUseCase) Reconcile(ctx context.Context, req domain.ReconcileRequest) (*domain.ReconciliationResult, error) {
	if err := validateStruct("validate reconcile request", req); err != nil {
		return nil, err
	}
	return uc.run(ctx, req.TenderID, req.BidID, req.Options, func(ctx context.Context) ([]domain.BidLine, error) {
		stored, err := uc.bids.ListLines(ctx, req.BidID)
		if err != nil {
			return nil, fmt.Errorf("list bid lines: %w", err)
		}
		if err := checkEnvelopeRows(req.BidID, stored, req.Lines); err != nil {
			return nil, err
		}
		return req.Lines, nil
	})
}

func checkEnvelopeRows(bidID string, stored, lines []domain.BidLine) error {
	known := make(map[int]bool, len(stored))
	for _, line := range stored {
		known[line.RowIndex] = true
	}
	seen := make(map[int]bool, len(lines))
	for _, line := range lines {
		switch {
		case !known[line.RowIndex]:
			return domain.WrapError(domain.ErrInvalidInput, "validate reconcile request",
				fmt.Errorf("bid %s has no row %d", bidID, line.RowIndex))
		case seen[line.RowIndex]:
			return domain.WrapError(domain.ErrInvalidInput, "validate reconcile request",
				fmt.Errorf("row %d appears more than once", line.RowIndex))
		}
		seen[line.RowIndex] = true
	}
	return nil
}

// ReconcileBid runs the engine over the lines stored with the bid.
func (uc *ReconcileUseCase) ReconcileBid(
	ctx context.Context,
	tenderID, bidID string,
	opts domain.ReconcileOptions,
) (*domain.ReconciliationResult, error) {
	req := domain.ReconcileRequest{
		TenderID: strings.TrimSpace(tenderID),
		BidID:    strings.TrimSpace(bidID),
		Options:  opts,
	}
	if err := validate.Var(req.TenderID, "required"); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "validate reconcile request", errors.New("tender id is required"))
	}
	if err := validate.Var(req.BidID, "required"); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "validate reconcile request", errors.New("bid id is required"))
	}
	if err := validateStruct("validate reconcile options", req.Options); err != nil {
		return nil, err
	}

	return uc.run(ctx, req.TenderID, req.BidID, req.Options, func(ctx context.Context) ([]domain.BidLine, error) {
		lines, err := uc.bids.ListLines(ctx, req.BidID)
		if err != nil {
			return nil, fmt.Errorf("list bid lines: %w", err)
		}
		if len(lines) == 0 {
			return nil, domain.WrapError(domain.ErrInvalidInput, "list bid lines", fmt.Errorf("bid %s has no lines", req.BidID))
		}
		return lines, nil
	})
}

func (uc *ReconcileUseCase) run(
	ctx context.Context,
	tenderID, bidID string,
	opts domain.ReconcileOptions,
	loadLines func(context.Context) ([]domain.BidLine, error),
) (*domain.ReconciliationResult, error) {
	logger := uc.logger.With(zap.String("tender_id", tenderID), zap.String("bid_id", bidID))

	if err := uc.checkPreconditions(ctx, tenderID, bidID); err != nil {
		return nil, err
	}
	lines, err := loadLines(ctx)
	if err != nil {
		return nil, err
	}

	staleBefore := uc.now().Add(-uc.staleAfter)
	lease, err := uc.bids.BeginMatching(ctx, tenderID, bidID, staleBefore)
	if err != nil {
		return nil, fmt.Errorf("set status=matching: %w", err)
	}

	started := time.Now()
	if uc.metrics != nil {
		uc.metrics.StartRun()
	}
	logger.Info("reconciliation started",
		zap.Int("bid_lines", len(lines)),
		zap.Float64("fuzzy_threshold", opts.FuzzyThreshold),
		zap.Int("alternative_count", opts.AlternativeCount),
	)

	result, runErr := uc.execute(ctx, tenderID, bidID, lease, lines, opts)
	if uc.metrics != nil {
		uc.metrics.FinishRun(time.Since(started), runErr)
	}
	if runErr != nil {
		logger.Error("reconciliation failed", zap.Error(runErr), zap.Duration("duration", time.Since(started)))
		if failErr := uc.markFailed(ctx, bidID, lease, runErr); failErr != nil {
			logger.Error("mark bid failed", zap.Error(failErr))
			return nil, domain.WrapError(domain.ErrReconciliationFailed, "reconcile bid", fmt.Errorf("%w; mark failed status: %v", runErr, failErr))
		}
		return nil, domain.WrapError(domain.ErrReconciliationFailed, "reconcile bid", runErr)
	}

	if uc.metrics != nil {
		uc.metrics.ObserveSummary(result.Summary)
	}
	logger.Info("reconciliation finished",
		zap.Int("exact", result.Summary.ExactCount),
		zap.Int("fuzzy", result.Summary.FuzzyCount),
		zap.Int("extra", result.Summary.ExtraCount),
		zap.Int("no_bid", result.Summary.NoBidCount),
		zap.Int("needs_review", result.Summary.NeedsReviewCount),
		zap.Float64("match_percentage", result.Summary.MatchPercentage),
		zap.Float64("included_amount", result.IncludedAmount),
		zap.Duration("duration", time.Since(started)),
	)
	return result, nil
}

// checkPreconditions rejects missing bids and bids that are not ready to match
// without touching their state.
func (uc *ReconcileUseCase) checkPreconditions(ctx context.Context, tenderID, bidID string) error {
	bid, err := uc.bids.GetByID(ctx, tenderID, bidID)
	if err != nil {
		return fmt.Errorf("fetch bid: %w", err)
	}

	switch bid.Status {
	case domain.BidStatusMapped:
		return nil
	case domain.BidStatusMatching:
		if bid.UpdatedAt.Before(uc.now().Add(-uc.staleAfter)) {
			return nil
		}
	}
	return domain.WrapError(
		domain.ErrInvalidState,
		"check bid status",
		fmt.Errorf("bid %s is %s, expected %s", bidID, bid.Status, domain.BidStatusMapped),
	)
}

func (uc *ReconcileUseCase) execute(
	ctx context.Context,
	tenderID, bidID string,
	lease time.Time,
	lines []domain.BidLine,
	opts domain.ReconcileOptions,
) (*domain.ReconciliationResult, error) {
	tender, err := uc.catalog.GetTender(ctx, tenderID)
	if err != nil {
		return nil, fmt.Errorf("fetch tender: %w", err)
	}

	items, err := uc.catalog.ListCatalogItems(ctx, tenderID)
	if err != nil {
		return nil, fmt.Errorf("list catalog items: %w", err)
	}

	result, records, err := uc.engine.Run(ctx, reconcile.Input{
		Tender:  *tender,
		BidID:   bidID,
		Lines:   lines,
		Catalog: items,
		Options: opts,
	})
	if err != nil {
		return nil, fmt.Errorf("run matching: %w", err)
	}

	if err := uc.records.ReplaceForBid(ctx, bidID, records); err != nil {
		return nil, fmt.Errorf("replace pricing records: %w", err)
	}

	if err := uc.markStatus(ctx, bidID, lease, domain.BidStatusMatched, ""); err != nil {
		return nil, fmt.Errorf("set status=matched: %w", err)
	}
	return result, nil
}

func (uc *ReconcileUseCase) markStatus(ctx context.Context, bidID string, lease time.Time, status domain.BidStatus, errMessage string) error {
	return uc.bids.UpdateStatus(ctx, bidID, lease, status, errMessage)
}

// markFailed survives cancellation of the run context so a timed-out run
// does not leave the bid in matching.
func (uc *ReconcileUseCase) markFailed(ctx context.Context, bidID string, lease time.Time, runErr error) error {
	if runErr == nil {
		return nil
	}
	return uc.markStatus(context.WithoutCancel(ctx), bidID, lease, domain.BidStatusFailed, runErr.Error())
}
