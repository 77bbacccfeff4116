package reconcile

import (
	"context"
	"errors"
	"sort"

	"github.com/kirillkom/bid-reconciler/internal/core/domain"
	"github.com/kirillkom/bid-reconciler/internal/core/ports"
)

// Engine runs one reconciliation pass of a bid against a tender's BOQ. It
// holds no per-run state, so a single Engine serves concurrent runs for
// different bids.
type Engine struct {
	matcher ports.FuzzyMatcher
}

func NewEngine(matcher ports.FuzzyMatcher) *Engine {
	return &Engine{matcher: matcher}
}

type Input struct {
	Tender  domain.Tender
	BidID   string
	Lines   []domain.BidLine
	Catalog []domain.CatalogItem
	Options domain.ReconcileOptions
}

// Run executes exact, fuzzy and residual passes in that order, then summarizes
// the result and derives one pricing record per outcome. Lines are processed in
// row order and catalog items in the order given.
func (e *Engine) Run(ctx context.Context, in Input) (*domain.ReconciliationResult, []domain.PricingRecord, error) {
	if e.matcher == nil {
		return nil, nil, errors.New("reconcile: fuzzy matcher is not configured")
	}

	lines := make([]domain.BidLine, len(in.Lines))
	copy(lines, in.Lines)
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].RowIndex < lines[j].RowIndex })

	pool := NewPool(in.Catalog)

	exact, pending := exactPass(lines, pool)

	fuzzy, pending, err := e.fuzzyPass(ctx, pending, pool, in.Options)
	if err != nil {
		return nil, nil, err
	}

	extra, noBid, err := e.residualPass(ctx, pending, pool, in.Options)
	if err != nil {
		return nil, nil, err
	}

	result := &domain.ReconciliationResult{
		TenderID: in.Tender.ID,
		BidID:    in.BidID,
		Exact:    exact,
		Fuzzy:    fuzzy,
		Extra:    extra,
		NoBid:    noBid,
		Summary:  Summarize(len(lines), pool.Total(), exact, fuzzy, extra, noBid),
	}

	records := BuildPricingRecords(in.Tender, in.BidID, result)
	result.IncludedAmount = IncludedAmount(records)
	return result, records, nil
}
