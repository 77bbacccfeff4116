package httpadapter

import (
	"context"
	"io"
	"net/http"

	"github.com/kirillkom/bid-reconciler/internal/config"
	"github.com/kirillkom/bid-reconciler/internal/core/domain"
	"github.com/kirillkom/bid-reconciler/internal/observability/metrics"
)

type catalogFake struct {
	err        error
	tender     domain.Tender
	importedTo string
	filename   string
	body       string
}

func (f *catalogFake) CreateTender(_ context.Context, tender domain.Tender) (*domain.Tender, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tender = tender
	if tender.ID == "" {
		tender.ID = "t-new"
	}
	return &tender, nil
}

func (f *catalogFake) ImportCatalog(_ context.Context, tenderID, filename string, body io.Reader) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	raw, _ := io.ReadAll(body)
	f.importedTo = tenderID
	f.filename = filename
	f.body = string(raw)
	return 2, nil
}

type bidImporterFake struct {
	err      error
	tenderID string
	bidder   string
	filename string
}

func (f *bidImporterFake) Import(_ context.Context, tenderID, bidder, filename string, _ io.Reader) (*domain.Bid, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tenderID = tenderID
	f.bidder = bidder
	f.filename = filename
	return &domain.Bid{ID: "b-1", TenderID: tenderID, Bidder: bidder, Status: domain.BidStatusMapped}, nil
}

type reconcilerFake struct {
	err      error
	tenderID string
	bidID    string
	opts     domain.ReconcileOptions
	request  *domain.ReconcileRequest
}

func (f *reconcilerFake) Reconcile(_ context.Context, req domain.ReconcileRequest) (*domain.ReconciliationResult, error) {
	f.request = &req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ReconciliationResult{
		TenderID: req.TenderID,
		BidID:    req.BidID,
		Summary:  domain.Summary{TotalBidLines: len(req.Lines), TotalCatalogItems: 1, ExactCount: 1, MatchPercentage: 100},
	}, nil
}

func (f *reconcilerFake) ReconcileBid(_ context.Context, tenderID, bidID string, opts domain.ReconcileOptions) (*domain.ReconciliationResult, error) {
	f.tenderID = tenderID
	f.bidID = bidID
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ReconciliationResult{
		TenderID: tenderID,
		BidID:    bidID,
		Summary:  domain.Summary{TotalBidLines: 1, TotalCatalogItems: 1, ExactCount: 1, MatchPercentage: 100},
	}, nil
}

type pricingFake struct {
	err error
}

func (f pricingFake) GetPricing(_ context.Context, tenderID, bidID string) (*domain.PricingView, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.PricingView{
		Bid:            domain.Bid{ID: bidID, TenderID: tenderID, Status: domain.BidStatusMatched},
		IncludedAmount: 42.5,
	}, nil
}

type routerDeps struct {
	catalog    *catalogFake
	bids       *bidImporterFake
	reconciler *reconcilerFake
	pricing    pricingFake
	metrics    *metrics.HTTPServerMetrics
}

func newTestDeps() *routerDeps {
	return &routerDeps{
		catalog:    &catalogFake{},
		bids:       &bidImporterFake{},
		reconciler: &reconcilerFake{},
		metrics:    metrics.NewHTTPServerMetrics(serviceName),
	}
}

func (d *routerDeps) handler(cfg config.Config) http.Handler {
	return NewRouter(cfg, d.catalog, d.bids, d.reconciler, d.pricing, WithHTTPMetrics(d.metrics)).Handler()
}

func newTestHandler(cfg config.Config) http.Handler {
	return newTestDeps().handler(cfg)
}

func testConfig() config.Config {
	return config.Config{
		FuzzyThreshold:   80,
		AlternativeCount: 3,
	}
}
