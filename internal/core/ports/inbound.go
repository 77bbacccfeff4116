package ports

import (
	"context"
	"io"

	"github.com/kirillkom/bid-reconciler/internal/core/domain"
)

// BidReconciler is the inbound contract for a reconciliation run.
type BidReconciler interface {
	Reconcile(ctx context.Context, req domain.ReconcileRequest) (*domain.ReconciliationResult, error)
	ReconcileBid(ctx context.Context, tenderID, bidID string, opts domain.ReconcileOptions) (*domain.ReconciliationResult, error)
}

// BidImporter creates a mapped bid from an uploaded bid sheet.
type BidImporter interface {
	Import(ctx context.Context, tenderID, bidder, filename string, body io.Reader) (*domain.Bid, error)
}

// CatalogImporter registers tenders and loads their bill of quantities.
type CatalogImporter interface {
	CreateTender(ctx context.Context, tender domain.Tender) (*domain.Tender, error)
	ImportCatalog(ctx context.Context, tenderID, filename string, body io.Reader) (int, error)
}

// PricingReader is the read model for persisted pricing records.
type PricingReader interface {
	GetPricing(ctx context.Context, tenderID, bidID string) (*domain.PricingView, error)
}
