package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/bid-reconciler/internal/core/domain"
)

// BidRepository persists bids, their lines and their lifecycle state.
type BidRepository interface {
	Create(ctx context.Context, bid *domain.Bid, lines []domain.BidLine) error
	GetByID(ctx context.Context, tenderID, bidID string) (*domain.Bid, error)
	ListLines(ctx context.Context, bidID string) ([]domain.BidLine, error)
	// BeginMatching moves a bid into matching only if it is mapped, or if it has
	// been matching since before staleBefore. It returns ErrInvalidState when no
	// row qualified, which makes it the per-bid exclusive lock. The returned
	// lease identifies this run to UpdateStatus.
	BeginMatching(ctx context.Context, tenderID, bidID string, staleBefore time.Time) (time.Time, error)
	// UpdateStatus ends the matching run holding lease. A run whose lease was
	// taken over, or whose bid already left matching, gets ErrInvalidState and
	// changes nothing.
	UpdateStatus(ctx context.Context, bidID string, lease time.Time, status domain.BidStatus, errMessage string) error
}

// CatalogRepository reads and writes tenders and their BOQ.
type CatalogRepository interface {
	CreateTender(ctx context.Context, tender *domain.Tender) error
	GetTender(ctx context.Context, tenderID string) (*domain.Tender, error)
	// ListCatalogItems is ordered by item number then insertion position.
	ListCatalogItems(ctx context.Context, tenderID string) ([]domain.CatalogItem, error)
	ReplaceCatalog(ctx context.Context, tenderID string, items []domain.CatalogItem) error
}

// PricingRecordStore owns the pricing records of a bid.
type PricingRecordStore interface {
	// ReplaceForBid deletes every record of the bid and inserts records in one unit.
	ReplaceForBid(ctx context.Context, bidID string, records []domain.PricingRecord) error
	ListForBid(ctx context.Context, bidID string) ([]domain.PricingRecord, error)
}

// FuzzyMatcher ranks candidates by similarity to query. Scores are 0..100 and
// candidates scoring below minScore are dropped; minScore 0 keeps all of them.
type FuzzyMatcher interface {
	Rank(ctx context.Context, query string, candidates []domain.Candidate, minScore float64) ([]domain.ScoredCandidate, error)
}

// SheetReader reads the rows of the first worksheet of a spreadsheet.
type SheetReader interface {
	ReadRows(ctx context.Context, body io.Reader) ([][]string, error)
}

// ObjectStorage stores uploaded source files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes reconciliation requests.
type MessageQueue interface {
	PublishReconcileRequested(ctx context.Context, job domain.ReconcileJob) error
	SubscribeReconcileRequested(ctx context.Context, handler func(context.Context, domain.ReconcileJob) error) error
}

// ReconcileMetrics observes reconciliation runs.
type ReconcileMetrics interface {
	StartRun()
	FinishRun(duration time.Duration, err error)
	ObserveSummary(summary domain.Summary)
}
