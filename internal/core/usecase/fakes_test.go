package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kirillkom/bid-reconciler/internal/core/domain"
)

type statusCall struct {
	status domain.BidStatus
	errMsg string
}

type bidRepoFake struct {
	bid           *domain.Bid
	lines         []domain.BidLine
	getErr        error
	beginErr      error
	statusErr     error
	failStatusErr error
	created       *domain.Bid
	createdLines  []domain.BidLine
	beginCalls    int
	staleBefore   time.Time
	statusCalls   []statusCall
	statusCtxErr  error
	lease         time.Time
	statusLeases  []time.Time
	// beforeStatus runs ahead of every UpdateStatus, e.g. to simulate a takeover.
	beforeStatus func(*bidRepoFake)
}

func (f *bidRepoFake) Create(_ context.Context, bid *domain.Bid, lines []domain.BidLine) error {
	copyBid := *bid
	f.created = &copyBid
	f.createdLines = append([]domain.BidLine(nil), lines...)
	return nil
}

func (f *bidRepoFake) GetByID(_ context.Context, tenderID, bidID string) (*domain.Bid, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.bid == nil || f.bid.TenderID != tenderID || f.bid.ID != bidID {
		return nil, domain.WrapError(domain.ErrBidNotFound, "get bid", fmt.Errorf("bid=%s", bidID))
	}
	copyBid := *f.bid
	return &copyBid, nil
}

func (f *bidRepoFake) ListLines(context.Context, string) ([]domain.BidLine, error) {
	return f.lines, nil
}

func (f *bidRepoFake) BeginMatching(_ context.Context, _, _ string, staleBefore time.Time) (time.Time, error) {
	f.beginCalls++
	f.staleBefore = staleBefore
	if f.beginErr != nil {
		return time.Time{}, f.beginErr
	}
	f.bid.Status = domain.BidStatusMatching
	f.lease = time.Date(2026, 1, 1, 0, 0, f.beginCalls, 0, time.UTC)
	return f.lease, nil
}

func (f *bidRepoFake) UpdateStatus(ctx context.Context, bidID string, lease time.Time, status domain.BidStatus, errMessage string) error {
	if f.beforeStatus != nil {
		f.beforeStatus(f)
	}
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	f.statusLeases = append(f.statusLeases, lease)
	f.statusCtxErr = ctx.Err()
	if !lease.Equal(f.lease) {
		return domain.WrapError(domain.ErrInvalidState, "update bid status", fmt.Errorf("bid %s is no longer held by this run", bidID))
	}
	if status == domain.BidStatusFailed && f.failStatusErr != nil {
		return f.failStatusErr
	}
	if f.statusErr != nil && status != domain.BidStatusFailed {
		return f.statusErr
	}
	if f.bid != nil {
		f.bid.Status = status
		f.bid.Error = errMessage
	}
	return nil
}

type catalogRepoFake struct {
	tender      *domain.Tender
	items       []domain.CatalogItem
	listErr     error
	saved       *domain.Tender
	replacedFor string
	replaced    []domain.CatalogItem
}

func (f *catalogRepoFake) CreateTender(_ context.Context, tender *domain.Tender) error {
	copyTender := *tender
	f.saved = &copyTender
	return nil
}

func (f *catalogRepoFake) GetTender(_ context.Context, tenderID string) (*domain.Tender, error) {
	if f.tender == nil || f.tender.ID != tenderID {
		return nil, domain.WrapError(domain.ErrTenderNotFound, "get tender", fmt.Errorf("tender=%s", tenderID))
	}
	copyTender := *f.tender
	return &copyTender, nil
}

func (f *catalogRepoFake) ListCatalogItems(context.Context, string) ([]domain.CatalogItem, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.items, nil
}

func (f *catalogRepoFake) ReplaceCatalog(_ context.Context, tenderID string, items []domain.CatalogItem) error {
	f.replacedFor = tenderID
	f.replaced = items
	return nil
}

type recordStoreFake struct {
	replaceErr error
	replaced   map[string][]domain.PricingRecord
	calls      int
}

func (f *recordStoreFake) ReplaceForBid(_ context.Context, bidID string, records []domain.PricingRecord) error {
	f.calls++
	if f.replaceErr != nil {
		return f.replaceErr
	}
	if f.replaced == nil {
		f.replaced = map[string][]domain.PricingRecord{}
	}
	f.replaced[bidID] = append([]domain.PricingRecord(nil), records...)
	return nil
}

func (f *recordStoreFake) ListForBid(_ context.Context, bidID string) ([]domain.PricingRecord, error) {
	return f.replaced[bidID], nil
}

// equalTextMatcher scores 100 for case-insensitive equal text and 50 for a
// shared first word, which is enough to drive every engine branch.
type equalTextMatcher struct{}

func (equalTextMatcher) Rank(ctx context.Context, query string, candidates []domain.Candidate, minScore float64) ([]domain.ScoredCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []domain.ScoredCandidate
	for _, c := range candidates {
		score := 0.0
		switch {
		case strings.EqualFold(query, c.Text):
			score = 100
		case firstWord(query) != "" && strings.EqualFold(firstWord(query), firstWord(c.Text)):
			score = 50
		}
		if score >= minScore {
			out = append(out, domain.ScoredCandidate{ID: c.ID, Score: score})
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Score > out[j-1].Score; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

type metricsFake struct {
	started   int
	finished  int
	lastErr   error
	summaries []domain.Summary
}

func (f *metricsFake) StartRun() { f.started++ }

func (f *metricsFake) FinishRun(_ time.Duration, err error) {
	f.finished++
	f.lastErr = err
}

func (f *metricsFake) ObserveSummary(summary domain.Summary) {
	f.summaries = append(f.summaries, summary)
}

type storageFake struct {
	savedKey  string
	savedBody string
	err       error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.savedKey = key
	f.savedBody = string(raw)
	return nil
}

func (f *storageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader([]byte(f.savedBody))), nil
}

// csvSheetFake splits the body into comma-separated rows.
type csvSheetFake struct {
	err error
}

func (f csvSheetFake) ReadRows(_ context.Context, body io.Reader) ([][]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	var rows [][]string
	for _, line := range strings.Split(strings.TrimRight(string(raw), "\n"), "\n") {
		if line == "" {
			rows = append(rows, nil)
			continue
		}
		rows = append(rows, strings.Split(line, ","))
	}
	return rows, nil
}

type queueFake struct {
	jobs []domain.ReconcileJob
	err  error
}

func (f *queueFake) PublishReconcileRequested(_ context.Context, job domain.ReconcileJob) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *queueFake) SubscribeReconcileRequested(context.Context, func(context.Context, domain.ReconcileJob) error) error {
	return errors.New("not implemented")
}

func ptr(v float64) *float64 { return &v }
