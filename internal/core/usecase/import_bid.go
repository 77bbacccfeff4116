package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/bid-reconciler/internal/core/domain"
	"github.com/kirillkom/bid-reconciler/internal/core/ports"
)

type ImportBidUseCase struct {
	bids    ports.BidRepository
	catalog ports.CatalogRepository
	storage ports.ObjectStorage
	sheets  ports.SheetReader
	queue   ports.MessageQueue
}

func NewImportBidUseCase(
	bids ports.BidRepository,
	catalog ports.CatalogRepository,
	storage ports.ObjectStorage,
	sheets ports.SheetReader,
	queue ports.MessageQueue,
) *ImportBidUseCase {
	return &ImportBidUseCase{
		bids:    bids,
		catalog: catalog,
		storage: storage,
		sheets:  sheets,
		queue:   queue,
	}
}

// Import stores the original sheet, maps its rows into bid lines, creates the
// bid in mapped state and asks a worker to reconcile it.
func (uc *ImportBidUseCase) Import(
	ctx context.Context,
	tenderID, bidder, filename string,
	body io.Reader,
) (*domain.Bid, error) {
	tenderID = strings.TrimSpace(tenderID)
	bidder = strings.TrimSpace(bidder)
	if tenderID == "" || bidder == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "import bid", errors.New("tender id and bidder are required"))
	}
	if _, err := uc.catalog.GetTender(ctx, tenderID); err != nil {
		return nil, fmt.Errorf("fetch tender: %w", err)
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read bid sheet: %w", err)
	}

	rows, err := uc.sheets.ReadRows(ctx, bytes.NewReader(raw))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read bid sheet", err)
	}
	lines, err := MapBidLines(rows)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("bids/%s/%s_%s", tenderID, id, sanitizeFilename(filename))
	if err := uc.storage.Save(ctx, storageKey, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	now := time.Now().UTC()
	bid := &domain.Bid{
		ID:         id,
		TenderID:   tenderID,
		Bidder:     bidder,
		SourceFile: storageKey,
		Status:     domain.BidStatusMapped,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := uc.bids.Create(ctx, bid, lines); err != nil {
		return nil, fmt.Errorf("create bid: %w", err)
	}

	if err := uc.queue.PublishReconcileRequested(ctx, domain.ReconcileJob{TenderID: tenderID, BidID: id}); err != nil {
		return nil, fmt.Errorf("publish reconcile request: %w", err)
	}
	return bid, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." || base == "/" {
		return "sheet.xlsx"
	}
	return base
}
