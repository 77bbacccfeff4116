package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/bid-reconciler/internal/core/domain"
	"github.com/kirillkom/bid-reconciler/internal/core/ports"
)

type ImportCatalogUseCase struct {
	catalog ports.CatalogRepository
	storage ports.ObjectStorage
	sheets  ports.SheetReader
}

func NewImportCatalogUseCase(
	catalog ports.CatalogRepository,
	storage ports.ObjectStorage,
	sheets ports.SheetReader,
) *ImportCatalogUseCase {
	return &ImportCatalogUseCase{
		catalog: catalog,
		storage: storage,
		sheets:  sheets,
	}
}

// CreateTender registers a tender or updates its name and pricing level.
// An unrecognised pricing level is stored as given; the rollup treats it as
// "include everything".
func (uc *ImportCatalogUseCase) CreateTender(ctx context.Context, tender domain.Tender) (*domain.Tender, error) {
	tender.ID = strings.TrimSpace(tender.ID)
	tender.Name = strings.TrimSpace(tender.Name)
	tender.PricingLevel = domain.PricingLevel(strings.ToLower(strings.TrimSpace(string(tender.PricingLevel))))
	if tender.Name == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create tender", errors.New("tender name is required"))
	}
	if tender.ID == "" {
		tender.ID = uuid.NewString()
	}

	if err := uc.catalog.CreateTender(ctx, &tender); err != nil {
		return nil, fmt.Errorf("save tender: %w", err)
	}
	return &tender, nil
}

// ImportCatalog replaces the tender's BOQ with the items of the uploaded sheet
// and returns how many items were stored.
func (uc *ImportCatalogUseCase) ImportCatalog(ctx context.Context, tenderID, filename string, body io.Reader) (int, error) {
	tenderID = strings.TrimSpace(tenderID)
	if tenderID == "" {
		return 0, domain.WrapError(domain.ErrInvalidInput, "import catalog", errors.New("tender id is required"))
	}
	if _, err := uc.catalog.GetTender(ctx, tenderID); err != nil {
		return 0, fmt.Errorf("fetch tender: %w", err)
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return 0, fmt.Errorf("read catalog sheet: %w", err)
	}
	rows, err := uc.sheets.ReadRows(ctx, bytes.NewReader(raw))
	if err != nil {
		return 0, domain.WrapError(domain.ErrInvalidInput, "read catalog sheet", err)
	}
	items, err := MapCatalogItems(tenderID, rows)
	if err != nil {
		return 0, err
	}

	storageKey := fmt.Sprintf("catalogs/%s/%s_%s", tenderID, uuid.NewString(), sanitizeFilename(filename))
	if err := uc.storage.Save(ctx, storageKey, bytes.NewReader(raw)); err != nil {
		return 0, fmt.Errorf("save to object storage: %w", err)
	}

	if err := uc.catalog.ReplaceCatalog(ctx, tenderID, items); err != nil {
		return 0, fmt.Errorf("replace catalog: %w", err)
	}
	return len(items), nil
}
