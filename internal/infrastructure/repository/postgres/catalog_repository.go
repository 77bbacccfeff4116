package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/bid-reconciler/internal/core/domain"
)

type CatalogRepository struct {
	db *sql.DB
	store
}

func NewCatalogRepository(db *sql.DB, opts ...Option) *CatalogRepository {
	return &CatalogRepository{db: db, store: newStore(opts)}
}

func (r *CatalogRepository) CreateTender(ctx context.Context, tender *domain.Tender) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO tenders (id, name, pricing_level, created_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, pricing_level = EXCLUDED.pricing_level
`, tender.ID, tender.Name, string(tender.PricingLevel), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert tender: %w", err)
	}
	return nil
}

func (r *CatalogRepository) GetTender(ctx context.Context, tenderID string) (*domain.Tender, error) {
	var tender domain.Tender
	var level string
	err := r.do(ctx, "tender.get", func(ctx context.Context) error {
		return r.db.QueryRowContext(ctx, `
SELECT id, name, pricing_level
FROM tenders
WHERE id = $1
`, tenderID).Scan(&tender.ID, &tender.Name, &level)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrTenderNotFound, "get tender", fmt.Errorf("tender=%s", tenderID))
		}
		return nil, fmt.Errorf("scan tender: %w", err)
	}
	tender.PricingLevel = domain.PricingLevel(level)
	return &tender, nil
}

func (r *CatalogRepository) ListCatalogItems(ctx context.Context, tenderID string) ([]domain.CatalogItem, error) {
	var items []domain.CatalogItem
	err := r.do(ctx, "catalog.list", func(ctx context.Context) error {
		var err error
		items, err = r.listCatalogItems(ctx, tenderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *CatalogRepository) listCatalogItems(ctx context.Context, tenderID string) ([]domain.CatalogItem, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, tender_id, item_number, description, quantity, unit, section, position
FROM catalog_items
WHERE tender_id = $1
ORDER BY item_number, position
`, tenderID)
	if err != nil {
		return nil, fmt.Errorf("query catalog items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.CatalogItem, 0, 128)
	for rows.Next() {
		var item domain.CatalogItem
		var quantity sql.NullFloat64
		if err := rows.Scan(
			&item.ID, &item.TenderID, &item.ItemNumber, &item.Description, &quantity, &item.Unit, &item.Section, &item.Position,
		); err != nil {
			return nil, fmt.Errorf("scan catalog item: %w", err)
		}
		item.Quantity = nullFloat(quantity)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog items: %w", err)
	}
	return items, nil
}

func (r *CatalogRepository) ReplaceCatalog(ctx context.Context, tenderID string, items []domain.CatalogItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin catalog tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_items WHERE tender_id = $1`, tenderID); err != nil {
		return fmt.Errorf("delete catalog items: %w", err)
	}

	for i, item := range items {
		id := item.ID
		if id == "" {
			id = uuid.NewString()
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO catalog_items (id, tender_id, item_number, description, quantity, unit, section, position)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, id, tenderID, item.ItemNumber, item.Description, item.Quantity, item.Unit, item.Section, i)
		if err != nil {
			return fmt.Errorf("insert catalog item %q: %w", item.ItemNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit catalog tx: %w", err)
	}
	return nil
}
