package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/bid-reconciler/internal/core/domain"
)

type PricingRecordRepository struct {
	db *sql.DB
	store
}

func NewPricingRecordRepository(db *sql.DB, opts ...Option) *PricingRecordRepository {
	return &PricingRecordRepository{db: db, store: newStore(opts)}
}

// ReplaceForBid drops every record of the bid and writes records in their
// given order, in one transaction. Re-runs never leave stale rows behind, so
// a transaction lost to a serialization failure or a dropped connection is
// simply replayed.
func (r *PricingRecordRepository) ReplaceForBid(ctx context.Context, bidID string, records []domain.PricingRecord) error {
	return r.do(ctx, "records.replace", func(ctx context.Context) error {
		return r.replaceForBid(ctx, bidID, records)
	})
}

func (r *PricingRecordRepository) replaceForBid(ctx context.Context, bidID string, records []domain.PricingRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin pricing tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pricing_records WHERE bid_id = $1`, bidID); err != nil {
		return fmt.Errorf("delete pricing records: %w", err)
	}

	now := time.Now().UTC()
	for i, rec := range records {
		id := rec.ID
		if id == "" {
			id = uuid.NewString()
		}
		createdAt := rec.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO pricing_records (
	id, tender_id, bid_id, position, row_index, catalog_item_id, item_number, description, quantity, unit,
	unit_rate, amount, currency, outcome, confidence, needs_review, included_in_total, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
`,
			id, rec.TenderID, bidID, i, rec.RowIndex, rec.CatalogItemID, rec.ItemNumber, rec.Description, rec.Quantity, rec.Unit,
			rec.UnitRate, rec.Amount, rec.Currency, string(rec.Outcome), rec.Confidence, rec.NeedsReview, rec.IncludedInTotal, createdAt,
		)
		if err != nil {
			return fmt.Errorf("insert pricing record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit pricing tx: %w", err)
	}
	return nil
}

func (r *PricingRecordRepository) ListForBid(ctx context.Context, bidID string) ([]domain.PricingRecord, error) {
	var records []domain.PricingRecord
	err := r.do(ctx, "records.list", func(ctx context.Context) error {
		var err error
		records, err = r.listForBid(ctx, bidID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *PricingRecordRepository) listForBid(ctx context.Context, bidID string) ([]domain.PricingRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, tender_id, bid_id, row_index, catalog_item_id, item_number, description, quantity, unit,
	unit_rate, amount, currency, outcome, confidence, needs_review, included_in_total, created_at
FROM pricing_records
WHERE bid_id = $1
ORDER BY position
`, bidID)
	if err != nil {
		return nil, fmt.Errorf("query pricing records: %w", err)
	}
	defer rows.Close()

	records := make([]domain.PricingRecord, 0, 64)
	for rows.Next() {
		var rec domain.PricingRecord
		var rowIndex sql.NullInt64
		var catalogItemID sql.NullString
		var quantity, unitRate, amount sql.NullFloat64
		var outcome string
		if err := rows.Scan(
			&rec.ID, &rec.TenderID, &rec.BidID, &rowIndex, &catalogItemID, &rec.ItemNumber, &rec.Description, &quantity, &rec.Unit,
			&unitRate, &amount, &rec.Currency, &outcome, &rec.Confidence, &rec.NeedsReview, &rec.IncludedInTotal, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan pricing record: %w", err)
		}
		if rowIndex.Valid {
			row := int(rowIndex.Int64)
			rec.RowIndex = &row
		}
		if catalogItemID.Valid {
			id := catalogItemID.String
			rec.CatalogItemID = &id
		}
		rec.Quantity = nullFloat(quantity)
		rec.UnitRate = nullFloat(unitRate)
		rec.Amount = nullFloat(amount)
		rec.Outcome = domain.OutcomeKind(outcome)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pricing records: %w", err)
	}
	return records, nil
}
