package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/bid-reconciler/internal/core/domain"
)

type BidRepository struct {
	db *sql.DB
	store
}

func NewBidRepository(db *sql.DB, opts ...Option) *BidRepository {
	return &BidRepository{db: db, store: newStore(opts)}
}

func (r *BidRepository) Create(ctx context.Context, bid *domain.Bid, lines []domain.BidLine) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bid tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO bids (id, tender_id, bidder, source_file, status, error_message, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
		bid.ID, bid.TenderID, bid.Bidder, bid.SourceFile, string(bid.Status), bid.Error, bid.CreatedAt, bid.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert bid: %w", err)
	}

	for _, line := range lines {
		_, err := tx.ExecContext(ctx, `
INSERT INTO bid_lines (bid_id, row_index, item_number, description, quantity, unit, unit_rate, amount, currency)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
			bid.ID, line.RowIndex, line.ItemNumber, line.Description, line.Quantity, line.Unit, line.UnitRate, line.Amount, line.Currency,
		)
		if err != nil {
			return fmt.Errorf("insert bid line %d: %w", line.RowIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bid tx: %w", err)
	}
	return nil
}

func (r *BidRepository) GetByID(ctx context.Context, tenderID, bidID string) (*domain.Bid, error) {
	var bid domain.Bid
	var status string
	err := r.do(ctx, "bid.get", func(ctx context.Context) error {
		return r.db.QueryRowContext(ctx, `
SELECT id, tender_id, bidder, source_file, status, error_message, created_at, updated_at
FROM bids
WHERE id = $1 AND tender_id = $2
`, bidID, tenderID).Scan(
			&bid.ID, &bid.TenderID, &bid.Bidder, &bid.SourceFile, &status, &bid.Error, &bid.CreatedAt, &bid.UpdatedAt,
		)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrBidNotFound, "get bid", fmt.Errorf("tender=%s bid=%s", tenderID, bidID))
		}
		return nil, fmt.Errorf("scan bid: %w", err)
	}
	bid.Status = domain.BidStatus(status)
	return &bid, nil
}

func (r *BidRepository) ListLines(ctx context.Context, bidID string) ([]domain.BidLine, error) {
	var lines []domain.BidLine
	err := r.do(ctx, "lines.list", func(ctx context.Context) error {
		var err error
		lines, err = r.listLines(ctx, bidID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *BidRepository) listLines(ctx context.Context, bidID string) ([]domain.BidLine, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT row_index, item_number, description, quantity, unit, unit_rate, amount, currency
FROM bid_lines
WHERE bid_id = $1
ORDER BY row_index
`, bidID)
	if err != nil {
		return nil, fmt.Errorf("query bid lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.BidLine, 0, 64)
	for rows.Next() {
		var line domain.BidLine
		var quantity, unitRate, amount sql.NullFloat64
		if err := rows.Scan(
			&line.RowIndex, &line.ItemNumber, &line.Description, &quantity, &line.Unit, &unitRate, &amount, &line.Currency,
		); err != nil {
			return nil, fmt.Errorf("scan bid line: %w", err)
		}
		line.Quantity = nullFloat(quantity)
		line.UnitRate = nullFloat(unitRate)
		line.Amount = nullFloat(amount)
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bid lines: %w", err)
	}
	return lines, nil
}

func (r *BidRepository) BeginMatching(ctx context.Context, tenderID, bidID string, staleBefore time.Time) (time.Time, error) {
	// timestamptz keeps microseconds; the lease must compare equal after a round trip.
	lease := time.Now().UTC().Truncate(time.Microsecond)
	res, err := r.db.ExecContext(ctx, `
UPDATE bids
SET status = $3, error_message = '', updated_at = $4
WHERE id = $1 AND tender_id = $2
  AND (status = $5 OR (status = $3 AND updated_at < $6))
`, bidID, tenderID, string(domain.BidStatusMatching), lease, string(domain.BidStatusMapped), staleBefore)
	if err != nil {
		return time.Time{}, fmt.Errorf("begin matching: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return time.Time{}, fmt.Errorf("begin matching rows affected: %w", err)
	}
	if affected == 0 {
		return time.Time{}, domain.WrapError(domain.ErrInvalidState, "begin matching", fmt.Errorf("bid %s is not mapped", bidID))
	}
	return lease, nil
}

func (r *BidRepository) UpdateStatus(
	ctx context.Context,
	bidID string,
	lease time.Time,
	status domain.BidStatus,
	errMessage string,
) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE bids
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1 AND status = $5 AND updated_at = $6
`, bidID, string(status), errMessage, time.Now().UTC(), string(domain.BidStatusMatching), lease)
	if err != nil {
		return fmt.Errorf("update bid status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update bid status rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrInvalidState, "update bid status", fmt.Errorf("bid %s is no longer held by this run", bidID))
	}
	return nil
}
