package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/kirillkom/bid-reconciler/internal/core/domain"
)

// BuildPricingRecords derives the persisted view of a result: bid lines in row
// order followed by no-bid items in catalog order. IDs and timestamps are left
// for the store to assign.
func BuildPricingRecords(tender domain.Tender, bidID string, result *domain.ReconciliationResult) []domain.PricingRecord {
	outcomes := result.Outcomes()
	records := make([]domain.PricingRecord, 0, len(outcomes)+len(result.NoBid))

	for _, outcome := range outcomes {
		line := outcome.BidLine()
		row := line.RowIndex
		rec := domain.PricingRecord{
			TenderID:    tender.ID,
			BidID:       bidID,
			RowIndex:    &row,
			ItemNumber:  line.ItemNumber,
			Description: line.Description,
			Quantity:    line.Quantity,
			Unit:        line.Unit,
			UnitRate:    line.UnitRate,
			Amount:      line.Amount,
			Currency:    line.Currency,
			Outcome:     outcome.Kind(),
			Confidence:  outcome.Score(),
			NeedsReview: outcome.NeedsReview(),
		}
		if item, ok := outcome.MatchedItem(); ok {
			id := item.ID
			rec.CatalogItemID = &id
			rec.IncludedInTotal = IncludedInTotal(outcome.Kind(), item.ItemNumber, line.UnitRate, tender.PricingLevel)
		}
		records = append(records, rec)
	}

	for _, nb := range result.NoBid {
		id := nb.Item.ID
		records = append(records, domain.PricingRecord{
			TenderID:      tender.ID,
			BidID:         bidID,
			CatalogItemID: &id,
			ItemNumber:    nb.Item.ItemNumber,
			Description:   nb.Item.Description,
			Quantity:      nb.Item.Quantity,
			Unit:          nb.Item.Unit,
			Outcome:       domain.OutcomeNoBid,
		})
	}
	return records
}

// IncludedAmount sums the bidder amounts of included records. A missing amount
// falls back to quantity times unit rate.
func IncludedAmount(records []domain.PricingRecord) float64 {
	total := decimal.Zero
	for _, rec := range records {
		if !rec.IncludedInTotal {
			continue
		}
		switch {
		case rec.Amount != nil:
			total = total.Add(decimal.NewFromFloat(*rec.Amount))
		case rec.Quantity != nil && rec.UnitRate != nil:
			total = total.Add(decimal.NewFromFloat(*rec.Quantity).Mul(decimal.NewFromFloat(*rec.UnitRate)))
		}
	}
	return toFloat2(total)
}
