package domain

import (
	"sort"
	"time"
)

type Summary struct {
	TotalBidLines          int     `json:"total_bid_lines"`
	TotalCatalogItems      int     `json:"total_catalog_items"`
	ExactCount             int     `json:"exact_count"`
	FuzzyCount             int     `json:"fuzzy_count"`
	ExtraCount             int     `json:"extra_count"`
	NoBidCount             int     `json:"no_bid_count"`
	NeedsReviewCount       int     `json:"needs_review_count"`
	MatchPercentage        float64 `json:"match_percentage"`
	AverageFuzzyConfidence float64 `json:"average_fuzzy_confidence"`
}

// ReconciliationResult is produced once per run and never mutated afterwards.
type ReconciliationResult struct {
	TenderID       string       `json:"tender_id"`
	BidID          string       `json:"bid_id"`
	Exact          []ExactMatch `json:"exact"`
	Fuzzy          []FuzzyMatch `json:"fuzzy"`
	Extra          []ExtraItem  `json:"extra"`
	NoBid          []NoBidItem  `json:"no_bid"`
	Summary        Summary      `json:"summary"`
	IncludedAmount float64      `json:"included_amount"`
}

// Outcomes returns every line outcome ordered by bid row index.
func (r *ReconciliationResult) Outcomes() []LineOutcome {
	out := make([]LineOutcome, 0, len(r.Exact)+len(r.Fuzzy)+len(r.Extra))
	for _, m := range r.Exact {
		out = append(out, m)
	}
	for _, m := range r.Fuzzy {
		out = append(out, m)
	}
	for _, m := range r.Extra {
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].BidLine().RowIndex < out[j].BidLine().RowIndex
	})
	return out
}

// PricingRecord is the persisted per-line view of a run. Records are owned by
// the bid and replaced wholesale on every run.
type PricingRecord struct {
	ID              string      `json:"id"`
	TenderID        string      `json:"tender_id"`
	BidID           string      `json:"bid_id"`
	RowIndex        *int        `json:"row_index,omitempty"`
	CatalogItemID   *string     `json:"catalog_item_id,omitempty"`
	ItemNumber      string      `json:"item_number,omitempty"`
	Description     string      `json:"description,omitempty"`
	Quantity        *float64    `json:"quantity,omitempty"`
	Unit            string      `json:"unit,omitempty"`
	UnitRate        *float64    `json:"unit_rate,omitempty"`
	Amount          *float64    `json:"amount,omitempty"`
	Currency        string      `json:"currency,omitempty"`
	Outcome         OutcomeKind `json:"outcome"`
	Confidence      float64     `json:"confidence"`
	NeedsReview     bool        `json:"needs_review"`
	IncludedInTotal bool        `json:"included_in_total"`
	CreatedAt       time.Time   `json:"created_at"`
}

// PricingView is a bid together with its persisted pricing records.
type PricingView struct {
	Bid            Bid             `json:"bid"`
	Records        []PricingRecord `json:"records"`
	IncludedAmount float64         `json:"included_amount"`
}
