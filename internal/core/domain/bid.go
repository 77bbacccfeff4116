package domain

import "time"

// BidStatus is the bid lifecycle: mapped, then matching, then matched or failed.
type BidStatus string

const (
	BidStatusMapped   BidStatus = "mapped"
	BidStatusMatching BidStatus = "matching"
	BidStatusMatched  BidStatus = "matched"
	BidStatusFailed   BidStatus = "failed"
)

type Bid struct {
	ID         string    `json:"id"`
	TenderID   string    `json:"tender_id"`
	Bidder     string    `json:"bidder"`
	SourceFile string    `json:"source_file,omitempty"`
	Status     BidStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// BidLine is one submitted row of a bid sheet. RowIndex is the row position in
// the source file and identifies the line for the lifetime of the bid.
type BidLine struct {
	RowIndex    int      `json:"row_index"`
	ItemNumber  string   `json:"item_number,omitempty"`
	Description string   `json:"description,omitempty"`
	Quantity    *float64 `json:"quantity,omitempty"`
	Unit        string   `json:"unit,omitempty"`
	UnitRate    *float64 `json:"unit_rate,omitempty"`
	Amount      *float64 `json:"amount,omitempty"`
	Currency    string   `json:"currency,omitempty"`
}
