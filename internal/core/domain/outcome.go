package domain

type OutcomeKind string

const (
	OutcomeExact OutcomeKind = "exact"
	OutcomeFuzzy OutcomeKind = "fuzzy"
	OutcomeExtra OutcomeKind = "extra"
	OutcomeNoBid OutcomeKind = "no_bid"
)

const (
	ExactConfidence = 100.0
	// ReviewCutoff is fixed and independent of the configured fuzzy threshold.
	ReviewCutoff = 90.0
)

// LineOutcome is the classification of a single bid line. Exactly one of
// ExactMatch, FuzzyMatch or ExtraItem exists per line.
type LineOutcome interface {
	Kind() OutcomeKind
	BidLine() BidLine
	MatchedItem() (CatalogItem, bool)
	Score() float64
	NeedsReview() bool
	isLineOutcome()
}

type Alternative struct {
	Item       CatalogItem `json:"item"`
	Confidence float64     `json:"confidence"`
}

type ExactMatch struct {
	Line BidLine     `json:"line"`
	Item CatalogItem `json:"item"`
}

func (ExactMatch) Kind() OutcomeKind                  { return OutcomeExact }
func (m ExactMatch) BidLine() BidLine                 { return m.Line }
func (m ExactMatch) MatchedItem() (CatalogItem, bool) { return m.Item, true }
func (ExactMatch) Score() float64                     { return ExactConfidence }
func (ExactMatch) NeedsReview() bool                  { return false }
func (ExactMatch) isLineOutcome()                     {}

type FuzzyMatch struct {
	Line         BidLine       `json:"line"`
	Item         CatalogItem   `json:"item"`
	Confidence   float64       `json:"confidence"`
	Alternatives []Alternative `json:"alternatives"`
}

func (FuzzyMatch) Kind() OutcomeKind                  { return OutcomeFuzzy }
func (m FuzzyMatch) BidLine() BidLine                 { return m.Line }
func (m FuzzyMatch) MatchedItem() (CatalogItem, bool) { return m.Item, true }
func (m FuzzyMatch) Score() float64                   { return m.Confidence }
func (m FuzzyMatch) NeedsReview() bool                { return m.Confidence < ReviewCutoff }
func (FuzzyMatch) isLineOutcome()                     {}

// ExtraItem is a bid line with no catalog counterpart. Alternatives are
// non-binding suggestions for a reviewer.
type ExtraItem struct {
	Line         BidLine       `json:"line"`
	Alternatives []Alternative `json:"alternatives"`
}

func (ExtraItem) Kind() OutcomeKind                { return OutcomeExtra }
func (m ExtraItem) BidLine() BidLine               { return m.Line }
func (ExtraItem) MatchedItem() (CatalogItem, bool) { return CatalogItem{}, false }
func (ExtraItem) Score() float64                   { return 0 }
func (ExtraItem) NeedsReview() bool                { return true }
func (ExtraItem) isLineOutcome()                   {}

// NoBidItem is a catalog item nobody priced. It carries no bid line.
type NoBidItem struct {
	Item CatalogItem `json:"item"`
}
