package domain

const (
	DefaultFuzzyThreshold   = 80.0
	DefaultAlternativeCount = 3
	MaxAlternativeCount     = 10
)

type ReconcileOptions struct {
	FuzzyThreshold   float64 `json:"fuzzy_threshold" validate:"gte=0,lte=100"`
	AlternativeCount int     `json:"alternative_count" validate:"gte=0,lte=10"`
}

func DefaultReconcileOptions() ReconcileOptions {
	return ReconcileOptions{
		FuzzyThreshold:   DefaultFuzzyThreshold,
		AlternativeCount: DefaultAlternativeCount,
	}
}

// ReconcileRequest is the input envelope of one reconciliation run.
type ReconcileRequest struct {
	TenderID string           `json:"tender_id" validate:"required"`
	BidID    string           `json:"bid_id" validate:"required"`
	Lines    []BidLine        `json:"lines" validate:"min=1"`
	Options  ReconcileOptions `json:"options"`
}

// ReconcileJob is the queue payload asking a worker to reconcile a bid.
type ReconcileJob struct {
	TenderID         string   `json:"tender_id"`
	BidID            string   `json:"bid_id"`
	FuzzyThreshold   *float64 `json:"fuzzy_threshold,omitempty"`
	AlternativeCount *int     `json:"alternative_count,omitempty"`
}

func (j ReconcileJob) Options(defaults ReconcileOptions) ReconcileOptions {
	opts := defaults
	if j.FuzzyThreshold != nil {
		opts.FuzzyThreshold = *j.FuzzyThreshold
	}
	if j.AlternativeCount != nil {
		opts.AlternativeCount = *j.AlternativeCount
	}
	return opts
}

// Candidate is a catalog description offered to the fuzzy matcher.
type Candidate struct {
	ID   string
	Text string
}

type ScoredCandidate struct {
	ID    string
	Score float64
}
