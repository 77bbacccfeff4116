package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/kirillkom/bid-reconciler/internal/core/domain"
)

func Summarize(
	totalLines, totalCatalog int,
	exact []domain.ExactMatch,
	fuzzy []domain.FuzzyMatch,
	extra []domain.ExtraItem,
	noBid []domain.NoBidItem,
) domain.Summary {
	s := domain.Summary{
		TotalBidLines:     totalLines,
		TotalCatalogItems: totalCatalog,
		ExactCount:        len(exact),
		FuzzyCount:        len(fuzzy),
		ExtraCount:        len(extra),
		NoBidCount:        len(noBid),
	}

	confidenceSum := decimal.Zero
	for _, m := range fuzzy {
		confidenceSum = confidenceSum.Add(decimal.NewFromFloat(m.Confidence))
		if m.NeedsReview() {
			s.NeedsReviewCount++
		}
	}
	s.NeedsReviewCount += len(extra)

	if totalCatalog > 0 {
		matched := decimal.NewFromInt(int64(len(exact) + len(fuzzy)))
		s.MatchPercentage = toFloat2(matched.Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(int64(totalCatalog))))
	}
	if len(fuzzy) > 0 {
		s.AverageFuzzyConfidence = toFloat2(confidenceSum.Div(decimal.NewFromInt(int64(len(fuzzy)))))
	}
	return s
}

// round2 rounds the shortest decimal form of v half away from zero to two
// places, so 1.005 becomes 1.01 even though its binary value is below the half.
func round2(v float64) float64 {
	return toFloat2(decimal.NewFromFloat(v))
}

func toFloat2(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
