package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/bid-reconciler/internal/core/domain"
)

func runEngine(t *testing.T, matcher *scriptedMatcher, lines []domain.BidLine, catalog []domain.CatalogItem, opts domain.ReconcileOptions) *domain.ReconciliationResult {
	t.Helper()
	result, _, err := NewEngine(matcher).Run(context.Background(), Input{
		Tender:  domain.Tender{ID: "tender-1", PricingLevel: domain.PricingLevelItem},
		BidID:   "bid-1",
		Lines:   lines,
		Catalog: catalog,
		Options: opts,
	})
	require.NoError(t, err)
	return result
}

func TestRunExactMatchUsesNormalizedItemNumbers(t *testing.T) {
	catalog := []domain.CatalogItem{item("c1", "1.A", "Excavation"), item("c2", "2", "Concrete")}
	lines := []domain.BidLine{line(1, "001-A", "dig"), line(2, " 2 ", "")}

	result := runEngine(t, &scriptedMatcher{}, lines, catalog, domain.DefaultReconcileOptions())

	require.Len(t, result.Exact, 2)
	assert.Equal(t, "c1", result.Exact[0].Item.ID)
	assert.Equal(t, "c2", result.Exact[1].Item.ID)
	assert.Equal(t, 100.0, result.Exact[0].Score())
	assert.Empty(t, result.Fuzzy)
	assert.Empty(t, result.Extra)
	assert.Empty(t, result.NoBid)
}

func TestRunExactMatchDuplicateNumbersFollowCatalogOrder(t *testing.T) {
	catalog := []domain.CatalogItem{item("first", "1.01", "a"), item("second", "1-01", "b")}
	lines := []domain.BidLine{line(1, "1.01", ""), line(2, "01.01", ""), line(3, "1.01", "")}

	result := runEngine(t, &scriptedMatcher{}, lines, catalog, domain.DefaultReconcileOptions())

	require.Len(t, result.Exact, 2)
	assert.Equal(t, "first", result.Exact[0].Item.ID)
	assert.Equal(t, "second", result.Exact[1].Item.ID)
	require.Len(t, result.Extra, 1)
	assert.Equal(t, 3, result.Extra[0].Line.RowIndex)
}

func TestRunBlankItemNumberDefersToFuzzyPass(t *testing.T) {
	catalog := []domain.CatalogItem{item("c1", "1", "Excavation in rock")}
	lines := []domain.BidLine{line(1, "", "excavation rock")}
	matcher := &scriptedMatcher{scores: map[string]map[string]float64{
		"excavation rock": {"Excavation in rock": 95},
	}}

	result := runEngine(t, matcher, lines, catalog, domain.DefaultReconcileOptions())

	require.Len(t, result.Fuzzy, 1)
	assert.Equal(t, "c1", result.Fuzzy[0].Item.ID)
	assert.Equal(t, 95.0, result.Fuzzy[0].Confidence)
	assert.False(t, result.Fuzzy[0].NeedsReview())
}

func TestRunFuzzyThresholdBoundary(t *testing.T) {
	catalog := []domain.CatalogItem{item("c1", "1", "Formwork"), item("c2", "2", "Rebar")}
	lines := []domain.BidLine{line(1, "", "formwork"), line(2, "", "rebar")}
	matcher := &scriptedMatcher{scores: map[string]map[string]float64{
		"formwork": {"Formwork": 80},
		"rebar":    {"Rebar": 79},
	}}

	result := runEngine(t, matcher, lines, catalog, domain.DefaultReconcileOptions())

	require.Len(t, result.Fuzzy, 1)
	assert.Equal(t, "c1", result.Fuzzy[0].Item.ID)
	assert.True(t, result.Fuzzy[0].NeedsReview())
	require.Len(t, result.Extra, 1)
	assert.Equal(t, 2, result.Extra[0].Line.RowIndex)
	require.Len(t, result.NoBid, 1)
	assert.Equal(t, "c2", result.NoBid[0].Item.ID)
}

func TestRunReviewBoundaryIsIndependentOfThreshold(t *testing.T) {
	catalog := []domain.CatalogItem{item("c1", "1", "Paint"), item("c2", "2", "Primer")}
	lines := []domain.BidLine{line(1, "", "paint"), line(2, "", "primer")}
	matcher := &scriptedMatcher{scores: map[string]map[string]float64{
		"paint":  {"Paint": 90},
		"primer": {"Primer": 89.99},
	}}

	result := runEngine(t, matcher, lines, catalog, domain.ReconcileOptions{FuzzyThreshold: 50, AlternativeCount: 3})

	require.Len(t, result.Fuzzy, 2)
	assert.False(t, result.Fuzzy[0].NeedsReview())
	assert.True(t, result.Fuzzy[1].NeedsReview())
	assert.Equal(t, 1, result.Summary.NeedsReviewCount)
}

func TestRunFuzzyClaimsWinnerBeforeNextLine(t *testing.T) {
	catalog := []domain.CatalogItem{item("c1", "1", "Steel beam"), item("c2", "2", "Steel column")}
	lines := []domain.BidLine{line(2, "", "steel"), line(1, "", "steel")}
	matcher := &scriptedMatcher{scores: map[string]map[string]float64{
		"steel": {"Steel beam": 92, "Steel column": 70},
	}}

	result := runEngine(t, matcher, lines, catalog, domain.DefaultReconcileOptions())

	require.Len(t, result.Fuzzy, 1)
	assert.Equal(t, 1, result.Fuzzy[0].Line.RowIndex, "lower row index is processed first")
	assert.Equal(t, "c1", result.Fuzzy[0].Item.ID)
	require.Len(t, result.Extra, 1)
	assert.Equal(t, 2, result.Extra[0].Line.RowIndex)

	last := matcher.calls[len(matcher.calls)-1]
	for _, c := range last.candidates {
		assert.NotEqual(t, "Steel beam", c.Text, "claimed item must not be offered again")
	}
}

func TestRunFuzzyAlternativesFollowTopCandidate(t *testing.T) {
	catalog := []domain.CatalogItem{
		item("c1", "1", "Pipe 100mm"),
		item("c2", "2", "Pipe 150mm"),
		item("c3", "3", "Pipe 200mm"),
		item("c4", "4", "Pipe 250mm"),
	}
	lines := []domain.BidLine{line(1, "", "pipe")}
	matcher := &scriptedMatcher{scores: map[string]map[string]float64{
		"pipe": {"Pipe 100mm": 99, "Pipe 150mm": 95, "Pipe 200mm": 90, "Pipe 250mm": 85},
	}}

	result := runEngine(t, matcher, lines, catalog, domain.ReconcileOptions{FuzzyThreshold: 80, AlternativeCount: 2})

	require.Len(t, result.Fuzzy, 1)
	alts := result.Fuzzy[0].Alternatives
	require.Len(t, alts, 2)
	assert.Equal(t, "c2", alts[0].Item.ID)
	assert.Equal(t, "c3", alts[1].Item.ID)
	assert.Equal(t, 80.0, matcher.calls[0].minScore)
}

func TestRunExtraSuggestionsDoNotClaim(t *testing.T) {
	catalog := []domain.CatalogItem{item("c1", "1", "Roof tiles"), item("c2", "2", "Gutters")}
	lines := []domain.BidLine{line(1, "99", "roofing felt")}
	matcher := &scriptedMatcher{scores: map[string]map[string]float64{
		"roofing felt": {"Roof tiles": 40, "Gutters": 5},
	}}

	result := runEngine(t, matcher, lines, catalog, domain.DefaultReconcileOptions())

	require.Len(t, result.Extra, 1)
	extra := result.Extra[0]
	assert.True(t, extra.NeedsReview())
	require.Len(t, extra.Alternatives, 2)
	assert.Equal(t, "c1", extra.Alternatives[0].Item.ID)
	assert.Equal(t, 40.0, extra.Alternatives[0].Confidence)

	require.Len(t, result.NoBid, 2)
	assert.Equal(t, "c1", result.NoBid[0].Item.ID)
	assert.Equal(t, "c2", result.NoBid[1].Item.ID)

	last := matcher.calls[len(matcher.calls)-1]
	assert.Equal(t, 0.0, last.minScore)
}

func TestRunExtraWithoutDescriptionSkipsSuggestions(t *testing.T) {
	catalog := []domain.CatalogItem{item("c1", "1", "Roof tiles")}
	lines := []domain.BidLine{line(1, "42", "")}
	matcher := &scriptedMatcher{}

	result := runEngine(t, matcher, lines, catalog, domain.DefaultReconcileOptions())

	require.Len(t, result.Extra, 1)
	assert.Empty(t, result.Extra[0].Alternatives)
	assert.Empty(t, matcher.calls)
}

func TestRunPartitionInvariant(t *testing.T) {
	for seed := 0; seed < 5; seed++ {
		t.Run(fmt.Sprintf("seed-%d", seed), func(t *testing.T) {
			catalog := make([]domain.CatalogItem, 0, 12)
			for i := 0; i < 12; i++ {
				catalog = append(catalog, item(fmt.Sprintf("c%d", i), fmt.Sprintf("%d.%02d", i%3+1, (i*seed)%7), fmt.Sprintf("desc %d", i%5)))
			}
			scores := map[string]map[string]float64{}
			lines := make([]domain.BidLine, 0, 15)
			for i := 0; i < 15; i++ {
				number := ""
				if (i+seed)%2 == 0 {
					number = fmt.Sprintf("%d.%02d", (i+seed)%4+1, i%7)
				}
				query := fmt.Sprintf("q%d", i%4)
				scores[query] = map[string]float64{
					fmt.Sprintf("desc %d", (i+seed)%5): float64(70 + (i*7+seed)%30),
				}
				lines = append(lines, line(i+1, number, query))
			}

			result := runEngine(t, &scriptedMatcher{scores: scores}, lines, catalog, domain.DefaultReconcileOptions())

			seenRows := map[int]int{}
			for _, o := range result.Outcomes() {
				seenRows[o.BidLine().RowIndex]++
			}
			require.Len(t, seenRows, len(lines))
			for row, n := range seenRows {
				assert.Equal(t, 1, n, "row %d classified %d times", row, n)
			}

			seenItems := map[string]int{}
			for _, m := range result.Exact {
				seenItems[m.Item.ID]++
			}
			for _, m := range result.Fuzzy {
				seenItems[m.Item.ID]++
			}
			for _, nb := range result.NoBid {
				seenItems[nb.Item.ID]++
			}
			assert.Len(t, seenItems, len(catalog))
			for id, n := range seenItems {
				assert.Equal(t, 1, n, "catalog item %s appears %d times", id, n)
			}
		})
	}
}

func TestRunIsDeterministic(t *testing.T) {
	catalog := []domain.CatalogItem{item("c1", "1", "Sand"), item("c2", "2", "Gravel"), item("c3", "3", "Cement")}
	lines := []domain.BidLine{line(3, "", "gravel"), line(1, "3", "cement"), line(2, "", "sand bags")}
	scores := map[string]map[string]float64{
		"gravel":    {"Gravel": 100, "Sand": 60},
		"sand bags": {"Sand": 75, "Gravel": 20},
	}

	first := runEngine(t, &scriptedMatcher{scores: scores}, lines, catalog, domain.DefaultReconcileOptions())
	second := runEngine(t, &scriptedMatcher{scores: scores}, lines, catalog, domain.DefaultReconcileOptions())

	assert.Equal(t, first, second)
}

func TestRunPropagatesMatcherError(t *testing.T) {
	boom := errors.New("matcher down")
	_, _, err := NewEngine(&scriptedMatcher{err: boom}).Run(context.Background(), Input{
		Lines:   []domain.BidLine{line(1, "", "anything")},
		Catalog: []domain.CatalogItem{item("c1", "1", "x")},
		Options: domain.DefaultReconcileOptions(),
	})
	require.ErrorIs(t, err, boom)
}

func TestRunProducesRecordsWithRollupFlags(t *testing.T) {
	catalog := []domain.CatalogItem{item("c1", "1.01", "Group"), item("c2", "1.01.a", "Leaf"), item("c3", "1.02", "Unbid")}
	lines := []domain.BidLine{
		{RowIndex: 1, ItemNumber: "1.01", Amount: ptr(300.0)},
		{RowIndex: 2, ItemNumber: "1.01.a", UnitRate: ptr(150.0), Quantity: ptr(2.0), Amount: ptr(300.0)},
		{RowIndex: 3, ItemNumber: "9.99", Amount: ptr(50.0)},
	}

	result, records, err := NewEngine(&scriptedMatcher{}).Run(context.Background(), Input{
		Tender:  domain.Tender{ID: "tender-1", PricingLevel: domain.PricingLevelItem},
		BidID:   "bid-1",
		Lines:   lines,
		Catalog: catalog,
		Options: domain.DefaultReconcileOptions(),
	})
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, domain.OutcomeExact, records[0].Outcome)
	assert.True(t, records[0].IncludedInTotal)
	assert.False(t, records[1].IncludedInTotal)
	assert.Equal(t, domain.OutcomeExtra, records[2].Outcome)
	assert.False(t, records[2].IncludedInTotal)
	assert.Nil(t, records[2].CatalogItemID)
	assert.Equal(t, domain.OutcomeNoBid, records[3].Outcome)
	assert.Nil(t, records[3].RowIndex)
	assert.False(t, records[3].IncludedInTotal)

	assert.Equal(t, 300.0, result.IncludedAmount)
}
