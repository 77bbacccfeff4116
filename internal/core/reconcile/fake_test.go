package reconcile

import (
	"context"
	"sort"

	"github.com/kirillkom/bid-reconciler/internal/core/domain"
)

type rankCall struct {
	query      string
	candidates []domain.Candidate
	minScore   float64
}

// scriptedMatcher scores candidates from a query -> description -> score table.
// Unknown pairs score 0.
type scriptedMatcher struct {
	scores map[string]map[string]float64
	err    error
	calls  []rankCall
}

func (m *scriptedMatcher) Rank(_ context.Context, query string, candidates []domain.Candidate, minScore float64) ([]domain.ScoredCandidate, error) {
	m.calls = append(m.calls, rankCall{query: query, candidates: candidates, minScore: minScore})
	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		score := m.scores[query][c.Text]
		if score < minScore {
			continue
		}
		out = append(out, domain.ScoredCandidate{ID: c.ID, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func ptr[T any](v T) *T {
	return &v
}

func item(id, number, description string) domain.CatalogItem {
	return domain.CatalogItem{ID: id, TenderID: "tender-1", ItemNumber: number, Description: description}
}

func line(row int, number, description string) domain.BidLine {
	return domain.BidLine{RowIndex: row, ItemNumber: number, Description: description}
}
