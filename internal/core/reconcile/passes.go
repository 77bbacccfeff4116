package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/bid-reconciler/internal/core/domain"
)

func exactPass(lines []domain.BidLine, pool *Pool) ([]domain.ExactMatch, []domain.BidLine) {
	matched := make([]domain.ExactMatch, 0, len(lines))
	pending := make([]domain.BidLine, 0, len(lines))

	for _, line := range lines {
		key := NormalizeItemNumber(line.ItemNumber)
		idx, ok := pool.FirstUnclaimedByKey(key)
		if !ok || !pool.Claim(idx) {
			pending = append(pending, line)
			continue
		}
		matched = append(matched, domain.ExactMatch{Line: line, Item: pool.Item(idx)})
	}
	return matched, pending
}

func (e *Engine) fuzzyPass(
	ctx context.Context,
	lines []domain.BidLine,
	pool *Pool,
	opts domain.ReconcileOptions,
) ([]domain.FuzzyMatch, []domain.BidLine, error) {
	matched := make([]domain.FuzzyMatch, 0, len(lines))
	pending := make([]domain.BidLine, 0, len(lines))

	for _, line := range lines {
		if isBlank(line.Description) || pool.Remaining() == 0 {
			pending = append(pending, line)
			continue
		}

		ranked, err := e.rank(ctx, line.Description, pool, opts.FuzzyThreshold)
		if err != nil {
			return nil, nil, fmt.Errorf("fuzzy match row %d: %w", line.RowIndex, err)
		}
		if len(ranked) == 0 || ranked[0].Confidence < opts.FuzzyThreshold {
			pending = append(pending, line)
			continue
		}

		top := ranked[0]
		if !pool.Claim(top.idx) {
			pending = append(pending, line)
			continue
		}
		matched = append(matched, domain.FuzzyMatch{
			Line:         line,
			Item:         top.Item,
			Confidence:   top.Confidence,
			Alternatives: alternatives(ranked[1:], opts.AlternativeCount),
		})
	}
	return matched, pending, nil
}

// residualPass labels unresolved lines as extra and unclaimed items as no-bid.
// Suggestions for extra lines never claim anything.
func (e *Engine) residualPass(
	ctx context.Context,
	lines []domain.BidLine,
	pool *Pool,
	opts domain.ReconcileOptions,
) ([]domain.ExtraItem, []domain.NoBidItem, error) {
	extra := make([]domain.ExtraItem, 0, len(lines))
	for _, line := range lines {
		item := domain.ExtraItem{Line: line, Alternatives: []domain.Alternative{}}
		if !isBlank(line.Description) && pool.Remaining() > 0 && opts.AlternativeCount > 0 {
			ranked, err := e.rank(ctx, line.Description, pool, 0)
			if err != nil {
				return nil, nil, fmt.Errorf("suggest alternatives row %d: %w", line.RowIndex, err)
			}
			item.Alternatives = alternatives(ranked, opts.AlternativeCount)
		}
		extra = append(extra, item)
	}

	unclaimed := pool.Unclaimed()
	noBid := make([]domain.NoBidItem, 0, len(unclaimed))
	for _, item := range unclaimed {
		noBid = append(noBid, domain.NoBidItem{Item: item})
	}
	return extra, noBid, nil
}

type rankedItem struct {
	idx        int
	Item       domain.CatalogItem
	Confidence float64
}

func (e *Engine) rank(ctx context.Context, query string, pool *Pool, minScore float64) ([]rankedItem, error) {
	scored, err := e.matcher.Rank(ctx, query, pool.Candidates(), minScore)
	if err != nil {
		return nil, err
	}
	out := make([]rankedItem, 0, len(scored))
	for _, sc := range scored {
		idx, ok := pool.Resolve(sc.ID)
		if !ok {
			continue
		}
		out = append(out, rankedItem{idx: idx, Item: pool.Item(idx), Confidence: sc.Score})
	}
	return out, nil
}

func alternatives(ranked []rankedItem, limit int) []domain.Alternative {
	if limit > len(ranked) {
		limit = len(ranked)
	}
	if limit < 0 {
		limit = 0
	}
	out := make([]domain.Alternative, 0, limit)
	for _, r := range ranked[:limit] {
		out = append(out, domain.Alternative{Item: r.Item, Confidence: r.Confidence})
	}
	return out
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
