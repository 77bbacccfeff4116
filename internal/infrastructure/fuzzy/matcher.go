package fuzzy

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/kirillkom/bid-reconciler/internal/core/domain"
)

// Matcher scores descriptions in-process. A score is the larger of a plain
// edit-distance ratio and a token-set ratio over folded text, in 0..100.
type Matcher struct{}

func NewMatcher() *Matcher {
	return &Matcher{}
}

func (m *Matcher) Rank(ctx context.Context, query string, candidates []domain.Candidate, minScore float64) ([]domain.ScoredCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := fold(query)
	if q == "" || len(candidates) == 0 {
		return []domain.ScoredCandidate{}, nil
	}
	qTokens := strings.Fields(q)

	out := make([]domain.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		score := Score(q, qTokens, fold(c.Text))
		if score < minScore {
			continue
		}
		out = append(out, domain.ScoredCandidate{ID: c.ID, Score: score})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// Score compares a folded query against folded text.
func Score(query string, queryTokens []string, text string) float64 {
	if query == "" || text == "" {
		return 0
	}
	best := math.Max(ratio(query, text), tokenSetRatio(queryTokens, strings.Fields(text)))
	return math.Round(best*100) / 100
}

func ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 0
	}
	return levenshtein.Similarity(a, b, nil) * 100
}

func tokenSetRatio(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)

	var common, onlyA, onlyB []string
	for token := range setA {
		if _, ok := setB[token]; ok {
			common = append(common, token)
		} else {
			onlyA = append(onlyA, token)
		}
	}
	for token := range setB {
		if _, ok := setA[token]; !ok {
			onlyB = append(onlyB, token)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(common, " ")
	withA := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	withB := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	best := ratio(withA, withB)
	if base != "" {
		best = math.Max(best, math.Max(ratio(base, withA), ratio(base, withB)))
	}
	return best
}

func toSet(tokens []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		out[t] = struct{}{}
	}
	return out
}

// fold strips accents and case and collapses everything that is not a letter
// or digit into single spaces.
func fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), cases.Fold(), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = strings.ToLower(s)
	}

	var b strings.Builder
	b.Grow(len(folded))
	space := true
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}
