package reconcile

import (
	"strconv"

	"github.com/kirillkom/bid-reconciler/internal/core/domain"
)

// Pool tracks which catalog items are still available for matching during a
// single run. Claim is the only way an item leaves the pool; claimed items
// never come back.
type Pool struct {
	items   []domain.CatalogItem
	keys    []string
	byKey   map[string][]int
	claimed []bool
	left    int
}

func NewPool(catalog []domain.CatalogItem) *Pool {
	p := &Pool{
		items:   catalog,
		keys:    make([]string, len(catalog)),
		byKey:   make(map[string][]int, len(catalog)),
		claimed: make([]bool, len(catalog)),
		left:    len(catalog),
	}
	for i, item := range catalog {
		key := NormalizeItemNumber(item.ItemNumber)
		p.keys[i] = key
		if key != "" {
			p.byKey[key] = append(p.byKey[key], i)
		}
	}
	return p
}

// Claim removes the item at idx from the pool. It reports false when the item
// was already claimed or idx is out of range.
func (p *Pool) Claim(idx int) bool {
	if idx < 0 || idx >= len(p.items) || p.claimed[idx] {
		return false
	}
	p.claimed[idx] = true
	p.left--
	return true
}

func (p *Pool) Item(idx int) domain.CatalogItem {
	return p.items[idx]
}

func (p *Pool) Remaining() int {
	return p.left
}

func (p *Pool) Total() int {
	return len(p.items)
}

// FirstUnclaimedByKey returns the first unclaimed item, in catalog order, whose
// normalized item number equals key.
func (p *Pool) FirstUnclaimedByKey(key string) (int, bool) {
	if key == "" {
		return 0, false
	}
	for _, idx := range p.byKey[key] {
		if !p.claimed[idx] {
			return idx, true
		}
	}
	return 0, false
}

// Candidates returns the descriptions of unclaimed items in catalog order. The
// candidate ID is the item's position in the pool.
func (p *Pool) Candidates() []domain.Candidate {
	out := make([]domain.Candidate, 0, p.left)
	for i, item := range p.items {
		if p.claimed[i] {
			continue
		}
		out = append(out, domain.Candidate{ID: strconv.Itoa(i), Text: item.Description})
	}
	return out
}

// Resolve maps a ranked candidate back to an unclaimed pool position.
func (p *Pool) Resolve(candidateID string) (int, bool) {
	idx, err := strconv.Atoi(candidateID)
	if err != nil || idx < 0 || idx >= len(p.items) || p.claimed[idx] {
		return 0, false
	}
	return idx, true
}

func (p *Pool) Unclaimed() []domain.CatalogItem {
	out := make([]domain.CatalogItem, 0, p.left)
	for i, item := range p.items {
		if !p.claimed[i] {
			out = append(out, item)
		}
	}
	return out
}
