package reconcile

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kirillkom/bid-reconciler/internal/core/domain"
)

// IncludedInTotal reports whether a priced line counts toward the bid total
// under the tender's pricing level. Only exact and fuzzy matches can count.
//
// At sub-item level a positive unit rate stands in for "leaf row": group
// subtotal rows carry no rate. A leaf priced at zero is therefore excluded
// too.
func IncludedInTotal(kind domain.OutcomeKind, itemNumber string, unitRate *float64, level domain.PricingLevel) bool {
	if kind != domain.OutcomeExact && kind != domain.OutcomeFuzzy {
		return false
	}

	itemNumber = strings.TrimSpace(itemNumber)
	switch level {
	case domain.PricingLevelSubItem:
		return unitRate != nil && *unitRate > 0
	case domain.PricingLevelItem:
		return !hasSubItemSuffix(itemNumber)
	case domain.PricingLevelBill:
		return !strings.Contains(itemNumber, ".")
	default:
		// Unknown levels keep everything rather than drop money.
		return true
	}
}

// hasSubItemSuffix matches numbers like 1.01.a: three or more dot segments
// ending in a single letter.
func hasSubItemSuffix(itemNumber string) bool {
	if !strings.Contains(itemNumber, ".") {
		return false
	}
	parts := strings.Split(itemNumber, ".")
	if len(parts) <= 2 {
		return false
	}
	last := parts[len(parts)-1]
	if utf8.RuneCountInString(last) != 1 {
		return false
	}
	r, _ := utf8.DecodeRuneInString(last)
	return unicode.IsLetter(r)
}
