package domain

// PricingLevel selects which tier of the BOQ hierarchy counts toward a bid total.
type PricingLevel string

const (
	PricingLevelSubItem PricingLevel = "sub_item"
	PricingLevelItem    PricingLevel = "item"
	PricingLevelBill    PricingLevel = "bill"
)

type Tender struct {
	ID           string       `json:"id" yaml:"id"`
	Name         string       `json:"name" yaml:"name"`
	PricingLevel PricingLevel `json:"pricing_level" yaml:"pricing_level"`
}

// CatalogItem is an authoritative BOQ line. ID is the storage identity; item
// numbers are expected to be unique per tender but are not relied upon.
type CatalogItem struct {
	ID          string   `json:"id" yaml:"id"`
	TenderID    string   `json:"tender_id" yaml:"-"`
	ItemNumber  string   `json:"item_number" yaml:"item_number"`
	Description string   `json:"description" yaml:"description"`
	Quantity    *float64 `json:"quantity,omitempty" yaml:"quantity"`
	Unit        string   `json:"unit,omitempty" yaml:"unit"`
	Section     string   `json:"section,omitempty" yaml:"section"`
	Position    int      `json:"position" yaml:"-"`
}
