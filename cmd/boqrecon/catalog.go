package main

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/bid-reconciler/internal/core/domain"
	"github.com/kirillkom/bid-reconciler/internal/core/ports"
	"github.com/kirillkom/bid-reconciler/internal/core/usecase"
)

// catalogFile is the YAML form of a tender and its BOQ.
type catalogFile struct {
	Tender domain.Tender        `yaml:"tender"`
	Items  []domain.CatalogItem `yaml:"items"`
}

// loadCatalog reads a BOQ from YAML, or from a spreadsheet for any other
// extension. Items come back in the order the repository would list them.
func loadCatalog(ctx context.Context, path string, sheets ports.SheetReader) (domain.Tender, []domain.CatalogItem, error) {
	var (
		tender domain.Tender
		items  []domain.CatalogItem
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err := os.ReadFile(path)
		if err != nil {
			return tender, nil, eris.Wrapf(err, "catalog: read %s", path)
		}
		var doc catalogFile
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return tender, nil, eris.Wrapf(err, "catalog: parse %s", path)
		}
		tender = doc.Tender
		items = doc.Items
	default:
		f, err := os.Open(path)
		if err != nil {
			return tender, nil, eris.Wrapf(err, "catalog: open %s", path)
		}
		defer f.Close()
		rows, err := sheets.ReadRows(ctx, f)
		if err != nil {
			return tender, nil, eris.Wrapf(err, "catalog: read sheet %s", path)
		}
		tender = domain.Tender{Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))}
		items, err = usecase.MapCatalogItems(tender.ID, rows)
		if err != nil {
			return tender, nil, eris.Wrapf(err, "catalog: map %s", path)
		}
	}

	if tender.ID == "" {
		tender.ID = tender.Name
	}
	tender.PricingLevel = domain.PricingLevel(strings.ToLower(strings.TrimSpace(string(tender.PricingLevel))))
	if len(items) == 0 {
		return tender, nil, eris.Errorf("catalog: %s has no items", path)
	}

	for i := range items {
		items[i].TenderID = tender.ID
		items[i].Position = i
		if items[i].ID == "" {
			items[i].ID = "item-" + strconv.Itoa(i+1)
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].ItemNumber < items[j].ItemNumber })
	return tender, items, nil
}
