package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/bid-reconciler/internal/core/domain"
	"github.com/kirillkom/bid-reconciler/internal/infrastructure/fuzzy"
	"github.com/kirillkom/bid-reconciler/internal/infrastructure/spreadsheet/excel"
)

const catalogYAML = `tender:
  id: depot-2026
  name: Depot extension
  pricing_level: Item
items:
  - item_number: "1.03"
    description: Reinforcement steel
    quantity: 2
    unit: t
  - item_number: "1.01"
    description: Excavation in rock
    quantity: 10
    unit: m3
  - item_number: "1.02"
    description: Concrete grade C30
    quantity: 5
    unit: m3
`

const bidCSV = `Item,Description,Qty,Unit,Rate,Amount
1.01,Excavation in rock,10,m3,12,120
,Concrete grade C30 (supply and place),5,m3,100,500
9.99,Mobilisation of site crew,1,sum,500,500
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCatalogFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "boq.yaml", catalogYAML)

	tender, items, err := loadCatalog(context.Background(), path, excel.NewReader(excel.Options{}))
	require.NoError(t, err)

	assert.Equal(t, "depot-2026", tender.ID)
	assert.Equal(t, domain.PricingLevelItem, tender.PricingLevel)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"1.01", "1.02", "1.03"}, []string{items[0].ItemNumber, items[1].ItemNumber, items[2].ItemNumber})
	for _, item := range items {
		assert.NotEmpty(t, item.ID)
		assert.Equal(t, "depot-2026", item.TenderID)
	}
}

func TestLoadCatalogFromSheet(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "depot.csv", "Item,Description,Qty,Unit\n1.01,Excavation,10,m3\n")

	tender, items, err := loadCatalog(context.Background(), path, excel.NewReader(excel.Options{}))
	require.NoError(t, err)
	assert.Equal(t, "depot", tender.ID)
	require.Len(t, items, 1)
	assert.Equal(t, "depot", items[0].TenderID)
}

func TestLoadCatalogRejectsEmptyYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "boq.yml", "tender:\n  name: Empty\n")

	_, _, err := loadCatalog(context.Background(), path, excel.NewReader(excel.Options{}))
	require.Error(t, err)
}

func TestRunReconcileReportsEveryBid(t *testing.T) {
	dir := t.TempDir()
	catalogPath := writeFile(t, dir, "boq.yaml", catalogYAML)
	bidPath := writeFile(t, dir, "acme.csv", bidCSV)
	missing := filepath.Join(dir, "missing.xlsx")

	var out bytes.Buffer
	err := runReconcile(context.Background(), batchInput{
		CatalogPath: catalogPath,
		BidPaths:    []string{bidPath, missing},
		Concurrency: 2,
		Options:     domain.DefaultReconcileOptions(),
		Sheets:      excel.NewReader(excel.Options{}),
		Matcher:     fuzzy.NewMatcher(),
	}, &out)
	require.NoError(t, err)

	var report batchReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	require.Len(t, report.Bids, 2)

	acme := report.Bids[0]
	assert.Equal(t, "acme", acme.Bidder)
	assert.Empty(t, acme.Error)
	require.NotNil(t, acme.Result)
	summary := acme.Result.Summary
	assert.Equal(t, 1, summary.ExactCount)
	assert.Equal(t, 1, summary.FuzzyCount)
	assert.Equal(t, 1, summary.ExtraCount)
	assert.Equal(t, 1, summary.NoBidCount)
	assert.Equal(t, 66.67, summary.MatchPercentage)
	require.Len(t, acme.Result.NoBid, 1)
	assert.Equal(t, "1.03", acme.Result.NoBid[0].Item.ItemNumber)

	assert.Nil(t, report.Bids[1].Result)
	assert.NotEmpty(t, report.Bids[1].Error)
}

func TestRunReconcileRejectsBadThreshold(t *testing.T) {
	err := runReconcile(context.Background(), batchInput{
		Options: domain.ReconcileOptions{FuzzyThreshold: 120},
	}, &bytes.Buffer{})
	require.Error(t, err)
}

func TestRunReconcileRejectsAlternativesOutOfRange(t *testing.T) {
	for _, count := range []int{-1, domain.MaxAlternativeCount + 1, 1000} {
		err := runReconcile(context.Background(), batchInput{
			Options: domain.ReconcileOptions{FuzzyThreshold: domain.DefaultFuzzyThreshold, AlternativeCount: count},
		}, &bytes.Buffer{})
		require.Error(t, err, "count %d", count)
		assert.Contains(t, err.Error(), "alternatives must be within 0..10")
	}
}
