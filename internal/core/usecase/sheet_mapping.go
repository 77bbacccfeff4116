package usecase

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/kirillkom/bid-reconciler/internal/core/domain"
)

type column int

const (
	colItemNumber column = iota
	colDescription
	colQuantity
	colUnit
	colUnitRate
	colAmount
	colCurrency
	colSection
)

// headerScanRows bounds how far down a sheet the header row may sit.
const headerScanRows = 25

var columnAliases = map[column][]string{
	colItemNumber:  {"item", "no", "sno", "slno", "itemno", "itemnumber", "itemref", "itemcode", "ref", "refno", "reference", "boqref", "boqitem", "code", "pos", "position"},
	colDescription: {"description", "desc", "itemdescription", "particulars", "workdescription", "scope", "specification"},
	colQuantity:    {"qty", "qnty", "quantity", "quantities"},
	colUnit:        {"unit", "units", "uom", "unitofmeasure", "measure"},
	colUnitRate:    {"rate", "unitrate", "unitprice", "price", "rateperunit", "unitcost"},
	colAmount:      {"amount", "total", "totalamount", "totalprice", "totalcost", "lineamount", "value", "extendedprice"},
	colCurrency:    {"currency", "ccy", "cur"},
	colSection:     {"section", "bill", "billno", "group", "chapter", "trade"},
}

type aliasEntry struct {
	alias string
	col   column
}

// aliasesByLength holds every alias, longest first, for prefix matching of
// decorated headers such as "Rate (USD)".
var aliasesByLength = func() []aliasEntry {
	var out []aliasEntry
	for col, aliases := range columnAliases {
		for _, alias := range aliases {
			out = append(out, aliasEntry{alias: alias, col: col})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].alias) != len(out[j].alias) {
			return len(out[i].alias) > len(out[j].alias)
		}
		return out[i].alias < out[j].alias
	})
	return out
}()

type columnMap map[column]int

func (m columnMap) cell(row []string, col column) string {
	idx, ok := m[col]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func (m columnMap) number(row []string, col column) *float64 {
	return parseNumber(m.cell(row, col))
}

func normalizeHeader(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func classifyHeader(raw string) (column, bool) {
	h := normalizeHeader(raw)
	if h == "" {
		return 0, false
	}
	for col, aliases := range columnAliases {
		for _, alias := range aliases {
			if h == alias {
				return col, true
			}
		}
	}
	for _, entry := range aliasesByLength {
		if len(entry.alias) >= 3 && strings.HasPrefix(h, entry.alias) {
			return entry.col, true
		}
	}
	return 0, false
}

// findHeader returns the index of the first row that names at least two known
// columns including item number or description, plus its column layout.
func findHeader(rows [][]string) (int, columnMap, error) {
	limit := len(rows)
	if limit > headerScanRows {
		limit = headerScanRows
	}
	for i := 0; i < limit; i++ {
		cols := columnMap{}
		for j, cell := range rows[i] {
			col, ok := classifyHeader(cell)
			if !ok {
				continue
			}
			if _, seen := cols[col]; !seen {
				cols[col] = j
			}
		}
		_, hasItem := cols[colItemNumber]
		_, hasDesc := cols[colDescription]
		if len(cols) >= 2 && (hasItem || hasDesc) {
			return i, cols, nil
		}
	}
	return 0, nil, errors.New("no header row with item number or description column found")
}

// MapBidLines turns raw sheet rows into bid lines. RowIndex is the 1-based
// sheet row. Rows with neither item number nor description are skipped, and
// numeric cells that do not parse are treated as empty.
func MapBidLines(rows [][]string) ([]domain.BidLine, error) {
	headerIdx, cols, err := findHeader(rows)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "map bid sheet", err)
	}

	lines := make([]domain.BidLine, 0, len(rows)-headerIdx)
	for i := headerIdx + 1; i < len(rows); i++ {
		row := rows[i]
		item := cols.cell(row, colItemNumber)
		desc := cols.cell(row, colDescription)
		if item == "" && desc == "" {
			continue
		}
		lines = append(lines, domain.BidLine{
			RowIndex:    i + 1,
			ItemNumber:  item,
			Description: desc,
			Quantity:    cols.number(row, colQuantity),
			Unit:        cols.cell(row, colUnit),
			UnitRate:    cols.number(row, colUnitRate),
			Amount:      cols.number(row, colAmount),
			Currency:    strings.ToUpper(cols.cell(row, colCurrency)),
		})
	}
	if len(lines) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "map bid sheet", errors.New("sheet has no bid lines"))
	}
	return lines, nil
}

// MapCatalogItems turns raw BOQ rows into catalog items in sheet order. A row
// with a description but no item number is a heading and becomes the section
// of the items below it unless the sheet has its own section column.
func MapCatalogItems(tenderID string, rows [][]string) ([]domain.CatalogItem, error) {
	headerIdx, cols, err := findHeader(rows)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "map catalog sheet", err)
	}
	if _, ok := cols[colItemNumber]; !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "map catalog sheet", errors.New("catalog sheet needs an item number column"))
	}
	_, hasSection := cols[colSection]

	items := make([]domain.CatalogItem, 0, len(rows)-headerIdx)
	section := ""
	for i := headerIdx + 1; i < len(rows); i++ {
		row := rows[i]
		item := cols.cell(row, colItemNumber)
		desc := cols.cell(row, colDescription)
		if item == "" {
			if desc != "" && !hasSection {
				section = desc
			}
			continue
		}
		rowSection := section
		if hasSection {
			rowSection = cols.cell(row, colSection)
		}
		items = append(items, domain.CatalogItem{
			TenderID:    tenderID,
			ItemNumber:  item,
			Description: desc,
			Quantity:    cols.number(row, colQuantity),
			Unit:        cols.cell(row, colUnit),
			Section:     rowSection,
			Position:    len(items),
		})
	}
	if len(items) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "map catalog sheet", fmt.Errorf("sheet has no catalog items below header row %d", headerIdx+1))
	}
	return items, nil
}

var numberCleaner = strings.NewReplacer(",", "", " ", "", "\u00a0", "", "$", "", "€", "", "£", "", "'", "")

func parseNumber(raw string) *float64 {
	s := numberCleaner.Replace(strings.TrimSpace(raw))
	if s == "" || s == "-" {
		return nil
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	if negative {
		v = -v
	}
	return &v
}
