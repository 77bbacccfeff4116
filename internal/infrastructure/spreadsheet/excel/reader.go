// Package excel reads bid and BOQ spreadsheets into raw rows.
package excel

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
)

// zipMagic prefixes every OOXML workbook.
var zipMagic = []byte("PK\x03\x04")

// Options configures the sheet reader.
type Options struct {
	SheetName string // if set, read this sheet instead of the first one
}

// Reader implements ports.SheetReader. Workbooks are read with excelize;
// anything that is not a zip container is parsed as UTF-8 CSV.
type Reader struct {
	opts Options
}

func NewReader(opts Options) *Reader {
	return &Reader{opts: opts}
}

// ReadRows returns every row of the selected sheet. Row i of the result is
// sheet row i+1; blank rows inside the used range are kept as empty slices.
func (r *Reader) ReadRows(ctx context.Context, body io.Reader) ([][]string, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, eris.Wrap(err, "sheet: read body")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "sheet: context cancelled")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, eris.New("sheet: empty file")
	}

	if bytes.HasPrefix(raw, zipMagic) {
		return r.readWorkbook(raw)
	}
	return readCSV(ctx, raw)
}

func (r *Reader) readWorkbook(raw []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open workbook")
	}
	defer func() {
		_ = f.Close()
	}()

	sheet, err := r.sheetName(f)
	if err != nil {
		return nil, err
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: read sheet %q", sheet)
	}
	for _, row := range rows {
		for i, cell := range row {
			row[i] = strings.TrimSpace(cell)
		}
	}
	return rows, nil
}

func (r *Reader) sheetName(f *excelize.File) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", eris.New("xlsx: workbook has no sheets")
	}
	if r.opts.SheetName == "" {
		return sheets[0], nil
	}
	for _, name := range sheets {
		if strings.EqualFold(name, r.opts.SheetName) {
			return name, nil
		}
	}
	return "", eris.Errorf("xlsx: sheet %q not found", r.opts.SheetName)
}

func readCSV(ctx context.Context, raw []byte) ([][]string, error) {
	if !utf8.Valid(raw) {
		return nil, eris.New("sheet: unsupported binary format")
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "csv: context cancelled")
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		for i, field := range record {
			record[i] = strings.TrimSpace(field)
		}
		rows = append(rows, record)
	}
	return rows, nil
}
