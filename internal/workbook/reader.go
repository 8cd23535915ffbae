// Package workbook decodes spreadsheet files into header-keyed rows, the
// same shape a generic sheet-to-JSON conversion produces.
package workbook

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// RawRow maps a column header to a cell value. Values are float64 for cells
// stored as numbers and string for everything else, so text such as "00123"
// keeps its exact form. Empty cells are absent.
type RawRow map[string]any

type RawSheet struct {
	Name string
	Rows []RawRow
}

// Workbook is an ordered list of decoded sheets.
type Workbook struct {
	Sheets []RawSheet
}

// SheetNames returns the sheet names in workbook order.
func (w *Workbook) SheetNames() []string {
	names := make([]string, len(w.Sheets))
	for i, s := range w.Sheets {
		names[i] = s.Name
	}
	return names
}

// Open decodes the workbook at path.
func Open(ctx context.Context, path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	return decode(ctx, f)
}

// Read decodes a workbook from r.
func Read(ctx context.Context, r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	defer f.Close()

	return decode(ctx, f)
}

func decode(ctx context.Context, f *excelize.File) (*Workbook, error) {
	wb := &Workbook{}
	for _, name := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		numberCell := func(col, row int) bool {
			ref, err := excelize.CoordinatesToCellName(col+1, row+1)
			if err != nil {
				return false
			}
			typ, err := f.GetCellType(name, ref)
			return err == nil && (typ == excelize.CellTypeNumber || typ == excelize.CellTypeUnset)
		}
		wb.Sheets = append(wb.Sheets, RawSheet{Name: name, Rows: toRawRows(rows, numberCell)})
	}
	return wb, nil
}

// toRawRows keys every data row by the first row's headers. Blank headers
// get the placeholder names __EMPTY, __EMPTY_1, ... so multi-section sheets
// can re-key them later. Fully empty rows are dropped. numberCell reports
// whether the cell at zero-based (col, row) is stored as a number.
func toRawRows(rows [][]string, numberCell func(col, row int) bool) []RawRow {
	if len(rows) == 0 {
		return nil
	}

	headers := headerNames(rows[0])
	out := make([]RawRow, 0, len(rows)-1)
	for i, row := range rows[1:] {
		raw := make(RawRow, len(row))
		for j, cell := range row {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			var key string
			if j < len(headers) {
				key = headers[j]
			} else {
				key = placeholder(j)
			}
			raw[key] = cellValue(cell, numberCell(j, i+1))
		}
		if len(raw) > 0 {
			out = append(out, raw)
		}
	}
	return out
}

func headerNames(header []string) []string {
	names := make([]string, len(header))
	seen := make(map[string]int, len(header))
	empties := 0
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			names[i] = emptyName(empties)
			empties++
			continue
		}
		if n := seen[h]; n > 0 {
			names[i] = fmt.Sprintf("%s_%d", h, n)
		} else {
			names[i] = h
		}
		seen[h]++
	}
	return names
}

// placeholder names a data cell that sits past the last header cell.
func placeholder(col int) string {
	return fmt.Sprintf("__EMPTY_COL_%d", col)
}

func emptyName(n int) string {
	if n == 0 {
		return "__EMPTY"
	}
	return fmt.Sprintf("__EMPTY_%d", n)
}

// cellValue keeps text cells as strings. Only cells stored as numbers are
// converted, which leaves identity columns untouched.
func cellValue(cell string, number bool) any {
	if !number {
		return cell
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f
	}
	return cell
}
