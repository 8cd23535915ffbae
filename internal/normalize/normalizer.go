// Package normalize turns decoded workbook sheets into typed, de-duplicated
// record collections.
package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"inventory-dashboard/internal/models"
	"inventory-dashboard/internal/workbook"
)

// SheetStats summarises one sheet's normalization.
type SheetStats struct {
	Sheet      string `json:"sheet"`
	Role       Role   `json:"role"`
	Rows       int    `json:"rows"`
	Kept       int    `json:"kept"`
	Skipped    int    `json:"skipped"`
	Duplicates int    `json:"duplicates"`
	Periods    int    `json:"periods"`
}

type Normalizer struct {
	layout Layout
}

func New(layout Layout) (*Normalizer, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	return &Normalizer{layout: layout}, nil
}

// Normalize maps every sheet of wb onto its layout role. The sheet count
// must match the layout exactly.
func (n *Normalizer) Normalize(wb *workbook.Workbook) (*models.Dataset, []SheetStats, error) {
	if len(wb.Sheets) != len(n.layout.Sheets) {
		return nil, nil, fmt.Errorf("%w: workbook has %d sheets, layout expects %d",
			ErrSheetCount, len(wb.Sheets), len(n.layout.Sheets))
	}

	ds := &models.Dataset{}
	var cal models.Calendar
	stats := make([]SheetStats, 0, len(wb.Sheets)+len(n.layout.Sections))

	for i, role := range n.layout.Sheets {
		sheet := wb.Sheets[i]
		cols := n.layout.Columns

		switch role {
		case RoleMarketSections:
			sections, sectionStats, err := SectionSheet(sheet, n.layout.Sections, cols)
			if err != nil {
				return nil, nil, err
			}
			ds.MarketDollars = sections[RoleMarketDollars]
			ds.MarketPrice = sections[RoleMarketPrice]
			cal = cal.Merge(marketCalendar(ds.MarketDollars)).Merge(marketCalendar(ds.MarketPrice))
			stats = append(stats, sectionStats...)

		case RoleMarketUnits, RoleMarketInventory:
			recs, st, err := MarketSheet(sheet, role, cols)
			if err != nil {
				return nil, nil, err
			}
			if role == RoleMarketUnits {
				ds.MarketUnits = recs
			} else {
				ds.MarketInventory = recs
			}
			cal = cal.Merge(marketCalendar(recs))
			stats = append(stats, st)

		case RoleSkuUnits, RoleSkuDollars, RoleSkuInventory:
			recs, st, err := SkuSheet(sheet, role, cols)
			if err != nil {
				return nil, nil, err
			}
			switch role {
			case RoleSkuUnits:
				ds.SkuUnits = recs
			case RoleSkuDollars:
				ds.SkuDollars = recs
			default:
				ds.SkuInventory = recs
			}
			cal = cal.Merge(skuCalendar(recs))
			stats = append(stats, st)
		}
	}

	ds.Calendar = cal
	return ds, stats, nil
}

// MarketSheet normalizes a market-keyed sheet. Rows with a blank market are
// dropped. A repeated market replaces the earlier row's values but keeps
// its position (last wins).
func MarketSheet(sheet workbook.RawSheet, role Role, cols Columns) ([]models.MarketRecord, SheetStats, error) {
	return marketRows(sheet.Name, role, sheet.Rows, 0, cols)
}

func marketRows(sheet string, role Role, rows []workbook.RawRow, offset int, cols Columns) ([]models.MarketRecord, SheetStats, error) {
	stats := SheetStats{Sheet: sheet, Role: role, Rows: len(rows)}
	if err := requireColumns(sheet, role, rows, cols); err != nil {
		return nil, stats, err
	}

	out := make([]models.MarketRecord, 0, len(rows))
	index := make(map[string]int, len(rows))
	periods := make(map[models.Period]struct{})

	for i, row := range rows {
		rowNum := offset + i + 2
		market := keyText(row, cols.Market)
		if market == "" {
			stats.Skipped++
			continue
		}

		f, err := readFields(sheet, rowNum, row, cols)
		if err != nil {
			return nil, stats, err
		}
		for p := range f.values {
			periods[p] = struct{}{}
		}

		rec := models.MarketRecord{
			Market:          market,
			Values:          f.values,
			SheetTotal:      f.total,
			HasSheetTotal:   f.hasTotal,
			Inventory:       f.inventory,
			HasInventory:    f.hasInventory,
			MonthsOnHand:    f.monthsOnHand,
			HasMonthsOnHand: f.hasMonthsOnHand,
		}
		if pos, dup := index[market]; dup {
			out[pos] = rec
			stats.Duplicates++
			continue
		}
		index[market] = len(out)
		out = append(out, rec)
	}

	stats.Kept = len(out)
	stats.Periods = len(periods)
	return out, stats, nil
}

// SkuSheet normalizes a (market, SKU) keyed sheet. Rows whose SKU is blank or
// contains the total-row sentinel are subtotal rows and are dropped, as are
// rows with a blank market.
func SkuSheet(sheet workbook.RawSheet, role Role, cols Columns) ([]models.SkuRecord, SheetStats, error) {
	stats := SheetStats{Sheet: sheet.Name, Role: role, Rows: len(sheet.Rows)}
	if err := requireColumns(sheet.Name, role, sheet.Rows, cols); err != nil {
		return nil, stats, err
	}

	sentinel := strings.ToLower(cols.TotalRowSentinel)
	out := make([]models.SkuRecord, 0, len(sheet.Rows))
	index := make(map[models.SkuKey]int, len(sheet.Rows))
	periods := make(map[models.Period]struct{})

	for i, row := range sheet.Rows {
		rowNum := i + 2
		market := keyText(row, cols.Market)
		sku := keyText(row, cols.SKU)
		if market == "" || sku == "" || (sentinel != "" && strings.Contains(strings.ToLower(sku), sentinel)) {
			stats.Skipped++
			continue
		}

		f, err := readFields(sheet.Name, rowNum, row, cols)
		if err != nil {
			return nil, stats, err
		}
		for p := range f.values {
			periods[p] = struct{}{}
		}

		rec := models.SkuRecord{
			Market:               market,
			SKU:                  sku,
			Values:               f.values,
			SheetTotal:           f.total,
			HasSheetTotal:        f.hasTotal,
			Inventory:            f.inventory,
			HasInventory:         f.hasInventory,
			MonthsOfInventory:    f.monthsOnHand,
			HasMonthsOfInventory: f.hasMonthsOnHand,
		}
		key := rec.Key()
		if pos, dup := index[key]; dup {
			out[pos] = rec
			stats.Duplicates++
			continue
		}
		index[key] = len(out)
		out = append(out, rec)
	}

	stats.Kept = len(out)
	stats.Periods = len(periods)
	return out, stats, nil
}

// SectionSheet slices the multi-section sheet by the configured offsets,
// re-keys every data row through its section's header row and then applies
// the market rules.
func SectionSheet(sheet workbook.RawSheet, sections []Section, cols Columns) (map[Role][]models.MarketRecord, []SheetStats, error) {
	out := make(map[Role][]models.MarketRecord, len(sections))
	stats := make([]SheetStats, 0, len(sections))

	for _, sec := range sections {
		end := sec.EndRow
		if end == -1 {
			end = len(sheet.Rows)
		}
		if sec.HeaderRow >= len(sheet.Rows) || sec.StartRow > len(sheet.Rows) || end > len(sheet.Rows) {
			return nil, nil, &SheetError{
				Sheet: sheet.Name,
				Row:   sec.HeaderRow + 2,
				Err: fmt.Errorf("%w: section %q spans rows %d-%d of %d",
					ErrSectionBounds, sec.Name, sec.HeaderRow, end, len(sheet.Rows)),
			}
		}

		mapping := headerMapping(sheet.Rows[sec.HeaderRow])
		rows := make([]workbook.RawRow, 0, end-sec.StartRow)
		for _, row := range sheet.Rows[sec.StartRow:end] {
			rows = append(rows, rekey(row, mapping))
		}

		recs, st, err := marketRows(sheet.Name+" / "+sec.Name, sec.Role, rows, sec.StartRow, cols)
		if err != nil {
			return nil, nil, err
		}
		out[sec.Role] = recs
		stats = append(stats, st)
	}
	return out, stats, nil
}

// headerMapping reads a secondary header row: each cell's value is the real
// column name for the placeholder it sits under.
func headerMapping(row workbook.RawRow) map[string]string {
	m := make(map[string]string, len(row))
	for placeholder, v := range row {
		if name := text(v); name != "" {
			m[placeholder] = name
		}
	}
	return m
}

// rekey renames a row's columns. Columns the header row does not name are
// dropped.
func rekey(row workbook.RawRow, mapping map[string]string) workbook.RawRow {
	out := make(workbook.RawRow, len(row))
	for k, v := range row {
		if name, ok := mapping[k]; ok {
			out[name] = v
		}
	}
	return out
}

func requireColumns(sheet string, role Role, rows []workbook.RawRow, cols Columns) error {
	if len(rows) == 0 {
		return nil
	}

	var hasMarket, hasSKU, hasPeriod, hasInventory bool
	for _, row := range rows {
		for k := range row {
			switch {
			case cols.isMarket(k):
				hasMarket = true
			case cols.isSKU(k):
				hasSKU = true
			case matchesAny(k, cols.Inventory):
				hasInventory = true
			default:
				if _, ok := models.ParsePeriod(k); ok {
					hasPeriod = true
				}
			}
		}
	}

	missing := func(col string) error {
		return &SheetError{Sheet: sheet, Column: col, Err: ErrMissingColumn}
	}
	if !hasMarket {
		return missing(cols.Market)
	}
	if role.skuKeyed() && !hasSKU {
		return missing(cols.SKU)
	}
	if role.sales() && !hasPeriod {
		return missing("<period>")
	}
	if role.inventory() && !hasInventory && len(cols.Inventory) > 0 {
		return missing(cols.Inventory[0])
	}
	return nil
}

type fields struct {
	values          models.Series
	total           float64
	hasTotal        bool
	inventory       float64
	hasInventory    bool
	monthsOnHand    float64
	hasMonthsOnHand bool
}

// readFields extracts the typed fields of one row. Unknown columns are
// ignored; a non-numeric value in a numeric column fails the row.
func readFields(sheet string, rowNum int, row workbook.RawRow, cols Columns) (fields, error) {
	f := fields{values: make(models.Series)}

	number := func(col string, v any) (float64, error) {
		x, err := numeric(v)
		if err != nil {
			return 0, &SheetError{Sheet: sheet, Row: rowNum, Column: col, Err: err}
		}
		return x, nil
	}

	for k, v := range row {
		if cols.isMarket(k) || cols.isSKU(k) {
			continue
		}
		if p, ok := models.ParsePeriod(k); ok {
			if _, dup := f.values[p]; dup {
				return f, &SheetError{Sheet: sheet, Row: rowNum, Column: k, Err: fmt.Errorf("%w: %s", ErrDuplicatePeriod, p)}
			}
			x, err := number(k, v)
			if err != nil {
				return f, err
			}
			f.values[p] = x
			continue
		}
		if cols.isTotal(k) {
			x, err := number(k, v)
			if err != nil {
				return f, err
			}
			f.total, f.hasTotal = x, true
		}
	}

	if k, v, ok := lookup(row, cols.Inventory); ok {
		x, err := number(k, v)
		if err != nil {
			return f, err
		}
		f.inventory, f.hasInventory = x, true
	}
	if k, v, ok := lookup(row, cols.MonthsOnHand); ok {
		x, err := number(k, v)
		if err != nil {
			return f, err
		}
		f.monthsOnHand, f.hasMonthsOnHand = x, true
	}
	return f, nil
}

// keyText reads an identity column. An exact header match wins over a
// case-insensitive one.
func keyText(row workbook.RawRow, col string) string {
	if v, ok := row[col]; ok {
		return text(v)
	}
	for k, v := range row {
		if strings.EqualFold(strings.TrimSpace(k), col) {
			return text(v)
		}
	}
	return ""
}

// lookup returns the first alias present in the row.
func lookup(row workbook.RawRow, aliases []string) (string, any, bool) {
	for _, a := range aliases {
		for k, v := range row {
			if strings.EqualFold(strings.TrimSpace(k), a) {
				return k, v, true
			}
		}
	}
	return "", nil, false
}

func numeric(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, ErrNotNumeric
		}
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(x), ",", "")
		if s == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("%w: %q", ErrNotNumeric, x)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrNotNumeric, v)
	}
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

func marketCalendar(recs []models.MarketRecord) models.Calendar {
	var periods []models.Period
	for _, r := range recs {
		for p := range r.Values {
			periods = append(periods, p)
		}
	}
	return models.NewCalendar(periods...)
}

func skuCalendar(recs []models.SkuRecord) models.Calendar {
	var periods []models.Period
	for _, r := range recs {
		for p := range r.Values {
			periods = append(periods, p)
		}
	}
	return models.NewCalendar(periods...)
}
