package normalize

import (
	"fmt"
	"strings"
)

// Role names the dataset a sheet, or a section of one, feeds.
type Role string

const (
	RoleMarketSections  Role = "market_sections"
	RoleMarketUnits     Role = "market_units"
	RoleSkuUnits        Role = "sku_units"
	RoleSkuDollars      Role = "sku_dollars"
	RoleMarketInventory Role = "market_inventory"
	RoleSkuInventory    Role = "sku_inventory"

	// Section roles inside the multi-section sheet.
	RoleMarketDollars Role = "market_dollars"
	RoleMarketPrice   Role = "market_price"
)

func (r Role) skuKeyed() bool {
	return r == RoleSkuUnits || r == RoleSkuDollars || r == RoleSkuInventory
}

func (r Role) sales() bool {
	switch r {
	case RoleMarketUnits, RoleSkuUnits, RoleSkuDollars, RoleMarketDollars, RoleMarketPrice:
		return true
	}
	return false
}

func (r Role) inventory() bool {
	return r == RoleMarketInventory || r == RoleSkuInventory
}

// Columns names the columns the normalizer reads. Alias lists are matched
// case-insensitively; the first alias present in a row wins.
type Columns struct {
	Market           string   `yaml:"market"`
	SKU              string   `yaml:"sku"`
	Total            string   `yaml:"total"`
	Inventory        []string `yaml:"inventory"`
	MonthsOnHand     []string `yaml:"months_on_hand"`
	TotalRowSentinel string   `yaml:"total_row_sentinel"`
}

// Section is one logical table stacked inside the multi-section sheet.
// Offsets index the decoded rows (0 is the first row after the sheet's own
// header). HeaderRow holds the real column names keyed by placeholder name.
// Data rows are [StartRow, EndRow); EndRow -1 runs to the end of the sheet.
type Section struct {
	Name      string `yaml:"name"`
	Role      Role   `yaml:"role"`
	HeaderRow int    `yaml:"header_row"`
	StartRow  int    `yaml:"start_row"`
	EndRow    int    `yaml:"end_row"`
}

// Layout is the workbook contract: which sheet sits where, how columns are
// named, and where the stacked sections begin and end. Section offsets are
// never inferred; a workbook with different row geometry needs a new layout.
type Layout struct {
	Sheets   []Role    `yaml:"sheets"`
	Columns  Columns   `yaml:"columns"`
	Sections []Section `yaml:"sections"`
}

// DefaultLayout describes the six-sheet sales output workbook.
func DefaultLayout() Layout {
	return Layout{
		Sheets: []Role{
			RoleMarketSections,
			RoleMarketUnits,
			RoleSkuUnits,
			RoleSkuDollars,
			RoleMarketInventory,
			RoleSkuInventory,
		},
		Columns: Columns{
			Market: "Market",
			SKU:    "SKU",
			Total:  "Total",
			Inventory: []string{
				"Inventory",
				"Current Inventory",
			},
			MonthsOnHand: []string{
				"Months of Inventory on Hand",
				"Months of Inventory",
				"Months on Hand",
				"Inventory On Hand",
			},
			TotalRowSentinel: "total",
		},
		Sections: []Section{
			{Name: "Sales by Market ($)", Role: RoleMarketDollars, HeaderRow: 0, StartRow: 1, EndRow: 20},
			{Name: "Average Price by Market", Role: RoleMarketPrice, HeaderRow: 21, StartRow: 22, EndRow: -1},
		},
	}
}

// Validate checks the layout is internally consistent.
func (l Layout) Validate() error {
	if len(l.Sheets) == 0 {
		return fmt.Errorf("%w: no sheets", ErrInvalidLayout)
	}
	if strings.TrimSpace(l.Columns.Market) == "" {
		return fmt.Errorf("%w: market column name is empty", ErrInvalidLayout)
	}

	seen := make(map[Role]bool, len(l.Sheets))
	for _, r := range l.Sheets {
		switch r {
		case RoleMarketSections, RoleMarketUnits, RoleSkuUnits, RoleSkuDollars, RoleMarketInventory, RoleSkuInventory:
		default:
			return fmt.Errorf("%w: unknown sheet role %q", ErrInvalidLayout, r)
		}
		if seen[r] {
			return fmt.Errorf("%w: sheet role %q listed twice", ErrInvalidLayout, r)
		}
		seen[r] = true
		if r.skuKeyed() && strings.TrimSpace(l.Columns.SKU) == "" {
			return fmt.Errorf("%w: sku column name is empty", ErrInvalidLayout)
		}
	}

	if !seen[RoleMarketSections] {
		return nil
	}
	if len(l.Sections) == 0 {
		return fmt.Errorf("%w: multi-section sheet has no sections", ErrInvalidLayout)
	}
	for _, s := range l.Sections {
		if s.Role != RoleMarketDollars && s.Role != RoleMarketPrice {
			return fmt.Errorf("%w: section %q has unknown role %q", ErrInvalidLayout, s.Name, s.Role)
		}
		if s.HeaderRow < 0 || s.StartRow <= s.HeaderRow {
			return fmt.Errorf("%w: section %q must start after its header row", ErrInvalidLayout, s.Name)
		}
		if s.EndRow != -1 && s.EndRow < s.StartRow {
			return fmt.Errorf("%w: section %q ends before it starts", ErrInvalidLayout, s.Name)
		}
	}
	return nil
}

func (c Columns) isMarket(header string) bool {
	return strings.EqualFold(strings.TrimSpace(header), c.Market)
}

func (c Columns) isSKU(header string) bool {
	return c.SKU != "" && strings.EqualFold(strings.TrimSpace(header), c.SKU)
}

func (c Columns) isTotal(header string) bool {
	return c.Total != "" && strings.EqualFold(strings.TrimSpace(header), c.Total)
}

func matchesAny(header string, aliases []string) bool {
	h := strings.TrimSpace(header)
	for _, a := range aliases {
		if strings.EqualFold(h, a) {
			return true
		}
	}
	return false
}
