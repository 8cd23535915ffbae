package models

import (
	"errors"
	"time"
)

var ErrUnknownPeriod = errors.New("unknown period")

// MarketRecord is one market row from a market-keyed sheet.
type MarketRecord struct {
	Market          string  `json:"market"`
	Values          Series  `json:"-"`
	SheetTotal      float64 `json:"sheet_total"`
	HasSheetTotal   bool    `json:"-"`
	Inventory       float64 `json:"inventory"`
	HasInventory    bool    `json:"-"`
	MonthsOnHand    float64 `json:"months_on_hand"`
	HasMonthsOnHand bool    `json:"-"`
}

// Total recomputes the record's value over exactly the given periods. The
// sheet's own Total column is never consulted.
func (r MarketRecord) Total(periods []Period) float64 {
	return r.Values.Sum(periods)
}

// SkuRecord is one (market, SKU) row. SKUs are unique within a market only.
type SkuRecord struct {
	Market               string  `json:"market"`
	SKU                  string  `json:"sku"`
	Values               Series  `json:"-"`
	SheetTotal           float64 `json:"sheet_total"`
	HasSheetTotal        bool    `json:"-"`
	Inventory            float64 `json:"inventory"`
	HasInventory         bool    `json:"-"`
	MonthsOfInventory    float64 `json:"months_of_inventory"`
	HasMonthsOfInventory bool    `json:"-"`
}

func (r SkuRecord) Total(periods []Period) float64 {
	return r.Values.Sum(periods)
}

// Key identifies the record within a SKU collection.
func (r SkuRecord) Key() SkuKey {
	return SkuKey{Market: r.Market, SKU: r.SKU}
}

type SkuKey struct {
	Market string
	SKU    string
}

// Dataset is one normalized workbook. It is immutable once built; every
// derived view is recomputed from it per query.
type Dataset struct {
	ID       string    `json:"id"`
	Source   string    `json:"source"`
	LoadedAt time.Time `json:"loaded_at"`
	Calendar Calendar  `json:"calendar"`

	MarketUnits     []MarketRecord `json:"-"`
	MarketDollars   []MarketRecord `json:"-"`
	MarketPrice     []MarketRecord `json:"-"`
	MarketInventory []MarketRecord `json:"-"`
	SkuUnits        []SkuRecord    `json:"-"`
	SkuDollars      []SkuRecord    `json:"-"`
	SkuInventory    []SkuRecord    `json:"-"`
}

// RecordCount is the number of normalized rows across all collections.
func (d *Dataset) RecordCount() int {
	if d == nil {
		return 0
	}
	return len(d.MarketUnits) + len(d.MarketDollars) + len(d.MarketPrice) +
		len(d.MarketInventory) + len(d.SkuUnits) + len(d.SkuDollars) + len(d.SkuInventory)
}

// Empty reports whether no workbook has been loaded.
func (d *Dataset) Empty() bool {
	return d.RecordCount() == 0
}
