package templates

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"inventory-dashboard/internal/models"
	"inventory-dashboard/internal/services"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.6/bundles/datastar.js"

type panel struct {
	ID    string
	Title string
	Route string
}

var panels = []panel{
	{ID: "skus-content", Title: "SKU Units", Route: "/sse/skus"},
	{ID: "performance-content", Title: "Performance Categories", Route: "/sse/performance"},
	{ID: "health-content", Title: "Inventory Health", Route: "/sse/health"},
	{ID: "opportunities-content", Title: "Opportunities", Route: "/sse/opportunities"},
	{ID: "concentration-content", Title: "Revenue Concentration", Route: "/sse/concentration"},
}

// pageSignals seeds the client store. Chart series start empty and are
// filled by the overview stream.
type pageSignals struct {
	Filters            models.Filters `json:"filters"`
	MarketUnits        any            `json:"marketUnits"`
	MarketDollars      any            `json:"marketDollars"`
	TrendData          any            `json:"trendData"`
	CategoryData       any            `json:"categoryData"`
	SkuDistribution    any            `json:"skuDistribution"`
	ConcentrationCurve any            `json:"concentrationCurve"`
}

// Dashboard renders the single-page dashboard shell. Every panel is patched
// in by the SSE endpoints once the page loads.
func Dashboard(opts services.Options) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		signals, err := templ.JSONString(pageSignals{Filters: models.DefaultFilters()})
		if err != nil {
			return err
		}

		ew := &errWriter{w: w}
		ew.printf(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		ew.printf(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		ew.printf(`<title>Inventory Dashboard</title>`)
		ew.printf(`<script type="module" src="%s"></script>`, datastarScript)
		ew.printf(`</head><body data-signals="%s" data-on-load="@get('/sse/refresh-all'); @get('/sse/overview'); @get('/sse/skus')">`,
			templ.EscapeString(signals))

		ew.printf(`<header class="dashboard-header"><h1>Inventory Dashboard</h1>`)
		ew.printf(`<p class="subtitle">Market and SKU sales, inventory health and opportunities</p></header>`)
		ew.printf(`<div id="dashboard-error"></div>`)

		ew.printf(`<form class="filters" data-on-change="@get('/sse/refresh-all'); @get('/sse/overview'); @get('/sse/skus')">`)
		selectBox(ew, "Market", "filters.market", append([]string{models.AllSelector}, opts.Markets...))
		selectBox(ew, "SKU", "filters.sku", append([]string{models.AllSelector}, opts.SKUs...))

		windows := make([]string, len(opts.Windows))
		for i, n := range opts.Windows {
			windows[i] = strconv.Itoa(n)
		}
		selectBox(ew, "Recent window", "filters.window", windows)
		ew.printf(`<label>Min inventory <input type="number" min="0" data-bind="filters.min_inventory"></label>`)
		ew.printf(`</form>`)

		ew.printf(`<form class="upload" method="post" action="/api/workbook" enctype="multipart/form-data">`)
		ew.printf(`<input type="file" name="workbook" accept=".xlsx"><button type="submit">Upload workbook</button></form>`)

		ew.printf(`<main class="dashboard-grid">`)
		ew.printf(`<section class="card"><h2>Market Units</h2><pre class="chart" data-text="JSON.stringify($marketUnits)"></pre></section>`)
		ew.printf(`<section class="card"><h2>Monthly Trend</h2><pre class="chart" data-text="JSON.stringify($trendData)"></pre></section>`)
		for _, p := range panels {
			ew.printf(`<section class="card"><h2>%s <button type="button" data-on-click="@get('%s')">Refresh</button></h2><div id="%s">Loading…</div></section>`,
				templ.EscapeString(p.Title), p.Route, p.ID)
		}
		ew.printf(`</main></body></html>`)

		return ew.err
	})
}

func selectBox(ew *errWriter, label, signal string, values []string) {
	ew.printf(`<label>%s <select data-bind="%s">`, templ.EscapeString(label), signal)
	for _, v := range values {
		ew.printf(`<option value="%[1]s">%[1]s</option>`, templ.EscapeString(v))
	}
	ew.printf(`</select></label>`)
}

// errWriter keeps the first write error so rendering reads top to bottom.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
