package handlers

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"inventory-dashboard/internal/errors"
	"inventory-dashboard/internal/models"
	"inventory-dashboard/internal/services"
)

const maxTableRows = 50

var printer = message.NewPrinter(language.English)

var funcs = template.FuncMap{
	"money": func(v float64) string { return printer.Sprintf("%.2f", v) },
	"num":   func(v float64) string { return printer.Sprintf("%.0f", v) },
	"pct":   func(v float64) string { return printer.Sprintf("%.0f", v*100) },
	"slug":  func(s string) string { return strings.ToLower(strings.ReplaceAll(s, " ", "-")) },
}

var performanceTableTemplate = template.Must(template.New("performance").Funcs(funcs).Parse(`
<div id="performance-content">
<table class="modern-table">
<thead><tr><th>Market</th><th>SKU</th><th>Category</th><th>Revenue</th><th>Monthly Rate</th><th>Consistency</th><th>Trend</th></tr></thead>
<tbody>
{{range $i, $row := .Data}}{{if lt $i $.MaxRows}}<tr>
<td>{{.Market}}</td>
<td>{{.SKU}}</td>
<td><span class="category-badge {{slug (print .Category)}}" title="{{.Rationale}}">{{.Category}}</span></td>
<td><strong>${{money .Metrics.TotalRevenue}}</strong></td>
<td>${{money .Metrics.RevenueRate}}</td>
<td>{{pct .Metrics.SalesConsistency}}%</td>
<td>{{.Metrics.Trend}}</td>
</tr>{{end}}{{end}}
</tbody>
</table>
</div>`))

var healthTableTemplate = template.Must(template.New("health").Funcs(funcs).Parse(`
<div id="health-content">
<table class="modern-table">
<thead><tr><th>Market</th><th>SKU</th><th>Status</th><th>Inventory</th><th>Months on Hand</th><th>Turnover</th></tr></thead>
<tbody>
{{range $i, $row := .Data}}{{if lt $i $.MaxRows}}<tr>
<td>{{.Market}}</td>
<td>{{.SKU}}</td>
<td><span class="status-badge {{slug (print .Status)}}" title="{{.Rationale}}">{{.Status}}</span></td>
<td>{{num .Metrics.Inventory}}</td>
<td>{{printf "%.1f" .Metrics.MonthsOnHand}}</td>
<td>{{printf "%.1f" .Metrics.TurnoverRate}}x</td>
</tr>{{end}}{{end}}
</tbody>
</table>
</div>`))

var opportunityTableTemplate = template.Must(template.New("opportunities").Funcs(funcs).Parse(`
<div id="opportunities-content">
<table class="modern-table">
<thead><tr><th>Market</th><th>SKU</th><th>Opportunity</th><th>Impact</th><th>Value</th><th>Why</th></tr></thead>
<tbody>
{{range $i, $row := .Data}}{{if lt $i $.MaxRows}}<tr>
<td>{{.Market}}</td>
<td>{{.SKU}}</td>
<td>{{.Type}}</td>
<td><span class="impact-badge {{slug (print .Impact)}}">{{.Impact}}</span></td>
<td><strong>${{money .Value}}</strong></td>
<td>{{.Rationale}}</td>
</tr>{{end}}{{end}}
</tbody>
</table>
</div>`))

var skuTableTemplate = template.Must(template.New("skus").Funcs(funcs).Parse(`
<div id="skus-content">
<table class="modern-table">
<thead><tr><th>Market</th><th>SKU</th><th>Units</th><th>Inventory</th><th>% of Market</th><th>% of Total</th></tr></thead>
<tbody>
{{range .Data}}<tr>
<td>{{.Market}}</td>
<td>{{.SKU}}</td>
<td><strong>{{num .Total}}</strong></td>
<td>{{num .Inventory}}</td>
<td>{{printf "%.1f" .PercentOfMarket}}%</td>
<td>{{printf "%.1f" .PercentOfTotal}}%</td>
</tr>{{end}}
</tbody>
</table>
</div>`))

var concentrationTemplate = template.Must(template.New("concentration").Funcs(funcs).Parse(`
<div id="concentration-content">
<p class="concentration-summary"><strong>{{.EntitiesNeeded}}</strong> of {{.ActiveEntities}} SKUs
({{printf "%.1f" .Percentage}}%) generate 80% of ${{money .TotalRevenue}} revenue</p>
</div>`))

var errorTemplate = template.Must(template.New("error").Parse(`<div id="dashboard-error" class="error-banner">{{.}}</div>`))

type SSEHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewSSEHandlers(analytics *services.Analytics, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		logger:    logger.With("component", "sse"),
	}
}

type templateData struct {
	Data    any
	MaxRows int
}

// filterSignals is the client signal store; the page keeps every selector
// under "filters".
type filterSignals struct {
	Filters models.Filters `json:"filters"`
}

func (h *SSEHandlers) readFilters(r *http.Request) (models.Filters, error) {
	var signals filterSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		return models.Filters{}, errors.BadRequestWrap(err, "invalid datastar signals")
	}
	return signals.Filters.WithDefaults(), nil
}

func render(t *template.Template, data any) (string, error) {
	var buf strings.Builder
	err := t.Execute(&buf, data)
	return buf.String(), err
}

func limited[T any](rows []T) []T {
	if len(rows) > maxTableRows {
		return rows[:maxTableRows]
	}
	return rows
}

// stream runs fn against the current filters and reports failures to the
// page's error banner instead of an HTTP error, since the SSE stream has
// already started.
func (h *SSEHandlers) stream(w http.ResponseWriter, r *http.Request, fn func(*datastar.ServerSentEventGenerator, models.Filters) error) {
	f, ferr := h.readFilters(r)
	sse := datastar.NewSSE(w, r)

	err := ferr
	if err == nil {
		err = fn(sse, f)
	}
	if err == nil {
		err = sse.PatchElements(`<div id="dashboard-error"></div>`)
	}
	if err != nil {
		h.fail(sse, err)
	}

	if fl, ok := w.(http.Flusher); ok {
		fl.Flush()
	}
}

func (h *SSEHandlers) fail(sse *datastar.ServerSentEventGenerator, err error) {
	appErr := errors.FromError(err)
	h.logger.Warn("sse request failed", "error", err, "code", appErr.Code)

	msg := appErr.Message
	if appErr.Details != "" {
		msg += ": " + appErr.Details
	}
	html, rerr := render(errorTemplate, msg)
	if rerr != nil {
		h.logger.Error("render error banner", "error", rerr)
		return
	}
	if perr := sse.PatchElements(html); perr != nil {
		h.logger.Debug("client went away", "error", perr)
	}
}

func patchSignals(sse *datastar.ServerSentEventGenerator, signals map[string]any) error {
	b, err := json.Marshal(signals)
	if err != nil {
		return err
	}
	return sse.PatchSignals(b)
}

// HandleOverview pushes the chart series for the market tabs.
func (h *SSEHandlers) HandleOverview(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, func(sse *datastar.ServerSentEventGenerator, f models.Filters) error {
		units, err := h.analytics.MarketUnits(f)
		if err != nil {
			return err
		}
		dollars, err := h.analytics.MarketDollars(f)
		if err != nil {
			return err
		}
		trend, err := h.analytics.MonthlyTrend(f)
		if err != nil {
			return err
		}
		counts, err := h.analytics.CategoryCounts(f)
		if err != nil {
			return err
		}

		return patchSignals(sse, map[string]any{
			"marketUnits":   units,
			"marketDollars": dollars,
			"trendData":     trend,
			"categoryData":  counts,
		})
	})
}

func (h *SSEHandlers) HandleSkus(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, func(sse *datastar.ServerSentEventGenerator, f models.Filters) error {
		units, err := h.analytics.SkuUnits(f)
		if err != nil {
			return err
		}
		if err := patchSignals(sse, map[string]any{"skuDistribution": units.Distribution}); err != nil {
			return err
		}

		html, err := render(skuTableTemplate, templateData{Data: units.Top})
		if err != nil {
			return err
		}
		return sse.PatchElements(html)
	})
}

func (h *SSEHandlers) HandlePerformance(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, func(sse *datastar.ServerSentEventGenerator, f models.Filters) error {
		rows, err := h.analytics.Performance(f)
		if err != nil {
			return err
		}
		html, err := render(performanceTableTemplate, templateData{Data: limited(rows), MaxRows: maxTableRows})
		if err != nil {
			return err
		}
		return sse.PatchElements(html)
	})
}

func (h *SSEHandlers) HandleInventoryHealth(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, func(sse *datastar.ServerSentEventGenerator, f models.Filters) error {
		rows, err := h.analytics.InventoryHealth(f)
		if err != nil {
			return err
		}
		html, err := render(healthTableTemplate, templateData{Data: limited(rows), MaxRows: maxTableRows})
		if err != nil {
			return err
		}
		return sse.PatchElements(html)
	})
}

func (h *SSEHandlers) HandleOpportunities(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, func(sse *datastar.ServerSentEventGenerator, f models.Filters) error {
		opps, err := h.analytics.Opportunities(f)
		if err != nil {
			return err
		}
		html, err := render(opportunityTableTemplate, templateData{Data: limited(opps), MaxRows: maxTableRows})
		if err != nil {
			return err
		}
		return sse.PatchElements(html)
	})
}

func (h *SSEHandlers) HandleConcentration(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, func(sse *datastar.ServerSentEventGenerator, f models.Filters) error {
		res, err := h.analytics.Concentration(f)
		if err != nil {
			return err
		}
		if err := patchSignals(sse, map[string]any{"concentrationCurve": res.Curve}); err != nil {
			return err
		}
		html, err := render(concentrationTemplate, res)
		if err != nil {
			return err
		}
		return sse.PatchElements(html)
	})
}

// HandleRefreshAll pushes every panel in one stream.
func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, func(sse *datastar.ServerSentEventGenerator, f models.Filters) error {
		panels := []struct {
			tmpl *template.Template
			data func() (any, error)
		}{
			{performanceTableTemplate, func() (any, error) {
				rows, err := h.analytics.Performance(f)
				return templateData{Data: limited(rows), MaxRows: maxTableRows}, err
			}},
			{healthTableTemplate, func() (any, error) {
				rows, err := h.analytics.InventoryHealth(f)
				return templateData{Data: limited(rows), MaxRows: maxTableRows}, err
			}},
			{opportunityTableTemplate, func() (any, error) {
				opps, err := h.analytics.Opportunities(f)
				return templateData{Data: limited(opps), MaxRows: maxTableRows}, err
			}},
			{concentrationTemplate, func() (any, error) {
				return h.analytics.Concentration(f)
			}},
		}

		for _, p := range panels {
			data, err := p.data()
			if err != nil {
				return err
			}
			html, err := render(p.tmpl, data)
			if err != nil {
				return err
			}
			if err := sse.PatchElements(html); err != nil {
				return err
			}
		}

		counts, err := h.analytics.CategoryCounts(f)
		if err != nil {
			return err
		}
		trend, err := h.analytics.MonthlyTrend(f)
		if err != nil {
			return err
		}
		return patchSignals(sse, map[string]any{
			"categoryData": counts,
			"trendData":    trend,
		})
	})
}
