package handlers

import (
	"net/url"
	"strconv"
	"strings"

	"inventory-dashboard/internal/errors"
	"inventory-dashboard/internal/models"
)

// ParseFilters reads filter selections from query parameters. List values
// are comma separated. Range and membership checks are left to the engine.
func ParseFilters(q url.Values) (models.Filters, error) {
	f := models.DefaultFilters()

	if v := strings.TrimSpace(q.Get("market")); v != "" {
		f.Market = v
	}
	if v := strings.TrimSpace(q.Get("sku")); v != "" {
		f.SKU = v
	}
	f.Periods = splitList(q.Get("periods"))

	if v := q.Get("window"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, errors.BadRequestWrap(err, "window must be a whole number of months")
		}
		f.Window = n
	}

	if v := q.Get("min_inventory"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, errors.BadRequestWrap(err, "min_inventory must be a number")
		}
		f.MinInventory = n
	}

	for _, t := range splitList(q.Get("types")) {
		f.OpportunityTypes = append(f.OpportunityTypes, models.OpportunityType(t))
	}
	for _, i := range splitList(q.Get("impacts")) {
		f.Impacts = append(f.Impacts, models.Impact(i))
	}

	return f, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
