package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// AllSelector is the "no restriction" value for Market and SKU.
const AllSelector = "All"

const DefaultWindow = 6

// Filters are the caller's current selections. The engine holds no
// selection state of its own; every query receives one of these.
type Filters struct {
	Market           string            `json:"market"`
	SKU              string            `json:"sku"`
	Periods          []string          `json:"periods" validate:"omitempty,dive,required"`
	Window           int               `json:"window" validate:"oneof=3 6 9 12"`
	MinInventory     float64           `json:"min_inventory" validate:"gte=0"`
	OpportunityTypes []OpportunityType `json:"opportunity_types" validate:"omitempty,dive,oneof=Overstocked Understocked 'High Potential' 'Expand Market'"`
	Impacts          []Impact          `json:"impacts" validate:"omitempty,dive,oneof=High Medium Low"`
}

// DefaultFilters selects everything with the default recent window.
func DefaultFilters() Filters {
	return Filters{
		Market: AllSelector,
		SKU:    AllSelector,
		Window: DefaultWindow,
	}
}

// WithDefaults fills zero-valued selectors so a partially populated request
// behaves like DefaultFilters.
func (f Filters) WithDefaults() Filters {
	if strings.TrimSpace(f.Market) == "" {
		f.Market = AllSelector
	}
	if strings.TrimSpace(f.SKU) == "" {
		f.SKU = AllSelector
	}
	if f.Window == 0 {
		f.Window = DefaultWindow
	}
	return f
}

func (f Filters) MatchMarket(market string) bool {
	return f.Market == "" || f.Market == AllSelector || f.Market == market
}

func (f Filters) MatchSKU(sku string) bool {
	return f.SKU == "" || f.SKU == AllSelector || f.SKU == sku
}

// WantsType reports whether an opportunity type passes the type filter.
// An empty filter passes everything.
func (f Filters) WantsType(t OpportunityType) bool {
	if len(f.OpportunityTypes) == 0 {
		return true
	}
	for _, want := range f.OpportunityTypes {
		if want == t {
			return true
		}
	}
	return false
}

func (f Filters) WantsImpact(i Impact) bool {
	if len(f.Impacts) == 0 {
		return true
	}
	for _, want := range f.Impacts {
		if want == i {
			return true
		}
	}
	return false
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func filterValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks the filter values against their allowed ranges.
func (f Filters) Validate() error {
	err := filterValidator().Struct(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid filters: %s", strings.Join(msgs, "; "))
}
