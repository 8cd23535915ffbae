package models

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Period is one calendar month, optionally qualified by year. Year 0 means
// the sheet only named the month.
type Period struct {
	Year  int
	Month time.Month
}

// Name returns the column name the period is rendered under.
func (p Period) Name() string {
	if p.Year == 0 {
		return p.Month.String()
	}
	return fmt.Sprintf("%s %d", p.Month, p.Year)
}

func (p Period) String() string {
	return p.Name()
}

// MarshalText encodes the period as its column name, so a Series serializes
// as a JSON object keyed by period.
func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.Name()), nil
}

func (p *Period) UnmarshalText(b []byte) error {
	parsed, ok := ParsePeriod(string(b))
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPeriod, b)
	}
	*p = parsed
	return nil
}

// Compare orders periods by year, then month.
func (p Period) Compare(o Period) int {
	if p.Year != o.Year {
		if p.Year < o.Year {
			return -1
		}
		return 1
	}
	switch {
	case p.Month < o.Month:
		return -1
	case p.Month > o.Month:
		return 1
	default:
		return 0
	}
}

var monthNames = func() map[string]time.Month {
	m := make(map[string]time.Month, 24)
	for mo := time.January; mo <= time.December; mo++ {
		full := strings.ToLower(mo.String())
		m[full] = mo
		m[full[:3]] = mo
	}
	m["sept"] = time.September
	return m
}()

// ParsePeriod recognises a column header as a period. Accepted shapes are
// "March", "Mar", "March 2025", "Mar-2025", "2025 March" and "2025-03".
// Any other header is not a period.
func ParsePeriod(header string) (Period, bool) {
	s := strings.ToLower(strings.TrimSpace(header))
	if s == "" {
		return Period{}, false
	}

	if mo, ok := monthNames[s]; ok {
		return Period{Month: mo}, true
	}

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '-' || r == '/' || r == '_'
	})
	if len(fields) != 2 {
		return Period{}, false
	}

	// 2025-03
	if y, err := strconv.Atoi(fields[0]); err == nil && len(fields[0]) == 4 {
		if n, err := strconv.Atoi(fields[1]); err == nil && n >= 1 && n <= 12 {
			return Period{Year: y, Month: time.Month(n)}, true
		}
		if mo, ok := monthNames[fields[1]]; ok {
			return Period{Year: y, Month: mo}, true
		}
		return Period{}, false
	}

	mo, ok := monthNames[fields[0]]
	if !ok {
		return Period{}, false
	}
	y, err := strconv.Atoi(fields[1])
	if err != nil || len(fields[1]) != 4 {
		return Period{}, false
	}
	return Period{Year: y, Month: mo}, true
}

// Calendar is the ordered set of periods known for a dataset.
type Calendar []Period

// NewCalendar de-duplicates and orders the given periods.
func NewCalendar(periods ...Period) Calendar {
	cal := slices.Clone(periods)
	slices.SortFunc(cal, Period.Compare)
	return slices.Compact(cal)
}

// Merge returns the union of two calendars.
func (c Calendar) Merge(o Calendar) Calendar {
	return NewCalendar(append(slices.Clone(c), o...)...)
}

func (c Calendar) Contains(p Period) bool {
	_, found := slices.BinarySearchFunc(c, p, Period.Compare)
	return found
}

// Names returns each period's column name in calendar order.
func (c Calendar) Names() []string {
	names := make([]string, len(c))
	for i, p := range c {
		names[i] = p.Name()
	}
	return names
}

// Recent returns the trailing n periods. A calendar shorter than n is
// returned whole.
func (c Calendar) Recent(n int) []Period {
	if n <= 0 {
		return nil
	}
	if n >= len(c) {
		return slices.Clone(c)
	}
	return slices.Clone(c[len(c)-n:])
}

// Subset resolves caller-supplied period names against the calendar and
// returns them in calendar order. An empty selection means the full
// calendar. Names that do not parse, or parse to a period the calendar does
// not hold, are rejected.
func (c Calendar) Subset(names []string) ([]Period, error) {
	if len(names) == 0 {
		return slices.Clone(c), nil
	}

	picked := make([]Period, 0, len(names))
	for _, name := range names {
		p, ok := ParsePeriod(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPeriod, name)
		}
		if !c.Contains(p) {
			return nil, fmt.Errorf("%w: %q not in calendar", ErrUnknownPeriod, name)
		}
		picked = append(picked, p)
	}
	return NewCalendar(picked...), nil
}

// Series maps periods to values. An absent period reads as zero.
type Series map[Period]float64

// Sum adds the values for the given periods.
func (s Series) Sum(periods []Period) float64 {
	var total float64
	for _, p := range periods {
		total += s[p]
	}
	return total
}

// Values returns the values for the given periods in order.
func (s Series) Values(periods []Period) []float64 {
	out := make([]float64, len(periods))
	for i, p := range periods {
		out[i] = s[p]
	}
	return out
}

// Periods returns the periods present in the series in calendar order.
func (s Series) Periods() Calendar {
	periods := make([]Period, 0, len(s))
	for p := range s {
		periods = append(periods, p)
	}
	return NewCalendar(periods...)
}
