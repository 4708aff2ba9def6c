package api

import (
	"net/http"
	"strings"

	"github.com/getlago/analytics-engine/series"
)

// Query parameter names shared by the series endpoints.
const (
	paramDateRange   = "date_range"
	paramGranularity = "granularity"
	paramCurrency    = "currency"
	paramLocale      = "locale"
)

// filterParams are passed through to sources as Query filters.
var filterParams = []string{"customer_id", "metric_code", "value"}

// SeriesParams are the resolved inputs of a series request.
type SeriesParams struct {
	Range       series.Range
	Granularity series.Granularity
	Currency    string
	Locale      string
	Filters     map[string]string
}

// Query converts params into a source query.
func (p SeriesParams) Query() series.Query {
	return series.Query{Range: p.Range, Granularity: p.Granularity, Currency: p.Currency, Filters: p.Filters}
}

// readSeriesParams reads series parameters from the URL, applying defaults:
// monthly granularity, a trailing window ending today, and the configured
// currency and locale. fallback supplies chart-level values used before
// the configured defaults; it may be nil.
func (h *Handler) readSeriesParams(r *http.Request, fallback *SeriesParams) (SeriesParams, error) {
	q := r.URL.Query()
	var p SeriesParams

	rawGranularity := q.Get(paramGranularity)
	if rawGranularity == "" && fallback != nil {
		rawGranularity = string(fallback.Granularity)
	}
	g, err := series.ParseGranularity(rawGranularity)
	if err != nil {
		return p, err
	}
	p.Granularity = g

	if raw := q.Get(paramDateRange); raw != "" {
		if p.Range, err = series.ParseRange(raw); err != nil {
			return p, err
		}
	} else {
		p.Range = DefaultRange(series.DateOf(h.now()), g)
	}

	p.Currency = strings.ToUpper(q.Get(paramCurrency))
	if p.Currency == "" && fallback != nil {
		p.Currency = fallback.Currency
	}
	if p.Currency == "" {
		p.Currency = h.defaultCurrency
	}

	p.Locale = q.Get(paramLocale)
	if p.Locale == "" {
		p.Locale = h.defaultLocale
	}

	p.Filters = make(map[string]string)
	if fallback != nil {
		for k, v := range fallback.Filters {
			p.Filters[k] = v
		}
	}
	for _, key := range filterParams {
		if v := q.Get(key); v != "" {
			p.Filters[key] = v
		}
	}
	return p, nil
}

// DefaultRange is the trailing window used when no date_range is given:
// 30 days, 12 weeks or 12 months ending on today.
func DefaultRange(today series.Date, g series.Granularity) series.Range {
	switch g {
	case series.Daily:
		return series.Range{Start: today.AddDays(-29), End: today}
	case series.Weekly:
		return series.Range{Start: series.StartOf(series.Weekly, today).AddDays(-7 * 11), End: today}
	default:
		return series.Range{Start: series.StartOf(series.Monthly, today).AddMonths(-11), End: today}
	}
}
