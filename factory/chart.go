/*
Package factory provides JSON to Go chart definition conversion.

PURPOSE:
  Converts JSON chart definitions into Chart values bound to a registered
  series Source. Dashboards are configured without code changes: a chart
  names its source, granularity, currency and filters, and optionally the
  item used to fill periods with no data.

JSON SCHEMA:
  {
    "id": "acme-usage",
    "name": "Acme usage",
    "source": "usage",
    "granularity": "weekly",
    "currency": "USD",
    "value_kind": "amount",
    "filters": {"customer_id": "cus_acme"},
    "empty_item": {"value": 0, "plan": "starter"}
  }

DEFAULTS:
  - granularity: monthly
  - value_kind: amount
  - empty_item: none (empty periods become {start, end, 0})

USAGE:
  f := factory.NewChartFactory(registry)
  chart, err := f.ParseChart(factory.CustomerUsageJSON("acme", "Acme usage", "cus_acme"))

SEE ALSO:
  - presets.go: Built-in chart definitions
  - series/registry.go: Source lookup
  - store/sqlite/sqlite.go: Chart persistence
*/
package factory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getlago/analytics-engine/series"
)

var (
	ErrInvalidChart  = errors.New("invalid chart definition")
	ErrChartNotFound = errors.New("chart not found")
)

// ValueKind decides how chart values are rendered.
type ValueKind string

const (
	ValueAmount ValueKind = "amount" // minor currency units
	ValueCount  ValueKind = "count"  // plain quantities
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ChartJSON is the JSON representation of a chart.
type ChartJSON struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Source      string            `json:"source"`
	Granularity string            `json:"granularity,omitempty"`
	Currency    string            `json:"currency,omitempty"`
	ValueKind   string            `json:"value_kind,omitempty"`
	Filters     map[string]string `json:"filters,omitempty"`
	EmptyItem   *series.Aggregate `json:"empty_item,omitempty"`
}

// Chart is a validated chart definition.
type Chart struct {
	ID          string
	Name        string
	Source      string
	Granularity series.Granularity
	Currency    string
	ValueKind   ValueKind
	Filters     map[string]string
	EmptyItem   *series.Aggregate
	CreatedAt   time.Time
}

// Query builds the source query for r. A non-empty currency overrides the
// chart's own.
func (c *Chart) Query(r series.Range, currency string) series.Query {
	if currency == "" {
		currency = c.Currency
	}
	filters := make(map[string]string, len(c.Filters))
	for k, v := range c.Filters {
		filters[k] = v
	}
	return series.Query{Range: r, Granularity: c.Granularity, Currency: currency, Filters: filters}
}

// ChartStore persists chart definitions.
type ChartStore interface {
	SaveChart(ctx context.Context, c Chart) error
	GetChart(ctx context.Context, id string) (*Chart, error)
	ListCharts(ctx context.Context) ([]Chart, error)
	DeleteChart(ctx context.Context, id string) error
}

// =============================================================================
// CHART FACTORY
// =============================================================================

// ChartFactory converts JSON charts to Chart values.
type ChartFactory struct {
	registry *series.Registry
}

func NewChartFactory(registry *series.Registry) *ChartFactory {
	return &ChartFactory{registry: registry}
}

// ParseChart parses a JSON string into a Chart.
func (f *ChartFactory) ParseChart(jsonStr string) (*Chart, error) {
	var cj ChartJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChart, err)
	}
	return f.FromJSON(cj)
}

// FromJSON validates cj and converts it to a Chart.
func (f *ChartFactory) FromJSON(cj ChartJSON) (*Chart, error) {
	if strings.TrimSpace(cj.ID) == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidChart)
	}
	if cj.Source == "" {
		return nil, fmt.Errorf("%w: source is required", ErrInvalidChart)
	}
	if f.registry != nil && !f.registry.Has(cj.Source) {
		return nil, fmt.Errorf("%w: unknown source %q", ErrInvalidChart, cj.Source)
	}

	g, err := series.ParseGranularity(cj.Granularity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChart, err)
	}

	kind := ValueKind(strings.ToLower(cj.ValueKind))
	switch kind {
	case "":
		kind = ValueAmount
	case ValueAmount, ValueCount:
	default:
		return nil, fmt.Errorf("%w: unknown value_kind %q", ErrInvalidChart, cj.ValueKind)
	}

	name := cj.Name
	if name == "" {
		name = cj.ID
	}

	return &Chart{
		ID:          cj.ID,
		Name:        name,
		Source:      cj.Source,
		Granularity: g,
		Currency:    strings.ToUpper(cj.Currency),
		ValueKind:   kind,
		Filters:     cj.Filters,
		EmptyItem:   cj.EmptyItem,
	}, nil
}

// ToJSON converts a Chart back to its JSON form.
func (f *ChartFactory) ToJSON(c *Chart) ChartJSON {
	return ChartJSON{
		ID:          c.ID,
		Name:        c.Name,
		Source:      c.Source,
		Granularity: string(c.Granularity),
		Currency:    c.Currency,
		ValueKind:   string(c.ValueKind),
		Filters:     c.Filters,
		EmptyItem:   c.EmptyItem,
	}
}
