package usage

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/getlago/analytics-engine/series"
)

// Source IDs and filter keys.
const (
	SourceUsage         = "usage"
	SourceUsageByMetric = "usage_by_metric"
	Domain              = "usage"

	FilterCustomerID = "customer_id"
	FilterMetricCode = "metric_code"
	FilterValue      = "value"

	FieldUnits       = "units"
	FieldEventsCount = "events_count"
	FieldAmountCents = "amount_cents"
)

// =============================================================================
// USAGE SOURCE - billed amount per period
// =============================================================================

// UsageSource yields billed usage amounts (minor units) per bucket.
type UsageSource struct {
	store Store
}

func NewUsageSource(store Store) *UsageSource { return &UsageSource{store: store} }

func (s *UsageSource) ID() string     { return SourceUsage }
func (s *UsageSource) Domain() string { return Domain }

// Sparse sums units across metrics unless a metric_code filter names one
// metric, whose aggregation then applies.
func (s *UsageSource) Sparse(ctx context.Context, q series.Query) ([]series.Aggregate, error) {
	f := filterOf(q)
	if f.MetricCode != "" {
		m, err := s.store.GetMetric(ctx, f.MetricCode)
		if err != nil {
			return nil, err
		}
		f.Aggregation = m.Aggregation
	}
	totals, err := s.store.SparseUsage(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]series.Aggregate, 0, len(totals))
	for _, t := range totals {
		out = append(out, series.Aggregate{
			StartOfPeriod: t.Start,
			Value:         t.AmountCents,
			Fields: map[string]any{
				FieldUnits:       t.Units.String(),
				FieldEventsCount: t.EventsCount,
			},
		})
	}
	return out, nil
}

// =============================================================================
// USAGE BY METRIC SOURCE - one metric's units (or amount) per period
// =============================================================================

// MetricUsageSource yields a single metric's usage per bucket.
// The value filter selects "units" (default) or "amount".
type MetricUsageSource struct {
	store Store
}

func NewMetricUsageSource(store Store) *MetricUsageSource { return &MetricUsageSource{store: store} }

func (s *MetricUsageSource) ID() string     { return SourceUsageByMetric }
func (s *MetricUsageSource) Domain() string { return Domain }

func (s *MetricUsageSource) Sparse(ctx context.Context, q series.Query) ([]series.Aggregate, error) {
	code := q.Filter(FilterMetricCode)
	if code == "" {
		return nil, fmt.Errorf("%w: %s filter is required", ErrInvalidEvent, FilterMetricCode)
	}
	metric, err := s.store.GetMetric(ctx, code)
	if err != nil {
		return nil, err
	}

	pick := func(t PeriodTotal) decimal.Decimal { return t.Units }
	switch v := q.Filter(FilterValue); v {
	case "", FieldUnits:
	case "amount":
		pick = func(t PeriodTotal) decimal.Decimal { return t.AmountCents }
	default:
		return nil, fmt.Errorf("%w: unknown value %q", ErrInvalidEvent, v)
	}

	f := filterOf(q)
	f.Aggregation = metric.Aggregation
	totals, err := s.store.SparseUsage(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]series.Aggregate, 0, len(totals))
	for _, t := range totals {
		out = append(out, series.Aggregate{
			StartOfPeriod: t.Start,
			Value:         pick(t),
			Fields: map[string]any{
				FieldAmountCents: t.AmountCents.String(),
				FieldEventsCount: t.EventsCount,
			},
		})
	}
	return out, nil
}

func filterOf(q series.Query) Filter {
	return Filter{
		CustomerID:  q.Filter(FilterCustomerID),
		MetricCode:  q.Filter(FilterMetricCode),
		Currency:    q.Currency,
		Range:       q.Range.Rounded(q.Granularity),
		Granularity: q.Granularity,
	}
}
