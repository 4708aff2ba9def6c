package usage

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/getlago/analytics-engine/series"
)

type rollupKey struct {
	customerID string
	metricCode string
	day        string
	currency   string
}

// Rollup aggregates events into one DailyAggregate per customer, metric,
// day and currency. Units follow the metric's aggregation; amounts always
// sum. Events for unknown metrics are summed.
// Output is sorted by day, customer, metric, currency.
func Rollup(events []Event, metrics map[string]Metric) []DailyAggregate {
	index := make(map[rollupKey]*DailyAggregate)
	var order []rollupKey

	for _, e := range events {
		k := rollupKey{e.CustomerID, e.MetricCode, e.OccurredOn.String(), e.Currency}
		agg, ok := index[k]
		if !ok {
			agg = &DailyAggregate{
				CustomerID:  e.CustomerID,
				MetricCode:  e.MetricCode,
				Day:         e.OccurredOn,
				Currency:    e.Currency,
				Units:       decimal.Zero,
				AmountCents: decimal.Zero,
			}
			index[k] = agg
			order = append(order, k)
		}

		switch metrics[e.MetricCode].Aggregation {
		case AggregationCount:
			agg.Units = agg.Units.Add(decimal.NewFromInt(1))
		case AggregationMax:
			if agg.EventsCount == 0 || e.Units.GreaterThan(agg.Units) {
				agg.Units = e.Units
			}
		default:
			agg.Units = agg.Units.Add(e.Units)
		}
		agg.AmountCents = agg.AmountCents.Add(e.AmountCents)
		agg.EventsCount++
	}

	out := make([]DailyAggregate, 0, len(order))
	for _, k := range order {
		out = append(out, *index[k])
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Day.Equal(b.Day) {
			return a.Day.Before(b.Day)
		}
		if a.CustomerID != b.CustomerID {
			return a.CustomerID < b.CustomerID
		}
		if a.MetricCode != b.MetricCode {
			return a.MetricCode < b.MetricCode
		}
		return a.Currency < b.Currency
	})
	return out
}

// BucketTotals groups daily aggregates by bucket start at granularity g,
// merging units with agg. Stores that cannot bucket in their query
// language use this.
func BucketTotals(aggs []DailyAggregate, g series.Granularity, agg Aggregation) []PeriodTotal {
	index := make(map[string]*PeriodTotal)
	for _, a := range aggs {
		start := series.StartOf(g, a.Day)
		t, ok := index[start.String()]
		if !ok {
			t = &PeriodTotal{Start: start, Units: decimal.Zero, AmountCents: decimal.Zero}
			index[start.String()] = t
		}
		t.Units = agg.Merge(t.Units, a.Units)
		t.AmountCents = t.AmountCents.Add(a.AmountCents)
		t.EventsCount += a.EventsCount
	}
	out := make([]PeriodTotal, 0, len(index))
	for _, t := range index {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}
