package factory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getlago/analytics-engine/factory"
	"github.com/getlago/analytics-engine/revenue"
	"github.com/getlago/analytics-engine/series"
	"github.com/getlago/analytics-engine/store/memory"
	"github.com/getlago/analytics-engine/usage"
)

func newTestFactory() *factory.ChartFactory {
	store := memory.New()
	reg := series.NewRegistry()
	reg.Register(usage.NewUsageSource(store))
	reg.Register(usage.NewMetricUsageSource(store))
	reg.Register(revenue.NewGrossRevenueSource(store))
	reg.Register(revenue.NewInvoiceCountSource(store))
	return factory.NewChartFactory(reg)
}

func TestParseChart_Presets(t *testing.T) {
	f := newTestFactory()

	tests := []struct {
		name        string
		json        string
		source      string
		granularity series.Granularity
		kind        factory.ValueKind
	}{
		{"customer usage", factory.CustomerUsageJSON("c1", "Acme", "cus_acme"), usage.SourceUsage, series.Monthly, factory.ValueAmount},
		{"metric usage", factory.MetricUsageJSON("c2", "Seats", "seats"), usage.SourceUsageByMetric, series.Weekly, factory.ValueCount},
		{"gross revenue", factory.GrossRevenueJSON("c3", "Revenue", "eur"), revenue.SourceGrossRevenue, series.Monthly, factory.ValueAmount},
		{"invoice count", factory.InvoiceCountJSON("c4", "Invoices"), revenue.SourceInvoiceCount, series.Monthly, factory.ValueCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chart, err := f.ParseChart(tt.json)
			require.NoError(t, err)
			assert.Equal(t, tt.source, chart.Source)
			assert.Equal(t, tt.granularity, chart.Granularity)
			assert.Equal(t, tt.kind, chart.ValueKind)
		})
	}
}

func TestParseChart_EmptyItemTemplate(t *testing.T) {
	// GIVEN: A chart whose empty item carries extra fields
	// WHEN: It is densified with no data
	// THEN: Every bucket copies the fields, with its own period dates

	f := newTestFactory()
	chart, err := f.ParseChart(factory.CustomerUsageJSON("c1", "Acme", "cus_acme"))
	require.NoError(t, err)
	require.NotNil(t, chart.EmptyItem)

	rng := series.Range{Start: series.MustParseDate("2024-01-01"), End: series.MustParseDate("2024-02-29")}
	s, err := series.DensifyAggregates(nil, rng, chart.Granularity, chart.EmptyItem)
	require.NoError(t, err)

	require.Equal(t, 2, s.Len())
	assert.Equal(t, "2024-02-01", s.Items[1].StartOfPeriod.String())
	assert.Equal(t, "2024-02-29", s.Items[1].EndOfPeriod.String())
	assert.Equal(t, "0", s.Items[1].Field("units"))
}

func TestParseChart_Defaults(t *testing.T) {
	f := newTestFactory()

	chart, err := f.ParseChart(`{"id": "plain", "source": "usage"}`)

	require.NoError(t, err)
	assert.Equal(t, series.Monthly, chart.Granularity)
	assert.Equal(t, factory.ValueAmount, chart.ValueKind)
	assert.Equal(t, "plain", chart.Name)
	assert.Nil(t, chart.EmptyItem)
}

func TestParseChart_Invalid(t *testing.T) {
	f := newTestFactory()

	for name, js := range map[string]string{
		"malformed":       `{"id":`,
		"missing id":      `{"source": "usage"}`,
		"missing source":  `{"id": "x"}`,
		"unknown source":  `{"id": "x", "source": "mrr"}`,
		"bad granularity": `{"id": "x", "source": "usage", "granularity": "hourly"}`,
		"bad value kind":  `{"id": "x", "source": "usage", "value_kind": "percent"}`,
		"bad empty item":  `{"id": "x", "source": "usage", "empty_item": {"start_of_period": "nope"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.ParseChart(js)
			assert.ErrorIs(t, err, factory.ErrInvalidChart)
		})
	}
}

func TestChart_QueryOverridesCurrency(t *testing.T) {
	f := newTestFactory()
	chart, err := f.ParseChart(factory.CustomerUsageJSON("c1", "Acme", "cus_acme"))
	require.NoError(t, err)
	chart.Currency = "EUR"

	rng := series.Range{Start: series.MustParseDate("2024-01-01"), End: series.MustParseDate("2024-01-31")}
	assert.Equal(t, "EUR", chart.Query(rng, "").Currency)
	assert.Equal(t, "USD", chart.Query(rng, "USD").Currency)
	assert.Equal(t, "cus_acme", chart.Query(rng, "").Filter(usage.FilterCustomerID))
}

func TestChartStore_RoundTrip(t *testing.T) {
	f := newTestFactory()
	store := memory.New()
	ctx := context.Background()

	chart, err := f.ParseChart(factory.InvoiceCountJSON("inv", "Invoices"))
	require.NoError(t, err)
	require.NoError(t, store.SaveChart(ctx, *chart))

	got, err := store.GetChart(ctx, "inv")
	require.NoError(t, err)
	assert.Equal(t, f.ToJSON(chart), f.ToJSON(got))

	require.NoError(t, store.DeleteChart(ctx, "inv"))
	_, err = store.GetChart(ctx, "inv")
	assert.ErrorIs(t, err, factory.ErrChartNotFound)
}
