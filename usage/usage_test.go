package usage_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getlago/analytics-engine/series"
	"github.com/getlago/analytics-engine/store/memory"
	"github.com/getlago/analytics-engine/usage"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(t *testing.T) (*usage.Service, *memory.Memory, *clock) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.SaveCustomer(ctx, usage.Customer{ID: "cus_acme", Name: "Acme", Currency: "USD"}))
	require.NoError(t, store.SaveMetric(ctx, usage.Metric{Code: "api_calls", Name: "API calls", Aggregation: usage.AggregationSum}))
	require.NoError(t, store.SaveMetric(ctx, usage.Metric{Code: "seats", Name: "Seats", Aggregation: usage.AggregationMax}))
	require.NoError(t, store.SaveMetric(ctx, usage.Metric{Code: "logins", Name: "Logins", Aggregation: usage.AggregationCount}))

	c := &clock{t: time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)}
	log, _ := test.NewNullLogger()
	svc := usage.NewService(store, usage.WithClock(c.Now), usage.WithLogger(log))
	return svc, store, c
}

func input(metric, day string, units, cents int64) usage.EventInput {
	return usage.EventInput{
		CustomerID:  "cus_acme",
		MetricCode:  metric,
		OccurredOn:  series.MustParseDate(day),
		Units:       decimal.NewFromInt(units),
		AmountCents: decimal.NewFromInt(cents),
	}
}

// =============================================================================
// INGESTION TESTS
// =============================================================================

func TestRecord_AssignsIDsAndDefaultsCurrency(t *testing.T) {
	svc, _, _ := newTestService(t)

	events, err := svc.Record(context.Background(), []usage.EventInput{input("api_calls", "2024-01-03", 10, 500)})

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Len(t, events[0].ID, 26, "ULID")
	assert.Equal(t, events[0].ID, events[0].IdempotencyKey, "missing key falls back to the event ID")
	assert.Equal(t, "USD", events[0].Currency)
}

func TestRecord_DuplicateKey_RejectsWholeBatch(t *testing.T) {
	// GIVEN: An event recorded with key "k1"
	// WHEN: A batch containing a new key and "k1" again arrives
	// THEN: The batch fails with ErrDuplicateEvent and nothing is written

	svc, store, _ := newTestService(t)
	ctx := context.Background()

	first := input("api_calls", "2024-01-03", 1, 100)
	first.IdempotencyKey = "k1"
	_, err := svc.Record(ctx, []usage.EventInput{first})
	require.NoError(t, err)

	fresh := input("api_calls", "2024-01-04", 1, 100)
	fresh.IdempotencyKey = "k2"
	_, err = svc.Record(ctx, []usage.EventInput{fresh, first})

	assert.ErrorIs(t, err, usage.ErrDuplicateEvent)
	events, err := store.EventsOn(ctx, series.MustParseDate("2024-01-04"))
	require.NoError(t, err)
	assert.Empty(t, events, "atomic batch")
}

func TestRecord_DuplicateKeyWithinBatch(t *testing.T) {
	svc, _, _ := newTestService(t)

	a := input("api_calls", "2024-01-03", 1, 100)
	a.IdempotencyKey = "same"
	b := input("api_calls", "2024-01-04", 1, 100)
	b.IdempotencyKey = "same"

	_, err := svc.Record(context.Background(), []usage.EventInput{a, b})

	var evErr *usage.EventError
	require.ErrorAs(t, err, &evErr)
	assert.Equal(t, 1, evErr.Index)
	assert.ErrorIs(t, err, usage.ErrDuplicateEvent)
}

func TestRecord_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*usage.EventInput)
		wantErr error
	}{
		{"unknown customer", func(in *usage.EventInput) { in.CustomerID = "cus_nope" }, usage.ErrCustomerNotFound},
		{"unknown metric", func(in *usage.EventInput) { in.MetricCode = "nope" }, usage.ErrMetricNotFound},
		{"negative units", func(in *usage.EventInput) { in.Units = decimal.NewFromInt(-1) }, usage.ErrInvalidEvent},
		{"negative amount", func(in *usage.EventInput) { in.AmountCents = decimal.NewFromInt(-1) }, usage.ErrInvalidEvent},
		{"missing date", func(in *usage.EventInput) { in.OccurredOn = series.Date{} }, usage.ErrInvalidEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := input("api_calls", "2024-01-03", 1, 1)
			tt.mutate(&in)
			_, err := svc.Record(ctx, []usage.EventInput{in})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, usage.IsClientError(err))
		})
	}

	_, err := svc.Record(ctx, nil)
	assert.ErrorIs(t, err, usage.ErrInvalidEvent)
}

// =============================================================================
// ROLLUP TESTS
// =============================================================================

func TestRollup_AggregationTypes(t *testing.T) {
	day := series.MustParseDate("2024-01-03")
	ev := func(metric string, units, cents int64) usage.Event {
		return usage.Event{
			CustomerID: "cus_acme", MetricCode: metric, OccurredOn: day, Currency: "USD",
			Units: decimal.NewFromInt(units), AmountCents: decimal.NewFromInt(cents),
		}
	}
	metrics := map[string]usage.Metric{
		"api_calls": {Code: "api_calls", Aggregation: usage.AggregationSum},
		"seats":     {Code: "seats", Aggregation: usage.AggregationMax},
		"logins":    {Code: "logins", Aggregation: usage.AggregationCount},
	}

	aggs := usage.Rollup([]usage.Event{
		ev("api_calls", 10, 100), ev("api_calls", 5, 50),
		ev("seats", 3, 0), ev("seats", 7, 0), ev("seats", 2, 0),
		ev("logins", 40, 0), ev("logins", 1, 0),
	}, metrics)

	require.Len(t, aggs, 3)
	byMetric := map[string]usage.DailyAggregate{}
	for _, a := range aggs {
		byMetric[a.MetricCode] = a
	}
	assert.True(t, byMetric["api_calls"].Units.Equal(decimal.NewFromInt(15)))
	assert.True(t, byMetric["api_calls"].AmountCents.Equal(decimal.NewFromInt(150)))
	assert.True(t, byMetric["seats"].Units.Equal(decimal.NewFromInt(7)))
	assert.True(t, byMetric["logins"].Units.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, 3, byMetric["seats"].EventsCount)
}

func TestRunRollup_IsIncrementalAndIdempotent(t *testing.T) {
	// GIVEN: Events on two days, rolled up once
	// WHEN: More events arrive for one day and the rollup runs again
	// THEN: Only that day is rebuilt, and totals include old and new events

	svc, store, c := newTestService(t)
	ctx := context.Background()

	_, err := svc.Record(ctx, []usage.EventInput{
		input("api_calls", "2024-01-03", 10, 100),
		input("api_calls", "2024-01-20", 5, 50),
	})
	require.NoError(t, err)

	c.Advance(time.Minute)
	run, err := svc.RunRollup(ctx)
	require.NoError(t, err)
	assert.Equal(t, usage.RunCompleted, run.Status)
	assert.Equal(t, 2, run.Days)

	c.Advance(time.Minute)
	_, err = svc.Record(ctx, []usage.EventInput{input("api_calls", "2024-01-03", 1, 10)})
	require.NoError(t, err)

	c.Advance(time.Minute)
	run, err = svc.RunRollup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Days)

	totals, err := store.SparseUsage(ctx, usage.Filter{
		Range:       series.Range{Start: series.MustParseDate("2024-01-01"), End: series.MustParseDate("2024-01-31")},
		Granularity: series.Monthly,
	})
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.True(t, totals[0].AmountCents.Equal(decimal.NewFromInt(160)))
	assert.Equal(t, 3, totals[0].EventsCount)

	runs, err := store.ListRollupRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRunRollup_LogsCompletion(t *testing.T) {
	store := memory.New()
	log, hook := test.NewNullLogger()
	svc := usage.NewService(store, usage.WithLogger(log))

	_, err := svc.RunRollup(context.Background())

	require.NoError(t, err)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Equal(t, 0, hook.LastEntry().Data["days"])
}

// =============================================================================
// SOURCE TESTS
// =============================================================================

func TestUsageSource_WeeklyDensifiedSeries(t *testing.T) {
	// GIVEN: Usage in the first and third ISO weeks of January 2024
	// WHEN: The usage source is densified weekly over the month
	// THEN: Five weeks are returned, the gaps zero-filled

	svc, store, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Record(ctx, []usage.EventInput{
		input("api_calls", "2024-01-02", 10, 100),
		input("api_calls", "2024-01-17", 5, 40),
	})
	require.NoError(t, err)
	_, err = svc.RunRollup(ctx)
	require.NoError(t, err)

	rng := series.Range{Start: series.MustParseDate("2024-01-01"), End: series.MustParseDate("2024-01-31")}
	src := usage.NewUsageSource(store)
	sparse, err := src.Sparse(ctx, series.Query{Range: rng, Granularity: series.Weekly, Currency: "USD"})
	require.NoError(t, err)
	require.Len(t, sparse, 2)
	assert.Equal(t, "10", sparse[0].Field(usage.FieldUnits))

	s, err := series.DensifyAggregates(sparse, rng, series.Weekly, nil)
	require.NoError(t, err)
	require.Equal(t, 5, s.Len())
	assert.Empty(t, s.Dropped)

	values := make([]string, s.Len())
	for i, a := range s.Items {
		values[i] = a.Value.String()
	}
	assert.Equal(t, []string{"100", "0", "40", "0", "0"}, values)
}

func TestMetricUsageSource_ValueSelection(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Record(ctx, []usage.EventInput{
		input("seats", "2024-02-10", 3, 300),
		input("seats", "2024-02-11", 8, 800),
		input("api_calls", "2024-02-12", 99, 1),
	})
	require.NoError(t, err)
	_, err = svc.RunRollup(ctx)
	require.NoError(t, err)

	src := usage.NewMetricUsageSource(store)
	q := series.Query{
		Range:       series.Range{Start: series.MustParseDate("2024-02-01"), End: series.MustParseDate("2024-02-29")},
		Granularity: series.Monthly,
		Filters:     map[string]string{usage.FilterMetricCode: "seats"},
	}

	units, err := src.Sparse(ctx, q)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "8", units[0].Value.String(), "largest day of the month")

	q.Filters[usage.FilterValue] = "amount"
	amounts, err := src.Sparse(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, "1100", amounts[0].Value.String())

	q.Filters[usage.FilterValue] = "bogus"
	_, err = src.Sparse(ctx, q)
	assert.ErrorIs(t, err, usage.ErrInvalidEvent)

	delete(q.Filters, usage.FilterMetricCode)
	_, err = src.Sparse(ctx, q)
	assert.ErrorIs(t, err, usage.ErrInvalidEvent)
}

func TestMetricUsageSource_MaxMetricKeepsPeriodMax(t *testing.T) {
	// GIVEN: Ten seats reported on three consecutive days
	// WHEN: The seats metric is bucketed weekly and monthly
	// THEN: Each bucket holds the largest day, not the sum of days

	svc, store, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Record(ctx, []usage.EventInput{
		input("seats", "2024-01-03", 10, 0),
		input("seats", "2024-01-04", 10, 0),
		input("seats", "2024-01-05", 10, 0),
		input("seats", "2024-01-09", 4, 0),
		input("logins", "2024-01-03", 1, 0),
		input("logins", "2024-01-04", 1, 0),
	})
	require.NoError(t, err)
	_, err = svc.RunRollup(ctx)
	require.NoError(t, err)

	rng := series.Range{Start: series.MustParseDate("2024-01-01"), End: series.MustParseDate("2024-01-31")}
	src := usage.NewMetricUsageSource(store)

	monthly, err := src.Sparse(ctx, series.Query{
		Range: rng, Granularity: series.Monthly,
		Filters: map[string]string{usage.FilterMetricCode: "seats"},
	})
	require.NoError(t, err)
	require.Len(t, monthly, 1)
	assert.Equal(t, "10", monthly[0].Value.String())
	assert.Equal(t, 4, monthly[0].Field(usage.FieldEventsCount), "event counts still add up")

	weekly, err := src.Sparse(ctx, series.Query{
		Range: rng, Granularity: series.Weekly,
		Filters: map[string]string{usage.FilterMetricCode: "seats"},
	})
	require.NoError(t, err)
	require.Len(t, weekly, 2)
	assert.Equal(t, "10", weekly[0].Value.String())
	assert.Equal(t, "4", weekly[1].Value.String())

	logins, err := src.Sparse(ctx, series.Query{
		Range: rng, Granularity: series.Monthly,
		Filters: map[string]string{usage.FilterMetricCode: "logins"},
	})
	require.NoError(t, err)
	require.Len(t, logins, 1)
	assert.Equal(t, "2", logins[0].Value.String(), "count metrics add up across days")

	// The usage source applies the aggregation when filtered to one metric.
	usageSparse, err := usage.NewUsageSource(store).Sparse(ctx, series.Query{
		Range: rng, Granularity: series.Monthly,
		Filters: map[string]string{usage.FilterMetricCode: "seats"},
	})
	require.NoError(t, err)
	require.Len(t, usageSparse, 1)
	assert.Equal(t, "10", usageSparse[0].Field(usage.FieldUnits))
}

func TestAggregation_Merge(t *testing.T) {
	ten, four := decimal.NewFromInt(10), decimal.NewFromInt(4)

	assert.Equal(t, "10", usage.AggregationMax.Merge(ten, four).String())
	assert.Equal(t, "10", usage.AggregationMax.Merge(four, ten).String())
	assert.Equal(t, "14", usage.AggregationSum.Merge(ten, four).String())
	assert.Equal(t, "14", usage.AggregationCount.Merge(ten, four).String())
	assert.Equal(t, "14", usage.Aggregation("").Merge(ten, four).String(), "unknown metrics sum")
}
