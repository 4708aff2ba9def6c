// Package memory provides an in-memory Store (for testing/dev).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/getlago/analytics-engine/factory"
	"github.com/getlago/analytics-engine/revenue"
	"github.com/getlago/analytics-engine/series"
	"github.com/getlago/analytics-engine/usage"
)

// =============================================================================
// MEMORY STORE - usage.Store, revenue.Store and factory.ChartStore
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	customers   map[string]usage.Customer
	metrics     map[string]usage.Metric
	events      []usage.Event
	idempotency map[string]bool
	daily       map[string][]usage.DailyAggregate // keyed by day
	runs        []usage.RollupRun
	invoices    []revenue.Invoice
	charts      map[string]factory.Chart
}

func New() *Memory {
	m := &Memory{}
	m.reset()
	return m
}

// Reset drops all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
	return nil
}

func (m *Memory) reset() {
	m.customers = make(map[string]usage.Customer)
	m.metrics = make(map[string]usage.Metric)
	m.events = nil
	m.idempotency = make(map[string]bool)
	m.daily = make(map[string][]usage.DailyAggregate)
	m.runs = nil
	m.invoices = nil
	m.charts = make(map[string]factory.Chart)
}

// =============================================================================
// CUSTOMERS & METRICS
// =============================================================================

func (m *Memory) SaveCustomer(_ context.Context, c usage.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[c.ID] = c
	return nil
}

func (m *Memory) GetCustomer(_ context.Context, id string) (*usage.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, usage.ErrCustomerNotFound
	}
	return &c, nil
}

func (m *Memory) ListCustomers(_ context.Context) ([]usage.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]usage.Customer, 0, len(m.customers))
	for _, c := range m.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveMetric(_ context.Context, metric usage.Metric) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics[metric.Code] = metric
	return nil
}

func (m *Memory) GetMetric(_ context.Context, code string) (*usage.Metric, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	metric, ok := m.metrics[code]
	if !ok {
		return nil, usage.ErrMetricNotFound
	}
	return &metric, nil
}

func (m *Memory) ListMetrics(_ context.Context) ([]usage.Metric, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]usage.Metric, 0, len(m.metrics))
	for _, metric := range m.metrics {
		out = append(out, metric)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// =============================================================================
// EVENTS (append-only)
// =============================================================================

// AppendEvents adds events atomically.
func (m *Memory) AppendEvents(_ context.Context, events []usage.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check all idempotency keys first (atomic check)
	batch := make(map[string]bool, len(events))
	for _, e := range events {
		if m.idempotency[e.IdempotencyKey] || batch[e.IdempotencyKey] {
			return usage.ErrDuplicateEvent
		}
		batch[e.IdempotencyKey] = true
	}

	for _, e := range events {
		m.events = append(m.events, e)
		m.idempotency[e.IdempotencyKey] = true
	}
	return nil
}

func (m *Memory) DirtyDays(_ context.Context, since time.Time) ([]series.Date, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]series.Date)
	for _, e := range m.events {
		if !e.CreatedAt.Before(since) {
			seen[e.OccurredOn.String()] = e.OccurredOn
		}
	}
	out := make([]series.Date, 0, len(seen))
	for _, d := range seen {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (m *Memory) EventsOn(_ context.Context, day series.Date) ([]usage.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []usage.Event
	for _, e := range m.events {
		if e.OccurredOn.Equal(day) {
			out = append(out, e)
		}
	}
	return out, nil
}

// =============================================================================
// DAILY AGGREGATES
// =============================================================================

func (m *Memory) ReplaceDailyAggregates(_ context.Context, day series.Date, aggs []usage.DailyAggregate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(aggs) == 0 {
		delete(m.daily, day.String())
		return nil
	}
	m.daily[day.String()] = append([]usage.DailyAggregate(nil), aggs...)
	return nil
}

func (m *Memory) SparseUsage(_ context.Context, f usage.Filter) ([]usage.PeriodTotal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []usage.DailyAggregate
	for _, aggs := range m.daily {
		for _, a := range aggs {
			if !f.Range.Contains(a.Day) {
				continue
			}
			if f.CustomerID != "" && a.CustomerID != f.CustomerID {
				continue
			}
			if f.MetricCode != "" && a.MetricCode != f.MetricCode {
				continue
			}
			if f.Currency != "" && a.Currency != f.Currency {
				continue
			}
			matched = append(matched, a)
		}
	}
	return usage.BucketTotals(matched, f.Granularity, f.Aggregation), nil
}

// =============================================================================
// ROLLUP RUNS
// =============================================================================

func (m *Memory) SaveRollupRun(_ context.Context, run usage.RollupRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.runs {
		if m.runs[i].ID == run.ID {
			m.runs[i] = run
			return nil
		}
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *Memory) LastCompletedRollup(_ context.Context) (*usage.RollupRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.runs) - 1; i >= 0; i-- {
		if m.runs[i].Status == usage.RunCompleted {
			run := m.runs[i]
			return &run, nil
		}
	}
	return nil, nil
}

// ListRollupRuns returns the most recent runs first.
func (m *Memory) ListRollupRuns(_ context.Context, limit int) ([]usage.RollupRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []usage.RollupRun
	for i := len(m.runs) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, m.runs[i])
	}
	return out, nil
}

// =============================================================================
// INVOICES
// =============================================================================

func (m *Memory) SaveInvoice(_ context.Context, inv revenue.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.invoices {
		if m.invoices[i].ID == inv.ID {
			m.invoices[i] = inv
			return nil
		}
		if m.invoices[i].Number == inv.Number {
			return revenue.ErrDuplicateNumber
		}
	}
	m.invoices = append(m.invoices, inv)
	return nil
}

func (m *Memory) ListInvoices(_ context.Context, customerID string) ([]revenue.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []revenue.Invoice
	for _, inv := range m.invoices {
		if customerID == "" || inv.CustomerID == customerID {
			out = append(out, inv)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].IssuedOn.Before(out[j].IssuedOn) })
	return out, nil
}

func (m *Memory) SparseRevenue(_ context.Context, f revenue.Filter) ([]revenue.PeriodRevenue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	index := make(map[string]*revenue.PeriodRevenue)
	for _, inv := range m.invoices {
		if inv.Status != revenue.StatusFinalized || !f.Range.Contains(inv.IssuedOn) {
			continue
		}
		if f.CustomerID != "" && inv.CustomerID != f.CustomerID {
			continue
		}
		if f.Currency != "" && inv.Currency != f.Currency {
			continue
		}
		start := series.StartOf(f.Granularity, inv.IssuedOn)
		p, ok := index[start.String()]
		if !ok {
			p = &revenue.PeriodRevenue{Start: start, AmountCents: decimal.Zero}
			index[start.String()] = p
		}
		p.AmountCents = p.AmountCents.Add(inv.AmountCents)
		p.InvoicesCount++
	}
	out := make([]revenue.PeriodRevenue, 0, len(index))
	for _, p := range index {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// =============================================================================
// CHARTS
// =============================================================================

func (m *Memory) SaveChart(_ context.Context, c factory.Chart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.charts[c.ID] = c
	return nil
}

func (m *Memory) GetChart(_ context.Context, id string) (*factory.Chart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.charts[id]
	if !ok {
		return nil, factory.ErrChartNotFound
	}
	return &c, nil
}

func (m *Memory) ListCharts(_ context.Context) ([]factory.Chart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]factory.Chart, 0, len(m.charts))
	for _, c := range m.charts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) DeleteChart(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.charts[id]; !ok {
		return factory.ErrChartNotFound
	}
	delete(m.charts, id)
	return nil
}
