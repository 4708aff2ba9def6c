/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that populate the store with realistic
  billing data. Each scenario seeds customers, billable metrics, usage
  events and invoices, runs the rollup, and saves preset charts, so every
  chart endpoint returns data right away.

AVAILABLE SCENARIOS:
  steady-usage:    Two customers with weekday API usage and seat counts
  sparse-revenue:  Invoices in only a few months, showing zero-filled gaps
  multi-currency:  USD, EUR and JPY customers side by side

HOW SCENARIOS WORK:
  1. Reset the store (clear all data)
  2. Create customers and billable metrics
  3. Record usage events through usage.Service (same path as the API)
  4. Run the rollup
  5. Save preset charts via factory

DATES:
  All data is relative to the handler clock, so the scenarios always cover
  the default trailing windows of the series endpoints.

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "steady-usage"}

NOTE:
  Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - factory/presets.go: Chart JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/getlago/analytics-engine/factory"
	"github.com/getlago/analytics-engine/revenue"
	"github.com/getlago/analytics-engine/series"
	"github.com/getlago/analytics-engine/usage"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "steady-usage",
		Name:        "Steady Usage",
		Description: "Two customers with weekday API calls and seat counts over 90 days",
	},
	{
		ID:          "sparse-revenue",
		Name:        "Sparse Revenue",
		Description: "Finalized invoices in a few months only, plus drafts and voids",
	},
	{
		ID:          "multi-currency",
		Name:        "Multi-Currency",
		Description: "USD, EUR and JPY customers with usage and invoices",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "steady-usage":
		load = h.loadSteadyUsageScenario
	case "sparse-revenue":
		load = h.loadSparseRevenueScenario
	case "multi-currency":
		load = h.loadMultiCurrencyScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if err := h.reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	if _, err := h.Usage.RunRollup(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to roll up scenario usage", err)
		return
	}

	h.currentScenario = req.ScenarioID
	h.log.WithField("scenario", req.ScenarioID).Info("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) reset(ctx context.Context) error {
	rs, ok := h.Store.(resetter)
	if !ok {
		return fmt.Errorf("store does not support reset")
	}
	if err := rs.Reset(ctx); err != nil {
		return err
	}
	h.currentScenario = ""
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadSteadyUsageScenario(ctx context.Context) error {
	if err := h.seedCustomers(ctx,
		usage.Customer{ID: "cus_acme", Name: "Acme Corp", Currency: "USD"},
		usage.Customer{ID: "cus_globex", Name: "Globex", Currency: "USD"},
	); err != nil {
		return err
	}
	if err := h.seedMetrics(ctx); err != nil {
		return err
	}

	today := series.DateOf(h.now())
	var inputs []usage.EventInput
	for i := 0; i < 90; i++ {
		day := today.AddDays(-i)
		if wd := day.Weekday(); wd == 0 || wd == 6 {
			continue // no weekend traffic
		}
		calls := int64(100 + (i*37)%250)
		inputs = append(inputs,
			eventInput("cus_acme", "api_calls", day, calls, calls*2, fmt.Sprintf("acme-calls-%d", i)),
			eventInput("cus_acme", "seats", day, int64(10+i%5), 0, fmt.Sprintf("acme-seats-%d", i)),
		)
		if i%3 == 0 {
			inputs = append(inputs,
				eventInput("cus_globex", "api_calls", day, calls/2, calls, fmt.Sprintf("globex-calls-%d", i)))
		}
	}
	if _, err := h.Usage.Record(ctx, inputs); err != nil {
		return err
	}

	return h.seedCharts(ctx,
		factory.CustomerUsageJSON("acme-usage", "Acme usage", "cus_acme"),
		factory.CustomerUsageJSON("globex-usage", "Globex usage", "cus_globex"),
		factory.MetricUsageJSON("api-calls-weekly", "API calls per week", "api_calls"),
		factory.MetricUsageJSON("seats-weekly", "Seats per week", "seats"),
	)
}

func (h *Handler) loadSparseRevenueScenario(ctx context.Context) error {
	if err := h.seedCustomers(ctx,
		usage.Customer{ID: "cus_acme", Name: "Acme Corp", Currency: "USD"},
		usage.Customer{ID: "cus_initech", Name: "Initech", Currency: "USD"},
	); err != nil {
		return err
	}

	month := series.StartOf(series.Monthly, series.DateOf(h.now()))
	invoices := []revenue.Invoice{
		{CustomerID: "cus_acme", IssuedOn: month.AddMonths(-11).AddDays(4), AmountCents: decimal.NewFromInt(120000)},
		{CustomerID: "cus_initech", IssuedOn: month.AddMonths(-11).AddDays(20), AmountCents: decimal.NewFromInt(45000)},
		{CustomerID: "cus_acme", IssuedOn: month.AddMonths(-8), AmountCents: decimal.NewFromInt(98000)},
		{CustomerID: "cus_acme", IssuedOn: month.AddMonths(-7), AmountCents: decimal.NewFromInt(5000), Status: revenue.StatusDraft},
		{CustomerID: "cus_initech", IssuedOn: month.AddMonths(-4).AddDays(9), AmountCents: decimal.NewFromInt(64000)},
		{CustomerID: "cus_initech", IssuedOn: month.AddMonths(-4).AddDays(10), AmountCents: decimal.NewFromInt(64000), Status: revenue.StatusVoided},
		{CustomerID: "cus_acme", IssuedOn: month.AddMonths(-1), AmountCents: decimal.NewFromInt(131000)},
	}
	for i, inv := range invoices {
		inv.Currency = "USD"
		inv.Number = fmt.Sprintf("INV-%04d", i+1)
		if err := h.seedInvoice(ctx, inv); err != nil {
			return err
		}
	}

	return h.seedCharts(ctx,
		factory.GrossRevenueJSON("gross-revenue", "Gross revenue", "USD"),
		factory.InvoiceCountJSON("invoice-count", "Invoices issued"),
	)
}

func (h *Handler) loadMultiCurrencyScenario(ctx context.Context) error {
	if err := h.seedCustomers(ctx,
		usage.Customer{ID: "cus_acme", Name: "Acme Corp", Currency: "USD"},
		usage.Customer{ID: "cus_kraft", Name: "Kraftwerk GmbH", Currency: "EUR"},
		usage.Customer{ID: "cus_sakura", Name: "Sakura KK", Currency: "JPY"},
	); err != nil {
		return err
	}
	if err := h.seedMetrics(ctx); err != nil {
		return err
	}

	today := series.DateOf(h.now())
	var inputs []usage.EventInput
	for i := 0; i < 60; i += 2 {
		day := today.AddDays(-i)
		inputs = append(inputs,
			eventInput("cus_acme", "api_calls", day, 200, 400, fmt.Sprintf("mc-acme-%d", i)),
			eventInput("cus_kraft", "api_calls", day, 150, 330, fmt.Sprintf("mc-kraft-%d", i)),
			eventInput("cus_sakura", "api_calls", day, 300, 4500, fmt.Sprintf("mc-sakura-%d", i)),
		)
	}
	if _, err := h.Usage.Record(ctx, inputs); err != nil {
		return err
	}

	month := series.StartOf(series.Monthly, today)
	for i, inv := range []revenue.Invoice{
		{CustomerID: "cus_acme", Currency: "USD", IssuedOn: month.AddMonths(-1), AmountCents: decimal.NewFromInt(12000)},
		{CustomerID: "cus_kraft", Currency: "EUR", IssuedOn: month.AddMonths(-1), AmountCents: decimal.NewFromInt(9900)},
		{CustomerID: "cus_sakura", Currency: "JPY", IssuedOn: month.AddMonths(-1), AmountCents: decimal.NewFromInt(135000)},
	} {
		inv.Number = fmt.Sprintf("MC-%04d", i+1)
		if err := h.seedInvoice(ctx, inv); err != nil {
			return err
		}
	}

	return h.seedCharts(ctx,
		factory.GrossRevenueJSON("revenue-usd", "Revenue (USD)", "USD"),
		factory.GrossRevenueJSON("revenue-eur", "Revenue (EUR)", "EUR"),
		factory.GrossRevenueJSON("revenue-jpy", "Revenue (JPY)", "JPY"),
	)
}

// =============================================================================
// SEED HELPERS
// =============================================================================

func (h *Handler) seedCustomers(ctx context.Context, customers ...usage.Customer) error {
	for _, c := range customers {
		c.CreatedAt = h.now()
		if err := h.Store.SaveCustomer(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) seedMetrics(ctx context.Context) error {
	for _, m := range []usage.Metric{
		{Code: "api_calls", Name: "API calls", Aggregation: usage.AggregationSum},
		{Code: "seats", Name: "Seats", Aggregation: usage.AggregationMax},
		{Code: "logins", Name: "Logins", Aggregation: usage.AggregationCount},
	} {
		m.CreatedAt = h.now()
		if err := h.Store.SaveMetric(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) seedInvoice(ctx context.Context, inv revenue.Invoice) error {
	inv, err := revenue.Prepare(inv, h.now())
	if err != nil {
		return err
	}
	return h.Store.SaveInvoice(ctx, inv)
}

func (h *Handler) seedCharts(ctx context.Context, definitions ...string) error {
	for _, js := range definitions {
		chart, err := h.Charts.ParseChart(js)
		if err != nil {
			return err
		}
		chart.CreatedAt = h.now()
		if err := h.Store.SaveChart(ctx, *chart); err != nil {
			return err
		}
	}
	return nil
}

func eventInput(customerID, metric string, day series.Date, units, cents int64, key string) usage.EventInput {
	return usage.EventInput{
		CustomerID:     customerID,
		MetricCode:     metric,
		OccurredOn:     day,
		Units:          decimal.NewFromInt(units),
		AmountCents:    decimal.NewFromInt(cents),
		IdempotencyKey: key,
	}
}
