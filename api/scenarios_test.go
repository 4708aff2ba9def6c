package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getlago/analytics-engine/store/sqlite"
)

func newSQLiteTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger, hook := test.NewNullLogger()
	h := NewHandler(store, Options{Logger: logger, Now: func() time.Time { return testNow }})
	return &testServer{handler: h, router: NewRouter(h, RouterOptions{}), logs: hook}
}

func loadScenario(t *testing.T, ts *testServer, id string) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestListScenarios(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})
	rec := ts.do(t, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ScenarioDTO](t, rec), len(scenarios))
}

func TestLoadScenario_SteadyUsage(t *testing.T) {
	// GIVEN: The steady usage scenario on SQLite
	ts := newSQLiteTestServer(t)
	loadScenario(t, ts, "steady-usage")

	// THEN: It is reported as current
	rec := ts.do(t, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "steady-usage", decode[ScenarioDTO](t, rec).ID)

	// AND: The preset chart has usage only in the last 90 days
	rec = ts.do(t, http.MethodGet, "/api/charts/acme-usage/data", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[SeriesResponse](t, rec)
	require.Len(t, resp.Data, 12)
	assert.True(t, resp.Data[0].Value.IsZero())
	assert.True(t, resp.Data[11].Value.IsPositive())

	// AND: The weekly metric chart counts calls, not cents
	rec = ts.do(t, http.MethodGet, "/api/charts/api-calls-weekly/data", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	weekly := decode[SeriesResponse](t, rec)
	require.Len(t, weekly.Data, 12)
	assert.NotContains(t, weekly.Points[11].Value, "$")

	rec = ts.do(t, http.MethodGet, "/api/admin/rollup/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]RollupRunDTO](t, rec), 1)
}

func TestLoadScenario_SparseRevenue(t *testing.T) {
	ts := newSQLiteTestServer(t)
	loadScenario(t, ts, "sparse-revenue")

	rec := ts.do(t, http.MethodGet, "/api/charts/gross-revenue/data", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[SeriesResponse](t, rec)

	// April 2023 through March 2024; drafts and voids are not revenue.
	want := map[int]int64{0: 165000, 3: 98000, 4: 0, 7: 64000, 10: 131000, 11: 0}
	require.Len(t, resp.Data, 12)
	for i, cents := range want {
		assert.True(t, resp.Data[i].Value.Equal(decimal.NewFromInt(cents)), "month %d: %s", i, resp.Data[i].Value)
	}
	assert.Equal(t, "$1,650.00", resp.Points[0].Value)
}

func TestLoadScenario_MultiCurrency(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})
	loadScenario(t, ts, "multi-currency")

	rec := ts.do(t, http.MethodGet, "/api/charts/revenue-jpy/data", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[SeriesResponse](t, rec)

	assert.Equal(t, "JPY", resp.Currency)
	require.Len(t, resp.Points, 12)
	assert.Equal(t, "¥135,000", resp.Points[10].Value)
	assert.Equal(t, "¥0", resp.Points[11].Value)

	// USD usage excludes the EUR and JPY customers.
	rec = ts.do(t, http.MethodGet, "/api/analytics/usage?granularity=daily&date_range=2024-03-13,2024-03-13", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	daily := decode[SeriesResponse](t, rec)
	require.Len(t, daily.Data, 1)
	assert.True(t, daily.Data[0].Value.Equal(decimal.NewFromInt(400)))
}

func TestLoadScenario_ReplacesPreviousData(t *testing.T) {
	// GIVEN: One scenario loaded
	ts := newSQLiteTestServer(t)
	loadScenario(t, ts, "steady-usage")

	// WHEN: Loading another
	loadScenario(t, ts, "sparse-revenue")

	// THEN: Only its charts remain
	rec := ts.do(t, http.MethodGet, "/api/charts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	charts := decode[[]ChartDTO](t, rec)
	require.Len(t, charts, 2)
	assert.Equal(t, "gross-revenue", charts[0].ID)
}

func TestLoadScenario_UnknownAndReset(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})

	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	loadScenario(t, ts, "multi-currency")
	rec = ts.do(t, http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/customers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]CustomerDTO](t, rec))

	rec = ts.do(t, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null\n", rec.Body.String())
}
