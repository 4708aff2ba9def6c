/*
series.go - Dense series endpoints

PURPOSE:
  Runs the chart pipeline for stored charts, ad hoc source queries and
  caller-supplied data:

    Source.Sparse -> series.DensifyAggregates -> series.Project

  Sparse entries that match no bucket start are not charted. They are
  logged, counted in metrics, and echoed back in the "dropped" field.

SEE ALSO:
  - query.go: Parameter defaults
  - series/densify.go, series/projection.go: The pipeline itself
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/getlago/analytics-engine/factory"
	"github.com/getlago/analytics-engine/format"
	"github.com/getlago/analytics-engine/metrics"
	"github.com/getlago/analytics-engine/series"
)

// =============================================================================
// PIPELINE
// =============================================================================

// pipeline describes one series computation.
type pipeline struct {
	sourceID  string
	params    SeriesParams
	emptyItem *series.Aggregate
	kind      factory.ValueKind
}

func (h *Handler) runSourcePipeline(ctx context.Context, p pipeline) (*SeriesResponse, error) {
	src, err := h.Registry.Lookup(p.sourceID)
	if err != nil {
		return nil, err
	}
	sparse, err := src.Sparse(ctx, p.params.Query())
	if err != nil {
		return nil, err
	}
	return h.densify(p, sparse)
}

func (h *Handler) densify(p pipeline, sparse []series.Aggregate) (*SeriesResponse, error) {
	s, err := series.DensifyAggregates(sparse, p.params.Range, p.params.Granularity, p.emptyItem)
	if err != nil {
		return nil, err
	}

	metrics.RecordSeries(p.sourceID, string(s.Granularity), s.Len(), len(s.Dropped))
	for _, d := range s.Dropped {
		h.log.WithFields(logrus.Fields{
			"source":          p.sourceID,
			"granularity":     s.Granularity,
			"start_of_period": d.StartOfPeriod.String(),
			"value":           d.Value.String(),
		}).Warn("sparse entry matches no bucket start")
	}

	formatter := format.New(p.params.Locale)
	if p.kind == factory.ValueCount {
		formatter = format.NewQuantity(p.params.Locale)
	}

	resp := &SeriesResponse{
		Source:      p.sourceID,
		Granularity: s.Granularity,
		DateRange:   s.Range.String(),
		Currency:    p.params.Currency,
		Buckets:     s.Buckets,
		Data:        s.Items,
		Dropped:     s.Dropped,
	}
	points, err := series.Project(s, p.params.Currency, formatter)
	if err != nil {
		// Cells that could not be formatted are blank; the series is still valid.
		h.log.WithError(err).WithField("source", p.sourceID).Warn("chart projection incomplete")
		resp.Warnings = strings.Split(err.Error(), "\n")
	}
	resp.Points = points
	return resp, nil
}

// =============================================================================
// CHART HANDLERS
// =============================================================================

// ListCharts returns all chart definitions.
func (h *Handler) ListCharts(w http.ResponseWriter, r *http.Request) {
	charts, err := h.Store.ListCharts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list charts", err)
		return
	}
	dtos := make([]ChartDTO, len(charts))
	for i := range charts {
		dtos[i] = h.toChartDTO(&charts[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateChart parses a chart definition and stores it.
// POST /api/charts with a factory.ChartJSON body.
func (h *Handler) CreateChart(w http.ResponseWriter, r *http.Request) {
	var cj factory.ChartJSON
	if err := json.NewDecoder(r.Body).Decode(&cj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid chart JSON", err)
		return
	}
	chart, err := h.Charts.FromJSON(cj)
	if err != nil {
		writeDomainError(w, "Invalid chart", err)
		return
	}
	chart.CreatedAt = h.now()
	if err := h.Store.SaveChart(r.Context(), *chart); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save chart", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toChartDTO(chart))
}

// GetChart returns a chart definition.
func (h *Handler) GetChart(w http.ResponseWriter, r *http.Request) {
	chart, err := h.Store.GetChart(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get chart", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toChartDTO(chart))
}

// DeleteChart removes a chart definition.
func (h *Handler) DeleteChart(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteChart(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete chart", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetChartData returns the dense series of a stored chart. Query
// parameters override the chart's granularity, currency and filters.
// GET /api/charts/{id}/data?date_range=2024-01-01,2024-03-31
func (h *Handler) GetChartData(w http.ResponseWriter, r *http.Request) {
	chart, err := h.Store.GetChart(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get chart", err)
		return
	}

	params, err := h.readSeriesParams(r, &SeriesParams{
		Granularity: chart.Granularity,
		Currency:    chart.Currency,
		Filters:     chart.Filters,
	})
	if err != nil {
		writeDomainError(w, "Invalid series parameters", err)
		return
	}

	resp, err := h.runSourcePipeline(r.Context(), pipeline{
		sourceID:  chart.Source,
		params:    params,
		emptyItem: chart.EmptyItem,
		kind:      chart.ValueKind,
	})
	if err != nil {
		writeDomainError(w, "Failed to build series", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) toChartDTO(c *factory.Chart) ChartDTO {
	dto := ChartDTO{ID: c.ID, Name: c.Name, Source: c.Source, Config: h.Charts.ToJSON(c)}
	if !c.CreatedAt.IsZero() {
		dto.CreatedAt = c.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// AD HOC SERIES HANDLERS
// =============================================================================

// ListSources returns the registered series sources.
// GET /api/analytics
func (h *Handler) ListSources(w http.ResponseWriter, r *http.Request) {
	sources := h.Registry.List()
	dtos := make([]SourceDTO, len(sources))
	for i, s := range sources {
		dtos[i] = SourceDTO{ID: s.ID(), Domain: s.Domain()}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAnalytics returns a dense series straight from a source.
// GET /api/analytics/{source}?granularity=weekly&customer_id=...
func (h *Handler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	params, err := h.readSeriesParams(r, nil)
	if err != nil {
		writeDomainError(w, "Invalid series parameters", err)
		return
	}

	kind := factory.ValueAmount
	if factory.ValueKind(r.URL.Query().Get("value_kind")) == factory.ValueCount {
		kind = factory.ValueCount
	}
	resp, err := h.runSourcePipeline(r.Context(), pipeline{
		sourceID: chi.URLParam(r, "source"),
		params:   params,
		kind:     kind,
	})
	if err != nil {
		writeDomainError(w, "Failed to build series", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// DensifySeries densifies the sparse data in the request body.
// POST /api/series/densify
func (h *Handler) DensifySeries(w http.ResponseWriter, r *http.Request) {
	var req DensifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	g, err := series.ParseGranularity(req.Granularity)
	if err != nil {
		writeDomainError(w, "Invalid granularity", err)
		return
	}
	rng, err := series.ParseRange(req.DateRange)
	if err != nil {
		writeDomainError(w, "Invalid date_range", err)
		return
	}
	params := SeriesParams{
		Range:       rng,
		Granularity: g,
		Currency:    strings.ToUpper(req.Currency),
		Locale:      req.Locale,
	}
	if params.Currency == "" {
		params.Currency = h.defaultCurrency
	}
	if params.Locale == "" {
		params.Locale = h.defaultLocale
	}

	resp, err := h.densify(pipeline{sourceID: "inline", params: params, emptyItem: req.EmptyItem, kind: factory.ValueAmount}, req.Data)
	if err != nil {
		writeDomainError(w, "Failed to densify series", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
