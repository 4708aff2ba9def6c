/*
handlers.go - HTTP API handlers for the analytics engine

PURPOSE:
  Exposes usage ingestion, invoices, chart definitions and dense analytics
  series via REST API. Handles HTTP request/response, JSON serialization,
  and delegates to domain logic.

ENDPOINTS:
  Customers & metrics:
    GET    /api/customers              List customers
    POST   /api/customers              Create customer
    GET    /api/customers/{id}         Get customer
    GET    /api/billable-metrics       List billable metrics
    POST   /api/billable-metrics       Create billable metric

  Usage & revenue:
    POST   /api/events                 Record usage events (rate limited)
    GET    /api/invoices               List invoices
    POST   /api/invoices               Create invoice

  Charts & series (series.go):
    GET    /api/charts                 List chart definitions
    POST   /api/charts                 Create chart from JSON
    GET    /api/charts/{id}            Get chart definition
    DELETE /api/charts/{id}            Delete chart definition
    GET    /api/charts/{id}/data       Dense series for a chart
    GET    /api/analytics              List series sources
    GET    /api/analytics/{source}     Ad hoc dense series
    POST   /api/series/densify         Densify caller-supplied data

  Admin:
    POST   /api/admin/rollup           Run the usage rollup now
    GET    /api/admin/rollup/runs      Recent rollup runs

ERROR HANDLING:
  Errors are returned as JSON {error, details} with HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (idempotency key, invoice number)
  - 429: Rate limit exceeded
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - series.go: Series pipeline handlers
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/getlago/analytics-engine/factory"
	"github.com/getlago/analytics-engine/metrics"
	"github.com/getlago/analytics-engine/revenue"
	"github.com/getlago/analytics-engine/series"
	"github.com/getlago/analytics-engine/usage"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is everything the API persists. Implemented by store/sqlite and
// store/memory.
type Store interface {
	usage.Store
	revenue.Store
	factory.ChartStore
}

// resetter is implemented by stores that can drop all data.
type resetter interface {
	Reset(ctx context.Context) error
}

// Options configures a Handler.
type Options struct {
	DefaultCurrency string
	DefaultLocale   string
	Logger          logrus.FieldLogger
	Now             func() time.Time
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    Store
	Usage    *usage.Service
	Registry *series.Registry
	Charts   *factory.ChartFactory

	log             logrus.FieldLogger
	now             func() time.Time
	defaultCurrency string
	defaultLocale   string

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a handler and registers the built-in series sources.
func NewHandler(store Store, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "USD"
	}
	if opts.DefaultLocale == "" {
		opts.DefaultLocale = "en"
	}

	registry := series.NewRegistry()
	registry.Register(usage.NewUsageSource(store))
	registry.Register(usage.NewMetricUsageSource(store))
	registry.Register(revenue.NewGrossRevenueSource(store))
	registry.Register(revenue.NewInvoiceCountSource(store))

	return &Handler{
		Store:           store,
		Usage:           usage.NewService(store, usage.WithClock(opts.Now), usage.WithLogger(opts.Logger)),
		Registry:        registry,
		Charts:          factory.NewChartFactory(registry),
		log:             opts.Logger,
		now:             opts.Now,
		defaultCurrency: strings.ToUpper(opts.DefaultCurrency),
		defaultLocale:   opts.DefaultLocale,
	}
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// ListCustomers returns all customers.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.Store.ListCustomers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list customers", err)
		return
	}
	dtos := make([]CustomerDTO, len(customers))
	for i, c := range customers {
		dtos[i] = toCustomerDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCustomer creates or updates a customer.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}
	if req.Currency == "" {
		req.Currency = h.defaultCurrency
	}

	c := usage.Customer{ID: req.ID, Name: req.Name, Currency: strings.ToUpper(req.Currency), CreatedAt: h.now()}
	if err := h.Store.SaveCustomer(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save customer", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(c))
}

// GetCustomer returns a single customer.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.Store.GetCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get customer", err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(*c))
}

// =============================================================================
// BILLABLE METRIC HANDLERS
// =============================================================================

// ListMetrics returns all billable metrics.
func (h *Handler) ListMetrics(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListMetrics(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list billable metrics", err)
		return
	}
	dtos := make([]MetricDTO, len(list))
	for i, m := range list {
		dtos[i] = toMetricDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateMetric creates or updates a billable metric.
func (h *Handler) CreateMetric(w http.ResponseWriter, r *http.Request) {
	var req CreateMetricRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required", nil)
		return
	}
	agg := usage.Aggregation(strings.ToLower(req.Aggregation))
	if agg == "" {
		agg = usage.AggregationSum
	}
	if !agg.Valid() {
		writeError(w, http.StatusBadRequest, "aggregation must be count, sum or max", nil)
		return
	}
	if req.Name == "" {
		req.Name = req.Code
	}

	m := usage.Metric{Code: req.Code, Name: req.Name, Aggregation: agg, CreatedAt: h.now()}
	if err := h.Store.SaveMetric(r.Context(), m); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save billable metric", err)
		return
	}
	writeJSON(w, http.StatusCreated, toMetricDTO(m))
}

// =============================================================================
// EVENT HANDLERS
// =============================================================================

// RecordEvents ingests a batch of usage events atomically.
// POST /api/events
func (h *Handler) RecordEvents(w http.ResponseWriter, r *http.Request) {
	var req RecordEventsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	inputs := req.Events
	if req.Event != nil {
		inputs = append([]usage.EventInput{*req.Event}, inputs...)
	}

	events, err := h.Usage.Record(r.Context(), inputs)
	if err != nil {
		switch {
		case errors.Is(err, usage.ErrDuplicateEvent):
			metrics.RecordIngestion("duplicate", len(inputs))
		case usage.IsClientError(err):
			metrics.RecordIngestion("invalid", len(inputs))
		}
		writeDomainError(w, "Failed to record events", err)
		return
	}
	metrics.RecordIngestion("accepted", len(events))

	dtos := make([]EventDTO, len(events))
	for i, e := range events {
		dtos[i] = toEventDTO(e)
	}
	writeJSON(w, http.StatusCreated, dtos)
}

// =============================================================================
// INVOICE HANDLERS
// =============================================================================

// ListInvoices returns invoices, optionally for one customer.
// GET /api/invoices?customer_id=...
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.Store.ListInvoices(r.Context(), r.URL.Query().Get("customer_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list invoices", err)
		return
	}
	if invoices == nil {
		invoices = []revenue.Invoice{}
	}
	writeJSON(w, http.StatusOK, invoices)
}

// CreateInvoice validates and stores an invoice.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	ctx := r.Context()

	inv := req.toInvoice()
	if inv.CustomerID != "" && inv.Currency == "" {
		if c, err := h.Store.GetCustomer(ctx, inv.CustomerID); err == nil {
			inv.Currency = c.Currency
		}
	}
	inv, err := revenue.Prepare(inv, h.now())
	if err != nil {
		writeDomainError(w, "Invalid invoice", err)
		return
	}
	if _, err := h.Store.GetCustomer(ctx, inv.CustomerID); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid invoice", err)
		return
	}
	if err := h.Store.SaveInvoice(ctx, inv); err != nil {
		writeDomainError(w, "Failed to save invoice", err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

// =============================================================================
// ROLLUP HANDLERS
// =============================================================================

// TriggerRollup runs the usage rollup synchronously.
// POST /api/admin/rollup
func (h *Handler) TriggerRollup(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	run, err := h.Usage.RunRollup(r.Context())
	if run != nil {
		metrics.RecordRollup(run.Status, time.Since(start))
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Rollup failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toRollupRunDTO(*run))
}

// ListRollupRuns returns recent rollup runs, newest first.
// GET /api/admin/rollup/runs?limit=20
func (h *Handler) ListRollupRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
		limit = n
	}

	runs, err := h.Store.ListRollupRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rollup runs", err)
		return
	}
	dtos := make([]RollupRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRollupRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, usage.ErrDuplicateEvent),
		errors.Is(err, revenue.ErrDuplicateNumber):
		return http.StatusConflict
	case errors.Is(err, usage.ErrMetricNotFound) && !isEventError(err),
		errors.Is(err, usage.ErrCustomerNotFound) && !isEventError(err),
		errors.Is(err, factory.ErrChartNotFound),
		errors.Is(err, revenue.ErrInvoiceNotFound),
		series.IsNotFound(err):
		return http.StatusNotFound
	case usage.IsClientError(err),
		errors.Is(err, revenue.ErrInvalidInvoice),
		errors.Is(err, factory.ErrInvalidChart),
		series.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// isEventError reports whether err came from validating an event batch.
// Unknown references inside a batch are bad input, not missing resources.
func isEventError(err error) bool {
	var evErr *usage.EventError
	return errors.As(err, &evErr)
}
