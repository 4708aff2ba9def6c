/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in handlers and domain packages, not in DTOs.

SEE ALSO:
  - handlers.go, series.go: Use these types
  - factory/chart.go: ChartJSON type
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/getlago/analytics-engine/factory"
	"github.com/getlago/analytics-engine/revenue"
	"github.com/getlago/analytics-engine/series"
	"github.com/getlago/analytics-engine/usage"
)

// =============================================================================
// CUSTOMERS & METRICS
// =============================================================================

type CustomerDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Currency  string `json:"currency"`
	CreatedAt string `json:"created_at,omitempty"`
}

type CreateCustomerRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

type MetricDTO struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Aggregation string `json:"aggregation"`
}

type CreateMetricRequest struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Aggregation string `json:"aggregation"`
}

func toCustomerDTO(c usage.Customer) CustomerDTO {
	dto := CustomerDTO{ID: c.ID, Name: c.Name, Currency: c.Currency}
	if !c.CreatedAt.IsZero() {
		dto.CreatedAt = c.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toMetricDTO(m usage.Metric) MetricDTO {
	return MetricDTO{Code: m.Code, Name: m.Name, Aggregation: string(m.Aggregation)}
}

// =============================================================================
// EVENTS
// =============================================================================

// RecordEventsRequest accepts a batch; a single event may be sent as "event".
type RecordEventsRequest struct {
	Event  *usage.EventInput  `json:"event,omitempty"`
	Events []usage.EventInput `json:"events,omitempty"`
}

type EventDTO struct {
	ID             string          `json:"id"`
	CustomerID     string          `json:"customer_id"`
	MetricCode     string          `json:"metric_code"`
	OccurredOn     series.Date     `json:"occurred_on"`
	Units          decimal.Decimal `json:"units"`
	AmountCents    decimal.Decimal `json:"amount_cents"`
	Currency       string          `json:"currency"`
	IdempotencyKey string          `json:"idempotency_key"`
	CreatedAt      string          `json:"created_at"`
}

func toEventDTO(e usage.Event) EventDTO {
	return EventDTO{
		ID:             e.ID,
		CustomerID:     e.CustomerID,
		MetricCode:     e.MetricCode,
		OccurredOn:     e.OccurredOn,
		Units:          e.Units,
		AmountCents:    e.AmountCents,
		Currency:       e.Currency,
		IdempotencyKey: e.IdempotencyKey,
		CreatedAt:      e.CreatedAt.Format(time.RFC3339Nano),
	}
}

// =============================================================================
// INVOICES
// =============================================================================

type CreateInvoiceRequest struct {
	Number      string          `json:"number"`
	CustomerID  string          `json:"customer_id"`
	IssuedOn    series.Date     `json:"issued_on"`
	Currency    string          `json:"currency"`
	AmountCents decimal.Decimal `json:"amount_cents"`
	Status      string          `json:"status"`
}

func (r CreateInvoiceRequest) toInvoice() revenue.Invoice {
	return revenue.Invoice{
		Number:      r.Number,
		CustomerID:  r.CustomerID,
		IssuedOn:    r.IssuedOn,
		Currency:    r.Currency,
		AmountCents: r.AmountCents,
		Status:      revenue.Status(r.Status),
	}
}

// =============================================================================
// CHARTS
// =============================================================================

type ChartDTO struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Source    string            `json:"source"`
	Config    factory.ChartJSON `json:"config"`
	CreatedAt string            `json:"created_at,omitempty"`
}

// =============================================================================
// SERIES
// =============================================================================

// SeriesResponse is a densified series with its chart projection.
type SeriesResponse struct {
	Source      string              `json:"source,omitempty"`
	Granularity series.Granularity  `json:"granularity"`
	DateRange   string              `json:"date_range"`
	Currency    string              `json:"currency,omitempty"`
	Buckets     []series.Bucket     `json:"buckets"`
	Data        []series.Aggregate  `json:"data"`
	Points      []series.ChartPoint `json:"points"`
	Dropped     []series.Aggregate  `json:"dropped,omitempty"`
	Warnings    []string            `json:"warnings,omitempty"`
}

// DensifyRequest densifies caller-supplied sparse data.
type DensifyRequest struct {
	DateRange   string             `json:"date_range"`
	Granularity string             `json:"granularity"`
	Currency    string             `json:"currency"`
	Locale      string             `json:"locale"`
	Data        []series.Aggregate `json:"data"`
	EmptyItem   *series.Aggregate  `json:"empty_item,omitempty"`
}

type SourceDTO struct {
	ID     string `json:"id"`
	Domain string `json:"domain"`
}

// =============================================================================
// ROLLUP & SCENARIOS
// =============================================================================

type RollupRunDTO struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Days        int    `json:"days"`
	Aggregates  int    `json:"aggregates"`
	Error       string `json:"error,omitempty"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at,omitempty"`
}

func toRollupRunDTO(r usage.RollupRun) RollupRunDTO {
	dto := RollupRunDTO{
		ID:         r.ID,
		Status:     r.Status,
		Days:       r.Days,
		Aggregates: r.Aggregates,
		Error:      r.Error,
		StartedAt:  r.StartedAt.Format(time.RFC3339),
	}
	if r.CompletedAt != nil {
		dto.CompletedAt = r.CompletedAt.Format(time.RFC3339)
	}
	return dto
}

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
