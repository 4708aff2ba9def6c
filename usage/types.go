// Package usage implements usage-based billing analytics.
// It records usage events, rolls them up into daily aggregates, and exposes
// them to the series engine as sparse period aggregates.
package usage

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/getlago/analytics-engine/series"
)

// =============================================================================
// CUSTOMERS & BILLABLE METRICS
// =============================================================================

type Customer struct {
	ID        string
	Name      string
	Currency  string
	CreatedAt time.Time
}

// Aggregation decides how a metric's units roll up within a day.
type Aggregation string

const (
	AggregationCount Aggregation = "count" // number of events
	AggregationSum   Aggregation = "sum"   // sum of event units
	AggregationMax   Aggregation = "max"   // largest event units
)

func (a Aggregation) Valid() bool {
	return a == AggregationCount || a == AggregationSum || a == AggregationMax
}

// Merge folds one daily units value into a period total. Max metrics keep
// the period's largest day; count and sum metrics add up.
func (a Aggregation) Merge(total, units decimal.Decimal) decimal.Decimal {
	if a == AggregationMax {
		return decimal.Max(total, units)
	}
	return total.Add(units)
}

// Metric is a billable metric.
type Metric struct {
	Code        string
	Name        string
	Aggregation Aggregation
	CreatedAt   time.Time
}

// =============================================================================
// EVENTS & AGGREGATES
// =============================================================================

// Event is one usage record. Events are append-only.
type Event struct {
	ID             string
	CustomerID     string
	MetricCode     string
	OccurredOn     series.Date
	Units          decimal.Decimal
	AmountCents    decimal.Decimal
	Currency       string
	IdempotencyKey string
	CreatedAt      time.Time
}

// DailyAggregate is the rollup of one customer/metric/currency/day.
type DailyAggregate struct {
	CustomerID  string
	MetricCode  string
	Day         series.Date
	Currency    string
	Units       decimal.Decimal
	AmountCents decimal.Decimal
	EventsCount int
}

// PeriodTotal is a sparse, bucketed usage total returned by a Store.
type PeriodTotal struct {
	Start       series.Date
	Units       decimal.Decimal
	AmountCents decimal.Decimal
	EventsCount int
}

// Filter narrows a usage query. Empty fields match everything.
type Filter struct {
	CustomerID  string
	MetricCode  string
	Currency    string
	Range       series.Range
	Granularity series.Granularity
	Aggregation Aggregation // how daily units merge into a bucket; empty sums
}

// RollupRun records one execution of the rollup job.
type RollupRun struct {
	ID          string
	Status      string // running, completed, failed
	Days        int
	Aggregates  int
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
}

const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrMetricNotFound   = errors.New("billable metric not found")
	ErrDuplicateEvent   = errors.New("duplicate event idempotency key")
	ErrInvalidEvent     = errors.New("invalid usage event")
)

// EventError reports which event of a batch failed validation.
type EventError struct {
	Index  int
	Reason string
	Err    error
}

func (e *EventError) Error() string {
	return fmt.Sprintf("event %d: %s", e.Index, e.Reason)
}

func (e *EventError) Unwrap() error {
	return e.Err
}

// IsClientError returns true if the error is due to invalid input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidEvent) ||
		errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrMetricNotFound)
}
