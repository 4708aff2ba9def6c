/*
service.go - Usage ingestion and rollup orchestration

PURPOSE:
  Validates and records usage events, and recomputes daily aggregates for
  every day touched by new events.

INGESTION:
  Record validates a whole batch before writing anything:
  1. Customer and billable metric must exist
  2. Units and amounts must not be negative
  3. Currency defaults to the customer's currency
  4. Idempotency keys must be unique within the batch
  The store rejects keys that were already recorded.

ROLLUP:
  RunRollup finds days with events created since the last completed run,
  rebuilds those days from their raw events, and records a RollupRun.
  Rebuilding a whole day keeps the rollup idempotent: running it twice
  produces the same aggregates.

SEE ALSO:
  - rollup.go: Pure daily aggregation
  - store.go: Store interface
  - api/scheduler.go: Periodic rollup
*/
package usage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/getlago/analytics-engine/series"
)

// EventInput is an event as submitted by a client.
type EventInput struct {
	CustomerID     string          `json:"customer_id"`
	MetricCode     string          `json:"metric_code"`
	OccurredOn     series.Date     `json:"occurred_on"`
	Units          decimal.Decimal `json:"units"`
	AmountCents    decimal.Decimal `json:"amount_cents"`
	Currency       string          `json:"currency,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// Service records usage and runs rollups.
type Service struct {
	store Store
	now   func() time.Time
	log   logrus.FieldLogger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger used for rollup runs.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Service) { s.log = log }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// INGESTION
// =============================================================================

// Record validates inputs and appends them as one atomic batch.
func (s *Service) Record(ctx context.Context, inputs []EventInput) ([]Event, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no events", ErrInvalidEvent)
	}

	customers := make(map[string]*Customer)
	metrics := make(map[string]*Metric)
	seenKeys := make(map[string]int, len(inputs))
	now := s.now().UTC()

	events := make([]Event, 0, len(inputs))
	for i, in := range inputs {
		if in.CustomerID == "" {
			return nil, &EventError{Index: i, Reason: "customer_id is required", Err: ErrInvalidEvent}
		}
		if in.MetricCode == "" {
			return nil, &EventError{Index: i, Reason: "metric_code is required", Err: ErrInvalidEvent}
		}
		if in.OccurredOn.IsZero() {
			return nil, &EventError{Index: i, Reason: "occurred_on is required", Err: ErrInvalidEvent}
		}
		if in.Units.IsNegative() || in.AmountCents.IsNegative() {
			return nil, &EventError{Index: i, Reason: "units and amount_cents must not be negative", Err: ErrInvalidEvent}
		}

		cust, ok := customers[in.CustomerID]
		if !ok {
			c, err := s.store.GetCustomer(ctx, in.CustomerID)
			if err != nil {
				return nil, &EventError{Index: i, Reason: fmt.Sprintf("customer %q", in.CustomerID), Err: err}
			}
			cust = c
			customers[in.CustomerID] = c
		}
		if _, ok := metrics[in.MetricCode]; !ok {
			m, err := s.store.GetMetric(ctx, in.MetricCode)
			if err != nil {
				return nil, &EventError{Index: i, Reason: fmt.Sprintf("metric %q", in.MetricCode), Err: err}
			}
			metrics[in.MetricCode] = m
		}

		id := ulid.Make().String()
		key := in.IdempotencyKey
		if key == "" {
			key = id
		}
		if first, dup := seenKeys[key]; dup {
			return nil, &EventError{
				Index:  i,
				Reason: fmt.Sprintf("idempotency key %q repeats event %d", key, first),
				Err:    ErrDuplicateEvent,
			}
		}
		seenKeys[key] = i

		currency := strings.ToUpper(in.Currency)
		if currency == "" {
			currency = cust.Currency
		}

		events = append(events, Event{
			ID:             id,
			CustomerID:     in.CustomerID,
			MetricCode:     in.MetricCode,
			OccurredOn:     in.OccurredOn,
			Units:          in.Units,
			AmountCents:    in.AmountCents,
			Currency:       currency,
			IdempotencyKey: key,
			CreatedAt:      now,
		})
	}

	if err := s.store.AppendEvents(ctx, events); err != nil {
		return nil, err
	}
	return events, nil
}

// =============================================================================
// ROLLUP
// =============================================================================

// RunRollup rebuilds daily aggregates for every day with new events.
func (s *Service) RunRollup(ctx context.Context) (*RollupRun, error) {
	run := RollupRun{
		ID:        ulid.Make().String(),
		Status:    RunRunning,
		StartedAt: s.now().UTC(),
	}
	if err := s.store.SaveRollupRun(ctx, run); err != nil {
		return nil, fmt.Errorf("save rollup run: %w", err)
	}

	days, aggs, err := s.rollupSince(ctx)
	completed := s.now().UTC()
	run.CompletedAt = &completed
	run.Days = days
	run.Aggregates = aggs
	if err != nil {
		run.Status = RunFailed
		run.Error = err.Error()
	} else {
		run.Status = RunCompleted
	}

	if saveErr := s.store.SaveRollupRun(ctx, run); saveErr != nil {
		return &run, fmt.Errorf("save rollup run: %w", saveErr)
	}

	log := s.log.WithFields(logrus.Fields{
		"run_id":     run.ID,
		"days":       run.Days,
		"aggregates": run.Aggregates,
		"duration":   completed.Sub(run.StartedAt).String(),
	})
	if err != nil {
		log.WithError(err).Error("usage rollup failed")
		return &run, err
	}
	log.Info("usage rollup completed")
	return &run, nil
}

func (s *Service) rollupSince(ctx context.Context) (int, int, error) {
	var since time.Time
	last, err := s.store.LastCompletedRollup(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("load last rollup: %w", err)
	}
	if last != nil {
		// Events created while the last run was in flight are picked up again.
		since = last.StartedAt
	}

	days, err := s.store.DirtyDays(ctx, since)
	if err != nil {
		return 0, 0, fmt.Errorf("dirty days: %w", err)
	}

	metrics, err := s.metricIndex(ctx)
	if err != nil {
		return 0, 0, err
	}

	total := 0
	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return 0, total, err
		}
		events, err := s.store.EventsOn(ctx, day)
		if err != nil {
			return 0, total, fmt.Errorf("events on %s: %w", day, err)
		}
		aggs := Rollup(events, metrics)
		if err := s.store.ReplaceDailyAggregates(ctx, day, aggs); err != nil {
			return 0, total, fmt.Errorf("replace aggregates for %s: %w", day, err)
		}
		total += len(aggs)
	}
	return len(days), total, nil
}

func (s *Service) metricIndex(ctx context.Context) (map[string]Metric, error) {
	list, err := s.store.ListMetrics(ctx)
	if err != nil {
		return nil, fmt.Errorf("list metrics: %w", err)
	}
	out := make(map[string]Metric, len(list))
	for _, m := range list {
		out[m.Code] = m
	}
	return out, nil
}
