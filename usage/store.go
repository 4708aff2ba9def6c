package usage

import (
	"context"
	"time"

	"github.com/getlago/analytics-engine/series"
)

// Store persists usage data. Implemented by store/sqlite and store/memory.
//
// Events are append-only: AppendEvents is the only event write, and it is
// atomic. A batch containing an idempotency key that already exists (or two
// events sharing one) is rejected as a whole with ErrDuplicateEvent.
type Store interface {
	SaveCustomer(ctx context.Context, c Customer) error
	GetCustomer(ctx context.Context, id string) (*Customer, error)
	ListCustomers(ctx context.Context) ([]Customer, error)

	SaveMetric(ctx context.Context, m Metric) error
	GetMetric(ctx context.Context, code string) (*Metric, error)
	ListMetrics(ctx context.Context) ([]Metric, error)

	AppendEvents(ctx context.Context, events []Event) error

	// DirtyDays returns the distinct days of events created at or after since.
	DirtyDays(ctx context.Context, since time.Time) ([]series.Date, error)
	EventsOn(ctx context.Context, day series.Date) ([]Event, error)

	// ReplaceDailyAggregates swaps every aggregate of day for aggs atomically.
	ReplaceDailyAggregates(ctx context.Context, day series.Date, aggs []DailyAggregate) error

	// SparseUsage sums daily aggregates per bucket start. Buckets with no
	// aggregates are absent; results are ordered by Start.
	SparseUsage(ctx context.Context, f Filter) ([]PeriodTotal, error)

	SaveRollupRun(ctx context.Context, run RollupRun) error
	LastCompletedRollup(ctx context.Context) (*RollupRun, error)
	ListRollupRuns(ctx context.Context, limit int) ([]RollupRun, error)
}
