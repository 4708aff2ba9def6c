/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements usage.Store, revenue.Store and factory.ChartStore on SQLite.
  Sparse period queries bucket rows in SQL, so only periods that actually
  have data are returned; the series package fills the gaps.

KEY TABLES:
  customers:         Billed customers (default currency)
  billable_metrics:  Metric code + aggregation type
  usage_events:      Append-only raw usage (idempotency_key UNIQUE)
  daily_aggregates:  Rollup output, one row per customer/metric/day/currency
  invoices:          Issued invoices (number UNIQUE)
  charts:            Chart definitions (config_json)
  rollup_runs:       Rollup job bookkeeping

BUCKETING:
  Days are stored as YYYY-MM-DD text. Bucket starts are computed in SQL:
    daily    day
    weekly   date(day, 'weekday 0', '-6 days')   ISO week, Monday start
    monthly  strftime('%Y-%m-01', day)
  These must agree with series.StartOf; sqlite_test.go checks that they do.

DECIMALS:
  Units and amounts are stored as decimal text and summed in Go with
  shopspring/decimal. SQLite's SUM would go through floating point.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. ":memory:" databases are pinned to
  one connection, since each connection would otherwise get its own empty
  database.

USAGE:
  store, err := sqlite.New("./data/analytics.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - usage/store.go, revenue/revenue.go, factory/chart.go: Interfaces
  - store/memory/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/getlago/analytics-engine/factory"
	"github.com/getlago/analytics-engine/revenue"
	"github.com/getlago/analytics-engine/series"
	"github.com/getlago/analytics-engine/usage"
)

// timeLayout sorts lexicographically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		currency TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS billable_metrics (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		aggregation TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Usage events (append-only)
	CREATE TABLE IF NOT EXISTS usage_events (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customers(id),
		metric_code TEXT NOT NULL REFERENCES billable_metrics(code),
		occurred_on TEXT NOT NULL,
		units TEXT NOT NULL,
		amount_cents TEXT NOT NULL,
		currency TEXT NOT NULL,
		idempotency_key TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_usage_events_occurred_on
		ON usage_events(occurred_on);
	CREATE INDEX IF NOT EXISTS idx_usage_events_created_at
		ON usage_events(created_at);

	-- Rollup output, rebuilt one day at a time
	CREATE TABLE IF NOT EXISTS daily_aggregates (
		customer_id TEXT NOT NULL,
		metric_code TEXT NOT NULL,
		day TEXT NOT NULL,
		currency TEXT NOT NULL,
		units TEXT NOT NULL,
		amount_cents TEXT NOT NULL,
		events_count INTEGER NOT NULL,
		PRIMARY KEY (customer_id, metric_code, day, currency)
	);

	CREATE INDEX IF NOT EXISTS idx_daily_aggregates_day
		ON daily_aggregates(day);

	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL UNIQUE,
		customer_id TEXT NOT NULL,
		issued_on TEXT NOT NULL,
		currency TEXT NOT NULL,
		amount_cents TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_issued_on
		ON invoices(issued_on) WHERE status = 'finalized';

	CREATE TABLE IF NOT EXISTS charts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		source TEXT NOT NULL,
		config_json TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rollup_runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		days INTEGER NOT NULL DEFAULT 0,
		aggregates INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (s *Store) SaveCustomer(ctx context.Context, c usage.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, currency, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, currency = excluded.currency`,
		c.ID, c.Name, c.Currency, formatTime(c.CreatedAt),
	)
	return err
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*usage.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c usage.Customer
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, currency, created_at FROM customers WHERE id = ?", id,
	).Scan(&c.ID, &c.Name, &c.Currency, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, usage.ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]usage.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, currency, created_at FROM customers ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []usage.Customer
	for rows.Next() {
		var c usage.Customer
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.Currency, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTime(createdAt)
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// =============================================================================
// BILLABLE METRICS
// =============================================================================

func (s *Store) SaveMetric(ctx context.Context, m usage.Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO billable_metrics (code, name, aggregation, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET name = excluded.name, aggregation = excluded.aggregation`,
		m.Code, m.Name, string(m.Aggregation), formatTime(m.CreatedAt),
	)
	return err
}

func (s *Store) GetMetric(ctx context.Context, code string) (*usage.Metric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var m usage.Metric
	var aggregation, createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT code, name, aggregation, created_at FROM billable_metrics WHERE code = ?", code,
	).Scan(&m.Code, &m.Name, &aggregation, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, usage.ErrMetricNotFound
	}
	if err != nil {
		return nil, err
	}
	m.Aggregation = usage.Aggregation(aggregation)
	m.CreatedAt = parseTime(createdAt)
	return &m, nil
}

func (s *Store) ListMetrics(ctx context.Context) ([]usage.Metric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT code, name, aggregation, created_at FROM billable_metrics ORDER BY code")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metrics []usage.Metric
	for rows.Next() {
		var m usage.Metric
		var aggregation, createdAt string
		if err := rows.Scan(&m.Code, &m.Name, &aggregation, &createdAt); err != nil {
			return nil, err
		}
		m.Aggregation = usage.Aggregation(aggregation)
		m.CreatedAt = parseTime(createdAt)
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// =============================================================================
// USAGE EVENTS (append-only)
// =============================================================================

// AppendEvents inserts events in one transaction. Any idempotency key
// conflict rolls back the whole batch.
func (s *Store) AppendEvents(ctx context.Context, events []usage.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	query := `
		INSERT INTO usage_events
		(id, customer_id, metric_code, occurred_on, units, amount_cents, currency, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, e := range events {
		_, err := sqlTx.ExecContext(ctx, query,
			e.ID, e.CustomerID, e.MetricCode, e.OccurredOn.String(),
			e.Units.String(), e.AmountCents.String(), e.Currency,
			e.IdempotencyKey, formatTime(e.CreatedAt),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return usage.ErrDuplicateEvent
			}
			return fmt.Errorf("failed to append event: %w", err)
		}
	}
	return sqlTx.Commit()
}

func (s *Store) DirtyDays(ctx context.Context, since time.Time) ([]series.Date, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT occurred_on FROM usage_events WHERE created_at >= ? ORDER BY occurred_on",
		formatTime(since),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDates(rows)
}

func (s *Store) EventsOn(ctx context.Context, day series.Date) ([]usage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, metric_code, occurred_on, units, amount_cents, currency, idempotency_key, created_at
		FROM usage_events WHERE occurred_on = ? ORDER BY id`,
		day.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []usage.Event
	for rows.Next() {
		var e usage.Event
		var occurredOn, units, amount, createdAt string
		if err := rows.Scan(&e.ID, &e.CustomerID, &e.MetricCode, &occurredOn,
			&units, &amount, &e.Currency, &e.IdempotencyKey, &createdAt); err != nil {
			return nil, err
		}
		if e.OccurredOn, err = series.ParseDate(occurredOn); err != nil {
			return nil, err
		}
		if e.Units, err = decimal.NewFromString(units); err != nil {
			return nil, fmt.Errorf("event %s units: %w", e.ID, err)
		}
		if e.AmountCents, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("event %s amount: %w", e.ID, err)
		}
		e.CreatedAt = parseTime(createdAt)
		events = append(events, e)
	}
	return events, rows.Err()
}

// =============================================================================
// DAILY AGGREGATES
// =============================================================================

func (s *Store) ReplaceDailyAggregates(ctx context.Context, day series.Date, aggs []usage.DailyAggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM daily_aggregates WHERE day = ?", day.String()); err != nil {
		return err
	}
	for _, a := range aggs {
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO daily_aggregates (customer_id, metric_code, day, currency, units, amount_cents, events_count)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			a.CustomerID, a.MetricCode, day.String(), a.Currency,
			a.Units.String(), a.AmountCents.String(), a.EventsCount,
		)
		if err != nil {
			return fmt.Errorf("failed to insert aggregate: %w", err)
		}
	}
	return sqlTx.Commit()
}

// SparseUsage merges daily aggregates per bucket start. Amounts and event
// counts sum; units follow f.Aggregation.
func (s *Store) SparseUsage(ctx context.Context, f usage.Filter) ([]usage.PeriodTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket, err := bucketExpr(f.Granularity, "day")
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + bucket + ` AS bucket, units, amount_cents, events_count
		FROM daily_aggregates
		WHERE day >= ? AND day <= ?
		  AND (? = '' OR customer_id = ?)
		  AND (? = '' OR metric_code = ?)
		  AND (? = '' OR currency = ?)
		ORDER BY bucket`

	rows, err := s.db.QueryContext(ctx, query,
		f.Range.Start.String(), f.Range.End.String(),
		f.CustomerID, f.CustomerID,
		f.MetricCode, f.MetricCode,
		f.Currency, f.Currency,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []usage.PeriodTotal
	for rows.Next() {
		var start, units, amount string
		var count int
		if err := rows.Scan(&start, &units, &amount, &count); err != nil {
			return nil, err
		}
		d, err := series.ParseDate(start)
		if err != nil {
			return nil, err
		}
		u, err := decimal.NewFromString(units)
		if err != nil {
			return nil, err
		}
		a, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, err
		}
		if n := len(out); n == 0 || !out[n-1].Start.Equal(d) {
			out = append(out, usage.PeriodTotal{Start: d, Units: decimal.Zero, AmountCents: decimal.Zero})
		}
		last := &out[len(out)-1]
		last.Units = f.Aggregation.Merge(last.Units, u)
		last.AmountCents = last.AmountCents.Add(a)
		last.EventsCount += count
	}
	return out, rows.Err()
}

// =============================================================================
// ROLLUP RUNS
// =============================================================================

func (s *Store) SaveRollupRun(ctx context.Context, run usage.RollupRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var completedAt sql.NullString
	if run.CompletedAt != nil {
		completedAt = sql.NullString{String: formatTime(*run.CompletedAt), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rollup_runs (id, status, days, aggregates, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			days = excluded.days,
			aggregates = excluded.aggregates,
			error = excluded.error,
			completed_at = excluded.completed_at`,
		run.ID, run.Status, run.Days, run.Aggregates, nullString(run.Error),
		formatTime(run.StartedAt), completedAt,
	)
	return err
}

func (s *Store) LastCompletedRollup(ctx context.Context) (*usage.RollupRun, error) {
	runs, err := s.queryRuns(ctx,
		"WHERE status = ? ORDER BY started_at DESC LIMIT 1", usage.RunCompleted)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

// ListRollupRuns returns the most recent runs first.
func (s *Store) ListRollupRuns(ctx context.Context, limit int) ([]usage.RollupRun, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.queryRuns(ctx, "ORDER BY started_at DESC, id DESC LIMIT ?", limit)
}

func (s *Store) queryRuns(ctx context.Context, clause string, args ...any) ([]usage.RollupRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, status, days, aggregates, error, started_at, completed_at FROM rollup_runs "+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []usage.RollupRun
	for rows.Next() {
		var r usage.RollupRun
		var errText, completedAt sql.NullString
		var startedAt string
		if err := rows.Scan(&r.ID, &r.Status, &r.Days, &r.Aggregates, &errText, &startedAt, &completedAt); err != nil {
			return nil, err
		}
		r.Error = errText.String
		r.StartedAt = parseTime(startedAt)
		if completedAt.Valid {
			t := parseTime(completedAt.String)
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// INVOICES
// =============================================================================

func (s *Store) SaveInvoice(ctx context.Context, inv revenue.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invoices (id, number, customer_id, issued_on, currency, amount_cents, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			amount_cents = excluded.amount_cents`,
		inv.ID, inv.Number, inv.CustomerID, inv.IssuedOn.String(), inv.Currency,
		inv.AmountCents.String(), string(inv.Status), formatTime(inv.CreatedAt),
	)
	if isUniqueConstraintError(err) {
		return revenue.ErrDuplicateNumber
	}
	return err
}

func (s *Store) ListInvoices(ctx context.Context, customerID string) ([]revenue.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, number, customer_id, issued_on, currency, amount_cents, status, created_at
		FROM invoices WHERE (? = '' OR customer_id = ?) ORDER BY issued_on, number`,
		customerID, customerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []revenue.Invoice
	for rows.Next() {
		var inv revenue.Invoice
		var issuedOn, amount, status, createdAt string
		if err := rows.Scan(&inv.ID, &inv.Number, &inv.CustomerID, &issuedOn,
			&inv.Currency, &amount, &status, &createdAt); err != nil {
			return nil, err
		}
		if inv.IssuedOn, err = series.ParseDate(issuedOn); err != nil {
			return nil, err
		}
		if inv.AmountCents, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		inv.Status = revenue.Status(status)
		inv.CreatedAt = parseTime(createdAt)
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// SparseRevenue sums finalized invoices per bucket start.
func (s *Store) SparseRevenue(ctx context.Context, f revenue.Filter) ([]revenue.PeriodRevenue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket, err := bucketExpr(f.Granularity, "issued_on")
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + bucket + ` AS bucket, amount_cents
		FROM invoices
		WHERE status = ?
		  AND issued_on >= ? AND issued_on <= ?
		  AND (? = '' OR customer_id = ?)
		  AND (? = '' OR currency = ?)
		ORDER BY bucket`

	rows, err := s.db.QueryContext(ctx, query,
		string(revenue.StatusFinalized),
		f.Range.Start.String(), f.Range.End.String(),
		f.CustomerID, f.CustomerID,
		f.Currency, f.Currency,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []revenue.PeriodRevenue
	for rows.Next() {
		var start, amount string
		if err := rows.Scan(&start, &amount); err != nil {
			return nil, err
		}
		d, err := series.ParseDate(start)
		if err != nil {
			return nil, err
		}
		a, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, err
		}
		if n := len(out); n == 0 || !out[n-1].Start.Equal(d) {
			out = append(out, revenue.PeriodRevenue{Start: d, AmountCents: decimal.Zero})
		}
		last := &out[len(out)-1]
		last.AmountCents = last.AmountCents.Add(a)
		last.InvoicesCount++
	}
	return out, rows.Err()
}

// =============================================================================
// CHARTS
// =============================================================================

func (s *Store) SaveChart(ctx context.Context, c factory.Chart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	config, err := json.Marshal(factory.NewChartFactory(nil).ToJSON(&c))
	if err != nil {
		return fmt.Errorf("failed to encode chart: %w", err)
	}
	now := formatTime(time.Now())
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO charts (id, name, source, config_json, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			source = excluded.source,
			config_json = excluded.config_json,
			version = charts.version + 1,
			updated_at = excluded.updated_at`,
		c.ID, c.Name, c.Source, string(config), now, now,
	)
	return err
}

func (s *Store) GetChart(ctx context.Context, id string) (*factory.Chart, error) {
	charts, err := s.queryCharts(ctx, "WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(charts) == 0 {
		return nil, factory.ErrChartNotFound
	}
	return &charts[0], nil
}

func (s *Store) ListCharts(ctx context.Context) ([]factory.Chart, error) {
	return s.queryCharts(ctx, "ORDER BY id")
}

func (s *Store) DeleteChart(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM charts WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return factory.ErrChartNotFound
	}
	return nil
}

func (s *Store) queryCharts(ctx context.Context, clause string, args ...any) ([]factory.Chart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT config_json, created_at FROM charts "+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	f := factory.NewChartFactory(nil)
	var charts []factory.Chart
	for rows.Next() {
		var config, createdAt string
		if err := rows.Scan(&config, &createdAt); err != nil {
			return nil, err
		}
		var cj factory.ChartJSON
		if err := json.Unmarshal([]byte(config), &cj); err != nil {
			return nil, fmt.Errorf("failed to decode chart: %w", err)
		}
		c, err := f.FromJSON(cj)
		if err != nil {
			return nil, err
		}
		c.CreatedAt = parseTime(createdAt)
		charts = append(charts, *c)
	}
	return charts, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"usage_events", "daily_aggregates", "invoices", "charts", "rollup_runs", "billable_metrics", "customers"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// bucketExpr returns the SQL expression rounding column down to its bucket start.
func bucketExpr(g series.Granularity, column string) (string, error) {
	switch g {
	case series.Daily:
		return column, nil
	case series.Weekly:
		return "date(" + column + ", 'weekday 0', '-6 days')", nil
	case series.Monthly:
		return "strftime('%Y-%m-01', " + column + ")", nil
	default:
		return "", fmt.Errorf("%w: %q", series.ErrInvalidGranularity, g)
	}
}

func scanDates(rows *sql.Rows) ([]series.Date, error) {
	var out []series.Date
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		d, err := series.ParseDate(s)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}
