/*
scheduler.go - Automated usage rollup scheduler

PURPOSE:
  Periodically rebuilds daily usage aggregates so charts pick up newly
  ingested events without a manual POST /api/admin/rollup.

DESIGN:
  - robfig/cron schedule (default "@every 1h", any standard cron spec)
  - Overlapping runs are skipped, never queued
  - Each run is recorded by usage.Service as a RollupRun and counted in
    Prometheus

CONFIGURATION:
  - Spec:    cron spec (ROLLUP_SCHEDULE)
  - Enabled: whether the scheduler starts (ROLLUP_ENABLED)

USAGE:
  scheduler := NewRollupScheduler(handler.Usage, "@every 1h", log)
  if err := scheduler.Start(); err != nil { ... }
  defer scheduler.Stop()

SEE ALSO:
  - usage/service.go: RunRollup
  - handlers.go: TriggerRollup endpoint (manual run)
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/getlago/analytics-engine/metrics"
	"github.com/getlago/analytics-engine/usage"
)

// RollupScheduler runs the usage rollup on a cron schedule.
type RollupScheduler struct {
	Service *usage.Service
	Spec    string
	Enabled bool

	log     logrus.FieldLogger
	cron    *cron.Cron
	entryID cron.EntryID
	running sync.Mutex // held while a run is in progress
	mu      sync.Mutex
}

// NewRollupScheduler creates a scheduler. It does nothing until Start.
func NewRollupScheduler(svc *usage.Service, spec string, log logrus.FieldLogger) *RollupScheduler {
	if spec == "" {
		spec = "@every 1h"
	}
	return &RollupScheduler{
		Service: svc,
		Spec:    spec,
		Enabled: true,
		log:     log.WithField("component", "rollup_scheduler"),
	}
}

// Start registers the rollup job and starts the cron runner.
func (rs *RollupScheduler) Start() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.log.Info("scheduler disabled, not starting")
		return nil
	}
	if rs.cron != nil {
		return nil
	}

	c := cron.New(cron.WithLogger(cron.PrintfLogger(rs.log)))
	id, err := c.AddFunc(rs.Spec, func() {
		if _, err := rs.RunNow(context.Background()); err != nil && !errors.Is(err, ErrRollupInProgress) {
			rs.log.WithError(err).Error("scheduled rollup failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid rollup schedule %q: %w", rs.Spec, err)
	}
	c.Start()

	rs.cron = c
	rs.entryID = id
	rs.log.WithFields(logrus.Fields{
		"spec":     rs.Spec,
		"next_run": c.Entry(id).Next.Format(time.RFC3339),
	}).Info("scheduler started")
	return nil
}

// Stop stops the cron runner and waits for a running job to finish.
func (rs *RollupScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.cron == nil {
		return
	}
	<-rs.cron.Stop().Done()
	rs.cron = nil
	rs.log.Info("scheduler stopped")
}

// Next returns the next scheduled run, or the zero time when stopped.
func (rs *RollupScheduler) Next() time.Time {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.cron == nil {
		return time.Time{}
	}
	return rs.cron.Entry(rs.entryID).Next
}

// ErrRollupInProgress is returned by RunNow while another run is active.
var ErrRollupInProgress = errors.New("rollup already in progress")

// RunNow runs one rollup immediately unless one is already running.
func (rs *RollupScheduler) RunNow(ctx context.Context) (*usage.RollupRun, error) {
	if !rs.running.TryLock() {
		rs.log.Debug("rollup skipped, previous run still in progress")
		return nil, ErrRollupInProgress
	}
	defer rs.running.Unlock()

	start := time.Now()
	run, err := rs.Service.RunRollup(ctx)
	if run != nil {
		metrics.RecordRollup(run.Status, time.Since(start))
	}
	return run, err
}
