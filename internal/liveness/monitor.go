package liveness

import (
	"context"
	"errors"
	"log"
	"time"

	"attendance-backend/config"
	"attendance-backend/internal/attendance"
	"attendance-backend/internal/store"
)

// Notifier receives a job for every record the monitor force-closes.
type Notifier interface {
	Dispatch(userID string, source store.CheckOutSource)
}

// Monitor is the server-authoritative liveness watchdog. Clients move
// last_liveness_at forward with heartbeats; the monitor walks today's open
// records on a timer and force-closes any whose liveness is at least the
// inactivity threshold old. Correctness never depends on the client's own
// timers continuing to run.
type Monitor struct {
	cfg       *config.Config
	store     store.Store
	lifecycle *attendance.Service
	notifier  Notifier
	now       func() time.Time
}

// NewMonitor creates the monitor. notifier may be nil.
func NewMonitor(cfg *config.Config, st store.Store, svc *attendance.Service, notifier Notifier) *Monitor {
	return &Monitor{
		cfg:       cfg,
		store:     st,
		lifecycle: svc,
		notifier:  notifier,
		now:       time.Now,
	}
}

// SetNow overrides the monitor's clock for testing.
func (m *Monitor) SetNow(now func() time.Time) {
	m.now = now
}

// Run starts the evaluation loop.
func (m *Monitor) Run(ctx context.Context) {
	if !m.cfg.Attendance.MonitorEnabled {
		log.Println("Liveness monitor is disabled. Not starting.")
		return
	}
	log.Println("Starting liveness monitor...")

	timer := time.NewTimer(m.cfg.Attendance.EvalInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Liveness monitor shutting down.")
			return
		case <-timer.C:
			m.EvaluateOnce(ctx)
			timer.Reset(m.cfg.Attendance.EvalInterval)
		}
	}
}

// EvaluateOnce performs a single inactivity sweep over today's open records
// and returns the number of records it closed. A record closes when
// now - lastLivenessAt >= the configured threshold. Per-record failures are
// logged and skipped so one bad row never stalls the rest.
func (m *Monitor) EvaluateOnce(ctx context.Context) int {
	now := m.now().UTC()
	staleAt := now.Add(-m.cfg.Attendance.InactivityThreshold)

	stale, err := m.store.StaleOpenRecords(ctx, attendance.DayKey(now), staleAt)
	if err != nil {
		log.Printf("Liveness evaluation failed: %v", err)
		return 0
	}

	closed := 0
	for i := range stale {
		record := &stale[i]
		_, err := m.lifecycle.Close(ctx, record, now, store.SourceInactivity)
		if errors.Is(err, attendance.ErrAlreadyCheckedOut) {
			// An organic checkout won the race. Fine.
			continue
		}
		if err != nil {
			log.Printf("Failed to close stale record for user %s: %v", record.UserID, err)
			continue
		}
		closed++
		log.Printf("Inactivity checkout for user %s (last liveness %s)", record.UserID, record.LastLivenessAt.Format(time.RFC3339))
		if m.notifier != nil {
			m.notifier.Dispatch(record.UserID, store.SourceInactivity)
		}
	}
	return closed
}
