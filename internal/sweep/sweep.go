package sweep

import (
	"context"
	"errors"
	"log"
	"time"

	"attendance-backend/config"
	"attendance-backend/internal/attendance"
	"attendance-backend/internal/store"
)

// Notifier receives a job for every record the sweep force-closes.
type Notifier interface {
	Dispatch(userID string, source store.CheckOutSource)
}

// ClosedRecord describes one record the sweep closed.
type ClosedRecord struct {
	UserID     string    `json:"userId"`
	CheckInAt  time.Time `json:"checkInAt"`
	CheckOutAt time.Time `json:"checkOutAt"`
	TotalHours float64   `json:"totalHours"`
}

// Result summarizes one sweep run.
type Result struct {
	ProcessedCount int            `json:"processedCount"`
	Closed         []ClosedRecord `json:"closed"`
}

// Job is the end-of-day reconciliation sweep. It is the backstop behind the
// heartbeat path and the disconnect signal: even if both fail (a server
// restart drops every timer), no record stays open past the cutoff. Safe to
// run repeatedly and concurrently with organic checkouts, because the
// underlying transition refuses a second close.
type Job struct {
	cfg       *config.Config
	store     store.Store
	lifecycle *attendance.Service
	notifier  Notifier
	now       func() time.Time
}

// NewJob creates the sweep job. notifier may be nil.
func NewJob(cfg *config.Config, st store.Store, svc *attendance.Service, notifier Notifier) *Job {
	return &Job{
		cfg:       cfg,
		store:     st,
		lifecycle: svc,
		notifier:  notifier,
		now:       time.Now,
	}
}

// SetNow overrides the job's clock for testing.
func (j *Job) SetNow(now func() time.Time) {
	j.now = now
}

// Run arms the sweep once per day at the configured cutoff hour.
func (j *Job) Run(ctx context.Context) {
	if !j.cfg.Attendance.SweepEnabled {
		log.Println("End-of-day sweep is disabled. Not starting.")
		return
	}
	log.Println("Starting end-of-day sweep scheduler...")

	for {
		wait := j.untilNextCutoff()
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Println("End-of-day sweep scheduler shutting down.")
			return
		case <-timer.C:
			result, err := j.RunOnce(ctx)
			if err != nil {
				log.Printf("End-of-day sweep failed: %v", err)
				continue
			}
			log.Printf("End-of-day sweep closed %d records", result.ProcessedCount)
		}
	}
}

// untilNextCutoff returns the duration until the next cutoff instant. When
// the cutoff already passed today, the next one is tomorrow's.
func (j *Job) untilNextCutoff() time.Duration {
	now := j.now().UTC()
	cutoff := j.cutoffFor(attendance.DayKey(now))
	if !cutoff.After(now) {
		cutoff = cutoff.Add(24 * time.Hour)
	}
	return cutoff.Sub(now)
}

// cutoffFor returns the cutoff instant on the given day key.
func (j *Job) cutoffFor(dayKey time.Time) time.Time {
	return dayKey.Add(time.Duration(j.cfg.Attendance.CutoffHourUTC) * time.Hour)
}

// RunOnce closes every record of the current day that is checked in but not
// checked out. Per record the close time is the day's cutoff instant; a
// check-in at or after the cutoff instead closes at check-in plus the
// configured cap, so a late arrival never yields a degenerate duration.
// Either way the close time never lands in the future.
func (j *Job) RunOnce(ctx context.Context) (*Result, error) {
	now := j.now().UTC()
	dayKey := attendance.DayKey(now)

	open, err := j.store.OpenRecords(ctx, dayKey)
	if err != nil {
		return nil, err
	}

	result := &Result{Closed: []ClosedRecord{}}
	for i := range open {
		record := &open[i]

		closeAt := j.cutoffFor(record.DayKey.UTC())
		if !record.CheckInAt.Before(closeAt) {
			closeAt = record.CheckInAt.Add(time.Duration(j.cfg.Attendance.LateCheckInCapHours) * time.Hour)
		}
		// Never invent a future checkout.
		if closeAt.After(now) {
			closeAt = now
		}

		closed, err := j.lifecycle.Close(ctx, record, closeAt, store.SourceEndOfDay)
		if errors.Is(err, attendance.ErrAlreadyCheckedOut) {
			// Someone closed it while we were sweeping.
			continue
		}
		if err != nil {
			// Isolated failure: report and keep sweeping.
			log.Printf("Sweep failed to close record for user %s: %v", record.UserID, err)
			continue
		}

		result.ProcessedCount++
		result.Closed = append(result.Closed, ClosedRecord{
			UserID:     closed.UserID,
			CheckInAt:  *closed.CheckInAt,
			CheckOutAt: *closed.CheckOutAt,
			TotalHours: *closed.TotalHours,
		})
		log.Printf("End-of-day checkout for user %s (%.2f hours)", closed.UserID, *closed.TotalHours)
		if j.notifier != nil {
			j.notifier.Dispatch(closed.UserID, store.SourceEndOfDay)
		}
	}
	return result, nil
}
