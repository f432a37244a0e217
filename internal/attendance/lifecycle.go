package attendance

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"attendance-backend/config"
	"attendance-backend/internal/geofence"
	"attendance-backend/internal/model"
	"attendance-backend/internal/store"
)

// Policy outcomes. These are expected, user-facing results of the state
// machine, not infrastructure failures; the record is never mutated when one
// of them is returned.
var (
	ErrMissingLocation   = errors.New("location data is required")
	ErrSiteNotConfigured = errors.New("site location is not configured")
	ErrOutOfRange        = errors.New("position is outside the site geofence")
	ErrAlreadyCheckedIn  = errors.New("already checked in today")
	ErrNoCheckIn         = errors.New("no check-in found")
	ErrAlreadyCheckedOut = errors.New("already checked out")
)

// DayKey normalizes an instant to midnight UTC of its calendar day. It is
// computed once at check-in; every later transition resolves the record by
// its stored key.
func DayKey(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// RoundHours converts a duration to hours rounded to two decimal places.
func RoundHours(d time.Duration) float64 {
	return math.Round(d.Hours()*100) / 100
}

// Service is the per-user daily attendance state machine. All transitions go
// through the store's conditional writes, so concurrent calls for the same
// (user, day) resolve to exactly one winner without in-process locking.
type Service struct {
	cfg   *config.Config
	store store.Store
}

// NewService creates the lifecycle service.
func NewService(cfg *config.Config, st store.Store) *Service {
	return &Service{cfg: cfg, store: st}
}

// CheckIn admits the user through the geofence and opens today's record.
func (s *Service) CheckIn(ctx context.Context, userID string, pos *geofence.Position, now time.Time) (*model.Attendance, error) {
	if pos == nil {
		return nil, ErrMissingLocation
	}

	site, err := s.store.GetSite(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSiteNotConfigured
	}
	if err != nil {
		return nil, err
	}

	fence := geofence.Site{
		Latitude:     site.Latitude,
		Longitude:    site.Longitude,
		RadiusMeters: site.RadiusMeters,
	}
	if !geofence.Admit(*pos, fence) {
		return nil, ErrOutOfRange
	}

	dayKey := DayKey(now)
	record, err := s.store.EnsureRecord(ctx, userID, dayKey)
	if err != nil {
		return nil, err
	}
	if record.CheckInAt != nil {
		return nil, ErrAlreadyCheckedIn
	}

	won, err := s.store.SetCheckIn(ctx, userID, dayKey, now)
	if err != nil {
		return nil, err
	}
	if !won {
		// A concurrent check-in beat us between the fetch and the write.
		return nil, ErrAlreadyCheckedIn
	}

	return s.store.GetRecord(ctx, userID, dayKey)
}

// CheckOut closes the user's open record. The record is resolved by its
// stored day key, so a close issued just after UTC midnight still lands on
// the day it was opened under.
func (s *Service) CheckOut(ctx context.Context, userID string, now time.Time, source store.CheckOutSource) (*model.Attendance, error) {
	record, err := s.store.LatestOpenRecord(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		// Nothing open. Distinguish "never checked in" from "already closed"
		// by looking at today's record.
		today, terr := s.store.GetRecord(ctx, userID, DayKey(now))
		if terr == nil && today.CheckOutAt != nil {
			return nil, ErrAlreadyCheckedOut
		}
		return nil, ErrNoCheckIn
	}
	if err != nil {
		return nil, err
	}
	return s.Close(ctx, record, now, source)
}

// Close performs the checkout transition on an already-resolved record. The
// sweep and the liveness monitor call it directly with the record they hold.
func (s *Service) Close(ctx context.Context, record *model.Attendance, at time.Time, source store.CheckOutSource) (*model.Attendance, error) {
	if record.CheckInAt == nil {
		return nil, ErrNoCheckIn
	}
	if record.CheckOutAt != nil {
		return nil, ErrAlreadyCheckedOut
	}

	// checkOutAt may never precede checkInAt.
	if at.Before(*record.CheckInAt) {
		at = *record.CheckInAt
	}
	totalHours := RoundHours(at.Sub(*record.CheckInAt))

	won, err := s.store.SetCheckOut(ctx, record.UserID, record.DayKey, at, totalHours, source)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, ErrAlreadyCheckedOut
	}

	return s.store.GetRecord(ctx, record.UserID, record.DayKey)
}

// HeartbeatResult reports the outcome of a liveness signal. Active is false
// when no session is open, which is a normal condition rather than an error.
type HeartbeatResult struct {
	Active       bool       `json:"active"`
	ElapsedHours float64    `json:"elapsedHours,omitempty"`
	CheckInAt    *time.Time `json:"checkInAt,omitempty"`
}

// Heartbeat records a liveness signal for the user's open session and
// returns the live elapsed time. With no open session it reports inactive.
func (s *Service) Heartbeat(ctx context.Context, userID string, now time.Time) (HeartbeatResult, error) {
	record, err := s.store.LatestOpenRecord(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return HeartbeatResult{Active: false}, nil
	}
	if err != nil {
		return HeartbeatResult{}, err
	}

	touched, err := s.store.TouchLiveness(ctx, userID, record.DayKey, now)
	if err != nil {
		return HeartbeatResult{}, err
	}
	if !touched {
		// Closed between the fetch and the touch.
		return HeartbeatResult{Active: false}, nil
	}

	return HeartbeatResult{
		Active:       true,
		ElapsedHours: RoundHours(now.Sub(*record.CheckInAt)),
		CheckInAt:    record.CheckInAt,
	}, nil
}

// StatusResult is the read-only projection of today's record.
type StatusResult struct {
	CheckedIn    bool       `json:"checkedIn"`
	CheckedOut   bool       `json:"checkedOut"`
	CheckInAt    *time.Time `json:"checkInAt,omitempty"`
	CheckOutAt   *time.Time `json:"checkOutAt,omitempty"`
	ElapsedHours *float64   `json:"elapsedHours,omitempty"`
	TotalHours   *float64   `json:"totalHours,omitempty"`
}

// Status projects the state of today's record without mutating anything.
func (s *Service) Status(ctx context.Context, userID string, now time.Time) (StatusResult, error) {
	record, err := s.store.GetRecord(ctx, userID, DayKey(now))
	if errors.Is(err, store.ErrNotFound) {
		return StatusResult{}, nil
	}
	if err != nil {
		return StatusResult{}, err
	}

	result := StatusResult{
		CheckedIn:  record.CheckInAt != nil,
		CheckedOut: record.CheckOutAt != nil,
		CheckInAt:  record.CheckInAt,
		CheckOutAt: record.CheckOutAt,
		TotalHours: record.TotalHours,
	}
	if record.Open() {
		elapsed := RoundHours(now.Sub(*record.CheckInAt))
		result.ElapsedHours = &elapsed
	}
	return result, nil
}

// Disconnect is the best-effort teardown signal a client fires when its
// session ends. It closes the open record if there is one and is a silent
// no-op otherwise; delivery is never relied upon, the inactivity monitor
// remains the authoritative close path.
func (s *Service) Disconnect(ctx context.Context, userID, reason string, now time.Time) error {
	_, err := s.CheckOut(ctx, userID, now, store.SourceDisconnect)
	if errors.Is(err, ErrNoCheckIn) || errors.Is(err, ErrAlreadyCheckedOut) {
		return nil
	}
	if err != nil {
		return err
	}
	log.Printf("disconnect checkout for user %s (reason: %s)", userID, reason)
	return nil
}
