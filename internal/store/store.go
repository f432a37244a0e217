package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"attendance-backend/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: record not found")

// Store defines the interface for all database operations. The conditional
// writes (SetCheckIn, SetCheckOut, TouchLiveness) are single guarded UPDATEs:
// whichever concurrent caller's statement matches the guard wins, everyone
// else observes won == false. That is the only concurrency control the
// lifecycle needs per (userID, dayKey).
type Store interface {
	// EnsureRecord atomically creates the day's record if it does not exist
	// and returns the current row either way.
	EnsureRecord(ctx context.Context, userID string, dayKey time.Time) (*model.Attendance, error)

	// SetCheckIn sets checkInAt and lastLivenessAt iff checkInAt is unset.
	SetCheckIn(ctx context.Context, userID string, dayKey time.Time, at time.Time) (won bool, err error)

	// SetCheckOut sets checkOutAt, totalHours and the source iff the record
	// is checked in and not yet checked out.
	SetCheckOut(ctx context.Context, userID string, dayKey time.Time, at time.Time, totalHours float64, source CheckOutSource) (won bool, err error)

	// TouchLiveness advances lastLivenessAt iff the record is still open.
	TouchLiveness(ctx context.Context, userID string, dayKey time.Time, at time.Time) (touched bool, err error)

	// GetRecord fetches one record; ErrNotFound if absent.
	GetRecord(ctx context.Context, userID string, dayKey time.Time) (*model.Attendance, error)

	// LatestOpenRecord returns the user's most recent record that is checked
	// in and not yet checked out; ErrNotFound when no session is open. A
	// close issued after UTC midnight resolves the record it was opened
	// under, not the new day's.
	LatestOpenRecord(ctx context.Context, userID string) (*model.Attendance, error)

	// OpenRecords returns every record for the day with checkInAt set and
	// checkOutAt unset.
	OpenRecords(ctx context.Context, dayKey time.Time) ([]model.Attendance, error)

	// StaleOpenRecords returns the open records whose lastLivenessAt is at or
	// before the given instant.
	StaleOpenRecords(ctx context.Context, dayKey time.Time, staleAt time.Time) ([]model.Attendance, error)

	// GetSite returns the site singleton; ErrNotFound when none is configured.
	GetSite(ctx context.Context) (*model.SiteLocation, error)

	// ReplaceSite discards any existing site row and installs the new one
	// atomically. Concurrent readers see either the old or the new site,
	// never a mix.
	ReplaceSite(ctx context.Context, site *model.SiteLocation) error

	// DB exposes the underlying handle for collaborators that manage their
	// own tables (push subscriptions).
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) EnsureRecord(ctx context.Context, userID string, dayKey time.Time) (*model.Attendance, error) {
	record := model.Attendance{UserID: userID, DayKey: dayKey}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "day_key"}},
		DoNothing: true,
	}).Create(&record).Error
	if err != nil {
		return nil, fmt.Errorf("failed to ensure attendance record for user %s: %w", userID, err)
	}
	// Re-fetch: on conflict the insert returned nothing, and another writer
	// may already have populated the row.
	return s.GetRecord(ctx, userID, dayKey)
}

func (s *gormStore) SetCheckIn(ctx context.Context, userID string, dayKey time.Time, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Attendance{}).
		Where("user_id = ? AND day_key = ? AND check_in_at IS NULL", userID, dayKey).
		Updates(map[string]any{
			"check_in_at":      at,
			"last_liveness_at": at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to set check-in for user %s: %w", userID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *gormStore) SetCheckOut(ctx context.Context, userID string, dayKey time.Time, at time.Time, totalHours float64, source CheckOutSource) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Attendance{}).
		Where("user_id = ? AND day_key = ? AND check_in_at IS NOT NULL AND check_out_at IS NULL", userID, dayKey).
		Updates(map[string]any{
			"check_out_at":     at,
			"total_hours":      totalHours,
			"check_out_source": string(source),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to set check-out for user %s: %w", userID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *gormStore) TouchLiveness(ctx context.Context, userID string, dayKey time.Time, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Attendance{}).
		Where("user_id = ? AND day_key = ? AND check_in_at IS NOT NULL AND check_out_at IS NULL", userID, dayKey).
		Update("last_liveness_at", at)
	if res.Error != nil {
		return false, fmt.Errorf("failed to touch liveness for user %s: %w", userID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *gormStore) GetRecord(ctx context.Context, userID string, dayKey time.Time) (*model.Attendance, error) {
	var record model.Attendance
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND day_key = ?", userID, dayKey).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attendance record for user %s: %w", userID, err)
	}
	return &record, nil
}

func (s *gormStore) LatestOpenRecord(ctx context.Context, userID string) (*model.Attendance, error) {
	var record model.Attendance
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND check_in_at IS NOT NULL AND check_out_at IS NULL", userID).
		Order("day_key DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch open attendance record for user %s: %w", userID, err)
	}
	return &record, nil
}

func (s *gormStore) OpenRecords(ctx context.Context, dayKey time.Time) ([]model.Attendance, error) {
	var records []model.Attendance
	err := s.db.WithContext(ctx).
		Where("day_key = ? AND check_in_at IS NOT NULL AND check_out_at IS NULL", dayKey).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch open attendance records: %w", err)
	}
	return records, nil
}

func (s *gormStore) StaleOpenRecords(ctx context.Context, dayKey time.Time, staleAt time.Time) ([]model.Attendance, error) {
	var records []model.Attendance
	err := s.db.WithContext(ctx).
		Where("day_key = ? AND check_in_at IS NOT NULL AND check_out_at IS NULL AND last_liveness_at <= ?", dayKey, staleAt).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stale attendance records: %w", err)
	}
	return records, nil
}

func (s *gormStore) GetSite(ctx context.Context) (*model.SiteLocation, error) {
	var site model.SiteLocation
	err := s.db.WithContext(ctx).Order("updated_at DESC").First(&site).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch site location: %w", err)
	}
	return &site, nil
}

func (s *gormStore) ReplaceSite(ctx context.Context, site *model.SiteLocation) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.SiteLocation{}).Error; err != nil {
			return fmt.Errorf("failed to clear site location: %w", err)
		}
		if err := tx.Create(site).Error; err != nil {
			return fmt.Errorf("failed to create site location: %w", err)
		}
		return nil
	})
}
