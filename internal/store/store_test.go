package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"attendance-backend/internal/model"
)

// newSQLiteStore spins up an in-memory database with the real schema. The DSN
// is derived from the test name so tests never share state, and shared cache
// keeps every pooled connection on the same database.
func newSQLiteStore(t *testing.T) Store {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&model.Attendance{}, &model.SiteLocation{}))
	return NewGormStore(db)
}

func dayKey(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d.UTC()
}

func TestEnsureRecordIsIdempotent(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	day := dayKey(t, "2024-01-10")

	first, err := s.EnsureRecord(ctx, "u1", day)
	require.NoError(t, err)
	second, err := s.EnsureRecord(ctx, "u1", day)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "both calls must resolve to the same row")
	assert.Nil(t, second.CheckInAt)
}

func TestSetCheckInOnlyOnce(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	day := dayKey(t, "2024-01-10")
	at := day.Add(9 * time.Hour)

	_, err := s.EnsureRecord(ctx, "u1", day)
	require.NoError(t, err)

	won, err := s.SetCheckIn(ctx, "u1", day, at)
	require.NoError(t, err)
	assert.True(t, won)

	// A second attempt loses and leaves the stored timestamp alone.
	won, err = s.SetCheckIn(ctx, "u1", day, at.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, won)

	record, err := s.GetRecord(ctx, "u1", day)
	require.NoError(t, err)
	require.NotNil(t, record.CheckInAt)
	assert.Equal(t, at.Unix(), record.CheckInAt.Unix())
	require.NotNil(t, record.LastLivenessAt)
	assert.Equal(t, at.Unix(), record.LastLivenessAt.Unix())
}

func TestSetCheckInConcurrentSingleWinner(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	day := dayKey(t, "2024-01-10")

	_, err := s.EnsureRecord(ctx, "u1", day)
	require.NoError(t, err)

	const attempts = 8
	var wg sync.WaitGroup
	wins := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			won, err := s.SetCheckIn(ctx, "u1", day, day.Add(time.Duration(9+n)*time.Hour))
			if err == nil {
				wins <- won
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	wonCount := 0
	for w := range wins {
		if w {
			wonCount++
		}
	}
	assert.Equal(t, 1, wonCount, "exactly one concurrent check-in may win")
}

func TestSetCheckOutGuards(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	day := dayKey(t, "2024-01-10")
	checkIn := day.Add(9 * time.Hour)
	checkOut := day.Add(17*time.Hour + 30*time.Minute)

	_, err := s.EnsureRecord(ctx, "u1", day)
	require.NoError(t, err)

	// No check-in yet: the guard must refuse.
	won, err := s.SetCheckOut(ctx, "u1", day, checkOut, 8.5, SourceManual)
	require.NoError(t, err)
	assert.False(t, won)

	won, err = s.SetCheckIn(ctx, "u1", day, checkIn)
	require.NoError(t, err)
	require.True(t, won)

	won, err = s.SetCheckOut(ctx, "u1", day, checkOut, 8.5, SourceManual)
	require.NoError(t, err)
	assert.True(t, won)

	// Second close loses regardless of source.
	won, err = s.SetCheckOut(ctx, "u1", day, checkOut.Add(time.Hour), 9.5, SourceEndOfDay)
	require.NoError(t, err)
	assert.False(t, won)

	record, err := s.GetRecord(ctx, "u1", day)
	require.NoError(t, err)
	require.NotNil(t, record.TotalHours)
	assert.Equal(t, 8.5, *record.TotalHours)
	assert.Equal(t, string(SourceManual), record.CheckOutSource)
}

func TestTouchLivenessOnlyWhileOpen(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	day := dayKey(t, "2024-01-10")

	_, err := s.EnsureRecord(ctx, "u1", day)
	require.NoError(t, err)

	// Not checked in: no-op.
	touched, err := s.TouchLiveness(ctx, "u1", day, day.Add(10*time.Hour))
	require.NoError(t, err)
	assert.False(t, touched)

	_, err = s.SetCheckIn(ctx, "u1", day, day.Add(9*time.Hour))
	require.NoError(t, err)

	touched, err = s.TouchLiveness(ctx, "u1", day, day.Add(10*time.Hour))
	require.NoError(t, err)
	assert.True(t, touched)

	_, err = s.SetCheckOut(ctx, "u1", day, day.Add(11*time.Hour), 2, SourceManual)
	require.NoError(t, err)

	// Closed: no-op again.
	touched, err = s.TouchLiveness(ctx, "u1", day, day.Add(12*time.Hour))
	require.NoError(t, err)
	assert.False(t, touched)
}

func TestStaleOpenRecords(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	day := dayKey(t, "2024-01-10")
	now := day.Add(12 * time.Hour)

	for _, u := range []string{"fresh", "stale", "closed"} {
		_, err := s.EnsureRecord(ctx, u, day)
		require.NoError(t, err)
		_, err = s.SetCheckIn(ctx, u, day, day.Add(9*time.Hour))
		require.NoError(t, err)
	}
	_, err := s.TouchLiveness(ctx, "fresh", day, now.Add(-time.Minute))
	require.NoError(t, err)
	_, err = s.SetCheckOut(ctx, "closed", day, now, 3, SourceManual)
	require.NoError(t, err)

	stale, err := s.StaleOpenRecords(ctx, day, now.Add(-30*time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "stale", stale[0].UserID)

	open, err := s.OpenRecords(ctx, day)
	require.NoError(t, err)
	assert.Len(t, open, 2)
}

func TestReplaceSite(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	_, err := s.GetSite(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.ReplaceSite(ctx, &model.SiteLocation{Latitude: 37.7749, Longitude: -122.4194, RadiusMeters: 100}))
	require.NoError(t, s.ReplaceSite(ctx, &model.SiteLocation{Latitude: 40.7128, Longitude: -74.0060, RadiusMeters: 250}))

	site, err := s.GetSite(ctx)
	require.NoError(t, err)
	assert.Equal(t, 40.7128, site.Latitude)
	assert.Equal(t, 250.0, site.RadiusMeters)

	// Replace never merges: exactly one row survives.
	var count int64
	require.NoError(t, s.DB().Model(&model.SiteLocation{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

// newMockDB wires sqlmock behind gorm's postgres driver, as the production
// store runs against postgres.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestSetCheckInIssuesGuardedUpdate(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewGormStore(gormDB)
	day := dayKey(t, "2024-01-10")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "attendances" SET .+ WHERE user_id = \$\d+ AND day_key = \$\d+ AND check_in_at IS NULL`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	won, err := s.SetCheckIn(context.Background(), "u1", day, day.Add(9*time.Hour))
	require.NoError(t, err)
	assert.False(t, won, "zero affected rows must report a lost write")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetCheckOutIssuesGuardedUpdate(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewGormStore(gormDB)
	day := dayKey(t, "2024-01-10")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "attendances" SET .+ WHERE user_id = \$\d+ AND day_key = \$\d+ AND check_in_at IS NOT NULL AND check_out_at IS NULL`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	won, err := s.SetCheckOut(context.Background(), "u1", day, day.Add(17*time.Hour), 8, SourceManual)
	require.NoError(t, err)
	assert.True(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}
