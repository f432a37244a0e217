package model

import "time"

// Attendance is one user's record for one calendar day. DayKey is always
// midnight UTC so the (user_id, day_key) uniqueness holds regardless of the
// client's timezone. CheckInAt and CheckOutAt are each written at most once.
type Attendance struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         string     `gorm:"size:64;not null;uniqueIndex:idx_attendance_user_day" json:"userId"`
	DayKey         time.Time  `gorm:"not null;uniqueIndex:idx_attendance_user_day" json:"dayKey"`
	CheckInAt      *time.Time `json:"checkInAt"`
	CheckOutAt     *time.Time `json:"checkOutAt"`
	TotalHours     *float64   `json:"totalHours"`
	LastLivenessAt *time.Time `json:"-"`
	CheckOutSource string     `gorm:"size:32" json:"checkOutSource,omitempty"`
	CreatedAt      time.Time  `gorm:"not null" json:"-"`
	UpdatedAt      time.Time  `gorm:"not null" json:"-"`
}

// Open reports whether the record is checked in but not yet checked out.
func (a *Attendance) Open() bool {
	return a.CheckInAt != nil && a.CheckOutAt == nil
}
