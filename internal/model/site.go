package model

import "time"

// SiteLocation is the geofence center and radius check-ins are validated
// against. The table holds at most one row; replacing the site deletes the
// old row and inserts the new one in a single transaction.
type SiteLocation struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Latitude     float64   `gorm:"not null" json:"latitude"`
	Longitude    float64   `gorm:"not null" json:"longitude"`
	RadiusMeters float64   `gorm:"not null" json:"radiusMeters"`
	CreatedAt    time.Time `gorm:"not null" json:"-"`
	UpdatedAt    time.Time `gorm:"not null" json:"updatedAt"`
}
