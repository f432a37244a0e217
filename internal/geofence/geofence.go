package geofence

import "math"

const earthRadiusMeters = 6371000

// Position is a claimed client coordinate.
type Position struct {
	Latitude  float64
	Longitude float64
}

// Site is the admission boundary: a center coordinate and a radius in meters.
type Site struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
}

// Valid reports whether the position lies in the legal coordinate ranges.
func (p Position) Valid() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180 &&
		!math.IsNaN(p.Latitude) && !math.IsNaN(p.Longitude)
}

// Distance returns the great-circle distance in meters between two
// coordinates, using the Haversine formula.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// Admit decides whether the position is inside the site's geofence. A distance
// exactly equal to the radius admits. Invalid coordinates on either side
// reject; this function never panics and has no side effects.
func Admit(pos Position, site Site) bool {
	if !pos.Valid() {
		return false
	}
	center := Position{Latitude: site.Latitude, Longitude: site.Longitude}
	if !center.Valid() || site.RadiusMeters <= 0 {
		return false
	}
	return Distance(pos.Latitude, pos.Longitude, site.Latitude, site.Longitude) <= site.RadiusMeters
}
