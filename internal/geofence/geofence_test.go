package geofence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// The office used throughout: San Francisco, 100m radius.
var sfSite = Site{Latitude: 37.7749, Longitude: -122.4194, RadiusMeters: 100}

func TestAdmit(t *testing.T) {
	testCases := []struct {
		name     string
		pos      Position
		site     Site
		admitted bool
	}{
		{
			name:     "exactly at the center",
			pos:      Position{Latitude: 37.7749, Longitude: -122.4194},
			site:     sfSite,
			admitted: true,
		},
		{
			name: "well inside the radius",
			// ~30m north of the center.
			pos:      Position{Latitude: 37.77517, Longitude: -122.4194},
			site:     sfSite,
			admitted: true,
		},
		{
			name: "outside the radius",
			// ~200m north of the center.
			pos:      Position{Latitude: 37.7767, Longitude: -122.4194},
			site:     sfSite,
			admitted: false,
		},
		{
			name:     "latitude out of range",
			pos:      Position{Latitude: 91, Longitude: 0},
			site:     sfSite,
			admitted: false,
		},
		{
			name:     "longitude out of range",
			pos:      Position{Latitude: 0, Longitude: -181},
			site:     sfSite,
			admitted: false,
		},
		{
			name:     "site with zero radius rejects everything",
			pos:      Position{Latitude: 37.7749, Longitude: -122.4194},
			site:     Site{Latitude: 37.7749, Longitude: -122.4194, RadiusMeters: 0},
			admitted: false,
		},
		{
			name:     "site with invalid center rejects",
			pos:      Position{Latitude: 0, Longitude: 0},
			site:     Site{Latitude: 200, Longitude: 0, RadiusMeters: 100},
			admitted: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.admitted, Admit(tc.pos, tc.site))
		})
	}
}

func TestDistance(t *testing.T) {
	// Zero distance at identical coordinates.
	assert.Equal(t, 0.0, Distance(37.7749, -122.4194, 37.7749, -122.4194))

	// One degree of latitude is roughly 111.2km.
	d := Distance(0, 0, 1, 0)
	assert.InDelta(t, 111195, d, 200)

	// SF to LA is roughly 559km.
	d = Distance(37.7749, -122.4194, 34.0522, -118.2437)
	assert.InDelta(t, 559000, d, 5000)
}

func TestAdmitBoundaryDistance(t *testing.T) {
	// A position whose distance equals the radius exactly must be admitted.
	pos := Position{Latitude: 37.7749, Longitude: -122.4194}
	d := Distance(pos.Latitude, pos.Longitude, 37.7760, -122.4194)
	site := Site{Latitude: 37.7760, Longitude: -122.4194, RadiusMeters: d}
	assert.True(t, Admit(pos, site))

	// The tiniest shrink of the radius rejects it.
	site.RadiusMeters = d * 0.999
	assert.False(t, Admit(pos, site))
}
