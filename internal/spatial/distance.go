package spatial

import (
	"github.com/golang/geo/s2"
	"github.com/jengzang/fishing-sync/internal/models"
)

// EarthRadiusMeters is Earth's mean radius in meters
const EarthRadiusMeters = 6371000.0

// HaversineDistance calculates the great-circle distance between two points in meters
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// TrackLength sums the great-circle distance between consecutive positions
func TrackLength(positions []models.Position) float64 {
	var total float64
	for i := 1; i < len(positions); i++ {
		prev, cur := positions[i-1], positions[i]
		total += HaversineDistance(prev.Latitude, prev.Longitude, cur.Latitude, cur.Longitude)
	}
	return total
}

// Bounds returns the bounding rectangle of the positions as
// [minLon, minLat, maxLon, maxLat]. It returns nil for an empty track.
func Bounds(positions []models.Position) []float64 {
	if len(positions) == 0 {
		return nil
	}

	rect := s2.EmptyRect()
	for _, p := range positions {
		rect = rect.AddPoint(s2.LatLngFromDegrees(p.Latitude, p.Longitude))
	}
	lo, hi := rect.Lo(), rect.Hi()
	return []float64{lo.Lng.Degrees(), lo.Lat.Degrees(), hi.Lng.Degrees(), hi.Lat.Degrees()}
}
