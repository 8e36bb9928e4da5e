package spatial

import (
	"github.com/golang/geo/s2"
	"github.com/jengzang/fishing-sync/internal/models"
)

// SimplifyTrack thins a track with the Ramer-Douglas-Peucker algorithm. No
// dropped position lies further than toleranceMeters from the simplified
// line. The first and last positions are always kept.
func SimplifyTrack(positions []models.Position, toleranceMeters float64) []models.Position {
	if len(positions) < 3 || toleranceMeters <= 0 {
		return positions
	}

	points := make([]s2.Point, len(positions))
	for i, p := range positions {
		points[i] = s2.PointFromLatLng(s2.LatLngFromDegrees(p.Latitude, p.Longitude))
	}

	keep := make([]bool, len(positions))
	keep[0], keep[len(positions)-1] = true, true
	markKept(points, keep, 0, len(points)-1, toleranceMeters/EarthRadiusMeters)

	out := make([]models.Position, 0, len(positions))
	for i, k := range keep {
		if k {
			out = append(out, positions[i])
		}
	}
	return out
}

// markKept flags the points between first and last that must stay, with
// tolerance in radians
func markKept(points []s2.Point, keep []bool, first, last int, tolerance float64) {
	if last-first < 2 {
		return
	}

	maxDist, maxIndex := 0.0, first
	for i := first + 1; i < last; i++ {
		d := s2.DistanceFromSegment(points[i], points[first], points[last]).Radians()
		if d > maxDist {
			maxDist, maxIndex = d, i
		}
	}

	if maxDist > tolerance {
		keep[maxIndex] = true
		markKept(points, keep, first, maxIndex, tolerance)
		markKept(points, keep, maxIndex, last, tolerance)
	}
}
