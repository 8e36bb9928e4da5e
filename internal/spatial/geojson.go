package spatial

import (
	"time"

	"github.com/jengzang/fishing-sync/internal/models"
	geojson "github.com/paulmach/go.geojson"
)

// TrackFeatureCollection renders a day's track as a LineString feature and
// each catch as a Point feature. Coordinates are [lon, lat].
func TrackFeatureCollection(positions []models.Position, catches []models.FullCatch) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.BoundingBox = Bounds(positions)

	if len(positions) > 0 {
		coords := make([][]float64, 0, len(positions))
		for _, p := range positions {
			coords = append(coords, []float64{p.Longitude, p.Latitude})
		}

		var track *geojson.Feature
		if len(coords) == 1 {
			track = geojson.NewPointFeature(coords[0])
		} else {
			track = geojson.NewLineStringFeature(coords)
		}
		track.SetProperty("kind", "track")
		track.SetProperty("points", len(positions))
		track.SetProperty("lengthMeters", TrackLength(positions))
		track.SetProperty("start", positions[0].Timestamp.Format(time.RFC3339))
		track.SetProperty("end", positions[len(positions)-1].Timestamp.Format(time.RFC3339))
		fc.AddFeature(track)
	}

	for _, c := range catches {
		f := geojson.NewPointFeature([]float64{c.Lon, c.Lat})
		f.ID = c.ID
		f.SetProperty("kind", "catch")
		f.SetProperty("stringNum", c.StringID)
		f.SetProperty("catchType", string(c.Type()))
		f.SetProperty("timestamp", c.Timestamp.Format(time.RFC3339))
		f.SetProperty("uploaded", c.Uploaded != nil)
		fc.AddFeature(f)
	}

	return fc
}
