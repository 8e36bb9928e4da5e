package spatial

import (
	"math"

	"github.com/jengzang/fishing-sync/internal/models"
)

// ToDMS splits a decimal coordinate into whole degrees, whole minutes and
// fractional seconds. Degrees are floored, so negative coordinates carry the
// sign on the degrees and keep minutes and seconds non-negative.
func ToDMS(decimal float64) models.DMS {
	deg := math.Floor(decimal)
	mins := math.Floor((decimal - deg) * 60)
	sec := (decimal - deg - mins/60) * 3600
	return models.DMS{Degrees: int(deg), Minutes: int(mins), Seconds: sec}
}

// FromDMS joins degrees, minutes and seconds into a decimal coordinate
func FromDMS(d models.DMS) float64 {
	return float64(d.Degrees) + float64(d.Minutes)/60 + d.Seconds/3600
}

// ValidateDMS checks minutes and seconds are within [0, 60)
func ValidateDMS(field string, d models.DMS) error {
	if d.Minutes < 0 || d.Minutes >= 60 {
		return &models.ValidationError{Field: field, Reason: "minutes must be within [0, 60)"}
	}
	if d.Seconds < 0 || d.Seconds >= 60 || math.IsNaN(d.Seconds) {
		return &models.ValidationError{Field: field, Reason: "seconds must be within [0, 60)"}
	}
	return nil
}

// ResolveCatchCoordinates returns the decimal coordinates of a catch form,
// converting from DMS where given
func ResolveCatchCoordinates(f models.CatchForm) (lat, lon float64, err error) {
	lat, lon = f.Lat, f.Lon
	if f.LatDMS != nil {
		if err := ValidateDMS("latDms", *f.LatDMS); err != nil {
			return 0, 0, err
		}
		lat = FromDMS(*f.LatDMS)
	}
	if f.LonDMS != nil {
		if err := ValidateDMS("lonDms", *f.LonDMS); err != nil {
			return 0, 0, err
		}
		lon = FromDMS(*f.LonDMS)
	}
	return lat, lon, nil
}
