package models

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrTrackingPermission is returned when tracking is started without location permission
	ErrTrackingPermission = errors.New("location permission not granted")
	// ErrNotTracking is returned when a fix arrives while tracking is stopped
	ErrNotTracking = errors.New("location tracking is not running")
)

// ValidationError reports a bad input value rejected before it is persisted
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ReferentialError reports a detail record whose catch does not exist
type ReferentialError struct {
	CatchID int64
}

func (e *ReferentialError) Error() string {
	return fmt.Sprintf("catch %d does not exist", e.CatchID)
}

// NotFoundError reports a query for a row that is not there
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("no %s found", e.Entity)
	}
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// IsValidation reports whether err is or wraps a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound reports whether err is or wraps a NotFoundError
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ValidateCoordinates checks latitude and longitude are finite and in range
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return &ValidationError{Field: "latitude", Reason: "must be within [-90, 90]"}
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return &ValidationError{Field: "longitude", Reason: "must be within [-180, 180]"}
	}
	return nil
}
