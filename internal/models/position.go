package models

import (
	"fmt"
	"math"
	"time"
)

// Fix is a raw sample pushed by the location provider
type Fix struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Time      time.Time `json:"time"`
	Accuracy  float64   `json:"accuracy"`
}

// Position represents a stored location fix
type Position struct {
	ID        int64      `json:"id"`
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Timestamp time.Time  `json:"timestamp"`
	Accuracy  float64    `json:"accuracy"`
	Uploaded  *time.Time `json:"uploaded,omitempty"`
}

// IsUploaded reports whether the server has acknowledged this position
func (p Position) IsUploaded() bool {
	return p.Uploaded != nil
}

// PositionFromFix converts a provider fix into an unsaved position
func PositionFromFix(f Fix) Position {
	return Position{
		Latitude:  f.Latitude,
		Longitude: f.Longitude,
		Timestamp: f.Time,
		Accuracy:  f.Accuracy,
	}
}

// Validate checks coordinate ranges and accuracy
func (p Position) Validate() error {
	if err := ValidateCoordinates(p.Latitude, p.Longitude); err != nil {
		return err
	}
	if p.Accuracy < 0 || math.IsNaN(p.Accuracy) || math.IsInf(p.Accuracy, 0) {
		return &ValidationError{Field: "accuracy", Reason: "must be a non-negative number of meters"}
	}
	return ValidateTimestamp("timestamp", p.Timestamp)
}

// Timestamps are persisted as Unix nanoseconds, which bounds the instants
// the store can hold.
var (
	MinTimestamp = time.Unix(0, math.MinInt64).UTC()
	MaxTimestamp = time.Unix(0, math.MaxInt64).UTC()
)

// ValidateTimestamp rejects zero times and times the store cannot represent
func ValidateTimestamp(field string, t time.Time) error {
	if t.IsZero() {
		return &ValidationError{Field: field, Reason: "is required"}
	}
	if t.Before(MinTimestamp) || t.After(MaxTimestamp) {
		return &ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("must be between %s and %s", MinTimestamp.Format(time.RFC3339), MaxTimestamp.Format(time.RFC3339)),
		}
	}
	return nil
}
