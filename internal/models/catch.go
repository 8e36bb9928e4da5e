package models

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// CatchType tags which detail variant a catch carries
type CatchType string

// Catch types
const (
	CatchTypeNephrops    CatchType = "nephrops"
	CatchTypeLobsterCrab CatchType = "lobster_crab"
	CatchTypeWrasse      CatchType = "wrasse"
	CatchTypeUnknown     CatchType = "unknown"
)

// ParseCatchType maps a form value onto a CatchType
func ParseCatchType(s string) (CatchType, error) {
	switch CatchType(strings.ToLower(strings.TrimSpace(s))) {
	case CatchTypeNephrops:
		return CatchTypeNephrops, nil
	case CatchTypeLobsterCrab, "lobster/crab", "lobster-crab":
		return CatchTypeLobsterCrab, nil
	case CatchTypeWrasse:
		return CatchTypeWrasse, nil
	case CatchTypeUnknown, "":
		return CatchTypeUnknown, nil
	}
	return "", &ValidationError{Field: "catchType", Reason: "must be nephrops, lobster_crab, wrasse or unknown"}
}

// Catch is the top-level record of one string's catch
type Catch struct {
	ID        int64      `json:"id"`
	StringID  string     `json:"stringNum"`
	Lat       float64    `json:"lat"`
	Lon       float64    `json:"lon"`
	Timestamp time.Time  `json:"timestamp"`
	Uploaded  *time.Time `json:"uploaded,omitempty"`
}

// Validate checks the core catch fields
func (c Catch) Validate() error {
	if strings.TrimSpace(c.StringID) == "" {
		return &ValidationError{Field: "stringNum", Reason: "must not be empty"}
	}
	if err := ValidateCoordinates(c.Lat, c.Lon); err != nil {
		return err
	}
	return ValidateTimestamp("timestamp", c.Timestamp)
}

// CatchDetail is one of NephropsDetail, LobsterCrabDetail or WrasseDetail.
// A catch without a detail has type CatchTypeUnknown.
type CatchDetail interface {
	Type() CatchType
	Validate() error
	// WithCatchID returns a copy owned by the given catch
	WithCatchID(id int64) CatchDetail
	OwnerID() int64
}

// NephropsDetail records nephrops cases landed and weight returned
type NephropsDetail struct {
	CatchID        int64   `json:"catchId"`
	NumSmallCases  float64 `json:"numSmallCases"`
	NumMediumCases float64 `json:"numMediumCases"`
	NumLargeCases  float64 `json:"numLargeCases"`
	WeightReturned float64 `json:"wtReturned"`
}

func (d NephropsDetail) Type() CatchType { return CatchTypeNephrops }
func (d NephropsDetail) OwnerID() int64  { return d.CatchID }

func (d NephropsDetail) WithCatchID(id int64) CatchDetail {
	d.CatchID = id
	return d
}

func (d NephropsDetail) Validate() error {
	fields := map[string]float64{
		"numSmallCases":  d.NumSmallCases,
		"numMediumCases": d.NumMediumCases,
		"numLargeCases":  d.NumLargeCases,
		"wtReturned":     d.WeightReturned,
	}
	for name, v := range fields {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return &ValidationError{Field: name, Reason: "must be a non-negative number"}
		}
	}
	return nil
}

// LobsterCrabDetail records lobster, brown crab and velvet crab counts
type LobsterCrabDetail struct {
	CatchID          int64 `json:"catchId"`
	LobstersRetained int   `json:"numLobstersRetained"`
	LobstersReturned int   `json:"numLobstersReturned"`
	BrownRetained    int   `json:"numBrownRetained"`
	BrownReturned    int   `json:"numBrownReturned"`
	VelvetRetained   int   `json:"numVelvetRetained"`
	VelvetReturned   int   `json:"numVelvetReturned"`
}

func (d LobsterCrabDetail) Type() CatchType { return CatchTypeLobsterCrab }
func (d LobsterCrabDetail) OwnerID() int64  { return d.CatchID }

func (d LobsterCrabDetail) WithCatchID(id int64) CatchDetail {
	d.CatchID = id
	return d
}

func (d LobsterCrabDetail) Validate() error {
	return nonNegativeCounts(map[string]int{
		"numLobstersRetained": d.LobstersRetained,
		"numLobstersReturned": d.LobstersReturned,
		"numBrownRetained":    d.BrownRetained,
		"numBrownReturned":    d.BrownReturned,
		"numVelvetRetained":   d.VelvetRetained,
		"numVelvetReturned":   d.VelvetReturned,
	})
}

// WrasseDetail records wrasse retained and returned
type WrasseDetail struct {
	CatchID  int64 `json:"catchId"`
	Retained int   `json:"numRetained"`
	Returned int   `json:"numReturned"`
}

func (d WrasseDetail) Type() CatchType { return CatchTypeWrasse }
func (d WrasseDetail) OwnerID() int64  { return d.CatchID }

func (d WrasseDetail) WithCatchID(id int64) CatchDetail {
	d.CatchID = id
	return d
}

func (d WrasseDetail) Validate() error {
	return nonNegativeCounts(map[string]int{
		"numRetained": d.Retained,
		"numReturned": d.Returned,
	})
}

func nonNegativeCounts(counts map[string]int) error {
	for name, v := range counts {
		if v < 0 {
			return &ValidationError{Field: name, Reason: "must not be negative"}
		}
	}
	return nil
}

// FullCatch joins a catch with whichever detail it has. Detail is nil for
// catches of unknown type.
type FullCatch struct {
	Catch
	Detail CatchDetail
}

// Type returns the catch type of the attached detail
func (fc FullCatch) Type() CatchType {
	if fc.Detail == nil {
		return CatchTypeUnknown
	}
	return fc.Detail.Type()
}

// MarshalJSON flattens the catch and tags the detail with its type
func (fc FullCatch) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Catch
		CatchType CatchType   `json:"catchType"`
		Detail    CatchDetail `json:"detail,omitempty"`
	}{
		Catch:     fc.Catch,
		CatchType: fc.Type(),
		Detail:    fc.Detail,
	})
}
