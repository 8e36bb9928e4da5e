package models

import "time"

// DMS is a coordinate entered as degrees, minutes and seconds
type DMS struct {
	Degrees int     `json:"degrees"`
	Minutes int     `json:"minutes"`
	Seconds float64 `json:"seconds"`
}

// CatchForm is a catch as submitted by the entry form. Coordinates may be
// given in decimal degrees or as DMS; DMS wins when both are present.
type CatchForm struct {
	CatchType string    `json:"catchType"`
	StringID  string    `json:"stringNum"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	LatDMS    *DMS      `json:"latDms,omitempty"`
	LonDMS    *DMS      `json:"lonDms,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	NumSmallCases  float64 `json:"numSmallCases"`
	NumMediumCases float64 `json:"numMediumCases"`
	NumLargeCases  float64 `json:"numLargeCases"`
	WeightReturned float64 `json:"wtReturned"`

	LobstersRetained int `json:"numLobstersRetained"`
	LobstersReturned int `json:"numLobstersReturned"`
	BrownRetained    int `json:"numBrownRetained"`
	BrownReturned    int `json:"numBrownReturned"`
	VelvetRetained   int `json:"numVelvetRetained"`
	VelvetReturned   int `json:"numVelvetReturned"`

	WrasseRetained int `json:"numRetained"`
	WrasseReturned int `json:"numReturned"`
}

// Detail builds the detail variant selected by CatchType. Unknown catches
// have no detail.
func (f CatchForm) Detail() (CatchDetail, error) {
	t, err := ParseCatchType(f.CatchType)
	if err != nil {
		return nil, err
	}

	var d CatchDetail
	switch t {
	case CatchTypeNephrops:
		d = NephropsDetail{
			NumSmallCases:  f.NumSmallCases,
			NumMediumCases: f.NumMediumCases,
			NumLargeCases:  f.NumLargeCases,
			WeightReturned: f.WeightReturned,
		}
	case CatchTypeLobsterCrab:
		d = LobsterCrabDetail{
			LobstersRetained: f.LobstersRetained,
			LobstersReturned: f.LobstersReturned,
			BrownRetained:    f.BrownRetained,
			BrownReturned:    f.BrownReturned,
			VelvetRetained:   f.VelvetRetained,
			VelvetReturned:   f.VelvetReturned,
		}
	case CatchTypeWrasse:
		d = WrasseDetail{
			Retained: f.WrasseRetained,
			Returned: f.WrasseReturned,
		}
	default:
		return nil, nil
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}
