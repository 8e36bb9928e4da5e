package cloudsync

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jengzang/fishing-sync/internal/models"
)

// WireTimeFormat is the timestamp layout of outbound records
const WireTimeFormat = "2006-01-02T15:04:05Z"

// Payload is the body of one upload request
type Payload struct {
	Device    string           `json:"device"`
	Captures  []map[string]any `json:"captures"`
	Positions []WirePosition   `json:"positions"`
}

// WirePosition is a position as sent to the server
type WirePosition struct {
	ID        int64   `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	Timestamp string  `json:"timestamp"`
}

// BuildPayload serializes pending records. Every record carries its store id
// so the server can dedupe resubmissions.
func BuildPayload(device string, catches []models.FullCatch, positions []models.Position) (*Payload, error) {
	p := &Payload{
		Device:    device,
		Captures:  make([]map[string]any, 0, len(catches)),
		Positions: make([]WirePosition, 0, len(positions)),
	}

	for _, c := range catches {
		capture, err := wireCapture(c)
		if err != nil {
			return nil, err
		}
		p.Captures = append(p.Captures, capture)
	}

	for _, pos := range positions {
		p.Positions = append(p.Positions, WirePosition{
			ID:        pos.ID,
			Latitude:  pos.Latitude,
			Longitude: pos.Longitude,
			Accuracy:  pos.Accuracy,
			Timestamp: wireTime(pos.Timestamp),
		})
	}
	return p, nil
}

// wireCapture flattens a catch and its detail fields into one object
func wireCapture(c models.FullCatch) (map[string]any, error) {
	capture := map[string]any{}
	if c.Detail != nil {
		b, err := json.Marshal(c.Detail)
		if err != nil {
			return nil, fmt.Errorf("failed to encode catch %d detail: %w", c.ID, err)
		}
		if err := json.Unmarshal(b, &capture); err != nil {
			return nil, fmt.Errorf("failed to encode catch %d detail: %w", c.ID, err)
		}
		delete(capture, "catchId")
	}

	capture["id"] = c.ID
	capture["stringNum"] = c.StringID
	capture["lat"] = c.Lat
	capture["lon"] = c.Lon
	capture["timestamp"] = wireTime(c.Timestamp)
	capture["catchType"] = string(c.Type())
	return capture, nil
}

func wireTime(t time.Time) string {
	return t.UTC().Format(WireTimeFormat)
}

// Ack is the server's confirmation of which records it accepted
type Ack struct {
	CatchIDs    []int64
	PositionIDs []int64
	// Timestamp is the server-confirmed upload moment, zero if not supplied
	Timestamp time.Time
}

type ackID struct {
	ID *int64 `json:"id"`
}

type ackBody struct {
	Captures  *[]ackID          `json:"captures"`
	Positions *[]ackID          `json:"positions"`
	Tows      []json.RawMessage `json:"tows"`
	Timestamp *string           `json:"timestamp"`
}

// ParseAck decodes a success response. Anything other than an object with
// captures and positions arrays of {id} objects is an error.
func ParseAck(body []byte) (*Ack, error) {
	var raw ackBody
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("malformed acknowledgement: %w", err)
	}
	if raw.Captures == nil || raw.Positions == nil {
		return nil, fmt.Errorf("malformed acknowledgement: captures and positions arrays are required")
	}

	ack := &Ack{}
	var err error
	if ack.CatchIDs, err = ackIDs("captures", *raw.Captures); err != nil {
		return nil, err
	}
	if ack.PositionIDs, err = ackIDs("positions", *raw.Positions); err != nil {
		return nil, err
	}

	if raw.Timestamp != nil && *raw.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339Nano, *raw.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("malformed acknowledgement timestamp %q: %w", *raw.Timestamp, err)
		}
		if err := models.ValidateTimestamp("timestamp", ts); err != nil {
			return nil, fmt.Errorf("malformed acknowledgement: %w", err)
		}
		ack.Timestamp = ts.UTC()
	}
	return ack, nil
}

func ackIDs(field string, items []ackID) ([]int64, error) {
	ids := make([]int64, 0, len(items))
	for i, item := range items {
		if item.ID == nil {
			return nil, fmt.Errorf("malformed acknowledgement: %s[%d] has no id", field, i)
		}
		ids = append(ids, *item.ID)
	}
	return ids, nil
}

// acknowledged returns the ids of acked that were actually submitted
func acknowledged(acked []int64, submitted map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(acked))
	for _, id := range acked {
		if _, ok := submitted[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
