package service

import (
	"context"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/jengzang/fishing-sync/internal/metrics"
	"github.com/jengzang/fishing-sync/internal/models"
	"github.com/jengzang/fishing-sync/internal/spatial"
)

// PositionWriter stores accepted fixes
type PositionWriter interface {
	InsertPosition(ctx context.Context, p models.Position) (int64, error)
}

// CatchWriter stores a catch together with its detail
type CatchWriter interface {
	InsertFullCatch(ctx context.Context, c models.Catch, d models.CatchDetail) (int64, error)
}

// FixResult describes what happened to one location fix
type FixResult struct {
	ID     int64  `json:"id,omitempty"`
	Stored bool   `json:"stored"`
	Reason string `json:"reason,omitempty"`
}

// CaptureService turns provider fixes and catch forms into stored records
type CaptureService struct {
	positions PositionWriter
	catches   CatchWriter
	now       func() time.Time
}

// NewCaptureService creates a new capture service
func NewCaptureService(positions PositionWriter, catches CatchWriter) *CaptureService {
	return &CaptureService{
		positions: positions,
		catches:   catches,
		now:       time.Now,
	}
}

// HandleFix stores one fix immediately. Fixes with out-of-range values or the
// degenerate 0/0 position some receivers report on cold start are dropped
// without an error; only storage failures are returned.
func (s *CaptureService) HandleFix(ctx context.Context, fix models.Fix) (FixResult, error) {
	if fix.Latitude == 0 && fix.Longitude == 0 {
		return s.reject(fix, "degenerate 0/0 fix"), nil
	}

	id, err := s.positions.InsertPosition(ctx, models.PositionFromFix(fix))
	if models.IsValidation(err) {
		return s.reject(fix, err.Error()), nil
	}
	if err != nil {
		metrics.FixesTotal.WithLabelValues("error").Inc()
		return FixResult{}, err
	}

	metrics.FixesTotal.WithLabelValues("stored").Inc()
	return FixResult{ID: id, Stored: true}, nil
}

func (s *CaptureService) reject(fix models.Fix, reason string) FixResult {
	metrics.FixesTotal.WithLabelValues("rejected").Inc()
	log.WithFields(log.Fields{
		"lat":      fix.Latitude,
		"lon":      fix.Longitude,
		"accuracy": fix.Accuracy,
		"reason":   reason,
	}).Debug("fix rejected")
	return FixResult{Stored: false, Reason: reason}
}

// SubmitCatch validates a catch form and stores the catch and its detail as
// one unit. A missing timestamp is taken from the local clock.
func (s *CaptureService) SubmitCatch(ctx context.Context, form models.CatchForm) (*models.FullCatch, error) {
	detail, err := form.Detail()
	if err != nil {
		metrics.CatchesTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	lat, lon, err := spatial.ResolveCatchCoordinates(form)
	if err != nil {
		metrics.CatchesTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	c := models.Catch{
		StringID:  strings.TrimSpace(form.StringID),
		Lat:       lat,
		Lon:       lon,
		Timestamp: form.Timestamp,
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = s.now()
	}
	if err := c.Validate(); err != nil {
		metrics.CatchesTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	id, err := s.catches.InsertFullCatch(ctx, c, detail)
	if err != nil {
		if models.IsValidation(err) {
			metrics.CatchesTotal.WithLabelValues("invalid").Inc()
		} else {
			metrics.CatchesTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	c.ID = id
	fc := &models.FullCatch{Catch: c}
	if detail != nil {
		fc.Detail = detail.WithCatchID(id)
	}

	metrics.CatchesTotal.WithLabelValues("stored").Inc()
	log.WithFields(log.Fields{"id": id, "stringNum": c.StringID, "type": fc.Type()}).Info("catch recorded")
	return fc, nil
}
