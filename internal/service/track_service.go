package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jengzang/fishing-sync/internal/models"
	"github.com/jengzang/fishing-sync/internal/repository"
	"github.com/jengzang/fishing-sync/internal/spatial"
	geojson "github.com/paulmach/go.geojson"
)

// TrackService handles read access to stored positions and track export
type TrackService struct {
	positionRepo *repository.PositionRepository
	catchRepo    *repository.CatchRepository
}

// NewTrackService creates a new track service
func NewTrackService(positionRepo *repository.PositionRepository, catchRepo *repository.CatchRepository) *TrackService {
	return &TrackService{
		positionRepo: positionRepo,
		catchRepo:    catchRepo,
	}
}

// GetLastPosition returns the most recent position
func (s *TrackService) GetLastPosition(ctx context.Context) (*models.Position, error) {
	return s.positionRepo.GetLastPosition(ctx)
}

// PositionCounts summarises the position table
type PositionCounts struct {
	Total      int64 `json:"total"`
	Unuploaded int64 `json:"unuploaded"`
}

// CountPositions returns total and unuploaded position counts
func (s *TrackService) CountPositions(ctx context.Context) (*PositionCounts, error) {
	total, err := s.positionRepo.CountPositions(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := s.positionRepo.CountUnuploadedPositions(ctx)
	if err != nil {
		return nil, err
	}
	return &PositionCounts{Total: total, Unuploaded: pending}, nil
}

// GetUnuploadedPositions returns positions awaiting upload
func (s *TrackService) GetUnuploadedPositions(ctx context.Context) ([]models.Position, error) {
	return s.positionRepo.GetUnuploadedPositions(ctx)
}

// ExportDay renders the fishing day containing day as GeoJSON. A positive
// simplifyMeters thins the track line before rendering.
func (s *TrackService) ExportDay(ctx context.Context, day time.Time, simplifyMeters float64) (*geojson.FeatureCollection, error) {
	period := models.PeriodFor(day)

	positions, err := s.positionRepo.ListPositions(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("failed to export track: %w", err)
	}

	all, err := s.catchRepo.ListFullCatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export catches: %w", err)
	}
	catches := make([]models.FullCatch, 0, len(all))
	for _, c := range all {
		if period.Contains(c.Timestamp) {
			catches = append(catches, c)
		}
	}

	return spatial.TrackFeatureCollection(spatial.SimplifyTrack(positions, simplifyMeters), catches), nil
}
