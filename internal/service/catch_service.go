package service

import (
	"context"
	"fmt"

	"github.com/jengzang/fishing-sync/internal/models"
	"github.com/jengzang/fishing-sync/internal/repository"
)

// CatchService handles read and edit access to recorded catches
type CatchService struct {
	catchRepo *repository.CatchRepository
}

// NewCatchService creates a new catch service
func NewCatchService(catchRepo *repository.CatchRepository) *CatchService {
	return &CatchService{catchRepo: catchRepo}
}

// ListCatches returns every catch, newest first
func (s *CatchService) ListCatches(ctx context.Context) ([]models.FullCatch, error) {
	catches, err := s.catchRepo.ListFullCatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list catches: %w", err)
	}
	return catches, nil
}

// GetCatch retrieves a single catch by ID
func (s *CatchService) GetCatch(ctx context.Context, id int64) (*models.FullCatch, error) {
	return s.catchRepo.GetFullCatch(ctx, id)
}

// GetUnsubmitted returns catches awaiting upload
func (s *CatchService) GetUnsubmitted(ctx context.Context) ([]models.FullCatch, error) {
	return s.catchRepo.GetUnsubmittedFullCatches(ctx)
}

// CountUnsubmitted returns the number of catches awaiting upload
func (s *CatchService) CountUnsubmitted(ctx context.Context) (int64, error) {
	return s.catchRepo.CountUnsubmittedCatches(ctx)
}

// UpdateCatch corrects the core fields of a catch that has no detail yet
func (s *CatchService) UpdateCatch(ctx context.Context, id int64, c models.Catch) (*models.FullCatch, error) {
	c.ID = id
	if err := s.catchRepo.UpdateCatch(ctx, c); err != nil {
		return nil, err
	}
	return s.catchRepo.GetFullCatch(ctx, id)
}
