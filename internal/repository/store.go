package repository

import (
	"context"
	"time"

	"github.com/jengzang/fishing-sync/internal/database"
	"github.com/jengzang/fishing-sync/internal/models"
	"github.com/jmoiron/sqlx"
)

// Store groups the repositories over one database handle
type Store struct {
	db        *database.DB
	Positions *PositionRepository
	Catches   *CatchRepository
	Settings  *SettingsRepository
}

// NewStore creates the repositories over db
func NewStore(db *database.DB) *Store {
	return &Store{
		db:        db,
		Positions: NewPositionRepository(db),
		Catches:   NewCatchRepository(db),
		Settings:  NewSettingsRepository(db),
	}
}

// Pending is the set of records awaiting upload, read in one snapshot
type Pending struct {
	Catches   []models.FullCatch
	Positions []models.Position
}

// Empty reports whether there is nothing to upload
func (p *Pending) Empty() bool {
	return len(p.Catches) == 0 && len(p.Positions) == 0
}

// UploadMarks counts rows changed by MarkUploaded
type UploadMarks struct {
	Catches   int64
	Positions int64
}

// GetPending reads unsubmitted catches and unuploaded positions in a single
// transaction. A nil period selects everything outstanding.
func (s *Store) GetPending(ctx context.Context, period *models.Period) (*Pending, error) {
	pending := &Pending{}
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		if pending.Catches, err = selectUnsubmittedCatches(ctx, tx, period); err != nil {
			return err
		}
		pending.Positions, err = selectUnuploadedPositions(ctx, tx, period)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// MarkUploaded marks the acknowledged catch and position ids in one transaction
func (s *Store) MarkUploaded(ctx context.Context, catchIDs, positionIDs []int64, when time.Time) (UploadMarks, error) {
	var marks UploadMarks
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		if marks.Catches, err = markUploaded(ctx, tx, "catches", catchIDs, when); err != nil {
			return err
		}
		marks.Positions, err = markUploaded(ctx, tx, "positions", positionIDs, when)
		return err
	})
	if err != nil {
		return UploadMarks{}, err
	}
	return marks, nil
}
