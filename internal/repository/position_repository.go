package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jengzang/fishing-sync/internal/database"
	"github.com/jengzang/fishing-sync/internal/models"
	"github.com/jmoiron/sqlx"
)

const positionColumns = `id, latitude, longitude, timestamp, accuracy, uploaded`

type positionRow struct {
	ID        int64         `db:"id"`
	Latitude  float64       `db:"latitude"`
	Longitude float64       `db:"longitude"`
	Timestamp int64         `db:"timestamp"`
	Accuracy  float64       `db:"accuracy"`
	Uploaded  sql.NullInt64 `db:"uploaded"`
}

func (r positionRow) toModel() models.Position {
	return models.Position{
		ID:        r.ID,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Timestamp: fromNanos(r.Timestamp),
		Accuracy:  r.Accuracy,
		Uploaded:  nullableTime(r.Uploaded),
	}
}

// PositionRepository handles database operations for location fixes
type PositionRepository struct {
	db *database.DB
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db *database.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// InsertPosition validates and stores a fix, returning its id. Ids are
// assigned in insertion order and never reused.
func (r *PositionRepository) InsertPosition(ctx context.Context, p models.Position) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO positions (latitude, longitude, timestamp, accuracy) VALUES (?, ?, ?, ?)`,
		p.Latitude, p.Longitude, toNanos(p.Timestamp), p.Accuracy)
	if err != nil {
		return 0, fmt.Errorf("failed to insert position: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read position id: %w", err)
	}
	return id, nil
}

// GetUnuploadedPositions returns all positions not yet acknowledged by the
// server, in insertion order
func (r *PositionRepository) GetUnuploadedPositions(ctx context.Context) ([]models.Position, error) {
	var positions []models.Position
	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		positions, err = selectUnuploadedPositions(ctx, tx, nil)
		return err
	})
	return positions, err
}

// GetUnuploadedPositionsForPeriod is GetUnuploadedPositions restricted to
// fixes taken within the period
func (r *PositionRepository) GetUnuploadedPositionsForPeriod(ctx context.Context, period models.Period) ([]models.Position, error) {
	var positions []models.Position
	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		positions, err = selectUnuploadedPositions(ctx, tx, &period)
		return err
	})
	return positions, err
}

func selectUnuploadedPositions(ctx context.Context, q sqlx.QueryerContext, period *models.Period) ([]models.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE uploaded IS NULL`
	var args []interface{}
	if period != nil {
		query += ` AND timestamp >= ? AND timestamp < ?`
		args = append(args, toNanos(period.Start), toNanos(period.End))
	}
	query += ` ORDER BY id`

	var rows []positionRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query unuploaded positions: %w", err)
	}
	return positionsFromRows(rows), nil
}

// ListPositions returns every position taken within the period, in insertion order
func (r *PositionRepository) ListPositions(ctx context.Context, period models.Period) ([]models.Position, error) {
	var rows []positionRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+positionColumns+` FROM positions WHERE timestamp >= ? AND timestamp < ? ORDER BY id`,
		toNanos(period.Start), toNanos(period.End))
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	return positionsFromRows(rows), nil
}

// MarkPositionsUploaded sets uploaded for exactly the given ids. Unknown ids
// and rows already marked are left alone. Returns the number of rows changed.
func (r *PositionRepository) MarkPositionsUploaded(ctx context.Context, ids []int64, when time.Time) (int64, error) {
	var n int64
	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		n, err = markUploaded(ctx, tx, "positions", ids, when)
		return err
	})
	return n, err
}

// GetLastPosition returns the most recent position by timestamp
func (r *PositionRepository) GetLastPosition(ctx context.Context) (*models.Position, error) {
	var row positionRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+positionColumns+` FROM positions ORDER BY timestamp DESC, id DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "position"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last position: %w", err)
	}

	p := row.toModel()
	return &p, nil
}

// CountPositions returns the number of stored positions
func (r *PositionRepository) CountPositions(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM positions`); err != nil {
		return 0, fmt.Errorf("failed to count positions: %w", err)
	}
	return count, nil
}

// CountUnuploadedPositions returns the number of positions awaiting upload
func (r *PositionRepository) CountUnuploadedPositions(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM positions WHERE uploaded IS NULL`); err != nil {
		return 0, fmt.Errorf("failed to count unuploaded positions: %w", err)
	}
	return count, nil
}

func positionsFromRows(rows []positionRow) []models.Position {
	positions := make([]models.Position, 0, len(rows))
	for _, row := range rows {
		positions = append(positions, row.toModel())
	}
	return positions
}
