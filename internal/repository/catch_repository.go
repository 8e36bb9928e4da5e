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

const fullCatchQuery = `SELECT c.id, c.string_id, c.lat, c.lon, c.timestamp, c.uploaded,
		n.catch_id AS n_catch_id, n.num_small_cases, n.num_medium_cases, n.num_large_cases, n.wt_returned,
		l.catch_id AS l_catch_id, l.num_lobsters_retained, l.num_lobsters_returned,
		l.num_brown_retained, l.num_brown_returned, l.num_velvet_retained, l.num_velvet_returned,
		w.catch_id AS w_catch_id, w.num_retained, w.num_returned
	FROM catches c
	LEFT JOIN nephrops_catches n ON n.catch_id = c.id
	LEFT JOIN lobster_crab_catches l ON l.catch_id = c.id
	LEFT JOIN wrasse_catches w ON w.catch_id = c.id`

// fullCatchRow is one row of fullCatchQuery. At most one of the detail
// groups is non-null.
type fullCatchRow struct {
	ID        int64         `db:"id"`
	StringID  string        `db:"string_id"`
	Lat       float64       `db:"lat"`
	Lon       float64       `db:"lon"`
	Timestamp int64         `db:"timestamp"`
	Uploaded  sql.NullInt64 `db:"uploaded"`

	NephropsCatchID sql.NullInt64   `db:"n_catch_id"`
	NumSmallCases   sql.NullFloat64 `db:"num_small_cases"`
	NumMediumCases  sql.NullFloat64 `db:"num_medium_cases"`
	NumLargeCases   sql.NullFloat64 `db:"num_large_cases"`
	WeightReturned  sql.NullFloat64 `db:"wt_returned"`

	LobsterCrabCatchID sql.NullInt64 `db:"l_catch_id"`
	LobstersRetained   sql.NullInt64 `db:"num_lobsters_retained"`
	LobstersReturned   sql.NullInt64 `db:"num_lobsters_returned"`
	BrownRetained      sql.NullInt64 `db:"num_brown_retained"`
	BrownReturned      sql.NullInt64 `db:"num_brown_returned"`
	VelvetRetained     sql.NullInt64 `db:"num_velvet_retained"`
	VelvetReturned     sql.NullInt64 `db:"num_velvet_returned"`

	WrasseCatchID  sql.NullInt64 `db:"w_catch_id"`
	WrasseRetained sql.NullInt64 `db:"num_retained"`
	WrasseReturned sql.NullInt64 `db:"num_returned"`
}

func (r fullCatchRow) toModel() models.FullCatch {
	fc := models.FullCatch{
		Catch: models.Catch{
			ID:        r.ID,
			StringID:  r.StringID,
			Lat:       r.Lat,
			Lon:       r.Lon,
			Timestamp: fromNanos(r.Timestamp),
			Uploaded:  nullableTime(r.Uploaded),
		},
	}

	switch {
	case r.NephropsCatchID.Valid:
		fc.Detail = models.NephropsDetail{
			CatchID:        r.ID,
			NumSmallCases:  r.NumSmallCases.Float64,
			NumMediumCases: r.NumMediumCases.Float64,
			NumLargeCases:  r.NumLargeCases.Float64,
			WeightReturned: r.WeightReturned.Float64,
		}
	case r.LobsterCrabCatchID.Valid:
		fc.Detail = models.LobsterCrabDetail{
			CatchID:          r.ID,
			LobstersRetained: int(r.LobstersRetained.Int64),
			LobstersReturned: int(r.LobstersReturned.Int64),
			BrownRetained:    int(r.BrownRetained.Int64),
			BrownReturned:    int(r.BrownReturned.Int64),
			VelvetRetained:   int(r.VelvetRetained.Int64),
			VelvetReturned:   int(r.VelvetReturned.Int64),
		}
	case r.WrasseCatchID.Valid:
		fc.Detail = models.WrasseDetail{
			CatchID:  r.ID,
			Retained: int(r.WrasseRetained.Int64),
			Returned: int(r.WrasseReturned.Int64),
		}
	}

	return fc
}

// CatchRepository handles database operations for catches and their details
type CatchRepository struct {
	db *database.DB
}

// NewCatchRepository creates a new catch repository
func NewCatchRepository(db *database.DB) *CatchRepository {
	return &CatchRepository{db: db}
}

// InsertCatch stores a catch without a detail and returns its id
func (r *CatchRepository) InsertCatch(ctx context.Context, c models.Catch) (int64, error) {
	var id int64
	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		id, err = insertCatch(ctx, tx, c)
		return err
	})
	return id, err
}

// InsertDetail stores a detail for an existing catch. It fails with a
// ReferentialError when the catch does not exist.
func (r *CatchRepository) InsertDetail(ctx context.Context, d models.CatchDetail) error {
	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		return insertDetail(ctx, tx, d)
	})
}

// InsertFullCatch stores a catch and its detail as one unit. A nil detail
// stores a catch of unknown type.
func (r *CatchRepository) InsertFullCatch(ctx context.Context, c models.Catch, d models.CatchDetail) (int64, error) {
	if d != nil {
		if err := d.Validate(); err != nil {
			return 0, err
		}
	}

	var id int64
	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		if id, err = insertCatch(ctx, tx, c); err != nil {
			return err
		}
		if d == nil {
			return nil
		}
		return insertDetail(ctx, tx, d.WithCatchID(id))
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateCatch rewrites the core fields of a catch that has no detail and has
// not been uploaded
func (r *CatchRepository) UpdateCatch(ctx context.Context, c models.Catch) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		fc, err := getFullCatch(ctx, tx, c.ID)
		if err != nil {
			return err
		}
		if fc.Detail != nil {
			return &models.ValidationError{Field: "id", Reason: "catch with a detail cannot be changed"}
		}
		if fc.Uploaded != nil {
			return &models.ValidationError{Field: "id", Reason: "uploaded catch cannot be changed"}
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE catches SET string_id = ?, lat = ?, lon = ?, timestamp = ? WHERE id = ?`,
			c.StringID, c.Lat, c.Lon, toNanos(c.Timestamp), c.ID)
		if err != nil {
			return fmt.Errorf("failed to update catch: %w", err)
		}
		return nil
	})
}

// GetFullCatch returns a catch joined with its detail
func (r *CatchRepository) GetFullCatch(ctx context.Context, id int64) (*models.FullCatch, error) {
	return getFullCatch(ctx, r.db, id)
}

// ListFullCatches returns every catch, newest first
func (r *CatchRepository) ListFullCatches(ctx context.Context) ([]models.FullCatch, error) {
	var rows []fullCatchRow
	if err := r.db.SelectContext(ctx, &rows, fullCatchQuery+` ORDER BY c.timestamp DESC, c.id DESC`); err != nil {
		return nil, fmt.Errorf("failed to list catches: %w", err)
	}
	return fullCatchesFromRows(rows), nil
}

// GetUnsubmittedFullCatches returns every catch not yet acknowledged by the
// server, in insertion order
func (r *CatchRepository) GetUnsubmittedFullCatches(ctx context.Context) ([]models.FullCatch, error) {
	var catches []models.FullCatch
	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		catches, err = selectUnsubmittedCatches(ctx, tx, nil)
		return err
	})
	return catches, err
}

// GetUnsubmittedFullCatchesForPeriod is GetUnsubmittedFullCatches restricted
// to catches recorded within the period
func (r *CatchRepository) GetUnsubmittedFullCatchesForPeriod(ctx context.Context, period models.Period) ([]models.FullCatch, error) {
	var catches []models.FullCatch
	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		catches, err = selectUnsubmittedCatches(ctx, tx, &period)
		return err
	})
	return catches, err
}

// CountUnsubmittedCatches returns the number of catches awaiting upload
func (r *CatchRepository) CountUnsubmittedCatches(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM catches WHERE uploaded IS NULL`); err != nil {
		return 0, fmt.Errorf("failed to count unsubmitted catches: %w", err)
	}
	return count, nil
}

// MarkCatchesUploaded sets uploaded for exactly the given ids. Unknown ids
// and rows already marked are left alone. Returns the number of rows changed.
func (r *CatchRepository) MarkCatchesUploaded(ctx context.Context, ids []int64, when time.Time) (int64, error) {
	var n int64
	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		n, err = markUploaded(ctx, tx, "catches", ids, when)
		return err
	})
	return n, err
}

func insertCatch(ctx context.Context, tx *sqlx.Tx, c models.Catch) (int64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO catches (string_id, lat, lon, timestamp) VALUES (?, ?, ?, ?)`,
		c.StringID, c.Lat, c.Lon, toNanos(c.Timestamp))
	if err != nil {
		return 0, fmt.Errorf("failed to insert catch: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read catch id: %w", err)
	}
	return id, nil
}

func insertDetail(ctx context.Context, tx *sqlx.Tx, d models.CatchDetail) error {
	if d == nil {
		return &models.ValidationError{Field: "detail", Reason: "is required"}
	}
	if err := d.Validate(); err != nil {
		return err
	}

	catchID := d.OwnerID()
	var exists int
	err := tx.GetContext(ctx, &exists, `SELECT 1 FROM catches WHERE id = ?`, catchID)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.ReferentialError{CatchID: catchID}
	}
	if err != nil {
		return fmt.Errorf("failed to look up catch %d: %w", catchID, err)
	}

	switch v := d.(type) {
	case models.NephropsDetail:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO nephrops_catches (catch_id, num_small_cases, num_medium_cases, num_large_cases, wt_returned)
			VALUES (?, ?, ?, ?, ?)`,
			catchID, v.NumSmallCases, v.NumMediumCases, v.NumLargeCases, v.WeightReturned)
	case models.LobsterCrabDetail:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO lobster_crab_catches (catch_id, num_lobsters_retained, num_lobsters_returned,
				num_brown_retained, num_brown_returned, num_velvet_retained, num_velvet_returned)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			catchID, v.LobstersRetained, v.LobstersReturned, v.BrownRetained, v.BrownReturned, v.VelvetRetained, v.VelvetReturned)
	case models.WrasseDetail:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO wrasse_catches (catch_id, num_retained, num_returned) VALUES (?, ?, ?)`,
			catchID, v.Retained, v.Returned)
	default:
		return &models.ValidationError{Field: "catchType", Reason: fmt.Sprintf("unsupported detail %T", d)}
	}
	if err != nil {
		return fmt.Errorf("failed to insert %s detail for catch %d: %w", d.Type(), catchID, err)
	}
	return nil
}

func getFullCatch(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.FullCatch, error) {
	var row fullCatchRow
	err := sqlx.GetContext(ctx, q, &row, fullCatchQuery+` WHERE c.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "catch", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get catch %d: %w", id, err)
	}

	fc := row.toModel()
	return &fc, nil
}

func selectUnsubmittedCatches(ctx context.Context, q sqlx.QueryerContext, period *models.Period) ([]models.FullCatch, error) {
	query := fullCatchQuery + ` WHERE c.uploaded IS NULL`
	var args []interface{}
	if period != nil {
		query += ` AND c.timestamp >= ? AND c.timestamp < ?`
		args = append(args, toNanos(period.Start), toNanos(period.End))
	}
	query += ` ORDER BY c.id`

	var rows []fullCatchRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query unsubmitted catches: %w", err)
	}
	return fullCatchesFromRows(rows), nil
}

func fullCatchesFromRows(rows []fullCatchRow) []models.FullCatch {
	catches := make([]models.FullCatch, 0, len(rows))
	for _, row := range rows {
		catches = append(catches, row.toModel())
	}
	return catches
}
