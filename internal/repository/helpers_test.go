package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jengzang/fishing-sync/internal/database"
	"github.com/jengzang/fishing-sync/internal/models"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(context.Background(), database.Config{Path: filepath.Join(t.TempDir(), "fishing.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

var baseTime = time.Date(2024, 6, 3, 14, 30, 0, 123456789, time.UTC)

func fixAt(i int) models.Position {
	return models.Position{
		Latitude:  56.34 + float64(i)*0.001,
		Longitude: -2.79 - float64(i)*0.001,
		Timestamp: baseTime.Add(time.Duration(i) * time.Minute),
		Accuracy:  4.5,
	}
}

func insertPositions(t *testing.T, s *Store, n int) []int64 {
	t.Helper()
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		id, err := s.Positions.InsertPosition(context.Background(), fixAt(i))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

// uploadedSnapshot returns id -> uploaded (nil when null) for every row of table
func uploadedSnapshot(t *testing.T, s *Store, table string) map[int64]*int64 {
	t.Helper()
	var rows []struct {
		ID       int64  `db:"id"`
		Uploaded *int64 `db:"uploaded"`
	}
	require.NoError(t, s.db.Select(&rows, "SELECT id, uploaded FROM "+table+" ORDER BY id"))
	snap := make(map[int64]*int64, len(rows))
	for _, r := range rows {
		snap[r.ID] = r.Uploaded
	}
	return snap
}
