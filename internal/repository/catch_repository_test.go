package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jengzang/fishing-sync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatch(stringID string, at time.Time) models.Catch {
	return models.Catch{StringID: stringID, Lat: 56.2, Lon: -2.6, Timestamp: at}
}

func TestInsertFullCatchVariants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	testCases := []struct {
		name   string
		detail models.CatchDetail
		want   models.CatchType
	}{
		{"nephrops", models.NephropsDetail{NumSmallCases: 1.5, NumMediumCases: 2, NumLargeCases: 0.5, WeightReturned: 3.25}, models.CatchTypeNephrops},
		{"lobster crab", models.LobsterCrabDetail{LobstersRetained: 4, LobstersReturned: 1, BrownRetained: 6, BrownReturned: 2, VelvetRetained: 3, VelvetReturned: 0}, models.CatchTypeLobsterCrab},
		{"wrasse", models.WrasseDetail{Retained: 7, Returned: 2}, models.CatchTypeWrasse},
		{"unknown", nil, models.CatchTypeUnknown},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := s.Catches.InsertFullCatch(ctx, newCatch("S-"+tc.name, baseTime), tc.detail)
			require.NoError(t, err)

			fc, err := s.Catches.GetFullCatch(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, tc.want, fc.Type())
			assert.Equal(t, "S-"+tc.name, fc.StringID)
			assert.True(t, baseTime.Equal(fc.Timestamp))
			if tc.detail != nil {
				assert.Equal(t, tc.detail.WithCatchID(id), fc.Detail)
			} else {
				assert.Nil(t, fc.Detail)
			}
		})
	}
}

func TestInsertDetailRequiresExistingCatch(t *testing.T) {
	s := newTestStore(t)

	err := s.Catches.InsertDetail(context.Background(), models.WrasseDetail{CatchID: 99, Retained: 1})

	var refErr *models.ReferentialError
	require.True(t, errors.As(err, &refErr))
	assert.EqualValues(t, 99, refErr.CatchID)
}

func TestInsertDetailForExistingCatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Catches.InsertCatch(ctx, newCatch("A1", baseTime))
	require.NoError(t, err)
	require.NoError(t, s.Catches.InsertDetail(ctx, models.WrasseDetail{CatchID: id, Retained: 3}))

	// a second variant for the same catch is refused
	assert.Error(t, s.Catches.InsertDetail(ctx, models.NephropsDetail{CatchID: id}))

	fc, err := s.Catches.GetFullCatch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.CatchTypeWrasse, fc.Type())
}

func TestInsertFullCatchIsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Catches.InsertFullCatch(ctx, newCatch("A1", baseTime), models.LobsterCrabDetail{LobstersRetained: -1})
	assert.True(t, models.IsValidation(err))

	_, err = s.Catches.InsertFullCatch(ctx, models.Catch{StringID: " ", Lat: 1, Lon: 1, Timestamp: baseTime}, models.WrasseDetail{})
	assert.True(t, models.IsValidation(err))

	// the catch row is written before the detail fails, and must not survive
	_, err = s.Catches.InsertFullCatch(ctx, newCatch("A2", baseTime), foreignDetail{})
	assert.True(t, models.IsValidation(err))

	catches, err := s.Catches.ListFullCatches(ctx)
	require.NoError(t, err)
	assert.Empty(t, catches)
}

type foreignDetail struct{ catchID int64 }

func (d foreignDetail) Type() models.CatchType { return "foreign" }
func (d foreignDetail) Validate() error        { return nil }
func (d foreignDetail) OwnerID() int64         { return d.catchID }

func (d foreignDetail) WithCatchID(id int64) models.CatchDetail {
	d.catchID = id
	return d
}

func TestGetFullCatchNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Catches.GetFullCatch(context.Background(), 7)
	assert.True(t, models.IsNotFound(err))
}

func TestUnsubmittedCatchesAndMarks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 4; i++ {
		id, err := s.Catches.InsertFullCatch(ctx, newCatch("S", baseTime.Add(time.Duration(i)*time.Hour)), models.WrasseDetail{Retained: i})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	count, err := s.Catches.CountUnsubmittedCatches(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)

	n, err := s.Catches.MarkCatchesUploaded(ctx, []int64{ids[0], ids[2]}, baseTime)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	pending, err := s.Catches.GetUnsubmittedFullCatches(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, ids[1], pending[0].ID)
	assert.Equal(t, ids[3], pending[1].ID)

	count, err = s.Catches.CountUnsubmittedCatches(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestUnsubmittedCatchesForPeriod(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	period := models.PeriodFor(baseTime)

	_, err := s.Catches.InsertFullCatch(ctx, newCatch("yesterday", period.Start.Add(-time.Minute)), nil)
	require.NoError(t, err)
	todayID, err := s.Catches.InsertFullCatch(ctx, newCatch("today", period.Start.Add(time.Minute)), nil)
	require.NoError(t, err)

	got, err := s.Catches.GetUnsubmittedFullCatchesForPeriod(ctx, period)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, todayID, got[0].ID)
}

func TestListFullCatchesNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older, err := s.Catches.InsertFullCatch(ctx, newCatch("old", baseTime), nil)
	require.NoError(t, err)
	newer, err := s.Catches.InsertFullCatch(ctx, newCatch("new", baseTime.Add(time.Hour)), nil)
	require.NoError(t, err)

	all, err := s.Catches.ListFullCatches(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer, all[0].ID)
	assert.Equal(t, older, all[1].ID)
}

func TestUpdateCatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bare, err := s.Catches.InsertFullCatch(ctx, newCatch("A1", baseTime), nil)
	require.NoError(t, err)
	withDetail, err := s.Catches.InsertFullCatch(ctx, newCatch("B2", baseTime), models.WrasseDetail{Retained: 1})
	require.NoError(t, err)

	updated := newCatch("A1-fixed", baseTime.Add(time.Minute))
	updated.ID = bare
	require.NoError(t, s.Catches.UpdateCatch(ctx, updated))

	fc, err := s.Catches.GetFullCatch(ctx, bare)
	require.NoError(t, err)
	assert.Equal(t, "A1-fixed", fc.StringID)

	locked := newCatch("B2-fixed", baseTime)
	locked.ID = withDetail
	assert.True(t, models.IsValidation(s.Catches.UpdateCatch(ctx, locked)))

	_, err = s.Catches.MarkCatchesUploaded(ctx, []int64{bare}, baseTime)
	require.NoError(t, err)
	assert.True(t, models.IsValidation(s.Catches.UpdateCatch(ctx, updated)))

	missing := newCatch("C3", baseTime)
	missing.ID = 404
	assert.True(t, models.IsNotFound(s.Catches.UpdateCatch(ctx, missing)))
}

func TestStorePendingAndMarkUploaded(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insertPositions(t, s, 3)
	catchID, err := s.Catches.InsertFullCatch(ctx, newCatch("A1", baseTime), models.NephropsDetail{NumSmallCases: 1})
	require.NoError(t, err)

	pending, err := s.GetPending(ctx, nil)
	require.NoError(t, err)
	assert.False(t, pending.Empty())
	assert.Len(t, pending.Catches, 1)
	assert.Len(t, pending.Positions, 3)

	marks, err := s.MarkUploaded(ctx, []int64{catchID}, []int64{2}, baseTime)
	require.NoError(t, err)
	assert.Equal(t, UploadMarks{Catches: 1, Positions: 1}, marks)

	pending, err = s.GetPending(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, pending.Catches)
	assert.Len(t, pending.Positions, 2)
}
