package cloudsync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jengzang/fishing-sync/internal/auth"
	"github.com/jengzang/fishing-sync/internal/database"
	"github.com/jengzang/fishing-sync/internal/models"
	"github.com/jengzang/fishing-sync/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seedTime = time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC)

var everything = models.Period{
	Start: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC),
}

func newStore(t *testing.T) *repository.Store {
	t.Helper()
	db, err := database.Open(context.Background(), database.Config{Path: filepath.Join(t.TempDir(), "sync.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return repository.NewStore(db)
}

// seed inserts n positions and one wrasse catch
func seed(t *testing.T, s *repository.Store, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		_, err := s.Positions.InsertPosition(ctx, models.Position{
			Latitude:  56.3 + float64(i)*0.01,
			Longitude: -2.8,
			Timestamp: seedTime.Add(time.Duration(i) * time.Minute),
			Accuracy:  5,
		})
		require.NoError(t, err)
	}
	_, err := s.Catches.InsertFullCatch(ctx,
		models.Catch{StringID: "S1", Lat: 56.3, Lon: -2.8, Timestamp: seedTime},
		models.WrasseDetail{Retained: 2, Returned: 1})
	require.NoError(t, err)
}

type snapshot struct {
	Positions []models.Position
	Catches   []models.FullCatch
}

func takeSnapshot(t *testing.T, s *repository.Store) snapshot {
	t.Helper()
	ctx := context.Background()
	positions, err := s.Positions.ListPositions(ctx, everything)
	require.NoError(t, err)
	catches, err := s.Catches.ListFullCatches(ctx)
	require.NoError(t, err)
	return snapshot{Positions: positions, Catches: catches}
}

// ackServer acknowledges whatever ids keep returns from the submitted payload
func ackServer(t *testing.T, calls *atomic.Int32, keep func(ids []int64) []int64, extra map[string]any) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var p struct {
			Device    string           `json:"device"`
			Captures  []map[string]any `json:"captures"`
			Positions []WirePosition   `json:"positions"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))

		var catchIDs, positionIDs []int64
		for _, c := range p.Captures {
			catchIDs = append(catchIDs, int64(c["id"].(float64)))
		}
		for _, pos := range p.Positions {
			positionIDs = append(positionIDs, pos.ID)
		}

		body := map[string]any{
			"captures":  idObjects(keep(catchIDs)),
			"positions": idObjects(keep(positionIDs)),
		}
		for k, v := range extra {
			body[k] = v
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
}

func idObjects(ids []int64) []map[string]int64 {
	out := make([]map[string]int64, 0, len(ids))
	for _, id := range ids {
		out = append(out, map[string]int64{"id": id})
	}
	return out
}

func all(ids []int64) []int64 { return ids }

func newEngine(s *repository.Store, url string, tokens auth.TokenProvider, opts Options) *Engine {
	if opts.DeviceID == "" {
		opts.DeviceID = "device-1"
	}
	return NewEngine(s, NewClient(url, 5*time.Second), tokens, opts)
}

func TestSyncMarksEverythingAcknowledged(t *testing.T) {
	s := newStore(t)
	seed(t, s, 3)

	var calls atomic.Int32
	srv := ackServer(t, &calls, all, nil)
	defer srv.Close()

	e := newEngine(s, srv.URL, nil, Options{})
	res, err := e.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSynced, res.Outcome)
	assert.Equal(t, 3, res.PositionsSent)
	assert.EqualValues(t, 3, res.PositionsMarked)
	assert.EqualValues(t, 1, res.CatchesMarked)

	snap := takeSnapshot(t, s)
	for _, p := range snap.Positions {
		assert.True(t, p.IsUploaded())
	}
	assert.NotNil(t, snap.Catches[0].Uploaded)
	assert.Equal(t, res, *e.Status())
}

func TestSyncMarksOnlyAcknowledgedIDs(t *testing.T) {
	s := newStore(t)
	seed(t, s, 5)

	var calls atomic.Int32
	odd := func(ids []int64) []int64 {
		var out []int64
		for _, id := range ids {
			if id%2 == 1 {
				out = append(out, id)
			}
		}
		return out
	}
	srv := ackServer(t, &calls, odd, nil)
	defer srv.Close()

	_, err := newEngine(s, srv.URL, nil, Options{}).SyncOnce(context.Background())
	require.NoError(t, err)

	for _, p := range takeSnapshot(t, s).Positions {
		if p.ID%2 == 1 {
			assert.True(t, p.IsUploaded(), "position %d", p.ID)
		} else {
			assert.False(t, p.IsUploaded(), "position %d", p.ID)
		}
	}
}

func TestSyncFailureLeavesStoreUntouched(t *testing.T) {
	testCases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}},
		{"bare 200", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "OK")
		}},
		{"missing arrays", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"captures":[{"id":1}]}`)
		}},
		{"bad timestamp", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"captures":[{"id":1}],"positions":[{"id":1}],"timestamp":"yesterday"}`)
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			seed(t, s, 4)
			before := takeSnapshot(t, s)

			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			res, err := newEngine(s, srv.URL, nil, Options{}).SyncOnce(context.Background())
			var te *TransportError
			assert.ErrorAs(t, err, &te)
			assert.Equal(t, OutcomeFailed, res.Outcome)
			assert.NotEmpty(t, res.Error)
			assert.Equal(t, before, takeSnapshot(t, s))
		})
	}
}

func TestSyncConnectionRefused(t *testing.T) {
	s := newStore(t)
	seed(t, s, 2)
	before := takeSnapshot(t, s)

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res, err := newEngine(s, url, nil, Options{}).SyncOnce(context.Background())
	assert.Error(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, before, takeSnapshot(t, s))
}

func TestEmptySyncMakesNoCall(t *testing.T) {
	s := newStore(t)
	seed(t, s, 2)

	var calls atomic.Int32
	srv := ackServer(t, &calls, all, nil)
	defer srv.Close()

	e := newEngine(s, srv.URL, nil, Options{})
	res, err := e.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSynced, res.Outcome)

	res, err = e.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNothingToSend, res.Outcome)
	assert.EqualValues(t, 1, calls.Load())
}

func TestSyncRequiredAuthWithoutToken(t *testing.T) {
	s := newStore(t)
	seed(t, s, 2)
	before := takeSnapshot(t, s)

	var calls atomic.Int32
	srv := ackServer(t, &calls, all, nil)
	defer srv.Close()

	res, err := newEngine(s, srv.URL, auth.None{}, Options{RequireAuth: true}).SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoAuth, res.Outcome)
	assert.Zero(t, calls.Load())
	assert.Equal(t, before, takeSnapshot(t, s))
}

func TestSyncSendsDeviceAndToken(t *testing.T) {
	s := newStore(t)
	seed(t, s, 1)

	type seen struct{ device, auth string }
	got := make(chan seen, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p Payload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		got <- seen{device: p.Device, auth: r.Header.Get("Authorization")}
		_, _ = io.WriteString(w, `{"captures":[],"positions":[]}`)
	}))
	defer srv.Close()

	e := newEngine(s, srv.URL, auth.NewStatic("tok-1"), Options{DeviceID: "boat-7", RequireAuth: true})
	res, err := e.SyncOnce(context.Background())
	require.NoError(t, err)
	req := <-got
	assert.Equal(t, "boat-7", req.device)
	assert.Equal(t, "Bearer tok-1", req.auth)

	// degenerate success: nothing acknowledged, nothing marked
	assert.Equal(t, OutcomeSynced, res.Outcome)
	assert.Zero(t, res.PositionsMarked)
	assert.Zero(t, res.CatchesMarked)
}

func TestSyncUsesServerTimestamp(t *testing.T) {
	s := newStore(t)
	seed(t, s, 1)

	confirmed := time.Date(2024, 6, 4, 9, 30, 0, 0, time.UTC)
	var calls atomic.Int32
	srv := ackServer(t, &calls, all, map[string]any{
		"timestamp": confirmed.Format(time.RFC3339),
		"tows":      []any{map[string]any{"id": 99}},
	})
	defer srv.Close()

	_, err := newEngine(s, srv.URL, nil, Options{}).SyncOnce(context.Background())
	require.NoError(t, err)

	snap := takeSnapshot(t, s)
	require.NotNil(t, snap.Positions[0].Uploaded)
	assert.True(t, confirmed.Equal(*snap.Positions[0].Uploaded))
	assert.True(t, confirmed.Equal(*snap.Catches[0].Uploaded))
}

func TestSyncIgnoresUnsubmittedAcks(t *testing.T) {
	s := newStore(t)
	seed(t, s, 2)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"captures":[{"id":42}],"positions":[{"id":1},{"id":77}]}`)
	}))
	defer srv.Close()

	res, err := newEngine(s, srv.URL, nil, Options{}).SyncOnce(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.PositionsMarked)
	assert.Zero(t, res.CatchesMarked)
}

func TestSyncNowThrottled(t *testing.T) {
	s := newStore(t)

	e := newEngine(s, "http://127.0.0.1:1", nil, Options{MinGap: time.Hour})
	res, err := e.SyncNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNothingToSend, res.Outcome)

	_, err = e.SyncNow(context.Background())
	assert.ErrorIs(t, err, ErrThrottled)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	// on-demand and triggered attempts share one budget
	require.Eventually(t, func() bool {
		return errors.Is(e.Trigger(), ErrThrottled)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRunSyncsOnTrigger(t *testing.T) {
	s := newStore(t)
	seed(t, s, 2)

	var calls atomic.Int32
	srv := ackServer(t, &calls, all, nil)
	defer srv.Close()

	e := newEngine(s, srv.URL, nil, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return e.Trigger() == nil }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		st := e.Status()
		return st != nil && st.Outcome == OutcomeSynced
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-done
	assert.EqualValues(t, 1, calls.Load())
}

func TestSyncTimeoutLeavesStoreUntouched(t *testing.T) {
	s := newStore(t)
	seed(t, s, 3)
	before := takeSnapshot(t, s)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		_, _ = io.WriteString(w, `{"captures":[{"id":1}],"positions":[{"id":1}]}`)
	}))
	defer srv.Close()

	e := NewEngine(s, NewClient(srv.URL, 50*time.Millisecond), nil, Options{DeviceID: "device-1"})
	res, err := e.SyncOnce(context.Background())

	var te *TransportError
	require.ErrorAs(t, err, &te)
	var ne net.Error
	require.ErrorAs(t, err, &ne)
	assert.True(t, ne.Timeout())
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, before, takeSnapshot(t, s))
}

func TestSyncCompletesAfterCallerCancels(t *testing.T) {
	s := newStore(t)
	seed(t, s, 3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p Payload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		var positionIDs []int64
		for _, pos := range p.Positions {
			positionIDs = append(positionIDs, pos.ID)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"captures":  idObjects([]int64{1}),
			"positions": idObjects(positionIDs),
		})
		w.(http.Flusher).Flush()
		// the caller goes away after the server has accepted the upload
		cancel()
	}))
	defer srv.Close()

	res, err := newEngine(s, srv.URL, nil, Options{}).SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSynced, res.Outcome)
	assert.EqualValues(t, 3, res.PositionsMarked)
	assert.EqualValues(t, 1, res.CatchesMarked)

	n, err := s.Positions.CountUnuploadedPositions(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

type panickingStore struct {
	calls atomic.Int32
}

func (p *panickingStore) GetPending(context.Context, *models.Period) (*repository.Pending, error) {
	p.calls.Add(1)
	panic("corrupt row")
}

func (p *panickingStore) MarkUploaded(context.Context, []int64, []int64, time.Time) (repository.UploadMarks, error) {
	return repository.UploadMarks{}, nil
}

func TestSyncRecoversFromPanic(t *testing.T) {
	store := &panickingStore{}
	e := NewEngine(store, NewClient("http://127.0.0.1:1", time.Second), nil, Options{})

	res, err := e.SyncOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt row")
	assert.Equal(t, OutcomeFailed, res.Outcome)
	require.NotNil(t, e.Status())
	assert.Equal(t, OutcomeFailed, e.Status().Outcome)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	// the scheduler keeps serving triggers after an attempt panics
	for want := int32(2); want <= 3; want++ {
		require.Eventually(t, func() bool { return e.Trigger() == nil }, 5*time.Second, 10*time.Millisecond)
		require.Eventually(t, func() bool { return store.calls.Load() >= want }, 5*time.Second, 10*time.Millisecond)
	}

	cancel()
	<-done
}

func TestTriggerRequiresRunningScheduler(t *testing.T) {
	e := newEngine(newStore(t), "http://127.0.0.1:1", nil, Options{})
	assert.ErrorIs(t, e.Trigger(), ErrSchedulerStopped)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return e.Trigger() == nil }, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-done
	assert.ErrorIs(t, e.Trigger(), ErrSchedulerStopped)
}
