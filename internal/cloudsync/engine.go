package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apex/log"
	"github.com/jengzang/fishing-sync/internal/auth"
	"github.com/jengzang/fishing-sync/internal/metrics"
	"github.com/jengzang/fishing-sync/internal/models"
	"github.com/jengzang/fishing-sync/internal/repository"
	"golang.org/x/time/rate"
)

// ErrThrottled is returned when an on-demand sync is requested too soon after
// the previous one
var ErrThrottled = errors.New("sync requested too frequently")

// ErrSchedulerStopped is returned by Trigger when Run is not active
var ErrSchedulerStopped = errors.New("sync scheduler is not running")

// Outcome classifies a sync attempt
type Outcome string

// Sync outcomes
const (
	OutcomeNothingToSend Outcome = "nothing_to_send"
	OutcomeNoAuth        Outcome = "no_auth"
	OutcomeSynced        Outcome = "synced"
	OutcomeFailed        Outcome = "failed"
)

// Store is the part of the local store the engine reads and writes
type Store interface {
	GetPending(ctx context.Context, period *models.Period) (*repository.Pending, error)
	MarkUploaded(ctx context.Context, catchIDs, positionIDs []int64, when time.Time) (repository.UploadMarks, error)
}

// Uploader submits a payload and returns the server's acknowledgement
type Uploader interface {
	Upload(ctx context.Context, token string, payload *Payload) (*Ack, error)
}

// Options configures an Engine
type Options struct {
	DeviceID string
	// PeriodScope restricts each attempt to the current fishing day
	PeriodScope bool
	// RequireAuth skips attempts when no bearer token is available
	RequireAuth bool
	// Interval between scheduled attempts; zero disables the ticker in Run
	Interval time.Duration
	// MinGap is the minimum spacing of on-demand attempts
	MinGap time.Duration
}

// Result describes one sync attempt
type Result struct {
	Outcome         Outcome    `json:"outcome"`
	StartedAt       time.Time  `json:"startedAt"`
	FinishedAt      time.Time  `json:"finishedAt"`
	CatchesSent     int        `json:"catchesSent"`
	PositionsSent   int        `json:"positionsSent"`
	CatchesMarked   int64      `json:"catchesMarked"`
	PositionsMarked int64      `json:"positionsMarked"`
	UploadedAt      *time.Time `json:"uploadedAt,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// Engine runs the upload-then-mark protocol. Attempts are serialized; the
// store is never held across the network call.
type Engine struct {
	store    Store
	uploader Uploader
	tokens   auth.TokenProvider
	opts     Options
	now      func() time.Time

	attemptMu sync.Mutex

	mu   sync.RWMutex
	last *Result

	limiter *rate.Limiter
	wake    chan struct{}
	running atomic.Bool
}

// NewEngine creates a sync engine
func NewEngine(store Store, uploader Uploader, tokens auth.TokenProvider, opts Options) *Engine {
	if tokens == nil {
		tokens = auth.None{}
	}
	limit := rate.Inf
	if opts.MinGap > 0 {
		limit = rate.Every(opts.MinGap)
	}
	return &Engine{
		store:    store,
		uploader: uploader,
		tokens:   tokens,
		opts:     opts,
		now:      time.Now,
		limiter:  rate.NewLimiter(limit, 1),
		wake:     make(chan struct{}, 1),
	}
}

// SyncOnce runs one attempt. A failed attempt leaves the store untouched and
// returns the error alongside a failed result. Once started, an attempt runs
// to completion even if ctx is cancelled; the client timeout bounds it.
func (e *Engine) SyncOnce(ctx context.Context) (Result, error) {
	e.attemptMu.Lock()
	defer e.attemptMu.Unlock()

	res := Result{StartedAt: e.now()}
	err := e.safeAttempt(context.WithoutCancel(ctx), &res)
	res.FinishedAt = e.now()
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Error = err.Error()
	}

	e.record(res)
	return res, err
}

// safeAttempt turns a panic inside an attempt into a failed result
func (e *Engine) safeAttempt(ctx context.Context, res *Result) (err error) {
	defer func() {
		if p := recover(); p != nil {
			log.WithField("panic", p).Error("sync attempt panicked")
			err = fmt.Errorf("sync attempt panicked: %v", p)
		}
	}()
	return e.attempt(ctx, res)
}

func (e *Engine) attempt(ctx context.Context, res *Result) error {
	var period *models.Period
	if e.opts.PeriodScope {
		p := models.PeriodFor(res.StartedAt)
		period = &p
	}

	pending, err := e.store.GetPending(ctx, period)
	if err != nil {
		return fmt.Errorf("failed to read pending records: %w", err)
	}
	if pending.Empty() {
		res.Outcome = OutcomeNothingToSend
		return nil
	}

	token, err := e.tokens.Token(ctx)
	if err != nil {
		log.WithError(err).Warn("sync token unavailable")
		token = ""
	}
	if token == "" && e.opts.RequireAuth {
		res.Outcome = OutcomeNoAuth
		return nil
	}

	payload, err := BuildPayload(e.opts.DeviceID, pending.Catches, pending.Positions)
	if err != nil {
		return err
	}
	res.CatchesSent = len(pending.Catches)
	res.PositionsSent = len(pending.Positions)

	start := time.Now()
	ack, err := e.uploader.Upload(ctx, token, payload)
	metrics.SyncDurationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}

	catchIDs := acknowledged(ack.CatchIDs, catchIDSet(pending.Catches))
	positionIDs := acknowledged(ack.PositionIDs, positionIDSet(pending.Positions))

	when := ack.Timestamp
	if when.IsZero() {
		when = e.now().UTC()
	}

	marks, err := e.store.MarkUploaded(ctx, catchIDs, positionIDs, when)
	if err != nil {
		return fmt.Errorf("failed to mark uploaded records: %w", err)
	}

	res.Outcome = OutcomeSynced
	res.CatchesMarked = marks.Catches
	res.PositionsMarked = marks.Positions
	res.UploadedAt = &when
	return nil
}

func (e *Engine) record(res Result) {
	e.mu.Lock()
	e.last = &res
	e.mu.Unlock()

	metrics.SyncAttemptsTotal.WithLabelValues(string(res.Outcome)).Inc()
	entry := log.WithFields(log.Fields{
		"outcome":   res.Outcome,
		"catches":   res.CatchesSent,
		"positions": res.PositionsSent,
	})

	switch res.Outcome {
	case OutcomeSynced:
		metrics.RecordsUploadedTotal.WithLabelValues("catch").Add(float64(res.CatchesMarked))
		metrics.RecordsUploadedTotal.WithLabelValues("position").Add(float64(res.PositionsMarked))
		metrics.LastSuccessSeconds.Set(float64(res.FinishedAt.Unix()))
		entry.WithFields(log.Fields{
			"catches_marked":   res.CatchesMarked,
			"positions_marked": res.PositionsMarked,
		}).Info("sync completed")
	case OutcomeFailed:
		entry.WithField("error", res.Error).Warn("sync failed, records kept for retry")
	case OutcomeNoAuth:
		entry.Warn("sync skipped: no bearer token")
	default:
		entry.Debug("nothing to sync")
	}
}

// Status returns the last attempt's result, or nil before the first attempt
func (e *Engine) Status() *Result {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.last == nil {
		return nil
	}
	res := *e.last
	return &res
}

// SyncNow runs an on-demand attempt unless one ran within MinGap
func (e *Engine) SyncNow(ctx context.Context) (Result, error) {
	if !e.limiter.Allow() {
		return Result{}, ErrThrottled
	}
	return e.SyncOnce(ctx)
}

// Trigger asks Run to perform an attempt soon. Pending triggers coalesce.
func (e *Engine) Trigger() error {
	if !e.running.Load() {
		return ErrSchedulerStopped
	}
	if !e.limiter.Allow() {
		return ErrThrottled
	}
	select {
	case e.wake <- struct{}{}:
	default:
	}
	return nil
}

// Run performs an attempt on every tick of the configured interval and on
// every Trigger until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	var tick <-chan time.Time
	if e.opts.Interval > 0 {
		ticker := time.NewTicker(e.opts.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	e.running.Store(true)
	defer e.running.Store(false)

	log.WithField("interval", e.opts.Interval).Info("sync scheduler started")
	for {
		select {
		case <-ctx.Done():
			log.Info("sync scheduler stopped")
			return
		case <-tick:
		case <-e.wake:
		}
		// errors are recorded in the result and retried on the next wake
		_, _ = e.SyncOnce(ctx)
	}
}

func catchIDSet(catches []models.FullCatch) map[int64]struct{} {
	set := make(map[int64]struct{}, len(catches))
	for _, c := range catches {
		set[c.ID] = struct{}{}
	}
	return set
}

func positionIDSet(positions []models.Position) map[int64]struct{} {
	set := make(map[int64]struct{}, len(positions))
	for _, p := range positions {
		set[p.ID] = struct{}{}
	}
	return set
}
