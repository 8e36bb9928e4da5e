package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/jengzang/fishing-sync/internal/metrics"
	"github.com/jengzang/fishing-sync/internal/models"
	"github.com/jengzang/fishing-sync/internal/service"
)

// TrackingState is whether location capture is running
type TrackingState int

// Tracking states
const (
	Stopped TrackingState = iota
	Running
)

func (s TrackingState) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// MarshalText encodes the state as its name
func (s TrackingState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// FixHandler consumes one location fix
type FixHandler func(ctx context.Context, fix models.Fix) (service.FixResult, error)

// LocationProvider is the source of location fixes. Between Start and Stop
// it delivers every fix to the handler.
type LocationProvider interface {
	Start(handler FixHandler) error
	Stop() error
}

// PermissionChecker reports whether the user granted location access
type PermissionChecker interface {
	LocationPermitted(ctx context.Context) (bool, error)
}

// StaticPermission is a PermissionChecker with a fixed answer
type StaticPermission bool

// LocationPermitted implements PermissionChecker
func (p StaticPermission) LocationPermitted(context.Context) (bool, error) {
	return bool(p), nil
}

// Tracker is the Stopped/Running state machine for location capture. The
// state only changes once the provider has actually started or stopped.
type Tracker struct {
	mu         sync.Mutex
	state      TrackingState
	changedAt  time.Time
	provider   LocationProvider
	permission PermissionChecker
	handler    FixHandler
}

// NewTracker creates a stopped tracker
func NewTracker(provider LocationProvider, permission PermissionChecker, handler FixHandler) *Tracker {
	return &Tracker{
		state:      Stopped,
		changedAt:  time.Now(),
		provider:   provider,
		permission: permission,
		handler:    handler,
	}
}

// Start begins location capture. It fails with models.ErrTrackingPermission
// when location permission has not been granted.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startLocked(ctx)
}

// Stop ends location capture
func (t *Tracker) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopLocked()
}

// Toggle starts a stopped tracker or stops a running one, returning the new state
func (t *Tracker) Toggle(ctx context.Context) (TrackingState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var err error
	if t.state == Running {
		err = t.stopLocked()
	} else {
		err = t.startLocked(ctx)
	}
	return t.state, err
}

// State returns the current state and when it last changed
func (t *Tracker) State() (TrackingState, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state, t.changedAt
}

// Running reports whether location capture is active
func (t *Tracker) Running() bool {
	state, _ := t.State()
	return state == Running
}

func (t *Tracker) startLocked(ctx context.Context) error {
	if t.state == Running {
		return nil
	}

	ok, err := t.permission.LocationPermitted(ctx)
	if err != nil {
		return fmt.Errorf("failed to check location permission: %w", err)
	}
	if !ok {
		log.Warn("tracking not started: location permission missing")
		return models.ErrTrackingPermission
	}

	if err := t.provider.Start(t.handler); err != nil {
		return fmt.Errorf("failed to start location provider: %w", err)
	}

	t.setState(Running)
	return nil
}

func (t *Tracker) stopLocked() error {
	if t.state == Stopped {
		return nil
	}

	if err := t.provider.Stop(); err != nil {
		return fmt.Errorf("failed to stop location provider: %w", err)
	}

	t.setState(Stopped)
	return nil
}

func (t *Tracker) setState(s TrackingState) {
	t.state = s
	t.changedAt = time.Now()
	if s == Running {
		metrics.TrackingActive.Set(1)
	} else {
		metrics.TrackingActive.Set(0)
	}
	log.WithField("state", s.String()).Info("tracking state changed")
}
