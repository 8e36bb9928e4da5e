package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/jengzang/fishing-sync/internal/repository"
)

// SettingsStore persists the device identity
type SettingsStore interface {
	SetIfAbsent(ctx context.Context, key, value string) (string, error)
}

// ResolveDeviceID returns the installation's device id. A non-empty override
// wins; otherwise the stored id is used, generating and storing one on first
// run.
func ResolveDeviceID(ctx context.Context, store SettingsStore, override string) (string, error) {
	if id := strings.TrimSpace(override); id != "" {
		return id, nil
	}

	id, err := store.SetIfAbsent(ctx, repository.SettingDeviceID, uuid.NewString())
	if err != nil {
		return "", fmt.Errorf("failed to resolve device id: %w", err)
	}
	return id, nil
}

// Session is the process-wide application state: the device identity used to
// attribute uploads and the tracking state machine.
type Session struct {
	deviceID  string
	tracker   *Tracker
	startedAt time.Time
}

// New creates the session. deviceID is fixed for the life of the process.
func New(deviceID string, tracker *Tracker) *Session {
	log.WithField("device", deviceID).Info("session started")
	return &Session{
		deviceID:  deviceID,
		tracker:   tracker,
		startedAt: time.Now(),
	}
}

// DeviceID returns the device identity
func (s *Session) DeviceID() string {
	return s.deviceID
}

// Tracker returns the tracking state machine
func (s *Session) Tracker() *Tracker {
	return s.tracker
}

// Snapshot is a point-in-time view of the session
type Snapshot struct {
	DeviceID     string        `json:"deviceId"`
	Tracking     TrackingState `json:"tracking"`
	TrackingFrom time.Time     `json:"trackingChangedAt"`
	StartedAt    time.Time     `json:"startedAt"`
}

// Snapshot returns the current session state
func (s *Session) Snapshot() Snapshot {
	state, changed := s.tracker.State()
	return Snapshot{
		DeviceID:     s.deviceID,
		Tracking:     state,
		TrackingFrom: changed,
		StartedAt:    s.startedAt,
	}
}
