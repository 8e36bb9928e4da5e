package session

import (
	"context"
	"sync"

	"github.com/jengzang/fishing-sync/internal/models"
	"github.com/jengzang/fishing-sync/internal/service"
)

// PushProvider is a LocationProvider fed from outside the process, e.g. by
// the platform's location callback posting to the local API.
type PushProvider struct {
	mu      sync.RWMutex
	handler FixHandler
}

// NewPushProvider creates a stopped push provider
func NewPushProvider() *PushProvider {
	return &PushProvider{}
}

// Start implements LocationProvider
func (p *PushProvider) Start(handler FixHandler) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = handler
	return nil
}

// Stop implements LocationProvider. It waits for an in-flight fix to finish.
func (p *PushProvider) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = nil
	return nil
}

// Push delivers one fix to the running handler. It returns
// models.ErrNotTracking when the provider is stopped.
func (p *PushProvider) Push(ctx context.Context, fix models.Fix) (service.FixResult, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.handler == nil {
		return service.FixResult{}, models.ErrNotTracking
	}
	return p.handler(ctx, fix)
}
