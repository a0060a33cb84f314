package checkout

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const defaultSessionTTL = time.Hour

// ControllerFactory builds a controller for a new session id.
type ControllerFactory func(id string) (*Controller, error)

// RegistryDeps wires a Registry.
type RegistryDeps struct {
	NewController ControllerFactory
	SessionTTL    time.Duration
	Clock         func() time.Time
	Logger        func(ctx context.Context, event string, fields map[string]any)
	IDGenerator   func() string
}

// Registry holds live sessions keyed by ULID.
type Registry struct {
	factory ControllerFactory
	ttl     time.Duration
	now     func() time.Time
	logger  func(ctx context.Context, event string, fields map[string]any)
	newID   func() string

	mu       sync.RWMutex
	sessions map[string]*Controller
}

// NewRegistry validates dependencies and returns an empty registry.
func NewRegistry(deps RegistryDeps) (*Registry, error) {
	if deps.NewController == nil {
		return nil, errors.New("checkout registry: controller factory is required")
	}
	ttl := deps.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	return &Registry{
		factory:  deps.NewController,
		ttl:      ttl,
		now:      clock,
		logger:   logger,
		newID:    idGen,
		sessions: make(map[string]*Controller),
	}, nil
}

// Create registers a new session and resolves its token. Token failures leave the session in the
// error phase; the error return is reserved for construction failures.
func (r *Registry) Create(ctx context.Context, token string) (string, *Controller, error) {
	id := r.newID()
	ctrl, err := r.factory(id)
	if err != nil {
		return "", nil, err
	}

	r.mu.Lock()
	r.sessions[id] = ctrl
	r.mu.Unlock()

	if _, err := ctrl.Start(ctx, token); err != nil {
		r.Remove(id)
		return "", nil, err
	}
	r.logger(ctx, "checkout.registry.created", map[string]any{
		"session_id": id,
		"phase":      string(ctrl.Phase()),
	})
	return id, ctrl, nil
}

// Get returns the session or ErrCheckoutSessionNotFound.
func (r *Registry) Get(id string) (*Controller, error) {
	id = strings.TrimSpace(id)
	r.mu.RLock()
	ctrl, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrCheckoutSessionNotFound
	}
	return ctrl, nil
}

// Remove closes and drops the session. It reports whether the session existed.
func (r *Registry) Remove(id string) bool {
	id = strings.TrimSpace(id)
	r.mu.Lock()
	ctrl, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		ctrl.Close()
	}
	return ok
}

// Sweep closes sessions whose redirect elapsed or that sat idle longer than the session ttl.
// It returns how many were removed.
func (r *Registry) Sweep(ctx context.Context, now time.Time) int {
	var stale []string
	r.mu.RLock()
	for id, ctrl := range r.sessions {
		if ctrl.Finished() || now.Sub(ctrl.LastActivity()) > r.ttl {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	removed := 0
	for _, id := range stale {
		if r.Remove(id) {
			removed++
		}
	}
	if removed > 0 {
		r.logger(ctx, "checkout.registry.swept", map[string]any{"removed": removed})
	}
	return removed
}

// Run sweeps on every interval until ctx ends.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Sweep(ctx, r.now())
		}
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll closes every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Controller)
	r.mu.Unlock()
	for _, ctrl := range sessions {
		ctrl.Close()
	}
}
