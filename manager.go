package storefront

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/luxecommerce/storefront/core"
)

// Manager opens sessions lazily, one per profile id, over shared Deps.
type Manager struct {
	deps Deps

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
	logger   core.Logger
}

// NewManager returns a manager with no open sessions.
func NewManager(deps Deps) (*Manager, error) {
	deps, err := deps.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Manager{
		deps:     deps,
		sessions: map[string]*Session{},
		logger:   core.ComponentOf(deps.Logger, "sessions"),
	}, nil
}

// Get returns the session of profile, opening it on first use, and marks
// it as used.
func (m *Manager) Get(ctx context.Context, profile string) (*Session, error) {
	if profile == "" {
		profile = core.DefaultProfile
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, core.ErrSessionClosed
	}

	if s, ok := m.sessions[profile]; ok {
		s.Touch()
		return s, nil
	}
	s, err := Open(ctx, m.deps, profile)
	if err != nil {
		return nil, err
	}
	m.sessions[profile] = s
	return s, nil
}

// Profiles returns the ids of the open sessions, sorted.
func (m *Manager) Profiles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CloseIdle closes sessions unused for longer than maxAge and returns how
// many were closed. Their state stays in storage and is reloaded by the
// next Get.
func (m *Manager) CloseIdle(maxAge time.Duration) int {
	cutoff := m.deps.Clock.Now().Add(-maxAge)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.LastUsed().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		_ = s.Close()
	}
	if len(idle) > 0 {
		m.logger.Info("Closed idle sessions", map[string]interface{}{
			"closed":  len(idle),
			"max_age": maxAge.String(),
		})
	}
	return len(idle)
}

// Close closes every session. Later Gets return core.ErrSessionClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	sessions := m.sessions
	m.sessions = map[string]*Session{}
	m.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
