package session

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Manager owns the process-wide session. Every component that authenticates
// receives the same Manager rather than reading global state.
//
// Replace and Clear persist before mutating memory, so a failed write leaves
// the previous session in effect.
type Manager struct {
	store Store
	log   *zap.Logger

	mu  sync.RWMutex
	cur *Session
}

// NewManager returns a Manager backed by store. Call Rehydrate to load a
// previously persisted session.
func NewManager(store Store, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{store: store, log: log}
}

// Rehydrate loads the persisted session, if any. A missing record is not an
// error; the manager simply stays logged out.
func (m *Manager) Rehydrate() error {
	s, err := m.store.Load()
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			m.set(nil)
			return nil
		}
		return err
	}
	m.set(s)
	m.log.Debug("session rehydrated", zap.String("username", s.Username))
	return nil
}

// Current returns a copy of the active session.
func (m *Manager) Current() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cur == nil {
		return Session{}, false
	}
	return *m.cur, true
}

// Credential returns the bearer credential of the active session.
func (m *Manager) Credential() (string, bool) {
	s, ok := m.Current()
	if !ok {
		return "", false
	}
	return s.Credential, true
}

// Replace persists s and makes it the active session.
func (m *Manager) Replace(s Session) error {
	s.Credential = SanitizeCredential(s.Credential)
	if !s.Valid() {
		return errors.New("refusing to store a session without a credential")
	}
	if err := m.store.Save(&s); err != nil {
		return err
	}
	m.set(&s)
	m.log.Info("session replaced", zap.String("username", s.Username))
	return nil
}

// Clear removes the persisted session and logs out.
func (m *Manager) Clear() error {
	if err := m.store.Delete(); err != nil {
		return err
	}
	m.set(nil)
	m.log.Info("session cleared")
	return nil
}

func (m *Manager) set(s *Session) {
	m.mu.Lock()
	m.cur = s
	m.mu.Unlock()
}
