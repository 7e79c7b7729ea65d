package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "software-quoter/internal/common/errors"
	"software-quoter/internal/common/logger"
	"software-quoter/internal/models"
)

// Manager serialises mutations per session ID on top of a Store.
type Manager struct {
	store  Store
	logger logger.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewManager(store Store, log logger.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: log,
		now:    time.Now,
		locks:  make(map[string]*keyLock),
	}
}

// Create starts a new idle session.
func (m *Manager) Create(ctx context.Context, input models.ProjectInput) (*Session, error) {
	s := New(uuid.NewString(), input, m.now().UTC())
	if err := m.store.Save(ctx, s); err != nil {
		return nil, apperrors.NewSessionStoreFailedError(err)
	}
	m.logger.Info("Session created", map[string]interface{}{"sessionId": s.ID})
	return s.Clone(), nil
}

func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, m.storeError(id, err)
	}
	return s, nil
}

// Update loads the session, applies fn and saves the result. When fn fails
// nothing is saved and its error is returned unchanged.
func (m *Manager) Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	unlock := m.lock(id)
	defer unlock()

	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, m.storeError(id, err)
	}

	before := s.State
	if err := fn(s); err != nil {
		return nil, err
	}
	s.UpdatedAt = m.now().UTC()

	if err := m.store.Save(ctx, s); err != nil {
		return nil, apperrors.NewSessionStoreFailedError(err)
	}

	if before != s.State {
		m.logger.Debug("Session state changed", map[string]interface{}{
			"sessionId": id,
			"from":      string(before),
			"to":        string(s.State),
		})
	}
	return s.Clone(), nil
}

func (m *Manager) Delete(ctx context.Context, id string) error {
	unlock := m.lock(id)
	defer unlock()

	if _, err := m.store.Get(ctx, id); err != nil {
		return m.storeError(id, err)
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return apperrors.NewSessionStoreFailedError(err)
	}
	m.logger.Info("Session ended", map[string]interface{}{"sessionId": id})
	return nil
}

func (m *Manager) storeError(id string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperrors.NewSessionNotFoundError(id)
	}
	return apperrors.NewSessionStoreFailedError(err)
}

func (m *Manager) lock(id string) func() {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &keyLock{}
		m.locks[id] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.mu.Unlock()
	}
}
