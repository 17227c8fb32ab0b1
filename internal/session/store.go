package session

import (
	"context"
	"sync"
	"time"

	"github.com/phraser/location-server/internal/models"
)

// Store holds per-client session state. Implementations are plain
// storage; read-modify-write exclusion is the orchestrator's job (it
// serializes access per client).
type Store interface {
	// Get returns the session for the client, or nil when none exists.
	Get(ctx context.Context, clientID string) (*models.Session, error)
	GetOrCreate(ctx context.Context, clientID string, now time.Time) (*models.Session, error)
	Save(ctx context.Context, s *models.Session) error
	// Touch updates only LastRequestAt.
	Touch(ctx context.Context, clientID string, now time.Time) error
	Delete(ctx context.Context, clientID string) error

	// SweepExpired removes sessions whose LastRequestAt is older than
	// timeout; SweepPending clears pending-generation markers older than
	// timeout. Both return the number of entries affected.
	SweepExpired(ctx context.Context, now time.Time, timeout time.Duration) (int, error)
	SweepPending(ctx context.Context, now time.Time, timeout time.Duration) (int, error)
}

// MemoryStore is the default Store: a mutex-guarded map, rebuilt empty on
// process restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*models.Session)}
}

func (m *MemoryStore) Get(_ context.Context, clientID string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[clientID]
	if !ok {
		return nil, nil
	}
	return cloneSession(s), nil
}

func (m *MemoryStore) GetOrCreate(_ context.Context, clientID string, now time.Time) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[clientID]
	if !ok {
		s = &models.Session{ClientID: clientID, LastRequestAt: now}
		m.sessions[clientID] = s
	}
	return cloneSession(s), nil
}

func (m *MemoryStore) Save(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ClientID] = cloneSession(s)
	return nil
}

func (m *MemoryStore) Touch(_ context.Context, clientID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[clientID]; ok {
		s.LastRequestAt = now
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, clientID)
	return nil
}

func (m *MemoryStore) SweepExpired(_ context.Context, now time.Time, timeout time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if now.Sub(s.LastRequestAt) > timeout {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryStore) SweepPending(_ context.Context, now time.Time, timeout time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cleared := 0
	for _, s := range m.sessions {
		if s.PendingGenerationAt != nil && now.Sub(*s.PendingGenerationAt) > timeout {
			s.PendingGenerationAt = nil
			cleared++
		}
	}
	return cleared, nil
}

// Len reports the number of live sessions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func cloneSession(s *models.Session) *models.Session {
	cp := *s
	if s.CachedPhrases != nil {
		cp.CachedPhrases = append([]models.PhraseWrapper(nil), s.CachedPhrases...)
	}
	if s.Conversation != nil {
		cp.Conversation = append([]models.ChatMessage(nil), s.Conversation...)
	}
	if s.PendingGenerationAt != nil {
		t := *s.PendingGenerationAt
		cp.PendingGenerationAt = &t
	}
	return &cp
}
