package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/attachdrop/backend/internal/models"
	"github.com/attachdrop/backend/internal/upload"
	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
)

// MaxSessions limits concurrent widget sessions
const MaxSessions = 256

// SessionKeepAliveWindow is how long to keep sessions that are actively being used
const SessionKeepAliveWindow = 5 * time.Minute

// IngestorFactory builds the Ingestor for a new session. events is the
// session's own broker.
type IngestorFactory func(sessionID string, events *upload.Broker) *upload.Ingestor

// Session is one widget instance: an ingestor with its progress table and
// error list, plus the user it acts for.
type Session struct {
	ID        string
	Ingestor  *upload.Ingestor
	Events    *upload.Broker
	CreatedAt time.Time

	mu           sync.RWMutex
	user         models.User
	lastAccessed time.Time
}

// User returns the identity the session currently acts for.
func (s *Session) User() models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// SetUser replaces the session identity. Empty names are ignored.
func (s *Session) SetUser(u models.User) {
	if u.Name == "" {
		return
	}
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}

// LastAccessed returns the last touch time.
func (s *Session) LastAccessed() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAccessed
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastAccessed = time.Now()
	s.mu.Unlock()
}

// Busy reports whether reads are still in flight.
func (s *Session) Busy() bool {
	return s.Ingestor.Tracker().Len() > 0
}

// Manager handles active widget sessions.
type Manager struct {
	sessions    map[string]*Session
	mu          sync.RWMutex
	newIngestor IngestorFactory
	maxSessions int
}

// NewManager creates a new session manager.
func NewManager(factory IngestorFactory) *Manager {
	return NewManagerWithLimit(factory, MaxSessions)
}

// NewManagerWithLimit creates a session manager holding at most max sessions.
func NewManagerWithLimit(factory IngestorFactory, max int) *Manager {
	if max <= 0 {
		max = MaxSessions
	}
	return &Manager{
		sessions:    make(map[string]*Session),
		newIngestor: factory,
		maxSessions: max,
	}
}

// Create starts a new session for user.
func (m *Manager) Create(user models.User) *Session {
	m.cleanupOldSessionsIfNeeded()

	id := uuid.New().String()
	events := upload.NewBroker(128)
	now := time.Now()

	s := &Session{
		ID:           id,
		Ingestor:     m.newIngestor(id, events),
		Events:       events,
		CreatedAt:    now,
		user:         user,
		lastAccessed: now,
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	log.Debugf("[Session %s] Created for %q", id[:8], user.Name)
	return s
}

// Get returns a session and marks it as accessed.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		s.touch()
	}
	return s, ok
}

// GetOrCreate returns the session for id, creating one when id is unknown.
// The bool reports whether a new session was created.
func (m *Manager) GetOrCreate(id string, user models.User) (*Session, bool) {
	if id != "" {
		if s, ok := m.Get(id); ok {
			s.SetUser(user)
			return s, false
		}
	}
	return m.Create(user), true
}

// TouchSession updates the last access time. Returns false for unknown IDs.
func (m *Manager) TouchSession(id string) bool {
	_, ok := m.Get(id)
	return ok
}

// Delete removes a session. In-flight reads finish on their own.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// cleanupOldSessionsIfNeeded evicts least recently used idle sessions once
// the limit is reached.
func (m *Manager) cleanupOldSessionsIfNeeded() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for len(m.sessions) >= m.maxSessions {
		var oldestID string
		var oldest time.Time
		for id, s := range m.sessions {
			if s.Busy() {
				continue
			}
			if last := s.LastAccessed(); oldestID == "" || last.Before(oldest) {
				oldestID, oldest = id, last
			}
		}
		if oldestID == "" {
			return
		}
		delete(m.sessions, oldestID)
		log.Infof("[Session] Evicted idle session %s to stay under %d", oldestID[:8], m.maxSessions)
	}
}

// CleanupOldSessions removes idle sessions not accessed within maxAge.
// Sessions with reads in flight are kept.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, s := range m.sessions {
		if s.Busy() {
			continue
		}
		if last := s.LastAccessed(); last.Before(cutoff) {
			delete(m.sessions, id)
			removed++
			log.Infof("[Session] Cleaned up aged session %s (last accessed: %s ago)",
				id[:8], time.Since(last).Round(time.Second))
		}
	}
	return removed
}

// String is used in log lines.
func (s *Session) String() string {
	return fmt.Sprintf("session %s (%s)", s.ID[:8], s.User().Name)
}
