package services

import (
	"sync"
	"time"

	"github.com/platefull/platefull-backend/internal/models"
)

// SessionState is the conversation state a session is parked in.
type SessionState int

const (
	// StateSelectingAction is the hub state: every completed sub-flow
	// returns here, and all button taps are handled here.
	StateSelectingAction SessionState = iota
	StateAwaitingName
	StateAwaitingPhone
	StateAwaitingPersonCount
)

func (s SessionState) String() string {
	switch s {
	case StateSelectingAction:
		return "selecting_action"
	case StateAwaitingName:
		return "awaiting_name"
	case StateAwaitingPhone:
		return "awaiting_phone"
	case StateAwaitingPersonCount:
		return "awaiting_person_count"
	}
	return "unknown"
}

// SubscriptionDraft holds the purchase flow's scratch fields. Zero
// values mean "not chosen yet".
type SubscriptionDraft struct {
	Period       int // months
	PreferenceID uint
	Persons      int
}

// Complete reports whether every field needed to create a subscription
// has been collected.
func (d SubscriptionDraft) Complete() bool {
	return d.Period > 0 && d.PreferenceID > 0 && d.Persons > 0
}

// Session is the transient per-identity conversation state. Not
// persisted: a process restart loses in-flight dialogues, which is
// acceptable.
type Session struct {
	// mu serializes event handling per identity. Session scratch
	// fields are only touched with it held.
	mu sync.Mutex

	Identity string
	State    SessionState

	// Customer is set once the identity is registered (or loaded).
	Customer *models.Customer

	// Registration scratch.
	PendingName string

	// Purchase scratch.
	Draft SubscriptionDraft

	CreatedAt  time.Time
	LastActive time.Time
}

// ResetDraft discards the purchase scratch fields.
func (s *Session) ResetDraft() {
	s.Draft = SubscriptionDraft{}
}

// SessionManager owns the identity -> session map. Sessions are
// created on first inbound event and park in their current state
// indefinitely; there is no TTL.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager creates a new session manager
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the session for an identity, creating it on
// first contact. The second return value reports whether it was just
// created.
func (m *SessionManager) GetOrCreate(identity string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, exists := m.sessions[identity]; exists {
		session.LastActive = time.Now()
		return session, false
	}

	session := &Session{
		Identity:   identity,
		State:      StateSelectingAction,
		CreatedAt:  time.Now(),
		LastActive: time.Now(),
	}
	m.sessions[identity] = session
	return session, true
}

// Get returns an existing session or nil.
func (m *SessionManager) Get(identity string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[identity]
}

// Reset drops an identity's session entirely; the next inbound event
// starts over as first contact.
func (m *SessionManager) Reset(identity string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, identity)
}

// Count returns the number of live sessions, for monitoring.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
