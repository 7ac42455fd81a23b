package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ocdul/social-listening/internal/editor"
	"github.com/ocdul/social-listening/internal/filters"
	"github.com/ocdul/social-listening/internal/models"
	"github.com/ocdul/social-listening/internal/schema"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned for unknown or expired session ids
var ErrNotFound = errors.New("session not found")

// Identity is the already authenticated analyst a session belongs to
type Identity struct {
	Actor       string
	AlertID     int64
	SuperEditor bool
}

// Session owns the filter scope, the materialized mentions and the pending
// edit queue of one analyst. Run serializes interactions on it.
type Session struct {
	ID        string
	Identity  Identity
	CreatedAt time.Time

	Filters  *filters.Scope
	Queue    *editor.Queue
	Mentions []models.Mention
	Records  editor.RecordSet
	Grid     []editor.GridRow

	mu       sync.Mutex
	lastSeen time.Time
}

// Run executes fn while holding the session, so interactions run to
// completion one at a time
func (s *Session) Run(fn func(*Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s)
}

// Materialize replaces the loaded mentions and the editable grid rendered
// from them
func (s *Session) Materialize(mentions []models.Mention) {
	s.Mentions = mentions
	s.Records = editor.NewRecordSet(mentions)
	s.Grid = make([]editor.GridRow, 0, len(mentions))
	for _, m := range mentions {
		s.Grid = append(s.Grid, editor.GridRow{Key: m.Key(), Sentiment: m.SentimentCode()})
	}
}

// SyncGrid re-renders every grid row as its record with the queued edit of
// that record applied
func (s *Session) SyncGrid() {
	for i := range s.Grid {
		row := &s.Grid[i]
		row.MarkedForDelete = false
		if m, ok := s.Records[row.Key]; ok {
			row.Sentiment = m.SentimentCode()
		}

		edit, ok := s.Queue.Pending(row.Key)
		if !ok {
			continue
		}
		switch edit.Action {
		case models.ActionRelabel:
			row.Sentiment = edit.NewSentiment
		case models.ActionDelete:
			row.MarkedForDelete = true
		}
	}
}

// Manager creates, looks up and discards sessions
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	registry    *schema.Registry
	filterOpts  filters.Options
	idleTimeout time.Duration
	now         func() time.Time
}

// NewManager creates a manager. Sessions idle for longer than idleTimeout
// expire; zero disables expiry.
func NewManager(registry *schema.Registry, filterOpts filters.Options, idleTimeout time.Duration) *Manager {
	return &Manager{
		sessions:    make(map[string]*Session),
		registry:    registry,
		filterOpts:  filterOpts,
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// Create starts a session with default filters and an empty queue
func (m *Manager) Create(id Identity) (*Session, error) {
	if id.Actor == "" {
		return nil, fmt.Errorf("session requires an actor")
	}
	if id.AlertID <= 0 {
		return nil, fmt.Errorf("session requires an alert id")
	}

	now := m.now()
	s := &Session{
		ID:        uuid.NewString(),
		Identity:  id,
		CreatedAt: now,
		Filters:   filters.NewScope(m.filterOpts),
		Queue:     editor.NewQueue(m.registry),
		Records:   editor.RecordSet{},
		lastSeen:  now,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	logrus.Infof("Session %s started for %s (alert %d)", s.ID, id.Actor, id.AlertID)
	return s, nil
}

// Get returns a live session and marks it as active. An expired session is
// discarded.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	now := m.now()
	if m.expired(s, now) {
		m.discardLocked(id, "expired")
		return nil, ErrNotFound
	}
	s.lastSeen = now
	return s, nil
}

// Discard ends a session; its pending edits are dropped
func (m *Manager) Discard(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	m.discardLocked(id, "closed")
	return nil
}

// Sweep discards every expired session and returns how many were removed
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, s := range m.sessions {
		if m.expired(s, now) {
			m.discardLocked(id, "expired")
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) expired(s *Session, now time.Time) bool {
	return m.idleTimeout > 0 && now.Sub(s.lastSeen) > m.idleTimeout
}

func (m *Manager) discardLocked(id, reason string) {
	s := m.sessions[id]
	delete(m.sessions, id)
	if pending := s.Queue.Len(); pending > 0 {
		logrus.Warnf("Session %s %s with %d pending edit(s) discarded", id, reason, pending)
		return
	}
	logrus.Infof("Session %s %s", id, reason)
}
