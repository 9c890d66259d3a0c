package core

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/PreChart2DB/internal/dataset"
	"github.com/JonMunkholm/PreChart2DB/internal/dbsync"
	"github.com/JonMunkholm/PreChart2DB/internal/importer"
	"github.com/JonMunkholm/PreChart2DB/internal/report"
)

// DefaultStatusLimit is how many status messages a session keeps.
const DefaultStatusLimit = 200

// State is the mutable part of a Session.
type State struct {
	// Table is the loaded file, nil until a load succeeds.
	Table *dataset.Table

	FileName string

	// TableName is the target table, initially the file stem.
	TableName string

	// LoadOptions are the options of the last successful load.
	LoadOptions importer.Options

	// Conn is this session's connection, a copy of the configured default
	// until the user changes it.
	Conn dbsync.ConnConfig

	// OverwritePending is set between RequestOverwrite and
	// ConfirmOverwrite/CancelOverwrite.
	OverwritePending bool

	LastResult *dbsync.Result
}

// Session is the state of one user working on one file.
type Session struct {
	ID string

	// Log receives every status message of this session.
	Log *report.Recorder

	mu       sync.Mutex
	state    State
	lastSeen time.Time
}

func newSession(conn dbsync.ConnConfig, now time.Time) *Session {
	return &Session{
		ID:       uuid.NewString(),
		Log:      report.NewRecorder(DefaultStatusLimit),
		state:    State{Conn: conn},
		lastSeen: now,
	}
}

// View calls fn with the session locked. fn must not keep State.Table past
// its return.
func (s *Session) View(fn func(st State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

// Snapshot returns a copy of the state without the table.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Table = nil
	return st
}

// HasTable reports whether a file is loaded.
func (s *Session) HasTable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Table != nil
}

func (s *Session) update(fn func(st *State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.state)
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// SessionStore keeps sessions in memory and drops idle ones.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session

	conn dbsync.ConnConfig
	idle time.Duration
	now  func() time.Time
}

// NewSessionStore returns a store whose new sessions start with conn.
// Sessions unused for idle are expired; idle <= 0 disables expiry.
func NewSessionStore(conn dbsync.ConnConfig, idle time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		conn:     conn,
		idle:     idle,
		now:      time.Now,
	}
}

// Create starts a new session.
func (st *SessionStore) Create() *Session {
	s := newSession(st.conn, st.now())
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

// Get returns the live session with id and marks it used.
func (st *SessionStore) Get(id string) (*Session, bool) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	st.mu.Unlock()
	if !ok {
		return nil, false
	}

	now := st.now()
	if st.expired(s, now) {
		st.Delete(id)
		return nil, false
	}
	s.touch(now)
	return s, true
}

// Exists reports whether id names a live session without marking it used.
func (st *SessionStore) Exists(id string) bool {
	st.mu.Lock()
	s, ok := st.sessions[id]
	st.mu.Unlock()
	return ok && !st.expired(s, st.now())
}

// GetOrCreate returns the session with id, or a new one if id is unknown
// or expired. created reports which.
func (st *SessionStore) GetOrCreate(id string) (s *Session, created bool) {
	if id != "" {
		if s, ok := st.Get(id); ok {
			return s, false
		}
	}
	return st.Create(), true
}

// Delete drops the session with id.
func (st *SessionStore) Delete(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// Len returns the number of stored sessions, expired ones included until
// the next Sweep.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep removes expired sessions and returns how many were removed.
func (st *SessionStore) Sweep() int {
	now := st.now()

	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	for id, s := range st.sessions {
		if st.expired(s, now) {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

func (st *SessionStore) expired(s *Session, now time.Time) bool {
	return st.idle > 0 && now.Sub(s.idleSince()) > st.idle
}
