// Package session keeps the per-user state of the HR workflow: the job, the current batch and the interviews.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fmuoria/agent-studio/internal/models"
)

// Session is the context of one user. It is safe for concurrent use.
type Session struct {
	id      string
	created time.Time

	// unix nanoseconds of the last lookup, owned by the Store
	lastSeen atomic.Int64

	mu         sync.RWMutex
	job        models.JobRequirements
	batch      *models.BatchResult
	raw        string
	fallback   bool
	interviews []models.InterviewBooking
}

// New creates a session with a random id
func New() *Session {
	return newAt(time.Now())
}

func newAt(now time.Time) *Session {
	s := &Session{id: uuid.NewString(), created: now}
	s.lastSeen.Store(now.UnixNano())
	return s
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Created returns the creation time
func (s *Session) Created() time.Time {
	return s.created
}

// ReplaceBatch swaps in the result of a new analysis run. Nothing of the
// previous batch survives. Interviews already booked are kept.
func (s *Session) ReplaceBatch(job models.JobRequirements, batch *models.BatchResult, raw string, fallback bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job = job
	s.batch = batch.Clone()
	s.raw = raw
	s.fallback = fallback
}

// Job returns the requirements of the current batch
func (s *Session) Job() models.JobRequirements {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.job
}

// Batch returns a copy of the current batch, or nil before the first analysis
func (s *Session) Batch() *models.BatchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.batch.Clone()
}

// Raw returns the agent reply the current batch was reconciled from
func (s *Session) Raw() (raw string, fallback bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.raw, s.fallback
}

// Book appends an interview. Bookings are never changed or removed.
func (s *Session) Book(b models.InterviewBooking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interviews = append(s.interviews, b)
}

// Interviews returns the bookings in the order they were made
func (s *Session) Interviews() []models.InterviewBooking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.InterviewBooking(nil), s.interviews...)
}

// DefaultIdleTTL is how long a session survives without a request
const DefaultIdleTTL = 30 * time.Minute

// Store holds the live sessions. A session that has not been looked up for
// longer than the idle TTL ends: it is evicted on its next lookup or by the
// sweep that runs while new sessions are created.
type Store struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewStore creates an empty store. A non-positive ttl selects DefaultIdleTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	return &Store{sessions: make(map[string]*Session), ttl: ttl, now: time.Now}
}

// TTL returns the idle time after which a session ends
func (st *Store) TTL() time.Duration {
	return st.ttl
}

// Create registers a new session
func (st *Store) Create() *Session {
	now := st.now()
	s := newAt(now)
	st.mu.Lock()
	if now.Sub(st.lastSweep) >= st.ttl/2 {
		st.sweepLocked(now)
	}
	st.sessions[s.id] = s
	st.mu.Unlock()
	return s
}

// Get looks up a live session by id and marks it as used
func (st *Store) Get(id string) (*Session, bool) {
	now := st.now()
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if st.expired(s, now) {
		st.mu.Lock()
		// Re-check under the write lock: a concurrent Get may have touched it.
		if cur, ok := st.sessions[id]; ok && cur == s && st.expired(s, now) {
			delete(st.sessions, id)
		}
		st.mu.Unlock()
		return nil, false
	}
	s.lastSeen.Store(now.UnixNano())
	return s, true
}

// GetOrCreate returns the session for id, creating a new one when id is unknown
// or its session has ended. The boolean is true when a session was created.
func (st *Store) GetOrCreate(id string) (*Session, bool) {
	if id != "" {
		if s, ok := st.Get(id); ok {
			return s, false
		}
	}
	return st.Create(), true
}

// Delete ends a session
func (st *Store) Delete(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// Sweep ends every idle session and returns how many were removed
func (st *Store) Sweep() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.sweepLocked(st.now())
}

func (st *Store) sweepLocked(now time.Time) int {
	n := 0
	for id, s := range st.sessions {
		if st.expired(s, now) {
			delete(st.sessions, id)
			n++
		}
	}
	st.lastSweep = now
	return n
}

func (st *Store) expired(s *Session, now time.Time) bool {
	return now.Sub(time.Unix(0, s.lastSeen.Load())) > st.ttl
}

// Len returns the number of sessions held, including idle ones not yet swept
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
