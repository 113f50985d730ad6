// Package preview keeps in-memory preview sessions for the HTTP API. A
// session holds the last uploaded photo and a Previewer producing its
// composite. Nothing is written to disk; idle sessions expire.
package preview

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/youruser/brandbar/internal/pipeline"
)

// Session is one client's editing state.
type Session struct {
	ID string

	previewer *pipeline.Previewer

	mu       sync.Mutex
	main     []byte
	mainType string
	touched  time.Time
}

// Submit records the uploaded photo and schedules a composite of req.
func (s *Session) Submit(data []byte, contentType string, req pipeline.Request) uint64 {
	s.mu.Lock()
	s.main = data
	s.mainType = contentType
	s.mu.Unlock()
	return s.previewer.Submit(req)
}

// Main returns the last uploaded photo and its content type.
func (s *Session) Main() ([]byte, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.main, s.mainType
}

// Latest returns the newest composite, or nil if none has succeeded yet.
func (s *Session) Latest() *pipeline.Result {
	return s.previewer.Latest()
}

// LastError reports why the newest run failed, if it did.
func (s *Session) LastError() error {
	return s.previewer.LastError()
}

// Generation returns the number of submits so far.
func (s *Session) Generation() uint64 {
	return s.previewer.Generation()
}

// Store indexes sessions by id.
type Store struct {
	ttl     time.Duration
	factory func() *pipeline.Previewer
	log     *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore returns a Store whose sessions expire after ttl without access.
// factory builds the Previewer for each new session.
func NewStore(ttl time.Duration, factory func() *pipeline.Previewer, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		ttl:      ttl,
		factory:  factory,
		log:      log,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session.
func (st *Store) Create() *Session {
	s := &Session{ID: uuid.NewString(), previewer: st.factory(), touched: st.now()}
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	st.log.Debug("session created", "session", s.ID)
	return s
}

// Get returns a live session and refreshes its expiry.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	s.touched = st.now()
	s.mu.Unlock()
	return s, true
}

// Delete ends a session, waiting for its running composite to finish.
func (st *Store) Delete(id string) bool {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if ok {
		s.previewer.Close()
	}
	return ok
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep removes sessions idle for longer than the ttl and returns how many
// were removed.
func (st *Store) Sweep() int {
	cutoff := st.now().Add(-st.ttl)
	var expired []*Session
	st.mu.Lock()
	for id, s := range st.sessions {
		s.mu.Lock()
		idle := s.touched.Before(cutoff)
		s.mu.Unlock()
		if idle {
			expired = append(expired, s)
			delete(st.sessions, id)
		}
	}
	st.mu.Unlock()

	for _, s := range expired {
		s.previewer.Close()
	}
	if len(expired) > 0 {
		st.log.Info("expired preview sessions", "count", len(expired))
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done, then closes all sessions.
func (st *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			st.Close()
			return
		case <-ticker.C:
			st.Sweep()
		}
	}
}

// Close ends every session.
func (st *Store) Close() {
	st.mu.Lock()
	all := st.sessions
	st.sessions = make(map[string]*Session)
	st.mu.Unlock()
	for _, s := range all {
		s.previewer.Close()
	}
}
