package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/keiba-ai/internal/racecard"
)

const sessionCookie = "keiba_session"

type session struct {
	ds      *racecard.Dataset
	expires time.Time
}

// Sessions keeps the last uploaded dataset per browser, in memory only.
type Sessions struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]*session
}

// NewSessions returns a store whose entries expire ttl after their last use.
func NewSessions(ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Sessions{ttl: ttl, now: time.Now, items: map[string]*session{}}
}

// Get returns the dataset for id and refreshes its expiry.
func (s *Sessions) Get(id string) (*racecard.Dataset, bool) {
	if id == "" {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil, false
	}
	now := s.now()
	if now.After(it.expires) {
		delete(s.items, id)
		return nil, false
	}
	it.expires = now.Add(s.ttl)
	return it.ds, true
}

// Put stores ds under id and drops expired sessions.
func (s *Sessions) Put(id string, ds *racecard.Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, it := range s.items {
		if now.After(it.expires) {
			delete(s.items, k)
		}
	}
	s.items[id] = &session{ds: ds, expires: now.Add(s.ttl)}
}

// Delete forgets id.
func (s *Sessions) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
}

// Len reports live and not yet swept sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// sessionID reads the cookie, issuing a new id when absent or malformed.
func sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func existingSessionID(r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	return ""
}
