package engine

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Location is a best-effort geolocation hint reported by the client.
type Location struct {
	Country   string
	Continent string
	Timezone  string
}

// Preferences are the matching preferences supplied with a partner search.
type Preferences struct {
	Interests         []string
	PreferSameCountry bool
	SetAt             time.Time
}

// Session is the ephemeral per-connection state. It carries no durable
// identity: the token is random, minted at connect, and dies with the
// connection or the inactivity sweep.
type Session struct {
	ConnID           string
	Token            string
	JoinedAt         time.Time
	LastActivity     time.Time
	Location         *Location
	Prefs            *Preferences
	PreviousPartners []string
}

// HadPartner reports whether connID appears in the session's previous-partner
// list.
func (s *Session) HadPartner(connID string) bool {
	for _, id := range s.PreviousPartners {
		if id == connID {
			return true
		}
	}
	return false
}

// Registry tracks all live sessions by connection ID. It is not goroutine
// safe; the engine serializes access under its own lock.
type Registry struct {
	sessions map[string]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Open creates a session with a fresh random token and current timestamps.
// If a session already exists for the connection it is returned unchanged.
func (r *Registry) Open(connID string, now time.Time) *Session {
	if s, ok := r.sessions[connID]; ok {
		return s
	}
	s := &Session{
		ConnID:       connID,
		Token:        newSessionToken(),
		JoinedAt:     now,
		LastActivity: now,
	}
	r.sessions[connID] = s
	return s
}

// Get returns the session for connID, or nil if none exists.
func (r *Registry) Get(connID string) *Session {
	return r.sessions[connID]
}

// Touch updates the session's last-activity timestamp. Unknown connIDs are a
// no-op; disconnect races are routine.
func (r *Registry) Touch(connID string, now time.Time) {
	if s, ok := r.sessions[connID]; ok {
		s.LastActivity = now
	}
}

// SetLocation stores or overwrites the location hint. No-op if the session
// no longer exists.
func (r *Registry) SetLocation(connID string, loc Location) {
	if s, ok := r.sessions[connID]; ok {
		s.Location = &loc
	}
}

// Close removes the session and everything hanging off it. Returns false if
// the session was already gone.
func (r *Registry) Close(connID string) bool {
	if _, ok := r.sessions[connID]; !ok {
		return false
	}
	delete(r.sessions, connID)
	return true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}

// All returns a snapshot slice of all sessions, safe to iterate while
// mutating the registry.
func (r *Registry) All() []*Session {
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// newSessionToken returns a 32-char random hex token.
func newSessionToken() string {
	buf := make([]byte, 16)
	// rand.Read on the crypto source never fails on supported platforms.
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
