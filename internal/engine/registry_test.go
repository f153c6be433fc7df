package engine

import (
	"testing"
	"time"
)

func TestRegistry_OpenIsIdempotent(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	s1 := r.Open("a", now)
	s2 := r.Open("a", now.Add(time.Minute))

	if s1 != s2 {
		t.Error("second open replaced the existing session")
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 session, got %d", r.Len())
	}
}

func TestRegistry_TokensAreRandom(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	s1 := r.Open("a", now)
	s2 := r.Open("b", now)

	if len(s1.Token) != 32 {
		t.Errorf("expected 32-char token, got %d chars", len(s1.Token))
	}
	if s1.Token == s2.Token {
		t.Error("two sessions share a token")
	}
	if s1.Token == s1.ConnID {
		t.Error("token must not be the connection ID")
	}
}

func TestRegistry_TouchAndSetLocationIgnoreUnknowns(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	// Operating on an unknown connID must be a silent no-op.
	r.Touch("ghost", now)
	r.SetLocation("ghost", Location{Country: "DE"})
	if r.Len() != 0 {
		t.Errorf("no-op mutations created sessions: %d", r.Len())
	}

	s := r.Open("a", now)
	later := now.Add(time.Minute)
	r.Touch("a", later)
	if !s.LastActivity.Equal(later) {
		t.Errorf("touch did not update last activity: %s", s.LastActivity)
	}

	r.SetLocation("a", Location{Country: "DE", Continent: "Europe"})
	if s.Location == nil || s.Location.Country != "DE" {
		t.Errorf("location not stored: %+v", s.Location)
	}
}

func TestRegistry_CloseRemovesSession(t *testing.T) {
	r := NewRegistry()
	r.Open("a", time.Now())

	if !r.Close("a") {
		t.Error("close of live session reported false")
	}
	if r.Close("a") {
		t.Error("second close reported true")
	}
	if r.Get("a") != nil {
		t.Error("session retrievable after close")
	}
}
