package engine

import (
	"testing"
	"time"
)

func TestRetryController_LinearBackoff(t *testing.T) {
	rc := NewRetryController(5, 1500*time.Millisecond)
	now := time.Now()

	for i := 1; i <= 4; i++ {
		out := rc.Request("a", now)
		if out.Exhausted {
			t.Fatalf("request %d unexpectedly exhausted", i)
		}
		if out.Attempt != i {
			t.Errorf("request %d: attempt = %d", i, out.Attempt)
		}
		want := time.Duration(i) * 1500 * time.Millisecond
		if out.Delay != want {
			t.Errorf("request %d: delay = %s, want %s", i, out.Delay, want)
		}
	}
}

func TestRetryController_FifthRequestExhaustsAndClears(t *testing.T) {
	rc := NewRetryController(5, time.Second)
	now := time.Now()

	for i := 0; i < 4; i++ {
		rc.Request("a", now)
	}

	out := rc.Request("a", now)
	if !out.Exhausted {
		t.Fatal("expected the fifth request to exhaust the budget")
	}
	if rc.Attempts("a") != 0 {
		t.Errorf("expected state cleared, got %d attempts", rc.Attempts("a"))
	}
	if rc.Len() != 0 {
		t.Errorf("expected no live retry state, got %d", rc.Len())
	}

	// After exhaustion the cycle starts over.
	out = rc.Request("a", now)
	if out.Exhausted || out.Attempt != 1 {
		t.Errorf("expected a fresh first attempt, got %+v", out)
	}
}

func TestRetryController_ResetClearsState(t *testing.T) {
	rc := NewRetryController(5, time.Second)
	now := time.Now()

	rc.Request("a", now)
	rc.Request("a", now)
	rc.Reset("a")

	if rc.Attempts("a") != 0 {
		t.Errorf("expected 0 attempts after reset, got %d", rc.Attempts("a"))
	}
	out := rc.Request("a", now)
	if out.Attempt != 1 {
		t.Errorf("expected attempt 1 after reset, got %d", out.Attempt)
	}
}

func TestRetryController_IndependentUsers(t *testing.T) {
	rc := NewRetryController(5, time.Second)
	now := time.Now()

	rc.Request("a", now)
	rc.Request("a", now)
	out := rc.Request("b", now)

	if out.Attempt != 1 {
		t.Errorf("b's counter contaminated by a: attempt = %d", out.Attempt)
	}
}
