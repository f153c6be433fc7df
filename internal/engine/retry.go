package engine

import "time"

// retryState tracks one user's backoff progress.
type retryState struct {
	attempts    int
	lastAttempt time.Time
}

// RetryOutcome is the result of a retry request: either a scheduled attempt
// with its backoff delay, or exhaustion of the retry budget.
type RetryOutcome struct {
	Exhausted bool
	Attempt   int
	Delay     time.Duration
}

// RetryController keeps per-user retry counters with linear backoff:
// attempt N is delayed by N * base. The request that would become attempt
// `max` is instead reported as exhausted and the state cleared, so the
// counter never exceeds the configured maximum. Not goroutine safe; the
// engine serializes access.
type RetryController struct {
	max    int
	base   time.Duration
	states map[string]*retryState
}

// NewRetryController creates a controller with the given attempt budget and
// backoff unit.
func NewRetryController(max int, base time.Duration) *RetryController {
	return &RetryController{
		max:    max,
		base:   base,
		states: make(map[string]*retryState),
	}
}

// Request records a retry request for connID and returns the outcome.
func (rc *RetryController) Request(connID string, now time.Time) RetryOutcome {
	st, ok := rc.states[connID]
	if !ok {
		st = &retryState{}
		rc.states[connID] = st
	}

	next := st.attempts + 1
	if next >= rc.max {
		delete(rc.states, connID)
		return RetryOutcome{Exhausted: true}
	}

	st.attempts = next
	st.lastAttempt = now
	return RetryOutcome{
		Attempt: next,
		Delay:   time.Duration(next) * rc.base,
	}
}

// Reset clears connID's retry state. Called on successful pairing and on
// disconnect.
func (rc *RetryController) Reset(connID string) {
	delete(rc.states, connID)
}

// Attempts returns the current counter for connID, zero if absent.
func (rc *RetryController) Attempts(connID string) int {
	if st, ok := rc.states[connID]; ok {
		return st.attempts
	}
	return 0
}

// Len returns the number of users with live retry state.
func (rc *RetryController) Len() int {
	return len(rc.states)
}
