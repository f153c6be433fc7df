package engine

import "time"

// Config holds the tunable parameters of the matching engine. All values are
// externally configurable; DefaultConfig mirrors the production defaults.
type Config struct {
	MaxRetryAttempts int           // retry requests allowed before the terminal failure
	RetryBaseDelay   time.Duration // backoff unit; attempt N waits N * RetryBaseDelay
	WaitingDeadline  time.Duration // max time an entry may sit in the waiting queue
	BlockedPairTTL   time.Duration // how long a separated pair stays blocked
	SessionTimeout   time.Duration // inactivity window before a session is evicted
	SweepInterval    time.Duration // period of the background expiry sweep
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetryAttempts: 5,
		RetryBaseDelay:   1500 * time.Millisecond,
		WaitingDeadline:  2 * time.Minute,
		BlockedPairTTL:   10 * time.Minute,
		SessionTimeout:   1 * time.Hour,
		SweepInterval:    5 * time.Minute,
	}
}
