// Package history provides PostgreSQL-backed storage for pairing episodes:
// who was paired with whom (by ephemeral session token), where, when, and
// how the episode ended. It stores no message content.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"

	"github.com/pairchat/server/internal/engine"
)

// writeQueueSize bounds the async write buffer. When the buffer is full,
// records are dropped with a log line rather than blocking the engine.
const writeQueueSize = 256

// Store records pairing episodes asynchronously. It implements
// engine.Recorder.
type Store struct {
	db   *sql.DB
	ch   chan writeOp
	done chan struct{}
}

type writeOp struct {
	start  *engine.EpisodeStart
	endID  string
	endAt  time.Time
	endWhy string
}

// Open connects to PostgreSQL, runs migrations, and starts the background
// writer.
func Open(databaseURL string) (*Store, error) {
	if err := RunMigrations(databaseURL); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: database ping: %w", err)
	}

	s := &Store{
		db:   db,
		ch:   make(chan writeOp, writeQueueSize),
		done: make(chan struct{}),
	}
	go s.writeLoop()
	return s, nil
}

// EpisodeStarted enqueues an episode-start record. Never blocks.
func (s *Store) EpisodeStarted(ep engine.EpisodeStart) {
	select {
	case s.ch <- writeOp{start: &ep}:
	default:
		log.Printf("[history] write queue full, dropping episode %s", ep.ID)
	}
}

// EpisodeEnded enqueues an episode-end record. Never blocks.
func (s *Store) EpisodeEnded(episodeID, reason string, endedAt time.Time) {
	select {
	case s.ch <- writeOp{endID: episodeID, endWhy: reason, endAt: endedAt}:
	default:
		log.Printf("[history] write queue full, dropping end of episode %s", episodeID)
	}
}

// Close stops the writer after draining pending records and closes the
// database handle.
func (s *Store) Close() error {
	close(s.ch)
	<-s.done
	return s.db.Close()
}

func (s *Store) writeLoop() {
	defer close(s.done)
	for op := range s.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		var err error
		if op.start != nil {
			err = s.insertStart(ctx, op.start)
		} else {
			err = s.markEnded(ctx, op.endID, op.endWhy, op.endAt)
		}
		cancel()
		if err != nil {
			log.Printf("[history] write: %v", err)
		}
	}
}

func (s *Store) insertStart(ctx context.Context, ep *engine.EpisodeStart) error {
	const query = `
		INSERT INTO episodes (id, session_a, session_b, country_a, country_b, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.ExecContext(ctx, query,
		ep.ID, ep.SessionA, ep.SessionB, ep.CountryA, ep.CountryB, ep.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert episode %s: %w", ep.ID, err)
	}
	return nil
}

func (s *Store) markEnded(ctx context.Context, episodeID, reason string, endedAt time.Time) error {
	const query = `
		UPDATE episodes SET ended_at = $2, end_reason = $3
		WHERE id = $1 AND ended_at IS NULL`

	_, err := s.db.ExecContext(ctx, query, episodeID, endedAt.UTC(), reason)
	if err != nil {
		return fmt.Errorf("end episode %s: %w", episodeID, err)
	}
	return nil
}

// CountSince returns the number of episodes started within the given window.
// Useful for operational dashboards.
func (s *Store) CountSince(ctx context.Context, window time.Duration) (int, error) {
	const query = `
		SELECT COUNT(*) FROM episodes
		WHERE started_at >= NOW() - $1::interval`

	var count int
	if err := s.db.QueryRowContext(ctx, query, window.String()).Scan(&count); err != nil {
		return 0, fmt.Errorf("history: count since: %w", err)
	}
	return count, nil
}
