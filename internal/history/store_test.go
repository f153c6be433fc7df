package history

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pairchat/server/internal/engine"
)

// setupTestStore opens a Store against the database named by
// TEST_DATABASE_URL. Tests are skipped when the variable is unset or the
// database is unreachable.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("skipping: TEST_DATABASE_URL not set")
	}

	s, err := Open(dbURL)
	if err != nil {
		t.Skipf("skipping: database not available: %v", err)
	}
	t.Cleanup(func() {
		s.db.Exec("DELETE FROM episodes")
		s.Close()
	})
	return s
}

func TestStore_RecordsEpisodeLifecycle(t *testing.T) {
	s := setupTestStore(t)

	episodeID := uuid.New().String()
	started := time.Now()
	s.EpisodeStarted(engine.EpisodeStart{
		ID:        episodeID,
		SessionA:  "token-a",
		SessionB:  "token-b",
		CountryA:  "DE",
		CountryB:  "FR",
		StartedAt: started,
	})
	s.EpisodeEnded(episodeID, "disconnect", started.Add(time.Minute))

	// Writes are async; give the writer a moment.
	time.Sleep(200 * time.Millisecond)

	var (
		sessionA string
		reason   sql.NullString
		endedAt  sql.NullTime
	)
	err := s.db.QueryRow(
		`SELECT session_a, end_reason, ended_at FROM episodes WHERE id = $1`,
		episodeID,
	).Scan(&sessionA, &reason, &endedAt)
	if err != nil {
		t.Fatalf("episode not found: %v", err)
	}
	if sessionA != "token-a" {
		t.Errorf("expected session_a token-a, got %q", sessionA)
	}
	if !reason.Valid || reason.String != "disconnect" {
		t.Errorf("expected end_reason disconnect, got %+v", reason)
	}
	if !endedAt.Valid {
		t.Error("expected ended_at to be set")
	}
}

func TestStore_CountSince(t *testing.T) {
	s := setupTestStore(t)

	for i := 0; i < 3; i++ {
		s.EpisodeStarted(engine.EpisodeStart{
			ID:        uuid.New().String(),
			SessionA:  "token-a",
			SessionB:  "token-b",
			StartedAt: time.Now(),
		})
	}
	time.Sleep(200 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	n, err := s.CountSince(ctx, time.Hour)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 episodes, got %d", n)
	}
}
