package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestLimiter creates a Limiter connected to a test Redis instance.
// Requires Redis running on localhost:6379. Tests are skipped if unavailable.
func setupTestLimiter(t *testing.T) (*Limiter, context.Context) {
	t.Helper()

	rdb := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // use DB 15 for tests to avoid conflicts
	})

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("skipping: Redis not available: %v", err)
	}

	rdb.FlushDB(ctx)

	t.Cleanup(func() {
		rdb.FlushDB(ctx)
		rdb.Close()
	})

	return NewLimiter(rdb), ctx
}

func TestAllow_WithinLimit(t *testing.T) {
	l, ctx := setupTestLimiter(t)
	rule := Rule{Key: "rl:test:", Limit: 3, Window: time.Minute}

	for i := 1; i <= 3; i++ {
		allowed, err := l.Allow(ctx, "user-1", rule)
		if err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
		if !allowed {
			t.Fatalf("request %d within limit was denied", i)
		}
	}
}

func TestAllow_DeniesOverLimit(t *testing.T) {
	l, ctx := setupTestLimiter(t)
	rule := Rule{Key: "rl:test:", Limit: 2, Window: time.Minute}

	l.Allow(ctx, "user-1", rule)
	l.Allow(ctx, "user-1", rule)

	allowed, err := l.Allow(ctx, "user-1", rule)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Fatal("request over the limit was allowed")
	}
}

func TestAllow_IdentifiersAreIndependent(t *testing.T) {
	l, ctx := setupTestLimiter(t)
	rule := Rule{Key: "rl:test:", Limit: 1, Window: time.Minute}

	l.Allow(ctx, "user-1", rule)

	allowed, err := l.Allow(ctx, "user-2", rule)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Fatal("one identifier's limit denied another")
	}
}

func TestAllow_WindowExpires(t *testing.T) {
	l, ctx := setupTestLimiter(t)
	rule := Rule{Key: "rl:test:", Limit: 1, Window: time.Second}

	l.Allow(ctx, "user-1", rule)
	if allowed, _ := l.Allow(ctx, "user-1", rule); allowed {
		t.Fatal("second request within the window was allowed")
	}

	time.Sleep(1100 * time.Millisecond)

	if allowed, _ := l.Allow(ctx, "user-1", rule); !allowed {
		t.Fatal("request after window expiry was denied")
	}
}

func TestRetryAfter_ReportsRemainingWindow(t *testing.T) {
	l, ctx := setupTestLimiter(t)
	rule := Rule{Key: "rl:test:", Limit: 1, Window: time.Minute}

	l.Allow(ctx, "user-1", rule)

	retry := l.RetryAfter(ctx, "user-1", rule)
	if retry <= 0 || retry > 60 {
		t.Errorf("expected retry-after within (0, 60], got %d", retry)
	}

	// Unknown identifiers report the full window.
	if retry := l.RetryAfter(ctx, "nobody", rule); retry != 60 {
		t.Errorf("expected full window for unknown identifier, got %d", retry)
	}
}

func TestAllow_ManyIdentifiers(t *testing.T) {
	l, ctx := setupTestLimiter(t)
	rule := Rule{Key: "rl:test:", Limit: 5, Window: time.Minute}

	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("user-%d", i)
		allowed, err := l.Allow(ctx, id, rule)
		if err != nil {
			t.Fatalf("identifier %s: unexpected error: %v", id, err)
		}
		if !allowed {
			t.Fatalf("first request for %s denied", id)
		}
	}
}
