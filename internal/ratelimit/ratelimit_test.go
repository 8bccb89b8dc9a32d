package ratelimit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/formgate/formgate/internal/db"
	"github.com/formgate/formgate/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func openRateLimitTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:ratelimit_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

// backends returns each clock-driven limiter under test.
func backends(t *testing.T) map[string]func(*fakeClock) Limiter {
	return map[string]func(*fakeClock) Limiter{
		"memory": func(c *fakeClock) Limiter { return NewMemoryLimiter(c.now) },
		"db": func(c *fakeClock) Limiter {
			l := NewDBLimiter(openRateLimitTestDB(t))
			l.now = c.now
			return l
		},
	}
}

func mustAllow(t *testing.T, l Limiter, key string, rule Rule) *Decision {
	t.Helper()
	d, err := l.Allow(context.Background(), key, rule)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	return d
}

func TestLimiterAdmitsUpToLimitThenRejects(t *testing.T) {
	rule := Rule{Limit: 3, Window: time.Minute}
	for name, build := range backends(t) {
		clock := newClock()
		l := build(clock)
		key := Key("form-1", "203.0.113.1")
		for i := int64(1); i <= 3; i++ {
			d := mustAllow(t, l, key, rule)
			if !d.Allowed || d.Remaining != 3-i || d.Limit != 3 {
				t.Fatalf("%s: request %d unexpected decision %+v", name, i, d)
			}
		}
		d := mustAllow(t, l, key, rule)
		if d.Allowed || d.Remaining != 0 {
			t.Fatalf("%s: fourth request should be rejected, got %+v", name, d)
		}
		if !d.ResetAt.Equal(clock.t.Add(time.Minute)) {
			t.Fatalf("%s: reset = %v", name, d.ResetAt)
		}
		if other := mustAllow(t, l, Key("form-1", "203.0.113.2"), rule); !other.Allowed {
			t.Fatalf("%s: other ip must have its own counter", name)
		}
	}
}

func TestLimiterWindowResets(t *testing.T) {
	rule := Rule{Limit: 1, Window: time.Minute}
	for name, build := range backends(t) {
		clock := newClock()
		l := build(clock)
		mustAllow(t, l, "k", rule)
		if d := mustAllow(t, l, "k", rule); d.Allowed {
			t.Fatalf("%s: expected rejection inside window", name)
		}
		clock.advance(time.Minute)
		if d := mustAllow(t, l, "k", rule); !d.Allowed {
			t.Fatalf("%s: expected admission after window, got %+v", name, d)
		}
	}
}

func TestLimiterBlockOutlastsWindow(t *testing.T) {
	rule := Rule{Limit: 1, Window: time.Minute, Block: 10 * time.Minute}
	for name, build := range backends(t) {
		clock := newClock()
		l := build(clock)
		mustAllow(t, l, "k", rule)
		d := mustAllow(t, l, "k", rule)
		if d.Allowed || !d.ResetAt.Equal(clock.t.Add(10*time.Minute)) {
			t.Fatalf("%s: expected block until +10m, got %+v", name, d)
		}
		clock.advance(2 * time.Minute)
		if d := mustAllow(t, l, "k", rule); d.Allowed {
			t.Fatalf("%s: still blocked after window end", name)
		}
		clock.advance(9 * time.Minute)
		if d := mustAllow(t, l, "k", rule); !d.Allowed {
			t.Fatalf("%s: block should have expired, got %+v", name, d)
		}
	}
}

func TestLimiterRejectsInvalidRule(t *testing.T) {
	if _, err := NewMemoryLimiter(nil).Allow(context.Background(), "k", Rule{}); err == nil {
		t.Fatalf("expected error for zero rule")
	}
}

func TestMemoryLimiterPrune(t *testing.T) {
	clock := newClock()
	l := NewMemoryLimiter(clock.now)
	mustAllow(t, l, "a", Rule{Limit: 1, Window: time.Minute})
	clock.advance(2 * time.Minute)
	if removed := l.Prune(); removed != 1 {
		t.Fatalf("Prune removed %d", removed)
	}
}

func TestDBLimiterPurge(t *testing.T) {
	conn := openRateLimitTestDB(t)
	clock := newClock()
	l := NewDBLimiter(conn)
	l.now = clock.now
	mustAllow(t, l, "a", Rule{Limit: 1, Window: time.Minute})

	removed, err := l.Purge(context.Background(), clock.t.Add(time.Hour))
	if err != nil || removed != 1 {
		t.Fatalf("Purge = %d, %v", removed, err)
	}
	var count int64
	conn.Model(&models.RateLimitState{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no rows, got %d", count)
	}
}

func TestLimiterConcurrentAllowAdmitsExactlyLimit(t *testing.T) {
	conn, errOpen := db.Open("file:" + filepath.Join(t.TempDir(), "ratelimit.db"))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	limiters := map[string]Limiter{
		"memory": NewMemoryLimiter(nil),
		"db":     NewDBLimiter(conn),
	}
	rule := Rule{Limit: 5, Window: time.Minute}
	for name, l := range limiters {
		var (
			wg       sync.WaitGroup
			admitted atomic.Int64
			failed   atomic.Int64
		)
		start := make(chan struct{})
		for i := 0; i < 40; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				d, err := l.Allow(context.Background(), Key("form-1", "203.0.113.9"), rule)
				if err != nil {
					failed.Add(1)
					return
				}
				if d.Allowed {
					admitted.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()
		if failed.Load() != 0 || admitted.Load() != 5 {
			t.Fatalf("%s: admitted=%d failed=%d, want 5 and 0", name, admitted.Load(), failed.Load())
		}
	}
}

func TestRetryAfterFloor(t *testing.T) {
	now := time.Now()
	d := &Decision{ResetAt: now.Add(200 * time.Millisecond)}
	if got := d.RetryAfter(now); got != time.Second {
		t.Fatalf("RetryAfter = %v", got)
	}
}

func TestRedisLimiter(t *testing.T) {
	addr := os.Getenv("FORMGATE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("FORMGATE_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = client.Close() }()
	l := NewRedisLimiter(client, fmt.Sprintf("formgate-test-%d", time.Now().UnixNano()))
	rule := Rule{Limit: 2, Window: time.Minute, Block: time.Minute}

	for i := 0; i < 2; i++ {
		if d := mustAllow(t, l, "k", rule); !d.Allowed {
			t.Fatalf("request %d rejected: %+v", i+1, d)
		}
	}
	if d := mustAllow(t, l, "k", rule); d.Allowed || d.Remaining != 0 {
		t.Fatalf("third request should be rejected: %+v", d)
	}
}
