package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client, cfg), mr
}

func TestCheckLoginBudget(t *testing.T) {
	l, _ := newTestLimiter(t, Config{
		MaxLoginAttempts:      3,
		LoginCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	if err := l.CheckLogin(ctx, "alice", "203.0.113.7"); err != nil {
		t.Fatalf("CheckLogin on empty counters failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := l.RecordLoginFailure(ctx, "alice", "203.0.113.7"); err != nil {
			t.Fatalf("RecordLoginFailure failed: %v", err)
		}
	}
	if err := l.CheckLogin(ctx, "alice", "203.0.113.7"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	// other identifiers from other addresses are unaffected
	if err := l.CheckLogin(ctx, "bob", "198.51.100.1"); err != nil {
		t.Fatalf("CheckLogin for unrelated identity failed: %v", err)
	}
}

func TestIPBudgetSharedAcrossIdentifiers(t *testing.T) {
	l, _ := newTestLimiter(t, Config{
		MaxLoginAttempts:      2,
		LoginCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	// one address spraying different identifiers still burns the IP budget
	_ = l.RecordLoginFailure(ctx, "alice", "203.0.113.7")
	_ = l.RecordLoginFailure(ctx, "bob", "203.0.113.7")

	if err := l.CheckLogin(ctx, "carol", "203.0.113.7"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited via IP counter, got %v", err)
	}
	if err := l.CheckLogin(ctx, "carol", "198.51.100.1"); err != nil {
		t.Fatalf("CheckLogin from a clean address failed: %v", err)
	}
}

func TestResetLoginClearsCounters(t *testing.T) {
	l, _ := newTestLimiter(t, Config{
		MaxLoginAttempts:      1,
		LoginCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	_ = l.RecordLoginFailure(ctx, "alice", "203.0.113.7")
	if err := l.CheckLogin(ctx, "alice", "203.0.113.7"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.ResetLogin(ctx, "alice", "203.0.113.7"); err != nil {
		t.Fatalf("ResetLogin failed: %v", err)
	}
	if err := l.CheckLogin(ctx, "alice", "203.0.113.7"); err != nil {
		t.Fatalf("CheckLogin after reset failed: %v", err)
	}
}

func TestLoginWindowExpires(t *testing.T) {
	l, mr := newTestLimiter(t, Config{
		MaxLoginAttempts:      1,
		LoginCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	_ = l.RecordLoginFailure(ctx, "alice", "")
	if err := l.CheckLogin(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if err := l.CheckLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("CheckLogin after window failed: %v", err)
	}
}

func TestCheckRefreshCountsAttempts(t *testing.T) {
	l, mr := newTestLimiter(t, Config{
		MaxRefreshAttempts:      2,
		RefreshCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.CheckRefresh(ctx, "fam-1"); err != nil {
			t.Fatalf("CheckRefresh %d failed: %v", i+1, err)
		}
	}
	if err := l.CheckRefresh(ctx, "fam-1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.CheckRefresh(ctx, "fam-2"); err != nil {
		t.Fatalf("CheckRefresh for another family failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if err := l.CheckRefresh(ctx, "fam-1"); err != nil {
		t.Fatalf("CheckRefresh after window failed: %v", err)
	}
}

func TestNilLimiterIsPermissive(t *testing.T) {
	var l *Limiter
	ctx := context.Background()

	if err := l.CheckLogin(ctx, "alice", "203.0.113.7"); err != nil {
		t.Fatalf("nil CheckLogin = %v", err)
	}
	if err := l.RecordLoginFailure(ctx, "alice", "203.0.113.7"); err != nil {
		t.Fatalf("nil RecordLoginFailure = %v", err)
	}
	if err := l.ResetLogin(ctx, "alice", "203.0.113.7"); err != nil {
		t.Fatalf("nil ResetLogin = %v", err)
	}
	if err := l.CheckRefresh(ctx, "fam-1"); err != nil {
		t.Fatalf("nil CheckRefresh = %v", err)
	}
}
