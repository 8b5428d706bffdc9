package lock_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"booking-service/internal/lock"
	"booking-service/pkg/testutil"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func TestResourceKey(t *testing.T) {
	id := uuid.MustParse("7c1f5c52-0f38-4a55-9d1b-6f1d1c8d3a10")
	in := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	out := time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)

	got := lock.ResourceKey(id, in, out)
	want := "booking:lock:7c1f5c52-0f38-4a55-9d1b-6f1d1c8d3a10:2024-02-01:2024-02-03"
	if got != want {
		t.Fatalf("ResourceKey = %q, want %q", got, want)
	}

	other := lock.ResourceKey(id, in, out.AddDate(0, 0, 1))
	if other == got {
		t.Fatal("different ranges must produce different keys")
	}
}

func TestRedisLocker_RoundTrip(t *testing.T) {
	rdb := testutil.SetupTestRedis(t)
	l := lock.NewRedisLocker(rdb, zap.NewNop())
	ctx := context.Background()
	key := lock.ResourceKey(uuid.New(), time.Now(), time.Now().Add(48*time.Hour))

	token, ok, err := l.Acquire(ctx, key, 10*time.Second)
	if err != nil || !ok || token == "" {
		t.Fatalf("Acquire: token=%q ok=%v err=%v", token, ok, err)
	}

	// занятый ключ означает конкуренцию, а не ошибку
	if _, ok, err := l.Acquire(ctx, key, 10*time.Second); err != nil || ok {
		t.Fatalf("second Acquire: ok=%v err=%v", ok, err)
	}

	// чужой токен не снимает блокировку
	if err := l.Release(ctx, key, "not-the-owner"); !errors.Is(err, lock.ErrNotHeld) {
		t.Fatalf("Release with foreign token: %v", err)
	}
	if _, ok, _ := l.Acquire(ctx, key, 10*time.Second); ok {
		t.Fatal("lock must survive release with a foreign token")
	}

	// свой токен освобождает сразу
	if err := l.Release(ctx, key, token); err != nil {
		t.Fatalf("Release: %v", err)
	}
	token2, ok, err := l.Acquire(ctx, key, 10*time.Second)
	if err != nil || !ok {
		t.Fatalf("re-Acquire after release: ok=%v err=%v", ok, err)
	}
	if token2 == token {
		t.Fatal("tokens must be fresh per acquisition")
	}
}

func TestRedisLocker_LeaseExpires(t *testing.T) {
	rdb := testutil.SetupTestRedis(t)
	l := lock.NewRedisLocker(rdb, zap.NewNop())
	ctx := context.Background()
	key := lock.ResourceKey(uuid.New(), time.Now(), time.Now().Add(24*time.Hour))

	stale, ok, err := l.Acquire(ctx, key, 200*time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("Acquire: ok=%v err=%v", ok, err)
	}
	time.Sleep(400 * time.Millisecond)

	fresh, ok, err := l.Acquire(ctx, key, 10*time.Second)
	if err != nil || !ok {
		t.Fatalf("Acquire after lease expiry: ok=%v err=%v", ok, err)
	}

	// опоздавший владелец не может снять чужую блокировку
	if err := l.Release(ctx, key, stale); !errors.Is(err, lock.ErrNotHeld) {
		t.Fatalf("stale Release: %v", err)
	}
	if val, err := rdb.Get(ctx, key).Result(); err != nil || val != fresh {
		t.Fatalf("key must still belong to fresh holder: val=%q err=%v", val, err)
	}
}

func TestRedisLocker_UnreachableStore(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	l := lock.NewRedisLocker(rdb, zap.NewNop())
	ctx := context.Background()

	// и до, и после срабатывания breaker'а ответ один: хранилище недоступно
	for i := 0; i < 7; i++ {
		_, ok, err := l.Acquire(ctx, "booking:lock:x", time.Second)
		if ok {
			t.Fatal("unreachable store must never grant a lock")
		}
		if !lock.IsUnavailable(err) {
			t.Fatalf("attempt %d: expected ErrUnavailable, got %v", i, err)
		}
	}
}

func TestRedisLocker_CallerCancellationKeepsBreakerClosed(t *testing.T) {
	rdb := testutil.SetupTestRedis(t)
	l := lock.NewRedisLocker(rdb, zap.NewNop())
	key := lock.ResourceKey(uuid.New(), time.Now(), time.Now().Add(24*time.Hour))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 10; i++ {
		if _, ok, err := l.Acquire(cancelled, key, time.Second); ok || err == nil {
			t.Fatalf("attempt %d: cancelled Acquire must fail, ok=%v err=%v", i, ok, err)
		}
	}

	// Redis здоров, breaker должен пропускать запросы
	token, ok, err := l.Acquire(context.Background(), key, 10*time.Second)
	if err != nil || !ok {
		t.Fatalf("Acquire after cancelled callers: ok=%v err=%v", ok, err)
	}
	if err := l.Release(context.Background(), key, token); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestNoopLocker(t *testing.T) {
	l := lock.NewNoopLocker(zap.NewNop())
	token, ok, err := l.Acquire(context.Background(), "k", time.Second)
	if err != nil || !ok || !strings.HasPrefix(token, "noop-") {
		t.Fatalf("noop Acquire: token=%q ok=%v err=%v", token, ok, err)
	}
	if err := l.Release(context.Background(), "k", token); err != nil {
		t.Fatalf("noop Release: %v", err)
	}
}
