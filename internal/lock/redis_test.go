package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisLocker(t *testing.T, ttl time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisLocker(rdb, ttl), mr
}

func TestRedisLocker_SecondHolderWaitsForRelease(t *testing.T) {
	l, mr := newRedisLocker(t, 5*time.Second)
	key := "attendance:u1:2024-03-04"

	unlock, err := l.Lock(context.Background(), key)
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if !mr.Exists("lock:" + key) {
		t.Fatalf("expected the lock key to be set")
	}

	acquired := make(chan func(), 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		u, err := l.Lock(ctx, key)
		if err != nil {
			t.Errorf("second lock: %v", err)
			acquired <- nil
			return
		}
		acquired <- u
	}()

	select {
	case <-acquired:
		t.Fatalf("second holder got the lock while the first still held it")
	case <-time.After(100 * time.Millisecond):
	}

	unlock()

	select {
	case u := <-acquired:
		if u == nil {
			t.Fatalf("second holder failed")
		}
		u()
	case <-time.After(2 * time.Second):
		t.Fatalf("second holder never got the lock")
	}

	if mr.Exists("lock:" + key) {
		t.Fatalf("expected the key to be released")
	}
}

func TestRedisLocker_StaleUnlockKeepsNewHolder(t *testing.T) {
	l, mr := newRedisLocker(t, time.Second)
	key := "attendance:u1:2024-03-04"

	staleUnlock, err := l.Lock(context.Background(), key)
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}

	// the first holder stalls past its ttl
	mr.FastForward(2 * time.Second)

	unlock, err := l.Lock(context.Background(), key)
	if err != nil {
		t.Fatalf("second lock after expiry: %v", err)
	}
	owner, _ := mr.Get("lock:" + key)

	staleUnlock()

	got, err := mr.Get("lock:" + key)
	if err != nil || got != owner {
		t.Fatalf("stale unlock removed the new holder's key: %q %v", got, err)
	}

	unlock()
	if mr.Exists("lock:" + key) {
		t.Fatalf("expected the holder's unlock to remove the key")
	}
}

func TestRedisLocker_WaitBoundedByContext(t *testing.T) {
	l, _ := newRedisLocker(t, 5*time.Second)

	unlock, _ := l.Lock(context.Background(), "k")
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := l.Lock(ctx, "k"); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("lock wait ran %s past its context", elapsed)
	}

	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	if _, err := l.Lock(cancelled, "k"); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired for a cancelled context, got %v", err)
	}
}

func TestRedisLocker_BackendErrorIsReturned(t *testing.T) {
	l, mr := newRedisLocker(t, time.Second)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := l.Lock(ctx, "k")
	if err == nil || errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected the redis error, got %v", err)
	}
}
