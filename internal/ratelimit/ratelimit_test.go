package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClockedStore() (*MemoryStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := NewMemoryStore()
	s.now = clock.Now
	return s, clock
}

func TestNew_RejectsBadArguments(t *testing.T) {
	_, err := New(NewMemoryStore(), 0, time.Minute)
	assert.Error(t, err)
	_, err = New(NewMemoryStore(), 10, 0)
	assert.Error(t, err)
}

func TestLimiter_AdmitsUpToLimit(t *testing.T) {
	store, _ := newClockedStore()
	l, err := New(store, 100, 15*time.Minute)
	require.NoError(t, err)

	ctx := context.Background()
	var allowed, rejected int
	for i := 1; i <= 150; i++ {
		res, err := l.Allow(ctx, "203.0.113.7")
		require.NoError(t, err)
		if res.Allowed {
			allowed++
			assert.Equal(t, 100-i, res.Remaining)
		} else {
			rejected++
			assert.Equal(t, 0, res.Remaining)
		}
	}
	assert.Equal(t, 100, allowed)
	assert.Equal(t, 50, rejected)
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	store, _ := newClockedStore()
	l, err := New(store, 1, time.Minute)
	require.NoError(t, err)

	ctx := context.Background()
	res, _ := l.Allow(ctx, "a")
	assert.True(t, res.Allowed)
	res, _ = l.Allow(ctx, "a")
	assert.False(t, res.Allowed)
	res, _ = l.Allow(ctx, "b")
	assert.True(t, res.Allowed)
}

func TestMemoryStore_WindowRollsOver(t *testing.T) {
	store, clock := newClockedStore()
	l, err := New(store, 2, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := l.Allow(ctx, "k")
		require.NoError(t, err)
	}
	res, _ := l.Allow(ctx, "k")
	assert.False(t, res.Allowed)
	assert.Equal(t, 30*time.Second, res.RetryAfter(clock.Now().Add(30*time.Second)))

	clock.Advance(time.Minute)
	res, _ = l.Allow(ctx, "k")
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)
}

func TestMemoryStore_Cleanup(t *testing.T) {
	store, clock := newClockedStore()
	ctx := context.Background()
	_, _, _ = store.Increment(ctx, "old", time.Minute)
	clock.Advance(30 * time.Second)
	_, _, _ = store.Increment(ctx, "new", time.Minute)
	require.Equal(t, 2, store.Len())

	clock.Advance(45 * time.Second)
	store.Cleanup()
	assert.Equal(t, 1, store.Len())
}

func TestResult_RetryAfterNeverNegative(t *testing.T) {
	r := Result{ResetAt: time.Unix(100, 0)}
	assert.Equal(t, time.Duration(0), r.RetryAfter(time.Unix(200, 0)))
}
