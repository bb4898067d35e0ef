package cache_test

import (
	"sync"
	"testing"
	"time"

	"castplayd/internal/cache"
	"castplayd/internal/cast"
	"castplayd/internal/logger"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parsed(t *testing.T) *cast.Recording {
	t.Helper()
	rec := cast.Parse("{\"version\":2,\"width\":80,\"height\":24}\n[0,\"o\",\"x\"]", cast.ParseOptions{})
	require.NoError(t, rec.Err)
	return rec
}

// TestRecordingCache_SetAndGet verifies the basic Set, Get and Invalidate operations.
func TestRecordingCache_SetAndGet(t *testing.T) {
	rc := cache.New(logger.Nop(), nil, time.Minute, clockwork.NewFakeClock())

	_, found := rc.Get("demo")
	assert.False(t, found)

	rec := parsed(t)
	rc.Set("demo", rec)
	got, found := rc.Get("demo")
	require.True(t, found)
	assert.Same(t, rec, got)
	assert.Equal(t, 1, rc.Len())

	rc.Invalidate("demo")
	rc.Invalidate("demo")
	_, found = rc.Get("demo")
	assert.False(t, found)
}

// TestRecordingCache_Eviction verifies that only idle, inactive recordings are evicted.
func TestRecordingCache_Eviction(t *testing.T) {
	var mu sync.Mutex
	active := map[string]struct{}{"open": {}}
	provider := func() map[string]struct{} {
		mu.Lock()
		defer mu.Unlock()
		out := make(map[string]struct{}, len(active))
		for k := range active {
			out[k] = struct{}{}
		}
		return out
	}

	clock := clockwork.NewFakeClock()
	rc := cache.New(logger.Nop(), provider, time.Minute, clock)
	rc.Set("open", parsed(t))
	rc.Set("idle", parsed(t))

	rc.RunEviction()
	assert.Equal(t, 2, rc.Len(), "recently used entries survive")

	clock.Advance(2 * time.Minute)
	rc.Set("fresh", parsed(t))
	rc.RunEviction()

	_, found := rc.Get("open")
	assert.True(t, found, "active recordings are kept")
	_, found = rc.Get("fresh")
	assert.True(t, found)
	_, found = rc.Get("idle")
	assert.False(t, found, "idle inactive recordings are evicted")

	mu.Lock()
	delete(active, "open")
	mu.Unlock()
	clock.Advance(2 * time.Minute)
	rc.RunEviction()
	assert.Equal(t, 0, rc.Len())
}

func TestRecordingCache_Worker(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rc := cache.New(logger.Nop(), nil, time.Minute, clock)
	rc.Set("stale", parsed(t))

	rc.Start()
	defer rc.Stop()

	clock.BlockUntil(1)
	clock.Advance(2 * time.Minute)
	assert.Eventually(t, func() bool { return rc.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}
