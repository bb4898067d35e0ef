package cache

import (
	"context"
	"sync"
	"time"

	"castplayd/internal/cast"
	"castplayd/internal/logger"

	"github.com/jonboulle/clockwork"
)

// ActiveRecordingsProvider returns the ids of all recordings currently open in a session.
type ActiveRecordingsProvider func() map[string]struct{}

type entry struct {
	rec      *cast.Recording
	lastUsed time.Time
}

// RecordingCache keeps parsed recordings in memory so sessions on the same recording share one
// parse. Callers must Clone a cached recording before editing it.
type RecordingCache struct {
	mutex                    sync.RWMutex
	cache                    map[string]*entry
	logger                   logger.Logger
	activeRecordingsProvider ActiveRecordingsProvider
	clock                    clockwork.Clock
	interval                 time.Duration

	// Control
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a cache. Every interval, entries that are neither open in a session nor used
// within the last interval are evicted.
func New(log logger.Logger, provider ActiveRecordingsProvider, interval time.Duration, clock clockwork.Clock) *RecordingCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if provider == nil {
		provider = func() map[string]struct{} { return nil }
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RecordingCache{
		cache:                    make(map[string]*entry),
		logger:                   logger.OrNop(log),
		activeRecordingsProvider: provider,
		clock:                    clock,
		interval:                 interval,
		ctx:                      ctx,
		cancel:                   cancel,
	}
}

// Start begins the background eviction worker.
func (rc *RecordingCache) Start() {
	rc.logger.Infof("Starting recording cache eviction worker...")
	go rc.evictionWorker()
}

// Stop shuts down the eviction worker.
func (rc *RecordingCache) Stop() {
	rc.logger.Infof("Stopping recording cache eviction worker...")
	rc.cancel()
}

// Set adds a parsed recording to the cache.
func (rc *RecordingCache) Set(id string, rec *cast.Recording) {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()
	rc.cache[id] = &entry{rec: rec, lastUsed: rc.clock.Now()}
	rc.logger.Debugf("Cached recording: %s, %d frames", id, rec.Len())
}

// Get retrieves a recording from the cache.
func (rc *RecordingCache) Get(id string) (*cast.Recording, bool) {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()
	e, found := rc.cache[id]
	if !found {
		return nil, false
	}
	e.lastUsed = rc.clock.Now()
	return e.rec, true
}

// Invalidate drops id, typically after its content changed in the store.
func (rc *RecordingCache) Invalidate(id string) {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()
	if _, found := rc.cache[id]; found {
		delete(rc.cache, id)
		rc.logger.Debugf("Invalidated cached recording: %s", id)
	}
}

// Len returns the number of cached recordings.
func (rc *RecordingCache) Len() int {
	rc.mutex.RLock()
	defer rc.mutex.RUnlock()
	return len(rc.cache)
}

func (rc *RecordingCache) evictionWorker() {
	ticker := rc.clock.NewTicker(rc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-rc.ctx.Done():
			rc.logger.Infof("Eviction worker stopped.")
			return
		case <-ticker.Chan():
			rc.RunEviction()
		}
	}
}

// RunEviction performs one eviction pass.
func (rc *RecordingCache) RunEviction() {
	rc.logger.Debugf("Running cache eviction...")
	activeIDs := rc.activeRecordingsProvider()
	cutoff := rc.clock.Now().Add(-rc.interval)

	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	evictedCount := 0
	for id, e := range rc.cache {
		if _, isActive := activeIDs[id]; isActive {
			continue
		}
		if e.lastUsed.After(cutoff) {
			continue
		}
		delete(rc.cache, id)
		evictedCount++
	}

	if evictedCount > 0 {
		rc.logger.Infof("Evicted %d recordings from cache. Current cache size: %d recordings.", evictedCount, len(rc.cache))
	} else {
		rc.logger.Debugf("No recordings to evict. Current cache size: %d recordings.", len(rc.cache))
	}
}
