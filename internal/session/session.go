package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"castplayd/internal/cache"
	"castplayd/internal/cast"
	"castplayd/internal/config"
	"castplayd/internal/logger"
	"castplayd/internal/player"
	"castplayd/internal/store"
	"castplayd/internal/telemetry"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// ErrSessionNotFound is returned for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// PlaybackSession is one viewer playing one recording.
type PlaybackSession struct {
	ID          string
	RecordingID string
	Player      *player.Player
	CreatedAt   time.Time
}

// Options configure a Manager.
type Options struct {
	Player           config.PlayerConfig
	EvictionInterval time.Duration
	Clock            clockwork.Clock
	Metrics          *telemetry.Metrics
}

// SessionManager loads recordings through the cache and tracks all open playback sessions.
type SessionManager struct {
	mutex    sync.RWMutex
	sessions map[string]*PlaybackSession
	logger   logger.Logger
	store    store.Store
	recCache *cache.RecordingCache
	opts     Options
}

// NewManager creates a new session manager.
func NewManager(log logger.Logger, st store.Store, opts Options) *SessionManager {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Player.MaxFrameDelay <= 0 {
		opts.Player.MaxFrameDelay = cast.DefaultMaxFrameDelay
	}
	sm := &SessionManager{
		sessions: make(map[string]*PlaybackSession),
		logger:   logger.OrNop(log),
		store:    st,
		opts:     opts,
	}
	sm.recCache = cache.New(sm.logger, sm.ActiveRecordingIDs, opts.EvictionInterval, opts.Clock)
	return sm
}

// Start begins the background workers for the manager's components.
func (sm *SessionManager) Start() {
	sm.recCache.Start()
}

// Stop closes all sessions and background workers.
func (sm *SessionManager) Stop() {
	sm.logger.Infof("Stopping session manager and all active sessions...")
	sm.mutex.Lock()
	sessions := sm.sessions
	sm.sessions = make(map[string]*PlaybackSession)
	sm.mutex.Unlock()

	for _, s := range sessions {
		sm.cleanup(s)
	}
	sm.recCache.Stop()
	sm.logger.Infof("Session manager stopped.")
}

// Store returns the backing store.
func (sm *SessionManager) Store() store.Store { return sm.store }

// Load returns the parsed recording for id, from the cache when possible. The result is shared and
// must not be edited; sessions get their own clone.
func (sm *SessionManager) Load(ctx context.Context, recordingID string) (*cast.Recording, error) {
	if rec, found := sm.recCache.Get(recordingID); found {
		return rec, nil
	}

	data, err := sm.store.Get(ctx, recordingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load recording %s: %w", recordingID, err)
	}

	rec := cast.Parse(string(data), cast.ParseOptions{MaxFrameDelay: sm.opts.Player.MaxFrameDelay})
	if rec.Err != nil {
		sm.opts.Metrics.ParseFailed()
		sm.logger.Warnf("Recording %s is not playable: %v", recordingID, rec.Err)
	}
	sm.recCache.Set(recordingID, rec)
	return rec, nil
}

// Save stores new content for a recording and drops any stale parse.
func (sm *SessionManager) Save(ctx context.Context, recordingID string, data []byte) error {
	if err := sm.store.Put(ctx, recordingID, data); err != nil {
		return err
	}
	sm.recCache.Invalidate(recordingID)
	return nil
}

// Delete removes a recording from the store and the cache.
func (sm *SessionManager) Delete(ctx context.Context, recordingID string) error {
	if err := sm.store.Delete(ctx, recordingID); err != nil {
		return err
	}
	sm.recCache.Invalidate(recordingID)
	return nil
}

// Invalidate drops the cached parse of a recording that changed outside the manager.
func (sm *SessionManager) Invalidate(recordingID string) {
	sm.recCache.Invalidate(recordingID)
}

// Open creates a session playing recordingID on renderer. Committed bookmark edits are written
// back to the store.
func (sm *SessionManager) Open(ctx context.Context, recordingID string, renderer player.Renderer) (*PlaybackSession, error) {
	rec, err := sm.Load(ctx, recordingID)
	if err != nil {
		return nil, err
	}

	s := &PlaybackSession{
		ID:          uuid.NewString(),
		RecordingID: recordingID,
		CreatedAt:   sm.opts.Clock.Now(),
	}
	log := sm.logger
	if sl, ok := log.(interface {
		With(args ...any) logger.Logger
	}); ok {
		log = sl.With("session", s.ID, "recording", recordingID)
	}

	s.Player = player.New(rec.Clone(), renderer, log, player.Options{
		MinRate:       sm.opts.Player.MinRate,
		MaxRate:       sm.opts.Player.MaxRate,
		DefaultRate:   sm.opts.Player.DefaultRate,
		MaxFrameDelay: sm.opts.Player.MaxFrameDelay,
		Clock:         sm.opts.Clock,
		Metrics:       sm.opts.Metrics,
		OnContentUpdate: func(content []byte) error {
			if err := sm.Save(context.Background(), recordingID, content); err != nil {
				log.Errorf("Failed to save bookmarks for recording %s: %v", recordingID, err)
				return err
			}
			log.Infof("Saved bookmarks for recording %s", recordingID)
			return nil
		},
	})

	sm.mutex.Lock()
	sm.sessions[s.ID] = s
	sm.mutex.Unlock()

	sm.logger.Infof("Opened session %s for recording %s", s.ID, recordingID)
	return s, nil
}

// Get retrieves an open session.
func (sm *SessionManager) Get(sessionID string) (*PlaybackSession, bool) {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	s, found := sm.sessions[sessionID]
	return s, found
}

// Close stops a session's playback and forgets it.
func (sm *SessionManager) Close(sessionID string) error {
	sm.mutex.Lock()
	s, found := sm.sessions[sessionID]
	delete(sm.sessions, sessionID)
	sm.mutex.Unlock()

	if !found {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	sm.cleanup(s)
	return nil
}

func (sm *SessionManager) cleanup(s *PlaybackSession) {
	if err := s.Player.Cleanup(); err != nil {
		sm.logger.Warnf("Cleanup of session %s failed: %v", s.ID, err)
	}
	sm.logger.Infof("Closed session %s", s.ID)
}

// Count returns the number of open sessions.
func (sm *SessionManager) Count() int {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return len(sm.sessions)
}

// ActiveRecordingIDs returns the set of recordings open in at least one session.
func (sm *SessionManager) ActiveRecordingIDs() map[string]struct{} {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	ids := make(map[string]struct{}, len(sm.sessions))
	for _, s := range sm.sessions {
		ids[s.RecordingID] = struct{}{}
	}
	return ids
}
