package session_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"castplayd/internal/cast"
	"castplayd/internal/config"
	"castplayd/internal/logger"
	"castplayd/internal/render"
	"castplayd/internal/session"
	"castplayd/internal/store"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demoCast = `{"version":2,"width":80,"height":24,"timestamp":1700000000}
[0.1,"o","$ ls\r\n"]
[0.6,"o","file.txt\r\n"]
[1.2,"o","$ "]`

func newManager(t *testing.T) (*session.SessionManager, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	require.NoError(t, st.Put(context.Background(), "demo", []byte(demoCast)))

	sm := session.NewManager(logger.Nop(), st, session.Options{
		Player: config.Default().Player,
		Clock:  clockwork.NewFakeClock(),
	})
	t.Cleanup(sm.Stop)
	return sm, st
}

func TestSessionManager_OpenAndClose(t *testing.T) {
	sm, _ := newManager(t)
	ctx := context.Background()

	a, err := sm.Open(ctx, "demo", render.NewVT(80, 24))
	require.NoError(t, err)
	b, err := sm.Open(ctx, "demo", render.NewVT(80, 24))
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, sm.Count())
	assert.Equal(t, map[string]struct{}{"demo": {}}, sm.ActiveRecordingIDs())

	got, found := sm.Get(a.ID)
	require.True(t, found)
	assert.Same(t, a, got)

	a.Player.AddBookmark(1, "only in a")
	assert.Empty(t, b.Player.Bookmark(1), "sessions edit their own copy")

	require.NoError(t, sm.Close(a.ID))
	assert.ErrorIs(t, sm.Close(a.ID), session.ErrSessionNotFound)
	_, found = sm.Get(a.ID)
	assert.False(t, found)
	assert.Equal(t, 1, sm.Count())
}

func TestSessionManager_LoadUsesCache(t *testing.T) {
	sm, st := newManager(t)
	ctx := context.Background()

	first, err := sm.Load(ctx, "demo")
	require.NoError(t, err)
	require.NoError(t, first.Err)
	assert.Equal(t, 3, first.Len())

	require.NoError(t, st.Put(ctx, "demo", []byte("changed behind our back")))
	second, err := sm.Load(ctx, "demo")
	require.NoError(t, err)
	assert.Same(t, first, second)

	sm.Invalidate("demo")
	third, err := sm.Load(ctx, "demo")
	require.NoError(t, err)
	assert.ErrorIs(t, third.Err, cast.ErrMalformedHeader)

	_, err = sm.Load(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessionManager_CommitWritesBack(t *testing.T) {
	sm, st := newManager(t)
	ctx := context.Background()

	s, err := sm.Open(ctx, "demo", render.NewVT(80, 24))
	require.NoError(t, err)
	require.NoError(t, s.Player.Init(io.Discard))

	s.Player.JumpToIndex(2)
	s.Player.AddBookmarkAtCursor("prompt returns")
	require.NoError(t, s.Player.CommitBookmarks())

	data, err := st.Get(ctx, "demo")
	require.NoError(t, err)
	assert.Contains(t, string(data), `[1.2,"b","prompt returns"]`)

	rec, err := sm.Load(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, []string{"prompt returns"}, rec.Bookmark(2), "cache was refreshed")
}

func TestSessionManager_SaveAndDelete(t *testing.T) {
	sm, st := newManager(t)
	ctx := context.Background()

	require.NoError(t, sm.Save(ctx, "second", []byte(demoCast)))
	_, err := sm.Load(ctx, "second")
	require.NoError(t, err)

	require.NoError(t, sm.Delete(ctx, "second"))
	_, err = st.Get(ctx, "second")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = sm.Load(ctx, "second")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessionManager_StopClosesSessions(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.Put(context.Background(), "demo", []byte(demoCast)))
	sm := session.NewManager(nil, st, session.Options{Clock: clockwork.NewFakeClock()})
	sm.Start()

	_, err := sm.Open(context.Background(), "demo", render.NewVT(80, 24))
	require.NoError(t, err)
	sm.Stop()
	assert.Equal(t, 0, sm.Count())
}

// failingStore rejects every write.
type failingStore struct {
	*store.MemoryStore
}

var errDiskFull = errors.New("disk full")

func (failingStore) Put(context.Context, string, []byte) error { return errDiskFull }

func TestSessionManager_CommitReportsSaveFailure(t *testing.T) {
	mem := store.NewMemoryStore()
	require.NoError(t, mem.Put(context.Background(), "demo", []byte(demoCast)))
	sm := session.NewManager(logger.Nop(), failingStore{mem}, session.Options{Clock: clockwork.NewFakeClock()})
	t.Cleanup(sm.Stop)

	s, err := sm.Open(context.Background(), "demo", render.NewVT(80, 24))
	require.NoError(t, err)
	require.NoError(t, s.Player.Init(io.Discard))

	s.Player.AddBookmark(1, "lost")
	err = s.Player.CommitBookmarks()
	assert.ErrorIs(t, err, errDiskFull)

	data, err := mem.Get(context.Background(), "demo")
	require.NoError(t, err)
	assert.NotContains(t, string(data), "lost")
}
