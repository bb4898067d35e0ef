package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"castplayd/internal/config"
	"castplayd/internal/logger"
	"castplayd/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCast = `{"version":2,"width":80,"height":24}
[0.5,"o","hello"]`

// exerciseStore runs the read/write behavior every writable backend shares.
func exerciseStore(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "missing"), store.ErrNotFound)

	require.NoError(t, s.Put(ctx, "b-rec", []byte(sampleCast)))
	require.NoError(t, s.Put(ctx, "a-rec", []byte("first")))
	require.NoError(t, s.Put(ctx, "a-rec", []byte("second")))

	got, err := s.Get(ctx, "a-rec")
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-rec", "b-rec"}, ids)

	require.NoError(t, s.Delete(ctx, "a-rec"))
	_, err = s.Get(ctx, "a-rec")
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, s.Put(ctx, "../escape", []byte("x")), store.ErrInvalidID)
}

func TestValidID(t *testing.T) {
	valid := []string{"demo", "demo.v2", "a_b-c", uuid.NewString()}
	for _, id := range valid {
		assert.True(t, store.ValidID(id), id)
	}
	invalid := []string{"", ".hidden", "../etc/passwd", "a/b", "has space", string(make([]byte, 200))}
	for _, id := range invalid {
		assert.False(t, store.ValidID(id), id)
	}

	id := store.NewID()
	assert.True(t, store.ValidID(id))
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, store.NewMemoryStore())
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := store.Open(ctx, config.StoreConfig{Backend: config.BackendMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryStore{}, s)

	dir := filepath.Join(t.TempDir(), "recordings")
	s, err = store.Open(ctx, config.StoreConfig{
		Backend: config.BackendFile,
		File:    config.FileStoreConfig{Dir: dir},
	}, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, &store.FileStore{}, s)
	assert.DirExists(t, dir)

	s, err = store.Open(ctx, config.StoreConfig{
		Backend: config.BackendSQLite,
		SQLite:  config.SQLiteStoreConfig{Path: filepath.Join(t.TempDir(), "castplay.db")},
	}, nil)
	require.NoError(t, err)
	assert.IsType(t, &store.SQLiteStore{}, s)
	require.NoError(t, s.Close())

	s, err = store.Open(ctx, config.StoreConfig{
		Backend: config.BackendHTTP,
		HTTP:    config.HTTPStoreConfig{BaseURL: "http://origin.invalid"},
	}, nil)
	require.NoError(t, err)
	assert.IsType(t, &store.HTTPStore{}, s)

	_, err = store.Open(ctx, config.StoreConfig{Backend: "tape"}, nil)
	assert.ErrorContains(t, err, "unknown store backend")
}
