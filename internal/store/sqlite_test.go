package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"castplayd/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	s, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "castplay.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	exerciseStore(t, s)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "castplay.db")

	s, err := store.OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "kept", []byte(sampleCast)))
	require.NoError(t, s.Close())

	s, err = store.OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	got, err := s.Get(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, sampleCast, string(got))
}

func newMockedSQLiteStore(t *testing.T) (*store.SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS recordings").WillReturnResult(sqlmock.NewResult(0, 0))
	s, err := store.NewSQLiteStore(context.Background(), db)
	require.NoError(t, err)
	return s, mock
}

func TestSQLiteStore_MigrationFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS recordings").WillReturnError(errors.New("disk I/O error"))
	_, err = store.NewSQLiteStore(context.Background(), db)
	assert.ErrorContains(t, err, "failed to migrate recordings table")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_QueryErrors(t *testing.T) {
	ctx := context.Background()
	s, mock := newMockedSQLiteStore(t)
	boom := errors.New("database is locked")

	mock.ExpectQuery("SELECT content FROM recordings").WithArgs("demo").WillReturnError(boom)
	_, err := s.Get(ctx, "demo")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, store.ErrNotFound)

	mock.ExpectExec("INSERT INTO recordings").
		WithArgs("demo", []byte("data"), sqlmock.AnyArg()).
		WillReturnError(boom)
	assert.ErrorIs(t, s.Put(ctx, "demo", []byte("data")), boom)

	mock.ExpectQuery("SELECT id FROM recordings").WillReturnError(boom)
	_, err = s.List(ctx)
	assert.ErrorIs(t, err, boom)

	mock.ExpectExec("DELETE FROM recordings").WithArgs("demo").WillReturnError(boom)
	assert.ErrorIs(t, s.Delete(ctx, "demo"), boom)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_ListRows(t *testing.T) {
	s, mock := newMockedSQLiteStore(t)

	rows := sqlmock.NewRows([]string{"id"}).AddRow("a").AddRow("b")
	mock.ExpectQuery("SELECT id FROM recordings ORDER BY id").WillReturnRows(rows)

	ids, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}
