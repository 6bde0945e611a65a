package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T, quota int) *SQLiteStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "store", "kv.db")
	s, err := OpenSQLite(context.Background(), path, quota)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_SetGetRemove(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t, 0)

	_, err := s.Get(ctx, "bookCache_v1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "bookCache_v1", `{"a":1}`))
	require.NoError(t, s.Set(ctx, "bookCache_v1", `{"a":2}`))

	v, err := s.Get(ctx, "bookCache_v1")
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, v)

	require.NoError(t, s.Remove(ctx, "bookCache_v1"))
	require.NoError(t, s.Remove(ctx, "bookCache_v1"))

	_, err = s.Get(ctx, "bookCache_v1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	s, err := OpenSQLite(ctx, path, 0)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", "v"))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path, 0)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestSQLiteStore_Quota(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t, 16)

	require.NoError(t, s.Set(ctx, "a", "1234567"))
	assert.ErrorIs(t, s.Set(ctx, "b", "123456789"), ErrQuotaExceeded)

	// replacing an existing value only counts the new one
	require.NoError(t, s.Set(ctx, "a", "12345678901234"))
}

func TestSQLiteStore_DiskFullIsQuota(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO kv").
		WithArgs("k", "v").
		WillReturnError(errors.New("database or disk is full (13)"))
	mock.ExpectRollback()

	s := NewSQLiteStore(db, 0)
	err = s.Set(context.Background(), "k", "v")
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_QuotaQueryUsesTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("k").
		WillReturnRows(sqlmock.NewRows([]string{"used"}).AddRow(int64(90)))
	mock.ExpectRollback()

	s := NewSQLiteStore(db, 100)
	err = s.Set(context.Background(), "k", "0123456789")
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_ClosedIsUnavailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectQuery("SELECT value FROM kv").
		WithArgs("k").
		WillReturnError(errors.New("driver: bad connection"))

	s := NewSQLiteStore(db, 0)
	_, err = s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrUnavailable)

	db.Close()
	assert.ErrorIs(t, s.Remove(context.Background(), "k"), ErrUnavailable)
}
