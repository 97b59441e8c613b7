package storage

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"socialfeed/internal/config"
)

// exerciseStorage runs the behaviour every backend must share.
func exerciseStorage(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "token")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "token", "abc"))
	require.NoError(t, s.Set(ctx, "user", `{"id":"1","username":"jane"}`))

	v, err := s.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	require.NoError(t, s.Set(ctx, "token", "def"))
	v, err = s.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "def", v)

	require.NoError(t, s.Remove(ctx, "token", "user", "never-set"))
	_, err = s.Get(ctx, "token")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, "user")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Remove(ctx))
}

func TestFileStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "storage.json")
	s, err := NewFileStorage(path)
	require.NoError(t, err)
	exerciseStorage(t, s)
}

func TestFileStorage_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	ctx := context.Background()

	s, err := NewFileStorage(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "refreshToken", "r-1"))
	require.NoError(t, s.Close())

	reopened, err := NewFileStorage(path)
	require.NoError(t, err)
	v, err := reopened.Get(ctx, "refreshToken")
	require.NoError(t, err)
	assert.Equal(t, "r-1", v)
}

func TestSQLStorage_SQLite(t *testing.T) {
	s, err := OpenSQL(context.Background(), config.StorageSQLite, filepath.Join(t.TempDir(), "storage.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	exerciseStorage(t, s)
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

func TestSQLStorage_PostgresGet(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewSQLStorage(db, config.StoragePostgres)

	rows := sqlmock.NewRows([]string{"key", "value", "updated_at"}).
		AddRow("token", "abc", time.Now().UTC())
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "local_storage_items" WHERE key = $1 LIMIT $2`)).
		WithArgs("token", 1).
		WillReturnRows(rows)

	v, err := s.Get(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "local_storage_items" WHERE key = $1 LIMIT $2`)).
		WithArgs("user", 1).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value", "updated_at"}))

	_, err = s.Get(context.Background(), "user")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStorage_PostgresRemove(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewSQLStorage(db, config.StoragePostgres)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "local_storage_items" WHERE key IN ($1,$2)`)).
		WithArgs("token", "user").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, s.Remove(context.Background(), "token", "user"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStorage(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	s, err := OpenRedis(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	exerciseStorage(t, s)
}

func TestRedisStorage_UsesPrefix(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	s := NewRedisStorage(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:")
	require.NoError(t, s.Set(context.Background(), "token", "abc"))

	got, err := mr.Get("test:token")
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
}

func TestOpenRedis_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = OpenRedis(context.Background(), addr)
	assert.Error(t, err)
}

func TestOpen_SelectsBackend(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(context.Background(), &config.Config{StorageDriver: config.StorageFile, StoragePath: filepath.Join(dir, "s.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileStorage{}, s)

	s, err = Open(context.Background(), &config.Config{StorageDriver: config.StorageSQLite, StoragePath: filepath.Join(dir, "s.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLStorage{}, s)
	require.NoError(t, s.Close())

	_, err = Open(context.Background(), &config.Config{StorageDriver: "etcd"})
	assert.Error(t, err)
}
