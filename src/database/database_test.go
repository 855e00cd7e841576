package database

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/nas-ai/uploads-api/src/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestNewJournalConnection_SQLite(t *testing.T) {
	cfg := &config.Config{
		JournalDriver:     DriverSQLite,
		JournalDSN:        filepath.Join(t.TempDir(), "journal.db"),
		DBMaxOpenConns:    4,
		DBMaxIdleConns:    2,
		DBConnMaxLifetime: "not-a-duration",
	}

	db, err := NewJournalConnection(cfg, testLogger())
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, DriverSQLite, db.Driver())
	assert.Equal(t, DriverSQLite, db.X().DriverName())
	assert.NoError(t, db.HealthCheck(context.Background()))
}

func TestNewJournalConnection_RejectsUnknownDriver(t *testing.T) {
	_, err := NewJournalConnection(&config.Config{JournalDriver: "mysql", JournalDSN: "x"}, testLogger())
	assert.Error(t, err)
}

func TestNewTestDatabase(t *testing.T) {
	db, err := NewTestDatabase(testLogger())
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE t (v TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO t (v) VALUES ('x')`)
	require.NoError(t, err)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestNewRedisConnection(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := NewRedisConnection(&config.Config{RedisURL: "redis://" + mr.Addr() + "/0"}, testLogger())
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.HealthCheck(context.Background()))
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	assert.True(t, mr.Exists("k"))
}

func TestNewRedisConnection_FailFast(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedisConnection(&config.Config{RedisURL: "redis://" + addr}, testLogger())
	assert.Error(t, err)

	_, err = NewRedisConnection(&config.Config{RedisURL: "://bad"}, testLogger())
	assert.Error(t, err)
}
