package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func TestOpen_SQLiteMigrateAndPing(t *testing.T) {
	db, err := Open(Options{Driver: DriverSQLite, DSN: "file::memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, Migrate(db, &widget{}))
	require.NoError(t, db.Create(&widget{Name: "a"}).Error)
	assert.NoError(t, Ping(context.Background(), db))
}

func TestPing_CanceledContext(t *testing.T) {
	db, err := Open(Options{Driver: DriverSQLite, DSN: "file::memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Ping(ctx, db), context.Canceled)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(Options{Driver: "mongo"})
	assert.Error(t, err)
}
