package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type probe struct {
	ID   uint
	Name string
}

func TestNewGormDB_SQLiteMemory(t *testing.T) {
	gdb, err := NewGormDB(GormConfig{Type: DatabaseTypeSQLite, SQLitePath: ":memory:", Tracing: true})
	require.NoError(t, err)
	defer func() { _ = gdb.Close() }()

	assert.Equal(t, DatabaseTypeSQLite, gdb.DatabaseType())
	require.NoError(t, gdb.Ping(context.Background()))
	require.NoError(t, gdb.AutoMigrate(&probe{}))
	require.NoError(t, gdb.DB().Create(&probe{Name: "x"}).Error)

	var count int64
	require.NoError(t, gdb.DB().Model(&probe{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestNewGormDB_UnsupportedType(t *testing.T) {
	_, err := NewGormDB(GormConfig{Type: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database type")
}
