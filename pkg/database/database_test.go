package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/class-schedule/pkg/config"
)

func TestOpenSQLiteAndMigrate(t *testing.T) {
	cfg := config.DatabaseConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "classes.db"),
	}

	db, err := Open(cfg)
	require.NoError(t, err)
	defer db.Close()

	version, err := Migrate(db, cfg.Driver)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	// second run is a no-op
	version, err = Migrate(db, cfg.Driver)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM classes"))
	assert.Zero(t, count)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "mysql"})
	require.Error(t, err)
}

func TestMigrationDir(t *testing.T) {
	dir, err := migrationDir(config.DriverPostgres)
	require.NoError(t, err)
	assert.Equal(t, "migrations/postgres", dir)

	_, err = migrationDir("mysql")
	assert.Error(t, err)
}
