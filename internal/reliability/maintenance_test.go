package reliability

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantcoin/quantz/internal/database"
)

func setupTestDatabases(t *testing.T) map[string]*database.DB {
	dir := t.TempDir()
	databases := map[string]*database.DB{}
	for _, name := range []string{"ledger", "cache"} {
		db, err := database.New(database.Config{
			Path:    filepath.Join(dir, name+".db"),
			Profile: database.ProfileStandard,
			Name:    name,
		})
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })

		_, err = db.Exec("CREATE TABLE items (id INTEGER PRIMARY KEY, v TEXT)")
		require.NoError(t, err)
		_, err = db.Exec("INSERT INTO items (v) VALUES ('a'), ('b')")
		require.NoError(t, err)

		databases[name] = db
	}
	return databases
}

func TestCheckpointAll(t *testing.T) {
	databases := setupTestDatabases(t)
	svc := NewMaintenanceService(databases, zerolog.Nop())

	require.NoError(t, svc.CheckpointAll())

	// Databases stay fully usable after the checkpoint
	for name, db := range databases {
		var count int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM items").Scan(&count), name)
		assert.Equal(t, 2, count, name)
	}
}

func TestRunDaily(t *testing.T) {
	databases := setupTestDatabases(t)
	svc := NewMaintenanceService(databases, zerolog.Nop())

	require.NoError(t, svc.RunDaily(context.Background()))
}
