package state

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/ecodanctl/internal/energy"
	"codeberg.org/mutker/ecodanctl/internal/errors"
	"codeberg.org/mutker/ecodanctl/internal/logger"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRepositoryContract(t *testing.T, repo energy.Repository) {
	t.Helper()
	ctx := context.Background()

	_, err := repo.Get(ctx, "ecodan2_nrg_cons_tank")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, energy.ErrStateNotFound))

	first := energy.State{
		Stream:    "ecodan2_nrg_cons_tank",
		LastDate:  energy.Date{Year: 2023, Month: time.September, Day: 1},
		LastValue: 3.26,
		UpdatedAt: time.Date(2023, 9, 1, 12, 0, 30, 0, time.UTC),
	}
	require.NoError(t, repo.Upsert(ctx, first))

	got, err := repo.Get(ctx, first.Stream)
	require.NoError(t, err)
	assert.Equal(t, first.LastDate, got.LastDate)
	assert.Equal(t, first.LastValue, got.LastValue)
	assert.True(t, first.UpdatedAt.Equal(got.UpdatedAt))

	second := first
	second.LastDate = energy.Date{Year: 2023, Month: time.September, Day: 2}
	second.LastValue = 0.4
	require.NoError(t, repo.Upsert(ctx, second))
	require.NoError(t, repo.Upsert(ctx, energy.State{
		Stream:    "ecodan2_nrg_cons_house",
		LastDate:  first.LastDate,
		LastValue: 3.17,
	}))

	got, err = repo.Get(ctx, first.Stream)
	require.NoError(t, err)
	assert.Equal(t, second.LastDate, got.LastDate)
	assert.Equal(t, 0.4, got.LastValue)

	states, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "ecodan2_nrg_cons_house", states[0].Stream)
	assert.Equal(t, "ecodan2_nrg_cons_tank", states[1].Stream)
}

func TestSQLiteRepository(t *testing.T) {
	cfg := Config{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "state.db")}
	repo, err := Open(cfg, logger.Default())
	require.NoError(t, err)

	testRepositoryContract(t, repo)
	require.NoError(t, repo.Close())

	// state survives a reopen
	repo, err = Open(cfg, logger.Default())
	require.NoError(t, err)
	defer repo.Close()

	states, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, states, 2)
}

func TestBadgerRepository(t *testing.T) {
	repo, err := openBadger(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil), logger.Default())
	require.NoError(t, err)
	defer repo.Close()

	testRepositoryContract(t, repo)
}

func TestBadgerRepositoryOnDisk(t *testing.T) {
	repo, err := Open(Config{Driver: DriverBadger, Path: t.TempDir()}, nil)
	require.NoError(t, err)
	defer repo.Close()

	testRepositoryContract(t, repo)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	err := Config{Driver: "postgres", Path: "x"}.Validate()
	assert.True(t, errors.HasCode(err, ErrInvalidDriver))

	err = Config{Driver: DriverSQLite}.Validate()
	assert.True(t, errors.HasCode(err, ErrInvalidDBPath))

	assert.Equal(t, "/var/lib/ecodanctl/backups", DefaultConfig().backupDir())
}

func createLegacyDatabase(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
        CREATE TABLE energy_influx_state (
            stream TEXT PRIMARY KEY,
            last_date DATE,
            last_value REAL
        );
        INSERT INTO energy_influx_state VALUES ('ecodan2_nrg_prod_tank', '2023-09-01', 9.56);`)
	require.NoError(t, err)
}

func TestSQLiteMigratesLegacyDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.db")
	backups := filepath.Join(dir, "backups")
	createLegacyDatabase(t, path)

	repo, err := Open(Config{Driver: DriverSQLite, Path: path, BackupDir: backups}, nil)
	require.NoError(t, err)
	defer repo.Close()

	got, err := repo.Get(context.Background(), "ecodan2_nrg_prod_tank")
	require.NoError(t, err)
	assert.Equal(t, energy.Date{Year: 2023, Month: time.September, Day: 1}, got.LastDate)
	assert.Equal(t, 9.56, got.LastValue)
	assert.True(t, got.UpdatedAt.IsZero())

	entries, err := os.ReadDir(backups)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "state_v1_")

	db := repo.(*sqliteRepository).db
	version, err := GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)
}

func TestSQLiteRefusesNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	require.NoError(t, InitSchema(db, logger.Default()))
	_, err = db.Exec(`INSERT INTO schema_versions (version, applied_at) VALUES (?, datetime('now'))`, SchemaVersion+1)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(Config{Driver: DriverSQLite, Path: path}, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrSchemaTooNew))
}

func TestGetSchemaVersionEmptyDatabase(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer db.Close()

	version, err := GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, 0, version)
}
