package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"codeberg.org/mutker/ecodanctl/internal/errors"
	"codeberg.org/mutker/ecodanctl/internal/logger"
)

// migrations[v] upgrades a database from version v to v+1.
var migrations = map[int]string{
	1: `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   ALTER TABLE energy_influx_state ADD COLUMN updated_at TEXT;`,
}

func backupDatabase(db *sql.DB, dir string, version int, log logger.Logger) (string, error) {
	errFactory := errors.New()

	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return "", errFactory.WithData(ErrSchemaInitFailed, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_backup_dir",
			Path:  dir,
			Error: err.Error(),
		})
	}

	timestamp := time.Now().UTC().Format("20060102T150405Z")
	backupPath := filepath.Join(dir, fmt.Sprintf("state_v%d_%s.db", version, timestamp))

	// VACUUM INTO requires no active transaction
	if _, err := db.Exec("VACUUM INTO ?", backupPath); err != nil {
		return "", errFactory.WithData(ErrSchemaInitFailed, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_backup",
			Path:  backupPath,
			Error: err.Error(),
		})
	}

	log.Info().
		Str("path", backupPath).
		Int("version", version).
		Msg("Database backup created")

	return backupPath, nil
}

// ValidateAndUpdateSchema creates the schema on an empty database and
// migrates an older one in place after backing it up. Persisted state is
// never dropped; a database newer than this build is refused.
func ValidateAndUpdateSchema(db *sql.DB, backupDir string, log logger.Logger) error {
	errFactory := errors.New()

	version, err := GetSchemaVersion(db)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to get schema version")
		return errFactory.Wrap(ErrSchemaValidationFailed, err)
	}

	log.Debug().
		Int("version", version).
		Bool("init_db", version == 0).
		Msg("Current schema version")

	switch {
	case version == 0:
		return InitSchema(db, log)
	case version == SchemaVersion:
		log.Debug().Int("version", version).Msg("Schema version is current")
		return nil
	case version > SchemaVersion:
		return errFactory.WithData(ErrSchemaTooNew, struct {
			Version   int
			Supported int
		}{
			Version:   version,
			Supported: SchemaVersion,
		})
	}

	backupPath, err := backupDatabase(db, backupDir, version, log)
	if err != nil {
		return errFactory.WithData(ErrSchemaMigrationFailed, struct {
			Phase string
			Error string
			Path  string
		}{
			Phase: "backup",
			Error: err.Error(),
			Path:  backupPath,
		})
	}

	for v := version; v < SchemaVersion; v++ {
		if err := migrate(db, v, log); err != nil {
			return err
		}
	}
	return nil
}

func migrate(db *sql.DB, from int, log logger.Logger) error {
	errFactory := errors.New()

	stmt, ok := migrations[from]
	if !ok {
		return errFactory.WithData(ErrSchemaMigrationFailed, struct {
			Phase   string
			Version int
		}{
			Phase:   "lookup_migration",
			Version: from,
		})
	}

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaMigrationFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to rollback migration")
			}
		}
	}()

	if _, err := tx.Exec(stmt); err != nil {
		return errFactory.WithData(ErrSchemaMigrationFailed, struct {
			Phase   string
			Version int
			Error   string
		}{
			Phase:   "apply_migration",
			Version: from,
			Error:   err.Error(),
		})
	}

	if err := recordVersion(tx, from+1); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errFactory.WithData(ErrSchemaMigrationFailed, struct {
			Phase string
			Error string
		}{
			Phase: "commit_changes",
			Error: err.Error(),
		})
	}
	committed = true

	log.Info().
		Int("from", from).
		Int("to", from+1).
		Msg("Schema migrated")

	return nil
}
