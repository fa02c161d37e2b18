package state

import (
	"database/sql"

	"codeberg.org/mutker/ecodanctl/internal/errors"
	"codeberg.org/mutker/ecodanctl/internal/logger"
)

const (
	// SchemaVersion 1 is the unversioned table written by earlier releases;
	// version 2 adds updated_at.
	SchemaVersion = 2

	stateTable = "energy_influx_state"

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS energy_influx_state (
	       stream      TEXT PRIMARY KEY,
	       last_date   TEXT NOT NULL,
	       last_value  REAL NOT NULL,
	       updated_at  TEXT
	   );`

	selectStateSQL = `
    SELECT stream, last_date, last_value, updated_at
    FROM energy_influx_state
    WHERE stream = ?`

	listStatesSQL = `
    SELECT stream, last_date, last_value, updated_at
    FROM energy_influx_state
    ORDER BY stream`

	upsertStateSQL = `
    INSERT INTO energy_influx_state (stream, last_date, last_value, updated_at)
    VALUES (?, ?, ?, ?)
    ON CONFLICT(stream) DO UPDATE SET
        last_date = excluded.last_date,
        last_value = excluded.last_value,
        updated_at = excluded.updated_at`
)

// InitSchema creates a new database schema with the current version
func InitSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	log.Debug().Msg("Creating database...")

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to rollback transaction")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			SQL   string
		}{
			Error: err.Error(),
			SQL:   createTablesSQL,
		})
	}

	if err := recordVersion(tx, SchemaVersion); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	log.Info().
		Int("version", SchemaVersion).
		Msg("Schema initialized successfully")

	return nil
}

func recordVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, version); err != nil {
		return errors.New().WithData(ErrSchemaInitFailed, struct {
			Error string
			Phase string
		}{
			Error: err.Error(),
			Phase: "record_version",
		})
	}
	return nil
}

// GetSchemaVersion returns the current schema version: 0 for an empty
// database, 1 for a state table without version bookkeeping.
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := TableExists(db, "schema_versions")
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}
	if !exists {
		legacy, err := TableExists(db, stateTable)
		if err != nil {
			return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
		}
		if legacy {
			return 1, nil
		}
		return 0, nil
	}

	var version int
	err = db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Error string
		}{
			Phase: "get_version",
			Error: err.Error(),
		})
	}

	return version, nil
}

// TableExists checks if a table exists
func TableExists(db *sql.DB, tableName string) (bool, error) {
	errFactory := errors.New()
	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, errFactory.WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Table string
			Error string
		}{
			Phase: "check_table_exists",
			Table: tableName,
			Error: err.Error(),
		})
	}
	return exists, nil
}
