package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/ecodanctl/internal/energy"
	"codeberg.org/mutker/ecodanctl/internal/errors"
	"codeberg.org/mutker/ecodanctl/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

type sqliteRepository struct {
	db     *sql.DB
	logger logger.Logger
	mu     sync.Mutex
}

// OpenSQLite opens (creating if needed) the state database at cfg.Path and
// brings its schema up to date.
func OpenSQLite(cfg Config, log logger.Logger) (energy.Repository, error) {
	errFactory := errors.New()

	if cfg.Path == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.Path,
			Error: err.Error(),
		})
	}

	dsn := cfg.Path + "?_journal=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	if err := ValidateAndUpdateSchema(db, cfg.backupDir(), log); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	log.Info().
		Str("path", cfg.Path).
		Int("schema_version", SchemaVersion).
		Msg("State repository initialized")

	return &sqliteRepository{
		db:     db,
		logger: log,
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanState(row scanner) (energy.State, error) {
	var (
		st        energy.State
		lastDate  any
		updatedAt sql.NullString
	)
	if err := row.Scan(&st.Stream, &lastDate, &st.LastValue, &updatedAt); err != nil {
		return energy.State{}, err
	}

	d, err := parseStoredDate(lastDate)
	if err != nil {
		return energy.State{}, errors.New().WithData(ErrCorruptRecord, struct {
			Stream   string
			LastDate string
		}{
			Stream:   st.Stream,
			LastDate: fmt.Sprint(lastDate),
		})
	}
	st.LastDate = d

	if updatedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, updatedAt.String); err == nil {
			st.UpdatedAt = t
		}
	}

	return st, nil
}

// parseStoredDate accepts last_date as text or, for legacy tables declaring
// the column as DATE, as the time.Time the driver decodes it into.
func parseStoredDate(v any) (energy.Date, error) {
	switch d := v.(type) {
	case time.Time:
		return energy.DateOf(d), nil
	case string:
		return energy.ParseDate(d)
	case []byte:
		return energy.ParseDate(string(d))
	default:
		return energy.Date{}, fmt.Errorf("unexpected last_date type %T", v)
	}
}

func (r *sqliteRepository) Get(ctx context.Context, stream string) (energy.State, error) {
	errFactory := errors.New()
	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := scanState(r.db.QueryRowContext(ctx, selectStateSQL, stream))
	if errors.Is(err, sql.ErrNoRows) {
		return energy.State{}, errFactory.WithMessage(energy.ErrStateNotFound, "no state for stream "+stream)
	}
	if err != nil {
		if errors.HasCode(err, ErrCorruptRecord) {
			return energy.State{}, err
		}
		return energy.State{}, errFactory.Wrap(ErrStorageAccess, err)
	}

	return st, nil
}

func (r *sqliteRepository) Upsert(ctx context.Context, st energy.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var updatedAt any
	if !st.UpdatedAt.IsZero() {
		updatedAt = st.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}

	if _, err := r.db.ExecContext(ctx, upsertStateSQL,
		st.Stream,
		st.LastDate.String(),
		st.LastValue,
		updatedAt,
	); err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (r *sqliteRepository) List(ctx context.Context) ([]energy.State, error) {
	errFactory := errors.New()
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.QueryContext(ctx, listStatesSQL)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	var states []energy.State
	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	return states, nil
}

func (r *sqliteRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "checkpoint_wal",
			Error: err.Error(),
		})
	}

	if err := r.db.Close(); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	r.logger.Info().Msg("State repository closed")

	return nil
}
