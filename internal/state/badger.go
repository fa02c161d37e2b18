package state

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"codeberg.org/mutker/ecodanctl/internal/energy"
	"codeberg.org/mutker/ecodanctl/internal/errors"
	"codeberg.org/mutker/ecodanctl/internal/logger"
	"github.com/dgraph-io/badger/v4"
)

const badgerKeyPrefix = "energy_state/"

type badgerRepository struct {
	db     *badger.DB
	logger logger.Logger
}

// OpenBadger opens a badger directory at path as the state repository.
func OpenBadger(path string, log logger.Logger) (energy.Repository, error) {
	opts := badger.DefaultOptions(path).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{log})
	return openBadger(opts, log)
}

func openBadger(opts badger.Options, log logger.Logger) (energy.Repository, error) {
	errFactory := errors.New()

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "open_database",
			Path:  opts.Dir,
			Error: err.Error(),
		})
	}

	log.Info().
		Str("path", opts.Dir).
		Bool("in_memory", opts.InMemory).
		Msg("State repository initialized")

	return &badgerRepository{db: db, logger: log}, nil
}

func badgerKey(stream string) []byte {
	return []byte(badgerKeyPrefix + stream)
}

func decodeState(val []byte) (energy.State, error) {
	var st energy.State
	if err := json.Unmarshal(val, &st); err != nil {
		return energy.State{}, errors.New().Wrap(ErrCorruptRecord, err)
	}
	return st, nil
}

func (r *badgerRepository) Get(ctx context.Context, stream string) (energy.State, error) {
	errFactory := errors.New()
	if err := ctx.Err(); err != nil {
		return energy.State{}, errFactory.Wrap(ErrStorageAccess, err)
	}

	var st energy.State
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(stream))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			st, err = decodeState(val)
			return err
		})
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return energy.State{}, errFactory.WithMessage(energy.ErrStateNotFound, "no state for stream "+stream)
	case errors.HasCode(err, ErrCorruptRecord):
		return energy.State{}, err
	case err != nil:
		return energy.State{}, errFactory.Wrap(ErrStorageAccess, err)
	}

	return st, nil
}

func (r *badgerRepository) Upsert(ctx context.Context, st energy.State) error {
	errFactory := errors.New()
	if err := ctx.Err(); err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	val, err := json.Marshal(st)
	if err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	if err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(st.Stream), val)
	}); err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (r *badgerRepository) List(ctx context.Context) ([]energy.State, error) {
	errFactory := errors.New()
	if err := ctx.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	var states []energy.State
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				st, err := decodeState(val)
				if err != nil {
					return err
				}
				states = append(states, st)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	return states, nil
}

func (r *badgerRepository) Close() error {
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

// badgerLogger routes badger's internal logging through ours; its info
// chatter is demoted to debug.
type badgerLogger struct {
	log logger.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error().Msg(trimLine(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn().Msg(trimLine(format, args...))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug().Msg(trimLine(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug().Msg(trimLine(format, args...))
}

func trimLine(format string, args ...interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
