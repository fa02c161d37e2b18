package state

import (
	"codeberg.org/mutker/ecodanctl/internal/energy"
	"codeberg.org/mutker/ecodanctl/internal/errors"
	"codeberg.org/mutker/ecodanctl/internal/logger"
)

// Open returns the energy state repository selected by cfg.Driver.
func Open(cfg Config, log logger.Logger) (energy.Repository, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}
	if log == nil {
		log = logger.With("state")
	}

	switch cfg.Driver {
	case DriverBadger:
		return OpenBadger(cfg.Path, log)
	default:
		return OpenSQLite(cfg, log)
	}
}
