package state

import (
	"path/filepath"

	"codeberg.org/mutker/ecodanctl/internal/errors"
)

const (
	defaultDirPerm = 0o755
	defaultDBPath  = "/var/lib/ecodanctl/state.db"

	DriverSQLite = "sqlite"
	DriverBadger = "badger"
)

type Config struct {
	Driver string
	Path   string
	// BackupDir receives a copy of a sqlite database before it is migrated.
	// Defaults to a "backups" directory next to Path.
	BackupDir string
}

func DefaultConfig() Config {
	return Config{
		Driver: DriverSQLite,
		Path:   defaultDBPath,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	switch c.Driver {
	case DriverSQLite, DriverBadger:
	default:
		return errFactory.WithMessage(ErrInvalidDriver, "unsupported state driver "+c.Driver)
	}

	if c.Path == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	return nil
}

func (c Config) backupDir() string {
	if c.BackupDir != "" {
		return c.BackupDir
	}
	return filepath.Join(filepath.Dir(c.Path), "backups")
}
