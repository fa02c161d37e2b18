package state

import "codeberg.org/mutker/ecodanctl/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidDBPath = errors.ErrorCode("state_invalid_db_path")
	ErrInvalidDriver = errors.ErrorCode("state_invalid_driver")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("state_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("state_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("state_schema_migration_failed")
	ErrSchemaTooNew           = errors.ErrorCode("state_schema_too_new")

	// Storage Errors
	ErrStorageAccess = errors.ErrorCode("state_storage_access_failed")
	ErrStorageInit   = errors.ErrInitFailed
	ErrStorageClose  = errors.ErrShutdownFailed
	ErrCorruptRecord = errors.ErrorCode("state_corrupt_record")
)
