package telemetry

import "codeberg.org/mutker/ecodanctl/internal/errors"

const (
	ErrInvalidConfig    = errors.ErrorCode("telemetry_invalid_config")
	ErrInvalidNamespace = errors.ErrorCode("telemetry_invalid_namespace")
	ErrRegisterFailed   = errors.ErrorCode("telemetry_register_failed")
)
