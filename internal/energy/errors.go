package energy

import "codeberg.org/mutker/ecodanctl/internal/errors"

const (
	ErrStateNotFound = errors.ErrorCode("energy_state_not_found")
	ErrStateRead     = errors.ErrorCode("energy_state_read_failed")
	ErrStateWrite    = errors.ErrorCode("energy_state_write_failed")
	ErrInvalidStream = errors.ErrorCode("energy_invalid_stream")
)
