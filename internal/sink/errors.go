package sink

import "codeberg.org/mutker/ecodanctl/internal/errors"

const (
	ErrSinkWrite     = errors.ErrorCode("sink_write_failed")
	ErrSinkConnect   = errors.ErrorCode("sink_connect_failed")
	ErrInvalidConfig = errors.ErrorCode("sink_invalid_config")
)
