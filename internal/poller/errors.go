package poller

import "codeberg.org/mutker/ecodanctl/internal/errors"

const (
	ErrCycleAborted = errors.ErrCycleAborted
	ErrNoReport     = errors.ErrorCode("poller_no_report")
)
