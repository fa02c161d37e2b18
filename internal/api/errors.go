package api

import "codeberg.org/mutker/ecodanctl/internal/errors"

const (
	ErrInvalidBody  = errors.ErrorCode("api_invalid_body")
	ErrBodyTooLarge = errors.ErrorCode("api_body_too_large")
	ErrServeFailed  = errors.ErrorCode("api_serve_failed")
	ErrShutdown     = errors.ErrorCode("api_shutdown_failed")
	ErrInvalidAddr  = errors.ErrorCode("api_invalid_listen_address")
)
