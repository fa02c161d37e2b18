package ecodan

import "codeberg.org/mutker/ecodanctl/internal/errors"

const (
	ErrTransport       = errors.ErrorCode("ecodan_transport_failed")
	ErrMalformed       = errors.ErrorCode("ecodan_malformed_response")
	ErrInvalidTarget   = errors.ErrorCode("ecodan_invalid_target")
	ErrUnknownRegister = errors.ErrorCode("ecodan_unknown_register")
	ErrConnectFailed   = errors.ErrorCode("ecodan_connect_failed")
	ErrTransportClosed = errors.ErrorCode("ecodan_transport_closed")
)
