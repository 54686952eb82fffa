package protocol

import "errors"

var (
	// Endpoint errors

	ErrEndpointClosed = errors.New("endpoint is closed")
	ErrPeerNotFound   = errors.New("peer not found")

	// Frame errors

	ErrFrameTooLarge = errors.New("frame too large")
	ErrInvalidFrame  = errors.New("invalid frame")

	// Transport errors

	ErrTransportNotSupported = errors.New("transport not supported")
	ErrInvalidAddress        = errors.New("invalid address")
	ErrListenFailed          = errors.New("listen failed")
	ErrDialFailed            = errors.New("dial failed")
)
