package server

import "errors"

// Server-specific errors
var (
	ErrServerClosed         = errors.New("server is closed")
	ErrServerNotRunning     = errors.New("server is not running")
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrUnknownTransport     = errors.New("unknown transport")
	ErrSystemNotStarted     = errors.New("entity system not started")
)
