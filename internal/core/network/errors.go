package network

import "errors"

var (
	ErrNoPeer       = errors.New("network: no connected peer")
	ErrNotConnected = errors.New("network: no endpoint")
	ErrNoDialer     = errors.New("network: no transport configured")
	ErrNoCodec      = errors.New("network: no codec configured")
)
