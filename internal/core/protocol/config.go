package protocol

import "time"

// Config holds the settings shared by every transport.
type Config struct {
	// Frames above this size are refused on read and on send.
	MaxFrameSize uint32

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	KeepAlive    time.Duration

	BufferSize int

	// Skip server certificate checks when dialing. Listening endpoints use a
	// generated self-signed certificate, so clients need this in development.
	InsecureSkipVerify bool
}

// DefaultConfig returns the transport defaults.
func DefaultConfig() Config {
	return Config{
		MaxFrameSize:       1024 * 1024, // 1MB
		WriteTimeout:       10 * time.Second,
		IdleTimeout:        30 * time.Second,
		KeepAlive:          15 * time.Second,
		BufferSize:         4096,
		InsecureSkipVerify: true,
	}
}
