package backend

import (
	"log/slog"

	"github.com/waywire-dev/waywire/pkg/wire"
)

// Config tunes one connection. The zero value is usable; New fills in
// defaults for anything left unset.
type Config struct {
	// ReadChunkSize is how many bytes one transport read may deliver.
	ReadChunkSize int

	// MaxReadBuffer caps the unconsumed read buffer. A peer that streams
	// bytes that never frame a message hits this before exhausting
	// memory; reaching it is a fatal protocol error.
	MaxReadBuffer int

	// MaxFdsInFlight caps the inbound descriptor queue.
	MaxFdsInFlight int

	// Interfaces resolves interface names carried inline by generic
	// constructors (the registry bind pattern). Only needed by servers
	// and by clients binding globals.
	Interfaces map[string]*wire.Interface

	// Logger receives connection logs. Defaults to slog.Default().
	Logger *slog.Logger

	// Debug enables per-message trace logging at debug level.
	Debug bool
}

// DefaultConfig returns the default connection configuration.
func DefaultConfig() Config {
	return Config{
		ReadChunkSize:  4096,
		MaxReadBuffer:  1 << 20,
		MaxFdsInFlight: 1024,
	}
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ReadChunkSize <= 0 {
		c.ReadChunkSize = d.ReadChunkSize
	}
	if c.MaxReadBuffer <= 0 {
		c.MaxReadBuffer = d.MaxReadBuffer
	}
	if c.MaxFdsInFlight <= 0 {
		c.MaxFdsInFlight = d.MaxFdsInFlight
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
