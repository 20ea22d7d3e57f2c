package input

import (
	"context"

	"github.com/bnema/popkeys/internal/mediakey"
)

// Sink receives canonical media key events from a backend loop
type Sink func(mediakey.Type)

// Backend captures media keys through one platform mechanism
type Backend interface {
	// Name returns a human-readable name for logging and status output
	Name() string

	// OnMediaKey sets the sink that receives every detected key
	OnMediaKey(sink Sink)

	// Start acquires the OS resources and spawns the backend loop.
	// Failures to reach the OS are logged, not returned, so the caller
	// keeps running without media keys.
	Start(ctx context.Context) error

	// Stop releases the OS resources and waits for the loop to exit.
	// Calling Stop on a stopped backend is a no-op.
	Stop() error

	// Grabbed reports whether the OS currently delivers keys to this backend
	Grabbed() bool
}
