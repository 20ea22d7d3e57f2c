// Package bridge owns the media key backend for the lifetime of the process
// and exposes grab, release and callback registration over it.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/bnema/popkeys/internal/config"
	"github.com/bnema/popkeys/internal/input"
	"github.com/bnema/popkeys/internal/mediakey"
	"github.com/charmbracelet/log"
)

// ErrClosed is returned by every call on a closed bridge
var ErrClosed = errors.New("bridge is closed")

// Bridge connects one platform backend to a media key callback
type Bridge interface {
	RegisterCallback(cb func(mediakey.Type))
	GrabKeys() error
	ReleaseKeys() error
	Kind() Kind
	// BackendName names the backend in use
	BackendName() string
	// Grabbed reports whether the OS currently delivers keys to us
	Grabbed() bool
	Close() error
}

// BackendFactory builds the backend for a selected kind
type BackendFactory func(kind Kind, keys config.KeysConfig, logger *log.Logger) input.Backend

// DefaultBackendFactory returns the settings daemon backend for GNOME-like
// desktops and the X11 grab backend otherwise
func DefaultBackendFactory(kind Kind, keys config.KeysConfig, logger *log.Logger) input.Backend {
	if kind == KindGnomeLike {
		return input.NewGnomeBackend(keys.AppName, logger)
	}
	return input.NewX11Backend(keys.Display, keys.PollInterval(), logger)
}

// Option configures a LinuxBridge
type Option func(*options)

type options struct {
	indicator  *string
	newBackend BackendFactory
}

// WithIndicator uses indicator instead of reading XDG_CURRENT_DESKTOP
func WithIndicator(indicator string) Option {
	return func(o *options) {
		o.indicator = &indicator
	}
}

// WithBackendFactory replaces the backend constructor
func WithBackendFactory(f BackendFactory) Option {
	return func(o *options) {
		o.newBackend = f
	}
}

// LinuxBridge drives a single backend chosen once at construction.
// Lifecycle calls are serialized by mu. Grabbed only reads atomics, so a
// callback running on the backend loop can query it while Stop joins that loop.
type LinuxBridge struct {
	mu      sync.Mutex
	kind    Kind
	backend input.Backend
	ctx     context.Context
	cancel  context.CancelFunc
	grabbed atomic.Bool
	closed  atomic.Bool
	log     *log.Logger
}

// NewLinuxBridge selects the backend from keys.backend and the desktop
// environment and constructs it without touching the OS
func NewLinuxBridge(keys config.KeysConfig, logger *log.Logger, opts ...Option) (*LinuxBridge, error) {
	o := options{newBackend: DefaultBackendFactory}
	for _, opt := range opts {
		opt(&o)
	}

	indicator := os.Getenv(DesktopEnv)
	if o.indicator != nil {
		indicator = *o.indicator
	}

	l := logger.WithPrefix("bridge")
	kind := ResolveKind(keys.Backend, indicator, l)

	backend := o.newBackend(kind, keys, logger)
	if backend == nil {
		return nil, fmt.Errorf("no backend available for %s", kind)
	}

	ctx, cancel := context.WithCancel(context.Background())

	l.Info("Selected media key backend", "kind", kind, "backend", backend.Name())
	return &LinuxBridge{
		kind:    kind,
		backend: backend,
		ctx:     ctx,
		cancel:  cancel,
		log:     l,
	}, nil
}

// RegisterCallback routes every key from the backend to cb
func (b *LinuxBridge) RegisterCallback(cb func(mediakey.Type)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed.Load() {
		return
	}
	b.backend.OnMediaKey(input.Sink(cb))
}

// GrabKeys starts the backend. It is a no-op while keys are grabbed.
func (b *LinuxBridge) GrabKeys() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed.Load() {
		return ErrClosed
	}
	if b.grabbed.Load() {
		return nil
	}

	if err := b.backend.Start(b.ctx); err != nil {
		return fmt.Errorf("failed to start %s backend: %w", b.backend.Name(), err)
	}
	b.grabbed.Store(true)
	return nil
}

// ReleaseKeys stops the backend. It is a no-op while keys are released.
func (b *LinuxBridge) ReleaseKeys() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed.Load() {
		return ErrClosed
	}
	return b.release()
}

// release must be called with mu held. The grabbed flag drops before Stop
// so readers see the keys as released while the loop is being joined.
func (b *LinuxBridge) release() error {
	if !b.grabbed.Swap(false) {
		return nil
	}

	if err := b.backend.Stop(); err != nil {
		return fmt.Errorf("failed to stop %s backend: %w", b.backend.Name(), err)
	}
	return nil
}

// Kind returns the backend kind chosen at construction
func (b *LinuxBridge) Kind() Kind {
	return b.kind
}

// BackendName names the backend in use
func (b *LinuxBridge) BackendName() string {
	return b.backend.Name()
}

// Grabbed reports whether the backend currently holds the media keys
func (b *LinuxBridge) Grabbed() bool {
	return b.grabbed.Load() && b.backend.Grabbed()
}

// Close releases the keys, joins the backend loop and disables the bridge
func (b *LinuxBridge) Close() error {
	if b.closed.Swap(true) {
		return ErrClosed
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.release()
	b.backend.OnMediaKey(nil)
	b.cancel()
	return err
}
