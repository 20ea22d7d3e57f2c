// Package popkeys ties the media key bridge to the event manager. It is the
// entry point for hosts that want global media keys.
package popkeys

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bnema/popkeys/internal/bridge"
	"github.com/bnema/popkeys/internal/config"
	"github.com/bnema/popkeys/internal/events"
	"github.com/bnema/popkeys/internal/mediakey"
	"github.com/charmbracelet/log"
)

// Status describes a running service
type Status struct {
	AppName     string
	Backend     string
	Kind        bridge.Kind
	Grabbed     bool
	Subscribers int
}

// Option configures a Service
type Option func(*options)

type options struct {
	bridge     bridge.Bridge
	bridgeOpts []bridge.Option
}

// WithBridge uses b instead of building a LinuxBridge
func WithBridge(b bridge.Bridge) Option {
	return func(o *options) {
		o.bridge = b
	}
}

// WithBridgeOptions passes opts to the LinuxBridge constructor
func WithBridgeOptions(opts ...bridge.Option) Option {
	return func(o *options) {
		o.bridgeOpts = append(o.bridgeOpts, opts...)
	}
}

// Service captures media keys and fans them out to registered callbacks
type Service struct {
	mu      sync.Mutex
	appName string
	events  *events.Manager
	bridge  bridge.Bridge
	closed  bool
	log     *log.Logger
}

// New selects a backend, wires it to a fresh event manager and grabs the keys
func New(cfg *config.Config, logger *log.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.Get()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	mgr := events.NewManager(logger)

	br := o.bridge
	if br == nil {
		lb, err := bridge.NewLinuxBridge(cfg.Keys, logger, o.bridgeOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create bridge: %w", err)
		}
		br = lb
	}

	br.RegisterCallback(mgr.Dispatch)

	if err := br.GrabKeys(); err != nil {
		br.Close()
		return nil, fmt.Errorf("failed to grab media keys: %w", err)
	}

	return &Service{
		appName: cfg.Keys.AppName,
		events:  mgr,
		bridge:  br,
		log:     logger.WithPrefix("popkeys"),
	}, nil
}

// RegisterCallback subscribes cb to every media key
func (s *Service) RegisterCallback(cb func(mediakey.Type)) events.Subscription {
	return s.events.Subscribe(cb)
}

// RegisterKeyCodeCallback subscribes cb with the integer value of each key
func (s *Service) RegisterKeyCodeCallback(cb func(int)) events.Subscription {
	if cb == nil {
		return s.events.Subscribe(nil)
	}
	return s.events.Subscribe(func(k mediakey.Type) {
		cb(int(k))
	})
}

// Unsubscribe removes a callback registered on this service
func (s *Service) Unsubscribe(id events.Subscription) bool {
	return s.events.Unsubscribe(id)
}

// Status reports the backend state and subscriber count
func (s *Service) Status() Status {
	return Status{
		AppName:     s.appName,
		Backend:     s.bridge.BackendName(),
		Kind:        s.bridge.Kind(),
		Grabbed:     s.bridge.Grabbed(),
		Subscribers: s.events.Len(),
	}
}

// Close tears down the backend before the callbacks go away, so no key is
// dispatched to a half-closed service
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.bridge.Close(); err != nil && !errors.Is(err, bridge.ErrClosed) {
		return fmt.Errorf("failed to close bridge: %w", err)
	}

	s.log.Debug("Service closed", "subscribers", s.events.Len())
	return nil
}
