package input

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/bnema/popkeys/internal/mediakey"
	"github.com/charmbracelet/log"
	"github.com/godbus/dbus/v5"
)

// GnomeBackend receives media keys from the GNOME settings daemon over the session bus
type GnomeBackend struct {
	mu      sync.Mutex
	appName string
	dial    proxyDialer
	proxy   mediaKeysProxy
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	grabbed atomic.Bool
	sink    sinkHolder
	log     *log.Logger
}

// NewGnomeBackend creates a backend that registers as appName with the settings daemon
func NewGnomeBackend(appName string, logger *log.Logger) *GnomeBackend {
	return newGnomeBackend(appName, dialSessionProxy, logger)
}

func newGnomeBackend(appName string, dial proxyDialer, logger *log.Logger) *GnomeBackend {
	return &GnomeBackend{
		appName: appName,
		dial:    dial,
		log:     logger.WithPrefix("gnome"),
	}
}

// Name returns the name of this backend
func (b *GnomeBackend) Name() string {
	return "gnome-settings-daemon"
}

// OnMediaKey sets the sink for key events
func (b *GnomeBackend) OnMediaKey(sink Sink) {
	b.sink.set(sink)
}

// Grabbed reports whether the daemon acknowledged our grab
func (b *GnomeBackend) Grabbed() bool {
	return b.grabbed.Load()
}

// Start connects to the daemon, subscribes to key presses and requests the
// media keys asynchronously
func (b *GnomeBackend) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return nil
	}
	b.running = true

	proxy, err := b.dial()
	if err != nil {
		// No fallback to another backend: media keys stay unavailable
		b.log.Error("Failed to connect to the media keys service, media keys are disabled", "err", err)
		return nil
	}
	b.proxy = proxy

	loopCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	b.wg.Add(1)
	go b.loop(loopCtx, proxy.Signals())

	result := proxy.GrabMediaPlayerKeys(b.appName)
	go b.awaitGrab(proxy, result)

	b.log.Info("Requested media player keys", "app", b.appName)
	return nil
}

// Stop releases the media keys, stops the signal loop and closes the bus connection
func (b *GnomeBackend) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return nil
	}
	b.running = false

	if b.proxy == nil {
		return nil
	}

	// The release has to go out before the connection goes away
	if err := b.proxy.ReleaseMediaPlayerKeys(b.appName); err != nil {
		b.log.Warn("Failed to release media player keys", "err", err)
	}
	b.grabbed.Store(false)

	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.wg.Wait()

	if err := b.proxy.Close(); err != nil {
		b.log.Warn("Failed to close session bus connection", "err", err)
	}
	b.proxy = nil

	b.log.Info("Released media player keys", "app", b.appName)
	return nil
}

// awaitGrab records the daemon's reply to our grab. A reply that belongs to a
// stopped session, including the error from its closed connection, is only
// logged at debug level.
func (b *GnomeBackend) awaitGrab(proxy mediaKeysProxy, result <-chan error) {
	err := <-result

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running || b.proxy != proxy {
		b.log.Debug("Ignoring grab reply for a stopped session", "app", b.appName, "err", err)
		return
	}
	if err != nil {
		b.log.Error("Failed to grab media player keys", "app", b.appName, "err", err)
		return
	}
	b.grabbed.Store(true)
	b.log.Info("Media player keys grabbed", "app", b.appName)
}

func (b *GnomeBackend) loop(ctx context.Context, signals <-chan *dbus.Signal) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				b.log.Debug("Signal channel closed")
				return
			}
			b.handleSignal(sig)
		}
	}
}

// handleSignal validates a MediaPlayerKeyPressed signal and forwards its key
func (b *GnomeBackend) handleSignal(sig *dbus.Signal) {
	if sig == nil || sig.Name != gnomeKeySignalName {
		return
	}
	if sig.Path != GnomeMediaKeysPath {
		b.log.Debug("Dropping media key signal from unexpected path", "path", sig.Path, "sender", sig.Sender)
		return
	}

	if sigStr := dbus.SignatureOf(sig.Body...).String(); sigStr != "ss" {
		b.log.Debug("Dropping media key signal with unexpected signature", "signature", sigStr)
		return
	}

	app := sig.Body[0].(string)
	command := sig.Body[1].(string)
	if app != b.appName {
		b.log.Debug("Ignoring media key for another application", "app", app, "command", command)
		return
	}

	key := commandToKey(command)
	b.log.Debug("Media key pressed", "command", command, "key", key)
	b.sink.emit(key)
}

// commandToKey maps the daemon's key names, which are case sensitive
func commandToKey(command string) mediakey.Type {
	switch command {
	case "Play":
		return mediakey.Play
	case "Pause":
		return mediakey.Pause
	case "Stop":
		return mediakey.Stop
	case "Previous":
		return mediakey.Previous
	case "Next":
		return mediakey.Next
	default:
		return mediakey.Unknown
	}
}
