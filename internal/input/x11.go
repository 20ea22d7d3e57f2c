package input

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bnema/popkeys/internal/mediakey"
	"github.com/charmbracelet/log"
	"github.com/jezek/xgb/xproto"
)

// mediaKeySym ties an X keysym to the key it produces
type mediaKeySym struct {
	Name string
	Sym  xproto.Keysym
	Key  mediakey.Type
}

// MediaKeySyms is the fixed, ordered set of keys the generic backend grabs
var MediaKeySyms = []mediaKeySym{
	{Name: "XF86AudioPlay", Sym: 0x1008ff14, Key: mediakey.Play},
	{Name: "XF86AudioStop", Sym: 0x1008ff15, Key: mediakey.Stop},
	{Name: "XF86AudioPrev", Sym: 0x1008ff16, Key: mediakey.Previous},
	{Name: "XF86AudioNext", Sym: 0x1008ff17, Key: mediakey.Next},
	{Name: "XF86AudioLowerVolume", Sym: 0x1008ff11, Key: mediakey.VolumeLower},
	{Name: "XF86AudioRaiseVolume", Sym: 0x1008ff13, Key: mediakey.VolumeHigher},
}

// X11Backend grabs the media keys on the X root window
type X11Backend struct {
	mu           sync.Mutex
	displayName  string
	pollInterval time.Duration
	open         displayOpener

	disp    display
	running bool
	alive   atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// Written by the loop before it starts polling, read after it exits
	keymap      map[xproto.Keycode]mediakey.Type
	grabbedKeys []xproto.Keycode
	grabbed     atomic.Bool

	sink sinkHolder
	log  *log.Logger
}

// NewX11Backend creates a backend for displayName ($DISPLAY when empty) that
// waits pollInterval between empty polls of the event queue
func NewX11Backend(displayName string, pollInterval time.Duration, logger *log.Logger) *X11Backend {
	return newX11Backend(displayName, pollInterval, openX11Display, logger)
}

func newX11Backend(displayName string, pollInterval time.Duration, open displayOpener, logger *log.Logger) *X11Backend {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Millisecond
	}
	return &X11Backend{
		displayName:  displayName,
		pollInterval: pollInterval,
		open:         open,
		log:          logger.WithPrefix("x11"),
	}
}

// Name returns the name of this backend
func (b *X11Backend) Name() string {
	return "x11"
}

// OnMediaKey sets the sink for key events
func (b *X11Backend) OnMediaKey(sink Sink) {
	b.sink.set(sink)
}

// Grabbed reports whether at least one media key is grabbed
func (b *X11Backend) Grabbed() bool {
	return b.grabbed.Load()
}

// Start opens the display and spawns the loop that grabs and polls
func (b *X11Backend) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return nil
	}
	b.running = true

	disp, err := b.open(b.displayName)
	if err != nil {
		b.log.Error("Failed to open X display, media keys are disabled", "display", b.displayName, "err", err)
		return nil
	}
	b.disp = disp

	b.stopCh = make(chan struct{})
	b.alive.Store(true)

	b.wg.Add(1)
	go b.loop(ctx, disp, b.stopCh)

	return nil
}

// Stop ends the loop, waits for it and only then ungrabs the keys
func (b *X11Backend) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return nil
	}
	b.running = false

	if b.disp == nil {
		return nil
	}

	b.alive.Store(false)
	close(b.stopCh)
	b.wg.Wait()

	for _, code := range b.grabbedKeys {
		if err := b.disp.UngrabKey(code); err != nil {
			b.log.Warn("Failed to ungrab key", "keycode", code, "err", err)
		}
	}
	b.grabbedKeys = nil
	b.grabbed.Store(false)

	b.disp.Close()
	b.disp = nil

	b.log.Info("Released media keys")
	return nil
}

func (b *X11Backend) loop(ctx context.Context, disp display, stop <-chan struct{}) {
	defer b.wg.Done()

	b.registerKeys(disp)

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for b.alive.Load() {
		b.drain(disp)

		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// registerKeys grabs every media key it can resolve; a failing key is skipped
func (b *X11Backend) registerKeys(disp display) {
	keymap := make(map[xproto.Keycode]mediakey.Type)
	var grabbed []xproto.Keycode

	for _, mk := range MediaKeySyms {
		codes := disp.Keycodes(mk.Sym)
		if len(codes) == 0 {
			b.log.Warn("No keycode for media key", "keysym", mk.Name)
			continue
		}
		for _, code := range codes {
			keymap[code] = mk.Key
			if err := disp.GrabKey(code); err != nil {
				b.log.Warn("Failed to grab media key", "keysym", mk.Name, "keycode", code, "err", err)
				continue
			}
			grabbed = append(grabbed, code)
			b.log.Debug("Grabbed media key", "keysym", mk.Name, "keycode", code)
		}
	}

	b.keymap = keymap
	b.grabbedKeys = grabbed
	b.grabbed.Store(len(grabbed) > 0)
	b.log.Info("Grabbed media keys", "count", len(grabbed))
}

// drain handles every event currently queued on the connection, in order
func (b *X11Backend) drain(disp display) {
	for b.alive.Load() {
		ev, err := disp.PollEvent()
		if err != nil {
			b.log.Debug("X error while polling", "err", err)
			continue
		}
		if ev == nil {
			return
		}
		if press, ok := ev.(xproto.KeyPressEvent); ok {
			b.sink.emit(b.keyFor(press.Detail))
		}
	}
}

// keyFor maps a keycode back through the media key table
func (b *X11Backend) keyFor(code xproto.Keycode) mediakey.Type {
	if key, ok := b.keymap[code]; ok {
		return key
	}
	return mediakey.Unknown
}
