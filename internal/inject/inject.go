// Package inject taps media keys on a uinput virtual keyboard so the capture
// path can be exercised end to end.
package inject

import (
	"errors"
	"fmt"

	"github.com/ThomasT75/uinput"
	"github.com/bnema/popkeys/internal/mediakey"
	"github.com/charmbracelet/log"
)

// DefaultDevice is the uinput control node
const DefaultDevice = "/dev/uinput"

// Linux input event codes (linux/input-event-codes.h)
const (
	KeyNextSong     = 163
	KeyPlayPause    = 164
	KeyPreviousSong = 165
	KeyStopCD       = 166
	KeyPauseCD      = 201
	KeyVolumeDown   = 114
	KeyVolumeUp     = 115
)

// ErrNoKeyCode is returned for keys without an evdev equivalent
var ErrNoKeyCode = errors.New("media key has no evdev code")

// keyboard is the part of uinput.Keyboard the injector uses
type keyboard interface {
	KeyPress(key int) error
	Close() error
}

// Injector owns a virtual keyboard
type Injector struct {
	kb  keyboard
	log *log.Logger
}

// New creates a virtual keyboard on device, which usually needs membership
// of the input group or root
func New(device string, logger *log.Logger) (*Injector, error) {
	if device == "" {
		device = DefaultDevice
	}

	kb, err := uinput.CreateKeyboard(device, []byte("popkeys virtual keyboard"))
	if err != nil {
		return nil, fmt.Errorf("failed to create virtual keyboard on %s: %w", device, err)
	}

	return &Injector{kb: kb, log: logger.WithPrefix("inject")}, nil
}

// KeyCode returns the evdev code that produces key
func KeyCode(key mediakey.Type) (int, error) {
	switch key {
	case mediakey.Play:
		return KeyPlayPause, nil
	case mediakey.Pause:
		return KeyPauseCD, nil
	case mediakey.Stop:
		return KeyStopCD, nil
	case mediakey.Previous:
		return KeyPreviousSong, nil
	case mediakey.Next:
		return KeyNextSong, nil
	case mediakey.VolumeLower:
		return KeyVolumeDown, nil
	case mediakey.VolumeHigher:
		return KeyVolumeUp, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrNoKeyCode, key)
	}
}

// Press taps key once
func (i *Injector) Press(key mediakey.Type) error {
	code, err := KeyCode(key)
	if err != nil {
		return err
	}

	if err := i.kb.KeyPress(code); err != nil {
		return fmt.Errorf("failed to press %s: %w", key, err)
	}
	i.log.Debug("Injected media key", "key", key, "code", code)
	return nil
}

// Close destroys the virtual keyboard
func (i *Injector) Close() error {
	return i.kb.Close()
}
