package input

import (
	"fmt"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// display is the part of an X connection the generic backend needs
type display interface {
	// Keycodes resolves a keysym to every keycode that produces it
	Keycodes(sym xproto.Keysym) []xproto.Keycode
	GrabKey(code xproto.Keycode) error
	UngrabKey(code xproto.Keycode) error
	// PollEvent returns the next queued event, or nil when the queue is empty
	PollEvent() (xgb.Event, error)
	Close()
}

type displayOpener func(name string) (display, error)

// x11Display grabs keys on the root window of the default screen
type x11Display struct {
	conn          *xgb.Conn
	root          xproto.Window
	minKeycode    xproto.Keycode
	keysymsPerKey int
	keysyms       []xproto.Keysym
}

// openX11Display connects to name, or $DISPLAY when name is empty.
// xgb connections are safe for concurrent use, so no XInitThreads equivalent is needed.
func openX11Display(name string) (display, error) {
	conn, err := xgb.NewConnDisplay(name)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X display: %w", err)
	}

	setup := xproto.Setup(conn)
	root := setup.DefaultScreen(conn).Root

	count := byte(setup.MaxKeycode - setup.MinKeycode + 1)
	mapping, err := xproto.GetKeyboardMapping(conn, setup.MinKeycode, count).Reply()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to get keyboard mapping: %w", err)
	}

	return &x11Display{
		conn:          conn,
		root:          root,
		minKeycode:    setup.MinKeycode,
		keysymsPerKey: int(mapping.KeysymsPerKeycode),
		keysyms:       mapping.Keysyms,
	}, nil
}

func (d *x11Display) Keycodes(sym xproto.Keysym) []xproto.Keycode {
	return keycodesForKeysym(d.keysyms, d.keysymsPerKey, d.minKeycode, sym)
}

func (d *x11Display) GrabKey(code xproto.Keycode) error {
	return xproto.GrabKeyChecked(d.conn, true, d.root, xproto.ModMaskAny, code,
		xproto.GrabModeAsync, xproto.GrabModeAsync).Check()
}

func (d *x11Display) UngrabKey(code xproto.Keycode) error {
	return xproto.UngrabKeyChecked(d.conn, code, d.root, xproto.ModMaskAny).Check()
}

func (d *x11Display) PollEvent() (xgb.Event, error) {
	ev, xerr := d.conn.PollForEvent()
	if xerr != nil {
		return nil, xerr
	}
	return ev, nil
}

func (d *x11Display) Close() {
	d.conn.Close()
}

// keycodesForKeysym scans a GetKeyboardMapping reply for sym
func keycodesForKeysym(keysyms []xproto.Keysym, perKey int, minKeycode xproto.Keycode, sym xproto.Keysym) []xproto.Keycode {
	if perKey <= 0 {
		return nil
	}

	var codes []xproto.Keycode
	for i := 0; i*perKey < len(keysyms); i++ {
		row := keysyms[i*perKey : min((i+1)*perKey, len(keysyms))]
		for _, ks := range row {
			if ks == sym {
				codes = append(codes, minKeycode+xproto.Keycode(i))
				break
			}
		}
	}
	return codes
}
