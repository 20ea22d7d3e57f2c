package input

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// GNOME settings daemon media keys service
const (
	GnomeMediaKeysService   = "org.gnome.SettingsDaemon.MediaKeys"
	GnomeMediaKeysPath      = dbus.ObjectPath("/org/gnome/SettingsDaemon/MediaKeys")
	GnomeMediaKeysInterface = "org.gnome.SettingsDaemon.MediaKeys"

	gnomeGrabMethod    = GnomeMediaKeysInterface + ".GrabMediaPlayerKeys"
	gnomeReleaseMethod = GnomeMediaKeysInterface + ".ReleaseMediaPlayerKeys"
	gnomeKeySignal     = "MediaPlayerKeyPressed"
	gnomeKeySignalName = GnomeMediaKeysInterface + "." + gnomeKeySignal

	dbusNameHasOwner = "org.freedesktop.DBus.NameHasOwner"
)

// mediaKeysProxy is the part of the settings daemon the GNOME backend talks to
type mediaKeysProxy interface {
	// GrabMediaPlayerKeys issues the grab without blocking; the result arrives on the channel
	GrabMediaPlayerKeys(app string) <-chan error
	// ReleaseMediaPlayerKeys sends the release without waiting for a reply
	ReleaseMediaPlayerKeys(app string) error
	// Signals delivers MediaPlayerKeyPressed signals
	Signals() <-chan *dbus.Signal
	Close() error
}

type proxyDialer func() (mediaKeysProxy, error)

// sessionProxy is a mediaKeysProxy on a private session bus connection
type sessionProxy struct {
	conn    *dbus.Conn
	obj     dbus.BusObject
	signals chan *dbus.Signal
	match   []dbus.MatchOption
}

// dialSessionProxy connects to the session bus and subscribes to key presses.
// It refuses to continue when the daemon is not already running, so that a
// failed connection never triggers service activation.
func dialSessionProxy() (mediaKeysProxy, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	var hasOwner bool
	if err := conn.BusObject().Call(dbusNameHasOwner, dbus.FlagNoAutoStart, GnomeMediaKeysService).Store(&hasOwner); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to query owner of %s: %w", GnomeMediaKeysService, err)
	}
	if !hasOwner {
		conn.Close()
		return nil, fmt.Errorf("%s is not running on the session bus", GnomeMediaKeysService)
	}

	// The bus resolves the well-known name to its current owner, so signals
	// emitted by other peers never reach us
	match := []dbus.MatchOption{
		dbus.WithMatchSender(GnomeMediaKeysService),
		dbus.WithMatchObjectPath(GnomeMediaKeysPath),
		dbus.WithMatchInterface(GnomeMediaKeysInterface),
		dbus.WithMatchMember(gnomeKeySignal),
	}
	if err := conn.AddMatchSignal(match...); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", gnomeKeySignal, err)
	}

	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)

	return &sessionProxy{
		conn:    conn,
		obj:     conn.Object(GnomeMediaKeysService, GnomeMediaKeysPath),
		signals: signals,
		match:   match,
	}, nil
}

func (p *sessionProxy) GrabMediaPlayerKeys(app string) <-chan error {
	result := make(chan error, 1)
	call := p.obj.Go(gnomeGrabMethod, dbus.FlagNoAutoStart, make(chan *dbus.Call, 1), app, uint32(0))
	go func() {
		done := <-call.Done
		result <- done.Err
	}()
	return result
}

func (p *sessionProxy) ReleaseMediaPlayerKeys(app string) error {
	call := p.obj.Go(gnomeReleaseMethod, dbus.FlagNoAutoStart|dbus.FlagNoReplyExpected, nil, app)
	return call.Err
}

func (p *sessionProxy) Signals() <-chan *dbus.Signal {
	return p.signals
}

func (p *sessionProxy) Close() error {
	if err := p.conn.RemoveMatchSignal(p.match...); err != nil {
		// Still close the connection; the bus drops our rules with it
		p.conn.Close()
		return fmt.Errorf("failed to remove signal match: %w", err)
	}
	p.conn.RemoveSignal(p.signals)
	return p.conn.Close()
}
