// Package mediakey defines the canonical media key type shared by every backend
package mediakey

import (
	"errors"
	"fmt"
	"strings"
)

// Type is a normalized media key event. The integer value is what external
// consumers (the host callback ABI and the IPC stream) receive.
type Type int

const (
	Unknown Type = iota
	Stop
	Play
	Pause
	Previous
	Next
	VolumeLower
	VolumeHigher
)

// ErrUnknownKey is returned by Parse for names that do not match any key
var ErrUnknownKey = errors.New("unknown media key")

var labels = [...]string{
	Unknown:      "UNKNOWN",
	Stop:         "STOP",
	Play:         "PLAY",
	Pause:        "PAUSE",
	Previous:     "PREVIOUS",
	Next:         "NEXT",
	VolumeLower:  "VOLUME_LOWER",
	VolumeHigher: "VOLUME_HIGHER",
}

// String returns the debug label of the key, "UNKNOWN" for anything out of range
func (t Type) String() string {
	if t < 0 || int(t) >= len(labels) {
		return labels[Unknown]
	}
	return labels[t]
}

// Valid reports whether t is one of the declared constants
func (t Type) Valid() bool {
	return t >= Unknown && int(t) < len(labels)
}

// All returns every recognized key except Unknown, in declaration order
func All() []Type {
	return []Type{Stop, Play, Pause, Previous, Next, VolumeLower, VolumeHigher}
}

var aliases = map[string]Type{
	"stop":     Stop,
	"play":     Play,
	"pause":    Pause,
	"previous": Previous,
	"prev":     Previous,
	"next":     Next,
	"vol-down": VolumeLower,
	"voldown":  VolumeLower,
	"vol-up":   VolumeHigher,
	"volup":    VolumeHigher,
}

// Parse resolves a label ("PLAY", "volume_lower") or a short alias ("prev", "vol-up")
func Parse(name string) (Type, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if t, ok := aliases[n]; ok {
		return t, nil
	}
	for i, l := range labels {
		if Type(i) == Unknown {
			continue
		}
		if strings.EqualFold(l, n) || strings.EqualFold(strings.ReplaceAll(l, "_", "-"), n) {
			return Type(i), nil
		}
	}
	return Unknown, fmt.Errorf("%w: %q", ErrUnknownKey, name)
}
