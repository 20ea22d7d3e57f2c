// Package notify shows a desktop notification for media key presses
package notify

import (
	"sync"
	"time"

	"github.com/bnema/popkeys/internal/mediakey"
	"github.com/charmbracelet/log"
	"github.com/gen2brain/beeep"
)

// DefaultInterval is the minimum gap between two notifications for the same key
const DefaultInterval = 500 * time.Millisecond

// Notifier sends at most one notification per key per interval
type Notifier struct {
	mu       sync.Mutex
	title    string
	interval time.Duration
	last     map[mediakey.Type]time.Time
	send     func(title, message, icon string) error
	now      func() time.Time
	log      *log.Logger
}

// New creates a Notifier that titles its notifications with title
func New(title string, logger *log.Logger) *Notifier {
	return &Notifier{
		title:    title,
		interval: DefaultInterval,
		last:     make(map[mediakey.Type]time.Time),
		send:     beeep.Notify,
		now:      time.Now,
		log:      logger.WithPrefix("notify"),
	}
}

// Notify shows key unless the same key was shown less than an interval ago.
// It reports whether a notification went out. Delivery errors are logged.
func (n *Notifier) Notify(key mediakey.Type) bool {
	n.mu.Lock()
	now := n.now()
	if last, ok := n.last[key]; ok && now.Sub(last) < n.interval {
		n.mu.Unlock()
		return false
	}
	n.last[key] = now
	n.mu.Unlock()

	if err := n.send(n.title, message(key), ""); err != nil {
		n.log.Warn("Failed to send notification", "key", key, "err", err)
		return false
	}
	return true
}

// Callback returns Notify as a key callback
func (n *Notifier) Callback() func(mediakey.Type) {
	return func(key mediakey.Type) {
		// The daemon's notification service can be slow to answer
		go n.Notify(key)
	}
}

func message(key mediakey.Type) string {
	switch key {
	case mediakey.Play:
		return "Play"
	case mediakey.Pause:
		return "Pause"
	case mediakey.Stop:
		return "Stop"
	case mediakey.Previous:
		return "Previous track"
	case mediakey.Next:
		return "Next track"
	case mediakey.VolumeLower:
		return "Volume down"
	case mediakey.VolumeHigher:
		return "Volume up"
	default:
		return "Unknown media key"
	}
}
