// Package events fans canonical media key events out to subscribers
package events

import (
	"sync"

	"github.com/bnema/popkeys/internal/mediakey"
	"github.com/charmbracelet/log"
)

// Callback receives one media key event
type Callback func(mediakey.Type)

// Subscription identifies a registered callback. The zero value is never issued.
type Subscription uint64

type subscriber struct {
	id Subscription
	cb Callback
}

// Manager holds the ordered subscriber list. Dispatch runs on the caller's
// goroutine (a backend loop) while Subscribe is usually called from the
// application, so both sides go through mu.
type Manager struct {
	mu     sync.RWMutex
	subs   []subscriber
	nextID Subscription
	log    *log.Logger
}

// NewManager creates an empty manager
func NewManager(logger *log.Logger) *Manager {
	return &Manager{
		log: logger.WithPrefix("events"),
	}
}

// Subscribe appends cb to the subscriber list. A nil callback is logged and ignored.
func (m *Manager) Subscribe(cb Callback) Subscription {
	if cb == nil {
		m.log.Error("Ignoring nil media key callback")
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	m.subs = append(m.subs, subscriber{id: m.nextID, cb: cb})
	m.log.Debug("Registered media key callback", "id", m.nextID, "total", len(m.subs))
	return m.nextID
}

// Unsubscribe removes a subscription. It reports whether it was registered.
func (m *Manager) Unsubscribe(id Subscription) bool {
	if id == 0 {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, s := range m.subs {
		if s.id == id {
			// Copy so snapshots held by an in-flight Dispatch stay intact
			next := make([]subscriber, 0, len(m.subs)-1)
			next = append(next, m.subs[:i]...)
			next = append(next, m.subs[i+1:]...)
			m.subs = next
			m.log.Debug("Removed media key callback", "id", id, "total", len(m.subs))
			return true
		}
	}
	return false
}

// Dispatch invokes every subscriber in registration order. A panicking
// callback is logged and the remaining ones still run.
func (m *Manager) Dispatch(key mediakey.Type) {
	m.mu.RLock()
	snapshot := m.subs[:len(m.subs):len(m.subs)]
	m.mu.RUnlock()

	m.log.Debug("Dispatching media key", "key", key, "subscribers", len(snapshot))
	for _, s := range snapshot {
		m.invoke(s, key)
	}
}

// Len returns the number of registered subscribers
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

func (m *Manager) invoke(s subscriber, key mediakey.Type) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("Media key callback panicked", "id", s.id, "key", key, "panic", r)
		}
	}()
	s.cb(key)
}
