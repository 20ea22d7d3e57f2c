package input

import (
	"sync"

	"github.com/bnema/popkeys/internal/mediakey"
)

// sinkHolder guards the sink separately from backend lifecycle locks so a
// loop emitting events never contends with Stop
type sinkHolder struct {
	mu   sync.RWMutex
	sink Sink
}

func (h *sinkHolder) set(s Sink) {
	h.mu.Lock()
	h.sink = s
	h.mu.Unlock()
}

func (h *sinkHolder) emit(key mediakey.Type) bool {
	h.mu.RLock()
	s := h.sink
	h.mu.RUnlock()
	if s == nil {
		return false
	}
	s(key)
	return true
}
