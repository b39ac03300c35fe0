package simulation

import (
	"context"
	"sync"

	"github.com/LeonardoBeccarini/farmsim/internal/model/messages"
)

const DefaultHistorySize = 500

// History keeps the most recent snapshots in a ring buffer.
type History struct {
	mu   sync.RWMutex
	buf  []messages.Snapshot
	next int
	full bool
}

var _ Sink = (*History)(nil)

func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{buf: make([]messages.Snapshot, size)}
}

func (h *History) Consume(_ context.Context, snap messages.Snapshot) error {
	h.mu.Lock()
	h.buf[h.next] = snap
	h.next = (h.next + 1) % len(h.buf)
	if h.next == 0 {
		h.full = true
	}
	h.mu.Unlock()
	return nil
}

// Samples returns the stored snapshots, oldest first.
func (h *History) Samples() []messages.Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.full {
		out := make([]messages.Snapshot, h.next)
		copy(out, h.buf[:h.next])
		return out
	}
	out := make([]messages.Snapshot, 0, len(h.buf))
	out = append(out, h.buf[h.next:]...)
	out = append(out, h.buf[:h.next]...)
	return out
}

// Last returns the newest snapshot, if any.
func (h *History) Last() (messages.Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.full && h.next == 0 {
		return messages.Snapshot{}, false
	}
	i := (h.next - 1 + len(h.buf)) % len(h.buf)
	return h.buf[i], true
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.full {
		return len(h.buf)
	}
	return h.next
}
