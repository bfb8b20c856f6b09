package recommend

import (
	"sync"
	"time"
)

const (
	defaultRecencyCapacity = 200
	defaultRecencyWindow   = 6 * time.Hour
)

type recencyEntry struct {
	id       int64
	servedAt time.Time
}

// RecencyWindow is a bounded FIFO of recently served movie ids, used to avoid
// repeating picks across nearby mood-analysis requests. Process-lifetime only.
type RecencyWindow struct {
	mu       sync.Mutex
	entries  []recencyEntry
	capacity int
	window   time.Duration
	now      func() time.Time
}

func NewRecencyWindow(capacity int, window time.Duration) *RecencyWindow {
	if capacity <= 0 {
		capacity = defaultRecencyCapacity
	}
	if window <= 0 {
		window = defaultRecencyWindow
	}
	return &RecencyWindow{capacity: capacity, window: window, now: time.Now}
}

// Seen reports whether id was served within the window.
func (w *RecencyWindow) Seen(id int64) bool {
	now := w.now()
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(now)
	for _, e := range w.entries {
		if e.id == id {
			return true
		}
	}
	return false
}

// Record appends ids with the current timestamp, dropping the oldest entries
// once capacity is exceeded.
func (w *RecencyWindow) Record(ids ...int64) {
	now := w.now()
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, id := range ids {
		w.entries = append(w.entries, recencyEntry{id: id, servedAt: now})
	}
	w.pruneLocked(now)
	if over := len(w.entries) - w.capacity; over > 0 {
		w.entries = w.entries[over:]
	}
}

// pruneLocked drops entries older than the window. Caller holds the lock.
func (w *RecencyWindow) pruneLocked(now time.Time) {
	cut := 0
	for cut < len(w.entries) && now.Sub(w.entries[cut].servedAt) >= w.window {
		cut++
	}
	if cut > 0 {
		w.entries = w.entries[cut:]
	}
}
