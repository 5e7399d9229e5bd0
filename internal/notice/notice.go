// Package notice holds a transient confirmation message that clears itself.
package notice

import (
	"sync"
	"time"
)

const DefaultDuration = 3 * time.Second

// Notice shows one message at a time. A newer message replaces the current
// one and restarts the clock; the older timer can no longer clear it.
type Notice struct {
	duration time.Duration

	mu      sync.Mutex
	message string
	gen     uint64
	timer   *time.Timer
}

func New(duration time.Duration) *Notice {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Notice{duration: duration}
}

func (n *Notice) Show(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.gen++
	gen := n.gen
	n.message = message
	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(n.duration, func() {
		n.expire(gen)
	})
}

// Current returns the visible message, or "" once it has cleared.
func (n *Notice) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.message
}

// Clear hides the message immediately.
func (n *Notice) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.gen++
	n.message = ""
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}

func (n *Notice) expire(gen uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if gen != n.gen {
		return
	}
	n.message = ""
	n.timer = nil
}
