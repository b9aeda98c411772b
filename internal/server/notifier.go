package server

import (
	"sync"
	"time"
)

// ReloadEvent reports one fixture reload attempt.
type ReloadEvent struct {
	Path  string    `json:"path"`
	At    time.Time `json:"at"`
	Error string    `json:"error,omitempty"`
}

// Notifier broadcasts reload events to all subscribed listeners.
// A slow listener misses events rather than blocking the watcher.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan ReloadEvent]struct{}
}

// NewNotifier creates a new Notifier instance.
func NewNotifier() *Notifier {
	return &Notifier{
		listeners: make(map[chan ReloadEvent]struct{}),
	}
}

// Subscribe returns a channel that receives reload events.
// The caller must call Unsubscribe when done to prevent goroutine leaks.
func (n *Notifier) Subscribe() chan ReloadEvent {
	ch := make(chan ReloadEvent, 1)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan ReloadEvent) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// Broadcast sends ev to all listeners without blocking.
func (n *Notifier) Broadcast(ev ReloadEvent) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- ev:
		default:
			// Channel full, skip
		}
	}
}

// Listeners returns the number of subscribers.
func (n *Notifier) Listeners() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}
