// Package events maintains live subscriber connections and pushes named
// events to all of them. Broadcast is best-effort and at-most-once per
// subscriber per event; a subscriber that cannot keep up is pruned rather
// than blocked on.
package events

import (
	"log"
	"sync"
	"time"

	"github.com/kozaktomas/face-kiosk/internal/constants"
)

// Event names pushed over the subscriber channel.
const (
	EventConnect             = "connect"
	EventKeepAlive           = "keepAlive"
	EventWaitingStatus       = "waitingStatus"
	EventFaceDetectionResult = "faceDetectionResult"
	EventAnalysisResult      = "analysisResult"
)

// Event is a named message with a JSON-serializable payload.
type Event struct {
	Name    string
	Payload any
}

// Subscriber is one open push connection.
type Subscriber struct {
	id uint64
	ch chan Event
}

// Events returns the subscriber's receive channel. The channel is closed
// when the subscriber is unsubscribed, pruned, or the broadcaster shuts down.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Broadcaster fans events out to every registered subscriber.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscriber
	nextID uint64
	closed bool

	stopKeepAlive chan struct{}
	stopOnce      sync.Once
}

// New creates a broadcaster and starts its keep-alive timer. A keep-alive
// event goes to all open connections on every interval tick so dead ones
// surface and get pruned.
func New(keepAliveInterval time.Duration) *Broadcaster {
	b := &Broadcaster{
		subs:          make(map[uint64]*Subscriber),
		stopKeepAlive: make(chan struct{}),
	}
	go b.keepAliveLoop(keepAliveInterval)
	return b
}

func (b *Broadcaster) keepAliveLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stopKeepAlive:
			return
		case <-ticker.C:
			b.Publish(EventKeepAlive, map[string]any{"status": "keep-alive"})
		}
	}
}

// Subscribe registers a new connection and returns its handle.
func (b *Broadcaster) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscriber{
		id: b.nextID,
		ch: make(chan Event, constants.EventChannelBuffer),
	}
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes a connection and closes its channel.
func (b *Broadcaster) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub.id]; ok {
		delete(b.subs, sub.id)
		close(sub.ch)
	}
}

// Publish broadcasts an event to every open connection. A subscriber whose
// buffer is full is dropped from the registry immediately; publishing never
// blocks on a slow subscriber and a failing connection only affects itself.
// The read lock is held for the whole send loop so a channel can never be
// closed while a send to it is in flight; closes happen only under the
// write lock.
func (b *Broadcaster) Publish(name string, payload any) {
	event := Event{Name: name, Payload: payload}

	b.mu.RLock()
	var dead []uint64
	for id, sub := range b.subs {
		select {
		case sub.ch <- event:
		default:
			dead = append(dead, id)
		}
	}
	b.mu.RUnlock()

	if len(dead) == 0 {
		return
	}

	b.mu.Lock()
	for _, id := range dead {
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub.ch)
		}
	}
	remaining := len(b.subs)
	b.mu.Unlock()
	log.Printf("pruned %d dead subscribers, %d remaining", len(dead), remaining)
}

// Count returns the number of open connections.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close stops the keep-alive timer and completes every open connection.
func (b *Broadcaster) Close() {
	b.stopOnce.Do(func() {
		close(b.stopKeepAlive)
	})

	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
