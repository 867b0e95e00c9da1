package events

import (
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/face-kiosk/internal/constants"
)

func newTestBroadcaster(t *testing.T) *Broadcaster {
	t.Helper()
	b := New(time.Hour) // keep-alive never fires during a test
	t.Cleanup(b.Close)
	return b
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := newTestBroadcaster(t)
	first := b.Subscribe()
	second := b.Subscribe()

	b.Publish(EventWaitingStatus, map[string]any{"waiting": true})

	for _, sub := range []*Subscriber{first, second} {
		select {
		case ev := <-sub.Events():
			if ev.Name != EventWaitingStatus {
				t.Errorf("event name = %q; want %q", ev.Name, EventWaitingStatus)
			}
		default:
			t.Error("subscriber did not receive the event")
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := newTestBroadcaster(t)
	sub := b.Subscribe()
	b.Unsubscribe(sub)

	if _, open := <-sub.Events(); open {
		t.Error("channel should be closed after unsubscribe")
	}
	if b.Count() != 0 {
		t.Errorf("count = %d; want 0", b.Count())
	}

	// A second unsubscribe of the same handle is a no-op.
	b.Unsubscribe(sub)
}

func TestPublishPrunesFullSubscribers(t *testing.T) {
	b := newTestBroadcaster(t)
	stuck := b.Subscribe()
	healthy := b.Subscribe()

	// Fill the stuck subscriber's buffer without draining it.
	for range constants.EventChannelBuffer {
		b.Publish(EventKeepAlive, nil)
	}
	drain(healthy)

	// The next publish overflows the stuck subscriber and prunes it.
	b.Publish(EventWaitingStatus, map[string]any{"waiting": false})

	if b.Count() != 1 {
		t.Errorf("count = %d; want 1 after pruning", b.Count())
	}

	// The pruned subscriber still drains its buffer and then completes.
	buffered := 0
	for range stuck.Events() {
		buffered++
	}
	if buffered != constants.EventChannelBuffer {
		t.Errorf("pruned subscriber drained %d events; want %d", buffered, constants.EventChannelBuffer)
	}
	select {
	case ev := <-healthy.Events():
		if ev.Name != EventWaitingStatus {
			t.Errorf("event name = %q; want %q", ev.Name, EventWaitingStatus)
		}
	default:
		t.Error("healthy subscriber should still receive events")
	}
}

func TestCloseCompletesSubscribers(t *testing.T) {
	b := New(time.Hour)
	sub := b.Subscribe()
	b.Close()

	if _, open := <-sub.Events(); open {
		t.Error("channel should be closed after broadcaster close")
	}
	if late := b.Subscribe(); late != nil {
		if _, open := <-late.Events(); open {
			t.Error("subscribing after close should return a completed subscriber")
		}
	}

	// Close is idempotent.
	b.Close()
}

func TestKeepAliveEvents(t *testing.T) {
	b := New(10 * time.Millisecond)
	defer b.Close()
	sub := b.Subscribe()

	select {
	case ev := <-sub.Events():
		if ev.Name != EventKeepAlive {
			t.Errorf("event name = %q; want %q", ev.Name, EventKeepAlive)
		}
		payload, ok := ev.Payload.(map[string]any)
		if !ok || payload["status"] != "keep-alive" {
			t.Errorf("unexpected keep-alive payload: %+v", ev.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no keep-alive received within a second")
	}
}

// Concurrent publishers racing subscriber churn must never send on a closed
// channel; every close happens under the write lock while sends hold the
// read lock.
func TestPublishConcurrentWithChurn(t *testing.T) {
	b := New(time.Hour)
	defer b.Close()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					b.Publish(EventKeepAlive, nil)
				}
			}
		}()
	}

	// Subscribers that never drain fill up and get pruned mid-publish;
	// explicit unsubscribes race the pruning path.
	for range 200 {
		subs := make([]*Subscriber, 0, 8)
		for range 8 {
			subs = append(subs, b.Subscribe())
		}
		for _, sub := range subs {
			b.Unsubscribe(sub)
		}
	}

	close(stop)
	wg.Wait()
}

func drain(sub *Subscriber) {
	for {
		select {
		case <-sub.Events():
		default:
			return
		}
	}
}
