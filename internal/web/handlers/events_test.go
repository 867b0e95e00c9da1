package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/face-kiosk/internal/events"
)

func TestStreamWireFormat(t *testing.T) {
	broadcaster := events.New(time.Hour)
	defer broadcaster.Close()
	h := NewEventsHandler(broadcaster)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Stream(rec, req)
	}()

	// The subscriber registers synchronously before the connect event is
	// written, but give the handler a moment to reach its loop.
	for i := 0; broadcaster.Count() == 0 && i < 100; i++ {
		time.Sleep(time.Millisecond)
	}
	broadcaster.Publish(events.EventWaitingStatus, map[string]any{"waiting": true})
	time.Sleep(10 * time.Millisecond)
	cancel()
	<-done

	body := rec.Body.String()
	if rec.Header().Get("Content-Type") != "text/event-stream" {
		t.Errorf("Content-Type = %q; want text/event-stream", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(body, "event: connect\ndata: {\"status\":\"connected\"}\n\n") {
		t.Errorf("missing connect event in %q", body)
	}
	if !strings.Contains(body, "event: waitingStatus\ndata: {\"waiting\":true}\n\n") {
		t.Errorf("missing waitingStatus event in %q", body)
	}
}

func TestStreamEndsOnBroadcasterClose(t *testing.T) {
	broadcaster := events.New(time.Hour)
	h := NewEventsHandler(broadcaster)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Stream(rec, req)
	}()

	for i := 0; broadcaster.Count() == 0 && i < 100; i++ {
		time.Sleep(time.Millisecond)
	}
	broadcaster.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream should end when the broadcaster shuts down")
	}
}
