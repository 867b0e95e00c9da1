package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-kiosk/internal/pipeline"
)

// stubAnalyzer returns a canned pipeline outcome.
type stubAnalyzer struct {
	outcome *pipeline.Outcome
	err     error

	mu     sync.Mutex
	kiosks []uuid.UUID
	images [][]string
}

func (s *stubAnalyzer) Analyze(_ context.Context, kioskID uuid.UUID, images []string) (*pipeline.Outcome, error) {
	s.mu.Lock()
	s.kiosks = append(s.kiosks, kioskID)
	s.images = append(s.images, images)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.outcome, nil
}

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []struct {
		name    string
		payload any
	}
}

func (p *recordingPublisher) Publish(name string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, struct {
		name    string
		payload any
	}{name, payload})
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.name
	}
	return out
}

// testFrame returns a small base64 JPEG usable as a capture frame.
func testFrame(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode test frame: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// postJSON performs a request with a JSON body against a handler.
func postJSON(t *testing.T, handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

// decodeBody parses a JSON response body.
func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response body %q: %v", rec.Body.String(), err)
	}
	return out
}
