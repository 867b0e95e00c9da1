package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kozaktomas/face-kiosk/internal/embedding"
)

func analyzeServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fast/analyze_faces" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return NewClient(server.URL, 5*time.Second, 2)
}

func TestAnalyzeFaceResult(t *testing.T) {
	client := analyzeServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Images) != 2 {
			t.Errorf("got %d images; want 2", len(req.Images))
		}
		w.Header().Set("Content-Type", "application/json")
		// The service returns the embedding as a JSON string holding the array.
		w.Write([]byte(`{"result":{"age":31,"gender":"Female","is_face":true,"encrypted_embedding":"[0.1, 0.2, 0.3]"}}`))
	})

	result, err := client.Analyze(context.Background(), []string{"img1", "img2"})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if result.Age != 31 || result.Gender != "Female" || !result.IsFace {
		t.Errorf("unexpected result: %+v", result)
	}

	vec, err := embedding.Decode(result.Embedding)
	if err != nil {
		t.Fatalf("wire embedding should decode: %v", err)
	}
	want := []float64{0.1, 0.2, 0.3}
	for i := range want {
		if vec[i] != want[i] {
			t.Errorf("vec[%d] = %v; want %v", i, vec[i], want[i])
		}
	}
}

func TestAnalyzeNoFace(t *testing.T) {
	// A 400 means no usable face in any frame, which is an outcome, not an error.
	client := analyzeServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"No valid faces detected in any of the images"}`, http.StatusBadRequest)
	})

	result, err := client.Analyze(context.Background(), []string{"img"})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if result.IsFace {
		t.Error("400 response should map to IsFace=false")
	}
	if result.Embedding != "" {
		t.Error("no-face result should carry no embedding")
	}
}

func TestAnalyzeRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	client := analyzeServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"result":{"age":40,"gender":"Male","is_face":true,"encrypted_embedding":[1.0,2.0]}}`))
	})

	result, err := client.Analyze(context.Background(), []string{"img"})
	if err != nil {
		t.Fatalf("Analyze should succeed on the third attempt: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d; want 3", calls.Load())
	}
	if result.Gender != "Male" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestAnalyzeExhaustedRetries(t *testing.T) {
	var calls atomic.Int32
	client := analyzeServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	})

	_, err := client.Analyze(context.Background(), []string{"img"})
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("error = %v; want ErrExtraction", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d; want 3 (1 + 2 retries)", calls.Load())
	}
}

func TestAnalyzeMalformedPayload(t *testing.T) {
	client := analyzeServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected":"shape"}`))
	})

	_, err := client.Analyze(context.Background(), []string{"img"})
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("malformed payload should yield ErrExtraction, got %v", err)
	}
}

func TestAnalyzeUnreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", time.Second, 0)
	_, err := client.Analyze(context.Background(), []string{"img"})
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("unreachable service should yield ErrExtraction, got %v", err)
	}
}
