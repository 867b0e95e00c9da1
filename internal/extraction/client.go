// Package extraction calls the external face analysis service and
// normalizes its response into the pipeline's wire format.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/kozaktomas/face-kiosk/internal/embedding"
)

// ErrExtraction indicates the extraction service was unreachable or
// returned a malformed payload after retries were exhausted.
var ErrExtraction = errors.New("extraction service failure")

// AnalysisResult is the outcome of analyzing one burst of capture frames.
// Embedding is the wire form (base64 of the JSON numeric array) of the
// detected face's embedding; empty when no face was found.
type AnalysisResult struct {
	Age       int    `json:"age"`
	Gender    string `json:"gender"`
	IsFace    bool   `json:"isFace"`
	Embedding string `json:"embedding,omitempty"`
}

// Fingerprint returns the cache key component for this result's embedding.
func (r *AnalysisResult) Fingerprint() string {
	return embedding.Fingerprint(r.Embedding)
}

type analyzeRequest struct {
	Images []string `json:"images"`
}

type analyzeResponse struct {
	Result *struct {
		Age    int    `json:"age"`
		Gender string `json:"gender"`
		IsFace bool   `json:"is_face"`
		// The service serializes the embedding itself; keep the raw JSON
		// so the wire form round-trips byte for byte.
		EncryptedEmbedding json.RawMessage `json:"encrypted_embedding"`
	} `json:"result"`
}

// Client talks to the face analysis service.
type Client struct {
	baseURL string
	retries int
	client  *http.Client
}

// NewClient creates an extraction client. retries is the number of
// additional attempts after the first failure.
func NewClient(baseURL string, timeout time.Duration, retries int) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		retries: retries,
		client:  &http.Client{Timeout: timeout},
	}
}

// Analyze submits capture frames for face analysis. A response reporting no
// usable face yields IsFace=false, not an error. Transport failures and
// malformed payloads are retried; once attempts are exhausted the last
// error is returned wrapped in ErrExtraction.
func (c *Client) Analyze(ctx context.Context, images []string) (*AnalysisResult, error) {
	body, err := json.Marshal(analyzeRequest{Images: images})
	if err != nil {
		return nil, fmt.Errorf("marshal analyze request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			log.Printf("retrying face analysis (attempt %d/%d): %v", attempt+1, c.retries+1, lastErr)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrExtraction, ctx.Err())
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		result, retryable, err := c.analyzeOnce(ctx, body)
		if err == nil {
			return result, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// analyzeOnce performs a single request. The second return value reports
// whether the failure is worth retrying.
func (c *Client) analyzeOnce(ctx context.Context, body []byte) (*AnalysisResult, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/fast/analyze_faces", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("create analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("%w: read response: %v", ErrExtraction, err)
	}

	// The service answers 400 when none of the frames contained a usable
	// face. That is a valid outcome, not a failure.
	if resp.StatusCode == http.StatusBadRequest {
		return &AnalysisResult{IsFace: false}, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, true, fmt.Errorf("%w: status %d: %s", ErrExtraction, resp.StatusCode, respBody)
	}

	var parsed analyzeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, true, fmt.Errorf("%w: parse response: %v", ErrExtraction, err)
	}
	if parsed.Result == nil {
		return nil, true, fmt.Errorf("%w: response missing result", ErrExtraction)
	}

	result := &AnalysisResult{
		Age:    parsed.Result.Age,
		Gender: parsed.Result.Gender,
		IsFace: parsed.Result.IsFace,
	}
	if result.IsFace {
		if len(parsed.Result.EncryptedEmbedding) == 0 {
			return nil, true, fmt.Errorf("%w: face result missing embedding", ErrExtraction)
		}
		result.Embedding = embedding.EncodeRaw(parsed.Result.EncryptedEmbedding)
	}
	return result, false, nil
}
