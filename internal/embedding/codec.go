// Package embedding converts face embeddings between their wire form
// (base64 of a JSON numeric array) and in-memory vectors, and scores
// vectors against each other with normalized cosine similarity.
package embedding

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrDecode indicates a malformed embedding payload (bad base64 or JSON
// that is not a numeric array). Recoverable: callers skip the record or
// fail the single request.
var ErrDecode = errors.New("malformed embedding payload")

// Decode converts a wire-form embedding into a vector.
// The extraction service serializes the embedding as a JSON array, which
// the pipeline re-serializes as a JSON string before base64 encoding, so
// the decoded bytes may carry one level of stray quoting.
func Decode(wire string) ([]float64, error) {
	raw, err := base64.StdEncoding.DecodeString(wire)
	if err != nil {
		return nil, fmt.Errorf("%w: base64 decode: %v", ErrDecode, err)
	}
	return DecodeRaw(raw)
}

// DecodeRaw parses raw (already base64-decoded) embedding bytes into a vector.
func DecodeRaw(raw []byte) ([]float64, error) {
	s := strings.TrimSpace(string(raw))
	s = strings.TrimPrefix(s, `"`)
	s = strings.TrimSuffix(s, `"`)

	var vec []float64
	if err := json.Unmarshal([]byte(s), &vec); err != nil {
		return nil, fmt.Errorf("%w: json parse: %v", ErrDecode, err)
	}
	return vec, nil
}

// Encode converts a vector into wire form. Decode(Encode(v)) == v within
// floating point tolerance.
func Encode(vec []float64) string {
	raw, err := json.Marshal(vec)
	if err != nil {
		// A []float64 with finite values always marshals; NaN/Inf cannot
		// appear in decoded embeddings.
		panic("embedding: marshal vector: " + err.Error())
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// EncodeRaw converts raw embedding bytes (JSON array) into wire form.
func EncodeRaw(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

// Fingerprint derives a stable cache key from a wire-form embedding.
func Fingerprint(wire string) string {
	sum := sha256.Sum256([]byte(wire))
	return hex.EncodeToString(sum[:])
}

// CosineSimilarity normalizes both vectors to unit length and returns
// their dot product, in [-1, 1]. A zero-norm vector is used unmodified
// rather than dividing by zero. Vectors of different dimensions cannot
// be compared; the caller must check dimensions first.
func CosineSimilarity(a, b []float64) float64 {
	a = normalize(a)
	b = normalize(b)

	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot
}

// normalize returns the unit-length copy of v, or v itself if its norm is zero.
func normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return v
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
