package embedding

import (
	"encoding/base64"
	"errors"
	"math"
	"testing"
)

func TestDecodeEncodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		vec  []float64
	}{
		{"simple", []float64{1, 2, 3}},
		{"negative", []float64{-0.5, 0.25, -1.75}},
		{"single", []float64{42}},
		{"fractional", []float64{0.123456789, -0.987654321, 0.000001}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			decoded, err := Decode(Encode(tc.vec))
			if err != nil {
				t.Fatalf("Decode(Encode(v)) failed: %v", err)
			}
			if len(decoded) != len(tc.vec) {
				t.Fatalf("round trip length = %d; want %d", len(decoded), len(tc.vec))
			}
			for i := range decoded {
				if math.Abs(decoded[i]-tc.vec[i]) > 1e-9 {
					t.Errorf("round trip [%d] = %v; want %v", i, decoded[i], tc.vec[i])
				}
			}
		})
	}
}

func TestDecodeStrayQuotes(t *testing.T) {
	// The extraction pipeline may wrap the JSON array in an extra string layer.
	wire := base64.StdEncoding.EncodeToString([]byte(`"[1.5, -2.5, 3.0]"`))
	vec, err := Decode(wire)
	if err != nil {
		t.Fatalf("Decode with stray quotes failed: %v", err)
	}
	want := []float64{1.5, -2.5, 3.0}
	for i := range want {
		if vec[i] != want[i] {
			t.Errorf("vec[%d] = %v; want %v", i, vec[i], want[i])
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		wire string
	}{
		{"invalid base64", "not-base64!!!"},
		{"not json", base64.StdEncoding.EncodeToString([]byte("hello world"))},
		{"json object", base64.StdEncoding.EncodeToString([]byte(`{"a":1}`))},
		{"non-numeric array", base64.StdEncoding.EncodeToString([]byte(`["a","b"]`))},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.wire)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, ErrDecode) {
				t.Errorf("error = %v; want ErrDecode", err)
			}
		})
	}
}

func TestCosineSimilaritySelf(t *testing.T) {
	vecs := [][]float64{
		{1, 0, 0},
		{3, 4},
		{-1, -2, -3, -4},
		{0.1, 0.2, 0.3},
	}
	for _, v := range vecs {
		if got := CosineSimilarity(v, v); math.Abs(got-1.0) > 1e-9 {
			t.Errorf("CosineSimilarity(v, v) = %v; want 1.0 for %v", got, v)
		}
	}
}

func TestCosineSimilaritySymmetry(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{-4, 5, 0.5}
	if CosineSimilarity(a, b) != CosineSimilarity(b, a) {
		t.Errorf("similarity is not symmetric: %v vs %v",
			CosineSimilarity(a, b), CosineSimilarity(b, a))
	}
}

func TestCosineSimilarityKnownValues(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"parallel scaled", []float64{1, 2}, []float64{2, 4}, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CosineSimilarity(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("CosineSimilarity(%v, %v) = %v; want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestCosineSimilarityZeroNorm(t *testing.T) {
	// Zero vectors must not divide by zero; the dot product with anything is 0.
	zero := []float64{0, 0, 0}
	if got := CosineSimilarity(zero, []float64{1, 2, 3}); got != 0 {
		t.Errorf("similarity with zero vector = %v; want 0", got)
	}
	if got := CosineSimilarity(zero, zero); got != 0 {
		t.Errorf("similarity of zero vectors = %v; want 0", got)
	}
}

func TestFingerprintStable(t *testing.T) {
	wire := Encode([]float64{1, 2, 3})
	if Fingerprint(wire) != Fingerprint(wire) {
		t.Error("fingerprint of the same wire string must be stable")
	}
	other := Encode([]float64{1, 2, 4})
	if Fingerprint(wire) == Fingerprint(other) {
		t.Error("different embeddings should not share a fingerprint")
	}
}
