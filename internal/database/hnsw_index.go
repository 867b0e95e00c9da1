package database

import (
	"fmt"
	"sync"

	"github.com/coder/hnsw"
	"github.com/google/uuid"

	"github.com/kozaktomas/face-kiosk/internal/constants"
	"github.com/kozaktomas/face-kiosk/internal/embedding"
)

// CandidateIndex is an in-memory HNSW graph over candidate embeddings,
// used as a fast pre-filter for the broad search phase on large tenants.
// Results are approximate; callers re-score hits exactly against the
// acceptance threshold.
type CandidateIndex struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[string]
	dim   int
}

// NewCandidateIndex creates an empty index.
func NewCandidateIndex() *CandidateIndex {
	return &CandidateIndex{}
}

// BuildFromCustomers builds the index from scratch. Customers whose stored
// embedding cannot be decoded or has an unexpected dimension are skipped;
// a bad record must not abort the build.
func (ix *CandidateIndex) BuildFromCustomers(customers []Customer) (skipped int, err error) {
	g := hnsw.NewGraph[string]()
	g.M = constants.HNSWMaxNeighbors
	g.Ml = 1.0 / float64(constants.HNSWMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance

	dim := 0
	for _, c := range customers {
		vec, decErr := embedding.DecodeRaw(c.FaceEmbedding)
		if decErr != nil {
			skipped++
			continue
		}
		if dim == 0 {
			dim = len(vec)
		}
		if len(vec) != dim {
			skipped++
			continue
		}
		g.Add(hnsw.MakeNode(c.ID.String(), toFloat32(vec)))
	}

	ix.mu.Lock()
	ix.graph = g
	ix.dim = dim
	ix.mu.Unlock()
	return skipped, nil
}

// Add inserts or replaces a single candidate.
func (ix *CandidateIndex) Add(id uuid.UUID, vec []float64) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.graph == nil {
		g := hnsw.NewGraph[string]()
		g.M = constants.HNSWMaxNeighbors
		g.Ml = 1.0 / float64(constants.HNSWMaxNeighbors)
		g.Distance = hnsw.CosineDistance
		ix.graph = g
	}
	if ix.dim == 0 {
		ix.dim = len(vec)
	}
	if len(vec) != ix.dim {
		return fmt.Errorf("vector dimension %d does not match index dimension %d", len(vec), ix.dim)
	}
	ix.graph.Add(hnsw.MakeNode(id.String(), toFloat32(vec)))
	return nil
}

// Search returns the IDs of up to k nearest candidates, nearest first.
func (ix *CandidateIndex) Search(vec []float64, k int) []uuid.UUID {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.graph == nil || ix.graph.Len() == 0 {
		return nil
	}

	neighbors := ix.graph.Search(toFloat32(vec), k)
	ids := make([]uuid.UUID, 0, len(neighbors))
	for _, n := range neighbors {
		id, err := uuid.Parse(n.Key)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of indexed candidates.
func (ix *CandidateIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.graph == nil {
		return 0
	}
	return ix.graph.Len()
}

func toFloat32(vec []float64) []float32 {
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out
}
