// Package matching scores an input face vector against candidate customers
// and selects the best match above the acceptance threshold.
package matching

import (
	"context"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-kiosk/internal/cache"
	"github.com/kozaktomas/face-kiosk/internal/database"
	"github.com/kozaktomas/face-kiosk/internal/embedding"
)

// Match is the winning candidate and its similarity score.
type Match struct {
	CustomerID uuid.UUID
	Similarity float64
}

// Matcher scores candidates concurrently and reduces to the best match.
type Matcher struct {
	threshold   float64
	embCache    *cache.Store
	embCacheTTL time.Duration
	maxWorkers  int
}

// NewMatcher creates a matcher. embCache may be shared with other pipeline
// components; it is only used for per-customer decoded vectors.
func NewMatcher(threshold float64, embCache *cache.Store, embCacheTTL time.Duration) *Matcher {
	return &Matcher{
		threshold:   threshold,
		embCache:    embCache,
		embCacheTTL: embCacheTTL,
		maxWorkers:  runtime.GOMAXPROCS(0),
	}
}

// FindBestMatch scores every candidate against the input vector and returns
// the one with the highest similarity at or above the threshold, or nil if
// none qualifies. Candidates whose stored embedding cannot be decoded or
// whose dimension differs from the input are skipped; a single bad record
// never aborts the search. Ties break toward the earlier candidate in the
// input order, keeping results deterministic.
func (m *Matcher) FindBestMatch(ctx context.Context, input []float64, candidates []database.Customer) *Match {
	if len(candidates) == 0 {
		return nil
	}

	// Fan out scoring; results land in an index-aligned slice so the
	// reduction below is a pure, ordered pass without shared accumulators.
	scores := make([]float64, len(candidates))
	valid := make([]bool, len(candidates))

	workers := m.maxWorkers
	if workers > len(candidates) {
		workers = len(candidates)
	}
	sem := make(chan struct{}, workers)

	var wg sync.WaitGroup
	for i := range candidates {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			vec, ok := m.resolveVector(&candidates[i])
			if !ok {
				return
			}
			if len(vec) != len(input) {
				log.Printf("candidate %s skipped: vector dimension %d does not match input %d",
					candidates[i].ID, len(vec), len(input))
				return
			}
			scores[i] = embedding.CosineSimilarity(input, vec)
			valid[i] = true
		}(i)
	}
	wg.Wait()

	// Reduce: strict > keeps the first-seen candidate on ties.
	best := -1
	for i := range candidates {
		if !valid[i] || scores[i] < m.threshold {
			continue
		}
		if best == -1 || scores[i] > scores[best] {
			best = i
		}
	}
	if best == -1 {
		return nil
	}
	return &Match{CustomerID: candidates[best].ID, Similarity: scores[best]}
}

// resolveVector returns the candidate's decoded embedding, reading through
// the per-customer cache. Decode failures are logged and reported as a
// skip, never as an abort.
func (m *Matcher) resolveVector(c *database.Customer) ([]float64, bool) {
	key := cache.EmbeddingKey(c.ID.String())
	if v, ok := m.embCache.Get(key); ok {
		if vec, ok := v.([]float64); ok {
			// Refresh the TTL on read-through.
			m.embCache.Set(key, vec, m.embCacheTTL)
			return vec, true
		}
	}

	vec, err := embedding.DecodeRaw(c.FaceEmbedding)
	if err != nil {
		log.Printf("candidate %s skipped: %v", c.ID, err)
		return nil, false
	}
	m.embCache.Set(key, vec, m.embCacheTTL)
	return vec, true
}
