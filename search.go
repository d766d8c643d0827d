package vecdb

import (
	"container/heap"
	"context"
	"maps"
	"sort"
	"time"

	"github.com/vecdb-io/vecdb/distance"
)

// SearchResult is one scored match from a search.
type SearchResult struct {
	ID       string
	Score    float32
	Metadata map[string]string
}

// candidate pairs a score with the embedding it came from during the scan.
type candidate struct {
	embedding *Embedding
	score     float32
}

// candidateHeap keeps the current top-k with the worst candidate at the root,
// so each new candidate competes against the weakest survivor in O(log k).
type candidateHeap struct {
	items         []candidate
	lowerIsBetter bool
}

func (h *candidateHeap) Len() int { return len(h.items) }

// Less orders worst-first. Ties keep the later insertion at the root so the
// earlier-inserted embedding survives eviction.
func (h *candidateHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.score != b.score {
		if h.lowerIsBetter {
			return a.score > b.score
		}
		return a.score < b.score
	}
	return a.embedding.ord > b.embedding.ord
}

func (h *candidateHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *candidateHeap) Push(x any) { h.items = append(h.items, x.(candidate)) }

func (h *candidateHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

// beats reports whether the new candidate should replace the heap's root.
func (h *candidateHeap) beats(c candidate) bool {
	root := h.items[0]
	if c.score != root.score {
		if h.lowerIsBetter {
			return c.score < root.score
		}
		return c.score > root.score
	}
	return c.embedding.ord < root.embedding.ord
}

// byRank sorts results best-first, keeping the parallel ord slice aligned
// for insertion-order tie-breaking.
type byRank struct {
	results       []SearchResult
	ords          []int
	lowerIsBetter bool
}

func (s *byRank) Len() int { return len(s.results) }

func (s *byRank) Less(i, j int) bool {
	if s.results[i].Score != s.results[j].Score {
		if s.lowerIsBetter {
			return s.results[i].Score < s.results[j].Score
		}
		return s.results[i].Score > s.results[j].Score
	}
	return s.ords[i] < s.ords[j]
}

func (s *byRank) Swap(i, j int) {
	s.results[i], s.results[j] = s.results[j], s.results[i]
	s.ords[i], s.ords[j] = s.ords[j], s.ords[i]
}

// Search scans every embedding and returns the k best matches ordered
// best-first. For dot and cosine higher scores rank first; for euclidean the
// score is the squared L2 distance and lower ranks first. Ties are broken by
// insertion order. Fewer than k stored embeddings yield fewer than k results.
func (c *Collection) Search(ctx context.Context, query []float32, k int) ([]SearchResult, error) {
	start := time.Now()

	if k <= 0 {
		c.db.logger.LogSearch(ctx, c.name, k, 0, ErrInvalidK)
		return nil, ErrInvalidK
	}

	if len(query) != c.dimension {
		err := &ErrDimensionMismatch{Expected: c.dimension, Actual: len(query)}
		c.db.logger.LogSearch(ctx, c.name, k, 0, err)
		return nil, err
	}

	q := query
	if c.metric.Normalizes() {
		normalized, ok := distance.NormalizeL2Copy(query)
		if !ok {
			c.db.logger.LogSearch(ctx, c.name, k, 0, ErrZeroVector)
			return nil, ErrZeroVector
		}
		q = normalized
	}

	c.mu.RLock()

	h := &candidateHeap{
		items:         make([]candidate, 0, min(k, len(c.embeddings))),
		lowerIsBetter: c.metric.LowerIsBetter(),
	}

	scanned := 0
	for _, e := range c.embeddings {
		scanned++
		cand := candidate{embedding: e, score: c.scoreFn(q, e.Vector)}
		if h.Len() < k {
			heap.Push(h, cand)
		} else if h.beats(cand) {
			h.items[0] = cand
			heap.Fix(h, 0)
		}
	}

	// Copy what the results need before releasing the lock; the heap items
	// point at live embeddings.
	results := make([]SearchResult, h.Len())
	ords := make([]int, h.Len())
	for i, item := range h.items {
		results[i] = SearchResult{
			ID:       item.embedding.ID,
			Score:    item.score,
			Metadata: maps.Clone(item.embedding.Metadata),
		}
		ords[i] = item.embedding.ord
	}

	c.mu.RUnlock()

	// Sort best-first outside the lock; the heap only guarantees the worst
	// element at the root.
	lower := c.metric.LowerIsBetter()
	sort.Sort(&byRank{results: results, ords: ords, lowerIsBetter: lower})

	c.db.logger.LogSearch(ctx, c.name, k, len(results), nil)
	c.db.metrics.RecordSearch(c.name, scanned, time.Since(start))
	return results, nil
}
