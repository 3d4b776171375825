// Package index provides an in-memory vector index over medical knowledge
// chunks. It supports concurrent nearest-neighbour searches; writes take an
// exclusive lock and block searches for their duration.
package index

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

// ErrEmptyIndex is returned by Search when no chunks have been indexed.
var ErrEmptyIndex = errors.New("index: no chunks indexed")

// Chunk is a bounded span of source medical text stored with its embedding.
// Chunks are immutable once indexed.
type Chunk struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Embedding  []float32         `json:"-"`
	Source     string            `json:"source"`
	ChunkIndex int               `json:"chunk_index"`
	EntityTags []string          `json:"entity_tags,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Scored pairs a chunk with its similarity to a query vector.
type Scored struct {
	Chunk Chunk
	Score float64
}

// Index is a flat in-memory vector store with a fixed embedding dimension.
type Index struct {
	mu     sync.RWMutex
	dim    int
	chunks []Chunk
}

// New creates an empty index for embeddings of the given dimension.
func New(dim int) *Index {
	return &Index{dim: dim}
}

// Dim returns the embedding dimension the index was created with.
func (ix *Index) Dim() int { return ix.dim }

// Len returns the number of indexed chunks.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks)
}

// Add appends chunks to the index. It fails without indexing anything if any
// chunk has an embedding of the wrong dimension or empty content.
func (ix *Index) Add(chunks []Chunk) error {
	for _, c := range chunks {
		if len(c.Embedding) != ix.dim {
			return fmt.Errorf("index: chunk %s: embedding dimension %d, want %d", c.ID, len(c.Embedding), ix.dim)
		}
		if c.Content == "" {
			return fmt.Errorf("index: chunk %s: empty content", c.ID)
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.chunks = append(ix.chunks, chunks...)
	return nil
}

// Search returns the k chunks most similar to the query vector by cosine
// similarity, ties broken by insertion order. k is clamped to the number of
// indexed chunks.
func (ix *Index) Search(query []float32, k int) ([]Scored, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("index: query dimension %d, want %d", len(query), ix.dim)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.chunks) == 0 {
		return nil, ErrEmptyIndex
	}
	if k <= 0 {
		return nil, nil
	}
	if k > len(ix.chunks) {
		k = len(ix.chunks)
	}

	scored := make([]Scored, len(ix.chunks))
	for i, c := range ix.chunks {
		scored[i] = Scored{Chunk: c, Score: cosineSimilarity(query, c.Embedding)}
	}

	// Stable keeps insertion order for equal scores.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	return scored[:k], nil
}

// Remove logically deletes chunks by ID. The flat layout has no point
// deletion, so this rebuilds the retained set: O(n) and exclusive.
func (ix *Index) Remove(ids []string) int {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	retained := ix.chunks[:0:0]
	removed := 0
	for _, c := range ix.chunks {
		if _, ok := drop[c.ID]; ok {
			removed++
			continue
		}
		retained = append(retained, c)
	}
	ix.chunks = retained
	return removed
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
