package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
)

// DefaultTopK is the passage count used when Query is called with k <= 0.
const DefaultTopK = 5

// Index is an in-memory vector index over document chunks.
// Safe for concurrent queries; indexing takes the write lock.
type Index struct {
	embedder Embedder
	logger   *slog.Logger

	mu      sync.RWMutex
	chunks  []string
	vectors [][]float32
}

// NewIndex creates an empty index backed by the given embedder.
func NewIndex(embedder Embedder, logger *slog.Logger) (*Index, error) {
	if embedder == nil {
		return nil, ErrNoEmbedder
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		embedder: embedder,
		logger:   logger.With("component", "retrieval.index"),
	}, nil
}

// IndexDocument splits a document with the default chunking parameters
// and adds its chunks to the index.
func (x *Index) IndexDocument(ctx context.Context, text string) error {
	return x.IndexChunks(ctx, SplitText(text, DefaultChunkSize, DefaultChunkOverlap))
}

// IndexChunks embeds pre-split chunks and adds them to the index.
func (x *Index) IndexChunks(ctx context.Context, chunks []string) error {
	if len(chunks) == 0 {
		return nil
	}

	vectors, err := x.embedder.Embed(ctx, chunks)
	if err != nil {
		return fmt.Errorf("retrieval: embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("retrieval: embedder returned %d vectors for %d chunks",
			len(vectors), len(chunks))
	}

	x.mu.Lock()
	x.chunks = append(x.chunks, chunks...)
	x.vectors = append(x.vectors, vectors...)
	total := len(x.chunks)
	x.mu.Unlock()

	x.logger.Info("indexed document chunks",
		"added", len(chunks),
		"total", total,
	)
	return nil
}

// Query returns the k chunks most similar to the query.
func (x *Index) Query(ctx context.Context, query string, k int) ([]Passage, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = DefaultTopK
	}

	x.mu.RLock()
	empty := len(x.chunks) == 0
	x.mu.RUnlock()
	if empty {
		return nil, nil
	}

	vectors, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("retrieval: embedder returned %d vectors for query", len(vectors))
	}
	qv := vectors[0]

	x.mu.RLock()
	defer x.mu.RUnlock()

	passages := make([]Passage, len(x.chunks))
	for i, v := range x.vectors {
		passages[i] = Passage{
			Text:  x.chunks[i],
			Score: cosine(qv, v),
		}
	}

	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].Score > passages[j].Score
	})

	if len(passages) > k {
		passages = passages[:k]
	}
	return passages, nil
}

// Len returns the number of indexed chunks.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.chunks)
}

// cosine returns the cosine similarity of two vectors.
// Mismatched lengths or zero vectors score 0.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
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

// Verify Index implements Retriever at compile time.
var _ Retriever = (*Index)(nil)
