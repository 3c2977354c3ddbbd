// Package retrieval grounds assistant replies in a reference document.
//
// A document is split into overlapping chunks, each chunk is embedded,
// and queries are answered by cosine similarity over the in-memory
// vectors. The production embedder is Google's embedding-001 model via
// the Gemini API; any Embedder implementation can be substituted.
package retrieval

import (
	"context"
	"errors"
)

// Passage is one retrieved chunk with its similarity score.
type Passage struct {
	// Text is the chunk content.
	Text string

	// Score is the cosine similarity to the query, higher is closer.
	Score float64
}

// Retriever finds the document passages most relevant to a query.
type Retriever interface {
	// Query returns up to k passages ranked by relevance.
	// Returns an empty slice when nothing is indexed.
	Query(ctx context.Context, query string, k int) ([]Passage, error)
}

// Embedder converts texts to dense vectors.
type Embedder interface {
	// Embed returns one vector per input text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}

// Sentinel errors.
var (
	// ErrEmptyQuery is returned when Query is called with an empty string.
	ErrEmptyQuery = errors.New("retrieval: empty query")

	// ErrNoEmbedder is returned when an index is built without an embedder.
	ErrNoEmbedder = errors.New("retrieval: embedder required")
)
