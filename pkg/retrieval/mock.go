package retrieval

import (
	"context"
	"sync"
)

// MockEmbedder implements Embedder for testing.
type MockEmbedder struct {
	// EmbedFunc is called when Embed is invoked.
	// If nil, returns a deterministic character-histogram vector per text.
	EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

	mu    sync.Mutex
	calls [][]string
}

// NewMockEmbedder creates a mock with deterministic vectors: texts that
// share characters score closer than unrelated texts, which is enough
// for similarity ranking in tests.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{}
}

// Embed calls EmbedFunc and records the call.
func (m *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	recorded := make([]string, len(texts))
	copy(recorded, texts)
	m.calls = append(m.calls, recorded)
	m.mu.Unlock()

	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, texts)
	}

	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 128)
		for _, r := range t {
			v[int(r)%128]++
		}
		vectors[i] = v
	}
	return vectors, nil
}

// Close is a no-op.
func (m *MockEmbedder) Close() error {
	return nil
}

// Calls returns the text batches passed to Embed, in order.
func (m *MockEmbedder) Calls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([][]string, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of Embed invocations.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Static implements Retriever with fixed passages, for testing callers.
type Static struct {
	// Passages are returned verbatim from every Query.
	Passages []Passage

	// Err, if set, is returned from every Query.
	Err error
}

// Query returns the configured passages or error.
func (s *Static) Query(ctx context.Context, query string, k int) ([]Passage, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if k > 0 && len(s.Passages) > k {
		return s.Passages[:k], nil
	}
	return s.Passages, nil
}

// Verify interfaces at compile time.
var (
	_ Embedder  = (*MockEmbedder)(nil)
	_ Retriever = (*Static)(nil)
)
