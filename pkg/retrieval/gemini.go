package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultEmbedModel is the Gemini embedding model.
const DefaultEmbedModel = "embedding-001"

// GeminiEmbedder embeds texts with Google's Gemini embedding API.
type GeminiEmbedder struct {
	client *genai.Client
	model  *genai.EmbeddingModel
	logger *slog.Logger
}

// NewGeminiEmbedder creates an embedder backed by the given model.
// An empty model name selects DefaultEmbedModel.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string, logger *slog.Logger) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("retrieval: gemini API key required")
	}
	if model == "" {
		model = DefaultEmbedModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("retrieval: create gemini client: %w", err)
	}

	return &GeminiEmbedder{
		client: client,
		model:  client.EmbeddingModel(model),
		logger: logger.With("component", "retrieval.gemini"),
	}, nil
}

// Embed returns one vector per input text using a single batch request.
func (g *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batch := g.model.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := g.model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("retrieval: batch embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("retrieval: got %d embeddings for %d texts",
			len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		vectors[i] = e.Values
	}

	g.logger.Debug("embedded texts", "count", len(texts))
	return vectors, nil
}

// Close releases the underlying API client.
func (g *GeminiEmbedder) Close() error {
	return g.client.Close()
}

// Verify GeminiEmbedder implements Embedder at compile time.
var _ Embedder = (*GeminiEmbedder)(nil)
