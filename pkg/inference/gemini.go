package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const providerGemini = "gemini"

// Gemini implements the Provider interface for Google's Gemini API.
// Note: Gemini uses a different API format than OpenAI, so we implement it directly.
// It serves as the fallback chat provider when the primary OpenAI-compatible
// endpoint is down.
type Gemini struct {
	apiKey string
	config *Config
	http   *http.Client
	logger *slog.Logger
}

// NewGemini creates a Gemini provider.
func NewGemini(opts ...Option) (*Gemini, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	cfg.Model = "gemini-2.0-flash"
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerGemini, ErrNoAPIKey)
	}

	return &Gemini{
		apiKey: cfg.APIKey,
		config: cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: cfg.Logger.With("component", "inference.gemini"),
	}, nil
}

// Chat generates a chat completion using Gemini.
func (g *Gemini) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = g.config.Model
	}

	// Convert messages to Gemini format
	contents := g.convertMessages(req.Messages)

	payload := map[string]interface{}{
		"contents": contents,
		"generationConfig": map[string]interface{}{
			"temperature":     g.config.Temperature,
			"maxOutputTokens": req.MaxTokens,
		},
	}

	if req.MaxTokens == 0 {
		payload["generationConfig"].(map[string]interface{})["maxOutputTokens"] = g.config.MaxTokens
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.config.BaseURL, model, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, g.parseError(resp)
	}

	var result geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, WrapError(providerGemini, fmt.Errorf("decode response: %w", err))
	}

	if result.Error.Message != "" {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    result.Error.Message,
			Provider:   providerGemini,
		}
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, WrapError(providerGemini, fmt.Errorf("no response content"))
	}

	return &ChatResponse{
		Message: Message{
			Role:    RoleAssistant,
			Content: result.Candidates[0].Content.Parts[0].Text,
		},
		FinishReason: result.Candidates[0].FinishReason,
		Model:        model,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

// Stream is not yet implemented for Gemini.
func (g *Gemini) Stream(ctx context.Context, req *ChatRequest) (Stream, error) {
	return nil, WrapError(providerGemini, fmt.Errorf("streaming not yet implemented"))
}

// Embed is not supported by this implementation. Embedding traffic goes
// through the retrieval package's native Gemini embedder instead.
func (g *Gemini) Embed(ctx context.Context, req *EmbedRequest) (*EmbedResponse, error) {
	return nil, WrapError(providerGemini, ErrEmbeddingsNotSupported)
}

// Capabilities returns Gemini's capabilities.
func (g *Gemini) Capabilities() Capabilities {
	return Capabilities{
		Chat:       true,
		Streaming:  false, // Not yet implemented
		Embeddings: false,
	}
}

// Health checks API connectivity.
func (g *Gemini) Health(ctx context.Context) error {
	// Simple test call
	_, err := g.Chat(ctx, &ChatRequest{
		Messages:  []Message{NewUserMessage("test")},
		MaxTokens: 1,
	})
	return err
}

// Close releases resources.
func (g *Gemini) Close() error {
	g.http.CloseIdleConnections()
	return nil
}

// convertMessages converts our Message format to Gemini's format.
func (g *Gemini) convertMessages(msgs []Message) []map[string]interface{} {
	var contents []map[string]interface{}

	for _, msg := range msgs {
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}

		parts := []map[string]interface{}{
			{"text": msg.Content},
		}

		contents = append(contents, map[string]interface{}{
			"role":  role,
			"parts": parts,
		})
	}

	return contents
}

// parseError reads and parses an error response.
func (g *Gemini) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		} `json:"error"`
	}

	message := string(body)
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Provider:   providerGemini,
	}
}

// geminiResponse is the Gemini API response format.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Verify Gemini implements Provider at compile time.
var _ Provider = (*Gemini)(nil)
