package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientChat(t *testing.T) {
	// Mock server
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected /chat/completions, got %s", r.URL.Path)
		}
		if r.Method != "POST" {
			t.Errorf("Expected POST, got %s", r.Method)
		}

		// Check authorization header
		auth := r.Header.Get("Authorization")
		if auth != "Bearer test-key" {
			t.Errorf("Expected Bearer test-key, got %s", auth)
		}

		// Return mock response
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":    "test-id",
			"model": "llama-3.1-8b-instant",
			"choices": []map[string]interface{}{
				{
					"message": map[string]interface{}{
						"role":    "assistant",
						"content": "Hello! How can I help?",
					},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]int{
				"prompt_tokens":     10,
				"completion_tokens": 5,
				"total_tokens":      15,
			},
		})
	}))
	defer server.Close()

	// Create client
	client, err := NewClient(
		WithBaseURL(server.URL),
		WithAPIKey("test-key"),
		WithModel("llama-3.1-8b-instant"),
	)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	// Test chat
	ctx := context.Background()
	resp, err := client.Chat(ctx, &ChatRequest{
		Messages: []Message{
			NewUserMessage("Hello"),
		},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if resp.Message.Content != "Hello! How can I help?" {
		t.Errorf("Unexpected content: %s", resp.Message.Content)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("Expected finish_reason 'stop', got %s", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("Expected 15 tokens, got %d", resp.Usage.TotalTokens)
	}
}

func TestClientStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]interface{}
		json.NewDecoder(r.Body).Decode(&reqBody)
		if reqBody["stream"] != true {
			t.Error("Expected stream=true in request")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`data: {"choices":[{"delta":{"content":"Hel"},"finish_reason":""}]}`,
			`data: {"choices":[{"delta":{"content":"lo"},"finish_reason":"stop"}]}`,
			`data: [DONE]`,
		}
		for _, c := range chunks {
			w.Write([]byte(c + "\n\n"))
		}
	}))
	defer server.Close()

	client, _ := NewClient(
		WithBaseURL(server.URL),
		WithAPIKey("test-key"),
	)
	defer client.Close()

	stream, err := client.Stream(context.Background(), &ChatRequest{
		Messages: []Message{NewUserMessage("Hello")},
	})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		chunk, err := stream.Recv()
		if err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
		sb.WriteString(chunk.Delta)
		if chunk.Done {
			break
		}
	}

	if sb.String() != "Hello" {
		t.Errorf("Streamed content = %q, want Hello", sb.String())
	}
}

func TestClientEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("Expected /embeddings, got %s", r.URL.Path)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float64{0.1, 0.2, 0.3}},
				{"embedding": []float64{0.4, 0.5, 0.6}},
			},
			"usage": map[string]int{
				"prompt_tokens": 8,
				"total_tokens":  8,
			},
		})
	}))
	defer server.Close()

	client, _ := NewClient(
		WithBaseURL(server.URL),
		WithAPIKey("test-key"),
	)
	defer client.Close()

	resp, err := client.Embed(context.Background(), &EmbedRequest{
		Input: []string{"first", "second"},
	})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if len(resp.Embeddings) != 2 {
		t.Fatalf("Expected 2 embeddings, got %d", len(resp.Embeddings))
	}
	if resp.Embeddings[0][0] != 0.1 {
		t.Errorf("Unexpected embedding value: %v", resp.Embeddings[0])
	}
}

func TestClientHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("Expected /models, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []interface{}{},
		})
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL))
	defer client.Close()

	err := client.Health(context.Background())
	if err != nil {
		t.Errorf("Health check failed: %v", err)
	}
}

func TestClientError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{
				"message": "Invalid API key",
				"code":    "invalid_api_key",
			},
		})
	}))
	defer server.Close()

	client, _ := NewClient(
		WithBaseURL(server.URL),
		WithAPIKey("bad-key"),
	)
	defer client.Close()

	ctx := context.Background()
	_, err := client.Chat(ctx, &ChatRequest{
		Messages: []Message{NewUserMessage("test")},
	})

	if err == nil {
		t.Fatal("Expected error")
	}

	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("Expected APIError, got %T", err)
	}

	if apiErr.StatusCode != 401 {
		t.Errorf("Expected 401, got %d", apiErr.StatusCode)
	}
	if !apiErr.IsUnauthorized() {
		t.Error("Expected IsUnauthorized() to be true")
	}
}

func TestClientCapabilities(t *testing.T) {
	client, _ := NewClient()
	defer client.Close()

	caps := client.Capabilities()
	if !caps.Chat {
		t.Error("Expected Chat capability")
	}
	if !caps.Streaming {
		t.Error("Expected Streaming capability")
	}
	if !caps.Embeddings {
		t.Error("Expected Embeddings capability")
	}
}

func TestClientNoAPIKey(t *testing.T) {
	// For local providers like Ollama, no API key is required
	client, err := NewClient(
		WithBaseURL("http://localhost:11434/v1"),
		// No API key
	)
	if err != nil {
		t.Fatalf("Should allow creation without API key: %v", err)
	}
	client.Close()
}
