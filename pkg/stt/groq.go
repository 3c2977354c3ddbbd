package stt

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultBaseURL = "https://api.groq.com/openai/v1"
	defaultModel   = "whisper-large-v3"
	defaultTimeout = 15 * time.Second
)

// Config holds Groq transcriber configuration.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Language hints the spoken language (ISO 639-1), empty for auto-detect.
	Language string
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Option is a functional option for configuring the transcriber.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithModel sets the Whisper model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithLanguage hints the spoken language.
func WithLanguage(lang string) Option {
	return func(c *Config) { c.Language = lang }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns sensible defaults for Groq Whisper.
func DefaultConfig() *Config {
	return &Config{
		BaseURL: defaultBaseURL,
		Model:   defaultModel,
		Timeout: defaultTimeout,
		Logger:  slog.Default(),
	}
}

// Groq transcribes audio via Groq's Whisper endpoint. Groq speaks the
// OpenAI audio API, so the standard client works against its base URL.
type Groq struct {
	client *openai.Client
	config *Config
	logger *slog.Logger
}

// NewGroq creates a Groq transcriber.
func NewGroq(opts ...Option) (*Groq, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL

	return &Groq{
		client: openai.NewClientWithConfig(clientCfg),
		config: cfg,
		logger: cfg.Logger.With("component", "stt.groq"),
	}, nil
}

// Transcribe uploads one utterance of mu-law audio and returns the text.
func (g *Groq) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", ErrEmptyAudio
	}

	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	start := time.Now()

	resp, err := g.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    g.config.Model,
		FilePath: "utterance.wav",
		Reader:   bytes.NewReader(wavFromMulaw(audio)),
		Language: g.config.Language,
	})
	if err != nil {
		return "", fmt.Errorf("stt: transcription request: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	g.logger.Debug("transcribed utterance",
		"audio_bytes", len(audio),
		"text_len", len(text),
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return text, nil
}

// Health checks API connectivity and key validity.
func (g *Groq) Health(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return fmt.Errorf("stt: health check: %w", err)
	}
	return nil
}

// Close releases resources. The underlying client has no teardown.
func (g *Groq) Close() error {
	return nil
}

// Verify Groq implements Transcriber at compile time.
var _ Transcriber = (*Groq)(nil)
