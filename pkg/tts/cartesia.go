package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	providerCartesia   = "cartesia"
	cartesiaWSBaseURL  = "wss://api.cartesia.ai/tts/websocket"
	cartesiaAPIVersion = "2024-06-10"
	handshakeTimeout   = 10 * time.Second
)

// Cartesia implements streaming TTS via Cartesia's WebSocket API.
//
// Each Stream call dials a fresh connection scoped to one utterance.
// Short-lived connections keep cancellation trivial: abandoning an
// utterance mid-stream is just closing the socket, and no generation
// state leaks between turns.
type Cartesia struct {
	config *Config
	logger *slog.Logger
}

// NewCartesia creates a Cartesia TTS provider.
func NewCartesia(opts ...Option) (*Cartesia, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = cartesiaWSBaseURL
	cfg.Apply(opts...)

	if err := cfg.ValidateWithVoice(); err != nil {
		return nil, err
	}

	return &Cartesia{
		config: cfg,
		logger: cfg.Logger.With("component", "tts.cartesia"),
	}, nil
}

// Stream synthesizes text, yielding audio chunks as Cartesia generates them.
func (c *Cartesia) Stream(ctx context.Context, text string) (AudioStream, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}

	contextID := uuid.NewString()
	req := c.buildRequest(text, contextID)

	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return nil, WrapError(providerCartesia, fmt.Errorf("send request: %w", err))
	}

	c.logger.Debug("synthesis started",
		"context_id", contextID,
		"chars", len(text),
	)

	return &cartesiaStream{
		conn:    conn,
		format:  c.config.OutputFormat,
		timeout: c.config.StreamTimeout,
	}, nil
}

// Synthesize converts text to a complete audio buffer by draining a stream.
func (c *Cartesia) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	start := time.Now()

	stream, err := c.Stream(ctx, text)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var audio []byte
	var firstByte int64
	for {
		chunk, err := stream.Read()
		if err != nil {
			return nil, err
		}
		if chunk == nil {
			break
		}
		if audio == nil {
			firstByte = time.Since(start).Milliseconds()
		}
		audio = append(audio, chunk...)
	}

	format := c.config.OutputFormat
	var duration time.Duration
	if bps := format.BytesPerSecond(); bps > 0 {
		duration = time.Duration(len(audio)) * time.Second / time.Duration(bps)
	}

	return &AudioResult{
		Audio:     audio,
		Format:    format,
		Duration:  duration,
		CharCount: len(text),
		LatencyMs: firstByte,
	}, nil
}

// Health checks API connectivity and key validity by dialing the endpoint.
func (c *Cartesia) Health(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return conn.Close()
}

// Close releases resources. Connections are per-utterance, so there is
// nothing persistent to tear down.
func (c *Cartesia) Close() error {
	return nil
}

// dial opens a WebSocket connection to the synthesis endpoint.
func (c *Cartesia) dial(ctx context.Context) (*websocket.Conn, error) {
	url := fmt.Sprintf("%s?api_key=%s&cartesia_version=%s",
		c.config.BaseURL, c.config.APIKey, cartesiaAPIVersion)

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, url, http.Header{})
	if err != nil {
		if resp != nil {
			return nil, &APIError{
				StatusCode: resp.StatusCode,
				Message:    err.Error(),
				Provider:   providerCartesia,
			}
		}
		return nil, WrapError(providerCartesia, fmt.Errorf("websocket dial: %w", err))
	}
	return conn, nil
}

// buildRequest constructs the synthesis request message.
func (c *Cartesia) buildRequest(text, contextID string) map[string]interface{} {
	return map[string]interface{}{
		"context_id": contextID,
		"model_id":   c.config.ModelID,
		"transcript": text,
		"voice": map[string]interface{}{
			"mode": "id",
			"id":   c.config.VoiceID,
		},
		"output_format": map[string]interface{}{
			"container":   "raw",
			"encoding":    string(c.config.OutputFormat.Encoding),
			"sample_rate": c.config.OutputFormat.SampleRate,
		},
	}
}

// VoiceID returns the configured voice ID.
func (c *Cartesia) VoiceID() string {
	return c.config.VoiceID
}

// ModelID returns the configured model ID.
func (c *Cartesia) ModelID() string {
	return c.config.ModelID
}

// cartesiaStream reads audio chunks from one synthesis connection.
type cartesiaStream struct {
	conn    *websocket.Conn
	format  AudioFormat
	timeout time.Duration

	mu     sync.Mutex
	closed bool
}

// cartesiaMessage is the server-to-client message format.
type cartesiaMessage struct {
	Type  string `json:"type"`
	Data  string `json:"data"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

// Read returns the next audio chunk, or nil when synthesis is complete.
func (s *cartesiaStream) Read() ([]byte, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStreamClosed
	}
	conn := s.conn
	s.mu.Unlock()

	for {
		if s.timeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.timeout))
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil, nil
			}
			return nil, WrapError(providerCartesia, fmt.Errorf("read stream: %w", err))
		}

		var msg cartesiaMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return nil, WrapError(providerCartesia, fmt.Errorf("parse message: %w", err))
		}

		if msg.Error != "" {
			return nil, WrapError(providerCartesia, fmt.Errorf("synthesis error: %s", msg.Error))
		}

		if msg.Done {
			return nil, nil
		}

		if msg.Data == "" {
			continue
		}

		audio, err := base64.StdEncoding.DecodeString(msg.Data)
		if err != nil {
			return nil, WrapError(providerCartesia, fmt.Errorf("decode audio: %w", err))
		}
		return audio, nil
	}
}

// Close terminates the stream connection.
func (s *cartesiaStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}

// Format returns the stream's audio format.
func (s *cartesiaStream) Format() AudioFormat {
	return s.format
}

// Verify Cartesia implements Provider at compile time.
var _ Provider = (*Cartesia)(nil)
