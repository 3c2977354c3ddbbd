package tts

import (
	"context"
	"errors"
	"testing"
)

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr error
	}{
		{
			name:    "missing api key",
			opts:    []Option{WithVoice("voice-1")},
			wantErr: ErrNoAPIKey,
		},
		{
			name:    "missing voice",
			opts:    []Option{WithAPIKey("key")},
			wantErr: ErrNoVoiceID,
		},
		{
			name: "complete",
			opts: []Option{WithAPIKey("key"), WithVoice("voice-1")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Apply(tt.opts...)
			err := cfg.ValidateWithVoice()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateWithVoice() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultConfigIsTelephony(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.OutputFormat.Encoding != EncodingMulaw {
		t.Errorf("encoding = %v, want %v", cfg.OutputFormat.Encoding, EncodingMulaw)
	}
	if cfg.OutputFormat.SampleRate != 8000 {
		t.Errorf("sample rate = %d, want 8000", cfg.OutputFormat.SampleRate)
	}
	if cfg.ModelID != "sonic" {
		t.Errorf("model = %q, want sonic", cfg.ModelID)
	}
}

func TestCartesiaRequiresVoice(t *testing.T) {
	if _, err := NewCartesia(WithAPIKey("key")); !errors.Is(err, ErrNoVoiceID) {
		t.Errorf("NewCartesia() error = %v, want ErrNoVoiceID", err)
	}
}

func TestCartesiaBuildRequest(t *testing.T) {
	c, err := NewCartesia(WithAPIKey("key"), WithVoice("voice-1"))
	if err != nil {
		t.Fatalf("NewCartesia() error = %v", err)
	}

	req := c.buildRequest("Hello there", "ctx-42")

	if req["transcript"] != "Hello there" {
		t.Errorf("transcript = %v", req["transcript"])
	}
	if req["context_id"] != "ctx-42" {
		t.Errorf("context_id = %v", req["context_id"])
	}
	if req["model_id"] != "sonic" {
		t.Errorf("model_id = %v", req["model_id"])
	}

	voice := req["voice"].(map[string]interface{})
	if voice["mode"] != "id" || voice["id"] != "voice-1" {
		t.Errorf("voice = %v", voice)
	}

	format := req["output_format"].(map[string]interface{})
	if format["container"] != "raw" {
		t.Errorf("container = %v", format["container"])
	}
	if format["encoding"] != "pcm_mulaw" {
		t.Errorf("encoding = %v", format["encoding"])
	}
	if format["sample_rate"] != 8000 {
		t.Errorf("sample_rate = %v", format["sample_rate"])
	}
}

func TestBytesPerSecond(t *testing.T) {
	tests := []struct {
		format AudioFormat
		want   int
	}{
		{AudioFormat{Encoding: EncodingMulaw, SampleRate: 8000, Channels: 1}, 8000},
		{AudioFormat{Encoding: EncodingPCM16, SampleRate: 16000, Channels: 1}, 32000},
		{AudioFormat{Encoding: EncodingPCMF32, SampleRate: 8000, Channels: 1}, 32000},
		{AudioFormat{Encoding: Encoding("unknown"), SampleRate: 8000}, 0},
	}

	for _, tt := range tests {
		if got := tt.format.BytesPerSecond(); got != tt.want {
			t.Errorf("BytesPerSecond(%v) = %d, want %d", tt.format.Encoding, got, tt.want)
		}
	}
}

func TestMockStreamDefaults(t *testing.T) {
	m := NewMock()

	stream, err := m.Stream(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer stream.Close()

	if stream.Format().Encoding != EncodingMulaw {
		t.Errorf("format = %v, want mulaw", stream.Format().Encoding)
	}

	chunk, err := stream.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(chunk) == 0 {
		t.Error("expected audio data")
	}

	// Stream is exhausted after the single buffer.
	chunk, err = stream.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if chunk != nil {
		t.Error("expected nil at end of stream")
	}

	if m.CallCount("Stream") != 1 {
		t.Errorf("Stream calls = %d, want 1", m.CallCount("Stream"))
	}
}

func TestChainFallback(t *testing.T) {
	failing := WithError(errors.New("provider down"))
	working := NewMock()

	chain, err := NewChain(failing, working)
	if err != nil {
		t.Fatalf("NewChain() error = %v", err)
	}

	result, err := chain.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if len(result.Audio) == 0 {
		t.Error("expected audio from fallback provider")
	}

	if working.CallCount("Synthesize") != 1 {
		t.Errorf("fallback Synthesize calls = %d, want 1", working.CallCount("Synthesize"))
	}
}

func TestChainStreamFallback(t *testing.T) {
	failing := WithError(errors.New("provider down"))
	working := NewMock()

	chain, err := NewChain(failing, working)
	if err != nil {
		t.Fatalf("NewChain() error = %v", err)
	}

	stream, err := chain.Stream(context.Background(), "hello caller")
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer stream.Close()

	chunk, err := stream.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(chunk) == 0 {
		t.Error("expected audio from fallback provider")
	}

	if working.CallCount("Stream") != 1 {
		t.Errorf("fallback Stream calls = %d, want 1", working.CallCount("Stream"))
	}
}

func TestChainAllFail(t *testing.T) {
	chain, _ := NewChain(
		WithError(errors.New("first down")),
		WithError(errors.New("second down")),
	)

	_, err := chain.Synthesize(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error when all providers fail")
	}

	var chainErr *ChainError
	if !errors.As(err, &chainErr) {
		t.Fatalf("expected ChainError, got %T", err)
	}
	if len(chainErr.Errors) != 2 {
		t.Errorf("recorded errors = %d, want 2", len(chainErr.Errors))
	}
}
