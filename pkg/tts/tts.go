// Package tts provides a unified interface for text-to-speech providers.
//
// The package targets telephony playback: the default output is 8 kHz
// mu-law, the format media streams carry over the wire. The production
// backend is Cartesia's WebSocket API; all providers implement the
// Provider interface, enabling seamless switching without changing
// caller code.
//
// Example usage:
//
//	provider, _ := tts.NewCartesia(
//	    tts.WithAPIKey(os.Getenv("CARTESIA_API_KEY")),
//	    tts.WithVoice("your-voice-id"),
//	)
//	defer provider.Close()
//
//	stream, _ := provider.Stream(ctx, "Hello world")
//	// stream yields mu-law audio chunks as they are generated
package tts

import (
	"context"
	"time"
)

// Provider defines the TTS provider interface.
// All implementations must satisfy this interface for seamless provider switching.
type Provider interface {
	// Synthesize converts text to audio, returning the complete audio buffer.
	// Use this for short text where latency to first byte is less critical.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Stream converts text to audio with streaming output for lowest latency.
	// Audio chunks are returned as they become available.
	Stream(ctx context.Context, text string) (AudioStream, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioStream represents a streaming audio response.
// Callers should read until Read returns nil, then call Close.
type AudioStream interface {
	// Read returns the next audio chunk.
	// Returns nil when the stream is complete (not an error).
	Read() ([]byte, error)

	// Close stops the stream and releases resources.
	Close() error

	// Format returns the audio format metadata.
	Format() AudioFormat
}

// AudioResult represents a complete audio synthesis result.
type AudioResult struct {
	// Audio contains the raw audio data in the specified format.
	Audio []byte

	// Format describes the audio encoding and sample rate.
	Format AudioFormat

	// Duration is the estimated audio playback duration.
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the time to first byte in milliseconds.
	LatencyMs int64
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	// Encoding specifies the raw sample encoding.
	Encoding Encoding

	// SampleRate in Hz (e.g., 8000, 16000, 44100).
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int
}

// Encoding represents audio sample encodings.
// These match Cartesia raw output format options.
type Encoding string

const (
	// EncodingMulaw is G.711 mu-law, the telephony wire format.
	EncodingMulaw Encoding = "pcm_mulaw"

	// EncodingPCM16 is 16-bit little-endian signed PCM.
	EncodingPCM16 Encoding = "pcm_s16le"

	// EncodingPCMF32 is 32-bit little-endian float PCM.
	EncodingPCMF32 Encoding = "pcm_f32le"
)

// BytesPerSecond returns the audio byte rate for a format, used to
// estimate playback duration. Returns 0 for unknown encodings.
func (f AudioFormat) BytesPerSecond() int {
	channels := f.Channels
	if channels == 0 {
		channels = 1
	}
	switch f.Encoding {
	case EncodingMulaw:
		return f.SampleRate * channels
	case EncodingPCM16:
		return f.SampleRate * channels * 2
	case EncodingPCMF32:
		return f.SampleRate * channels * 4
	default:
		return 0
	}
}

// bufferStream adapts a complete audio buffer to the AudioStream interface.
type bufferStream struct {
	data   []byte
	format AudioFormat
	done   bool
}

func (s *bufferStream) Read() ([]byte, error) {
	if s.done {
		return nil, nil
	}
	s.done = true
	return s.data, nil
}

func (s *bufferStream) Close() error {
	s.done = true
	return nil
}

func (s *bufferStream) Format() AudioFormat {
	return s.format
}
