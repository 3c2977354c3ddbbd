package call

import (
	"log/slog"
	"time"
)

// Config holds per-call behavior tuning. One Config is shared by all
// sessions; it is read-only after construction.
type Config struct {
	// Greeting is spoken when the call goes active.
	Greeting string

	// Closing is spoken before an assistant-initiated hangup.
	Closing string

	// Fallback is spoken when an adapter fails; the call stays active.
	Fallback string

	// NoContextReply is the fixed answer when a retriever is bound but
	// returns no passages for the caller's question.
	NoContextReply string

	// SystemPrompt seeds every generation request.
	SystemPrompt string

	// EndPhrases end the call when contained in a transcript,
	// case-insensitive and ignoring spacing and punctuation.
	EndPhrases []string

	// MaxSentences bounds reply length at sentence boundaries.
	// 0 disables truncation.
	MaxSentences int

	// ChunkSize is the outbound audio frame payload size in bytes.
	ChunkSize int

	// ChunkDelay paces outbound frames to real-time playback rate.
	ChunkDelay time.Duration

	// Adapter deadlines.
	STTTimeout time.Duration
	LLMTimeout time.Duration
	TTSTimeout time.Duration

	// Logger is the base structured logger for sessions.
	Logger *slog.Logger
}

// DefaultConfig returns the production defaults. Chunk size and delay
// are calibrated to 8 kHz mu-law: 4000 bytes is half a second of audio,
// sent every 100 ms, so the transport buffer stays ahead of playback
// without overrunning it.
func DefaultConfig() *Config {
	return &Config{
		Greeting:       "Hello! I'm your assistant. How can I help you today?",
		Closing:        "Goodbye!",
		Fallback:       "I'm sorry, I'm having trouble right now. Could you say that again?",
		NoContextReply: "I'm sorry, the answer is not in the document.",
		SystemPrompt:   "You are a helpful voice assistant on a phone call. Keep replies short and conversational.",
		EndPhrases:     []string{"goodbye", "end call", "hang up"},
		MaxSentences:   2,
		ChunkSize:      4000,
		ChunkDelay:     100 * time.Millisecond,
		STTTimeout:     15 * time.Second,
		LLMTimeout:     15 * time.Second,
		TTSTimeout:     30 * time.Second,
		Logger:         slog.Default(),
	}
}
