// Package stt provides speech-to-text transcription for call audio.
//
// The package abstracts transcription behind a single Transcriber interface.
// The production implementation sends audio to Groq's Whisper endpoint via
// the OpenAI-compatible audio API. Input audio is 8 kHz mu-law, the format
// telephony media streams deliver; implementations wrap it in a WAV
// container before upload.
package stt

import (
	"context"
	"errors"
)

// Transcriber converts one utterance of caller audio to text.
type Transcriber interface {
	// Transcribe converts mu-law audio to text. Returns an empty string
	// when the audio contains no recognizable speech.
	Transcribe(ctx context.Context, audio []byte) (string, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the transcriber.
	Close() error
}

// Sentinel errors.
var (
	// ErrNoAPIKey is returned when an API key is required but missing.
	ErrNoAPIKey = errors.New("stt: API key required")

	// ErrEmptyAudio is returned when Transcribe is called with no audio.
	ErrEmptyAudio = errors.New("stt: empty audio")
)
