package stt

import (
	"context"
	"sync"
)

// Mock implements Transcriber for testing.
type Mock struct {
	// TranscribeFunc is called when Transcribe is invoked.
	TranscribeFunc func(ctx context.Context, audio []byte) (string, error)

	// HealthFunc is called when Health is invoked.
	HealthFunc func(ctx context.Context) error

	mu    sync.Mutex
	calls [][]byte
}

// NewMock creates a mock that returns the given text for every utterance.
func NewMock(text string) *Mock {
	return &Mock{
		TranscribeFunc: func(ctx context.Context, audio []byte) (string, error) {
			return text, nil
		},
	}
}

// WithError returns a mock that always fails with the given error.
func WithError(err error) *Mock {
	return &Mock{
		TranscribeFunc: func(ctx context.Context, audio []byte) (string, error) {
			return "", err
		},
		HealthFunc: func(ctx context.Context) error {
			return err
		},
	}
}

// Transcribe calls TranscribeFunc and records the audio it was given.
func (m *Mock) Transcribe(ctx context.Context, audio []byte) (string, error) {
	m.mu.Lock()
	buf := make([]byte, len(audio))
	copy(buf, audio)
	m.calls = append(m.calls, buf)
	m.mu.Unlock()

	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, audio)
	}
	return "", nil
}

// Health calls HealthFunc.
func (m *Mock) Health(ctx context.Context) error {
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close is a no-op.
func (m *Mock) Close() error {
	return nil
}

// Calls returns the audio buffers passed to Transcribe, in order.
func (m *Mock) Calls() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([][]byte, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of Transcribe invocations.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Verify Mock implements Transcriber at compile time.
var _ Transcriber = (*Mock)(nil)
