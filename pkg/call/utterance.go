package call

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Utterance is one in-flight assistant utterance being streamed to the
// caller. At most one exists per session. Cancellation is cooperative:
// the streaming loop polls Cancelled before every chunk write.
type Utterance struct {
	// ID correlates log lines for one utterance.
	ID string

	cancelled atomic.Bool
	done      chan struct{}
	finish    sync.Once
}

func newUtterance() *Utterance {
	return &Utterance{
		ID:   uuid.NewString(),
		done: make(chan struct{}),
	}
}

// Cancel marks the utterance cancelled. Idempotent. The streaming loop
// stops within one chunk's latency; Cancel does not wait for it.
func (u *Utterance) Cancel() {
	u.cancelled.Store(true)
}

// Cancelled reports whether the utterance was interrupted.
func (u *Utterance) Cancelled() bool {
	return u.cancelled.Load()
}

// Done is closed when streaming has fully stopped, whether the
// utterance completed or was cancelled.
func (u *Utterance) Done() <-chan struct{} {
	return u.done
}

// markDone closes the done channel exactly once.
func (u *Utterance) markDone() {
	u.finish.Do(func() { close(u.done) })
}
