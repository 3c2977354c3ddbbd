// Package call owns the per-call state machine that bridges a telephony
// media stream to the speech pipeline.
//
// A Session holds one live call: its conversation history, lifecycle
// state, and the at-most-one assistant utterance currently streaming to
// the caller. Events arrive from the transport strictly in order (the
// relay dispatches them from a single read loop); audio playback runs in
// a per-utterance goroutine so barge-in events are still processed while
// the assistant is speaking.
package call

import (
	"errors"
	"time"
)

// State is the lifecycle of one call session.
type State int32

const (
	// StateStarting is the initial state before the start event.
	StateStarting State = iota

	// StateActive accepts caller audio and produces replies.
	StateActive

	// StateEnding is draining: no new utterances, inbound audio dropped.
	StateEnding

	// StateEnded is terminal; the session is detached from its transport.
	StateEnded
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateEnding:
		return "ending"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one conversation history entry. History is append-only for the
// lifetime of a call and is the sole conversational memory.
type Turn struct {
	Role      Role
	Text      string
	CreatedAt time.Time
}

// Sender writes outbound frames for one call. The relay implements it
// over the call's WebSocket connection; writes must be safe for
// concurrent use because utterance goroutines and the event loop both
// send.
type Sender interface {
	// SendAudio forwards one synthesized audio chunk to the caller.
	SendAudio(callID string, audio []byte) error

	// SendClear tells the transport to drop buffered playback audio.
	// Sent on barge-in so the interruption is audible immediately.
	SendClear(callID string) error

	// SendHangup asks the transport to terminate the call.
	SendHangup(callID string) error
}

// Sentinel errors.
var (
	// ErrDuplicateSession is returned when a start event names a CallId
	// that already has a live session.
	ErrDuplicateSession = errors.New("call: duplicate session")

	// ErrSessionEnded is returned for operations on a finished session.
	ErrSessionEnded = errors.New("call: session ended")
)
