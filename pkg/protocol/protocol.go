// Package protocol defines the media-stream frames exchanged with the
// telephony provider over the duplex WebSocket connection.
// The frame shapes follow the Twilio Media Streams wire format.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// EventType identifies the kind of media-stream frame.
type EventType string

const (
	// Provider → bridge events
	EventStart         EventType = "start"         // Call connected, stream opened
	EventMedia         EventType = "media"         // One user turn's audio payload
	EventSpeechStarted EventType = "speechStarted" // Caller began speaking (barge-in)
	EventStop          EventType = "stop"          // Call ended by provider
	EventMark          EventType = "mark"          // Playback marker echo

	// Bridge → provider events
	EventClear  EventType = "clear"  // Drop any buffered outbound audio
	EventHangup EventType = "hangup" // Assistant-initiated termination
)

// Envelope is the wrapper for every frame on the stream.
// Unrecognized event types parse successfully and are ignored by callers,
// keeping the protocol forward-compatible.
type Envelope struct {
	Event     EventType  `json:"event"`
	StreamSid string     `json:"streamSid,omitempty"`
	Start     *StartData `json:"start,omitempty"`
	Media     *MediaData `json:"media,omitempty"`
}

// StartData carries the identifiers assigned by the provider on call start.
type StartData struct {
	StreamSid  string `json:"streamSid"`
	CallSid    string `json:"callSid,omitempty"`
	AccountSid string `json:"accountSid,omitempty"`
}

// MediaData carries one base64-encoded audio payload.
// Inbound payloads are mulaw 8kHz; outbound payloads must match.
type MediaData struct {
	Payload   string `json:"payload"`
	Timestamp string `json:"timestamp,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
}

// Audio decodes the base64 payload into raw audio bytes.
func (m *MediaData) Audio() ([]byte, error) {
	audio, err := base64.StdEncoding.DecodeString(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode media payload: %w", err)
	}
	return audio, nil
}

// CallID returns the stream identifier for this frame.
// Start frames nest it under start.streamSid; every other frame carries it
// at the top level.
func (e *Envelope) CallID() string {
	if e.Start != nil && e.Start.StreamSid != "" {
		return e.Start.StreamSid
	}
	return e.StreamSid
}

// Bytes returns the JSON-encoded frame.
func (e *Envelope) Bytes() ([]byte, error) {
	return json.Marshal(e)
}

// Parse decodes a single frame from the wire.
func Parse(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("parse media-stream frame: %w", err)
	}
	if e.Event == "" {
		return nil, fmt.Errorf("media-stream frame missing event field")
	}
	return &e, nil
}

// NewMediaFrame builds an outbound audio frame for one synthesized chunk.
func NewMediaFrame(streamSid string, audio []byte) *Envelope {
	return &Envelope{
		Event:     EventMedia,
		StreamSid: streamSid,
		Media: &MediaData{
			Payload: base64.StdEncoding.EncodeToString(audio),
		},
	}
}

// NewClearFrame builds the frame that truncates audio the provider has
// already buffered for playback. Sent on barge-in.
func NewClearFrame(streamSid string) *Envelope {
	return &Envelope{Event: EventClear, StreamSid: streamSid}
}

// NewHangupFrame builds the frame sent immediately before closing the
// connection on assistant-initiated termination.
func NewHangupFrame(streamSid string) *Envelope {
	return &Envelope{Event: EventHangup, StreamSid: streamSid}
}
