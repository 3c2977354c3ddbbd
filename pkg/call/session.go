package call

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/verbilabs/callbridge/pkg/stt"
	"github.com/verbilabs/callbridge/pkg/tts"
)

// Session is the state machine for one live call. Events must be
// delivered sequentially (the relay's read loop guarantees this);
// utterance streaming runs in its own goroutine and is coordinated
// through the Utterance cancellation flag.
type Session struct {
	id     string
	sender Sender
	stt    stt.Transcriber
	synth  tts.Provider
	engine *Engine
	cfg    *Config
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	history []Turn
	active  *Utterance
}

// NewSession creates a session in StateStarting.
func NewSession(id string, sender Sender, transcriber stt.Transcriber, synth tts.Provider, engine *Engine, cfg *Config) *Session {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Session{
		id:     id,
		sender: sender,
		stt:    transcriber,
		synth:  synth,
		engine: engine,
		cfg:    cfg,
		state:  StateStarting,
		logger: cfg.Logger.With("component", "call.session", "call_id", id),
	}
}

// ID returns the CallId.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns a copy of the conversation history.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Start transitions Starting to Active and streams the greeting.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.state != StateStarting {
		s.mu.Unlock()
		return ErrSessionEnded
	}
	s.state = StateActive
	s.mu.Unlock()

	s.logger.Info("call active")
	// The greeting is not a conversation turn; history stays empty
	// until the caller speaks.
	s.speak(s.cfg.Greeting)
	return nil
}

// HandleAudio processes one complete user turn's audio. Frames arriving
// outside StateActive are dropped, not queued.
func (s *Session) HandleAudio(audio []byte) {
	if s.State() != StateActive {
		s.logger.Debug("dropped audio frame", "state", s.State().String())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.STTTimeout)
	text, err := s.stt.Transcribe(ctx, audio)
	cancel()
	if err != nil {
		s.logger.Error("transcription failed", "error", err)
		s.speakFallback()
		return
	}
	if text == "" {
		s.logger.Debug("no speech in audio frame")
		return
	}

	s.logger.Info("caller said", "text", text)

	if containsEndPhrase(text, s.cfg.EndPhrases) {
		s.endCall(text)
		return
	}

	ctx, cancel = context.WithTimeout(context.Background(), s.cfg.LLMTimeout)
	reply, err := s.engine.NextUtterance(ctx, s.History(), text)
	cancel()
	if err != nil {
		s.logger.Error("generation failed", "error", err)
		s.appendTurn(RoleUser, text)
		s.speakFallback()
		return
	}

	s.appendTurn(RoleUser, text)
	s.appendTurn(RoleAssistant, reply)
	s.speak(reply)
}

// HandleBargeIn cancels the in-flight utterance, if any, and tells the
// transport to flush buffered playback. Idempotent: a second signal for
// an already-cancelled utterance does nothing.
func (s *Session) HandleBargeIn() {
	s.mu.Lock()
	u := s.active
	s.mu.Unlock()

	if u == nil || u.Cancelled() {
		return
	}
	u.Cancel()
	if err := s.sender.SendClear(s.id); err != nil {
		s.logger.Warn("clear frame failed", "error", err)
	}
	s.logger.Info("barge-in, utterance cancelled", "utterance_id", u.ID)
}

// HandleStop begins graceful teardown. If an utterance is streaming, it
// is awaited so the caller hears the end of the assistant's speech.
// Idempotent.
func (s *Session) HandleStop() {
	s.mu.Lock()
	if s.state >= StateEnding {
		s.mu.Unlock()
		return
	}
	s.state = StateEnding
	u := s.active
	s.mu.Unlock()

	if u != nil {
		<-u.Done()
	}
	s.logger.Info("call stopping")
}

// MarkEnded finalizes the session once the transport is closed. Returns
// true on the first call, false thereafter, so teardown side effects
// (connection close, registry eviction) run exactly once.
func (s *Session) MarkEnded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateEnded {
		return false
	}
	s.state = StateEnded
	s.logger.Info("call ended", "turns", len(s.history))
	return true
}

// Abort force-ends the session on a transport error, skipping Ending.
func (s *Session) Abort() {
	s.mu.Lock()
	if s.state == StateEnded {
		s.mu.Unlock()
		return
	}
	s.state = StateEnded
	u := s.active
	s.active = nil
	s.mu.Unlock()

	if u != nil {
		u.Cancel()
	}
	s.logger.Warn("transport error, session aborted")
}

// endCall speaks the closing remark, waits for it to finish, then asks
// the transport to hang up. The caller hears the goodbye before the
// channel tears down.
func (s *Session) endCall(text string) {
	s.appendTurn(RoleUser, text)
	s.appendTurn(RoleAssistant, s.cfg.Closing)

	if u := s.speak(s.cfg.Closing); u != nil {
		<-u.Done()
	}

	if err := s.sender.SendHangup(s.id); err != nil {
		s.logger.Warn("hangup frame failed", "error", err)
	}

	s.mu.Lock()
	if s.state == StateActive {
		s.state = StateEnding
	}
	s.mu.Unlock()

	s.logger.Info("caller ended call by voice", "text", text)
}

// speakFallback speaks the degraded reply after an adapter failure.
// Exactly one assistant history entry is appended.
func (s *Session) speakFallback() {
	s.appendTurn(RoleAssistant, s.cfg.Fallback)
	s.speak(s.cfg.Fallback)
}

// speak starts streaming one utterance. Any previous utterance still in
// flight is superseded (cancelled). Returns nil when the session no
// longer accepts new utterances.
func (s *Session) speak(text string) *Utterance {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return nil
	}
	if s.active != nil {
		s.active.Cancel()
	}
	u := newUtterance()
	s.active = u
	s.mu.Unlock()

	go s.stream(u, text)
	return u
}

// stream synthesizes text and forwards paced audio chunks until the
// stream ends or the utterance is cancelled. Runs in its own goroutine.
func (s *Session) stream(u *Utterance, text string) {
	defer func() {
		s.mu.Lock()
		if s.active == u {
			s.active = nil
		}
		s.mu.Unlock()
		u.markDone()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.TTSTimeout)
	defer cancel()

	audio, err := s.synth.Stream(ctx, text)
	if err != nil {
		s.logger.Error("synthesis failed", "error", err, "utterance_id", u.ID)
		if text == s.cfg.Fallback {
			return
		}
		// Degrade to the fallback utterance; if that fails too, give up.
		// The first attempt may have consumed the whole deadline, so the
		// fallback gets a fresh one.
		fbCtx, fbCancel := context.WithTimeout(context.Background(), s.cfg.TTSTimeout)
		defer fbCancel()
		audio, err = s.synth.Stream(fbCtx, s.cfg.Fallback)
		if err != nil {
			s.logger.Error("fallback synthesis failed", "error", err)
			return
		}
	}
	defer audio.Close()

	sent := 0
	for {
		chunk, err := audio.Read()
		if err != nil {
			s.logger.Warn("audio stream aborted", "error", err, "utterance_id", u.ID)
			return
		}
		if chunk == nil {
			break
		}

		for off := 0; off < len(chunk); off += s.cfg.ChunkSize {
			if u.Cancelled() || s.State() == StateEnded {
				return
			}
			end := off + s.cfg.ChunkSize
			if end > len(chunk) {
				end = len(chunk)
			}
			if err := s.sender.SendAudio(s.id, chunk[off:end]); err != nil {
				s.logger.Warn("audio write failed", "error", err, "utterance_id", u.ID)
				return
			}
			sent += end - off
			if s.cfg.ChunkDelay > 0 {
				time.Sleep(s.cfg.ChunkDelay)
			}
		}
	}

	s.logger.Debug("utterance complete", "utterance_id", u.ID, "bytes", sent)
}

// appendTurn adds one history entry.
func (s *Session) appendTurn(role Role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, Turn{
		Role:      role,
		Text:      text,
		CreatedAt: time.Now(),
	})
}
