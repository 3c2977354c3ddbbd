// Package relay serves the duplex media-stream WebSocket that carries a
// live call, dispatching inbound events to call sessions and writing
// synthesized audio back to the provider.
package relay

import (
	"log/slog"
	"sync/atomic"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/verbilabs/callbridge/pkg/call"
	"github.com/verbilabs/callbridge/pkg/protocol"
	"github.com/verbilabs/callbridge/pkg/telephony"
)

// SessionFactory builds the session for a newly started call, bound to
// the connection's sender.
type SessionFactory func(callID string, sender call.Sender) *call.Session

// Options configures the relay server.
type Options struct {
	// Say is the line spoken by the provider before the stream connects,
	// embedded in the TwiML returned by /incoming-call.
	Say string

	// StreamURL is the externally reachable WebSocket URL for /ws/call,
	// advertised in the TwiML.
	StreamURL string

	Logger *slog.Logger
}

// Server accepts provider media streams and relays them to call
// sessions. One goroutine per connection reads events; all events of a
// call are dispatched in arrival order from that loop.
type Server struct {
	registry  *call.Registry
	sessions  SessionFactory
	say       string
	streamURL string
	logger    *slog.Logger

	framesIn  atomic.Uint64
	framesOut atomic.Uint64
}

// NewServer creates a relay server. The factory is invoked once per
// start event; the registry enforces one live session per CallId.
func NewServer(registry *call.Registry, factory SessionFactory, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		registry:  registry,
		sessions:  factory,
		say:       opts.Say,
		streamURL: opts.StreamURL,
		logger:    logger.With("component", "relay"),
	}
}

// RegisterRoutes registers the media-stream and HTTP routes on a Fiber app.
func (s *Server) RegisterRoutes(app *fiber.App) {
	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/call", websocket.New(s.handleCall))

	// Telephony webhook: answer the call, then hand the audio to /ws/call.
	app.Get("/incoming-call", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "text/xml")
		return c.SendString(telephony.ConnectStream(s.say, s.streamURL))
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":       "ok",
			"active_calls": s.registry.Len(),
			"frames_in":    s.framesIn.Load(),
			"frames_out":   s.framesOut.Load(),
		})
	})
}

// handleCall runs the read loop for one media-stream connection. The
// connection closes when the call reaches Ending (graceful) or on a
// transport error (abort); either way the session is evicted exactly
// once.
func (s *Server) handleCall(c *websocket.Conn) {
	sender := newConnSender(c, &s.framesOut)

	var session *call.Session
	defer func() {
		if session == nil {
			return
		}
		// Abort has already moved the state to Ended on the error path,
		// so MarkEnded cannot gate the eviction; Remove is idempotent.
		session.MarkEnded()
		s.registry.Remove(session.ID())
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if session != nil {
				s.logger.Warn("stream read error", "call_id", session.ID(), "error", err)
				session.Abort()
			}
			return
		}
		s.framesIn.Add(1)

		env, err := protocol.Parse(data)
		if err != nil {
			// Protocol error: drop the event, keep the call alive.
			s.logger.Warn("dropped malformed frame", "error", err)
			continue
		}

		switch env.Event {
		case protocol.EventStart:
			if session != nil {
				s.logger.Warn("start event on live stream", "call_id", session.ID())
				continue
			}
			id := env.CallID()
			if id == "" {
				s.logger.Warn("dropped start event without stream id")
				continue
			}
			fresh := s.sessions(id, sender)
			if err := s.registry.Add(fresh); err != nil {
				// Duplicate CallId: the live session keeps the id and its
				// history; this connection has nothing to carry.
				s.logger.Warn("rejected start event", "call_id", id, "error", err)
				return
			}
			if err := fresh.Start(); err != nil {
				s.logger.Error("session start failed", "call_id", id, "error", err)
				s.registry.Remove(id)
				return
			}
			session = fresh

		case protocol.EventMedia:
			if session == nil || env.Media == nil {
				continue
			}
			audio, err := env.Media.Audio()
			if err != nil {
				s.logger.Warn("dropped undecodable media frame", "call_id", session.ID(), "error", err)
				continue
			}
			session.HandleAudio(audio)

		case protocol.EventSpeechStarted:
			if session != nil {
				session.HandleBargeIn()
			}

		case protocol.EventStop:
			if session != nil {
				session.HandleStop()
			}

		default:
			// Unknown event types (mark echoes and future additions) are
			// ignored for forward compatibility.
		}

		if session != nil && session.State() >= call.StateEnding {
			return
		}
	}
}
