package relay

import (
	"sync"
	"sync/atomic"

	"github.com/gofiber/contrib/websocket"

	"github.com/verbilabs/callbridge/pkg/protocol"
)

// connSender writes outbound frames for one call over its WebSocket
// connection. The session's utterance goroutine and the event loop both
// send, so every write goes through the mutex.
type connSender struct {
	conn *websocket.Conn
	sent *atomic.Uint64

	mu sync.Mutex
}

func newConnSender(conn *websocket.Conn, sent *atomic.Uint64) *connSender {
	return &connSender{conn: conn, sent: sent}
}

func (s *connSender) write(e *protocol.Envelope) error {
	data, err := e.Bytes()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	s.sent.Add(1)
	return nil
}

// SendAudio forwards one synthesized chunk as a media frame.
func (s *connSender) SendAudio(callID string, audio []byte) error {
	return s.write(protocol.NewMediaFrame(callID, audio))
}

// SendClear asks the provider to drop buffered playback audio.
func (s *connSender) SendClear(callID string) error {
	return s.write(protocol.NewClearFrame(callID))
}

// SendHangup asks the provider to terminate the call.
func (s *connSender) SendHangup(callID string) error {
	return s.write(protocol.NewHangupFrame(callID))
}
