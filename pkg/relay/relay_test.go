package relay

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"

	"github.com/verbilabs/callbridge/pkg/call"
	"github.com/verbilabs/callbridge/pkg/inference"
	"github.com/verbilabs/callbridge/pkg/protocol"
	"github.com/verbilabs/callbridge/pkg/stt"
	"github.com/verbilabs/callbridge/pkg/tts"
)

func testCallConfig() *call.Config {
	cfg := call.DefaultConfig()
	cfg.Greeting = "Hi there."
	cfg.ChunkDelay = 0
	return cfg
}

// testFactory builds sessions whose adapters are fully mocked, with the
// transcriber returning the given text for every media event.
func testFactory(cfg *call.Config, transcript string) SessionFactory {
	return func(id string, sender call.Sender) *call.Session {
		engine := call.NewEngine(inference.NewMock(), nil, cfg)
		return call.NewSession(id, sender, stt.NewMock(transcript), tts.NewMock(), engine, cfg)
	}
}

// startRelay runs a relay server on a real listener so the gorilla
// client below exercises the actual upgrade path.
func startRelay(t *testing.T, addr string, registry *call.Registry, factory SessionFactory) *Server {
	t.Helper()

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	srv := NewServer(registry, factory, Options{
		Say:       "Please wait while we connect your call.",
		StreamURL: "wss://example.ngrok.io/ws/call",
	})
	srv.RegisterRoutes(app)

	go app.Listen(addr)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		app.ShutdownWithContext(ctx)
	})
	time.Sleep(100 * time.Millisecond)

	return srv
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func sendFrame(t *testing.T, ws *websocket.Conn, e *protocol.Envelope) {
	t.Helper()
	data, err := e.Bytes()
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func startFrame(id string) *protocol.Envelope {
	return &protocol.Envelope{
		Event: protocol.EventStart,
		Start: &protocol.StartData{StreamSid: id},
	}
}

// readUntil reads frames until one matches the wanted event type.
func readUntil(t *testing.T, ws *websocket.Conn, want protocol.EventType) *protocol.Envelope {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("read while waiting for %s frame: %v", want, err)
		}
		env, err := protocol.Parse(data)
		if err != nil {
			t.Fatalf("parse outbound frame: %v", err)
		}
		if env.Event == want {
			return env
		}
	}
}

func waitForLen(t *testing.T, registry *call.Registry, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if registry.Len() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("registry.Len() = %d, want %d", registry.Len(), want)
}

func TestRelayCallFlow(t *testing.T) {
	cfg := testCallConfig()
	registry := call.NewRegistry(nil)
	startRelay(t, ":18090", registry, testFactory(cfg, "what are your opening hours"))

	ws := dial(t, "ws://localhost:18090/ws/call")
	sendFrame(t, ws, startFrame("MZ100"))

	// The greeting streams as media frames tagged with the CallId.
	greeting := readUntil(t, ws, protocol.EventMedia)
	if greeting.StreamSid != "MZ100" {
		t.Errorf("greeting StreamSid = %q, want MZ100", greeting.StreamSid)
	}
	audio, err := greeting.Media.Audio()
	if err != nil || len(audio) == 0 {
		t.Errorf("greeting payload: len=%d err=%v", len(audio), err)
	}

	waitForLen(t, registry, 1)

	// One media event is one complete user turn; the reply comes back
	// as more media frames on the same stream.
	sendFrame(t, ws, protocol.NewMediaFrame("MZ100", []byte{0xff, 0xff, 0xff}))
	reply := readUntil(t, ws, protocol.EventMedia)
	if reply.StreamSid != "MZ100" {
		t.Errorf("reply StreamSid = %q, want MZ100", reply.StreamSid)
	}

	s, ok := registry.Get("MZ100")
	if !ok {
		t.Fatal("session missing from registry")
	}
	waitFor := time.Now().Add(2 * time.Second)
	for time.Now().Before(waitFor) && len(s.History()) < 2 {
		time.Sleep(5 * time.Millisecond)
	}
	history := s.History()
	if len(history) != 2 {
		t.Fatalf("history = %d entries, want 2", len(history))
	}
	if history[0].Text != "what are your opening hours" {
		t.Errorf("user turn = %q", history[0].Text)
	}
}

func TestRelayDuplicateStart(t *testing.T) {
	cfg := testCallConfig()
	registry := call.NewRegistry(nil)
	startRelay(t, ":18091", registry, testFactory(cfg, "hello"))

	first := dial(t, "ws://localhost:18091/ws/call")
	sendFrame(t, first, startFrame("MZ200"))
	readUntil(t, first, protocol.EventMedia)
	waitForLen(t, registry, 1)

	original, _ := registry.Get("MZ200")
	sendFrame(t, first, protocol.NewMediaFrame("MZ200", []byte{0xff}))
	readUntil(t, first, protocol.EventMedia)

	// A second start for the live CallId is rejected and its connection
	// dropped; the original session keeps its history.
	second := dial(t, "ws://localhost:18091/ws/call")
	sendFrame(t, second, startFrame("MZ200"))

	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := second.ReadMessage(); err == nil {
		t.Error("duplicate connection should be closed")
	}

	if registry.Len() != 1 {
		t.Errorf("registry.Len() = %d, want 1", registry.Len())
	}
	got, _ := registry.Get("MZ200")
	if got != original {
		t.Error("duplicate start replaced the live session")
	}
	if len(got.History()) == 0 {
		t.Error("duplicate start reset the live session's history")
	}
}

func TestRelayStopTeardown(t *testing.T) {
	cfg := testCallConfig()
	registry := call.NewRegistry(nil)
	startRelay(t, ":18092", registry, testFactory(cfg, "hello"))

	ws := dial(t, "ws://localhost:18092/ws/call")
	sendFrame(t, ws, startFrame("MZ300"))
	readUntil(t, ws, protocol.EventMedia)
	waitForLen(t, registry, 1)

	sendFrame(t, ws, &protocol.Envelope{Event: protocol.EventStop, StreamSid: "MZ300"})

	// The relay closes the connection and evicts the session.
	waitForLen(t, registry, 0)
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
}

func TestRelayAbortOnDisconnect(t *testing.T) {
	cfg := testCallConfig()
	registry := call.NewRegistry(nil)
	startRelay(t, ":18093", registry, testFactory(cfg, "hello"))

	ws := dial(t, "ws://localhost:18093/ws/call")
	sendFrame(t, ws, startFrame("MZ400"))
	readUntil(t, ws, protocol.EventMedia)
	waitForLen(t, registry, 1)

	// Caller vanishes mid-call: the read loop aborts the session and
	// evicts it without waiting for a stop event.
	ws.Close()
	waitForLen(t, registry, 0)

	// The CallId is free again once the dead session is evicted.
	retry := dial(t, "ws://localhost:18093/ws/call")
	sendFrame(t, retry, startFrame("MZ400"))
	readUntil(t, retry, protocol.EventMedia)
	waitForLen(t, registry, 1)
}

func TestRelayVoiceHangup(t *testing.T) {
	cfg := testCallConfig()
	registry := call.NewRegistry(nil)
	startRelay(t, ":18094", registry, testFactory(cfg, "okay goodbye then"))

	ws := dial(t, "ws://localhost:18094/ws/call")
	sendFrame(t, ws, startFrame("MZ500"))
	readUntil(t, ws, protocol.EventMedia)
	waitForLen(t, registry, 1)

	sendFrame(t, ws, protocol.NewMediaFrame("MZ500", []byte{0xff}))

	// Closing remark streams first, then the hangup frame, then the
	// relay tears the connection down.
	hangup := readUntil(t, ws, protocol.EventHangup)
	if hangup.StreamSid != "MZ500" {
		t.Errorf("hangup StreamSid = %q, want MZ500", hangup.StreamSid)
	}
	waitForLen(t, registry, 0)
}

func TestRelayMalformedFrameIgnored(t *testing.T) {
	cfg := testCallConfig()
	registry := call.NewRegistry(nil)
	startRelay(t, ":18095", registry, testFactory(cfg, "hello"))

	ws := dial(t, "ws://localhost:18095/ws/call")

	// Garbage before and after start: the connection survives both.
	ws.WriteMessage(websocket.TextMessage, []byte("not json at all"))
	sendFrame(t, ws, startFrame("MZ600"))
	readUntil(t, ws, protocol.EventMedia)
	ws.WriteMessage(websocket.TextMessage, []byte(`{"no_event": true}`))

	sendFrame(t, ws, protocol.NewMediaFrame("MZ600", []byte{0xff}))
	readUntil(t, ws, protocol.EventMedia)

	if registry.Len() != 1 {
		t.Errorf("registry.Len() = %d, want 1", registry.Len())
	}
}

func TestRelayBargeInSendsClear(t *testing.T) {
	cfg := testCallConfig()
	// A long greeting paced slowly keeps the utterance in flight while
	// the barge-in signal travels.
	cfg.Greeting = strings.Repeat("Hello there, thanks for calling. ", 10)
	cfg.ChunkSize = 400
	cfg.ChunkDelay = 20 * time.Millisecond
	registry := call.NewRegistry(nil)
	startRelay(t, ":18096", registry, testFactory(cfg, "tell me a long story"))

	ws := dial(t, "ws://localhost:18096/ws/call")
	sendFrame(t, ws, startFrame("MZ700"))
	readUntil(t, ws, protocol.EventMedia)

	sendFrame(t, ws, &protocol.Envelope{Event: protocol.EventSpeechStarted, StreamSid: "MZ700"})

	clearFrame := readUntil(t, ws, protocol.EventClear)
	if clearFrame.StreamSid != "MZ700" {
		t.Errorf("clear StreamSid = %q, want MZ700", clearFrame.StreamSid)
	}
	if registry.Len() != 1 {
		t.Errorf("registry.Len() = %d, want 1 (barge-in never ends the call)", registry.Len())
	}
}

func TestIncomingCallTwiML(t *testing.T) {
	registry := call.NewRegistry(nil)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	srv := NewServer(registry, testFactory(testCallConfig(), "hello"), Options{
		Say:       "Please wait.",
		StreamURL: "wss://example.ngrok.io/ws/call",
	})
	srv.RegisterRoutes(app)

	req := httptest.NewRequest("GET", "/incoming-call", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/xml") {
		t.Errorf("Content-Type = %q, want text/xml", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"<Say>Please wait.</Say>", `<Stream url="wss://example.ngrok.io/ws/call"/>`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("TwiML missing %q:\n%s", want, body)
		}
	}
}

func TestHealth(t *testing.T) {
	registry := call.NewRegistry(nil)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	srv := NewServer(registry, testFactory(testCallConfig(), "hello"), Options{})
	srv.RegisterRoutes(app)

	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{`"status":"ok"`, `"active_calls":0`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("health body missing %s: %s", want, body)
		}
	}
}
