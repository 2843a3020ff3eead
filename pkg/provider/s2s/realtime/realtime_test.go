package realtime_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/parley/pkg/audio/pcm"
	"github.com/MrWong99/parley/pkg/provider/s2s"
	"github.com/MrWong99/parley/pkg/provider/s2s/realtime"
)

// ── Helpers ───────────────────────────────────────────────────────────────────

// wsURL converts an httptest server HTTP URL to a WebSocket URL.
func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// startServer launches a test WebSocket server. The handler receives the
// accepted conn. The server is automatically closed when the test finishes.
func startServer(t *testing.T, handler func(conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")
		handler(conn, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// readJSON reads one WebSocket text frame and decodes it into v.
func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Errorf("readJSON: %v", err)
		return
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Errorf("readJSON unmarshal: %v", err)
	}
}

// writeJSON marshals v and sends it as a text frame.
func writeJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	data, _ := json.Marshal(v)
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Logf("writeJSON: %v (may be expected on close)", err)
	}
}

// nextEvent waits for the next event or fails the test.
func nextEvent(t *testing.T, c s2s.Conn) s2s.Event {
	t.Helper()
	select {
	case e, ok := <-c.Events():
		if !ok {
			t.Fatal("events channel closed")
		}
		return e
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return nil
}

func dial(t *testing.T, srv *httptest.Server) s2s.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	c, err := realtime.New(wsURL(srv)).Dial(ctx, "secret-token")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestDial_CredentialInHeaderOnly(t *testing.T) {
	t.Parallel()

	gotAuth := make(chan string, 1)
	gotQuery := make(chan string, 1)
	srv := startServer(t, func(conn *websocket.Conn, r *http.Request) {
		gotAuth <- r.Header.Get("Authorization")
		gotQuery <- r.URL.RawQuery
		// Hold the connection until the client leaves.
		_, _, _ = conn.Read(context.Background())
	})

	c := dial(t, srv)
	defer c.Close()

	if auth := <-gotAuth; auth != "Bearer secret-token" {
		t.Errorf("Authorization = %q, want bearer token", auth)
	}
	if q := <-gotQuery; strings.Contains(q, "secret-token") {
		t.Errorf("credential leaked into URL query %q", q)
	}
}

func TestDial_FailureWrapsErrConnection(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := realtime.New(wsURL(srv)+"?token=should-not-leak").Dial(ctx, "secret-token")
	if !errors.Is(err, s2s.ErrConnection) {
		t.Fatalf("err = %v, want ErrConnection", err)
	}
	if strings.Contains(err.Error(), "should-not-leak") || strings.Contains(err.Error(), "secret-token") {
		t.Errorf("error leaks secrets: %v", err)
	}
}

func TestSessionHandshakeAndInboundEvents(t *testing.T) {
	t.Parallel()

	started := make(chan map[string]any, 1)
	srv := startServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var msg map[string]any
		readJSON(t, conn, &msg)
		started <- msg

		writeJSON(t, conn, map[string]any{"type": "session-ready", "sessionId": "srv-42"})
		writeJSON(t, conn, map[string]any{
			"type":      "assistant-audio-chunk",
			"sessionId": "srv-42",
			"audio":     string(pcm.Encode([]float32{0.5, -0.5})),
			"timestamp": 1700000000123,
		})
		writeJSON(t, conn, map[string]any{"type": "unknown-event"})
		writeJSON(t, conn, map[string]any{"type": "assistant-transcript-delta", "text": "Hi"})
		writeJSON(t, conn, map[string]any{"type": "error", "message": "rate limited"})
		_, _, _ = conn.Read(context.Background())
	})

	c := dial(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := c.StartSession(ctx, s2s.StartParams{UserID: "u1", SessionID: "client-1", Mode: "test", Context: "job interview"})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	msg := <-started
	if msg["type"] != "session-start" || msg["userId"] != "u1" || msg["sessionId"] != "client-1" ||
		msg["mode"] != "test" || msg["context"] != "job interview" {
		t.Errorf("session-start payload = %v", msg)
	}

	if e, ok := nextEvent(t, c).(s2s.SessionReady); !ok || e.SessionID != "srv-42" {
		t.Errorf("first event = %#v, want SessionReady srv-42", e)
	}
	chunk, ok := nextEvent(t, c).(s2s.AudioChunk)
	if !ok {
		t.Fatalf("second event is not an AudioChunk")
	}
	if chunk.SessionID != "srv-42" || chunk.Timestamp.UnixMilli() != 1700000000123 {
		t.Errorf("chunk = %+v", chunk)
	}
	buf, err := pcm.Decode(chunk.Audio, 24000)
	if err != nil || len(buf.Samples) != 2 {
		t.Errorf("chunk audio decodes to %v, %v", buf, err)
	}
	if e, ok := nextEvent(t, c).(s2s.TranscriptDelta); !ok || e.Text != "Hi" {
		t.Errorf("third event = %#v, want TranscriptDelta", e)
	}
	if e, ok := nextEvent(t, c).(s2s.ServiceError); !ok || e.Message != "rate limited" {
		t.Errorf("fourth event = %#v, want ServiceError", e)
	}
}

func TestSendAudioChunk_PreservesOrder(t *testing.T) {
	t.Parallel()

	const n = 20
	received := make(chan []string, 1)
	srv := startServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var got []string
		for range n {
			var msg struct {
				Type      string `json:"type"`
				SessionID string `json:"sessionId"`
				Audio     string `json:"audio"`
			}
			readJSON(t, conn, &msg)
			if msg.Type != "audio-chunk" || msg.SessionID != "s1" {
				t.Errorf("unexpected message %+v", msg)
			}
			got = append(got, msg.Audio)
		}
		received <- got
		_, _, _ = conn.Read(context.Background())
	})

	c := dial(t, srv)
	var want []string
	for i := range n {
		chunk := pcm.Encode([]float32{float32(i) / n})
		want = append(want, string(chunk))
		if !c.SendAudioChunk("s1", chunk) {
			t.Fatalf("SendAudioChunk %d suppressed", i)
		}
	}

	select {
	case got := <-received:
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("chunk %d out of order", i)
			}
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not receive all chunks")
	}
}

func TestSendAudioChunk_Suppressed(t *testing.T) {
	t.Parallel()

	srv := startServer(t, func(conn *websocket.Conn, _ *http.Request) {
		_, _, _ = conn.Read(context.Background())
	})
	c := dial(t, srv)

	if c.SendAudioChunk("", pcm.Encode([]float32{0})) {
		t.Error("send with empty session id was not suppressed")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if c.SendAudioChunk("s1", pcm.Encode([]float32{0})) {
		t.Error("send after Close was not suppressed")
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	err := c.StartSession(context.Background(), s2s.StartParams{SessionID: "x"})
	if !errors.Is(err, s2s.ErrSendSuppressed) {
		t.Errorf("StartSession after Close err = %v, want ErrSendSuppressed", err)
	}
}

func TestServerDrop_EmitsDisconnected(t *testing.T) {
	t.Parallel()

	srv := startServer(t, func(conn *websocket.Conn, _ *http.Request) {
		conn.Close(websocket.StatusGoingAway, "bye")
	})
	c := dial(t, srv)

	if _, ok := nextEvent(t, c).(s2s.Disconnected); !ok {
		t.Fatal("expected Disconnected event")
	}
	select {
	case _, ok := <-c.Events():
		if ok {
			t.Error("events channel not closed after Disconnected")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("events channel not closed")
	}
	if c.SendAudioChunk("s1", pcm.Encode([]float32{0})) {
		t.Error("send on dropped connection was not suppressed")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close after drop: %v", err)
	}
}

func TestClose_ClosesEventsWithoutDisconnected(t *testing.T) {
	t.Parallel()

	srv := startServer(t, func(conn *websocket.Conn, _ *http.Request) {
		_, _, _ = conn.Read(context.Background())
	})
	c := dial(t, srv)
	_ = c.Close()

	select {
	case e, ok := <-c.Events():
		if ok {
			t.Errorf("unexpected event after Close: %#v", e)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("events channel not closed after Close")
	}
}
