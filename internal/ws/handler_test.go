package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/playmatatu/mergeball/internal/auth"
	"github.com/playmatatu/mergeball/internal/config"
	"github.com/playmatatu/mergeball/internal/room"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{JWTSecret: "secret", TickHz: 60, BroadcastHz: 10}
}

func newTestServer(t *testing.T) (*httptest.Server, *room.Manager, *Handler) {
	t.Helper()
	cfg := testConfig()
	mgr := room.NewManager(nil, nil, cfg)
	h := NewHandler(mgr, nil, cfg)
	r := gin.New()
	r.GET("/sessions/:token/ws", h.HandleWebSocket)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		mgr.Shutdown(ctx)
		srv.Close()
	})
	return srv, mgr, h
}

func dial(t *testing.T, srv *httptest.Server, sessionToken string, playerID int) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	jwtToken, _, err := auth.IssueToken("secret", playerID, "ada", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/" + sessionToken + "/ws?access_token=" + jwtToken
	return websocket.DefaultDialer.Dial(url, nil)
}

// readUntil reads messages until one of type msgType arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %q: %v", msgType, err)
		}
		var msg WSMessage
		if err := json.Unmarshal(b, &msg); err != nil {
			t.Fatalf("bad message %s: %v", b, err)
		}
		if msg.Type == msgType {
			return msg
		}
	}
}

func TestSocketReceivesSnapshotAndDrops(t *testing.T) {
	srv, mgr, h := newTestServer(t)
	r, err := mgr.CreateSession(context.Background(), 1, "ada")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	conn, _, err := dial(t, srv, r.Token, 1)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	snap := readUntil(t, conn, room.MsgSnapshot)
	var state struct {
		Status string `json:"status"`
		Queue  []int  `json:"queue"`
	}
	if err := json.Unmarshal(snap.Data, &state); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if state.Status != "RUNNING" || len(state.Queue) == 0 {
		t.Errorf("first snapshot = %+v, want a running session with a queue", state)
	}
	if h.Hub.Count(r.Token) != 1 {
		t.Errorf("hub count = %d, want 1", h.Hub.Count(r.Token))
	}

	if err := conn.WriteJSON(map[string]any{"type": "drop", "data": map[string]float64{"x": 300}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	dropped := readUntil(t, conn, "dropped")
	if len(dropped.Data) == 0 {
		t.Error("dropped event has no data")
	}
}

func TestSocketRejectsOtherPlayers(t *testing.T) {
	srv, mgr, _ := newTestServer(t)
	r, err := mgr.CreateSession(context.Background(), 1, "ada")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	_, resp, err := dial(t, srv, r.Token, 2)
	if err == nil {
		t.Fatal("dial as another player succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}

	_, resp, err = dial(t, srv, "s_missing", 1)
	if err == nil || resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing session: err=%v resp=%v, want 404", err, resp)
	}
}

func TestUnknownMessageGetsError(t *testing.T) {
	srv, mgr, _ := newTestServer(t)
	r, _ := mgr.CreateSession(context.Background(), 1, "ada")
	conn, _, err := dial(t, srv, r.Token, 1)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readUntil(t, conn, room.MsgSnapshot)

	conn.WriteJSON(map[string]any{"type": "shoot"})
	msg := readUntil(t, conn, room.MsgError)
	if !strings.Contains(string(msg.Data), "Unknown message type") {
		t.Errorf("error data = %s", msg.Data)
	}
}

func TestQuitEndsSession(t *testing.T) {
	srv, mgr, _ := newTestServer(t)
	r, _ := mgr.CreateSession(context.Background(), 1, "ada")
	conn, _, err := dial(t, srv, r.Token, 1)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readUntil(t, conn, room.MsgSnapshot)

	conn.WriteJSON(map[string]any{"type": "quit"})
	over := readUntil(t, conn, "game-over")
	if !strings.Contains(string(over.Data), "QUIT") {
		t.Errorf("game-over data = %s, want reason QUIT", over.Data)
	}
}

func TestForfeitRequestEndsLocalSession(t *testing.T) {
	_, mgr, h := newTestServer(t)
	r, _ := mgr.CreateSession(context.Background(), 1, "ada")

	payload, _ := json.Marshal(room.SessionEvent{Type: room.EventForfeitRequest, SessionToken: r.Token, Reason: "IDLE"})
	h.handleSessionEvent(context.Background(), string(payload))

	deadline := time.Now().Add(2 * time.Second)
	for mgr.ActiveCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if mgr.ActiveCount() != 0 {
		t.Errorf("session still active after forfeit request")
	}

	// Unknown sessions belong to another instance.
	h.handleSessionEvent(context.Background(), `{"type":"forfeit_request","session_token":"s_elsewhere"}`)
}

func TestClientSendAfterClose(t *testing.T) {
	c := &Client{send: make(chan []byte, 1)}
	if err := c.Send([]byte("a")); err != nil {
		t.Errorf("first send: %v", err)
	}
	if err := c.Send([]byte("b")); err != errBufferFull {
		t.Errorf("send to full buffer = %v, want errBufferFull", err)
	}
	c.Close()
	c.Close()
	if err := c.Send([]byte("c")); err != errClientClosed {
		t.Errorf("send after close = %v, want errClientClosed", err)
	}
}
