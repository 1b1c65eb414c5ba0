package ws

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jmoiron/sqlx"
	"github.com/playmatatu/mergeball/internal/accounts"
	"github.com/playmatatu/mergeball/internal/auth"
	"github.com/playmatatu/mergeball/internal/config"
	"github.com/playmatatu/mergeball/internal/game"
	"github.com/playmatatu/mergeball/internal/room"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origins are checked by middleware.WebSocketCORSCheck
	},
}

var (
	errClientClosed = errors.New("client closed")
	errBufferFull   = errors.New("client send buffer full")
)

// Outgoing message types specific to the socket
const (
	MsgCredits      = "credits"
	MsgSessionEnded = "session_ended"
)

// Client is one WebSocket connection subscribed to a session.
type Client struct {
	conn     *websocket.Conn
	playerID int
	token    string
	send     chan []byte

	mu     sync.Mutex
	closed bool
}

// Send queues a message without blocking the room loop.
func (c *Client) Send(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClientClosed
	}
	select {
	case c.send <- b:
		return nil
	default:
		log.Printf("[WS] send buffer full for player %d in session %s", c.playerID, c.token)
		return errBufferFull
	}
}

// Close stops the write pump, which sends a close frame.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	return nil
}

// Hub tracks the clients connected to this instance, per session token.
type Hub struct {
	sessions map[string]map[*Client]struct{}
	mu       sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{sessions: make(map[string]map[*Client]struct{})}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[c.token]; !ok {
		h.sessions[c.token] = make(map[*Client]struct{})
	}
	h.sessions[c.token][c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.sessions[c.token]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.sessions, c.token)
		}
	}
}

// Count returns the number of clients watching a session.
func (h *Hub) Count(token string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[token])
}

// BroadcastToSession sends a message to every client of a session.
func (h *Hub) BroadcastToSession(token string, msgType string, data any) {
	b, err := room.Encode(msgType, data)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.sessions[token] {
		_ = c.Send(b)
	}
}

// Handler serves session sockets.
type Handler struct {
	Hub *Hub
	mgr *room.Manager
	db  *sqlx.DB
	cfg *config.Config
}

// NewHandler creates a handler. db may be nil; assisted merges are then free.
func NewHandler(mgr *room.Manager, db *sqlx.DB, cfg *config.Config) *Handler {
	return &Handler{Hub: NewHub(), mgr: mgr, db: db, cfg: cfg}
}

// WSMessage is an incoming {type, data} envelope.
type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type AimData struct {
	X float64 `json:"x"`
}

type DropData struct {
	X *float64 `json:"x"`
}

// HandleWebSocket upgrades a connection for the owner of the session in the
// :token path parameter.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	token := c.Param("token")
	r, err := h.mgr.Get(token)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, auth.TokenFromRequest(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	if claims.PlayerID != r.PlayerID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your session"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] Upgrade error: %v", err)
		return
	}

	client := &Client{
		conn:     conn,
		playerID: claims.PlayerID,
		token:    token,
		send:     make(chan []byte, 256),
	}
	h.Hub.register(client)
	log.Printf("[WS] Player %d connected to session %s", client.playerID, token)

	go client.writePump()
	if err := h.mgr.Dispatch(c.Request.Context(), token, room.Subscribe{Conn: client}); err != nil {
		client.sendError(err.Error())
	}
	go h.readPump(client)
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WebSocket write error for player %d: %v", c.playerID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("WebSocket ping error for player %d: %v", c.playerID, err)
				return
			}
		}
	}
}

// readPump reads player input until the connection drops.
func (h *Handler) readPump(c *Client) {
	defer func() {
		_ = h.mgr.Dispatch(context.Background(), c.token, room.Unsubscribe{Conn: c})
		h.Hub.unregister(c)
		c.Close()
		c.conn.Close()
		log.Printf("[WS] Player %d left session %s", c.playerID, c.token)
	}()

	c.conn.SetReadLimit(65536)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error (unexpected) for player %d: %v", c.playerID, err)
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.sendError("Invalid message")
			continue
		}
		h.handleMessage(c, msg)
	}
}

// handleMessage turns one client message into a room command.
func (h *Handler) handleMessage(c *Client, msg WSMessage) {
	ctx := context.Background()

	switch msg.Type {
	case "aim":
		var data AimData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("Invalid aim data")
			return
		}
		h.dispatch(c, room.Aim{X: data.X})

	case "drop":
		var data DropData
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				c.sendError("Invalid drop data")
				return
			}
		}
		h.dispatch(c, room.Drop{X: data.X})

	case "assisted_merge":
		h.handleAssistedMerge(c)

	case "pause":
		h.dispatch(c, room.Pause{})

	case "resume":
		h.dispatch(c, room.Resume{})

	case "quit":
		h.dispatch(c, room.End{Reason: game.ReasonQuit})

	case "get_state":
		snap, err := h.mgr.Snapshot(ctx, c.token)
		if err != nil {
			c.sendError(err.Error())
			return
		}
		if b, err := room.Encode(room.MsgSnapshot, snap); err == nil {
			_ = c.Send(b)
		}

	default:
		c.sendError("Unknown message type")
	}
}

// handleAssistedMerge spends one credit and asks the room to merge. The room
// refunds the credit when the merge fails.
func (h *Handler) handleAssistedMerge(c *Client) {
	paid := false
	var sid sql.NullInt64
	if h.db != nil {
		if id := h.mgr.SessionID(c.token); id > 0 {
			sid = sql.NullInt64{Int64: int64(id), Valid: true}
		}
		remaining, err := accounts.ConsumeAssist(h.db, c.playerID, sid)
		if errors.Is(err, accounts.ErrNoCredits) {
			c.sendError("No assist credits left")
			return
		}
		if err != nil {
			log.Printf("[WS] consume assist failed: player=%d err=%v", c.playerID, err)
			c.sendError("Could not use assist")
			return
		}
		paid = true
		if b, err := room.Encode(MsgCredits, gin.H{"assist_credits": remaining}); err == nil {
			_ = c.Send(b)
		}
	}

	if err := h.mgr.Dispatch(context.Background(), c.token, room.AssistedMerge{Paid: paid}); err != nil {
		c.sendError(err.Error())
		if paid {
			if _, err := accounts.RefundAssist(h.db, c.playerID, sid); err != nil {
				log.Printf("[WS] refund failed: player=%d err=%v", c.playerID, err)
			}
		}
	}
}

func (h *Handler) dispatch(c *Client, cmd any) {
	if err := h.mgr.Dispatch(context.Background(), c.token, cmd); err != nil {
		c.sendError(err.Error())
	}
}

// sendError sends an error message to the client
func (c *Client) sendError(message string) {
	if b, err := room.Encode(room.MsgError, gin.H{"message": message}); err == nil {
		_ = c.Send(b)
	}
}
