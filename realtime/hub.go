package realtime

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // Allow all origins (configure in prod)
}

// ChangeEvent is pushed to every client subscribed to the table whenever a
// row is inserted, updated or deleted through the API.
type ChangeEvent struct {
	Table  string `json:"table"`
	Action string `json:"action"` // insert | update | delete
	RowID  string `json:"row_id"`
	Actor  string `json:"actor"` // user id that made the change
}

// connection represents a single WebSocket client.
type connection struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
	tables map[string]bool // subscribed table names
	mu     sync.Mutex
}

// Hub manages all active WebSocket connections.
type Hub struct {
	mu          sync.RWMutex
	connections map[*connection]bool
}

func NewHub() *Hub {
	return &Hub{connections: make(map[*connection]bool)}
}

// defaultHub serves the package-level Notify used by the CRUD handlers.
var defaultHub = NewHub()

func DefaultHub() *Hub { return defaultHub }

// Notify broadcasts a change event on the default hub.
func Notify(table, action, rowID, actor string) {
	defaultHub.Broadcast(&ChangeEvent{Table: table, Action: action, RowID: rowID, Actor: actor})
}

func (h *Hub) register(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c] = true
}

func (h *Hub) unregister(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.connections[c] {
		delete(h.connections, c)
		close(c.send)
	}
}

// Broadcast sends the event to every connection subscribed to its table.
func (h *Hub) Broadcast(event *ChangeEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.connections {
		c.mu.Lock()
		subscribed := c.tables[event.Table]
		c.mu.Unlock()
		if !subscribed {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Client too slow — skip
		}
	}
}

// subscribeMsg is the only message clients send: the table list they want
// change events for.
type subscribeMsg struct {
	Subscribe []string `json:"subscribe"`
}

// ServeWS upgrades GET /ws?token=JWT to a change-feed connection. The token
// travels as a query parameter since browsers cannot set headers on
// WebSocket dials. verify returns the user id for a valid token.
func (h *Hub) ServeWS(verify func(token string) (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "token query parameter required", http.StatusUnauthorized)
			return
		}
		userID, err := verify(token)
		if err != nil {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("websocket upgrade failed: %v", err)
			return
		}

		c := &connection{
			userID: userID,
			conn:   conn,
			send:   make(chan []byte, 32),
			tables: make(map[string]bool),
		}
		h.register(c)

		go c.writePump()
		c.readPump(h)
	}
}

func (c *connection) readPump(h *Hub) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg subscribeMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		c.mu.Lock()
		c.tables = make(map[string]bool, len(msg.Subscribe))
		for _, table := range msg.Subscribe {
			c.tables[table] = true
		}
		c.mu.Unlock()
	}
}

func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// VerifyJWT adapts a signing key into the verify callback ServeWS expects.
func VerifyJWT(key []byte) func(token string) (string, error) {
	type claims struct {
		UserID string `json:"userId"`
		jwt.RegisteredClaims
	}
	return func(token string) (string, error) {
		parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
			return key, nil
		})
		if err != nil {
			return "", err
		}
		c, ok := parsed.Claims.(*claims)
		if !ok || !parsed.Valid {
			return "", jwt.ErrTokenInvalidClaims
		}
		return c.UserID, nil
	}
}
