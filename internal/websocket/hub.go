package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/verbex/voxengine/domain/entities"
	"github.com/verbex/voxengine/internal/levelmeter"
	"github.com/verbex/voxengine/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Commands are tiny JSON.
	maxMessageSize = 4 * 1024
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of active clients and fans session snapshots and
// level frames out to them. It also translates client commands into engine
// calls, so every connected client drives the same single session.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	engine *usecase.Engine
	logger *zap.Logger
}

// NewHub creates a hub over the voice engine.
func NewHub(engine *usecase.Engine, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		engine:     engine,
		logger:     logger,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.clientID] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("clientID", client.clientID))

			// New clients get the current snapshot immediately so their UI
			// never starts from a guessed state.
			client.enqueue(NewStateMessage(h.engine.Snapshot()))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.clientID]; ok {
				delete(h.clients, client.clientID)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("clientID", client.clientID))
		}
	}
}

// BroadcastState pushes a session snapshot to every connected client.
// Wire it as an engine listener.
func (h *Hub) BroadcastState(session entities.Session) {
	h.broadcast(NewStateMessage(session))
}

// BroadcastLevels pushes one visualization frame to every connected
// client. Wire it as the level meter's sink.
func (h *Hub) BroadcastLevels(frame levelmeter.Frame) {
	h.broadcast(NewLevelsMessage(frame))
}

func (h *Hub) broadcast(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.send <- payload:
		default:
			// Slow consumer; drop the frame rather than stall the engine.
		}
	}
}

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte

	clientID string
	logger   *zap.Logger
}

func (c *Client) enqueue(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// HandleWebSocket upgrades the request and attaches a pre-authenticated
// client to the hub.
func HandleWebSocket(hub *Hub, c echo.Context, clientID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, 256),
		clientID: clientID,
		logger:   logger,
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps commands from the websocket connection into the engine.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		if messageType != websocket.TextMessage {
			c.logger.Warn("Ignoring non-text message", zap.Int("type", messageType))
			continue
		}

		c.processCommand(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
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

// processCommand dispatches one inbound control message to the engine.
// Engine errors are already reflected in the broadcast snapshot, so they
// are only logged here.
func (c *Client) processCommand(message []byte) {
	var cmd Command
	if err := json.Unmarshal(message, &cmd); err != nil {
		c.logger.Error("Failed to parse command", zap.Error(err))
		c.enqueue(ErrorMessage{Type: MessageError, Message: "malformed command"})
		return
	}

	switch cmd.Type {
	case CommandStart:
		if err := c.hub.engine.Start(context.Background()); err != nil {
			c.logger.Warn("Start command failed", zap.Error(err))
		}
	case CommandStop:
		c.hub.engine.Stop()
	case CommandToggle:
		if err := c.hub.engine.Toggle(context.Background()); err != nil {
			c.logger.Warn("Toggle command failed", zap.Error(err))
		}
	case CommandCancel:
		c.hub.engine.Cancel()
	case CommandMute:
		c.hub.engine.SetMuted(true)
	case CommandUnmute:
		c.hub.engine.SetMuted(false)
	default:
		c.logger.Warn("Unknown command type", zap.String("type", cmd.Type))
		c.enqueue(ErrorMessage{Type: MessageError, Message: "unknown command: " + cmd.Type})
	}
}
