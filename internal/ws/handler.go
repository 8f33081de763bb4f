package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/civicware/report-server/internal/services"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10
)

// inbound is a client-originated frame. Only "message" frames carry a
// conversation id and content; "ping" frames keep proxies happy.
type inbound struct {
	Type           string `json:"type"`
	ConversationID int64  `json:"conversationId,omitempty"`
	Content        string `json:"content,omitempty"`
}

type outboundError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Handler upgrades authenticated requests to live connections and feeds
// client messages into the emitter and broadcast engine.
type Handler struct {
	auth     *services.AuthService
	emitter  *services.Emitter
	engine   *Engine
	registry *Registry
	upgrader websocket.Upgrader
	logger   *zap.SugaredLogger
}

// NewHandler creates the websocket handler. allowedOrigins guards the
// upgrade handshake; an empty list allows any origin (development).
func NewHandler(auth *services.AuthService, emitter *services.Emitter, engine *Engine, registry *Registry, allowedOrigins []string, logger *zap.SugaredLogger) *Handler {
	h := &Handler{
		auth:     auth,
		emitter:  emitter,
		engine:   engine,
		registry: registry,
		logger:   logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}
	return h
}

// Serve handles GET /ws?token=... A failed authentication is rejected
// synchronously, before the connection is ever registered.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, `{"error": "token is required"}`, http.StatusUnauthorized)
		return
	}
	userID, err := h.auth.VerifyToken(token)
	if err != nil {
		http.Error(w, `{"error": "invalid or expired token"}`, http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := NewClient(userID, conn)
	h.registry.Register(client)
	h.logger.Infow("Connection opened", "user_id", userID, "connection_id", client.ID)

	go h.writePump(client)
	h.readPump(r, client)
}

// readPump consumes client frames until the connection dies, then tears the
// client down.
func (h *Handler) readPump(r *http.Request, client *Client) {
	defer func() {
		client.Close()
		h.registry.Unregister(client)
		client.conn.Close()
		h.logger.Infow("Connection closed", "user_id", client.UserID, "connection_id", client.ID)
	}()

	if err := client.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var in inbound
		if err := client.conn.ReadJSON(&in); err != nil {
			return
		}

		switch in.Type {
		case "ping":
			// Pong frames are handled by the write pump's pings; nothing to do.
		case "message":
			msg, err := h.emitter.EmitUser(r.Context(), in.ConversationID, client.UserID, in.Content)
			if err != nil {
				h.writeError(client, err.Error())
				continue
			}
			h.engine.Broadcast(r.Context(), in.ConversationID, msg)
		default:
			h.writeError(client, "unsupported type: "+in.Type)
		}
	}
}

// writePump drains the client's send queue and keeps the connection alive
// with pings. A failed write treats the connection as closed.
func (h *Handler) writePump(client *Client) {
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		client.Close()
		client.conn.Close()
	}()

	for {
		select {
		case <-client.done:
			return
		case payload := <-client.send:
			if err := client.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := client.conn.WriteJSON(payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := client.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) writeError(client *Client, message string) {
	client.Push(outboundError{Type: "error", Message: message})
}
