package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/smartlight/smartlight-core/internal/auth"
	"github.com/smartlight/smartlight-core/internal/bridge"
	"github.com/smartlight/smartlight-core/internal/infrastructure/config"
	"github.com/smartlight/smartlight-core/internal/infrastructure/logging"
)

// wsSendBufferSize is the per-session outbound message buffer size.
const wsSendBufferSize = 256

// controlIntent is an inbound session message requesting a device command.
type controlIntent struct {
	Token   string          `json:"token"`
	Payload json.RawMessage `json:"payload"`
}

// wsError is sent to a session when an inbound message is rejected.
type wsError struct {
	Error string `json:"error"`
	Token string `json:"token,omitempty"`
}

// Hub manages WebSocket sessions grouped by user ID. A user may hold many
// sessions (phone, browser tabs); a status update addressed to a user is
// delivered to every live session in the group.
//
// Hub implements bridge.Hub so the fan-out publisher can address users
// without knowing about connections.
type Hub struct {
	cfg      config.WebSocketConfig
	logger   *logging.Logger
	sessions map[string]map[*Session]struct{} // keyed by user ID
	mu       sync.RWMutex
}

// Session represents one connected WebSocket client.
type Session struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates a new WebSocket hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]map[*Session]struct{}),
	}
}

// Run blocks until the context is cancelled, then disconnects all sessions.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a session to its user's group. Any snapshot messages queued
// on the session's send channel before registration are delivered ahead of
// subsequent broadcasts.
func (h *Hub) Register(sess *Session) {
	h.mu.Lock()
	group, ok := h.sessions[sess.userID]
	if !ok {
		group = make(map[*Session]struct{})
		h.sessions[sess.userID] = group
	}
	group[sess] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket session connected", "user_id", sess.userID, "sessions", h.SessionCount())
}

// Unregister removes a session from its user's group synchronously, so no
// broadcast after return can reach the session. Only the goroutine that
// removes the session from the map closes the send channel, preventing
// double-close panics during shutdown.
func (h *Hub) Unregister(sess *Session) {
	h.mu.Lock()
	group := h.sessions[sess.userID]
	_, existed := group[sess]
	delete(group, sess)
	if len(group) == 0 {
		delete(h.sessions, sess.userID)
	}
	h.mu.Unlock()

	if existed {
		close(sess.send)
	}
	h.logger.Debug("websocket session disconnected", "user_id", sess.userID, "sessions", h.SessionCount())
}

// SendToUser delivers a message to every live session of the given user.
// Best-effort: disconnected users cost nothing, slow sessions are skipped.
// Implements bridge.Hub.
func (h *Hub) SendToUser(userID string, message any) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal websocket message", "error", err)
		return
	}

	// Snapshot the group under the hub lock, then release before sending
	h.mu.RLock()
	group := h.sessions[userID]
	sessions := make([]*Session, 0, len(group))
	for sess := range group {
		sessions = append(sessions, sess)
	}
	h.mu.RUnlock()

	for _, sess := range sessions {
		sess.trySend(data)
	}
}

// SessionCount returns the number of connected sessions across all users.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, group := range h.sessions {
		n += len(group)
	}
	return n
}

// closeAll disconnects every session and closes their send channels
// so writePump goroutines can exit cleanly.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, group := range h.sessions {
		for sess := range group {
			close(sess.send)
			if sess.conn != nil {
				sess.conn.Close()
			}
		}
		delete(h.sessions, userID)
	}
}

// handleWebSocket upgrades the HTTP connection to a WebSocket session.
//
// Authentication is via the token query parameter (the access JWT), since
// browsers cannot attach headers to upgrade requests. After the upgrade the
// handler queues a status snapshot of every device visible to the user onto
// the session's send buffer, then registers the session with the hub. The
// queue-then-register order guarantees no live update is delivered before
// the snapshot that precedes it.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	rawToken := r.URL.Query().Get("token")
	if rawToken == "" {
		writeUnauthorized(w, "token query parameter is required")
		return
	}
	claims, err := auth.ParseToken(rawToken, s.secCfg.JWT.Secret)
	if err != nil {
		writeUnauthorized(w, "invalid or expired token")
		return
	}

	// Snapshot visible devices before the upgrade so a registry failure can
	// still produce a proper HTTP error.
	devices, err := s.registry.ListDevicesByUser(r.Context(), claims.Subject)
	if err != nil {
		s.logger.Error("websocket snapshot query failed", "user_id", claims.Subject, "error", err)
		writeInternalError(w, "failed to load device snapshot")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	sess := &Session{
		hub:    s.hub,
		conn:   conn,
		send:   make(chan []byte, wsSendBufferSize),
		userID: claims.Subject,
	}

	// The write pump starts before the snapshot is queued so large
	// snapshots drain instead of blocking on a full send buffer.
	go sess.writePump(s.wsCfg)

	// Queue the snapshot ahead of hub registration: the send channel is
	// FIFO, so every broadcast that reaches this session arrives after
	// the snapshot entries already queued.
	for i := range devices {
		dev := &devices[i]
		msg := bridge.StatusMessage{
			Device:    dev.Name,
			Token:     dev.Token,
			Status:    dev.Status,
			Establish: dev.Connection,
		}
		data, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		sess.trySend(data)
	}

	s.hub.Register(sess)

	go sess.readPump(s)
}

// readPump reads control intents from the session and routes them to the
// command dispatcher. It owns the connection's read side and unregisters
// the session on exit.
func (sess *Session) readPump(s *Server) {
	defer func() {
		sess.hub.Unregister(sess)
		sess.conn.Close()
	}()

	cfg := s.wsCfg
	sess.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	sess.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	sess.conn.SetPongHandler(func(string) error {
		return sess.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sess.hub.logger.Warn("websocket read error", "user_id", sess.userID, "error", err)
			} else {
				sess.hub.logger.Debug("websocket closed", "user_id", sess.userID, "error", err)
			}
			return
		}
		// Any client message resets the read deadline (keeps the session
		// alive even if the browser ignores protocol-level pings).
		//nolint:errcheck // Best-effort deadline reset
		sess.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		sess.handleIntent(s, message)
	}
}

// handleIntent decodes a control intent and dispatches it without
// confirmation. Dispatch failures are reported to the session only; they
// never terminate the connection.
func (sess *Session) handleIntent(s *Server, data []byte) {
	var intent controlIntent
	if err := json.Unmarshal(data, &intent); err != nil || intent.Token == "" {
		sess.sendError("", "invalid control message")
		return
	}

	if s.dispatcher == nil {
		sess.sendError(intent.Token, "commands unavailable")
		return
	}

	payload := rawPayloadString(intent.Payload)
	if _, err := s.dispatcher.Dispatch(context.Background(), sess.userID, intent.Token, payload, false); err != nil {
		sess.hub.logger.Debug("session command rejected",
			"user_id", sess.userID,
			"token", intent.Token,
			"error", err,
		)
		sess.sendError(intent.Token, err.Error())
	}
}

// rawPayloadString converts a JSON payload field to the raw command string
// the dispatcher normalizes: JSON strings are unquoted, every other value
// is passed through as its JSON text ("true", "1", ...).
func rawPayloadString(raw json.RawMessage) string {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	return string(raw)
}

// writePump writes queued messages to the connection and keeps it alive
// with protocol pings.
func (sess *Session) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		sess.conn.Close()
	}()

	pongWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case message, ok := <-sess.send:
			if !ok {
				// Hub closed the channel
				//nolint:errcheck // Best-effort close message
				sess.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			sess.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := sess.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			sess.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// trySend attempts to enqueue data for the session. It silently handles
// closed channels (session disconnected during broadcast) and full buffers
// (slow client).
func (sess *Session) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel during disconnect
	}()

	select {
	case sess.send <- data:
	default:
		// Session buffer full, skip
	}
}

// sendError reports a rejected inbound message to the session.
func (sess *Session) sendError(token, message string) {
	data, err := json.Marshal(wsError{Error: message, Token: token})
	if err != nil {
		return
	}
	sess.trySend(data)
}
