package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"assessd/internal/assessment"
	"assessd/internal/model"
	"assessd/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// SessionReader resolves the session a watcher asks for. An empty subject
// is recruiter access.
type SessionReader interface {
	Get(ctx context.Context, subjectRef, sessionID string) (*service.SessionView, error)
}

// Handler handles WebSocket connections
type Handler struct {
	hub      *Hub
	authSvc  *service.AuthService
	sessions SessionReader
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHandler creates a new WebSocket handler. checkOrigin may be nil to
// accept any origin.
func NewHandler(hub *Hub, authSvc *service.AuthService, sessions SessionReader, checkOrigin func(*http.Request) bool, logger *zap.Logger) *Handler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		hub:      hub,
		authSvc:  authSvc,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		log: logger,
	}
}

// WatchSession handles GET /v1/ws/sessions/{id}?token=
// Recruiters may watch any session, candidates only their own.
func (h *Handler) WatchSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	subject, watcher, ok := h.authorize(token)
	if !ok {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	view, err := h.sessions.Get(r.Context(), subject, id)
	switch {
	case errors.Is(err, assessment.ErrSessionNotFound):
		http.Error(w, "session not found", http.StatusNotFound)
		return
	case err != nil:
		h.log.Error("load session for watcher", zap.String("session_id", id), zap.Error(err))
		http.Error(w, "session unavailable", http.StatusServiceUnavailable)
		return
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := &Connection{
		SessionID: id,
		WatcherID: watcher,
		Send:      make(chan []byte, 256),
	}

	// the watcher starts from the current progress
	h.queue(conn, MsgProgress, service.ProgressEvent{
		SessionID:  view.ID,
		SubjectRef: view.SubjectRef,
		Instrument: view.Instrument,
		Progress:   view.Progress,
	})

	if view.Status == model.SessionCompleted {
		// nothing more will happen: deliver the result and hang up
		h.queue(conn, MsgCompleted, service.CompletedEvent{SessionID: view.ID, Result: view.Result})
		close(conn.Send)
	} else {
		h.hub.Register(conn)
		// a finalize between the load and Register would never reach conn
		if h.completed(r.Context(), subject, id) {
			h.hub.Unregister(conn)
		}
	}

	go h.writePump(wsConn, conn)
	go h.readPump(wsConn, conn)
}

// queue only runs before conn is registered, while Send has room
func (h *Handler) queue(conn *Connection, t MessageType, payload interface{}) {
	data, err := encode(t, payload)
	if err != nil {
		h.log.Warn("encode watcher message", zap.String("type", string(t)), zap.Error(err))
		return
	}
	conn.Send <- data
}

func (h *Handler) completed(ctx context.Context, subject, id string) bool {
	view, err := h.sessions.Get(ctx, subject, id)
	return err == nil && view.Status == model.SessionCompleted
}

func (h *Handler) authorize(token string) (subject, watcher string, ok bool) {
	if claims, err := h.authSvc.ValidateRecruiterToken(token); err == nil {
		return "", claims.RecruiterID, true
	}
	if claims, err := h.authSvc.ValidateCandidateToken(token); err == nil {
		return claims.SubjectRef, claims.SubjectRef, true
	}
	return "", "", false
}

func (h *Handler) readPump(wsConn *websocket.Conn, conn *Connection) {
	defer func() {
		h.hub.Unregister(conn)
		wsConn.Close()
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := wsConn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debug("websocket read", zap.String("session_id", conn.SessionID), zap.Error(err))
			}
			return
		}
		// Watchers are receive-only
	}
}

func (h *Handler) writePump(wsConn *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			w, err := wsConn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
