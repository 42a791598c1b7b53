package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"assessd/internal/service"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MsgProgress  MessageType = service.EventProgress
	MsgCompleted MessageType = service.EventCompleted
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Connection is one watcher of a session: a recruiter dashboard or the
// candidate's own client.
type Connection struct {
	SessionID string
	WatcherID string
	Send      chan []byte
}

// broadcastMessage either carries data or, with hangup set, closes every
// watcher of the session after the messages queued before it.
type broadcastMessage struct {
	sessionID string
	data      []byte
	hangup    bool
}

// Hub fans session events out to the connections watching them
type Hub struct {
	watchers map[string]map[*Connection]struct{} // sessionID -> conns

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan broadcastMessage
	done       chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once

	log *zap.Logger
}

var _ service.Broadcaster = (*Hub)(nil)

// NewHub creates a hub and starts its run loop. Close stops it.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		watchers:   make(map[string]map[*Connection]struct{}),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan broadcastMessage, 256),
		done:       make(chan struct{}),
		log:        logger,
	}
	h.wg.Add(1)
	go h.run()
	return h
}

func (h *Hub) run() {
	defer h.wg.Done()
	for {
		select {
		case conn := <-h.register:
			conns := h.watchers[conn.SessionID]
			if conns == nil {
				conns = make(map[*Connection]struct{})
				h.watchers[conn.SessionID] = conns
			}
			conns[conn] = struct{}{}
			h.log.Debug("watcher connected",
				zap.String("session_id", conn.SessionID),
				zap.String("watcher", conn.WatcherID),
			)

		case conn := <-h.unregister:
			if conns, ok := h.watchers[conn.SessionID]; ok {
				if _, ok := conns[conn]; ok {
					delete(conns, conn)
					close(conn.Send)
					if len(conns) == 0 {
						delete(h.watchers, conn.SessionID)
					}
					h.log.Debug("watcher disconnected",
						zap.String("session_id", conn.SessionID),
						zap.String("watcher", conn.WatcherID),
					)
				}
			}

		case msg := <-h.broadcast:
			if msg.hangup {
				for conn := range h.watchers[msg.sessionID] {
					close(conn.Send)
				}
				delete(h.watchers, msg.sessionID)
				continue
			}
			for conn := range h.watchers[msg.sessionID] {
				select {
				case conn.Send <- msg.data:
				default:
					// Drop message if buffer full
				}
			}

		case <-h.done:
			for _, conns := range h.watchers {
				for conn := range conns {
					close(conn.Send)
				}
			}
			h.watchers = nil
			return
		}
	}
}

// Register adds a connection. It is a no-op once the hub is closed.
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
	}
}

// Unregister removes a connection and closes its Send channel
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// BroadcastToWatchers sends a message to every watcher of a session (implements service.Broadcaster)
func (h *Hub) BroadcastToWatchers(sessionID string, msgType string, payload interface{}) {
	data, err := encode(MessageType(msgType), payload)
	if err != nil {
		h.log.Warn("encode broadcast", zap.String("type", msgType), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- broadcastMessage{sessionID: sessionID, data: data}:
	case <-h.done:
	}
}

// DisconnectSession drops every watcher of a session once the messages
// already queued for it are delivered (implements service.Broadcaster)
func (h *Hub) DisconnectSession(sessionID string) {
	select {
	case h.broadcast <- broadcastMessage{sessionID: sessionID, hangup: true}:
	case <-h.done:
	}
}

// Close stops the run loop and closes all watcher connections
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
	h.wg.Wait()
}

func encode(t MessageType, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&Message{Type: t, Payload: raw})
}
