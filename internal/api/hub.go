package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"pagebuilder/internal/editor"
	"pagebuilder/internal/service"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Message is the envelope written to websocket listeners.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub fans session events out to websocket listeners. Each listener has a
// buffered channel; when it is full the event is dropped for that listener
// only. Hub implements service.EventEmitter.
type Hub struct {
	mu        sync.RWMutex
	listeners map[uint64]*listener
	nextID    uint64
	bufSize   int
}

type listener struct {
	sessionID string
	ch        chan Message
}

func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 32
	}
	return &Hub{listeners: map[uint64]*listener{}, bufSize: bufSize}
}

// Register subscribes to the events of one session.
func (h *Hub) Register(sessionID string) (uint64, <-chan Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	l := &listener{sessionID: sessionID, ch: make(chan Message, h.bufSize)}
	h.listeners[id] = l
	return id, l.ch
}

// Unregister removes a listener and closes its channel. Unknown ids are ignored.
func (h *Hub) Unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if l, ok := h.listeners[id]; ok {
		delete(h.listeners, id)
		close(l.ch)
	}
}

func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

// Emit delivers event to the listeners of every session it concerns.
func (h *Hub) Emit(_ context.Context, event string, data any) {
	targets := sessionsOf(data)
	if len(targets) == 0 {
		return
	}
	msg := Message{Type: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, l := range h.listeners {
		if _, ok := targets[l.sessionID]; !ok {
			continue
		}
		select {
		case l.ch <- msg:
		default:
			logrus.WithFields(logrus.Fields{
				"session_id": l.sessionID,
				"event":      event,
			}).Debug("dropping event for slow listener")
		}
	}
}

func sessionsOf(data any) map[string]struct{} {
	out := map[string]struct{}{}
	switch v := data.(type) {
	case editor.View:
		out[v.SessionID] = struct{}{}
	case service.Notification:
		out[v.SessionID] = struct{}{}
	case map[string]string:
		if id := v["sessionId"]; id != "" {
			out[id] = struct{}{}
		}
	case map[string]any:
		if id, ok := v["sessionId"].(string); ok && id != "" {
			out[id] = struct{}{}
		}
		if ids, ok := v["sessionIds"].([]string); ok {
			for _, id := range ids {
				out[id] = struct{}{}
			}
		}
	}
	return out
}

// ServeSession upgrades the request and streams the session's events until
// the client goes away. The current view is sent first.
func (h *Hub) ServeSession(upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request, sess *editor.Session) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	id, events := h.Register(sess.ID())
	defer h.Unregister(id)

	log := logrus.WithField("session_id", sess.ID())
	log.Debug("websocket connected")
	defer log.Debug("websocket disconnected")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(4096)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(m Message) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(m)
	}
	if err := write(Message{Type: editor.EventChanged, Data: sess.View()}); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case m, ok := <-events:
			if !ok {
				return
			}
			if err := write(m); err != nil {
				log.WithError(err).Debug("websocket write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
