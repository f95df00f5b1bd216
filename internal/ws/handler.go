package ws

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 256 * 1024, // room for base64 encoded JPEG frames
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades HTTP requests into hub subscriptions. Routes carry
// the stream id as a chi URL parameter.
type Handler struct {
	hub *Hub
}

// NewHandler creates a WebSocket handler backed by a hub.
func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// ServeFrames handles /ws/frames/{id}.
func (h *Handler) ServeFrames(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, ChannelFrames)
}

// ServeAlerts handles /ws/alerts/{id}.
func (h *Handler) ServeAlerts(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, ChannelAlerts)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, kind ChannelKind) {
	streamID := chi.URLParam(r, "id")
	if streamID == "" {
		http.Error(w, "stream id required", http.StatusBadRequest)
		return
	}
	// Reject unknown ids before consuming the connection with an upgrade.
	if !h.hub.HasStream(streamID) {
		http.Error(w, "stream not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] upgrade error: %v", err)
		return
	}

	sub := newWSSubscriber(conn)
	if err := h.hub.Subscribe(streamID, kind, sub); err != nil {
		log.Printf("[WS] subscribe failed for %s/%s: %v", streamID, kind, err)
		conn.Close()
		return
	}
	log.Printf("[WS] new %s subscriber for stream %s from %s", kind, streamID, r.RemoteAddr)

	go h.readPump(streamID, kind, sub)
}

// readPump keeps the connection alive with pings and detects client
// disconnects; the client never needs to send anything.
func (h *Handler) readPump(streamID string, kind ChannelKind, sub *wsSubscriber) {
	conn := sub.conn
	defer func() {
		h.hub.Unsubscribe(streamID, kind, sub)
		conn.Close()
	}()

	conn.SetReadLimit(512) // clients shouldn't send much
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	go func() {
		for range ticker.C {
			if err := sub.ping(); err != nil {
				return
			}
		}
	}()

	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] read error for %s/%s: %v", streamID, kind, err)
			}
			return
		}
	}
}
