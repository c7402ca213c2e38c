package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"willcloud/internal/service"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// EventsHandler pushes dashboard events over a WebSocket so clients can
// refresh only what changed instead of waiting for the periodic reload.
type EventsHandler struct {
	sessions sessionLookup
	upgrader websocket.Upgrader
}

func NewEventsHandler(sessions *service.Sessions) *EventsHandler {
	return &EventsHandler{
		sessions: tokenSessions{sessions: sessions},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	d, ok := dashboardFor(h.sessions, w, r)
	if !ok {
		return
	}

	// Subscribed before the handshake completes so no event published after
	// the client connects is missed.
	events, unsubscribe := d.Subscribe()
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Events] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				log.Printf("[Events] write failed: %v", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
