package ui

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/opd-ai/storybook/srv/generator"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWebSocket streams progress messages for one session. Messages sent
// before the socket connected are replayed first.
func (ui *GeneratorUI) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !isValidSession(sessionID) {
		http.Error(w, "Invalid session", http.StatusBadRequest)
		return
	}

	progress, exists := ui.session(sessionID)
	if !exists {
		log.Printf("[Session %s] Session not found", sessionID)
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Session %s] WebSocket upgrade failed: %v", sessionID, err)
		return
	}
	log.Printf("[Session %s] WebSocket connection established", sessionID)

	defer func() {
		progress.Detach(conn)
		conn.Close()
		log.Printf("[Session %s] WebSocket connection terminated", sessionID)
	}()

	if err := progress.Attach(conn); err != nil {
		log.Printf("[Session %s] %v", sessionID, err)
		return
	}

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(generator.WriteWait)); err != nil {
					log.Printf("[Session %s] Ping failed: %v", sessionID, err)
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[Session %s] WebSocket error: %v", sessionID, err)
			}
			return
		}
	}
}
