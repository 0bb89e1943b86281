package generator

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type GenerationState string

const (
	StateInitialized GenerationState = "initialized"
	StateGenerating  GenerationState = "generating"
	StateCompleted   GenerationState = "completed"
	StateError       GenerationState = "error"
)

// Terminal reports whether the session can no longer change state.
func (s GenerationState) Terminal() bool {
	return s == StateCompleted || s == StateError
}

// WriteWait bounds each socket write so a stalled browser cannot hold up
// generation.
var WriteWait = 10 * time.Second

func writeJSON(conn *websocket.Conn, msg WSMessage) error {
	conn.SetWriteDeadline(time.Now().Add(WriteWait))
	return conn.WriteJSON(msg)
}

// DefaultHistoryLimit caps the messages replayed to a new socket.
const DefaultHistoryLimit = 200

// GenerationProgress tracks one book request. It implements the storybook
// Progressor so the generator can report into it directly.
type GenerationProgress struct {
	mu        sync.RWMutex
	SessionID string
	State     GenerationState
	Output    string
	Page      int
	Total     int
	Error     string
	ErrorKind string
	Download  string
	WSConn    *websocket.Conn
	StartTime time.Time
	history   *MessageHistory
}

func NewGenerationProgress(sessionID string) *GenerationProgress {
	return &GenerationProgress{
		SessionID: sessionID,
		State:     StateInitialized,
		StartTime: time.Now(),
		history:   NewMessageHistory(DefaultHistoryLimit),
	}
}

// Close ends the attached socket, if any.
func (gp *GenerationProgress) Close() {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	if gp.WSConn != nil {
		gp.WSConn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(WriteWait))
		gp.WSConn.Close()
		gp.WSConn = nil
	}
}

func (gp *GenerationProgress) percent() int {
	if gp.State == StateCompleted {
		return 100
	}
	if gp.Total <= 0 {
		return 0
	}
	return gp.Page * 100 / gp.Total
}

// send records msg and writes it to the socket. Callers hold gp.mu.
func (gp *GenerationProgress) send(msgType, message string) {
	msg := WSMessage{
		Type:      msgType,
		Status:    string(gp.State),
		Message:   message,
		Output:    gp.Output,
		Page:      gp.Page,
		Total:     gp.Total,
		Percent:   gp.percent(),
		Download:  gp.Download,
		Error:     gp.Error,
		Timestamp: time.Now(),
	}
	gp.history.AddMessage(msg)

	if gp.WSConn == nil {
		return
	}
	if err := writeJSON(gp.WSConn, msg); err != nil {
		log.Printf("[Session %s] Failed to send WebSocket message: %v", gp.SessionID, err)
		gp.WSConn.Close()
		gp.WSConn = nil
	}
}

// UpdateState moves the session along initialized -> generating ->
// completed | error. Transitions out of a terminal state are ignored.
func (gp *GenerationProgress) UpdateState(state GenerationState) bool {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	if gp.State.Terminal() {
		log.Printf("[Session %s] Ignoring state %s after %s", gp.SessionID, state, gp.State)
		return false
	}
	log.Printf("[Session %s] State transition: %s -> %s", gp.SessionID, gp.State, state)
	gp.State = state

	message := ""
	switch state {
	case StateGenerating:
		message = "Generating your storybook..."
	case StateCompleted:
		message = "Storybook ready!"
	case StateError:
		message = "Error generating storybook"
	}
	gp.send("state", message)
	return true
}

// UpdateOutput records a progress line from the generator.
func (gp *GenerationProgress) UpdateOutput(output string) {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	gp.Output = output
	gp.send("update", output)
}

// UpdatePage records how many pages are finished.
func (gp *GenerationProgress) UpdatePage(done, total int) {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	gp.Page, gp.Total = done, total
	gp.send("page", fmt.Sprintf("%d of %d pages ready", done, total))
}

// Complete marks the book as finished with a download link.
func (gp *GenerationProgress) Complete(download string) {
	gp.mu.Lock()
	gp.Download = download
	gp.mu.Unlock()
	gp.UpdateState(StateCompleted)
}

// Fail marks the session as failed with the error message shown to users.
func (gp *GenerationProgress) Fail(kind string, err error) {
	gp.mu.Lock()
	gp.Error = err.Error()
	gp.ErrorKind = kind
	gp.mu.Unlock()
	gp.UpdateState(StateError)
}

// Attach replays the message history to conn and then makes it the live
// socket, replacing any earlier one.
func (gp *GenerationProgress) Attach(conn *websocket.Conn) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	for _, msg := range gp.history.GetMessages() {
		if err := writeJSON(conn, msg); err != nil {
			return fmt.Errorf("replaying history: %w", err)
		}
	}
	if gp.WSConn != nil && gp.WSConn != conn {
		log.Printf("[Session %s] Closing existing WebSocket connection", gp.SessionID)
		gp.WSConn.Close()
	}
	gp.WSConn = conn
	return nil
}

// Detach forgets conn if it is still the live socket.
func (gp *GenerationProgress) Detach(conn *websocket.Conn) {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	if gp.WSConn == conn {
		gp.WSConn = nil
	}
}

func (gp *GenerationProgress) GetState() GenerationState {
	gp.mu.RLock()
	defer gp.mu.RUnlock()
	return gp.State
}

func (gp *GenerationProgress) IsDone() bool {
	return gp.GetState().Terminal()
}

// Messages returns a copy of the recorded messages.
func (gp *GenerationProgress) Messages() []WSMessage {
	return gp.history.GetMessages()
}

// Snapshot is the JSON view served by the progress endpoint.
type Snapshot struct {
	SessionID string    `json:"session_id"`
	State     string    `json:"state"`
	Message   string    `json:"message"`
	Page      int       `json:"page"`
	Total     int       `json:"total"`
	Percent   int       `json:"percent"`
	Download  string    `json:"download,omitempty"`
	Error     string    `json:"error,omitempty"`
	ErrorKind string    `json:"error_kind,omitempty"`
	StartTime time.Time `json:"started_at"`
}

func (gp *GenerationProgress) Snapshot() Snapshot {
	gp.mu.RLock()
	defer gp.mu.RUnlock()
	return Snapshot{
		SessionID: gp.SessionID,
		State:     string(gp.State),
		Message:   gp.Output,
		Page:      gp.Page,
		Total:     gp.Total,
		Percent:   gp.percent(),
		Download:  gp.Download,
		Error:     gp.Error,
		ErrorKind: gp.ErrorKind,
		StartTime: gp.StartTime,
	}
}

type WSMessage struct {
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Output    string    `json:"output"`
	Page      int       `json:"page"`
	Total     int       `json:"total"`
	Percent   int       `json:"percent"`
	Download  string    `json:"download,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
