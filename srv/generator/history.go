package generator

import "sync"

// MessageHistory keeps the most recent messages of a session.
type MessageHistory struct {
	mu       sync.RWMutex
	Messages []WSMessage
	limit    int
}

func NewMessageHistory(limit int) *MessageHistory {
	return &MessageHistory{Messages: make([]WSMessage, 0), limit: limit}
}

func (h *MessageHistory) AddMessage(msg WSMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Messages = append(h.Messages, msg)
	if h.limit > 0 && len(h.Messages) > h.limit {
		h.Messages = append(h.Messages[:0], h.Messages[len(h.Messages)-h.limit:]...)
	}
}

func (h *MessageHistory) GetMessages() []WSMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	messages := make([]WSMessage, len(h.Messages))
	copy(messages, h.Messages)
	return messages
}
