package memory

import (
	"sync"
	"time"
)

// Message represents a chat message in short-term memory
type Message struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// history holds the retained messages for one user
type history struct {
	messages []Message
	mu       sync.RWMutex
}

// Manager keeps per-user conversation history trimmed to an approximate
// token budget. Token counts are estimated locally; the provider reports
// exact counts only after a request has already been sent.
type Manager struct {
	users       map[string]*history
	tokenBudget int
	mu          sync.RWMutex
}

// NewManager creates a manager with the given conversation token budget
func NewManager(tokenBudget int) *Manager {
	return &Manager{
		users:       make(map[string]*history),
		tokenBudget: tokenBudget,
	}
}

// AddMessage appends a message to the user's history and evicts the oldest
// messages until the estimated token total fits the budget again.
func (m *Manager) AddMessage(userID string, msg Message) {
	m.mu.Lock()
	h, exists := m.users[userID]
	if !exists {
		h = &history{}
		m.users[userID] = h
	}
	m.mu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages = append(h.messages, msg)

	total := 0
	for _, m := range h.messages {
		total += EstimateTokens(m.Content)
	}
	for total > m.tokenBudget && len(h.messages) > 1 {
		total -= EstimateTokens(h.messages[0].Content)
		h.messages = h.messages[1:]
	}
}

// History returns a copy of the user's retained messages in order
func (m *Manager) History(userID string) []Message {
	m.mu.RLock()
	h, exists := m.users[userID]
	m.mu.RUnlock()

	if !exists {
		return []Message{}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Clear drops the user's history
func (m *Manager) Clear(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, userID)
}

// EstimateTokens approximates the provider's token count for a text.
// Roughly four characters per token for English prose.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
