package ws

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/deskmate/deskmate-be/internal/api/middleware"
	"github.com/deskmate/deskmate-be/internal/chat"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// messagesPerMinute caps how fast a single connection may send
const messagesPerMinute = 20

// ChatHandler handles WebSocket chat connections
type ChatHandler struct {
	engine    *chat.Engine
	jwtSecret string
}

// NewChatHandler creates a new chat handler
func NewChatHandler(engine *chat.Engine, jwtSecret string) *ChatHandler {
	return &ChatHandler{
		engine:    engine,
		jwtSecret: jwtSecret,
	}
}

// IncomingMessage represents a message from the client
type IncomingMessage struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Content        string `json:"content"`
}

// OutgoingMessage represents a message to the client
type OutgoingMessage struct {
	Type  string      `json:"type"` // "reply" or "error"
	Reply *chat.Reply `json:"reply,omitempty"`
	Error string      `json:"error,omitempty"`
}

// HandleChat upgrades the connection and serves chat turns until the
// client disconnects.
func (h *ChatHandler) HandleChat(c *gin.Context) {
	token := middleware.ExtractToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing token"})
		return
	}

	claims, err := middleware.ParseToken(token, h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	userID := claims.UserID
	limiter := middleware.NewWebSocketLimiter(messagesPerMinute)

	log.Printf("WebSocket connected: user=%s", userID)

	for {
		var msg IncomingMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		if msg.Content == "" {
			h.sendError(conn, "Message content is required")
			continue
		}

		if !limiter.Allow() {
			h.sendError(conn, "Too many messages. Please slow down.")
			continue
		}

		if err := h.processMessage(c.Request.Context(), conn, userID, msg); err != nil {
			log.Printf("Error processing message: %v", err)
			h.sendError(conn, "Something went wrong handling that message")
		}
	}
}

// processMessage runs one chat turn and writes the reply back
func (h *ChatHandler) processMessage(ctx context.Context, conn *websocket.Conn, userID string, msg IncomingMessage) error {
	reply, err := h.engine.HandleMessage(ctx, userID, msg.ConversationID, msg.Content)
	if errors.Is(err, chat.ErrConversationNotFound) {
		return h.sendError(conn, "Conversation not found")
	}
	if err != nil {
		return err
	}

	return conn.WriteJSON(OutgoingMessage{
		Type:  "reply",
		Reply: reply,
	})
}

// sendError sends an error message to the client
func (h *ChatHandler) sendError(conn *websocket.Conn, message string) error {
	return conn.WriteJSON(OutgoingMessage{
		Type:  "error",
		Error: message,
	})
}
