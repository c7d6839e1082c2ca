package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/deskmate/deskmate-be/internal/db"
	"github.com/gin-gonic/gin"
)

// ConversationHandler serves the conversation history endpoints
type ConversationHandler struct {
	db *db.DB
}

func NewConversationHandler(database *db.DB) *ConversationHandler {
	return &ConversationHandler{db: database}
}

func (h *ConversationHandler) RegisterRoutes(r *gin.RouterGroup) {
	conversations := r.Group("/conversations")
	conversations.GET("", h.ListConversations)
	conversations.GET("/:id", h.GetConversation)
	conversations.DELETE("/:id", h.DeleteConversation)
	conversations.GET("/:id/messages", h.GetMessages)
}

func (h *ConversationHandler) ListConversations(c *gin.Context) {
	userID := c.MustGet("user_id").(string)

	limit := queryInt(c, "limit", 20, 100)
	offset := queryInt(c, "offset", 0, 1<<30)

	conversations, err := h.db.GetConversations(c.Request.Context(), userID, limit, offset)
	if err != nil {
		log.Printf("Failed to get conversations: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve conversations"})
		return
	}

	c.JSON(http.StatusOK, conversations)
}

func (h *ConversationHandler) GetConversation(c *gin.Context) {
	conv, ok := h.ownedConversation(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, conv)
}

func (h *ConversationHandler) DeleteConversation(c *gin.Context) {
	conv, ok := h.ownedConversation(c)
	if !ok {
		return
	}

	if err := h.db.DeleteConversation(c.Request.Context(), conv.ID); err != nil {
		log.Printf("Failed to delete conversation: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Conversation deleted"})
}

func (h *ConversationHandler) GetMessages(c *gin.Context) {
	conv, ok := h.ownedConversation(c)
	if !ok {
		return
	}

	limit := queryInt(c, "limit", 50, 200)

	messages, err := h.db.GetMessages(c.Request.Context(), conv.ID, limit)
	if err != nil {
		log.Printf("Failed to get messages: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve messages"})
		return
	}

	c.JSON(http.StatusOK, messages)
}

// ownedConversation loads the conversation in the :id parameter and
// verifies the caller owns it. Missing and foreign conversations both
// return 404 so ownership cannot be probed.
func (h *ConversationHandler) ownedConversation(c *gin.Context) (*db.Conversation, bool) {
	userID := c.MustGet("user_id").(string)
	id := c.Param("id")

	conv, err := h.db.GetConversation(c.Request.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return nil, false
	}
	if err != nil {
		log.Printf("Failed to get conversation: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return nil, false
	}
	if conv.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return nil, false
	}

	return conv, true
}

func queryInt(c *gin.Context, name string, fallback, max int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 || v > max {
		return fallback
	}
	return v
}
