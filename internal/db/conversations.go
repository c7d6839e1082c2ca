package db

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateConversation creates a new conversation, optionally titled
func (db *DB) CreateConversation(ctx context.Context, userID string, title *string) (*Conversation, error) {
	query := `
		INSERT INTO conversations (user_id, title)
		VALUES ($1, $2)
		RETURNING id, user_id, title, created_at, updated_at
	`

	var c Conversation
	err := db.QueryRowContext(ctx, query, userID, title).Scan(
		&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return &c, nil
}

// GetConversation retrieves a conversation by ID
func (db *DB) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	query := `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations
		WHERE id = $1
	`

	var c Conversation
	err := db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return &c, nil
}

// GetConversations retrieves a paginated list of conversations for a user
func (db *DB) GetConversations(ctx context.Context, userID string, limit, offset int) ([]Conversation, error) {
	query := `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations
		WHERE user_id = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]Conversation, 0)
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}

	return conversations, nil
}

// SetConversationTitle stores the generated title for a conversation
func (db *DB) SetConversationTitle(ctx context.Context, id, title string) error {
	query := `
		UPDATE conversations
		SET title = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := db.ExecContext(ctx, query, title, id)
	if err != nil {
		return fmt.Errorf("failed to set conversation title: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteConversation deletes a conversation and its messages (via cascade)
func (db *DB) DeleteConversation(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx, "DELETE FROM conversations WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// SaveMessage saves a chat message with its provider-reported token counts
func (db *DB) SaveMessage(ctx context.Context, conversationID, role, content string, promptTokens, responseTokens int) (*Message, error) {
	query := `
		INSERT INTO messages (conversation_id, role, content, prompt_tokens, response_tokens)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, conversation_id, role, content, prompt_tokens, response_tokens, created_at
	`

	msg := &Message{}
	err := db.QueryRowContext(ctx, query, conversationID, role, content, promptTokens, responseTokens).Scan(
		&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content,
		&msg.PromptTokens, &msg.ResponseTokens, &msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	return msg, nil
}

// GetMessages retrieves the messages of a conversation in chronological order
func (db *DB) GetMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	query := `
		SELECT id, conversation_id, role, content, prompt_tokens, response_tokens, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	messages := make([]Message, 0, limit)
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content,
			&msg.PromptTokens, &msg.ResponseTokens, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}
