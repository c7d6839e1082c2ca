package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// CreateDocument registers an uploaded document
func (db *DB) CreateDocument(ctx context.Context, doc *Document) error {
	query := `
		INSERT INTO documents (user_id, title, filename, chunk_count)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	return db.QueryRowContext(ctx, query,
		doc.UserID, doc.Title, doc.Filename, doc.ChunkCount,
	).Scan(&doc.ID, &doc.CreatedAt)
}

// GetDocument retrieves a document by ID
func (db *DB) GetDocument(ctx context.Context, id string) (*Document, error) {
	query := `
		SELECT id, user_id, title, filename, chunk_count, created_at
		FROM documents
		WHERE id = $1
	`

	doc := &Document{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&doc.ID, &doc.UserID, &doc.Title, &doc.Filename, &doc.ChunkCount, &doc.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return doc, nil
}

// GetUserDocuments lists a user's documents, newest first
func (db *DB) GetUserDocuments(ctx context.Context, userID string) ([]Document, error) {
	query := `
		SELECT id, user_id, title, filename, chunk_count, created_at
		FROM documents
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents: %w", err)
	}
	defer rows.Close()

	documents := make([]Document, 0)
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.UserID, &doc.Title, &doc.Filename,
			&doc.ChunkCount, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		documents = append(documents, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return documents, nil
}

// DeleteDocument deletes a document and its chunks (via cascade)
func (db *DB) DeleteDocument(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx, "DELETE FROM documents WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
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

// SaveChunk stores one document chunk with its embedding vector
func (db *DB) SaveChunk(ctx context.Context, chunk *Chunk) error {
	query := `
		INSERT INTO chunks (document_id, position, content, embedding)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	return db.QueryRowContext(ctx, query,
		chunk.DocumentID, chunk.Position, chunk.Content, pq.Array(chunk.Embedding),
	).Scan(&chunk.ID, &chunk.CreatedAt)
}

// GetUserChunks retrieves every chunk embedding belonging to a user's
// documents, joined with the document title for attribution.
func (db *DB) GetUserChunks(ctx context.Context, userID string) ([]Chunk, map[string]string, error) {
	query := `
		SELECT c.id, c.document_id, c.position, c.content, c.embedding, c.created_at, d.title
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.user_id = $1
		ORDER BY d.created_at, c.position
	`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get chunks: %w", err)
	}
	defer rows.Close()

	chunks := make([]Chunk, 0)
	titles := make(map[string]string)
	for rows.Next() {
		var chunk Chunk
		var title string
		var embedding pq.Float64Array
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Position, &chunk.Content,
			&embedding, &chunk.CreatedAt, &title); err != nil {
			return nil, nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunk.Embedding = []float64(embedding)
		chunks = append(chunks, chunk)
		titles[chunk.DocumentID] = title
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating chunks: %w", err)
	}

	return chunks, titles, nil
}
