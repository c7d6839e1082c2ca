package api

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/deskmate/deskmate-be/internal/db"
	"github.com/deskmate/deskmate-be/internal/docs"
	"github.com/deskmate/deskmate-be/internal/gateway"
	"github.com/gin-gonic/gin"
)

// maxUploadBytes caps the size of an uploaded document
const maxUploadBytes = 10 << 20 // 10 MB

// Embedder is the slice of the gateway the document pipeline needs
type Embedder interface {
	GenerateEmbedding(ctx context.Context, sessionID, input string) (*gateway.EmbeddingResult, error)
}

// DocumentHandler serves the reference document endpoints: upload,
// list, and delete. Uploads are chunked and embedded immediately so
// the chunks are retrievable in the next chat turn.
type DocumentHandler struct {
	db       *db.DB
	ingestor *docs.Ingestor
	embedder Embedder
}

func NewDocumentHandler(database *db.DB, ingestor *docs.Ingestor, embedder Embedder) *DocumentHandler {
	return &DocumentHandler{
		db:       database,
		ingestor: ingestor,
		embedder: embedder,
	}
}

func (h *DocumentHandler) RegisterRoutes(r *gin.RouterGroup) {
	documents := r.Group("/documents")
	documents.POST("", h.Upload)
	documents.GET("", h.ListDocuments)
	documents.DELETE("/:id", h.DeleteDocument)
}

// Upload accepts a multipart file, extracts its text, and stores one
// embedded chunk per text window.
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID := c.MustGet("user_id").(string)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing file upload"})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File exceeds the 10 MB upload limit"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
		return
	}

	text, err := h.ingestor.ExtractText(fileHeader.Filename, data)
	if errors.Is(err, docs.ErrUnsupportedFormat) {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "Unsupported document format"})
		return
	}
	if err != nil {
		log.Printf("Failed to extract text from %s: %v", fileHeader.Filename, err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Could not extract text from document"})
		return
	}

	chunks := h.ingestor.Split(text)
	if len(chunks) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Document contains no text"})
		return
	}

	title := c.PostForm("title")
	if title == "" {
		title = fileHeader.Filename
	}

	doc := &db.Document{
		UserID:     userID,
		Title:      title,
		Filename:   fileHeader.Filename,
		ChunkCount: len(chunks),
	}
	if err := h.db.CreateDocument(c.Request.Context(), doc); err != nil {
		log.Printf("Failed to create document: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store document"})
		return
	}

	for _, chunk := range chunks {
		// The uploading user is the attribution tag for provider calls
		result, err := h.embedder.GenerateEmbedding(c.Request.Context(), userID, chunk.Content)
		if err != nil {
			log.Printf("Failed to embed chunk %d of document %s: %v", chunk.Index, doc.ID, err)
			h.removeFailedUpload(c.Request.Context(), doc.ID)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to embed document"})
			return
		}

		record := &db.Chunk{
			DocumentID: doc.ID,
			Position:   chunk.Index,
			Content:    chunk.Content,
			Embedding:  result.Vector,
		}
		if err := h.db.SaveChunk(c.Request.Context(), record); err != nil {
			log.Printf("Failed to save chunk %d of document %s: %v", chunk.Index, doc.ID, err)
			h.removeFailedUpload(c.Request.Context(), doc.ID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store document"})
			return
		}
	}

	c.JSON(http.StatusCreated, doc)
}

// removeFailedUpload deletes the document row (cascading its chunks) after a
// mid-upload failure, so aborted uploads never surface in listings or
// retrieval as half-embedded documents.
func (h *DocumentHandler) removeFailedUpload(ctx context.Context, docID string) {
	if err := h.db.DeleteDocument(ctx, docID); err != nil {
		log.Printf("Failed to clean up document %s after aborted upload: %v", docID, err)
	}
}

// ListDocuments returns the caller's documents, newest first
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	userID := c.MustGet("user_id").(string)

	documents, err := h.db.GetUserDocuments(c.Request.Context(), userID)
	if err != nil {
		log.Printf("Failed to list documents: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve documents"})
		return
	}

	c.JSON(http.StatusOK, documents)
}

// DeleteDocument removes a document and its chunks
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	userID := c.MustGet("user_id").(string)
	id := c.Param("id")

	doc, err := h.db.GetDocument(c.Request.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		return
	}
	if err != nil {
		log.Printf("Failed to get document: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if doc.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		return
	}

	if err := h.db.DeleteDocument(c.Request.Context(), id); err != nil {
		log.Printf("Failed to delete document: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete document"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Document deleted"})
}
