package docs

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedFormat is returned for file types ingestion cannot read
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Chunk is one embeddable slice of a document
type Chunk struct {
	Index   int
	Content string
}

// Ingestor extracts text from uploaded documents and splits it into chunks
// small enough to embed within the configured token limit.
type Ingestor struct {
	chunkWords   int
	overlapWords int
}

// NewIngestor sizes chunks off the embedding token limit. Words run a bit
// over one token each, so the word window stays under the limit with room
// to spare.
func NewIngestor(maxEmbeddingTokens int) *Ingestor {
	words := maxEmbeddingTokens * 3 / 4
	if words < 20 {
		words = 20
	}
	return &Ingestor{
		chunkWords:   words,
		overlapWords: words / 8,
	}
}

// ExtractText pulls plain text out of an uploaded file based on its
// extension. Plain text and markdown pass through; PDFs are parsed
// page by page.
func (i *Ingestor) ExtractText(filename string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".markdown", "":
		return string(data), nil
	case ".pdf":
		return extractPDF(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// extractPDF concatenates the plain text of every readable page
func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages that fail to extract
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
	}

	if sb.Len() == 0 {
		return "", errors.New("no extractable text in PDF")
	}

	return sb.String(), nil
}

// Split breaks text into overlapping word windows. Overlap keeps sentences
// that straddle a boundary retrievable from either side.
func (i *Ingestor) Split(text string) []Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	step := i.chunkWords - i.overlapWords
	chunks := make([]Chunk, 0, len(words)/step+1)

	for start := 0; start < len(words); start += step {
		end := start + i.chunkWords
		if end > len(words) {
			end = len(words)
		}

		chunks = append(chunks, Chunk{
			Index:   len(chunks),
			Content: strings.Join(words[start:end], " "),
		})

		if end == len(words) {
			break
		}
	}

	return chunks
}
