package docs

import (
	"errors"
	"strings"
	"testing"
)

func TestExtractText_PlainFormats(t *testing.T) {
	ing := NewIngestor(8000)

	tests := []struct {
		filename string
		data     string
	}{
		{"notes.txt", "plain text content"},
		{"guide.md", "# heading\n\nbody"},
		{"README.markdown", "markdown body"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, err := ing.ExtractText(tt.filename, []byte(tt.data))
			if err != nil {
				t.Fatalf("ExtractText() error = %v", err)
			}
			if got != tt.data {
				t.Errorf("ExtractText() = %q, want passthrough", got)
			}
		})
	}
}

func TestExtractText_UnsupportedFormat(t *testing.T) {
	ing := NewIngestor(8000)

	_, err := ing.ExtractText("sheet.xlsx", []byte("binary"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestExtractText_InvalidPDF(t *testing.T) {
	ing := NewIngestor(8000)

	_, err := ing.ExtractText("broken.pdf", []byte("not a pdf"))
	if err == nil {
		t.Error("expected error for invalid PDF data")
	}
}

func TestSplit(t *testing.T) {
	// chunkWords = 8000*3/4 is far bigger than the input; force a small
	// window through the minimum clamp instead
	ing := &Ingestor{chunkWords: 8, overlapWords: 2}

	words := make([]string, 20)
	for i := range words {
		words[i] = "w" + string(rune('a'+i))
	}
	chunks := ing.Split(strings.Join(words, " "))

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}

	// Chunks step by chunkWords-overlapWords = 6 and are 8 words wide
	first := strings.Fields(chunks[0].Content)
	second := strings.Fields(chunks[1].Content)
	if len(first) != 8 {
		t.Errorf("first chunk has %d words, want 8", len(first))
	}
	if second[0] != first[6] {
		t.Errorf("second chunk should start at word 7 of first, got %q vs %q", second[0], first[6])
	}

	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
	}
}

func TestSplit_ShortInput(t *testing.T) {
	ing := NewIngestor(8000)

	chunks := ing.Split("just a few words")
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Content != "just a few words" {
		t.Errorf("chunk = %q", chunks[0].Content)
	}
}

func TestSplit_Empty(t *testing.T) {
	ing := NewIngestor(8000)

	if chunks := ing.Split("   \n\t "); chunks != nil {
		t.Errorf("got %d chunks for whitespace input, want none", len(chunks))
	}
}

func TestNewIngestor_MinimumWindow(t *testing.T) {
	ing := NewIngestor(4)
	if ing.chunkWords != 20 {
		t.Errorf("chunkWords = %d, want clamped minimum 20", ing.chunkWords)
	}
}
