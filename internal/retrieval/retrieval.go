package retrieval

import (
	"math"
	"sort"
)

// Match is a document chunk ranked against a query vector
type Match struct {
	ChunkID       string
	DocumentID    string
	DocumentTitle string
	Content       string
	Score         float64
}

// Candidate is a stored chunk offered for ranking
type Candidate struct {
	ChunkID       string
	DocumentID    string
	DocumentTitle string
	Content       string
	Embedding     []float64
}

// Config controls ranking behaviour
type Config struct {
	TopK     int     // Maximum matches returned. Default: 4
	MinScore float64 // Minimum cosine similarity to include. Default: 0.7
}

// Ranker scores stored chunk embeddings against a query vector
type Ranker struct {
	cfg Config
}

// NewRanker returns a Ranker with the given configuration.
// Zero-value fields are replaced with defaults.
func NewRanker(cfg Config) *Ranker {
	if cfg.TopK == 0 {
		cfg.TopK = 4
	}
	if cfg.MinScore == 0 {
		cfg.MinScore = 0.7
	}
	return &Ranker{cfg: cfg}
}

// Rank returns the top-scoring candidates by cosine similarity, best first.
// Candidates below the minimum score or with mismatched dimensions are
// dropped.
func (r *Ranker) Rank(query []float64, candidates []Candidate) []Match {
	matches := make([]Match, 0, len(candidates))

	for _, c := range candidates {
		score, ok := CosineSimilarity(query, c.Embedding)
		if !ok || score < r.cfg.MinScore {
			continue
		}
		matches = append(matches, Match{
			ChunkID:       c.ChunkID,
			DocumentID:    c.DocumentID,
			DocumentTitle: c.DocumentTitle,
			Content:       c.Content,
			Score:         score,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > r.cfg.TopK {
		matches = matches[:r.cfg.TopK]
	}

	return matches
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// The second return value is false when the vectors cannot be compared
// (mismatched dimensions or a zero vector).
func CosineSimilarity(a, b []float64) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, false
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}
