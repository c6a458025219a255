// ABOUTME: Embedding models for similarity ranking over the writing corpora
// ABOUTME: Defines Embedding, LabeledEmbedding, Passage and SimilarityHit
package models

// Embedding is a fixed-length semantic vector for a piece of text.
type Embedding []float64

// LabeledEmbedding is one retrievable unit of a corpus: a citation label,
// the human-readable source text, and its vector. Immutable once loaded.
type LabeledEmbedding struct {
	Label     string    `json:"label"`
	Source    string    `json:"source"`
	Embedding Embedding `json:"embedding"`
}

// Passage is a LabeledEmbedding with the vector stripped, as returned to
// callers of the ranking engine.
type Passage struct {
	Label  string `json:"label"`
	Source string `json:"source"`
}

// Passage returns the embedding-stripped view of a LabeledEmbedding.
func (le LabeledEmbedding) Passage() Passage {
	return Passage{Label: le.Label, Source: le.Source}
}

// SimilarityHit is one threshold-clearing match. Result holds the matched
// passage plus its positional neighbors when context expansion is enabled.
type SimilarityHit struct {
	Result []Passage `json:"result"`
	Score  float64   `json:"score"`
}
