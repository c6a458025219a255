// ABOUTME: Writing model for rows in the vector index
// ABOUTME: Order within a book is load-bearing for context lookups
package models

// Writing is one paragraph as stored in the vector index. Order is the
// paragraph's position within its book; context lookups rely on it.
type Writing struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Order     int       `json:"order"`
	Book      string    `json:"book"`
	Embedding Embedding `json:"embedding,omitempty"`
}
