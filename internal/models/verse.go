// ABOUTME: Verse model for the Bible embeddings corpus
// ABOUTME: Maps CMS verse records into LabeledEmbedding form
package models

import "fmt"

// Verse is one Bible verse record as stored in the embeddings CMS.
type Verse struct {
	Book      string    `json:"book"`
	Chapter   int       `json:"chapter"`
	Verse     int       `json:"verse"`
	Text      string    `json:"text"`
	Embedding Embedding `json:"embedding"`
}

// Labeled converts a verse record into the common LabeledEmbedding form,
// with a "Book Chapter:Verse" citation label.
func (v Verse) Labeled() LabeledEmbedding {
	return LabeledEmbedding{
		Label:     fmt.Sprintf("%s %d:%d", v.Book, v.Chapter, v.Verse),
		Source:    v.Text,
		Embedding: v.Embedding,
	}
}
