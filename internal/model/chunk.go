package model

import (
	"encoding/json"
	"time"
)

// Chunk stores one bounded, overlapping segment of a document page together
// with its embedding. Embedding is stored as a JSON array of float32 for
// portability. UserID always equals the owning document's UserID; every
// retrieval query filters on it.
type Chunk struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DocumentID uint      `gorm:"not null;index;uniqueIndex:uq_chunk_pos,priority:1" json:"document_id"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	Page       int       `gorm:"not null;uniqueIndex:uq_chunk_pos,priority:2" json:"page"`
	ChunkIndex int       `gorm:"not null;uniqueIndex:uq_chunk_pos,priority:3" json:"chunk_index"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Embedding  string    `gorm:"type:text" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// EmbeddingVector returns the parsed embedding slice; empty on parse error.
func (c *Chunk) EmbeddingVector() []float32 {
	if c.Embedding == "" {
		return nil
	}
	var v []float32
	_ = json.Unmarshal([]byte(c.Embedding), &v)
	return v
}

// SetEmbedding stores the embedding as JSON.
func (c *Chunk) SetEmbedding(vec []float32) {
	if len(vec) == 0 {
		c.Embedding = "[]"
		return
	}
	b, _ := json.Marshal(vec)
	c.Embedding = string(b)
}
