package model

import (
	"encoding/json"
	"strconv"
	"time"
)

// Chunk is one indexed window of a document's text. Chunks are immutable:
// re-ingestion replaces a document's full chunk set in one transaction.
// Embedding is stored as JSON array of float32 for portability.
type Chunk struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	DocumentID  string     `gorm:"size:36;not null;index" json:"document_id"`
	Seq         int        `gorm:"not null" json:"seq"`
	Content     string     `gorm:"type:text;not null" json:"content"`
	Embedding   string     `gorm:"type:text" json:"-"` // JSON array of float32
	SourceType  SourceType `gorm:"size:8;not null;index" json:"source_type"`
	DisplayName string     `gorm:"size:256;not null" json:"display_name"`
	Page        int        `json:"page,omitempty"` // 1-indexed pdf page, 0 for web
	URL         string     `gorm:"size:1024" json:"url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
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

// Location renders the chunk's citation location: decimal page number for
// pdf chunks, source URL for web chunks.
func (c *Chunk) Location() string {
	if c.SourceType == SourceWeb {
		return c.URL
	}
	return strconv.Itoa(c.Page)
}
