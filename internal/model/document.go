package model

import "time"

// IngestStatus tracks a document through its ingestion lifecycle.
// Transitions: pending -> processing -> ready | failed.
type IngestStatus string

const (
	StatusPending    IngestStatus = "pending"
	StatusProcessing IngestStatus = "processing"
	StatusReady      IngestStatus = "ready"
	StatusFailed     IngestStatus = "failed"
)

type Document struct {
	ID           string       `gorm:"primaryKey;size:36" json:"id"`
	OwnerUserID  uint         `gorm:"not null;index" json:"owner_user_id"`
	OwnerRole    Role         `gorm:"size:16;not null" json:"owner_role"`
	SourceType   SourceType   `gorm:"size:8;not null;index" json:"source_type"`
	DisplayName  string       `gorm:"size:256;not null" json:"display_name"`
	StoragePath  string       `gorm:"size:512" json:"-"` // pdf payload on disk, empty for web
	SourceURL    string       `gorm:"size:1024" json:"source_url,omitempty"`
	Status       IngestStatus `gorm:"size:16;not null;index" json:"status"`
	ErrorMessage string       `gorm:"size:1024" json:"error_message,omitempty"`
	ChunkCount   int          `json:"chunk_count"`
	PageCount    int          `json:"page_count"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
