package model

// IngestJob is the message published to the ingestion queue. The payload
// stays minimal: the worker reloads the document row before processing.
type IngestJob struct {
	DocumentID string `json:"document_id"`
}
