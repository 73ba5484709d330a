package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"ragdesk/internal/model"
)

const embeddingBatchSize = 10 // many embedding APIs cap batch size

var (
	ErrSourceTypeNotAllowed = errors.New("role may not contribute this source type")
	ErrDocumentNotFound     = errors.New("document not found")
	ErrIngestInProgress     = errors.New("ingestion already in progress")
	ErrIngestEnqueue        = errors.New("enqueue ingest job failed")
	ErrNotPermitted         = errors.New("operation not permitted for role")
)

// DocumentStore is the persistence side of ingestion.
type DocumentStore interface {
	Create(doc *model.Document) error
	GetByID(id string) (*model.Document, error)
	ListByOwner(userID uint) ([]model.Document, error)
	ClaimProcessing(id string) (bool, error)
	ResetPending(id string) (bool, error)
	MarkFailed(id, message string) error
	CommitChunks(doc *model.Document, chunks []model.Chunk) error
	DeleteWithChunks(id string) error
}

// MutableIndex is the write side of the vector index.
type MutableIndex interface {
	ReplaceDocument(ctx context.Context, documentID string, chunks []model.Chunk) error
	DeleteDocument(ctx context.Context, documentID string) error
}

// DocumentLoader extracts source pages for a submitted document.
type DocumentLoader interface {
	Load(ctx context.Context, doc *model.Document) ([]Page, error)
}

// IngestJobPublisher enqueues background ingestion jobs.
type IngestJobPublisher interface {
	Publish(ctx context.Context, job model.IngestJob) error
}

// IngestService owns the document lifecycle: submission, background
// processing, re-ingestion, deletion and status. Processing is atomic per
// document: either the full new chunk set is committed and the document
// becomes ready, or nothing is written and it is marked failed.
type IngestService struct {
	docs       DocumentStore
	loader     DocumentLoader
	embedder   Embedder
	index      MutableIndex
	publisher  IngestJobPublisher
	chunker    *Chunker
	storageDir string
}

func NewIngestService(
	docs DocumentStore,
	loader DocumentLoader,
	embedder Embedder,
	mutableIndex MutableIndex,
	publisher IngestJobPublisher,
	chunker *Chunker,
	storageDir string,
) *IngestService {
	if chunker == nil {
		chunker = NewChunker(defaultChunkSize, defaultChunkOverlap)
	}
	return &IngestService{
		docs:       docs,
		loader:     loader,
		embedder:   embedder,
		index:      mutableIndex,
		publisher:  publisher,
		chunker:    chunker,
		storageDir: storageDir,
	}
}

// SubmitInput describes a document submission. Payload carries the pdf
// bytes; web submissions carry SourceURL instead.
type SubmitInput struct {
	UserID      uint
	Role        model.Role
	SourceType  model.SourceType
	DisplayName string
	SourceURL   string
	Payload     io.Reader
}

// Submit validates the caller may contribute the source type, records the
// document as pending and enqueues its ingestion. It returns as soon as the
// job is queued; completion is observable via Status.
func (s *IngestService) Submit(ctx context.Context, input SubmitInput) (*model.Document, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}
	ok, err := CanContribute(input.Role, input.SourceType)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSourceTypeNotAllowed
	}

	doc := &model.Document{
		ID:          uuid.NewString(),
		OwnerUserID: input.UserID,
		OwnerRole:   input.Role,
		SourceType:  input.SourceType,
		DisplayName: strings.TrimSpace(input.DisplayName),
		Status:      model.StatusPending,
	}

	switch input.SourceType {
	case model.SourcePDF:
		if input.Payload == nil || doc.DisplayName == "" {
			return nil, ErrInvalidInput
		}
		path, err := s.saveUpload(doc.ID, input.Payload)
		if err != nil {
			return nil, err
		}
		doc.StoragePath = path
	case model.SourceWeb:
		url := strings.TrimSpace(input.SourceURL)
		if url == "" {
			return nil, ErrInvalidInput
		}
		doc.SourceURL = url
		if doc.DisplayName == "" {
			doc.DisplayName = url
		}
	}

	if err := s.docs.Create(doc); err != nil {
		if doc.StoragePath != "" {
			_ = os.Remove(doc.StoragePath)
		}
		return nil, err
	}

	if err := s.publisher.Publish(ctx, model.IngestJob{DocumentID: doc.ID}); err != nil {
		_ = s.docs.MarkFailed(doc.ID, "enqueue ingest job failed")
		return nil, fmt.Errorf("%w: %v", ErrIngestEnqueue, err)
	}
	return doc, nil
}

// Process runs one ingestion attempt. Called by the background worker. A
// document-level failure (bad source, embedding outage) is recorded on the
// row and returns nil so the job is settled; only store failures propagate.
func (s *IngestService) Process(ctx context.Context, documentID string) error {
	doc, err := s.docs.GetByID(documentID)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}

	claimed, err := s.docs.ClaimProcessing(doc.ID)
	if err != nil {
		return err
	}
	if !claimed {
		// Another attempt owns this document, or it already completed.
		log.Printf("skip ingest for document %s: status %s", doc.ID, doc.Status)
		return nil
	}

	pages, err := s.loader.Load(ctx, doc)
	if err != nil {
		s.fail(doc.ID, fmt.Sprintf("load source failed: %v", err))
		return nil
	}

	windows := s.chunker.Split(pages)
	if len(windows) == 0 {
		s.fail(doc.ID, "no extractable text")
		return nil
	}

	// Embed everything before touching storage: an embedding failure must
	// leave the previously committed chunk set fully intact.
	texts := make([]string, len(windows))
	for i := range windows {
		texts[i] = windows[i].Text
	}
	var embeddings [][]float32
	for start := 0; start < len(texts); start += embeddingBatchSize {
		end := start + embeddingBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := s.embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			s.fail(doc.ID, fmt.Sprintf("embed chunks failed: %v", err))
			return nil
		}
		embeddings = append(embeddings, batch...)
	}

	chunks := make([]model.Chunk, len(windows))
	for i := range windows {
		chunks[i] = model.Chunk{
			ID:          uuid.NewString(),
			DocumentID:  doc.ID,
			Seq:         i,
			Content:     windows[i].Text,
			SourceType:  doc.SourceType,
			DisplayName: doc.DisplayName,
			Page:        windows[i].Page,
			URL:         windows[i].URL,
		}
		chunks[i].SetEmbedding(embeddings[i])
	}
	doc.PageCount = len(pages)

	if err := s.docs.CommitChunks(doc, chunks); err != nil {
		s.fail(doc.ID, fmt.Sprintf("commit chunks failed: %v", err))
		return err
	}

	if err := s.index.ReplaceDocument(ctx, doc.ID, chunks); err != nil {
		// The store already committed; drop the document from the index so
		// search sees none of it rather than a mix. The startup rebuild
		// re-derives it.
		log.Printf("replace document %s in index failed: %v", doc.ID, err)
		if delErr := s.index.DeleteDocument(ctx, doc.ID); delErr != nil {
			log.Printf("drop document %s from index failed: %v", doc.ID, delErr)
		}
	}

	log.Printf("ingested document %s: %d chunks from %d pages", doc.ID, len(chunks), len(pages))
	return nil
}

// Reingest resets the document to pending and queues a fresh attempt. While
// an attempt is processing the call is rejected; the running attempt keeps
// exclusive ownership of the document's chunk set.
func (s *IngestService) Reingest(ctx context.Context, userID uint, role model.Role, documentID string) (*model.Document, error) {
	doc, err := s.getOwned(userID, role, documentID)
	if err != nil {
		return nil, err
	}

	ok, err := s.docs.ResetPending(doc.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrIngestInProgress
	}

	if err := s.publisher.Publish(ctx, model.IngestJob{DocumentID: doc.ID}); err != nil {
		_ = s.docs.MarkFailed(doc.ID, "enqueue ingest job failed")
		return nil, fmt.Errorf("%w: %v", ErrIngestEnqueue, err)
	}
	doc.Status = model.StatusPending
	doc.ErrorMessage = ""
	return doc, nil
}

// Delete synchronously removes the document, all its chunks and its stored
// payload. Reserved for the unrestricted role.
func (s *IngestService) Delete(ctx context.Context, role model.Role, documentID string) error {
	if _, err := AllowedSourceTypes(role); err != nil {
		return err
	}
	if !CanDeleteDocuments(role) {
		return ErrNotPermitted
	}

	doc, err := s.docs.GetByID(documentID)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}

	if err := s.docs.DeleteWithChunks(doc.ID); err != nil {
		return err
	}
	if err := s.index.DeleteDocument(ctx, doc.ID); err != nil {
		log.Printf("remove document %s from index failed: %v", doc.ID, err)
	}
	if doc.StoragePath != "" {
		if err := os.Remove(doc.StoragePath); err != nil && !os.IsNotExist(err) {
			log.Printf("remove stored file for document %s failed: %v", doc.ID, err)
		}
	}
	return nil
}

// Status returns the document with its current ingestion status.
func (s *IngestService) Status(userID uint, role model.Role, documentID string) (*model.Document, error) {
	return s.getOwned(userID, role, documentID)
}

// ListDocuments returns the caller's submitted documents.
func (s *IngestService) ListDocuments(userID uint) ([]model.Document, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.docs.ListByOwner(userID)
}

// getOwned fetches a document visible to the caller: its owner, or anyone
// with the unrestricted role. Others get not-found rather than a hint that
// the id exists.
func (s *IngestService) getOwned(userID uint, role model.Role, documentID string) (*model.Document, error) {
	doc, err := s.docs.GetByID(documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	if doc.OwnerUserID != userID && role != model.RoleFullAccess {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

func (s *IngestService) fail(documentID, message string) {
	log.Printf("ingest document %s failed: %s", documentID, message)
	if err := s.docs.MarkFailed(documentID, message); err != nil {
		log.Printf("mark document %s failed errored: %v", documentID, err)
	}
}

func (s *IngestService) saveUpload(documentID string, payload io.Reader) (string, error) {
	if err := os.MkdirAll(s.storageDir, 0o755); err != nil {
		return "", fmt.Errorf("create storage dir failed: %w", err)
	}
	path := filepath.Join(s.storageDir, documentID+".pdf")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file failed: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, payload); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write upload file failed: %w", err)
	}
	return path, nil
}
