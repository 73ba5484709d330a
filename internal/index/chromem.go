package index

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"ragdesk/internal/model"
)

const collectionName = "chunks"

// Result is one search hit. Metadata carries everything a citation needs,
// so answering never requires a database join.
type Result struct {
	ChunkID     string
	DocumentID  string
	SourceType  model.SourceType
	Seq         int
	Content     string
	DisplayName string
	Page        int
	URL         string
	Similarity  float32
}

// Location renders the hit's citation location, mirroring model.Chunk.
func (r *Result) Location() string {
	if r.SourceType == model.SourceWeb {
		return r.URL
	}
	return strconv.Itoa(r.Page)
}

// docStats tracks how many chunks of which source type a document holds.
type docStats struct {
	sourceType model.SourceType
	chunks     int
}

// ChromemIndex is the in-process vector index over all ready chunks. It is
// derived state: the database holds the canonical chunk rows, the index is
// rebuilt from them at startup and kept in step after every committed
// ingestion change. Mutations go through Add/ReplaceDocument/DeleteDocument
// only, always keyed by document id.
type ChromemIndex struct {
	db         *chromem.DB
	collection *chromem.Collection

	mu   sync.RWMutex
	docs map[string]docStats
}

func New() (*ChromemIndex, error) {
	db := chromem.NewDB()
	collection, err := db.GetOrCreateCollection(collectionName, map[string]string{"hnsw:space": "cosine"}, nil)
	if err != nil {
		return nil, fmt.Errorf("create index collection failed: %w", err)
	}
	return &ChromemIndex{
		db:         db,
		collection: collection,
		docs:       make(map[string]docStats),
	}, nil
}

// Add indexes the chunks of one or more documents. Every chunk must carry
// its embedding already.
func (x *ChromemIndex) Add(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	ids := make([]string, 0, len(chunks))
	vectors := make([][]float32, 0, len(chunks))
	metadatas := make([]map[string]string, 0, len(chunks))
	contents := make([]string, 0, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		vec := c.EmbeddingVector()
		if len(vec) == 0 {
			return fmt.Errorf("chunk %s has no embedding", c.ID)
		}
		ids = append(ids, c.ID)
		vectors = append(vectors, vec)
		metadatas = append(metadatas, chunkMetadata(c))
		contents = append(contents, c.Content)
	}

	if err := x.collection.Add(ctx, ids, vectors, metadatas, contents); err != nil {
		return fmt.Errorf("add chunks to index failed: %w", err)
	}

	x.mu.Lock()
	for i := range chunks {
		stats := x.docs[chunks[i].DocumentID]
		stats.sourceType = chunks[i].SourceType
		stats.chunks++
		x.docs[chunks[i].DocumentID] = stats
	}
	x.mu.Unlock()
	return nil
}

// DeleteDocument drops every chunk of the document from the index.
func (x *ChromemIndex) DeleteDocument(ctx context.Context, documentID string) error {
	if x.collection.Count() > 0 {
		if err := x.collection.Delete(ctx, map[string]string{"document_id": documentID}, nil); err != nil {
			return fmt.Errorf("delete document %s from index failed: %w", documentID, err)
		}
	}

	x.mu.Lock()
	delete(x.docs, documentID)
	x.mu.Unlock()
	return nil
}

// ReplaceDocument swaps the document's indexed chunk set for the given one.
func (x *ChromemIndex) ReplaceDocument(ctx context.Context, documentID string, chunks []model.Chunk) error {
	if err := x.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	return x.Add(ctx, chunks)
}

// Rebuild discards the collection and re-indexes the given chunks. Used at
// startup to derive the index from the canonical store.
func (x *ChromemIndex) Rebuild(ctx context.Context, chunks []model.Chunk) error {
	if err := x.db.DeleteCollection(collectionName); err != nil {
		return fmt.Errorf("reset index collection failed: %w", err)
	}
	collection, err := x.db.GetOrCreateCollection(collectionName, map[string]string{"hnsw:space": "cosine"}, nil)
	if err != nil {
		return fmt.Errorf("create index collection failed: %w", err)
	}
	x.collection = collection

	x.mu.Lock()
	x.docs = make(map[string]docStats)
	x.mu.Unlock()

	return x.Add(ctx, chunks)
}

// Count returns the number of indexed chunks.
func (x *ChromemIndex) Count() int {
	return x.collection.Count()
}

// Search returns up to k chunks most similar to the query vector, drawn
// only from documents whose source type is in allowed. The filter is applied
// inside the index, before ranking: excluded chunks never occupy result
// slots. Results are ordered by non-increasing similarity.
func (x *ChromemIndex) Search(ctx context.Context, queryVector []float32, k int, allowed []model.SourceType) ([]Result, error) {
	if k <= 0 || len(allowed) == 0 {
		return nil, nil
	}

	// chromem rejects nResults beyond the candidate set, so clamp per
	// filter using our own counts.
	available := x.countTypes(allowed...)
	if available == 0 {
		return nil, nil
	}

	if x.coversAll(allowed) {
		return x.query(ctx, queryVector, clamp(k, available), nil)
	}
	if len(allowed) == 1 {
		n := clamp(k, x.countTypes(allowed[0]))
		return x.query(ctx, queryVector, n, map[string]string{"source_type": string(allowed[0])})
	}

	// Strict subset of more than one type. chromem filters are single
	// exact matches, so query each type separately and merge by similarity.
	types := append([]model.SourceType(nil), allowed...)
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	var merged []Result
	for _, st := range types {
		n := clamp(k, x.countTypes(st))
		if n == 0 {
			continue
		}
		results, err := x.query(ctx, queryVector, n, map[string]string{"source_type": string(st)})
		if err != nil {
			return nil, err
		}
		merged = append(merged, results...)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Similarity > merged[j].Similarity })
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged, nil
}

func (x *ChromemIndex) query(ctx context.Context, vec []float32, n int, where map[string]string) ([]Result, error) {
	if n <= 0 {
		return nil, nil
	}
	hits, err := x.collection.QueryEmbedding(ctx, vec, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("index query failed: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, toResult(h))
	}
	return results, nil
}

// countTypes returns the number of indexed chunks whose source type is in
// the given set.
func (x *ChromemIndex) countTypes(types ...model.SourceType) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	total := 0
	for _, stats := range x.docs {
		for _, st := range types {
			if stats.sourceType == st {
				total += stats.chunks
				break
			}
		}
	}
	return total
}

// coversAll reports whether allowed spans every source type present in the
// index, in which case no filter is needed.
func (x *ChromemIndex) coversAll(allowed []model.SourceType) bool {
	set := make(map[model.SourceType]bool, len(allowed))
	for _, st := range allowed {
		set[st] = true
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	for _, stats := range x.docs {
		if !set[stats.sourceType] {
			return false
		}
	}
	return true
}

func clamp(k, available int) int {
	if k > available {
		return available
	}
	return k
}

func chunkMetadata(c *model.Chunk) map[string]string {
	m := map[string]string{
		"document_id":  c.DocumentID,
		"source_type":  string(c.SourceType),
		"seq":          strconv.Itoa(c.Seq),
		"display_name": c.DisplayName,
	}
	if c.Page > 0 {
		m["page"] = strconv.Itoa(c.Page)
	}
	if c.URL != "" {
		m["url"] = c.URL
	}
	return m
}

func toResult(h chromem.Result) Result {
	r := Result{
		ChunkID:    h.ID,
		Content:    h.Content,
		Similarity: h.Similarity,
	}
	if h.Metadata == nil {
		return r
	}
	r.DocumentID = h.Metadata["document_id"]
	r.SourceType = model.SourceType(h.Metadata["source_type"])
	r.DisplayName = h.Metadata["display_name"]
	r.URL = h.Metadata["url"]
	if s, ok := h.Metadata["seq"]; ok {
		r.Seq, _ = strconv.Atoi(s)
	}
	if s, ok := h.Metadata["page"]; ok {
		r.Page, _ = strconv.Atoi(s)
	}
	return r
}
