package app

import (
	"context"
	"fmt"
	"time"

	"ragdesk/internal/index"
	"ragdesk/internal/model"
)

// Embedder maps text to fixed-length vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// SearchIndex is the read side of the vector index. The allowed set is
// applied inside the search, before ranking.
type SearchIndex interface {
	Search(ctx context.Context, queryVector []float32, k int, allowed []model.SourceType) ([]index.Result, error)
}

// Retriever embeds a standalone query and pulls the top-k most similar
// chunks the caller's role may see. The role filter runs inside the index:
// a restricted role competes only against its own permitted universe, so
// permitted minority content can never be crowded out of the top k by
// chunks the role is not allowed to read.
type Retriever struct {
	embedder     Embedder
	index        SearchIndex
	embedTimeout time.Duration
}

func NewRetriever(embedder Embedder, searchIndex SearchIndex, embedTimeout time.Duration) *Retriever {
	if embedTimeout <= 0 {
		embedTimeout = 15 * time.Second
	}
	return &Retriever{
		embedder:     embedder,
		index:        searchIndex,
		embedTimeout: embedTimeout,
	}
}

func (r *Retriever) Retrieve(ctx context.Context, queryText string, role model.Role, k int) ([]index.Result, error) {
	allowed, err := AllowedSourceTypes(role)
	if err != nil {
		return nil, err
	}

	embedCtx, cancel := context.WithTimeout(ctx, r.embedTimeout)
	defer cancel()
	vector, err := r.embedder.Embed(embedCtx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query failed: %w", err)
	}

	results, err := r.index.Search(ctx, vector, k, allowed)
	if err != nil {
		return nil, fmt.Errorf("search index failed: %w", err)
	}
	return results, nil
}
