package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragdesk/internal/index"
	"ragdesk/internal/model"
)

// mockEmbedder implements Embedder for testing.
type mockEmbedder struct {
	vector []float32
	err    error
	calls  int
	texts  []string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.calls++
	m.texts = append(m.texts, text)
	if m.err != nil {
		return nil, m.err
	}
	return m.vector, nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.calls++
	m.texts = append(m.texts, texts...)
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = m.vector
	}
	return out, nil
}

// mockSearchIndex implements SearchIndex for testing.
type mockSearchIndex struct {
	results []index.Result
	err     error

	gotVector  []float32
	gotK       int
	gotAllowed []model.SourceType
}

func (m *mockSearchIndex) Search(_ context.Context, queryVector []float32, k int, allowed []model.SourceType) ([]index.Result, error) {
	m.gotVector = queryVector
	m.gotK = k
	m.gotAllowed = allowed
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

func TestRetriever_PassesRoleFilterIntoSearch(t *testing.T) {
	embedder := &mockEmbedder{vector: []float32{0.1, 0.2}}
	idx := &mockSearchIndex{results: candidateSet("a", "b")}
	r := NewRetriever(embedder, idx, 0)

	out, err := r.Retrieve(context.Background(), "refund window", model.RolePDFOnly, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, chunkIDsOf(out))

	assert.Equal(t, []float32{0.1, 0.2}, idx.gotVector)
	assert.Equal(t, 10, idx.gotK)
	assert.Equal(t, []model.SourceType{model.SourcePDF}, idx.gotAllowed)
}

func TestRetriever_FullAccessSearchesBothTypes(t *testing.T) {
	embedder := &mockEmbedder{vector: []float32{1}}
	idx := &mockSearchIndex{}
	r := NewRetriever(embedder, idx, 0)

	_, err := r.Retrieve(context.Background(), "q", model.RoleFullAccess, 10)
	require.NoError(t, err)
	assert.Equal(t, []model.SourceType{model.SourcePDF, model.SourceWeb}, idx.gotAllowed)
}

func TestRetriever_UnknownRoleNeverEmbeds(t *testing.T) {
	embedder := &mockEmbedder{vector: []float32{1}}
	idx := &mockSearchIndex{}
	r := NewRetriever(embedder, idx, 0)

	_, err := r.Retrieve(context.Background(), "q", "operator", 10)
	assert.ErrorIs(t, err, model.ErrUnknownRole)
	assert.Zero(t, embedder.calls, "no embedding may be spent on an unauthorized query")
}

func TestRetriever_EmbedError(t *testing.T) {
	embedder := &mockEmbedder{err: errors.New("embedding service down")}
	idx := &mockSearchIndex{}
	r := NewRetriever(embedder, idx, 0)

	_, err := r.Retrieve(context.Background(), "q", model.RoleWebOnly, 10)
	assert.Error(t, err)
	assert.Nil(t, idx.gotAllowed, "search must not run without a query vector")
}

func TestRetriever_SearchError(t *testing.T) {
	embedder := &mockEmbedder{vector: []float32{1}}
	idx := &mockSearchIndex{err: errors.New("index unavailable")}
	r := NewRetriever(embedder, idx, 0)

	_, err := r.Retrieve(context.Background(), "q", model.RoleWebOnly, 10)
	assert.Error(t, err)
}
