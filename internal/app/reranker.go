package app

import (
	"context"
	"log"
	"sort"
	"time"

	"ragdesk/internal/ai"
	"ragdesk/internal/index"
)

// RerankScorer scores (query, document) pairs via an external relevance
// service.
type RerankScorer interface {
	Rerank(ctx context.Context, query string, documents []string) ([]ai.RerankResult, error)
}

// Reranker reorders retrieval candidates by external relevance score and
// keeps the top n. Reranking is a quality enhancement, not a correctness
// dependency: when the scoring service fails or times out, the first n
// candidates pass through in retrieval order.
type Reranker struct {
	scorer  RerankScorer
	timeout time.Duration
}

func NewReranker(scorer RerankScorer, timeout time.Duration) *Reranker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Reranker{scorer: scorer, timeout: timeout}
}

// Rerank returns the n best candidates in descending score order, ties
// broken by original retrieval rank. The returned bool reports whether the
// result degraded to plain retrieval order.
func (r *Reranker) Rerank(ctx context.Context, queryText string, candidates []index.Result, n int) ([]index.Result, bool) {
	if n <= 0 || len(candidates) == 0 {
		return nil, false
	}
	if n > len(candidates) {
		n = len(candidates)
	}

	texts := make([]string, len(candidates))
	for i := range candidates {
		texts[i] = candidates[i].Content
	}

	scoreCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	scored, err := r.scorer.Rerank(scoreCtx, queryText, texts)
	if err != nil {
		log.Printf("rerank degraded, keeping retrieval order: %v", err)
		return append([]index.Result(nil), candidates[:n]...), true
	}

	// Scores come back keyed by input position. Anything the service did
	// not score ranks below every scored candidate.
	scores := make([]float64, len(candidates))
	for i := range scores {
		scores[i] = -1
	}
	for _, s := range scored {
		if s.Index >= 0 && s.Index < len(scores) {
			scores[s.Index] = s.RelevanceScore
		}
	}

	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	out := make([]index.Result, 0, n)
	for _, idx := range order[:n] {
		out = append(out, candidates[idx])
	}
	return out, false
}
