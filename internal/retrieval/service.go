package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"policyqa/internal/logger"
)

// ErrIndexNotBuilt signals that the collection does not exist yet. Callers
// recover by triggering indexing and retrying.
var ErrIndexNotBuilt = errors.New("index not built")

type Metadata struct {
	Page        int    `json:"page"`
	SourceType  string `json:"source_type"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
}

// StoredChunk is what the vector store hands back for a query: the record
// plus its cosine distance to the query vector (lower is more similar).
type StoredChunk struct {
	ID       string
	Text     string
	Metadata Metadata
	Distance float32
}

// Candidate is a retrieved chunk scored for ranking. Score is 1 − distance,
// so higher means more similar.
type Candidate struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
	Score    float32  `json:"score"`
}

type Embedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

type VectorStore interface {
	Exists(ctx context.Context) (bool, error)
	Query(ctx context.Context, vector []float32, topK int) ([]StoredChunk, error)
}

// Reranker reorders candidates. The default is a pure score sort; a learned
// reranking model can substitute without changing the pipeline.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []Candidate) ([]Candidate, error)
}

// ScoreReranker sorts by similarity score, descending. The sort is stable:
// candidates with equal scores keep their store-returned order.
type ScoreReranker struct{}

func (ScoreReranker) Rerank(_ context.Context, _ string, candidates []Candidate) ([]Candidate, error) {
	return Rerank(candidates), nil
}

// Rerank returns a copy of candidates sorted by score, descending, stable
// for ties.
func Rerank(candidates []Candidate) []Candidate {
	out := make([]Candidate, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// Dedupe removes candidates whose text, after trimming and case-folding, has
// already been seen. The first occurrence wins and relative order is kept.
// Matching is exact on the normalized text; no similarity threshold applies.
func Dedupe(candidates []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		key := strings.ToLower(strings.TrimSpace(c.Text))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

type Service struct {
	embedder Embedder
	store    VectorStore
	reranker Reranker
	qlog     *QueryLogger
}

func NewService(e Embedder, s VectorStore, r Reranker, l *QueryLogger) *Service {
	if r == nil {
		r = ScoreReranker{}
	}
	return &Service{embedder: e, store: s, reranker: r, qlog: l}
}

// Retrieve embeds the query and returns up to topK scored candidates in the
// store's similarity order.
func (s *Service) Retrieve(ctx context.Context, query string, topK int) ([]Candidate, error) {
	exists, err := s.store.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("retrieve: %w", ErrIndexNotBuilt)
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	chunks, err := s.store.Query(ctx, vector, topK)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(chunks))
	for _, c := range chunks {
		candidates = append(candidates, Candidate{
			ID:       c.ID,
			Text:     c.Text,
			Metadata: c.Metadata,
			Score:    1 - c.Distance,
		})
	}
	return candidates, nil
}

// Search is the full query-time pipeline: retrieve, rerank, dedupe.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]Candidate, error) {
	start := time.Now()

	candidates, err := s.Retrieve(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	candidates, err = s.reranker.Rerank(ctx, query, candidates)
	if err != nil {
		return nil, err
	}
	candidates = Dedupe(candidates)

	if s.qlog != nil {
		s.qlog.Log(QueryLogEntry{
			Query:      query,
			TopK:       topK,
			NumResults: len(candidates),
			Duration:   time.Since(start),
			RunID:      logger.RunID(ctx),
		})
	}
	return candidates, nil
}
