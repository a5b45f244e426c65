package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return f.vector, f.err
}

type fakeStore struct {
	exists    bool
	existsErr error
	chunks    []StoredChunk
	queryErr  error
	gotVector []float32
	gotTopK   int
}

func (f *fakeStore) Exists(context.Context) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeStore) Query(_ context.Context, vector []float32, topK int) ([]StoredChunk, error) {
	f.gotVector = vector
	f.gotTopK = topK
	return f.chunks, f.queryErr
}

func TestRetrieve(t *testing.T) {
	t.Run("converts distance to score", func(t *testing.T) {
		store := &fakeStore{
			exists: true,
			chunks: []StoredChunk{
				{ID: "page_1_chunk_0", Text: "policy text", Metadata: Metadata{Page: 1, TotalChunks: 2}, Distance: 0.1},
				{ID: "page_2_chunk_0", Text: "other text", Metadata: Metadata{Page: 2, TotalChunks: 1}, Distance: 0.4},
			},
		}
		svc := NewService(&fakeEmbedder{vector: []float32{0.1, 0.2}}, store, nil, nil)

		candidates, err := svc.Retrieve(context.Background(), "what is the policy", 5)
		require.NoError(t, err)

		require.Len(t, candidates, 2)
		assert.Equal(t, "page_1_chunk_0", candidates[0].ID)
		assert.InDelta(t, 0.9, candidates[0].Score, 1e-6)
		assert.InDelta(t, 0.6, candidates[1].Score, 1e-6)
		assert.Equal(t, 1, candidates[0].Metadata.Page)
		assert.Equal(t, []float32{0.1, 0.2}, store.gotVector)
		assert.Equal(t, 5, store.gotTopK)
	})

	t.Run("index not built", func(t *testing.T) {
		svc := NewService(&fakeEmbedder{}, &fakeStore{exists: false}, nil, nil)
		_, err := svc.Retrieve(context.Background(), "q", 5)
		assert.ErrorIs(t, err, ErrIndexNotBuilt)
	})

	t.Run("embedder failure propagates", func(t *testing.T) {
		embedErr := errors.New("rate limited")
		svc := NewService(&fakeEmbedder{err: embedErr}, &fakeStore{exists: true}, nil, nil)
		_, err := svc.Retrieve(context.Background(), "q", 5)
		assert.ErrorIs(t, err, embedErr)
	})

	t.Run("empty collection yields no candidates", func(t *testing.T) {
		svc := NewService(&fakeEmbedder{vector: []float32{1}}, &fakeStore{exists: true}, nil, nil)
		candidates, err := svc.Retrieve(context.Background(), "q", 5)
		require.NoError(t, err)
		assert.Empty(t, candidates)
	})
}

func TestRerank(t *testing.T) {
	in := []Candidate{
		{ID: "a", Score: 0.4},
		{ID: "b", Score: 0.9},
		{ID: "c", Score: 0.9},
		{ID: "d", Score: 0.2},
	}
	out := Rerank(in)

	ids := make([]string, len(out))
	for i, c := range out {
		ids[i] = c.ID
	}
	// Stable: b stays ahead of c on equal score.
	assert.Equal(t, []string{"b", "c", "a", "d"}, ids)

	// Input untouched.
	assert.Equal(t, "a", in[0].ID)
}

func TestDedupe(t *testing.T) {
	t.Run("normalized exact match", func(t *testing.T) {
		in := []Candidate{
			{ID: "1", Text: "Revenue is $5M"},
			{ID: "2", Text: "revenue is $5m "},
			{ID: "3", Text: "Costs are $2M"},
		}
		out := Dedupe(in)
		require.Len(t, out, 2)
		assert.Equal(t, "1", out[0].ID)
		assert.Equal(t, "3", out[1].ID)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, Dedupe(nil))
	})

	t.Run("no duplicates", func(t *testing.T) {
		in := []Candidate{{Text: "a"}, {Text: "b"}}
		assert.Equal(t, in, Dedupe(in))
	})
}

func TestSearch(t *testing.T) {
	store := &fakeStore{
		exists: true,
		chunks: []StoredChunk{
			{ID: "page_1_chunk_0", Text: "Expense limits", Distance: 0.6},
			{ID: "page_1_chunk_1", Text: "Travel rules", Distance: 0.1},
			{ID: "page_3_chunk_0", Text: " travel rules ", Distance: 0.2},
		},
	}

	var buf bytes.Buffer
	svc := NewService(&fakeEmbedder{vector: []float32{1}}, store, nil, NewQueryLogger(&buf))

	candidates, err := svc.Search(context.Background(), "travel", 5)
	require.NoError(t, err)

	// Reranked descending, then the duplicate travel chunk dropped.
	require.Len(t, candidates, 2)
	assert.Equal(t, "page_1_chunk_1", candidates[0].ID)
	assert.Equal(t, "page_1_chunk_0", candidates[1].ID)

	var entry QueryLogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "travel", entry.Query)
	assert.Equal(t, 2, entry.NumResults)
	assert.Equal(t, 5, entry.TopK)
}
