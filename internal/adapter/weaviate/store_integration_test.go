package weaviate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adapter "policyqa/internal/adapter/weaviate"
	"policyqa/internal/indexer"
	"policyqa/internal/testutils"
)

func TestStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := testutils.NewIntegrationSuite(t)
	s.Setup()
	defer s.Teardown()

	store := adapter.NewStore(s.Weaviate, "PolicyDocument")
	ctx := context.Background()

	exists, err := store.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Rebuild(ctx))

	exists, err = store.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	records := []indexer.Record{
		{
			ID:          "page_1_chunk_0",
			Text:        "Travel must be approved by a manager.",
			Embedding:   []float32{1, 0, 0},
			Page:        1,
			SourceType:  "page",
			ChunkIndex:  0,
			TotalChunks: 1,
		},
		{
			ID:          "page_3_chunk_0",
			Text:        "Invoices require a purchase order.",
			Embedding:   []float32{0, 1, 0},
			Page:        3,
			SourceType:  "page",
			ChunkIndex:  0,
			TotalChunks: 1,
		},
	}
	require.NoError(t, store.Upsert(ctx, records))

	// Nearest to the first record's vector.
	chunks, err := store.Query(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "page_1_chunk_0", chunks[0].ID)
	assert.Equal(t, 1, chunks[0].Metadata.Page)
	assert.LessOrEqual(t, chunks[0].Distance, chunks[1].Distance)

	// Rebuild discards everything: same ids can be written again without
	// accumulating duplicates.
	require.NoError(t, store.Rebuild(ctx))
	require.NoError(t, store.Upsert(ctx, records))

	chunks, err = store.Query(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
}
