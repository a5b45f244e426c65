package weaviate

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"policyqa/internal/indexer"
	"policyqa/internal/retrieval"
)

var ErrStore = errors.New("vector store unavailable")

// Store persists chunk records in a single Weaviate class configured for
// cosine distance. The class is the system's only durable state; it is
// dropped and recreated wholesale on every indexing run.
type Store struct {
	client *weaviate.Client
	class  string

	// Vector dimension observed at upsert time; guards queries against a
	// mismatched embedding space within this session.
	dim int
}

func NewStore(client *weaviate.Client, class string) *Store {
	return &Store{client: client, class: class}
}

// Exists reports whether the collection has been created.
func (s *Store) Exists(ctx context.Context) (bool, error) {
	exists, err := s.client.Schema().ClassExistenceChecker().
		WithClassName(s.class).
		Do(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return exists, nil
}

// Rebuild deletes the collection if present and creates a fresh, empty one.
// This is the only creation path; there is no incremental migration.
func (s *Store) Rebuild(ctx context.Context) error {
	exists, err := s.Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		if err := s.client.Schema().ClassDeleter().WithClassName(s.class).Do(ctx); err != nil {
			return fmt.Errorf("%w: delete class %s: %v", ErrStore, s.class, err)
		}
	}

	class := &models.Class{
		Class:       s.class,
		Description: "A chunk of the policy document",
		Vectorizer:  "none",
		VectorIndexConfig: map[string]interface{}{
			"distance": "cosine",
		},
		Properties: []*models.Property{
			{Name: "chunkId", DataType: []string{"string"}},
			{Name: "content", DataType: []string{"text"}},
			{Name: "page", DataType: []string{"int"}},
			{Name: "sourceType", DataType: []string{"string"}},
			{Name: "chunkIndex", DataType: []string{"int"}},
			{Name: "totalChunks", DataType: []string{"int"}},
		},
	}

	if err := s.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("%w: create class %s: %v", ErrStore, s.class, err)
	}

	s.dim = 0
	return nil
}

// ObjectID maps the public chunk ID onto the UUID Weaviate requires.
// SHA1-derived, so the same chunk ID always yields the same object identity
// and a colliding write overwrites instead of duplicating.
func ObjectID(chunkID string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String())
}

// Upsert writes records in one batch. Last write wins on ID collisions.
func (s *Store) Upsert(ctx context.Context, records []indexer.Record) error {
	if len(records) == 0 {
		return nil
	}

	objects := make([]*models.Object, 0, len(records))
	for _, r := range records {
		objects = append(objects, &models.Object{
			Class: s.class,
			ID:    ObjectID(r.ID),
			Properties: map[string]interface{}{
				"chunkId":     r.ID,
				"content":     r.Text,
				"page":        r.Page,
				"sourceType":  r.SourceType,
				"chunkIndex":  r.ChunkIndex,
				"totalChunks": r.TotalChunks,
			},
			Vector: models.C11yVector(r.Embedding),
		})
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("%w: batch upsert: %v", ErrStore, err)
	}
	for _, obj := range resp {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			return fmt.Errorf("%w: batch upsert: %s", ErrStore, obj.Result.Errors.Error[0].Message)
		}
	}

	s.dim = len(records[0].Embedding)
	return nil
}

// Query returns up to topK records nearest to vector, ordered by ascending
// cosine distance. An empty collection yields an empty result.
func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]retrieval.StoredChunk, error) {
	if s.dim != 0 && len(vector) != s.dim {
		return nil, fmt.Errorf("%w: query vector dimension %d does not match indexed dimension %d",
			ErrStore, len(vector), s.dim)
	}

	near := s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)
	fields := []graphql.Field{
		{Name: "chunkId"},
		{Name: "content"},
		{Name: "page"},
		{Name: "sourceType"},
		{Name: "chunkIndex"},
		{Name: "totalChunks"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(s.class).
		WithNearVector(near).
		WithLimit(topK).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrStore, err)
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("%w: graphql: %v", ErrStore, res.Errors[0].Message)
	}

	var chunks []retrieval.StoredChunk
	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return chunks, nil
	}
	rows, ok := data[s.class].([]interface{})
	if !ok {
		return chunks, nil
	}

	for _, row := range rows {
		props, ok := row.(map[string]interface{})
		if !ok {
			continue
		}

		chunk := retrieval.StoredChunk{}
		if v, ok := props["chunkId"].(string); ok {
			chunk.ID = v
		}
		if v, ok := props["content"].(string); ok {
			chunk.Text = v
		}
		if v, ok := props["page"].(float64); ok {
			chunk.Metadata.Page = int(v)
		}
		if v, ok := props["sourceType"].(string); ok {
			chunk.Metadata.SourceType = v
		}
		if v, ok := props["chunkIndex"].(float64); ok {
			chunk.Metadata.ChunkIndex = int(v)
		}
		if v, ok := props["totalChunks"].(float64); ok {
			chunk.Metadata.TotalChunks = int(v)
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if d, ok := additional["distance"].(float64); ok {
				chunk.Distance = float32(d)
			}
		}

		chunks = append(chunks, chunk)
	}

	return chunks, nil
}
