package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
)

var ErrEmbedding = errors.New("embedding failed")

// Embedder maps texts to dense vectors through the Gemini embedding model.
// Document embedding runs in fixed-size sequential batches to keep each
// request below the provider's rate limits; batching never changes the
// order or values of the output.
type Embedder struct {
	client    *genai.Client
	model     string
	batchSize int
}

func NewEmbedder(client *genai.Client, model string, batchSize int) *Embedder {
	return &Embedder{client: client, model: model, batchSize: batchSize}
}

// EmbedDocuments embeds texts with retrieval-document intent, preserving
// input order. Any failure fails the whole call; there is no partial result.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	em := e.client.EmbeddingModel(e.model)
	em.TaskType = genai.TaskTypeRetrievalDocument

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))

		batch := em.NewBatch()
		for _, t := range texts[start:end] {
			batch.AddContent(genai.Text(t))
		}

		slog.DebugContext(ctx, "embedding batch", "model", e.model, "from", start, "to", end)
		res, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("%w: batch starting at %d: %v", ErrEmbedding, start, err)
		}
		if len(res.Embeddings) != end-start {
			return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrEmbedding, len(res.Embeddings), end-start)
		}

		for i, emb := range res.Embeddings {
			if emb == nil || len(emb.Values) == 0 {
				return nil, fmt.Errorf("%w: empty embedding for text %d", ErrEmbedding, start+i)
			}
			out = append(out, emb.Values)
		}
	}

	return out, nil
}

// EmbedQuery embeds a single query with retrieval-query intent, which must
// match the asymmetric space the documents were indexed in.
func (e *Embedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	em := e.client.EmbeddingModel(e.model)
	em.TaskType = genai.TaskTypeRetrievalQuery

	res, err := em.EmbedContent(ctx, genai.Text(query))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: empty embedding for query", ErrEmbedding)
	}
	return res.Embedding.Values, nil
}
