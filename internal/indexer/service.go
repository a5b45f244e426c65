package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"policyqa/internal/extractor"
	"policyqa/internal/text"
)

// Record is one chunk ready for the vector store. ID follows the public,
// stable scheme "page_<page>_chunk_<index>", which makes re-indexing the
// same document with the same parameters reproduce the same ID set.
type Record struct {
	ID          string
	Text        string
	Embedding   []float32
	Page        int
	SourceType  string
	ChunkIndex  int
	TotalChunks int
}

func RecordID(page, chunkIndex int) string {
	return fmt.Sprintf("page_%d_chunk_%d", page, chunkIndex)
}

type Extractor interface {
	Extract(ctx context.Context, pdfPath string) ([]extractor.Page, error)
}

type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

type Store interface {
	Rebuild(ctx context.Context) error
	Upsert(ctx context.Context, records []Record) error
}

type Service struct {
	extractor Extractor
	embedder  Embedder
	store     Store

	pdfPath      string
	chunkSize    int
	chunkOverlap int
	dumpPath     string
}

func NewService(ex Extractor, em Embedder, st Store, pdfPath string, chunkSize, chunkOverlap int, dumpPath string) *Service {
	return &Service{
		extractor:    ex,
		embedder:     em,
		store:        st,
		pdfPath:      pdfPath,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		dumpPath:     dumpPath,
	}
}

// Run executes the full indexing pipeline: extract, chunk, embed, then
// rebuild the collection and load it. The collection is dropped and
// recreated wholesale on every run, so indexing is idempotent but never
// additive. Returns the number of records indexed.
func (s *Service) Run(ctx context.Context) (int, error) {
	slog.InfoContext(ctx, "extracting text", "pdf", s.pdfPath)
	pages, err := s.extractor.Extract(ctx, s.pdfPath)
	if err != nil {
		return 0, err
	}

	if s.dumpPath != "" {
		if err := writeDump(s.dumpPath, pages); err != nil {
			slog.WarnContext(ctx, "failed to write extraction dump", "path", s.dumpPath, "error", err)
		}
	}

	chunks := text.ChunkPages(pages, s.chunkSize, s.chunkOverlap)
	slog.InfoContext(ctx, "chunked document", "pages", len(pages), "chunks", len(chunks))

	if len(chunks) == 0 {
		// Still rebuild, so a stale collection never outlives its document.
		if err := s.store.Rebuild(ctx); err != nil {
			return 0, err
		}
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	slog.InfoContext(ctx, "embedding chunks", "count", len(texts))
	embeddings, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, err
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("embedding count %d does not match chunk count %d", len(embeddings), len(chunks))
	}

	records := make([]Record, len(chunks))
	for i, c := range chunks {
		records[i] = Record{
			ID:          RecordID(c.PageNumber, c.ChunkIndex),
			Text:        c.Text,
			Embedding:   embeddings[i],
			Page:        c.PageNumber,
			SourceType:  c.SourceType,
			ChunkIndex:  c.ChunkIndex,
			TotalChunks: c.TotalChunks,
		}
	}

	if err := s.store.Rebuild(ctx); err != nil {
		return 0, err
	}
	if err := s.store.Upsert(ctx, records); err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "indexing complete", "records", len(records))
	return len(records), nil
}

// writeDump persists the extracted per-page text to a side file for manual
// inspection. Purely a debugging aid; failures are non-fatal.
func writeDump(path string, pages []extractor.Page) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}

	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return err
	}
	defer f.Close()

	for i, p := range pages {
		fmt.Fprintf(f, "=== Content %d ===\n", i+1)
		fmt.Fprintf(f, "Page: %d\n", p.Number)
		fmt.Fprintf(f, "Type: %s\n", p.SourceType)
		fmt.Fprintf(f, "Text:\n%s\n\n", p.Text)
		fmt.Fprintln(f, "==================================================")
		fmt.Fprintln(f)
	}
	return nil
}
