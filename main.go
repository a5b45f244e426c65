package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"policyqa/internal/adapter/gemini"
	wstore "policyqa/internal/adapter/weaviate"
	"policyqa/internal/answer"
	"policyqa/internal/config"
	"policyqa/internal/extractor"
	"policyqa/internal/indexer"
	"policyqa/internal/logger"
	"policyqa/internal/retrieval"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"google.golang.org/api/option"
)

func main() {
	// Structured logs go to stderr; stdout belongs to the interactive session.
	log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stderr, nil)))
	slog.SetDefault(log)

	ctx := logger.WithRunID(context.Background(), uuid.NewString())

	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// 2. Gemini Client
	genaiClient, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		slog.ErrorContext(ctx, "failed to create gemini client", "error", err)
		os.Exit(1)
	}
	defer genaiClient.Close()

	// 3. Weaviate Client
	wClient, err := weaviate.NewClient(weaviate.Config{
		Host:   cfg.WeaviateHost,
		Scheme: cfg.WeaviateScheme,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create weaviate client", "error", err)
		os.Exit(1)
	}

	// 4. Adapters & Services
	store := wstore.NewStore(wClient, cfg.CollectionName)
	embedder := gemini.NewEmbedder(genaiClient, cfg.EmbeddingModel, cfg.EmbedBatchSize)
	generator := gemini.NewGenerator(genaiClient, cfg.GenerationModel)

	var enhancer extractor.TableEnhancer
	if cfg.EnableTableEnhancement {
		enhancer = gemini.NewTableEnhancer(genaiClient, cfg.TableModel)
	}
	extr := extractor.New(enhancer)

	indexService := indexer.NewService(extr, embedder, store,
		cfg.PDFPath, cfg.ChunkSize, cfg.ChunkOverlap, cfg.ExtractedDumpPath)

	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.WarnContext(ctx, "failed to create query logger", "path", cfg.QueryLogPath, "error", err)
	}
	retrievalService := retrieval.NewService(embedder, store, retrieval.ScoreReranker{}, queryLogger)

	answerService := answer.NewService(generator, cfg.MaxGenerationChunks, cfg.MaxContextLength)

	// 5. Index if the collection does not exist yet
	exists, err := store.Exists(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to check collection", "error", err)
		os.Exit(1)
	}
	if !exists {
		if err := index(ctx, indexService); err != nil {
			slog.ErrorContext(ctx, "indexing failed", "error", err)
			os.Exit(1)
		}
	} else {
		slog.InfoContext(ctx, "collection already exists, skipping indexing", "collection", cfg.CollectionName)
	}

	// 6. Interactive Q&A loop
	fmt.Println("Ask questions about the policy document. Type 'exit', 'quit' or 'q' to leave.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nYour question: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		switch strings.ToLower(query) {
		case "exit", "quit", "q":
			fmt.Println("Goodbye!")
			return
		}

		qctx := logger.WithRunID(ctx, uuid.NewString())
		result, err := ask(qctx, retrievalService, answerService, indexService, query, cfg.TopK)
		if err != nil {
			slog.ErrorContext(qctx, "failed to answer question", "error", err)
			fmt.Println("Sorry, something went wrong. Please try again.")
			continue
		}

		fmt.Println()
		fmt.Println(result.Answer)
		if len(result.SourcePages) > 0 {
			fmt.Printf("\nSources: pages %s (%d chunks)\n", formatPages(result.SourcePages), result.ChunksUsed)
		}
	}

	if err := scanner.Err(); err != nil {
		slog.ErrorContext(ctx, "failed to read input", "error", err)
		os.Exit(1)
	}
}

func index(ctx context.Context, svc *indexer.Service) error {
	fmt.Println("Building the document index, this may take a while...")
	n, err := svc.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %d chunks.\n", n)
	return nil
}

// ask runs the query pipeline. A missing index triggers one indexing run
// followed by a single retry.
func ask(ctx context.Context, rs *retrieval.Service, as *answer.Service, is *indexer.Service, query string, topK int) (answer.Result, error) {
	candidates, err := rs.Search(ctx, query, topK)
	if errors.Is(err, retrieval.ErrIndexNotBuilt) {
		if err := index(ctx, is); err != nil {
			return answer.Result{}, err
		}
		candidates, err = rs.Search(ctx, query, topK)
		if err != nil {
			return answer.Result{}, err
		}
	} else if err != nil {
		return answer.Result{}, err
	}

	return as.Answer(ctx, query, candidates)
}

func formatPages(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return strings.Join(parts, ", ")
}
