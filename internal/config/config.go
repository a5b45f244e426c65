package config

import (
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	PDFPath           string `envconfig:"PDF_PATH" default:"data/financial_policy_document.pdf"`
	ExtractedDumpPath string `envconfig:"EXTRACTED_DUMP_PATH" default:"data/extracted_content.md"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`
	CollectionName string `envconfig:"COLLECTION_NAME" default:"PolicyDocument"`

	GeminiAPIKey    string `envconfig:"GEMINI_API_KEY"`
	EmbeddingModel  string `envconfig:"EMBEDDING_MODEL" default:"gemini-embedding-001"`
	GenerationModel string `envconfig:"GENERATION_MODEL" default:"gemini-2.5-flash"`
	TableModel      string `envconfig:"TABLE_MODEL" default:"gemini-2.5-flash"`

	ChunkSize      int `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap   int `envconfig:"CHUNK_OVERLAP" default:"200"`
	EmbedBatchSize int `envconfig:"EMBED_BATCH_SIZE" default:"10"`

	TopK                int `envconfig:"TOP_K" default:"5"`
	MaxGenerationChunks int `envconfig:"MAX_GENERATION_CHUNKS" default:"5"`
	MaxContextLength    int `envconfig:"MAX_CONTEXT_LENGTH" default:"3000"`

	// Not consulted by dedup, which matches on normalized text only.
	DedupSimilarityThreshold float64 `envconfig:"DEDUP_SIMILARITY_THRESHOLD" default:"0.9"`

	EnableTableEnhancement bool   `envconfig:"ENABLE_TABLE_ENHANCEMENT" default:"true"`
	QueryLogPath           string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
}

func Load() (*Config, error) {
	// Env vars may be set in the shell instead, so a missing .env is fine.
	_ = godotenv.Load(".env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY", ErrMissingRequired)
	}
	if c.PDFPath == "" {
		return fmt.Errorf("%w: PDF_PATH", ErrMissingRequired)
	}
	if c.CollectionName == "" {
		return fmt.Errorf("%w: COLLECTION_NAME", ErrMissingRequired)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap)
	}
	if c.EmbedBatchSize <= 0 {
		return fmt.Errorf("EMBED_BATCH_SIZE must be positive, got %d", c.EmbedBatchSize)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("TOP_K must be positive, got %d", c.TopK)
	}
	return nil
}
