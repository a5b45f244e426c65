package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		PDFPath:        "data/doc.pdf",
		CollectionName: "PolicyDocument",
		GeminiAPIKey:   "test-key",
		ChunkSize:      1000,
		ChunkOverlap:   200,
		EmbedBatchSize: 10,
		TopK:           5,
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/financial_policy_document.pdf", cfg.PDFPath)
	assert.Equal(t, "localhost:8080", cfg.WeaviateHost)
	assert.Equal(t, "PolicyDocument", cfg.CollectionName)
	assert.Equal(t, "gemini-embedding-001", cfg.EmbeddingModel)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, 10, cfg.EmbedBatchSize)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, 5, cfg.MaxGenerationChunks)
	assert.InDelta(t, 0.9, cfg.DedupSimilarityThreshold, 1e-9)
	assert.True(t, cfg.EnableTableEnhancement)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("CHUNK_OVERLAP", "50")
	t.Setenv("TOP_K", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 50, cfg.ChunkOverlap)
	assert.Equal(t, 3, cfg.TopK)
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("missing api key", func(t *testing.T) {
		cfg := validConfig()
		cfg.GeminiAPIKey = ""
		err := cfg.Validate()
		assert.ErrorIs(t, err, ErrMissingRequired)
	})

	t.Run("zero chunk size", func(t *testing.T) {
		cfg := validConfig()
		cfg.ChunkSize = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("overlap not below chunk size", func(t *testing.T) {
		cfg := validConfig()
		cfg.ChunkOverlap = cfg.ChunkSize
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative overlap", func(t *testing.T) {
		cfg := validConfig()
		cfg.ChunkOverlap = -1
		assert.Error(t, cfg.Validate())
	})
}
