package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	require.NoError(t, LoadConfig())
	require.NotNil(t, AppConfig)

	assert.Equal(t, 1600, AppConfig.Knowledge.ChunkSize)
	assert.Equal(t, 200, AppConfig.Knowledge.ChunkOverlap)
	assert.Equal(t, "text-embedding-3-small", AppConfig.Knowledge.Embedding.Model)
	assert.Equal(t, 1536, AppConfig.Knowledge.Embedding.Dimensions)
	assert.Equal(t, "postgres", AppConfig.Knowledge.Fulltext.Provider)

	assert.InDelta(t, 0.7, AppConfig.Search.VectorWeight, 1e-9)
	assert.InDelta(t, 0.3, AppConfig.Search.KeywordWeight, 1e-9)
	assert.Equal(t, 25, AppConfig.Search.CandidateLimit)
	assert.Equal(t, 50, AppConfig.Search.FusedLimit)
	assert.Equal(t, 5, AppConfig.Search.Rerank.TopK)
	assert.InDelta(t, 0.35, AppConfig.Search.Confidence.LowThreshold, 1e-9)
	assert.InDelta(t, 0.75, AppConfig.Search.Confidence.HighThreshold, 1e-9)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgresql://test:test@db:5432/test")
	t.Setenv("RERANK_API_KEY", "rk-test")

	require.NoError(t, LoadConfig())

	assert.Equal(t, "postgresql://test:test@db:5432/test", AppConfig.Database.URL)
	assert.True(t, AppConfig.Search.Rerank.Enabled)
	assert.Equal(t, "rk-test", AppConfig.Search.Rerank.APIKey)
}

func TestValidate_RejectsBadThresholds(t *testing.T) {
	cfg := &Config{
		Search: SearchConfig{
			VectorWeight:  0.7,
			KeywordWeight: 0.3,
			Confidence:    ConfidenceConfig{LowThreshold: 0.9, HighThreshold: 0.5},
		},
		Knowledge: KnowledgeConfig{
			ChunkSize: 1600,
			Embedding: EmbeddingConfig{Dimensions: 1536},
		},
	}

	assert.Error(t, validate(cfg))
}
