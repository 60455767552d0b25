package config

import (
	"testing"

	"github.com/kelseyhightower/envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	var cfg Config
	require.NoError(t, envconfig.Process("", &cfg))

	assert.Equal(t, "postgres", cfg.DBHost)
	assert.Equal(t, 5432, cfg.DBPort)
	assert.Equal(t, 384, cfg.EmbeddingDim)
	assert.Equal(t, 100, cfg.MinTextChars)
	assert.Equal(t, 1200, cfg.ChunkMaxChars)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, 5, cfg.SearchTopK)
	assert.Equal(t, 0.35, cfg.DistanceThreshold)
	assert.Equal(t, 8081, cfg.ServerPort)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("SEARCH_TOP_K", "8")
	t.Setenv("DISTANCE_THRESHOLD", "0.5")

	var cfg Config
	require.NoError(t, envconfig.Process("", &cfg))

	assert.Equal(t, "localhost", cfg.DBHost)
	assert.Equal(t, 8, cfg.SearchTopK)
	assert.Equal(t, 0.5, cfg.DistanceThreshold)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			DBHost:        "db",
			DBUser:        "u",
			DBName:        "n",
			EmbeddingDim:  384,
			ChunkMaxChars: 1200,
		}
	}

	t.Run("Valid", func(t *testing.T) {
		cfg := valid()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("Missing DB Host", func(t *testing.T) {
		cfg := valid()
		cfg.DBHost = ""
		assert.ErrorIs(t, cfg.Validate(), ErrMissingRequired)
	})

	t.Run("Missing DB User", func(t *testing.T) {
		cfg := valid()
		cfg.DBUser = ""
		assert.ErrorIs(t, cfg.Validate(), ErrMissingRequired)
	})

	t.Run("Zero Embedding Dim", func(t *testing.T) {
		cfg := valid()
		cfg.EmbeddingDim = 0
		assert.ErrorIs(t, cfg.Validate(), ErrMissingRequired)
	})

	t.Run("Zero Chunk Size", func(t *testing.T) {
		cfg := valid()
		cfg.ChunkMaxChars = 0
		assert.ErrorIs(t, cfg.Validate(), ErrMissingRequired)
	})
}
