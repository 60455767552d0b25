package store_test

import (
	"context"
	"hash/fnv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/store"
	"docchat/internal/testutils"
)

// hashEmbedder deterministically maps a text to a one-hot unit vector,
// so identical texts land on identical vectors and distinct texts are
// (almost always) orthogonal.
type hashEmbedder struct{ dim int }

func (h hashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		f := fnv.New32a()
		f.Write([]byte(t))
		v := make([]float32, h.dim)
		v[int(f.Sum32())%h.dim] = 1
		out[i] = v
	}
	return out, nil
}

func TestPostgres_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := testutils.NewIntegrationSuite(t)
	s.Setup()
	defer s.Teardown()

	ctx := context.Background()
	pg := store.NewPostgres(s.DB, hashEmbedder{dim: 384})

	// Empty store: zero results.
	results, err := pg.Search(ctx, "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	// Round trip: the chunk embedded from the exact query text comes
	// back first with the self-distance floor (inner product of a
	// unit vector with itself, surfaced by <#> as -1).
	err = pg.Upsert(ctx, "doc-1", []string{"alpha content", "beta content"}, map[string]any{"filename": "a.txt"})
	require.NoError(t, err)

	results, err = pg.Search(ctx, "alpha content", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "alpha content", results[0].Content)
	assert.InDelta(t, -1.0, results[0].Distance, 1e-6)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i].Distance, results[i-1].Distance)
	}

	// Conflict skip: re-upserting the same (doc_id, chunk_id) pairs
	// adds nothing and returns no error.
	err = pg.Upsert(ctx, "doc-1", []string{"alpha content", "beta content"}, map[string]any{"filename": "a.txt"})
	require.NoError(t, err)

	n, err := pg.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Filename probe drives ingestion idempotence.
	exists, err := pg.HasFilename(ctx, "a.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = pg.HasFilename(ctx, "b.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	docs, err := pg.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, docs)

	// ClearAll empties the table.
	require.NoError(t, pg.ClearAll(ctx))
	n, err = pg.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
