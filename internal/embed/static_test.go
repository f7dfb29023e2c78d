package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedder_Deterministic(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	// The same text always produces the same vector
	a, err := e.Embed(context.Background(), "hybrid retrieval engine")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "hybrid retrieval engine")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// Different texts produce different vectors
	c, err := e.Embed(context.Background(), "completely unrelated words")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestStaticEmbedder_UnitLength(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	vec, err := e.Embed(context.Background(), "some document text")
	require.NoError(t, err)
	require.Len(t, vec, StaticDimensions)

	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-5)
}

func TestStaticEmbedder_EmptyText(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	// Empty and whitespace-only input map to the zero vector
	for _, text := range []string{"", "   ", "\n\t"} {
		vec, err := e.Embed(context.Background(), text)
		require.NoError(t, err)
		require.Len(t, vec, StaticDimensions)
		for _, v := range vec {
			assert.Zero(t, v)
		}
	}
}

func TestStaticEmbedder_SimilarTextsCloser(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	ctx := context.Background()
	base, err := e.Embed(ctx, "database connection pooling")
	require.NoError(t, err)
	similar, err := e.Embed(ctx, "database connection timeout")
	require.NoError(t, err)
	unrelated, err := e.Embed(ctx, "banana bread recipe ideas")
	require.NoError(t, err)

	// Token overlap should show up as higher cosine similarity
	assert.Greater(t, dot(base, similar), dot(base, unrelated))
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func TestStaticEmbedder_EmbedBatch(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	texts := []string{"first text", "second text", ""}
	vecs, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	// Batch results match single-embed results
	single, err := e.Embed(context.Background(), "first text")
	require.NoError(t, err)
	assert.Equal(t, single, vecs[0])

	// Empty batch
	empty, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStaticEmbedder_Metadata(t *testing.T) {
	e := NewStaticEmbedder()

	assert.Equal(t, StaticDimensions, e.Dimensions())
	assert.Equal(t, "static", e.ModelName())
	assert.True(t, e.Available(context.Background()))

	require.NoError(t, e.Close())
	assert.False(t, e.Available(context.Background()))

	_, err := e.Embed(context.Background(), "text")
	assert.Error(t, err)
}
