package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heresalord/localsearchengine/internal/errors"
)

func newTestVectorStore(t *testing.T) *HNSWStore {
	t.Helper()
	s, err := NewHNSWStore(DefaultVectorStoreConfig(4))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewHNSWStore_InvalidDimensions(t *testing.T) {
	_, err := NewHNSWStore(VectorStoreConfig{Dimensions: 0})
	assert.Error(t, err)

	_, err = NewHNSWStore(VectorStoreConfig{Dimensions: -5})
	assert.Error(t, err)
}

func TestHNSWStore_AddAndSearch(t *testing.T) {
	// Given three vectors with known similarity to the query
	s := newTestVectorStore(t)
	err := s.Add(context.Background(), []string{"a", "b", "c"}, [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0.9, 0.1, 0, 0},
	})
	require.NoError(t, err)

	// When searching with a vector identical to "a"
	results, err := s.Search(context.Background(), []float32{1, 0, 0, 0}, 3)
	require.NoError(t, err)

	// Then results come back nearest-first with scores in [0,1]
	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "c", results[1].ID)
	assert.Equal(t, "b", results[2].ID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5)
	// Orthogonal vector: cosine distance 1, score 0.5
	assert.InDelta(t, 0.5, float64(results[2].Score), 1e-5)
}

func TestHNSWStore_SearchEmpty(t *testing.T) {
	s := newTestVectorStore(t)

	results, err := s.Search(context.Background(), []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWStore_DimensionMismatch(t *testing.T) {
	s := newTestVectorStore(t)

	// Wrong dimension on add
	err := s.Add(context.Background(), []string{"a"}, [][]float32{{1, 0}})
	var dimErr *errors.DimensionMismatchError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 4, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Actual)

	// Wrong dimension on search
	_, err = s.Search(context.Background(), []float32{1, 0}, 5)
	require.ErrorAs(t, err, &dimErr)
}

func TestHNSWStore_ReplaceExisting(t *testing.T) {
	// Given a vector near the x axis
	s := newTestVectorStore(t)
	require.NoError(t, s.Add(context.Background(), []string{"a"}, [][]float32{{1, 0, 0, 0}}))
	require.NoError(t, s.Add(context.Background(), []string{"b"}, [][]float32{{0, 0, 1, 0}}))

	// When "a" is replaced with a vector near the y axis
	require.NoError(t, s.Add(context.Background(), []string{"a"}, [][]float32{{0, 1, 0, 0}}))

	// Then the live count is unchanged and search sees the new vector only
	assert.Equal(t, 2, s.Count())

	results, err := s.Search(context.Background(), []float32{0, 1, 0, 0}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5)
}

func TestHNSWStore_Delete(t *testing.T) {
	s := newTestVectorStore(t)
	require.NoError(t, s.Add(context.Background(), []string{"a", "b"}, [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
	}))

	// Deleting is idempotent and ignores unknown IDs
	require.NoError(t, s.Delete(context.Background(), []string{"a", "unknown"}))
	require.NoError(t, s.Delete(context.Background(), []string{"a"}))

	assert.False(t, s.Contains("a"))
	assert.True(t, s.Contains("b"))
	assert.Equal(t, 1, s.Count())

	// Deleted vectors never surface in search results
	results, err := s.Search(context.Background(), []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)
}

func TestHNSWStore_AllIDs(t *testing.T) {
	s := newTestVectorStore(t)
	require.NoError(t, s.Add(context.Background(), []string{"a", "b", "c"}, [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
	}))
	require.NoError(t, s.Delete(context.Background(), []string{"b"}))

	assert.ElementsMatch(t, []string{"a", "c"}, s.AllIDs())
}

func TestHNSWStore_SaveLoadRoundTrip(t *testing.T) {
	// Given a populated store saved to disk
	path := filepath.Join(t.TempDir(), "vectors.hnsw")
	s := newTestVectorStore(t)
	require.NoError(t, s.Add(context.Background(), []string{"a", "b"}, [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
	}))
	require.NoError(t, s.Save(path))

	// When loading into a fresh store
	loaded, err := NewHNSWStore(DefaultVectorStoreConfig(4))
	require.NoError(t, err)
	defer loaded.Close()
	require.NoError(t, loaded.Load(path))

	// Then contents and search behavior survive the round trip
	assert.Equal(t, 2, loaded.Count())
	results, err := loaded.Search(context.Background(), []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)

	// The metadata sidecar records the dimension for startup checks
	dims, err := ReadHNSWStoreDimensions(path)
	require.NoError(t, err)
	assert.Equal(t, 4, dims)
}

func TestReadHNSWStoreDimensions_Missing(t *testing.T) {
	dims, err := ReadHNSWStoreDimensions(filepath.Join(t.TempDir(), "nope.hnsw"))
	require.NoError(t, err)
	assert.Equal(t, 0, dims)
}

func TestHNSWStore_LoadCorruptedMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.hnsw")
	require.NoError(t, os.WriteFile(path, []byte("junk"), 0o644))
	require.NoError(t, os.WriteFile(path+".meta", []byte("junk"), 0o644))

	s := newTestVectorStore(t)
	err := s.Load(path)

	var corruptErr *errors.IndexCorruptionError
	require.ErrorAs(t, err, &corruptErr)
	assert.Equal(t, "vector", corruptErr.Component)
}

func TestHNSWStore_Closed(t *testing.T) {
	s, err := NewHNSWStore(DefaultVectorStoreConfig(4))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close()) // idempotent

	assert.Error(t, s.Add(context.Background(), []string{"a"}, [][]float32{{1, 0, 0, 0}}))
	_, err = s.Search(context.Background(), []float32{1, 0, 0, 0}, 1)
	assert.Error(t, err)
	assert.Equal(t, 0, s.Count())
}
