package chunk

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustChunker(t *testing.T, opts Options) *Chunker {
	t.Helper()
	c, err := NewChunker(opts)
	require.NoError(t, err)
	return c
}

// sentenceText builds n sentences of roughly the given length each.
func sentenceText(n, length int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		s := fmt.Sprintf("sentence%03d ", i)
		for len(s) < length {
			s += "filler "
		}
		sb.WriteString(strings.TrimSpace(s[:length]))
		sb.WriteString(". ")
	}
	return sb.String()
}

func TestNewChunker_Validation(t *testing.T) {
	_, err := NewChunker(Options{Size: -1, Overlap: 10, MinSize: 5})
	assert.Error(t, err)

	// Overlap must stay below size
	_, err = NewChunker(Options{Size: 100, Overlap: 100, MinSize: 5})
	assert.Error(t, err)

	_, err = NewChunker(Options{Size: 100, Overlap: 99, MinSize: -2})
	assert.Error(t, err)

	// Zero values take defaults
	c, err := NewChunker(Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultChunkSize, c.opts.Size)
	assert.Equal(t, DefaultOverlap, c.opts.Overlap)
	assert.Equal(t, DefaultMinSize, c.opts.MinSize)
}

func TestChunker_EmptyText(t *testing.T) {
	c := mustChunker(t, Options{})

	assert.Nil(t, c.Split("doc1", "a.txt", ""))
	assert.Nil(t, c.Split("doc1", "a.txt", "   \n\t  "))
}

func TestChunker_SingleShortDocument(t *testing.T) {
	c := mustChunker(t, Options{})

	// Shorter than MinSize, but a document's only chunk is always kept
	chunks := c.Split("doc1", "a.txt", "Tiny note.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "Tiny note.", chunks[0].Content)
	assert.Equal(t, 0, chunks[0].Seq)
	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, len("Tiny note."), chunks[0].EndOffset)
}

func TestChunker_Deterministic(t *testing.T) {
	c := mustChunker(t, Options{})
	text := sentenceText(40, 100)

	a := c.Split("doc1", "a.txt", text)
	b := c.Split("doc1", "a.txt", text)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].ID, b[i].ID)
		assert.Equal(t, a[i].Content, b[i].Content)
		assert.Equal(t, a[i].StartOffset, b[i].StartOffset)
		assert.Equal(t, a[i].EndOffset, b[i].EndOffset)
	}
}

func TestChunker_OffsetsReproduceContent(t *testing.T) {
	c := mustChunker(t, Options{})
	text := sentenceText(40, 100)

	for _, ch := range c.Split("doc1", "a.txt", text) {
		assert.Equal(t, text[ch.StartOffset:ch.EndOffset], ch.Content)
	}
}

func TestChunker_RespectsSizeLimit(t *testing.T) {
	c := mustChunker(t, Options{Size: 200, Overlap: 50, MinSize: 10})
	text := sentenceText(30, 60)

	chunks := c.Split("doc1", "a.txt", text)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Content), 200, "chunk %d", ch.Seq)
	}
}

func TestChunker_OverlapCarriesTrailingSentences(t *testing.T) {
	c := mustChunker(t, Options{Size: 200, Overlap: 80, MinSize: 10})
	text := sentenceText(30, 60)

	chunks := c.Split("doc1", "a.txt", text)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		// Consecutive chunks overlap, bounded by the overlap budget
		assert.Less(t, cur.StartOffset, prev.EndOffset, "chunk %d", i)
		assert.LessOrEqual(t, prev.EndOffset-cur.StartOffset, 80, "chunk %d", i)
		// And each chunk still advances through the document
		assert.Greater(t, cur.EndOffset, prev.EndOffset, "chunk %d", i)
	}
}

func TestChunker_HardCutsLongSentence(t *testing.T) {
	c := mustChunker(t, Options{Size: 100, Overlap: 20, MinSize: 10})

	// 450 bytes without any sentence boundary
	text := strings.Repeat("abcdefghi ", 45)
	chunks := c.Split("doc1", "a.txt", text)

	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Content), 100)
	}
	// The hard cuts cover the whole text
	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, len(strings.TrimSpace(text)), chunks[len(chunks)-1].EndOffset)
}

func TestChunker_HardCutPreservesRuneBoundaries(t *testing.T) {
	c := mustChunker(t, Options{Size: 100, Overlap: 20, MinSize: 10})

	// Multi-byte runes with no sentence boundaries force hard cuts
	text := strings.Repeat("héllo wörld ünïcode ", 30)
	for _, ch := range c.Split("doc1", "a.txt", text) {
		assert.True(t, utf8.ValidString(ch.Content), "chunk %d splits a rune", ch.Seq)
	}
}

func TestChunker_DropsUndersizedChunks(t *testing.T) {
	c := mustChunker(t, Options{Size: 100, Overlap: 0, MinSize: 10})

	// Two near-full sentences force chunk boundaries; the trailing
	// "Ok." lands in a chunk of its own, below the minimum
	long := strings.Repeat("a", 97) + "."
	text := long + " " + long + " Ok."

	chunks := c.Split("doc1", "a.txt", text)
	require.Len(t, chunks, 2)
	for _, ch := range chunks {
		assert.GreaterOrEqual(t, len(ch.Content), 10)
	}
}

func TestChunker_SequenceAndIDs(t *testing.T) {
	c := mustChunker(t, Options{Size: 200, Overlap: 50, MinSize: 10})
	chunks := c.Split("doc1", "notes/a.txt", sentenceText(30, 60))

	require.Greater(t, len(chunks), 1)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Seq)
		assert.Equal(t, ChunkID("doc1", i), ch.ID)
		assert.Len(t, ch.ID, 16)
		assert.Equal(t, "doc1", ch.DocID)
		assert.Equal(t, "notes/a.txt", ch.DocPath)
	}

	// Different documents get different chunk IDs for the same seq
	assert.NotEqual(t, ChunkID("doc1", 0), ChunkID("doc2", 0))
}

func TestChunker_ParagraphBreaksSplitSentences(t *testing.T) {
	c := mustChunker(t, Options{Size: 100, Overlap: 0, MinSize: 5})

	// Headings without terminal punctuation still split on blank lines
	text := "Installation Guide\n\nDownload the binary from the release page and unpack it somewhere on your PATH"
	chunks := c.Split("doc1", "a.md", text)

	require.NotEmpty(t, chunks)
	assert.Equal(t, "Installation Guide", strings.Split(chunks[0].Content, "\n")[0])
}
