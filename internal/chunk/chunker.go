// Package chunk splits extracted document text into overlapping,
// sentence-aligned chunks. Chunking is deterministic: the same text
// with the same options always yields identical chunks, which keeps
// chunk IDs stable across re-indexing runs.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/heresalord/localsearchengine/internal/store"
)

// Chunking defaults, in characters.
const (
	DefaultChunkSize = 800
	DefaultOverlap   = 200
	DefaultMinSize   = 50
)

// Options configures the chunker.
type Options struct {
	// Size is the maximum chunk length in bytes (default: 800)
	Size int

	// Overlap is the maximum number of trailing bytes repeated at the
	// start of the next chunk (default: 200)
	Overlap int

	// MinSize drops chunks shorter than this, unless the chunk is the
	// document's only one (default: 50)
	MinSize int
}

// DefaultOptions returns the default chunking options.
func DefaultOptions() Options {
	return Options{
		Size:    DefaultChunkSize,
		Overlap: DefaultOverlap,
		MinSize: DefaultMinSize,
	}
}

// Validate checks option consistency.
func (o Options) Validate() error {
	if o.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", o.Size)
	}
	if o.Overlap < 0 || o.Overlap >= o.Size {
		return fmt.Errorf("overlap must be in [0, size), got %d with size %d", o.Overlap, o.Size)
	}
	if o.MinSize < 0 {
		return fmt.Errorf("minimum chunk size cannot be negative, got %d", o.MinSize)
	}
	return nil
}

// Chunker splits text into sentence-aligned chunks with overlap.
type Chunker struct {
	opts Options
}

// NewChunker creates a chunker. Zero-valued options take defaults.
func NewChunker(opts Options) (*Chunker, error) {
	if opts.Size == 0 {
		opts.Size = DefaultChunkSize
	}
	if opts.Overlap == 0 {
		opts.Overlap = DefaultOverlap
	}
	if opts.MinSize == 0 {
		opts.MinSize = DefaultMinSize
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{opts: opts}, nil
}

// span is a half-open byte range [start, end) into the source text.
type span struct {
	start int
	end   int
}

func (s span) len() int { return s.end - s.start }

// Split chunks the text of one document. Offsets in the returned
// chunks are byte offsets into text, so text[StartOffset:EndOffset]
// reproduces each chunk's content exactly.
func (c *Chunker) Split(docID, docPath, text string) []*store.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	sentences := splitSentences(text)
	sentences = c.hardCut(text, sentences)
	groups := c.assemble(sentences)

	// Drop undersized chunks, but never leave a document chunkless.
	kept := make([]span, 0, len(groups))
	for _, g := range groups {
		if g.len() >= c.opts.MinSize {
			kept = append(kept, g)
		}
	}
	if len(kept) == 0 && len(groups) > 0 {
		kept = groups[:1]
	}

	now := time.Now()
	chunks := make([]*store.Chunk, len(kept))
	for seq, g := range kept {
		chunks[seq] = &store.Chunk{
			ID:          ChunkID(docID, seq),
			DocID:       docID,
			DocPath:     docPath,
			Seq:         seq,
			Content:     text[g.start:g.end],
			StartOffset: g.start,
			EndOffset:   g.end,
			CreatedAt:   now,
		}
	}
	return chunks
}

// ChunkID derives a stable chunk identifier from the document ID and
// the chunk's sequence number.
func ChunkID(docID string, seq int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", docID, seq)))
	return hex.EncodeToString(sum[:])[:16]
}

// splitSentences finds sentence spans. A sentence ends at '.', '!' or
// '?' followed by whitespace, or at a paragraph break. Spans are
// trimmed of surrounding whitespace.
func splitSentences(text string) []span {
	var spans []span
	start := -1 // -1 means between sentences

	flush := func(end int) {
		if start < 0 {
			return
		}
		s := trimSpan(text, span{start, end})
		if s.len() > 0 {
			spans = append(spans, s)
		}
		start = -1
	}

	for i := 0; i < len(text); i++ {
		ch := text[i]

		if start < 0 {
			if !isSpace(ch) {
				start = i
			}
			continue
		}

		switch ch {
		case '.', '!', '?':
			// Consume any run of closing punctuation, then require
			// whitespace or end of text.
			j := i + 1
			for j < len(text) && isCloser(text[j]) {
				j++
			}
			if j >= len(text) || isSpace(text[j]) {
				flush(j)
				i = j - 1
			}
		case '\n':
			// Paragraph break ends the sentence even without punctuation.
			if i+1 < len(text) && text[i+1] == '\n' {
				flush(i)
			}
		}
	}
	flush(len(text))
	return spans
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

// isCloser matches punctuation that may follow a sentence terminator.
func isCloser(ch byte) bool {
	switch ch {
	case '.', '!', '?', '"', '\'', ')', ']', '}':
		return true
	}
	return false
}

func trimSpan(text string, s span) span {
	for s.start < s.end && isSpace(text[s.start]) {
		s.start++
	}
	for s.end > s.start && isSpace(text[s.end-1]) {
		s.end--
	}
	return s
}

// hardCut subdivides sentences longer than the chunk size at rune
// boundaries so no single span can exceed a chunk.
func (c *Chunker) hardCut(text string, sentences []span) []span {
	out := make([]span, 0, len(sentences))
	for _, s := range sentences {
		for s.len() > c.opts.Size {
			cut := s.start + c.opts.Size
			for cut > s.start && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == s.start {
				break
			}
			out = append(out, span{s.start, cut})
			s.start = cut
		}
		if s.len() > 0 {
			out = append(out, s)
		}
	}
	return out
}

// assemble greedily packs sentences into chunks of at most Size bytes,
// carrying trailing sentences of at most Overlap bytes into the next
// chunk for context continuity.
func (c *Chunker) assemble(sentences []span) []span {
	if len(sentences) == 0 {
		return nil
	}

	var groups []span
	var current []span

	chunkLen := func(group []span) int {
		if len(group) == 0 {
			return 0
		}
		return group[len(group)-1].end - group[0].start
	}

	emit := func() {
		if len(current) == 0 {
			return
		}
		groups = append(groups, span{current[0].start, current[len(current)-1].end})

		// Seed the next chunk with trailing sentences within the
		// overlap budget.
		var carry []span
		for i := len(current) - 1; i >= 0; i-- {
			cand := append([]span{current[i]}, carry...)
			if chunkLen(cand) > c.opts.Overlap {
				break
			}
			carry = cand
		}
		current = carry
	}

	for _, s := range sentences {
		if len(current) > 0 && s.end-current[0].start > c.opts.Size {
			emit()
			// After carrying overlap the sentence may still not fit;
			// start a fresh chunk with it then.
			if len(current) > 0 && s.end-current[0].start > c.opts.Size {
				current = nil
			}
		}
		current = append(current, s)
	}

	if len(current) > 0 {
		last := span{current[0].start, current[len(current)-1].end}
		// Suppress a final chunk that is pure overlap of the previous one.
		if len(groups) == 0 || last.end > groups[len(groups)-1].end {
			groups = append(groups, last)
		}
	}
	return groups
}
