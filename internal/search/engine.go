package search

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/heresalord/localsearchengine/internal/embed"
	"github.com/heresalord/localsearchengine/internal/errors"
	"github.com/heresalord/localsearchengine/internal/store"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = stderrors.New("nil dependency")

// snippetLength is the maximum snippet size in runes.
const snippetLength = 160

// Engine runs hybrid queries over the BM25 and vector indexes and enriches
// hits from the metadata store.
type Engine struct {
	bm25     store.BM25Index
	vectors  store.VectorStore
	embedder embed.Embedder
	metadata store.MetadataStore
	cfg      Config
}

// NewEngine creates a search engine. All dependencies are required.
func NewEngine(
	bm25 store.BM25Index,
	vectors store.VectorStore,
	embedder embed.Embedder,
	metadata store.MetadataStore,
	cfg Config,
) (*Engine, error) {
	if bm25 == nil {
		return nil, fmt.Errorf("%w: bm25 index is required", ErrNilDependency)
	}
	if vectors == nil {
		return nil, fmt.Errorf("%w: vector store is required", ErrNilDependency)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrNilDependency)
	}
	if metadata == nil {
		return nil, fmt.Errorf("%w: metadata store is required", ErrNilDependency)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultConfig().MaxResults
	}
	if cfg.CandidatePool <= 0 {
		cfg.CandidatePool = DefaultConfig().CandidatePool
	}
	if cfg.SemanticWeight == 0 && cfg.KeywordWeight == 0 {
		cfg.SemanticWeight = DefaultConfig().SemanticWeight
		cfg.KeywordWeight = DefaultConfig().KeywordWeight
	}
	return &Engine{
		bm25:     bm25,
		vectors:  vectors,
		embedder: embedder,
		metadata: metadata,
		cfg:      cfg,
	}, nil
}

// candidate accumulates one chunk's per-signal scores before fusion.
type candidate struct {
	id         string
	semantic   float64
	keywordRaw float64
}

// Search executes a query. A timed-out query returns a degraded response
// with the timeout recorded, never a silent empty list.
func (e *Engine) Search(ctx context.Context, query string, opts Options) (*Response, error) {
	start := time.Now()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New(errors.ErrCodeQueryEmpty, "query is empty", nil)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = e.applyDefaults(opts)

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	candidates, err := e.gather(ctx, query, opts)
	if timedOut(ctx, err) {
		slog.Warn("query timed out",
			slog.String("query", query),
			slog.Duration("budget", e.cfg.Timeout))
		return &Response{
			Results: []*Result{},
			Status:  StatusDegraded,
			Timeout: &errors.QueryTimeoutError{Query: query, Timeout: e.cfg.Timeout},
			Elapsed: time.Since(start),
		}, nil
	}
	if err != nil {
		return nil, err
	}

	fused := fuse(candidates, opts)
	if len(fused) > opts.Limit {
		fused = fused[:opts.Limit]
	}

	results, err := e.enrich(ctx, fused)
	if err != nil {
		if timedOut(ctx, err) {
			return &Response{
				Results: []*Result{},
				Status:  StatusDegraded,
				Timeout: &errors.QueryTimeoutError{Query: query, Timeout: e.cfg.Timeout},
				Elapsed: time.Since(start),
			}, nil
		}
		return nil, err
	}

	return &Response{
		Results: results,
		Status:  StatusComplete,
		Elapsed: time.Since(start),
	}, nil
}

// timedOut reports whether an operation failed because the query budget
// expired.
func timedOut(ctx context.Context, err error) bool {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	return stderrors.Is(err, context.DeadlineExceeded)
}

// applyDefaults fills zero option values from the engine config.
func (e *Engine) applyDefaults(opts Options) Options {
	if opts.Mode == "" {
		opts.Mode = ModeHybrid
	}
	if opts.Limit <= 0 {
		opts.Limit = e.cfg.MaxResults
	}
	if opts.CandidatePool <= 0 {
		opts.CandidatePool = e.cfg.CandidatePool
	}
	if opts.SemanticWeight == 0 && opts.KeywordWeight == 0 {
		opts.SemanticWeight = e.cfg.SemanticWeight
		opts.KeywordWeight = e.cfg.KeywordWeight
	}
	if opts.MinScore == nil {
		min := e.cfg.MinScore
		opts.MinScore = &min
	}
	return opts
}

// gather collects the candidate set for a query. In hybrid mode the two
// signals run in parallel and the candidate set is their union; chunks seen
// by only one signal get the other signal's score backfilled (keyword by
// direct scoring, semantic as zero).
func (e *Engine) gather(ctx context.Context, query string, opts Options) (map[string]*candidate, error) {
	var (
		vecResults []*store.VectorResult
		lexResults []*store.BM25Result
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		embedding, err := e.embedder.Embed(gctx, query)
		if err != nil {
			return fmt.Errorf("embed query: %w", err)
		}
		vecResults, err = e.vectors.Search(gctx, embedding, opts.CandidatePool)
		if err != nil {
			return fmt.Errorf("vector search: %w", err)
		}
		return nil
	})
	if opts.Mode == ModeHybrid {
		g.Go(func() error {
			var err error
			lexResults, err = e.bm25.Search(gctx, query, opts.CandidatePool)
			if err != nil {
				return fmt.Errorf("keyword search: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	candidates := make(map[string]*candidate, len(vecResults)+len(lexResults))
	for _, vr := range vecResults {
		candidates[vr.ID] = &candidate{id: vr.ID, semantic: float64(vr.Score)}
	}
	for _, lr := range lexResults {
		if c, ok := candidates[lr.ChunkID]; ok {
			c.keywordRaw = lr.Score
		} else {
			candidates[lr.ChunkID] = &candidate{id: lr.ChunkID, keywordRaw: lr.Score}
		}
	}

	// Vector-only candidates still have a keyword signal worth counting;
	// score them directly against the query.
	if opts.Mode == ModeHybrid {
		for _, c := range candidates {
			if c.keywordRaw == 0 {
				c.keywordRaw = e.bm25.Score(query, c.id)
			}
		}
	}

	return candidates, nil
}

// fuse normalizes keyword scores by the candidate max, applies the weighted
// sum, filters by the score floor, and orders results deterministically
// (fused score descending, chunk ID ascending on ties).
func fuse(candidates map[string]*candidate, opts Options) []*Result {
	semWeight, keyWeight := opts.SemanticWeight, opts.KeywordWeight
	if opts.Mode == ModeSemantic {
		semWeight, keyWeight = 1, 0
	} else if sum := semWeight + keyWeight; sum > 0 {
		semWeight /= sum
		keyWeight /= sum
	}

	var maxKeyword float64
	for _, c := range candidates {
		if c.keywordRaw > maxKeyword {
			maxKeyword = c.keywordRaw
		}
	}

	results := make([]*Result, 0, len(candidates))
	for _, c := range candidates {
		keyword := 0.0
		if maxKeyword > 0 {
			keyword = c.keywordRaw / maxKeyword
		}
		fused := semWeight*c.semantic + keyWeight*keyword
		if fused < *opts.MinScore {
			continue
		}
		results = append(results, &Result{
			ChunkID:       c.id,
			Score:         fused,
			SemanticScore: c.semantic,
			KeywordScore:  keyword,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	return results
}

// enrich fills document context from the metadata store. Chunks the
// metadata no longer knows (deleted between index lookup and now) are
// dropped.
func (e *Engine) enrich(ctx context.Context, results []*Result) ([]*Result, error) {
	if len(results) == 0 {
		return []*Result{}, nil
	}

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ChunkID
	}
	chunks, err := e.metadata.GetChunks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load result chunks: %w", err)
	}
	byID := make(map[string]*store.Chunk, len(chunks))
	for _, ch := range chunks {
		byID[ch.ID] = ch
	}

	enriched := make([]*Result, 0, len(results))
	for _, r := range results {
		ch, ok := byID[r.ChunkID]
		if !ok {
			slog.Debug("dropping result without metadata",
				slog.String("chunk_id", r.ChunkID))
			continue
		}
		r.DocPath = ch.DocPath
		r.Content = ch.Content
		r.Snippet = makeSnippet(ch.Content)
		r.Seq = ch.Seq
		r.StartOffset = ch.StartOffset
		r.EndOffset = ch.EndOffset
		enriched = append(enriched, r)
	}
	return enriched, nil
}

// makeSnippet returns the leading portion of content, cut at a word
// boundary near snippetLength runes.
func makeSnippet(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(content) <= snippetLength {
		return content
	}

	runes := []rune(content)
	cut := snippetLength
	for cut > 0 && runes[cut] != ' ' {
		cut--
	}
	if cut == 0 {
		cut = snippetLength
	}
	return strings.TrimSpace(string(runes[:cut])) + "…"
}

// Stats reports index sizes for the status command.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	documents, chunks, err := e.metadata.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("read metadata counts: %w", err)
	}
	stats := &Stats{
		Documents:   documents,
		Chunks:      chunks,
		VectorCount: e.vectors.Count(),
	}
	if lex := e.bm25.Stats(); lex != nil {
		stats.TermCount = lex.TermCount
	}
	return stats, nil
}
