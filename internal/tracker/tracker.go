// Package tracker orchestrates incremental index updates. It connects the
// extractor registry, chunker, embedder and the three stores (metadata,
// BM25, vector) behind three operations: react to a changed file, react to
// a removed file, and rebuild from scratch.
//
// Updates are serialized per document with keyed mutexes; different
// documents proceed concurrently, with embedding work bounded by a shared
// worker pool. A document's fingerprint is persisted last, so a crash
// mid-update re-does the work on the next pass instead of skipping it.
package tracker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/heresalord/localsearchengine/internal/chunk"
	"github.com/heresalord/localsearchengine/internal/embed"
	"github.com/heresalord/localsearchengine/internal/errors"
	"github.com/heresalord/localsearchengine/internal/extract"
	"github.com/heresalord/localsearchengine/internal/scanner"
	"github.com/heresalord/localsearchengine/internal/store"
	"github.com/heresalord/localsearchengine/internal/watcher"
)

// DefaultMaxFileSize is the default maximum file size to index (50MB).
// Larger files are skipped to prevent memory exhaustion.
const DefaultMaxFileSize int64 = 50 * 1024 * 1024

// Config wires the tracker's collaborators.
type Config struct {
	// Root is the absolute path to the corpus root.
	Root string

	// Metadata is the document/chunk metadata store.
	Metadata store.MetadataStore

	// BM25 is the lexical index.
	BM25 store.BM25Index

	// Vectors is the semantic index.
	Vectors store.VectorStore

	// Embedder produces chunk embeddings.
	Embedder embed.Embedder

	// Chunker splits extracted text.
	Chunker *chunk.Chunker

	// Extractors maps file types to text extractors.
	Extractors *extract.Registry

	// Scanner walks the corpus for full scans and reconciliation.
	Scanner *scanner.Scanner

	// Workers bounds concurrent document updates. Defaults to NumCPU.
	Workers int

	// MaxFileSize skips files larger than this many bytes.
	// Defaults to DefaultMaxFileSize.
	MaxFileSize int64
}

// Tracker keeps the three indexes synchronized with the corpus.
type Tracker struct {
	cfg   Config
	pool  *ants.Pool
	locks *keyedMutex
}

// NewTracker creates a tracker and its worker pool.
func NewTracker(cfg Config) (*Tracker, error) {
	if cfg.Metadata == nil || cfg.BM25 == nil || cfg.Vectors == nil {
		return nil, fmt.Errorf("tracker requires metadata, bm25 and vector stores")
	}
	if cfg.Embedder == nil || cfg.Chunker == nil || cfg.Extractors == nil {
		return nil, fmt.Errorf("tracker requires embedder, chunker and extractors")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}

	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	return &Tracker{
		cfg:   cfg,
		pool:  pool,
		locks: newKeyedMutex(),
	}, nil
}

// Close releases the worker pool. Stores are owned by the caller.
func (t *Tracker) Close() {
	t.pool.Release()
}

// DocumentID derives the stable document ID for a corpus-relative path.
func DocumentID(relPath string) string {
	sum := sha256.Sum256([]byte(relPath))
	return hex.EncodeToString(sum[:])[:16]
}

// Fingerprint hashes raw file bytes. A document whose fingerprint is
// unchanged is never re-chunked or re-embedded.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// OnFileChanged indexes or re-indexes a single file. relPath is
// slash-separated and relative to the corpus root. The call is a no-op when
// the file's fingerprint matches the indexed one.
func (t *Tracker) OnFileChanged(ctx context.Context, relPath string) error {
	t.locks.Lock(relPath)
	defer t.locks.Unlock(relPath)

	absPath := filepath.Join(t.cfg.Root, filepath.FromSlash(relPath))

	// Lstat so symlinks are detected without following them.
	info, err := os.Lstat(absPath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", relPath, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		slog.Debug("skipping symlink", slog.String("path", relPath))
		return nil
	}
	if info.Size() > t.cfg.MaxFileSize {
		slog.Warn("skipping oversized file",
			slog.String("path", relPath),
			slog.Int64("size", info.Size()),
			slog.Int64("max", t.cfg.MaxFileSize))
		return nil
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", relPath, err)
	}

	fingerprint := Fingerprint(content)
	docID := DocumentID(relPath)

	if existing, err := t.cfg.Metadata.GetDocumentByPath(ctx, relPath); err == nil {
		if existing.Fingerprint == fingerprint {
			slog.Debug("document unchanged", slog.String("path", relPath))
			return nil
		}
	}

	text, err := t.cfg.Extractors.Extract(ctx, absPath)
	if err != nil {
		return err
	}

	chunks := t.cfg.Chunker.Split(docID, relPath, text)
	if len(chunks) == 0 {
		// Nothing searchable remains; drop any previously indexed content.
		return t.removeLocked(ctx, relPath)
	}

	oldIDs, err := t.cfg.Metadata.GetChunkIDsByDocument(ctx, docID)
	if err != nil {
		return fmt.Errorf("load indexed chunk ids for %s: %w", relPath, err)
	}

	newIDs := make(map[string]struct{}, len(chunks))
	texts := make([]string, len(chunks))
	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		newIDs[ch.ID] = struct{}{}
		texts[i] = ch.Content
		ids[i] = ch.ID
	}
	var obsolete []string
	for _, id := range oldIDs {
		if _, kept := newIDs[id]; !kept {
			obsolete = append(obsolete, id)
		}
	}

	vectors, err := t.embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %s: %w", relPath, err)
	}

	// Document row must exist before chunks (foreign key); the final
	// fingerprint is written only after both indexes and the chunk rows
	// are in place.
	doc := &store.Document{
		ID:         docID,
		Path:       relPath,
		Size:       info.Size(),
		ModTime:    info.ModTime(),
		ChunkCount: len(chunks),
		IndexedAt:  time.Now(),
	}
	if err := t.cfg.Metadata.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("save document %s: %w", relPath, err)
	}

	if len(obsolete) > 0 {
		if err := t.cfg.BM25.Delete(ctx, obsolete); err != nil {
			return fmt.Errorf("delete stale lexical entries for %s: %w", relPath, err)
		}
		if err := t.cfg.Vectors.Delete(ctx, obsolete); err != nil {
			return fmt.Errorf("delete stale vectors for %s: %w", relPath, err)
		}
		if err := t.cfg.Metadata.DeleteChunks(ctx, obsolete); err != nil {
			return fmt.Errorf("delete stale chunk rows for %s: %w", relPath, err)
		}
	}

	if err := t.cfg.BM25.Index(ctx, chunks); err != nil {
		return fmt.Errorf("index lexical for %s: %w", relPath, err)
	}
	if err := t.cfg.Vectors.Add(ctx, ids, vectors); err != nil {
		return fmt.Errorf("index vectors for %s: %w", relPath, err)
	}
	if err := t.cfg.Metadata.SaveChunks(ctx, chunks); err != nil {
		return fmt.Errorf("save chunks for %s: %w", relPath, err)
	}

	doc.Fingerprint = fingerprint
	if err := t.cfg.Metadata.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("finalize document %s: %w", relPath, err)
	}

	slog.Debug("document_indexed",
		slog.String("path", relPath),
		slog.Int("chunks", len(chunks)),
		slog.Int("removed", len(obsolete)))
	return nil
}

// OnFileRemoved removes all traces of a file from every index.
// Removing an unknown file is a no-op.
func (t *Tracker) OnFileRemoved(ctx context.Context, relPath string) error {
	t.locks.Lock(relPath)
	defer t.locks.Unlock(relPath)
	return t.removeLocked(ctx, relPath)
}

func (t *Tracker) removeLocked(ctx context.Context, relPath string) error {
	docID := DocumentID(relPath)

	chunkIDs, err := t.cfg.Metadata.GetChunkIDsByDocument(ctx, docID)
	if err != nil {
		return fmt.Errorf("load chunk ids for %s: %w", relPath, err)
	}

	if len(chunkIDs) > 0 {
		if err := t.cfg.BM25.Delete(ctx, chunkIDs); err != nil {
			return fmt.Errorf("delete lexical entries for %s: %w", relPath, err)
		}
		if err := t.cfg.Vectors.Delete(ctx, chunkIDs); err != nil {
			return fmt.Errorf("delete vectors for %s: %w", relPath, err)
		}
	}

	if err := t.cfg.Metadata.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("delete document %s: %w", relPath, err)
	}

	if len(chunkIDs) > 0 {
		slog.Debug("document_removed",
			slog.String("path", relPath),
			slog.Int("chunks", len(chunkIDs)))
	}
	return nil
}

// embed runs EmbedBatch on the shared worker pool so concurrent document
// updates cannot flood the embedding backend.
func (t *Tracker) embed(ctx context.Context, texts []string) ([][]float32, error) {
	var (
		vectors [][]float32
		embErr  error
	)
	done := make(chan struct{})
	err := t.pool.Submit(func() {
		defer close(done)
		vectors, embErr = t.cfg.Embedder.EmbedBatch(ctx, texts)
	})
	if err != nil {
		return nil, fmt.Errorf("submit embedding work: %w", err)
	}

	select {
	case <-done:
	case <-ctx.Done():
		// The worker finishes on its own; EmbedBatch observes the same ctx.
		<-done
	}
	if embErr != nil {
		return nil, embErr
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return vectors, nil
}

// Run consumes debounced watcher batches until the context is cancelled or
// the channel closes. Per-file errors are logged and skipped so one broken
// document cannot stall the pipeline.
func (t *Tracker) Run(ctx context.Context, events <-chan []watcher.FileEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-events:
			if !ok {
				return nil
			}
			t.handleBatch(ctx, batch)
		}
	}
}

// handleBatch processes one debounced batch, fanning events for distinct
// files out to goroutines. Per-path locks serialize same-file updates.
func (t *Tracker) handleBatch(ctx context.Context, batch []watcher.FileEvent) {
	var wg sync.WaitGroup
	for _, ev := range batch {
		if ev.IsDir {
			continue
		}
		wg.Add(1)
		go func(ev watcher.FileEvent) {
			defer wg.Done()
			var err error
			switch ev.Operation {
			case watcher.OpCreate, watcher.OpModify:
				err = t.OnFileChanged(ctx, ev.Path)
			case watcher.OpDelete, watcher.OpRename:
				err = t.OnFileRemoved(ctx, ev.Path)
			}
			if err != nil {
				slog.Warn("failed to process file event",
					slog.String("path", ev.Path),
					slog.String("operation", ev.Operation.String()),
					slog.String("error", err.Error()))
			}
		}(ev)
	}
	wg.Wait()
}

// CheckEmbedder verifies that the configured embedder matches the model and
// dimension the index was built with. A fresh index adopts the current
// embedder; a mismatch is surfaced as an error that requires a rebuild,
// never silently mixed.
func (t *Tracker) CheckEmbedder(ctx context.Context) error {
	model := t.cfg.Embedder.ModelName()
	dims := t.cfg.Embedder.Dimensions()

	storedModel, err := t.cfg.Metadata.GetState(ctx, store.StateKeyIndexModel)
	if err != nil {
		return fmt.Errorf("read index model state: %w", err)
	}
	storedDims, err := t.cfg.Metadata.GetState(ctx, store.StateKeyIndexDimension)
	if err != nil {
		return fmt.Errorf("read index dimension state: %w", err)
	}

	if storedModel == "" && storedDims == "" {
		return t.recordEmbedder(ctx)
	}

	if storedModel != model || storedDims != strconv.Itoa(dims) {
		return errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("index was built with %s (%s dims) but the configured embedder is %s (%d dims)",
				storedModel, storedDims, model, dims), nil).
			WithSuggestion("rebuild the index: localsearch index --force")
	}
	return nil
}

// recordEmbedder stamps the current embedder identity into index state.
func (t *Tracker) recordEmbedder(ctx context.Context) error {
	if err := t.cfg.Metadata.SetState(ctx, store.StateKeyIndexModel, t.cfg.Embedder.ModelName()); err != nil {
		return fmt.Errorf("record index model: %w", err)
	}
	if err := t.cfg.Metadata.SetState(ctx, store.StateKeyIndexDimension, strconv.Itoa(t.cfg.Embedder.Dimensions())); err != nil {
		return fmt.Errorf("record index dimension: %w", err)
	}
	return nil
}

// Reconcile brings the index up to date with the corpus: new files are
// indexed, changed files re-indexed, and deleted files removed. Changed
// files are detected with a cheap mtime+size pre-filter; the fingerprint
// check in OnFileChanged catches touched-but-identical files.
func (t *Tracker) Reconcile(ctx context.Context) error {
	if t.cfg.Scanner == nil {
		return fmt.Errorf("reconcile requires a scanner")
	}

	indexed, err := t.cfg.Metadata.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("list indexed documents: %w", err)
	}
	indexedByPath := make(map[string]*store.Document, len(indexed))
	for _, doc := range indexed {
		indexedByPath[doc.Path] = doc
	}

	current, err := t.scanCorpus(ctx)
	if err != nil {
		return err
	}

	var added, changed, removed []string
	for path, doc := range indexedByPath {
		file, exists := current[path]
		if !exists {
			removed = append(removed, path)
			continue
		}
		if !file.ModTime.Equal(doc.ModTime) || file.Size != doc.Size {
			changed = append(changed, path)
		}
	}
	for path := range current {
		if _, exists := indexedByPath[path]; !exists {
			added = append(added, path)
		}
	}
	// Deterministic order: removals first so replaced paths are clean
	// before re-indexing.
	sort.Strings(removed)
	sort.Strings(changed)
	sort.Strings(added)

	if len(removed)+len(changed)+len(added) == 0 {
		slog.Debug("index up to date")
		return nil
	}
	slog.Info("reconciling index",
		slog.Int("added", len(added)),
		slog.Int("changed", len(changed)),
		slog.Int("removed", len(removed)))

	for _, path := range removed {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := t.OnFileRemoved(ctx, path); err != nil {
			slog.Warn("failed to remove document",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	}
	t.indexPaths(ctx, append(changed, added...))
	return ctx.Err()
}

// Rebuild wipes every index and re-scans the corpus from scratch. Used for
// `index --force`, corruption recovery, and embedding model changes.
func (t *Tracker) Rebuild(ctx context.Context) error {
	if t.cfg.Scanner == nil {
		return fmt.Errorf("rebuild requires a scanner")
	}

	chunkIDs, err := t.cfg.Metadata.AllChunkIDs(ctx)
	if err != nil {
		return fmt.Errorf("list chunk ids: %w", err)
	}
	// Indexes may hold entries metadata lost track of; clear those too.
	seen := make(map[string]struct{}, len(chunkIDs))
	for _, id := range chunkIDs {
		seen[id] = struct{}{}
	}
	if lexIDs, err := t.cfg.BM25.AllIDs(); err == nil {
		for _, id := range lexIDs {
			if _, ok := seen[id]; !ok {
				chunkIDs = append(chunkIDs, id)
				seen[id] = struct{}{}
			}
		}
	}
	for _, id := range t.cfg.Vectors.AllIDs() {
		if _, ok := seen[id]; !ok {
			chunkIDs = append(chunkIDs, id)
		}
	}

	if len(chunkIDs) > 0 {
		if err := t.cfg.BM25.Delete(ctx, chunkIDs); err != nil {
			return fmt.Errorf("clear lexical index: %w", err)
		}
		if err := t.cfg.Vectors.Delete(ctx, chunkIDs); err != nil {
			return fmt.Errorf("clear vector index: %w", err)
		}
	}

	docs, err := t.cfg.Metadata.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	for _, doc := range docs {
		if err := t.cfg.Metadata.DeleteDocument(ctx, doc.ID); err != nil {
			return fmt.Errorf("delete document %s: %w", doc.Path, err)
		}
	}

	if err := t.recordEmbedder(ctx); err != nil {
		return err
	}

	current, err := t.scanCorpus(ctx)
	if err != nil {
		return err
	}
	paths := make([]string, 0, len(current))
	for path := range current {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	slog.Info("rebuilding index", slog.Int("files", len(paths)))
	t.indexPaths(ctx, paths)
	return ctx.Err()
}

// indexPaths indexes the given files concurrently on the worker-bounded
// per-path pipeline. Failures are logged and skipped.
func (t *Tracker) indexPaths(ctx context.Context, paths []string) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, t.cfg.Workers)
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(path string) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := t.OnFileChanged(ctx, path); err != nil {
				slog.Warn("failed to index document",
					slog.String("path", path),
					slog.String("error", err.Error()))
			}
		}(path)
	}
	wg.Wait()
}

// scanCorpus walks the corpus and returns supported files keyed by
// slash-separated relative path.
func (t *Tracker) scanCorpus(ctx context.Context) (map[string]*scanner.FileInfo, error) {
	results, err := t.cfg.Scanner.Scan(ctx, t.cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("scan corpus: %w", err)
	}

	current := make(map[string]*scanner.FileInfo)
	for result := range results {
		if result.Error != nil {
			slog.Debug("scan error",
				slog.String("error", result.Error.Error()))
			continue
		}
		if result.File == nil {
			continue
		}
		current[result.File.Path] = result.File
	}
	return current, nil
}
