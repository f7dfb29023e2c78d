// Package extract turns source files into plain text for chunking.
// Each file format has a Loader; the Registry dispatches by extension.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/heresalord/localsearchengine/internal/errors"
)

// Loader extracts plain text from a file format.
type Loader interface {
	// Extract returns the plain text content of the file at path.
	Extract(ctx context.Context, path string) (string, error)

	// Supports reports whether the loader handles the extension
	// (lowercase, with leading dot).
	Supports(ext string) bool
}

// ImageTextRecognizer is an optional loader capability for recognizing
// text in scanned or image-based documents. The registry falls back to
// it when primary extraction yields no text. No built-in loader
// implements it; it is a hook for external OCR integrations.
type ImageTextRecognizer interface {
	RecognizeText(ctx context.Context, path string) (string, error)
}

// Registry maps file extensions to loaders.
type Registry struct {
	mu      sync.RWMutex
	loaders map[string]Loader
}

// NewRegistry creates a registry with the built-in loaders registered:
// plain text, Markdown, HTML, and PDF.
func NewRegistry() *Registry {
	r := &Registry{loaders: make(map[string]Loader)}
	r.Register(NewTextLoader())
	r.Register(NewHTMLLoader())
	r.Register(NewPDFLoader())
	return r
}

// Register adds a loader for every extension it supports. Later
// registrations win, so callers can override built-ins.
func (r *Registry) Register(loader Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ext := range allExtensions {
		if loader.Supports(ext) {
			r.loaders[ext] = loader
		}
	}
}

// RegisterExt adds a loader for one specific extension.
func (r *Registry) RegisterExt(ext string, loader Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[strings.ToLower(ext)] = loader
}

// ForPath returns the loader for a file path, or false when the
// extension is not supported.
func (r *Registry) ForPath(path string) (Loader, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	loader, ok := r.loaders[strings.ToLower(filepath.Ext(path))]
	return loader, ok
}

// Supported reports whether files with this path's extension can be
// extracted.
func (r *Registry) Supported(path string) bool {
	_, ok := r.ForPath(path)
	return ok
}

// Extensions returns the registered extensions, for scanner filters.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.loaders))
	for ext := range r.loaders {
		exts = append(exts, ext)
	}
	return exts
}

// Extract runs the loader for the file's extension. Failures are
// wrapped as ExtractionError so callers can skip the file and keep
// indexing. When extraction succeeds but yields no text and the loader
// can recognize text in images, that capability is tried as a fallback.
func (r *Registry) Extract(ctx context.Context, path string) (string, error) {
	loader, ok := r.ForPath(path)
	if !ok {
		return "", errors.NewExtractionError(path,
			fmt.Errorf("unsupported file extension %q", filepath.Ext(path)))
	}

	text, err := loader.Extract(ctx, path)
	if err != nil {
		return "", errors.NewExtractionError(path, err)
	}

	if strings.TrimSpace(text) == "" {
		if ocr, ok := loader.(ImageTextRecognizer); ok {
			recognized, ocrErr := ocr.RecognizeText(ctx, path)
			if ocrErr != nil {
				return "", errors.NewExtractionError(path, ocrErr)
			}
			return recognized, nil
		}
	}
	return text, nil
}

// allExtensions lists every extension a built-in loader may claim.
var allExtensions = []string{".txt", ".md", ".markdown", ".html", ".htm", ".pdf"}
