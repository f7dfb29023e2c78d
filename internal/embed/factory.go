package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ProviderType represents an embedding provider
type ProviderType string

const (
	// ProviderOllama uses the Ollama API for embeddings (default)
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings (no external service)
	ProviderStatic ProviderType = "static"
)

// Options configures embedder construction.
type Options struct {
	Provider   string
	Model      string
	Host       string
	Dimensions int
	BatchSize  int
	CacheSize  int

	// AllowFallback falls back to the static provider when Ollama is
	// unreachable instead of returning an error. Off for explicit
	// provider selection so a misconfiguration is not hidden.
	AllowFallback bool
}

// NewEmbedder creates an embedder from options and wraps it with an LRU
// cache.
func NewEmbedder(ctx context.Context, opts Options) (Embedder, error) {
	inner, err := newProvider(ctx, opts)
	if err != nil {
		return nil, err
	}
	return NewCachedEmbedder(inner, opts.CacheSize), nil
}

func newProvider(ctx context.Context, opts Options) (Embedder, error) {
	provider := ProviderType(strings.ToLower(opts.Provider))
	if provider == "" {
		provider = ProviderOllama
	}

	switch provider {
	case ProviderStatic:
		return NewStaticEmbedder(), nil

	case ProviderOllama:
		cfg := DefaultOllamaConfig()
		cfg.Host = opts.Host
		cfg.Model = opts.Model
		cfg.Dimensions = opts.Dimensions
		if opts.BatchSize > 0 {
			cfg.BatchSize = opts.BatchSize
		}

		embedder, err := NewOllamaEmbedder(ctx, cfg)
		if err != nil {
			if opts.AllowFallback {
				slog.Warn("ollama_unavailable_using_static",
					slog.String("host", cfg.Host),
					slog.String("error", err.Error()))
				return NewStaticEmbedder(), nil
			}
			return nil, err
		}
		return embedder, nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", opts.Provider)
	}
}
