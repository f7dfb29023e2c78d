package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete engine configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Indexing   IndexingConfig   `yaml:"indexing" json:"indexing"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// PathsConfig configures which paths to include and exclude.
type PathsConfig struct {
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// ChunkingConfig configures how documents are split before indexing.
type ChunkingConfig struct {
	// Size is the target chunk size in characters.
	Size int `yaml:"size" json:"size"`
	// Overlap is the number of trailing characters repeated in the next chunk.
	Overlap int `yaml:"overlap" json:"overlap"`
	// MinSize drops fragments smaller than this unless they are a
	// document's only chunk.
	MinSize int `yaml:"min_size" json:"min_size"`
}

// SearchConfig configures hybrid retrieval.
// Weights are configurable via:
//  1. User config (~/.config/localsearch/config.yaml) - personal defaults
//  2. Project config (.localsearch.yaml) - per-corpus tuning
//  3. Env vars (LOCALSEARCH_SEMANTIC_WEIGHT, LOCALSEARCH_KEYWORD_WEIGHT) - highest priority
type SearchConfig struct {
	// SemanticWeight is the weight of the vector similarity signal.
	// Must sum to 1.0 with KeywordWeight.
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"`

	// KeywordWeight is the weight of the BM25 keyword signal.
	KeywordWeight float64 `yaml:"keyword_weight" json:"keyword_weight"`

	// MinScore filters fused results below this threshold (0.0-1.0).
	MinScore float64 `yaml:"min_score" json:"min_score"`

	// CandidatePool is how many candidates each signal contributes
	// before fusion.
	CandidatePool int `yaml:"candidate_pool" json:"candidate_pool"`

	// MaxResults is the default result limit.
	MaxResults int `yaml:"max_results" json:"max_results"`

	// Timeout is the per-query time budget.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`

	// OllamaHost is the Ollama API endpoint (default: http://localhost:11434).
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`

	// CacheSize is the query-embedding LRU capacity.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// IndexingConfig configures the incremental indexing pipeline.
type IndexingConfig struct {
	// DataDir is where indexes and metadata are stored.
	// Empty means <corpus root>/.localsearch.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// Workers bounds concurrent embedding requests during indexing.
	Workers int `yaml:"workers" json:"workers"`

	// WatchDebounce is the quiet period before a changed file is reindexed.
	WatchDebounce time.Duration `yaml:"watch_debounce" json:"watch_debounce"`

	// MaxFileSize skips files larger than this many bytes.
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// defaultExcludePatterns are always excluded.
var defaultExcludePatterns = []string{
	"**/.git/**",
	"**/.localsearch/**",
	"**/node_modules/**",
	"**/__pycache__/**",
	"**/.DS_Store",
	"**/~$*",
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Include: []string{},
			Exclude: defaultExcludePatterns,
		},
		Chunking: ChunkingConfig{
			Size:    800,
			Overlap: 200,
			MinSize: 50,
		},
		Search: SearchConfig{
			SemanticWeight: 0.7,
			KeywordWeight:  0.3,
			MinScore:       0.3,
			CandidatePool:  50,
			MaxResults:     10,
			Timeout:        5 * time.Second,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			Dimensions: 0, // auto-detect from embedder
			BatchSize:  32,
			OllamaHost: "", // empty uses default http://localhost:11434
			CacheSize:  1000,
		},
		Indexing: IndexingConfig{
			DataDir:       "",
			Workers:       runtime.NumCPU(),
			WatchDebounce: 500 * time.Millisecond,
			MaxFileSize:   50 * 1024 * 1024,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/localsearch/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/localsearch/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "localsearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "localsearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "localsearch", "config.yaml")
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// Load loads configuration for the given corpus directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/localsearch/config.yaml)
//  3. Corpus config (.localsearch.yaml in corpus root)
//  4. Environment variables (LOCALSEARCH_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, err
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .localsearch.yaml or .localsearch.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".localsearch.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".localsearch.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine - use defaults
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	// Paths
	if len(other.Paths.Include) > 0 {
		c.Paths.Include = other.Paths.Include
	}
	if len(other.Paths.Exclude) > 0 {
		// Merge with defaults rather than replace
		c.Paths.Exclude = append(c.Paths.Exclude, other.Paths.Exclude...)
	}

	// Chunking
	if other.Chunking.Size != 0 {
		c.Chunking.Size = other.Chunking.Size
	}
	if other.Chunking.Overlap != 0 {
		c.Chunking.Overlap = other.Chunking.Overlap
	}
	if other.Chunking.MinSize != 0 {
		c.Chunking.MinSize = other.Chunking.MinSize
	}

	// Search weights
	// 0 is not a practical value for weights, so only non-zero values merge.
	if other.Search.SemanticWeight != 0 {
		c.Search.SemanticWeight = other.Search.SemanticWeight
	}
	if other.Search.KeywordWeight != 0 {
		c.Search.KeywordWeight = other.Search.KeywordWeight
	}
	if other.Search.MinScore != 0 {
		c.Search.MinScore = other.Search.MinScore
	}
	if other.Search.CandidatePool != 0 {
		c.Search.CandidatePool = other.Search.CandidatePool
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	if other.Search.Timeout != 0 {
		c.Search.Timeout = other.Search.Timeout
	}

	// Embeddings
	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	// Indexing
	if other.Indexing.DataDir != "" {
		c.Indexing.DataDir = other.Indexing.DataDir
	}
	if other.Indexing.Workers != 0 {
		c.Indexing.Workers = other.Indexing.Workers
	}
	if other.Indexing.WatchDebounce != 0 {
		c.Indexing.WatchDebounce = other.Indexing.WatchDebounce
	}
	if other.Indexing.MaxFileSize != 0 {
		c.Indexing.MaxFileSize = other.Indexing.MaxFileSize
	}

	// Logging
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.File != "" {
		c.Logging.File = other.Logging.File
	}
}

// applyEnvOverrides applies LOCALSEARCH_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// Explicit zero weights are representable via env vars.
	if v := os.Getenv("LOCALSEARCH_SEMANTIC_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && w >= 0 && w <= 1 {
			c.Search.SemanticWeight = w
		}
	}
	if v := os.Getenv("LOCALSEARCH_KEYWORD_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && w >= 0 && w <= 1 {
			c.Search.KeywordWeight = w
		}
	}
	if v := os.Getenv("LOCALSEARCH_MIN_SCORE"); v != "" {
		if s, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && s >= 0 && s <= 1 {
			c.Search.MinScore = s
		}
	}

	if v := os.Getenv("LOCALSEARCH_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("LOCALSEARCH_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("LOCALSEARCH_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("LOCALSEARCH_DATA_DIR"); v != "" {
		c.Indexing.DataDir = v
	}
	if v := os.Getenv("LOCALSEARCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// FindCorpusRoot finds the corpus root directory by walking up from
// startDir looking for a .localsearch.yaml/.yml file or a .git directory.
// Falls back to startDir itself.
func FindCorpusRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if fileExists(filepath.Join(currentDir, ".localsearch.yaml")) ||
			fileExists(filepath.Join(currentDir, ".localsearch.yml")) {
			return currentDir, nil
		}
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// ResolveDataDir returns the index data directory for a corpus root.
func (c *Config) ResolveDataDir(root string) string {
	if c.Indexing.DataDir != "" {
		return c.Indexing.DataDir
	}
	return filepath.Join(root, ".localsearch")
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dirExists checks if a directory exists.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Search.SemanticWeight < 0 || c.Search.SemanticWeight > 1 {
		return fmt.Errorf("semantic_weight must be between 0 and 1, got %f", c.Search.SemanticWeight)
	}
	if c.Search.KeywordWeight < 0 || c.Search.KeywordWeight > 1 {
		return fmt.Errorf("keyword_weight must be between 0 and 1, got %f", c.Search.KeywordWeight)
	}

	sum := c.Search.SemanticWeight + c.Search.KeywordWeight
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("semantic_weight + keyword_weight must equal 1.0, got %.2f", sum)
	}

	if c.Search.MinScore < 0 || c.Search.MinScore > 1 {
		return fmt.Errorf("min_score must be between 0 and 1, got %f", c.Search.MinScore)
	}
	if c.Search.MaxResults < 0 {
		return fmt.Errorf("max_results must be non-negative, got %d", c.Search.MaxResults)
	}
	if c.Search.CandidatePool <= 0 {
		return fmt.Errorf("candidate_pool must be positive, got %d", c.Search.CandidatePool)
	}

	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, size), got %d", c.Chunking.Overlap)
	}
	if c.Chunking.MinSize < 0 {
		return fmt.Errorf("chunking.min_size must be non-negative, got %d", c.Chunking.MinSize)
	}

	if c.Embeddings.Provider != "" {
		validProviders := map[string]bool{"ollama": true, "static": true}
		if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
			return fmt.Errorf("embeddings.provider must be 'ollama', 'static', or empty, got %s", c.Embeddings.Provider)
		}
	}

	if c.Indexing.Workers <= 0 {
		return fmt.Errorf("indexing.workers must be positive, got %d", c.Indexing.Workers)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
