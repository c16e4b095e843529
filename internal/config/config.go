// Package config provides configuration loading and structs for docindex.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "docindex.yaml"

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Index     IndexConfig     `yaml:"index"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Tokenizer TokenizerConfig `yaml:"tokenizer"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Query     QueryConfig     `yaml:"query"`
	Context   ContextConfig   `yaml:"context"`
	Sources   SourcesConfig   `yaml:"sources"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Keyword   KeywordConfig   `yaml:"keyword"`
	Server    ServerConfig    `yaml:"server"`
	Watch     WatchConfig     `yaml:"watch"`
}

// IndexConfig locates the index folder.
type IndexConfig struct {
	Folder string `yaml:"folder"`
}

// ChunkingConfig controls how documents are split before embedding.
type ChunkingConfig struct {
	ChunkSize      int   `yaml:"chunk_size"`
	ChunkOverlap   int   `yaml:"chunk_overlap"`
	KeepSeparators *bool `yaml:"keep_separators"`
}

// KeepSeparatorsOrDefault returns whether separators stay in chunk text; defaults to true when unset.
func (c *ChunkingConfig) KeepSeparatorsOrDefault() bool {
	if c.KeepSeparators != nil {
		return *c.KeepSeparators
	}
	return true
}

// TokenizerConfig selects the tokenizer used for chunking and budgets.
type TokenizerConfig struct {
	Type     string `yaml:"type"`
	Encoding string `yaml:"encoding"`
}

// EmbeddingConfig holds embeddings provider settings.
type EmbeddingConfig struct {
	// Type is openai, azure, oss or mock.
	Type            string  `yaml:"type"`
	Endpoint        string  `yaml:"endpoint"`
	Model           string  `yaml:"model"`
	Organization    string  `yaml:"organization"`
	APIKeyEnv       string  `yaml:"api_key_env"`
	AzureDeployment string  `yaml:"azure_deployment"`
	AzureAPIVersion string  `yaml:"azure_api_version"`
	Dimensions      int     `yaml:"dimensions"`
	MaxTokens       int     `yaml:"max_tokens"`
	RetryDelaysMs   []int   `yaml:"retry_delays_ms"`
	RequestsPerSec  float64 `yaml:"requests_per_second"`
	TimeoutSeconds  int     `yaml:"timeout_seconds"`
	LogRequests     bool    `yaml:"log_requests"`
	CacheSize       int     `yaml:"cache_size"`
}

// APIKey returns the value of the environment variable named by APIKeyEnv.
func (e *EmbeddingConfig) APIKey() string {
	return os.Getenv(e.APIKeyEnv)
}

// QueryConfig holds defaults for search queries.
type QueryConfig struct {
	MaxDocuments int   `yaml:"max_documents"`
	MaxChunks    int   `yaml:"max_chunks"`
	MaxTokens    int   `yaml:"max_tokens"`
	MaxSections  int   `yaml:"max_sections"`
	Overlap      *bool `yaml:"overlap"`
}

// OverlapOrDefault returns whether sections are grown into surrounding text; defaults to true when unset.
func (q *QueryConfig) OverlapOrDefault() bool {
	if q.Overlap != nil {
		return *q.Overlap
	}
	return true
}

// ContextConfig holds defaults for prompt context rendering.
type ContextConfig struct {
	MaxDocuments int `yaml:"max_documents"`
	MaxChunks    int `yaml:"max_chunks"`
	MaxTokens    int `yaml:"max_tokens"`
}

// SourcesConfig lists the folders that are indexed and which files are read.
type SourcesConfig struct {
	Roots       []string `yaml:"roots"`
	Extensions  []string `yaml:"extensions"`
	IgnoreDirs  []string `yaml:"ignore_dirs"`
	MaxFileSize int64    `yaml:"max_file_size"`
}

// LedgerConfig locates the ingestion ledger database.
type LedgerConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// EnabledOrDefault returns whether the ledger is used; defaults to true when unset.
func (l *LedgerConfig) EnabledOrDefault() bool {
	if l.Enabled != nil {
		return *l.Enabled
	}
	return true
}

// KeywordConfig locates the full-text index used by find.
type KeywordConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// EnabledOrDefault returns whether the keyword index is maintained; defaults to true when unset.
func (k *KeywordConfig) EnabledOrDefault() bool {
	if k.Enabled != nil {
		return *k.Enabled
	}
	return true
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Recursive  *bool `yaml:"recursive"`
	DebounceMs int   `yaml:"debounce_ms"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, loads .env files, applies defaults
// and expands paths relative to the config directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config directory: %w", err)
	}
	if err := LoadEnv(configDir); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	cfg.expandPaths(configDir)
	return &cfg, nil
}

// Default returns the configuration used without a config file, rooted at dir.
func Default(dir string) (*Config, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve directory: %w", err)
	}
	if err := LoadEnv(abs); err != nil {
		return nil, err
	}
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.expandPaths(abs)
	return cfg, nil
}

func (c *Config) expandPaths(configDir string) {
	c.Index.Folder = expandPath(c.Index.Folder, configDir)
	c.Ledger.Path = expandPath(c.Ledger.Path, configDir)
	c.Keyword.Path = expandPath(c.Keyword.Path, configDir)
	for i := range c.Sources.Roots {
		c.Sources.Roots[i] = expandPath(c.Sources.Roots[i], configDir)
	}
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
