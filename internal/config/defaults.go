package config

// Defaults applied to unset values.
const (
	DefaultIndexFolder  = "./.docindex"
	DefaultLedgerPath   = "./.docindex-ledger.db"
	DefaultKeywordPath  = "./.docindex-keyword.bleve"
	DefaultAPIKeyEnv    = "OPENAI_API_KEY"
	DefaultEmbedding    = "openai"
	DefaultModel        = "text-embedding-3-small"
	DefaultTokenizer    = "bpe"
	DefaultEncoding     = "cl100k_base"
	DefaultCacheSize    = 10000
	defaultServerHost   = "localhost"
	defaultServerPort   = 8080
	defaultDebounceMs   = 400
	defaultEmbedTimeout = 60
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Index.Folder == "" {
		cfg.Index.Folder = DefaultIndexFolder
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 512
	}
	if cfg.Tokenizer.Type == "" {
		cfg.Tokenizer.Type = DefaultTokenizer
	}
	if cfg.Tokenizer.Encoding == "" {
		cfg.Tokenizer.Encoding = DefaultEncoding
	}
	if cfg.Embedding.Type == "" {
		cfg.Embedding.Type = DefaultEmbedding
	}
	if cfg.Embedding.Model == "" && cfg.Embedding.Type == DefaultEmbedding {
		cfg.Embedding.Model = DefaultModel
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = DefaultAPIKeyEnv
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 8000
	}
	if cfg.Embedding.RetryDelaysMs == nil {
		cfg.Embedding.RetryDelaysMs = []int{2000, 5000}
	}
	if cfg.Embedding.TimeoutSeconds == 0 {
		cfg.Embedding.TimeoutSeconds = defaultEmbedTimeout
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = DefaultCacheSize
	}
	if cfg.Query.MaxDocuments == 0 {
		cfg.Query.MaxDocuments = 10
	}
	if cfg.Query.MaxChunks == 0 {
		cfg.Query.MaxChunks = 50
	}
	if cfg.Query.MaxTokens == 0 {
		cfg.Query.MaxTokens = 500
	}
	if cfg.Query.MaxSections == 0 {
		cfg.Query.MaxSections = 1
	}
	if cfg.Context.MaxDocuments == 0 {
		cfg.Context.MaxDocuments = 100
	}
	if cfg.Context.MaxChunks == 0 {
		cfg.Context.MaxChunks = 2000
	}
	if cfg.Context.MaxTokens == 0 {
		cfg.Context.MaxTokens = 2000
	}
	if len(cfg.Sources.Roots) == 0 {
		cfg.Sources.Roots = []string{"."}
	}
	if cfg.Ledger.Path == "" {
		cfg.Ledger.Path = DefaultLedgerPath
	}
	if cfg.Keyword.Path == "" {
		cfg.Keyword.Path = DefaultKeywordPath
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = defaultServerHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultServerPort
	}
	if cfg.Watch.DebounceMs == 0 {
		cfg.Watch.DebounceMs = defaultDebounceMs
	}
}
