package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the talktocode service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	GitHub    GitHubConfig    `yaml:"github"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Store     StoreConfig     `yaml:"store"`
	Query     QueryConfig     `yaml:"query"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr             string `yaml:"addr"`
	ReadTimeoutSecs  int    `yaml:"read_timeout_secs"`
	WriteTimeoutSecs int    `yaml:"write_timeout_secs"`
	ShutdownSecs     int    `yaml:"shutdown_secs"`
}

// GitHubConfig holds content fetcher configuration.
type GitHubConfig struct {
	BaseURL      string   `yaml:"base_url"`
	TokenEnv     string   `yaml:"token_env"` // Environment variable for the API token
	Includes     []string `yaml:"includes"`
	Excludes     []string `yaml:"excludes"`
	RatePerSec   float64  `yaml:"rate_per_sec"`
	Burst        int      `yaml:"burst"`
	MaxRetries   int      `yaml:"max_retries"`
	TimeoutSecs  int      `yaml:"timeout_secs"`
	FetchWorkers int      `yaml:"fetch_workers"`
}

// ChunkerConfig configures how file text is split into chunks.
type ChunkerConfig struct {
	MaxChunkChars int `yaml:"max_chunk_chars"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"` // "openai", "mock"
	Model       string `yaml:"model"`    // e.g., "text-embedding-3-large"
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Dimension   int    `yaml:"dimension"`
	Workers     int    `yaml:"workers"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// StoreConfig selects and configures the vector store backend.
type StoreConfig struct {
	Type   string       `yaml:"type"` // "qdrant", "local", "memory"
	Qdrant QdrantConfig `yaml:"qdrant"`
	Local  LocalConfig  `yaml:"local"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// LocalConfig configures the bbolt-backed local vector store.
type LocalConfig struct {
	Path string `yaml:"path"`
}

// QueryConfig holds query path configuration.
type QueryConfig struct {
	TopK         int `yaml:"top_k"`
	CacheSize    int `yaml:"cache_size"`
	CacheTTLSecs int `yaml:"cache_ttl_secs"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:             ":8080",
			ReadTimeoutSecs:  30,
			WriteTimeoutSecs: 300,
			ShutdownSecs:     10,
		},
		GitHub: GitHubConfig{
			BaseURL:      "https://api.github.com",
			TokenEnv:     "GITHUB_TOKEN",
			Excludes:     []string{"**/*.png", "**/*.jpg", "**/*.gif", "**/*.ico", "**/*.lock", "**/*.min.js"},
			RatePerSec:   5,
			Burst:        5,
			MaxRetries:   3,
			TimeoutSecs:  30,
			FetchWorkers: 4,
		},
		Chunker: ChunkerConfig{
			MaxChunkChars: 8000,
		},
		Embedding: EmbeddingConfig{
			Provider:    "openai",
			Model:       "text-embedding-3-large",
			BaseURL:     "https://api.openai.com/v1",
			APIKeyEnv:   "OPENAI_API_KEY",
			Dimension:   3072,
			Workers:     8,
			TimeoutSecs: 60,
		},
		Store: StoreConfig{
			Type: "qdrant",
			Qdrant: QdrantConfig{
				URL:         "http://localhost:6333",
				APIKeyEnv:   "QDRANT_API_KEY",
				Collection:  "talktocode",
				TimeoutSecs: 30,
			},
			Local: LocalConfig{
				Path: ".talktocode/vectors.db",
			},
		},
		Query: QueryConfig{
			TopK:         5,
			CacheSize:    100,
			CacheTTLSecs: 300,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. Missing files yield defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for talktocode.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "talktocode.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".talktocode", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
