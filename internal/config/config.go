package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"docqa/internal/errs"
)

// LogConfig controls the zap logger.
type LogConfig struct {
	Mode   string `yaml:"mode"`
	Output string `yaml:"output"`
}

// OpenAIConfig holds configuration for the embedding and completion client.
type OpenAIConfig struct {
	BaseURL        string  `yaml:"base_url"`
	APIKeyEnv      string  `yaml:"api_key_env"`
	EmbeddingModel string  `yaml:"embedding_model"`
	ChatModel      string  `yaml:"chat_model"`
	Temperature    float32 `yaml:"temperature"`
	TimeoutSecs    int     `yaml:"timeout_secs"`

	APIKey string `yaml:"-"`
}

// ChunkerConfig configures the word-window splitter.
type ChunkerConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"overlap"`
}

// PineconeConfig contains connection details for the Pinecone control plane.
type PineconeConfig struct {
	BaseURL          string `yaml:"base_url"`
	APIKeyEnv        string `yaml:"api_key_env"`
	APIVersion       string `yaml:"api_version"`
	Cloud            string `yaml:"cloud"`
	Region           string `yaml:"region"`
	TimeoutSecs      int    `yaml:"timeout_secs"`
	ReadyTimeoutSecs int    `yaml:"ready_timeout_secs"`

	APIKey string `yaml:"-"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`

	APIKey string `yaml:"-"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type            string          `yaml:"type"`
	Index           string          `yaml:"index"`
	Dimension       int             `yaml:"dimension"`
	Metric          string          `yaml:"metric"`
	UpsertBatchSize int             `yaml:"upsert_batch_size"`
	Pinecone        *PineconeConfig `yaml:"pinecone,omitempty"`
	Qdrant          *QdrantConfig   `yaml:"qdrant,omitempty"`
}

// QueryConfig tunes retrieval and the post-ingest summary.
type QueryConfig struct {
	TopK             int `yaml:"top_k"`
	SummarySentences int `yaml:"summary_sentences"`
}

// DemoConfig drives the no-argument CLI run.
type DemoConfig struct {
	PDF       string `yaml:"pdf"`
	Namespace string `yaml:"namespace"`
	Question  string `yaml:"question"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Log         LogConfig         `yaml:"log"`
	OpenAI      OpenAIConfig      `yaml:"openai"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Query       QueryConfig       `yaml:"query"`
	Demo        DemoConfig        `yaml:"demo"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, errs.E(errs.Configuration, "config.Load", err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errs.E(errs.Configuration, "config.Load", fmt.Errorf("parse %s: %w", path, err))
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/docqa/config.yaml.
// If neither exists, it writes defaults to ~/.config/docqa/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", errs.E(errs.Configuration, "config.LoadDefault", err)
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", errs.E(errs.Configuration, "config.LoadDefault", err)
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadDotEnv loads ./.env into the process environment when present.
func LoadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	if err := godotenv.Load(); err != nil {
		return errs.E(errs.Configuration, "config.LoadDotEnv", err)
	}
	return nil
}

// Resolve copies secrets from the environment into the config and validates it.
// A missing secret is reported by the name of its environment variable.
func (c *AppConfig) Resolve() error {
	const op = "config.Resolve"
	c.OpenAI.APIKey = strings.TrimSpace(os.Getenv(c.OpenAI.APIKeyEnv))
	if c.OpenAI.APIKey == "" {
		return errs.Errorf(errs.Configuration, op, "missing API key: set %s", c.OpenAI.APIKeyEnv)
	}
	switch c.VectorStore.Type {
	case "pinecone":
		c.VectorStore.Pinecone.APIKey = strings.TrimSpace(os.Getenv(c.VectorStore.Pinecone.APIKeyEnv))
		if c.VectorStore.Pinecone.APIKey == "" {
			return errs.Errorf(errs.Configuration, op, "missing API key: set %s", c.VectorStore.Pinecone.APIKeyEnv)
		}
	case "qdrant":
		// Qdrant runs without auth locally; the key is optional.
		c.VectorStore.Qdrant.APIKey = strings.TrimSpace(os.Getenv(c.VectorStore.Qdrant.APIKeyEnv))
	}
	return c.Validate()
}

// Validate checks value ranges that would otherwise fail deep inside a request.
func (c *AppConfig) Validate() error {
	const op = "config.Validate"
	if c.Chunker.ChunkSize <= 0 {
		return errs.Errorf(errs.Configuration, op, "chunker.chunk_size must be positive, got %d", c.Chunker.ChunkSize)
	}
	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.ChunkSize {
		return errs.Errorf(errs.Configuration, op, "chunker.overlap must be in [0, %d), got %d", c.Chunker.ChunkSize, c.Chunker.Overlap)
	}
	if c.VectorStore.Dimension <= 0 {
		return errs.Errorf(errs.Configuration, op, "vector_store.dimension must be positive, got %d", c.VectorStore.Dimension)
	}
	if strings.TrimSpace(c.VectorStore.Index) == "" {
		return errs.Errorf(errs.Configuration, op, "vector_store.index is required")
	}
	switch c.VectorStore.Type {
	case "pinecone", "memory":
	case "qdrant":
		if strings.TrimSpace(c.VectorStore.Qdrant.URL) == "" {
			return errs.Errorf(errs.Configuration, op, "vector_store.qdrant.url is required")
		}
	default:
		return errs.Errorf(errs.Configuration, op, "unknown vector store: %s", c.VectorStore.Type)
	}
	switch c.VectorStore.Metric {
	case "cosine", "euclidean", "dotproduct":
	default:
		return errs.Errorf(errs.Configuration, op, "unknown metric: %s", c.VectorStore.Metric)
	}
	if c.Query.TopK <= 0 {
		return errs.Errorf(errs.Configuration, op, "query.top_k must be positive, got %d", c.Query.TopK)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docqa", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Log.Mode == "" {
		cfg.Log.Mode = "development"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}

	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.OpenAI.APIKeyEnv == "" {
		cfg.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.OpenAI.EmbeddingModel == "" {
		cfg.OpenAI.EmbeddingModel = "text-embedding-ada-002"
	}
	if cfg.OpenAI.ChatModel == "" {
		cfg.OpenAI.ChatModel = "gpt-4o"
	}
	if cfg.OpenAI.Temperature == 0 {
		cfg.OpenAI.Temperature = 0.2
	}

	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 500
		if cfg.Chunker.Overlap == 0 {
			cfg.Chunker.Overlap = 50
		}
	}

	vs := &cfg.VectorStore
	if vs.Type == "" {
		vs.Type = "pinecone"
	}
	if vs.Index == "" {
		vs.Index = "rag"
	}
	if vs.Dimension == 0 {
		vs.Dimension = 1536
	}
	if vs.Metric == "" {
		vs.Metric = "cosine"
	}
	if vs.UpsertBatchSize <= 0 {
		vs.UpsertBatchSize = 40
	}
	if vs.Pinecone == nil {
		vs.Pinecone = &PineconeConfig{}
	}
	if vs.Pinecone.BaseURL == "" {
		vs.Pinecone.BaseURL = "https://api.pinecone.io"
	}
	if vs.Pinecone.APIKeyEnv == "" {
		vs.Pinecone.APIKeyEnv = "PINECONE_API_KEY"
	}
	if vs.Pinecone.APIVersion == "" {
		vs.Pinecone.APIVersion = "2025-04"
	}
	if vs.Pinecone.Cloud == "" {
		vs.Pinecone.Cloud = "aws"
	}
	if vs.Pinecone.Region == "" {
		vs.Pinecone.Region = "us-east-1"
	}
	if vs.Pinecone.ReadyTimeoutSecs == 0 {
		vs.Pinecone.ReadyTimeoutSecs = 120
	}
	if vs.Qdrant == nil {
		vs.Qdrant = &QdrantConfig{}
	}
	if vs.Qdrant.URL == "" {
		vs.Qdrant.URL = "http://localhost:6333"
	}
	if vs.Qdrant.APIKeyEnv == "" {
		vs.Qdrant.APIKeyEnv = "QDRANT_API_KEY"
	}

	if cfg.Query.TopK == 0 {
		cfg.Query.TopK = 5
	}
	if cfg.Query.SummarySentences == 0 {
		cfg.Query.SummarySentences = 3
	}

	if cfg.Demo.PDF == "" {
		cfg.Demo.PDF = "./pdf/test.pdf"
	}
	if cfg.Demo.Namespace == "" {
		cfg.Demo.Namespace = "my_pdf"
	}
	if cfg.Demo.Question == "" {
		cfg.Demo.Question = "What is this document about?"
	}
}
