package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string            `toml:"environment"` // "development" or "production"
	Server      ServerConfig      `toml:"server"`
	Storage     StorageConfig     `toml:"storage"`
	Vector      VectorConfig      `toml:"vector"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Ingest      IngestConfig      `toml:"ingest"`
	Retrieval   RetrievalConfig   `toml:"retrieval"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
	Claude      ClaudeConfig      `toml:"claude"`
	Logging     LoggingConfig     `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gt=0,lt=65536"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
	Files  FilesConfig  `toml:"files"`
}

// BadgerConfig represents BadgerDB-specific configuration for the workspace registry
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

// FilesConfig selects and configures the object storage backend for raw
// uploaded files. Only the "local" backend ships with the demo deployment;
// cloud buckets sit behind the same interface.
type FilesConfig struct {
	Backend string `toml:"backend" validate:"oneof=local"`
	Path    string `toml:"path" validate:"required"`
	BaseURL string `toml:"base_url"` // URL prefix for constructed file URLs
}

// VectorConfig configures the vector index service client
type VectorConfig struct {
	Backend         string `toml:"backend" validate:"oneof=pinecone memory"`
	Index           string `toml:"index" validate:"required"`
	Dimension       int    `toml:"dimension" validate:"gt=0"`
	APIKey          string `toml:"api_key"`
	ControllerURL   string `toml:"controller_url"` // control plane base URL
	Host            string `toml:"host"`           // data plane host; discovered from the controller when empty
	Cloud           string `toml:"cloud"`
	Region          string `toml:"region"`
	Metric          string `toml:"metric" validate:"oneof=cosine dotproduct euclidean"`
	UpsertBatchSize int    `toml:"upsert_batch_size" validate:"gt=0"`
	UpsertByteLimit int    `toml:"upsert_byte_limit" validate:"gt=0"`
	ListPageSize    int    `toml:"list_page_size" validate:"gt=0"`
}

// EmbeddingConfig configures the OpenAI-compatible embedding client
type EmbeddingConfig struct {
	BaseURL           string  `toml:"base_url" validate:"required"`
	APIKey            string  `toml:"api_key"`
	Model             string  `toml:"model" validate:"required"`
	Dimension         int     `toml:"dimension" validate:"gt=0"`
	MaxBatchSize      int     `toml:"max_batch_size" validate:"gt=0"`
	RequestsPerSecond float64 `toml:"requests_per_second" validate:"gt=0"`
}

// IngestConfig bounds the ingestion pipeline
type IngestConfig struct {
	AllowedTypes     []string `toml:"allowed_types"`
	MaxFileSizeBytes int64    `toml:"max_file_size_bytes" validate:"gt=0"`
	Workers          int      `toml:"workers" validate:"gt=0"`
	ChunkMaxChars    int      `toml:"chunk_max_chars" validate:"gt=0"`
	ChunkMinChars    int      `toml:"chunk_min_chars" validate:"gt=0"`
	DocumentDeadline string   `toml:"document_deadline"` // e.g. "300s"
	UpsertMaxRetries int      `toml:"upsert_max_retries" validate:"gt=0"`
}

// RetrievalConfig holds context assembly defaults. The two source
// applications disagreed on min_score (0.15 vs 0.01); it is configuration
// here, not a constant.
type RetrievalConfig struct {
	TopK            int     `toml:"top_k" validate:"gt=0"`
	MinScore        float64 `toml:"min_score" validate:"gte=0,lte=1"`
	MaxContextChars int     `toml:"max_context_chars" validate:"gt=0"`
}

// MaintenanceConfig configures the scheduled orphan sweep
type MaintenanceConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // cron format with seconds
}

type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float64 `toml:"temperature"`
	Timeout     string  `toml:"timeout"` // e.g. "60s"
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig returns the built-in defaults, overridable by config
// files, environment variables and CLI flags (in that order).
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/registry",
			},
			Files: FilesConfig{
				Backend: "local",
				Path:    "./data/uploads",
				BaseURL: "/api/documents/files",
			},
		},
		Vector: VectorConfig{
			Backend:         "memory",
			Index:           "colligo",
			Dimension:       1536,
			ControllerURL:   "https://api.pinecone.io",
			Cloud:           "aws",
			Region:          "us-east-1",
			Metric:          "cosine",
			UpsertBatchSize: 200,
			UpsertByteLimit: 2 * 1024 * 1024,
			ListPageSize:    100,
		},
		Embedding: EmbeddingConfig{
			BaseURL:           "https://api.openai.com/v1",
			Model:             "text-embedding-3-small",
			Dimension:         1536,
			MaxBatchSize:      96,
			RequestsPerSecond: 5,
		},
		Ingest: IngestConfig{
			AllowedTypes:     []string{"application/pdf", "text/plain", "text/markdown"},
			MaxFileSizeBytes: 25 * 1024 * 1024,
			Workers:          4,
			ChunkMaxChars:    1500,
			ChunkMinChars:    500,
			DocumentDeadline: "300s",
			UpsertMaxRetries: 5,
		},
		Retrieval: RetrievalConfig{
			TopK:            15,
			MinScore:        0.15, // namespace-notes default; the newsbot deployment used 0.01
			MaxContextChars: 5000,
		},
		Maintenance: MaintenanceConfig{
			Enabled:  true,
			Schedule: "0 0 */6 * * *",
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-20250514",
			MaxTokens:   2048,
			Temperature: 0.2,
			Timeout:     "60s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2
// -> ... -> env. Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("COLLIGO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("COLLIGO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("COLLIGO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if path := os.Getenv("COLLIGO_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if path := os.Getenv("COLLIGO_FILES_PATH"); path != "" {
		config.Storage.Files.Path = path
	}

	if backend := os.Getenv("COLLIGO_VECTOR_BACKEND"); backend != "" {
		config.Vector.Backend = backend
	}
	if key := os.Getenv("PINECONE_API_KEY"); key != "" {
		config.Vector.APIKey = key
	}
	if index := os.Getenv("PINECONE_INDEX_NAME"); index != "" {
		config.Vector.Index = index
	}
	if host := os.Getenv("PINECONE_INDEX_HOST"); host != "" {
		config.Vector.Host = host
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		config.Embedding.APIKey = key
	}
	if url := os.Getenv("COLLIGO_EMBEDDING_BASE_URL"); url != "" {
		config.Embedding.BaseURL = url
	}

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}

	if level := os.Getenv("COLLIGO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("COLLIGO_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks the configuration for structural problems. Missing
// credentials or a dimension mismatch between the embedding model and the
// vector index are configuration errors and fatal at startup.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Embedding.Dimension != c.Vector.Dimension {
		return fmt.Errorf("embedding dimension %d does not match vector index dimension %d",
			c.Embedding.Dimension, c.Vector.Dimension)
	}

	if c.Vector.Backend == "pinecone" && c.Vector.APIKey == "" {
		return fmt.Errorf("vector backend %q requires an API key", c.Vector.Backend)
	}

	if _, err := c.DocumentDeadline(); err != nil {
		return err
	}

	return nil
}

// DocumentDeadline parses the per-document ingestion deadline
func (c *Config) DocumentDeadline() (time.Duration, error) {
	if c.Ingest.DocumentDeadline == "" {
		return 300 * time.Second, nil
	}
	d, err := time.ParseDuration(c.Ingest.DocumentDeadline)
	if err != nil {
		return 0, fmt.Errorf("invalid ingest.document_deadline %q: %w", c.Ingest.DocumentDeadline, err)
	}
	return d, nil
}

// ClaudeTimeout parses the Claude request timeout
func (c *Config) ClaudeTimeout() time.Duration {
	if c.Claude.Timeout == "" {
		return 60 * time.Second
	}
	d, err := time.ParseDuration(c.Claude.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}
