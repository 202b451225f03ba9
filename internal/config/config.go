package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the bookqa API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Redis     RedisConfig     `yaml:"redis"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Providers ProvidersConfig `yaml:"providers"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// RedisConfig holds vector store connection settings.
type RedisConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
	HNSWM            int      `yaml:"hnsw_m"`
	HNSWEFConstruct  int      `yaml:"hnsw_ef_construction"`
}

// PostgresConfig holds relational store settings.
type PostgresConfig struct {
	URL         string `yaml:"url"`
	MaxConns    int    `yaml:"max_conns"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// ProvidersConfig groups the three model providers the pipeline talks to.
type ProvidersConfig struct {
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Rerank     RerankConfig     `yaml:"rerank"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions"`
	CacheTTLSec int    `yaml:"cache_ttl_sec"`
}

// GenerationConfig holds answer generation provider settings.
type GenerationConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
}

// RerankConfig holds rerank provider settings.
type RerankConfig struct {
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	Attempts int    `yaml:"attempts"`
}

// PipelineConfig holds chunking, retrieval and verification settings.
type PipelineConfig struct {
	ChunkSize          int     `yaml:"chunk_size"`
	ChunkOverlap       int     `yaml:"chunk_overlap"`
	RetrievalLimit     int     `yaml:"retrieval_limit"`
	AccuracyThreshold  float64 `yaml:"accuracy_threshold"`
	IsolationThreshold float64 `yaml:"isolation_threshold"`
	RetrieveTimeoutSec int     `yaml:"retrieve_timeout_sec"`
	SynthesizeTimeout  int     `yaml:"synthesize_timeout_sec"`
	VerifyTimeoutSec   int     `yaml:"verify_timeout_sec"`
	BookCacheTTLSec    int     `yaml:"book_cache_ttl_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Redis.ReadinessTimeout <= 0 {
		c.Redis.ReadinessTimeout = 10
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "bookqa:"
	}
	if c.Redis.HNSWM <= 0 {
		c.Redis.HNSWM = 32
	}
	if c.Redis.HNSWEFConstruct <= 0 {
		c.Redis.HNSWEFConstruct = 400
	}
	if c.Postgres.MaxConns <= 0 {
		c.Postgres.MaxConns = 10
	}
	if c.Providers.Embedding.Dimensions <= 0 {
		c.Providers.Embedding.Dimensions = 1536
	}
	if c.Providers.Embedding.CacheTTLSec <= 0 {
		c.Providers.Embedding.CacheTTLSec = 86400
	}
	if c.Providers.Generation.MaxTokens <= 0 {
		c.Providers.Generation.MaxTokens = 1000
	}
	if c.Providers.Generation.Temperature <= 0 {
		c.Providers.Generation.Temperature = 0.3
	}
	if c.Providers.Rerank.Attempts <= 0 {
		c.Providers.Rerank.Attempts = 3
	}
	if c.Pipeline.ChunkSize <= 0 {
		c.Pipeline.ChunkSize = 512
	}
	if c.Pipeline.ChunkOverlap <= 0 {
		c.Pipeline.ChunkOverlap = 50
	}
	if c.Pipeline.RetrievalLimit <= 0 {
		c.Pipeline.RetrievalLimit = 5
	}
	if c.Pipeline.AccuracyThreshold <= 0 {
		c.Pipeline.AccuracyThreshold = 0.7
	}
	if c.Pipeline.IsolationThreshold <= 0 {
		c.Pipeline.IsolationThreshold = 0.7
	}
	if c.Pipeline.RetrieveTimeoutSec <= 0 {
		c.Pipeline.RetrieveTimeoutSec = 2
	}
	if c.Pipeline.SynthesizeTimeout <= 0 {
		c.Pipeline.SynthesizeTimeout = 3
	}
	if c.Pipeline.VerifyTimeoutSec <= 0 {
		c.Pipeline.VerifyTimeoutSec = 2
	}
	if c.Pipeline.BookCacheTTLSec <= 0 {
		c.Pipeline.BookCacheTTLSec = 300
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Redis.Addrs) == 0 {
		return fmt.Errorf("redis.addrs is required")
	}
	if c.Postgres.URL == "" {
		return fmt.Errorf("postgres.url is required")
	}
	if c.Pipeline.ChunkOverlap >= c.Pipeline.ChunkSize {
		return fmt.Errorf(
			"pipeline.chunk_overlap must be smaller than pipeline.chunk_size, got %d >= %d",
			c.Pipeline.ChunkOverlap, c.Pipeline.ChunkSize,
		)
	}
	if c.Pipeline.AccuracyThreshold > 1 {
		return fmt.Errorf("pipeline.accuracy_threshold must be in (0,1], got %f", c.Pipeline.AccuracyThreshold)
	}
	if c.Pipeline.IsolationThreshold > 1 {
		return fmt.Errorf("pipeline.isolation_threshold must be in (0,1], got %f", c.Pipeline.IsolationThreshold)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
