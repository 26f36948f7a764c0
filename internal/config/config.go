// Package config loads and validates the JACC configuration.
//
// Configuration is resolved in three layers, lowest priority first:
//
//  1. Built-in defaults (DefaultConfig)
//  2. A YAML file (jacc.yaml in the working directory, or the path
//     given explicitly to Load)
//  3. Environment variables (JACC_* overrides)
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file looked up in the working directory.
const DefaultFileName = "jacc.yaml"

// Config is the complete JACC configuration.
type Config struct {
	Paths     PathsConfig     `yaml:"paths" json:"paths"`
	Cache     CacheConfig     `yaml:"cache" json:"cache"`
	Search    SearchConfig    `yaml:"search" json:"search"`
	Tasks     TasksConfig     `yaml:"tasks" json:"tasks"`
	Provider  ProviderConfig  `yaml:"provider" json:"provider"`
	Vector    VectorConfig    `yaml:"vector" json:"vector"`
	Ingest    IngestConfig    `yaml:"ingest" json:"ingest"`
	LogLevel  string          `yaml:"log_level" json:"log_level"`
	LogFormat string          `yaml:"log_format" json:"log_format"`
}

// PathsConfig configures on-disk locations for the index and logs.
type PathsConfig struct {
	DataDir string `yaml:"data_dir" json:"data_dir"`
	LogFile string `yaml:"log_file" json:"log_file"`
}

// CacheConfig bounds the response cache.
type CacheConfig struct {
	MaxEntries int           `yaml:"max_entries" json:"max_entries"`
	MaxBytes   int64         `yaml:"max_bytes" json:"max_bytes"`
	TTL        time.Duration `yaml:"ttl" json:"ttl"`
}

// SearchConfig configures keyword pass scoring and cut-offs.
//
// The pass scores are fixed relative to each other (exact beats expanded
// beats partial); they are configurable for tuning but validated to keep
// that ordering.
type SearchConfig struct {
	ExactScore        float64 `yaml:"exact_score" json:"exact_score"`
	ExpandedScore     float64 `yaml:"expanded_score" json:"expanded_score"`
	PartialScore      float64 `yaml:"partial_score" json:"partial_score"`
	ExactThreshold    int     `yaml:"exact_threshold" json:"exact_threshold"`
	ExpandedThreshold int     `yaml:"expanded_threshold" json:"expanded_threshold"`
	MaxResults        int     `yaml:"max_results" json:"max_results"`
	EnrichTopN        int     `yaml:"enrich_top_n" json:"enrich_top_n"`
}

// TasksConfig sets per-agent execution deadlines.
type TasksConfig struct {
	VectorTimeout     time.Duration `yaml:"vector_timeout" json:"vector_timeout"`
	KeywordTimeout    time.Duration `yaml:"keyword_timeout" json:"keyword_timeout"`
	AIEnhancedTimeout time.Duration `yaml:"ai_enhanced_timeout" json:"ai_enhanced_timeout"`
	ExpansionTimeout  time.Duration `yaml:"expansion_timeout" json:"expansion_timeout"`
}

// ProviderConfig configures the LLM and embedding provider.
type ProviderConfig struct {
	BaseURL        string        `yaml:"base_url" json:"base_url"`
	APIKey         string        `yaml:"api_key" json:"api_key"`
	ChatModel      string        `yaml:"chat_model" json:"chat_model"`
	EmbeddingModel string        `yaml:"embedding_model" json:"embedding_model"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	MaxRetries     int           `yaml:"max_retries" json:"max_retries"`
	EmbedCacheSize int           `yaml:"embed_cache_size" json:"embed_cache_size"`
}

// VectorConfig configures the HNSW index.
type VectorConfig struct {
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	Metric     string `yaml:"metric" json:"metric"`
	M          int    `yaml:"m" json:"m"`
	EfSearch   int    `yaml:"ef_search" json:"ef_search"`
}

// IngestConfig configures document loading.
type IngestConfig struct {
	ChunkSize     int    `yaml:"chunk_size" json:"chunk_size"`
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir: defaultDataDir(),
		},
		Cache: CacheConfig{
			MaxEntries: 10,
			MaxBytes:   1 << 20,
			TTL:        5 * time.Minute,
		},
		Search: SearchConfig{
			ExactScore:        0.95,
			ExpandedScore:     0.80,
			PartialScore:      0.60,
			ExactThreshold:    5,
			ExpandedThreshold: 3,
			MaxResults:        10,
			EnrichTopN:        5,
		},
		Tasks: TasksConfig{
			VectorTimeout:     10 * time.Second,
			KeywordTimeout:    8 * time.Second,
			AIEnhancedTimeout: 20 * time.Second,
			ExpansionTimeout:  15 * time.Second,
		},
		Provider: ProviderConfig{
			BaseURL:        "https://api.openai.com/v1",
			ChatModel:      "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			RequestTimeout: 30 * time.Second,
			MaxRetries:     3,
			EmbedCacheSize: 1024,
		},
		Vector: VectorConfig{
			Dimensions: 1536,
			Metric:     "cosine",
			M:          16,
			EfSearch:   64,
		},
		Ingest: IngestConfig{
			ChunkSize:     1000,
			WatchDebounce: "500ms",
		},
		LogLevel:  "info",
		LogFormat: "json",
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".jacc"
	}
	return filepath.Join(home, ".jacc")
}

// Load builds the effective configuration. path may be empty, in which
// case jacc.yaml in the working directory is used if it exists. A missing
// file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if path == "" {
		path = DefaultFileName
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// Defaults only.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("JACC_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("JACC_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("JACC_LOG_FILE"); v != "" {
		c.Paths.LogFile = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv("JACC_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv("JACC_BASE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv("JACC_CHAT_MODEL"); v != "" {
		c.Provider.ChatModel = v
	}
	if v := os.Getenv("JACC_EMBEDDING_MODEL"); v != "" {
		c.Provider.EmbeddingModel = v
	}
	if v := os.Getenv("JACC_CACHE_MAX_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Cache.MaxEntries = n
		}
	}
	if v := os.Getenv("JACC_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Cache.TTL = d
		}
	}
	if v := os.Getenv("JACC_VECTOR_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Vector.Dimensions = n
		}
	}
}

// Validate checks invariants the rest of the system relies on.
func (c *Config) Validate() error {
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be positive, got %d", c.Cache.MaxEntries)
	}
	if c.Cache.MaxBytes <= 0 {
		return fmt.Errorf("cache.max_bytes must be positive, got %d", c.Cache.MaxBytes)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
	}

	for name, s := range map[string]float64{
		"exact_score":    c.Search.ExactScore,
		"expanded_score": c.Search.ExpandedScore,
		"partial_score":  c.Search.PartialScore,
	} {
		if s < 0 || s > 1 || math.IsNaN(s) {
			return fmt.Errorf("search.%s must be between 0 and 1, got %f", name, s)
		}
	}
	if !(c.Search.ExactScore > c.Search.ExpandedScore && c.Search.ExpandedScore > c.Search.PartialScore) {
		return fmt.Errorf("search scores must satisfy exact > expanded > partial, got %.2f/%.2f/%.2f",
			c.Search.ExactScore, c.Search.ExpandedScore, c.Search.PartialScore)
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be positive, got %d", c.Search.MaxResults)
	}
	if c.Search.EnrichTopN <= 0 {
		return fmt.Errorf("search.enrich_top_n must be positive, got %d", c.Search.EnrichTopN)
	}

	for name, d := range map[string]time.Duration{
		"vector_timeout":      c.Tasks.VectorTimeout,
		"keyword_timeout":     c.Tasks.KeywordTimeout,
		"ai_enhanced_timeout": c.Tasks.AIEnhancedTimeout,
		"expansion_timeout":   c.Tasks.ExpansionTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("tasks.%s must be positive, got %s", name, d)
		}
	}

	if c.Vector.Dimensions <= 0 {
		return fmt.Errorf("vector.dimensions must be positive, got %d", c.Vector.Dimensions)
	}
	validMetrics := map[string]bool{"cosine": true, "l2": true}
	if !validMetrics[strings.ToLower(c.Vector.Metric)] {
		return fmt.Errorf("vector.metric must be 'cosine' or 'l2', got %s", c.Vector.Metric)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.LogLevel)
	}

	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size must be positive, got %d", c.Ingest.ChunkSize)
	}
	if _, err := time.ParseDuration(c.Ingest.WatchDebounce); err != nil {
		return fmt.Errorf("ingest.watch_debounce is not a duration: %w", err)
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
