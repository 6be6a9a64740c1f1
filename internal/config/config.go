// Package config loads webrecall configuration from defaults, an optional
// YAML file, an optional .env file, and environment variables, in that order
// of increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete webrecall configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	Server    ServerConfig    `yaml:"server" json:"server"`
	Database  DatabaseConfig  `yaml:"database" json:"database"`
	Crawler   CrawlerConfig   `yaml:"crawler" json:"crawler"`
	Embedding EmbeddingConfig `yaml:"embedding" json:"embedding"`
	Search    SearchConfig    `yaml:"search" json:"search"`
	Crawl     CrawlConfig     `yaml:"crawl" json:"crawl"`
	Sync      SyncConfig      `yaml:"sync" json:"sync"`
	Auth      AuthConfig      `yaml:"auth" json:"auth"`
	Remote    RemoteConfig    `yaml:"remote" json:"remote"`
	KG        KGConfig        `yaml:"kg" json:"kg"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	// IsServer selects between hosting the API locally and forwarding
	// tool calls to a remote instance (see RemoteConfig).
	IsServer bool   `yaml:"is_server" json:"is_server"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
}

// DatabaseConfig configures the content store.
type DatabaseConfig struct {
	// Path is the on-disk database file.
	Path string `yaml:"path" json:"path"`
	// UseMemoryDB runs the working set in :memory: with differential
	// sync to Path. When false, Path is opened directly.
	UseMemoryDB bool `yaml:"use_memory_db" json:"use_memory_db"`
}

// CrawlerConfig configures the external fetch/render service.
type CrawlerConfig struct {
	// URL is the base URL of the crawl service; requests go to URL + "/crawl".
	URL string `yaml:"url" json:"url"`
	// Timeout applies to single-page fetches.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// BatchTimeout applies to fetches issued by batch operations.
	BatchTimeout time.Duration `yaml:"batch_timeout" json:"batch_timeout"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	// Provider selects the embedder: "ollama" (default) or "static".
	Provider   string `yaml:"provider" json:"provider"`
	URL        string `yaml:"url" json:"url"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	// CacheSize is the LRU entry count for the embedding cache (0 disables).
	CacheSize int           `yaml:"cache_size" json:"cache_size"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
}

// SearchConfig configures the search engine.
type SearchConfig struct {
	// OverfetchFactor multiplies the requested limit for the vector
	// query so URL dedup still fills the page.
	OverfetchFactor int `yaml:"overfetch_factor" json:"overfetch_factor"`
	// MaxLimit caps the limit accepted from callers.
	MaxLimit     int `yaml:"max_limit" json:"max_limit"`
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`
}

// CrawlConfig configures deep crawls and the batch driver.
type CrawlConfig struct {
	DefaultMaxDepth int `yaml:"default_max_depth" json:"default_max_depth"`
	DefaultMaxPages int `yaml:"default_max_pages" json:"default_max_pages"`
	LinksPerPage    int `yaml:"links_per_page" json:"links_per_page"`
	// MaxConcurrent bounds batch parallelism.
	MaxConcurrent int           `yaml:"max_concurrent" json:"max_concurrent"`
	PerURLTimeout time.Duration `yaml:"per_url_timeout" json:"per_url_timeout"`
	// DispatchDelay spaces out batch dispatches for rate shaping
	// (0.6s approximates 60 URLs per minute).
	DispatchDelay time.Duration `yaml:"dispatch_delay" json:"dispatch_delay"`
	ProgressEvery int           `yaml:"progress_every" json:"progress_every"`
}

// SyncConfig configures the RAM-to-disk sync manager.
type SyncConfig struct {
	IdleCheckInterval time.Duration `yaml:"idle_check_interval" json:"idle_check_interval"`
	IdleThreshold     time.Duration `yaml:"idle_threshold" json:"idle_threshold"`
	PeriodicInterval  time.Duration `yaml:"periodic_interval" json:"periodic_interval"`
}

// AuthConfig configures the bearer gate.
type AuthConfig struct {
	APIKey             string `yaml:"api_key" json:"api_key"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute" json:"rate_limit_per_minute"`
	// BlockRemovalToken authorizes blocklist pattern removal.
	BlockRemovalToken string `yaml:"block_removal_token" json:"block_removal_token"`
}

// RemoteConfig configures client-forward mode (IsServer=false).
type RemoteConfig struct {
	APIURL string `yaml:"api_url" json:"api_url"`
	APIKey string `yaml:"api_key" json:"api_key"`
}

// KGConfig configures the downstream knowledge-graph queue.
type KGConfig struct {
	// ServiceURL is probed for health; empty means the service is absent
	// and queue rows are written as skipped.
	ServiceURL string `yaml:"service_url" json:"service_url"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	// FilePath overrides the default log file location.
	FilePath string `yaml:"file_path" json:"file_path"`
}

// NewConfig returns the hardcoded defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Server: ServerConfig{
			IsServer: true,
			Host:     "0.0.0.0",
			Port:     8080,
		},
		Database: DatabaseConfig{
			Path:        defaultDBPath(),
			UseMemoryDB: true,
		},
		Crawler: CrawlerConfig{
			URL:          "http://localhost:11235",
			Timeout:      30 * time.Second,
			BatchTimeout: 60 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Provider:   "ollama",
			URL:        "http://localhost:11434",
			Model:      "all-minilm",
			Dimensions: 384,
			BatchSize:  32,
			CacheSize:  1024,
			Timeout:    30 * time.Second,
		},
		Search: SearchConfig{
			OverfetchFactor: 4,
			MaxLimit:        1000,
			DefaultLimit:    10,
		},
		Crawl: CrawlConfig{
			DefaultMaxDepth: 2,
			DefaultMaxPages: 10,
			LinksPerPage:    5,
			MaxConcurrent:   10,
			PerURLTimeout:   60 * time.Second,
			DispatchDelay:   0,
			ProgressEvery:   50,
		},
		Sync: SyncConfig{
			IdleCheckInterval: 1 * time.Second,
			IdleThreshold:     5 * time.Second,
			PeriodicInterval:  5 * time.Minute,
		},
		Auth: AuthConfig{
			APIKey:             "",
			RateLimitPerMinute: 60,
			BlockRemovalToken:  "",
		},
		Remote: RemoteConfig{},
		KG:     KGConfig{},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// defaultDBPath returns the default database file location.
func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".webrecall", "webrecall.db")
	}
	return filepath.Join(home, ".webrecall", "webrecall.db")
}

// Load builds the effective configuration. Precedence, lowest to highest:
//  1. Hardcoded defaults
//  2. YAML file (explicit path, or webrecall.yaml in the working directory)
//  3. .env file in the working directory (only fills unset env vars)
//  4. Environment variables
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		if _, err := os.Stat("webrecall.yaml"); err == nil {
			path = "webrecall.yaml"
		}
	}
	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	// .env is optional; godotenv never overrides variables already set
	_ = godotenv.Load()

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadYAML merges values from a YAML file over the current config.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies environment variables, the highest-precedence
// configuration source.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("IS_SERVER"); v != "" {
		if b, err := parseBool(v); err == nil {
			c.Server.IsServer = b
		}
	}
	if v := os.Getenv("USE_MEMORY_DB"); v != "" {
		if b, err := parseBool(v); err == nil {
			c.Database.UseMemoryDB = b
		}
	}
	if v := os.Getenv("SERVER_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.Port = n
		}
	}
	if v := os.Getenv("CRAWLER_URL"); v != "" {
		c.Crawler.URL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("API_KEY"); v != "" {
		c.Auth.APIKey = v
	}
	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Auth.RateLimitPerMinute = n
		}
	}
	if v := os.Getenv("BLOCK_REMOVAL_TOKEN"); v != "" {
		c.Auth.BlockRemovalToken = v
	}
	if v := os.Getenv("REMOTE_API_URL"); v != "" {
		c.Remote.APIURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("REMOTE_API_KEY"); v != "" {
		c.Remote.APIKey = v
	}
	if v := os.Getenv("EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("EMBEDDING_URL"); v != "" {
		c.Embedding.URL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv("KG_SERVICE_URL"); v != "" {
		c.KG.ServiceURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

// Validate checks ranges and required relationships.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1,65535], got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding.batch_size must be positive, got %d", c.Embedding.BatchSize)
	}
	if c.Search.OverfetchFactor < 1 {
		return fmt.Errorf("search.overfetch_factor must be at least 1, got %d", c.Search.OverfetchFactor)
	}
	if c.Search.MaxLimit < 1 {
		return fmt.Errorf("search.max_limit must be at least 1, got %d", c.Search.MaxLimit)
	}
	if c.Crawl.MaxConcurrent < 1 {
		return fmt.Errorf("crawl.max_concurrent must be at least 1, got %d", c.Crawl.MaxConcurrent)
	}
	if c.Auth.RateLimitPerMinute < 1 {
		return fmt.Errorf("auth.rate_limit_per_minute must be at least 1, got %d", c.Auth.RateLimitPerMinute)
	}
	if c.Sync.IdleCheckInterval <= 0 || c.Sync.IdleThreshold <= 0 || c.Sync.PeriodicInterval <= 0 {
		return fmt.Errorf("sync intervals must be positive")
	}
	if !c.Server.IsServer && c.Remote.APIURL == "" {
		return fmt.Errorf("remote.api_url is required when server.is_server is false")
	}
	return nil
}

// WriteYAML writes the configuration to a file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// parseBool accepts the tolerant boolean forms used across the config
// surface: true/1/yes/on and false/0/no/off, case-insensitively.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", s)
	}
}
