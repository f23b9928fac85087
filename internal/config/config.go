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

// Database drivers.
const (
	DriverValkey   = "valkey"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Config holds the promptdex configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Auth      AuthConfig      `yaml:"auth"`
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
	Suggest   SuggestConfig   `yaml:"suggest"`
	History   HistoryConfig   `yaml:"history"`
	Backfill  BackfillConfig  `yaml:"backfill"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
	File  string `yaml:"file"`  // default: stderr
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

// DatabaseConfig holds database connection settings.
// Redis and Valkey use Addrs; Postgres uses DSN.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis, postgres (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	DSN              string   `yaml:"dsn"`
	MaxConns         int32    `yaml:"max_conns"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// IndexConfig holds HNSW index and batch settings.
type IndexConfig struct {
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
	MaxBatchSize    int `yaml:"max_batch_size"`
}

// EmbeddingConfig holds embedding settings. Provider selects an entry of Providers.
type EmbeddingConfig struct {
	Provider            string                    `yaml:"provider"`
	Providers           map[string]ProviderConfig `yaml:"providers"`
	Model               string                    `yaml:"model"`
	Dimensions          int                       `yaml:"dimensions"`
	DocumentInstruction string                    `yaml:"document_instruction"`
	QueryInstruction    string                    `yaml:"query_instruction"`
	MaxInputTokens      int                       `yaml:"max_input_tokens"` // 0 = no truncation
	Tokenizer           string                    `yaml:"tokenizer"`        // tiktoken encoding
	Cache               *bool                     `yaml:"cache"`            // default: true on redis/valkey
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit      int64   `yaml:"daily_token_limit"`       // 0 = unlimited
	MonthlyTokenLimit    int64   `yaml:"monthly_token_limit"`     // 0 = unlimited
	CostPerMillionTokens float64 `yaml:"cost_per_million_tokens"` // reported on /health
	Action               string  `yaml:"action"`                  // "reject" | "warn" (default)
	// DocumentShare caps upserts and backfill at this fraction of each limit. 0 = no cap.
	DocumentShare float64 `yaml:"document_share"`
}

// ProviderConfig holds embedding provider settings.
type ProviderConfig struct {
	APIKey  string       `yaml:"api_key"`
	BaseURL string       `yaml:"base_url"`
	Budget  BudgetConfig `yaml:"budget"`
}

// SearchConfig tunes retrieval and fusion.
type SearchConfig struct {
	BranchTimeoutMs  int           `yaml:"branch_timeout_ms"`
	RRFK             int           `yaml:"rrf_k"`
	Weights          WeightsConfig `yaml:"weights"`
	FetchFloor       int           `yaml:"fetch_floor"`
	SimilarThreshold float64       `yaml:"similar_threshold"`
	CandidateCap     int           `yaml:"candidate_cap"`
	SemanticStrategy string        `yaml:"semantic_strategy"` // native | scan
}

// WeightsConfig holds the default per-source RRF weights.
type WeightsConfig struct {
	Lexical  float64 `yaml:"lexical"`
	Semantic float64 `yaml:"semantic"`
}

// SuggestConfig tunes autocomplete.
type SuggestConfig struct {
	TrigramFloor float64 `yaml:"trigram_floor"`
}

// HistoryConfig holds query-history settings.
type HistoryConfig struct {
	Enabled    *bool `yaml:"enabled"` // default: true
	PoolSize   int   `yaml:"pool_size"`
	MaxPerUser int   `yaml:"max_per_user"`
	TTLHours   int   `yaml:"ttl_hours"`
}

// BackfillConfig holds embedding backfill settings.
type BackfillConfig struct {
	Workers   int `yaml:"workers"`
	BatchSize int `yaml:"batch_size"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
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
	if c.Database.Driver == "" {
		c.Database.Driver = DriverValkey
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 32
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 400
	}
	if c.Index.MaxBatchSize <= 0 {
		c.Index.MaxBatchSize = 100
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Search.BranchTimeoutMs <= 0 {
		c.Search.BranchTimeoutMs = 3000
	}
	if c.Search.RRFK <= 0 {
		c.Search.RRFK = 60
	}
	if c.Search.Weights.Lexical == 0 && c.Search.Weights.Semantic == 0 {
		c.Search.Weights = WeightsConfig{Lexical: 1, Semantic: 1}
	}
	if c.Search.FetchFloor <= 0 {
		c.Search.FetchFloor = 50
	}
	if c.Search.SimilarThreshold <= 0 {
		c.Search.SimilarThreshold = 0.70
	}
	if c.Search.CandidateCap <= 0 {
		c.Search.CandidateCap = 1000
	}
	if c.Search.SemanticStrategy == "" {
		c.Search.SemanticStrategy = "native"
	}
	if c.Suggest.TrigramFloor <= 0 {
		c.Suggest.TrigramFloor = 0.1
	}
	if c.History.Enabled == nil {
		enabled := true
		c.History.Enabled = &enabled
	}
	if c.History.PoolSize <= 0 {
		c.History.PoolSize = 16
	}
	if c.History.MaxPerUser <= 0 {
		c.History.MaxPerUser = 100
	}
	if c.History.TTLHours <= 0 {
		c.History.TTLHours = 30 * 24
	}
	if c.Backfill.Workers <= 0 {
		c.Backfill.Workers = 4
	}
	if c.Backfill.BatchSize <= 0 {
		c.Backfill.BatchSize = 32
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case DriverValkey, DriverRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver)
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("database.driver must be valkey, redis or postgres, got %q", c.Database.Driver)
	}
	if c.Embedding.Provider != "" {
		if _, ok := c.Embedding.Providers[c.Embedding.Provider]; !ok {
			return fmt.Errorf("embedding.provider %q has no entry in embedding.providers", c.Embedding.Provider)
		}
	}
	for name, p := range c.Embedding.Providers {
		switch p.Budget.Action {
		case "", "warn", "reject":
			// ok
		default:
			return fmt.Errorf(
				"embedding.providers.%s.budget.action must be \"warn\" or \"reject\", got %q",
				name, p.Budget.Action,
			)
		}
		if p.Budget.DocumentShare < 0 || p.Budget.DocumentShare > 1 {
			return fmt.Errorf(
				"embedding.providers.%s.budget.document_share must be within [0,1], got %v",
				name, p.Budget.DocumentShare,
			)
		}
	}
	switch c.Search.SemanticStrategy {
	case "native", "scan":
	default:
		return fmt.Errorf("search.semantic_strategy must be \"native\" or \"scan\", got %q", c.Search.SemanticStrategy)
	}
	if w := c.Search.Weights; w.Lexical < 0 || w.Semantic < 0 {
		return fmt.Errorf("search.weights must be >= 0")
	}
	if t := c.Search.SimilarThreshold; t > 1 {
		return fmt.Errorf("search.similar_threshold must be in (0, 1], got %v", t)
	}
	return nil
}

// ActiveProvider returns the selected provider name and settings.
// With no explicit selection the only configured provider is used.
func (c *Config) ActiveProvider() (string, ProviderConfig, bool) {
	if c.Embedding.Provider != "" {
		p, ok := c.Embedding.Providers[c.Embedding.Provider]
		return c.Embedding.Provider, p, ok
	}
	if len(c.Embedding.Providers) == 1 {
		for name, p := range c.Embedding.Providers {
			return name, p, true
		}
	}
	return "", ProviderConfig{}, false
}

// HistoryEnabled reports whether searches are recorded.
func (c *Config) HistoryEnabled() bool {
	return c.History.Enabled == nil || *c.History.Enabled
}

// CacheEnabled reports whether document embeddings are cached in the KV store.
func (c *Config) CacheEnabled() bool {
	if c.Database.Driver == DriverPostgres {
		return false
	}
	return c.Embedding.Cache == nil || *c.Embedding.Cache
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
