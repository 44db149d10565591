package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the librarian configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Chat     ChatConfig     `yaml:"chat"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
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

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// LLMConfig holds the model provider settings shared by chat, moderation and embeddings.
type LLMConfig struct {
	Provider          string       `yaml:"provider"`
	APIKey            string       `yaml:"api_key"`
	BaseURL           string       `yaml:"base_url"`
	ChatModel         string       `yaml:"chat_model"`
	ModerationModel   string       `yaml:"moderation_model"`
	EmbeddingModel    string       `yaml:"embedding_model"`
	Dimensions        int          `yaml:"dimensions"`
	RequestTimeoutSec int          `yaml:"request_timeout_sec"`
	EmbedCacheTTLSec  int          `yaml:"embedding_cache_ttl_sec"` // 0 = 30 days
	Budget            BudgetConfig `yaml:"budget"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// CatalogConfig holds storage, index and ingestion settings.
type CatalogConfig struct {
	KeyPrefix         string `yaml:"key_prefix"`
	SeedPath          string `yaml:"seed_path"`
	HNSWM             int    `yaml:"hnsw_m"`
	HNSWEFConstruct   int    `yaml:"hnsw_ef_construction"`
	IngestBatchSize   int    `yaml:"ingest_batch_size"`
	IngestMaxAttempts int    `yaml:"ingest_max_attempts"`
}

// ChatConfig holds pipeline settings.
type ChatConfig struct {
	DefaultK          int    `yaml:"default_k"`
	MaxK              int    `yaml:"max_k"`
	RequestTimeoutSec int    `yaml:"request_timeout_sec"`
	ExactMatchPolicy  string `yaml:"exact_match_policy"` // substring (default) | token
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
// A .env file in the working directory, if present, is loaded before ${VAR} expansion.
func LoadFile(configPath string) (Config, error) {
	_ = godotenv.Load()

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
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8000
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 90
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "redis"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	c.LLM.applyDefaults()
	if c.Catalog.KeyPrefix == "" {
		c.Catalog.KeyPrefix = "librarian:"
	}
	if c.Catalog.SeedPath == "" {
		c.Catalog.SeedPath = "data/books.json"
	}
	if c.Catalog.HNSWM <= 0 {
		c.Catalog.HNSWM = 16
	}
	if c.Catalog.HNSWEFConstruct <= 0 {
		c.Catalog.HNSWEFConstruct = 200
	}
	if c.Catalog.IngestBatchSize <= 0 {
		c.Catalog.IngestBatchSize = 128
	}
	if c.Catalog.IngestMaxAttempts <= 0 {
		c.Catalog.IngestMaxAttempts = 3
	}
	if c.Chat.DefaultK <= 0 {
		c.Chat.DefaultK = 3
	}
	if c.Chat.MaxK <= 0 {
		c.Chat.MaxK = 10
	}
	if c.Chat.RequestTimeoutSec <= 0 {
		c.Chat.RequestTimeoutSec = 60
	}
	if c.Chat.ExactMatchPolicy == "" {
		c.Chat.ExactMatchPolicy = "substring"
	}
}

func (l *LLMConfig) applyDefaults() {
	if l.Provider == "" {
		l.Provider = "openai"
	}
	if l.ChatModel == "" {
		l.ChatModel = "gpt-4o-mini"
	}
	if l.ModerationModel == "" {
		l.ModerationModel = "omni-moderation-latest"
	}
	if l.EmbeddingModel == "" {
		l.EmbeddingModel = "text-embedding-3-small"
	}
	if l.Dimensions <= 0 {
		l.Dimensions = 1536
	}
	if l.RequestTimeoutSec <= 0 {
		l.RequestTimeoutSec = 20
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Database.Driver != "redis" {
		return fmt.Errorf("database.driver must be \"redis\", got %q", c.Database.Driver)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	switch c.LLM.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf("llm.budget.action must be \"warn\" or \"reject\", got %q", c.LLM.Budget.Action)
	}
	if c.LLM.Budget.DailyTokenLimit < 0 || c.LLM.Budget.MonthlyTokenLimit < 0 {
		return fmt.Errorf("llm.budget limits must not be negative")
	}
	if c.Chat.MaxK < c.Chat.DefaultK {
		return fmt.Errorf("chat.max_k (%d) must be >= chat.default_k (%d)", c.Chat.MaxK, c.Chat.DefaultK)
	}
	switch c.Chat.ExactMatchPolicy {
	case "substring", "token":
		// ok
	default:
		return fmt.Errorf("chat.exact_match_policy must be \"substring\" or \"token\", got %q", c.Chat.ExactMatchPolicy)
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
