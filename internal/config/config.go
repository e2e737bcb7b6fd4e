package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Warehouse backends accepted by Backend.
const (
	BackendBigQuery  = "bigquery"
	BackendPostgres  = "postgres"
	BackendSQLServer = "sqlserver"
	BackendSQLite    = "sqlite"
)

// LLM providers accepted by LLMProvider.
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

type Config struct {
	// Server
	Host        string `json:"host" yaml:"host"`
	Port        int    `json:"port" yaml:"port"`
	Environment string `json:"environment" yaml:"environment"`
	APIPrefix   string `json:"api_prefix" yaml:"api_prefix"`
	LogLevel    string `json:"log_level" yaml:"log_level"`

	// CORS
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins"`

	// Auth
	APIKeyHeader string   `json:"api_key_header" yaml:"api_key_header"`
	APIKeys      []string `json:"api_keys" yaml:"api_keys"`
	EnableAuth   bool     `json:"enable_auth" yaml:"enable_auth"`

	// Rate Limiting
	RateLimitPerMinute int `json:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`

	// Warehouse
	Backend           string `json:"backend" yaml:"backend"`
	DatabaseURL       string `json:"database_url" yaml:"database_url"` // postgres / sqlserver / sqlite DSN
	MaxParallel       int    `json:"max_parallel_queries" yaml:"max_parallel_queries"`
	MaxRows           int    `json:"max_rows" yaml:"max_rows"`
	QueryTimeoutMs    int    `json:"query_timeout_ms" yaml:"query_timeout_ms"`
	SchemaCacheTTLSec int    `json:"schema_cache_ttl_sec" yaml:"schema_cache_ttl_sec"`

	// BigQuery
	GCPProjectID                 string `json:"gcp_project_id" yaml:"gcp_project_id"`
	GoogleApplicationCredentials string `json:"google_application_credentials" yaml:"google_application_credentials"`
	BigQueryLocation             string `json:"bigquery_location" yaml:"bigquery_location"`
	BigQueryDataset              string `json:"bigquery_dataset" yaml:"bigquery_dataset"`

	// Security
	MaxQueryBytesProcessed  int64    `json:"max_query_bytes_processed" yaml:"max_query_bytes_processed"`
	EnableQueryCostTracking bool     `json:"enable_query_cost_tracking" yaml:"enable_query_cost_tracking"`
	EnableDataMasking       bool     `json:"enable_data_masking" yaml:"enable_data_masking"`
	EnablePIIDetection      bool     `json:"enable_pii_detection" yaml:"enable_pii_detection"`
	SensitiveColumns        []string `json:"sensitive_columns" yaml:"sensitive_columns"`
	PIIKeywords             []string `json:"pii_keywords" yaml:"pii_keywords"`
	EnableAuditLogging      bool     `json:"enable_audit_logging" yaml:"enable_audit_logging"`

	// AI / LLM
	LLMProvider      string            `json:"llm_provider" yaml:"llm_provider"`
	AnthropicAPIKey  string            `json:"anthropic_api_key" yaml:"anthropic_api_key"`
	AnthropicBaseURL string            `json:"anthropic_base_url" yaml:"anthropic_base_url"` // override for custom proxy
	GeminiAPIKey     string            `json:"gemini_api_key" yaml:"gemini_api_key"`
	AgentTimeout     int               `json:"agent_timeout" yaml:"agent_timeout"`
	ModelList        map[string]string `json:"model_list" yaml:"model_list"` // provider -> model ID

	// Conversations
	ConversationTTLMin int `json:"conversation_ttl_min" yaml:"conversation_ttl_min"`
}

// Load builds the config from defaults, then the file named by
// CORTEXBI_CONFIG, then the environment (a .env file in the working
// directory is loaded first when present).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Host:                    DefaultHost,
		Port:                    DefaultPort,
		Environment:             DefaultEnvironment,
		APIPrefix:               DefaultAPIPrefix,
		LogLevel:                DefaultLogLevel,
		CORSOrigins:             DefaultCORSOrigins,
		APIKeyHeader:            "X-API-Key",
		EnableAuth:              true,
		RateLimitPerMinute:      DefaultRateLimitPerMinute,
		Backend:                 BackendBigQuery,
		MaxParallel:             DefaultMaxParallel,
		MaxRows:                 DefaultMaxRows,
		QueryTimeoutMs:          int(DefaultQueryTimeout / time.Millisecond),
		SchemaCacheTTLSec:       int(DefaultSchemaCacheTTL / time.Second),
		BigQueryLocation:        DefaultBigQueryLocation,
		MaxQueryBytesProcessed:  DefaultMaxQueryBytesProcessed,
		EnableQueryCostTracking: true,
		EnableDataMasking:       true,
		EnablePIIDetection:      true,
		SensitiveColumns:        DefaultSensitiveColumns,
		PIIKeywords:             DefaultPIIKeywords,
		EnableAuditLogging:      true,
		LLMProvider:             ProviderAnthropic,
		AgentTimeout:            DefaultAgentTimeout,
		ModelList:               make(map[string]string),
		ConversationTTLMin:      DefaultConversationTTLMin,
	}

	if path := getEnv("CORTEXBI_CONFIG", ""); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile reads JSON, or YAML for .yaml/.yml files, over cfg.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

// Validate rejects unknown backends and providers.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendBigQuery, BackendPostgres, BackendSQLServer, BackendSQLite:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	switch c.LLMProvider {
	case ProviderAnthropic, ProviderGemini:
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLMProvider)
	}
	if c.Backend != BackendBigQuery && c.DatabaseURL == "" {
		return fmt.Errorf("backend %s requires database_url", c.Backend)
	}
	return nil
}

// Model returns the configured model for the active provider, or "" to use
// the provider default.
func (c *Config) Model() string {
	return c.ModelList[c.LLMProvider]
}

// ConversationTTL is the idle lifetime of a conversation.
func (c *Config) ConversationTTL() time.Duration {
	return time.Duration(c.ConversationTTLMin) * time.Minute
}

func applyEnvOverrides(cfg *Config) {
	if v := getEnv("CORTEXBI_HOST", ""); v != "" {
		cfg.Host = v
	}
	if v := getEnv("CORTEXBI_PORT", ""); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := getEnv("CORTEXBI_ENV", ""); v != "" {
		cfg.Environment = v
	}
	if v := getEnv("CORTEXBI_LOG_LEVEL", ""); v != "" {
		cfg.LogLevel = v
	}
	if v := getEnv("CORTEXBI_API_KEYS", ""); v != "" {
		cfg.APIKeys = strings.Split(v, ",")
	}
	if v := getEnv("CORTEXBI_BACKEND", ""); v != "" {
		cfg.Backend = strings.ToLower(v)
	}
	if v := getEnv("DATABASE_URL", ""); v != "" {
		cfg.DatabaseURL = v
	}
	if v := getEnv("MAX_ROWS", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxRows = n
		}
	}
	if v := getEnv("GCP_PROJECT_ID", ""); v != "" {
		cfg.GCPProjectID = v
	}
	if v := getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""); v != "" {
		cfg.GoogleApplicationCredentials = v
	}
	if v := getEnv("BIGQUERY_DATASET", ""); v != "" {
		cfg.BigQueryDataset = v
	}
	if v := getEnv("LLM_PROVIDER", ""); v != "" {
		cfg.LLMProvider = strings.ToLower(v)
	}
	if v := getEnv("ANTHROPIC_API_KEY", ""); v != "" {
		cfg.AnthropicAPIKey = v
	}
	if v := getEnv("ANTHROPIC_BASE_URL", ""); v != "" {
		cfg.AnthropicBaseURL = v
	}
	if v := getEnv("GEMINI_API_KEY", ""); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		if r, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitPerMinute = r
		}
	}
	if v := getEnv("ENABLE_AUTH", ""); v != "" {
		cfg.EnableAuth = v == "true" || v == "1"
	}
	if v := getEnv("MAX_QUERY_BYTES_PROCESSED", ""); v != "" {
		if b, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxQueryBytesProcessed = b
		}
	}
	if v := getEnv("CONVERSATION_TTL_MIN", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ConversationTTLMin = n
		}
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
