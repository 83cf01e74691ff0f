package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port        string
	Environment string

	// MongoDB
	MongoURI        string
	MongoDBName     string
	MongoCollection string
	MongoTimeout    time.Duration

	// Model provider
	LLMProvider    string // "openai" or "gemini"
	LLMModel       string
	LLMBaseURL     string
	OpenAIAPIKey   string
	GeminiAPIKey   string
	LLMTemperature float64
	LLMMaxTokens   int
	LLMTimeout     time.Duration
	LLMMaxRetries  int

	// Query pipeline
	MaxQueryResults int64
	QueryTimeout    time.Duration
	FewShotExamples int
	MaxIterations   int
	TranslatorModel string

	// Web search
	EnableWebSearch  bool
	SearchProvider   string // "searxng" or "duckduckgo"
	SearXNGURLs      []string
	SearchCacheTTL   time.Duration
	SearchRatePerSec float64
	SearchMaxResults int

	// Sessions
	RedisURL            string
	SessionTTL          time.Duration
	SessionHistoryLimit int

	// Chat logging
	ChatLogEnabled   bool
	ChatLogCSVPath   string
	ChatLogSQLDriver string // "mysql", "sqlite" or "bigquery"
	ChatLogSQLDSN    string
	ChatLogSQLTable  string
	ChatLogMongo     bool

	// Stats
	StatsRefreshInterval time.Duration

	// Rate limiting for /api/chat
	ChatRateLimit       int
	ChatRateLimitWindow time.Duration
}

// Provider names accepted by LLM_PROVIDER
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Load loads configuration from environment variables with defaults
func Load() *Config {
	provider := normalizeProvider(getEnv("LLM_PROVIDER", ProviderOpenAI))

	return &Config{
		Port:        getEnv("PORT", "3001"),
		Environment: getEnv("ENVIRONMENT", "development"),

		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:     getEnv("MONGO_DB_NAME", "procurement_db"),
		MongoCollection: getEnv("MONGO_COLLECTION", "procurement_orders"),
		MongoTimeout:    time.Duration(getIntEnv("MONGO_TIMEOUT_MS", 5000)) * time.Millisecond,

		LLMProvider:    provider,
		LLMModel:       getEnv("LLM_MODEL", defaultModel(provider)),
		LLMBaseURL:     getEnv("LLM_BASE_URL", ""),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", getEnv("GOOGLE_API_KEY", "")),
		LLMTemperature: getFloatEnv("LLM_TEMPERATURE", 0),
		LLMMaxTokens:   getIntEnv("LLM_MAX_TOKENS", 2000),
		LLMTimeout:     getDurationEnv("LLM_TIMEOUT", 120*time.Second),
		LLMMaxRetries:  getIntEnv("LLM_MAX_RETRIES", 2),

		MaxQueryResults: int64(getIntEnv("MAX_QUERY_RESULTS", 100)),
		QueryTimeout:    time.Duration(getIntEnv("QUERY_TIMEOUT_SECONDS", 30)) * time.Second,
		FewShotExamples: getIntEnv("FEW_SHOT_EXAMPLES", 5),
		MaxIterations:   getIntEnv("AGENT_MAX_ITERATIONS", 8),
		TranslatorModel: getEnv("TRANSLATOR_MODEL", ""),

		EnableWebSearch:  getBoolEnv("ENABLE_WEB_SEARCH", true),
		SearchProvider:   strings.ToLower(getEnv("SEARCH_PROVIDER", "duckduckgo")),
		SearXNGURLs:      getListEnv("SEARXNG_URLS", getEnv("SEARXNG_URL", "")),
		SearchCacheTTL:   getDurationEnv("SEARCH_CACHE_TTL", 10*time.Minute),
		SearchRatePerSec: getFloatEnv("SEARCH_RATE_PER_SECOND", 1),
		SearchMaxResults: getIntEnv("SEARCH_MAX_RESULTS", 5),

		RedisURL:            getEnv("REDIS_URL", ""),
		SessionTTL:          getDurationEnv("SESSION_TTL", 24*time.Hour),
		SessionHistoryLimit: getIntEnv("SESSION_HISTORY_LIMIT", 10),

		ChatLogEnabled:   getBoolEnv("CHAT_LOG_ENABLED", true),
		ChatLogCSVPath:   getEnv("CHAT_LOG_CSV_PATH", "logs/chat_logs.csv"),
		ChatLogSQLDriver: strings.ToLower(getEnv("CHAT_LOG_SQL_DRIVER", "")),
		ChatLogSQLDSN:    getEnv("CHAT_LOG_SQL_DSN", ""),
		ChatLogSQLTable:  getEnv("CHAT_LOG_SQL_TABLE", "chat_logs"),
		ChatLogMongo:     getBoolEnv("CHAT_LOG_MONGO", false),

		StatsRefreshInterval: getDurationEnv("STATS_REFRESH_INTERVAL", 15*time.Minute),

		ChatRateLimit:       getIntEnv("RATE_LIMIT_CHAT", 20),
		ChatRateLimitWindow: getDurationEnv("RATE_LIMIT_CHAT_WINDOW", time.Minute),
	}
}

// APIKey returns the credential for the configured provider.
func (c *Config) APIKey() string {
	if c.LLMProvider == ProviderGemini {
		return c.GeminiAPIKey
	}
	return c.OpenAIAPIKey
}

// Validate reports every configuration problem found, joined into one error.
func (c *Config) Validate() error {
	var errs []error

	switch c.LLMProvider {
	case ProviderOpenAI, ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLMProvider))
	}
	if c.APIKey() == "" {
		switch c.LLMProvider {
		case ProviderGemini:
			errs = append(errs, errors.New("GEMINI_API_KEY (or GOOGLE_API_KEY) is required for the gemini provider"))
		default:
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
	}
	if c.MongoURI == "" {
		errs = append(errs, errors.New("MONGO_URI is required"))
	}
	if c.MaxQueryResults <= 0 {
		errs = append(errs, errors.New("MAX_QUERY_RESULTS must be positive"))
	}
	if c.QueryTimeout <= 0 {
		errs = append(errs, errors.New("QUERY_TIMEOUT_SECONDS must be positive"))
	}
	if c.MaxIterations <= 0 {
		errs = append(errs, errors.New("AGENT_MAX_ITERATIONS must be positive"))
	}
	switch c.SearchProvider {
	case "searxng":
		if c.EnableWebSearch && len(c.SearXNGURLs) == 0 {
			errs = append(errs, errors.New("SEARXNG_URL or SEARXNG_URLS is required for the searxng search provider"))
		}
	case "duckduckgo":
	default:
		errs = append(errs, fmt.Errorf("unsupported SEARCH_PROVIDER %q", c.SearchProvider))
	}
	switch c.ChatLogSQLDriver {
	case "", "mysql", "sqlite", "bigquery":
	default:
		errs = append(errs, fmt.Errorf("unsupported CHAT_LOG_SQL_DRIVER %q", c.ChatLogSQLDriver))
	}
	if c.ChatLogSQLDriver != "" && c.ChatLogSQLDSN == "" {
		errs = append(errs, errors.New("CHAT_LOG_SQL_DSN is required when CHAT_LOG_SQL_DRIVER is set"))
	}

	return errors.Join(errs...)
}

// IsProduction reports whether ENVIRONMENT is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func normalizeProvider(provider string) string {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gemini", "google":
		return ProviderGemini
	case "openai", "gpt":
		return ProviderOpenAI
	default:
		return strings.ToLower(strings.TrimSpace(provider))
	}
}

func defaultModel(provider string) string {
	if provider == ProviderGemini {
		return "gemini-2.5-flash"
	}
	return "gpt-4o-mini"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv accepts Go durations ("90s") or a bare number of seconds.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

func getListEnv(key, fallback string) []string {
	raw := getEnv(key, fallback)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
