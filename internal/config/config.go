// Package config loads crawler configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the crawler and its collaborators.
type Config struct {
	// Crawl control
	MaxDepth      int
	CrawlDelay    time.Duration
	MaxRetries    int
	Timeout       time.Duration
	BatchSize     int
	MaxFrontier   int
	DomainWorkers int
	ParsersToUse  []string

	// Fetcher
	UserAgent       string
	BrowserFallback bool
	BrowserTimeout  time.Duration

	// AI parser
	AIAPIKey  string
	AIModel   string
	AIBaseURL string
	AITimeout time.Duration

	// Fast store (Redis)
	RedisHost     string
	RedisPort     int
	RedisUsername string
	RedisPassword string
	RedisExpire   time.Duration

	// Durable store (MongoDB)
	MongoURI string
	MongoDB  string

	// Side outputs
	OutputDir  string
	SaveInJSON bool
	SaveInCSV  bool

	// Server
	ListenAddr string
	LogDir     string
}

// Default returns a sensible default configuration.
func Default() *Config {
	return &Config{
		MaxDepth:      3,
		CrawlDelay:    500 * time.Millisecond,
		MaxRetries:    2,
		Timeout:       10 * time.Second,
		BatchSize:     10,
		MaxFrontier:   500,
		DomainWorkers: 3,
		ParsersToUse:  []string{"simple", "config", "ai"},
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
			"(KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		BrowserFallback: false,
		BrowserTimeout:  30 * time.Second,
		AIModel:         "gpt-4-turbo-preview",
		AITimeout:       30 * time.Second,
		RedisHost:       "localhost",
		RedisPort:       6379,
		RedisUsername:   "default",
		RedisExpire:     86400 * time.Second,
		MongoURI:        "mongodb://localhost:27017",
		MongoDB:         "webcrawler",
		OutputDir:       "output",
		ListenAddr:      ":8000",
	}
}

// FromEnv returns the default configuration overridden by environment
// variables where set.
func FromEnv() *Config {
	cfg := Default()

	cfg.MaxDepth = envInt("MAX_CRAWL_DEPTH", cfg.MaxDepth)
	cfg.CrawlDelay = envSeconds("CRAWL_DELAY", cfg.CrawlDelay)
	cfg.MaxRetries = envInt("MAX_RETRIES", cfg.MaxRetries)
	cfg.Timeout = envSeconds("TIMEOUT", cfg.Timeout)
	cfg.DomainWorkers = envInt("DOMAIN_WORKERS", cfg.DomainWorkers)

	if v := os.Getenv("PARSERS_TO_USE"); v != "" {
		var parsers []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
				parsers = append(parsers, p)
			}
		}
		if len(parsers) > 0 {
			cfg.ParsersToUse = parsers
		}
	}

	cfg.UserAgent = envStr("USER_AGENT", cfg.UserAgent)
	cfg.BrowserFallback = envBool("BROWSER_FALLBACK", cfg.BrowserFallback)

	cfg.AIAPIKey = envStr("OPENAI_API_KEY", cfg.AIAPIKey)
	cfg.AIModel = envStr("AI_MODEL", cfg.AIModel)
	cfg.AIBaseURL = envStr("AI_BASE_URL", cfg.AIBaseURL)

	cfg.RedisHost = envStr("REDIS_HOST", cfg.RedisHost)
	cfg.RedisPort = envInt("REDIS_PORT", cfg.RedisPort)
	cfg.RedisUsername = envStr("REDIS_USERNAME", cfg.RedisUsername)
	cfg.RedisPassword = envStr("REDIS_PASSWORD", cfg.RedisPassword)

	cfg.MongoURI = envStr("MONGO_URI", cfg.MongoURI)
	cfg.MongoDB = envStr("MONGO_DB", cfg.MongoDB)

	cfg.OutputDir = envStr("OUTPUT_DIR", cfg.OutputDir)
	cfg.SaveInJSON = envBool("SAVE_IN_JSON", cfg.SaveInJSON)
	cfg.SaveInCSV = envBool("SAVE_IN_CSV", cfg.SaveInCSV)

	cfg.ListenAddr = envStr("LISTEN_ADDR", cfg.ListenAddr)
	cfg.LogDir = envStr("LOG_DIR", cfg.LogDir)

	return cfg
}

// RedisAddr returns the host:port address of the fast store.
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + strconv.Itoa(c.RedisPort)
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// envSeconds reads a duration expressed in (possibly fractional) seconds,
// e.g. CRAWL_DELAY=0.5.
func envSeconds(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			return time.Duration(f * float64(time.Second))
		}
	}
	return def
}
