package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/utafrali/lagosbazaar/pkg/config"
)

const (
	// DefaultHeroPrompt describes the landing page banner image.
	DefaultHeroPrompt = "Front view of a modern Nigerian marketplace called 'LagosBazaar', vibrant and colorful storefront, " +
		"African style decorations, people shopping and walking around, stalls with hair products, beauty items, " +
		"electronics, and clothing, sunny day, lively atmosphere, urban Lagos background, high detail, realistic, " +
		"wide angle, warm and welcoming vibe, cinematic lighting, realistic textures, 8k resolution"

	// DefaultHeroFallbackURL is shown whenever no generated hero is available.
	DefaultHeroFallbackURL = "https://images.unsplash.com/photo-1542291026-7eec264c27ff?ixlib=rb-1.2.1&ixid=eyJhcHBfaWQiOjEyMDd9&auto=format&fit=crop&w=1950&q=80"
)

// Catalog sources.
const (
	CatalogEmbedded = "embedded"
	CatalogPostgres = "postgres"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"STOREFRONT_HTTP_PORT" envDefault:"8080"`
	// Handlers must finish before the write deadline or the client sees a
	// dropped connection: HERO_WAIT_TIMEOUT < HTTP_REQUEST_TIMEOUT < HTTP_WRITE_TIMEOUT.
	HTTPWriteTimeout   time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	HTTPRequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"12s"`

	// Gemini. An empty key disables AI features.
	GeminiAPIKey     string        `env:"GEMINI_API_KEY"`
	GeminiBaseURL    string        `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com"`
	GeminiTextModel  string        `env:"GEMINI_TEXT_MODEL" envDefault:"gemini-2.5-flash"`
	GeminiImageModel string        `env:"GEMINI_IMAGE_MODEL" envDefault:"gemini-2.5-flash-image"`
	AIRequestTimeout time.Duration `env:"AI_REQUEST_TIMEOUT" envDefault:"60s"`

	// Hero image
	HeroPrompt      string        `env:"HERO_PROMPT"`
	HeroFallbackURL string        `env:"HERO_FALLBACK_URL"`
	HeroWaitTimeout time.Duration `env:"HERO_WAIT_TIMEOUT" envDefault:"10s"`

	// Catalog
	CatalogSource string `env:"CATALOG_SOURCE" envDefault:"embedded"`
	CatalogSeed   bool   `env:"CATALOG_SEED" envDefault:"false"`

	// PostgreSQL, used when CATALOG_SOURCE=postgres
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"storefront"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"storefront"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"lagosbazaar"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Session cache
	CacheBackend string        `env:"CACHE_BACKEND" envDefault:"memory"`
	RedisAddr    string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass    string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB      int           `env:"REDIS_DB" envDefault:"0"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SessionMax   int           `env:"SESSION_MAX" envDefault:"10000"`

	// Kafka. No brokers means events are dropped.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// Rate limiting of the generative endpoints, per client IP
	AIRateLimitRPS   float64 `env:"AI_RATE_LIMIT_RPS" envDefault:"1"`
	AIRateLimitBurst int     `env:"AI_RATE_LIMIT_BURST" envDefault:"5"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	return finish(cfg)
}

// LoadFromMap reads configuration from vars instead of the environment.
func LoadFromMap(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadFromMap(cfg, vars); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	if cfg.HeroPrompt == "" {
		cfg.HeroPrompt = DefaultHeroPrompt
	}
	if cfg.HeroFallbackURL == "" {
		cfg.HeroFallbackURL = DefaultHeroFallbackURL
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if _, err := url.ParseRequestURI(c.GeminiBaseURL); err != nil {
		return fmt.Errorf("GEMINI_BASE_URL is not a valid URL: %w", err)
	}
	if c.AIRequestTimeout <= 0 {
		return fmt.Errorf("AI_REQUEST_TIMEOUT must be positive, got %s", c.AIRequestTimeout)
	}
	if c.HeroWaitTimeout <= 0 || c.HeroWaitTimeout >= c.HTTPRequestTimeout || c.HTTPRequestTimeout >= c.HTTPWriteTimeout {
		return fmt.Errorf("timeouts must satisfy 0 < HERO_WAIT_TIMEOUT (%s) < HTTP_REQUEST_TIMEOUT (%s) < HTTP_WRITE_TIMEOUT (%s)",
			c.HeroWaitTimeout, c.HTTPRequestTimeout, c.HTTPWriteTimeout)
	}
	switch c.CatalogSource {
	case CatalogEmbedded, CatalogPostgres:
	default:
		return fmt.Errorf("CATALOG_SOURCE must be %q or %q, got %q", CatalogEmbedded, CatalogPostgres, c.CatalogSource)
	}
	switch c.CacheBackend {
	case CacheMemory, CacheRedis:
	default:
		return fmt.Errorf("CACHE_BACKEND must be %q or %q, got %q", CacheMemory, CacheRedis, c.CacheBackend)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.SessionMax < 0 {
		return fmt.Errorf("SESSION_MAX must not be negative, got %d", c.SessionMax)
	}
	if c.AIRateLimitRPS <= 0 || c.AIRateLimitBurst < 1 {
		return fmt.Errorf("AI rate limit must allow at least one request, got rps=%g burst=%d", c.AIRateLimitRPS, c.AIRateLimitBurst)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// AIEnabled reports whether a Gemini key is configured.
func (c *Config) AIEnabled() bool {
	return c.GeminiAPIKey != ""
}

// EventsEnabled reports whether Kafka brokers are configured.
func (c *Config) EventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
