package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrMissingDatabaseURL = errors.New("config: DATABASE_URL is required for STORE_DRIVER=postgres")
	ErrMissingMongoURI    = errors.New("config: MONGODB_URI is required for STORE_DRIVER=mongo")
	ErrMissingLLMKey      = errors.New("config: API key for LLM_PROVIDER is not set")
)

type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	Env      string `env:"ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Messenger Platform. Empty secrets make the webhook fail closed.
	AppSecret       string  `env:"FACEBOOK_APP_SECRET"`
	VerifyToken     string  `env:"FACEBOOK_VERIFY_TOKEN"`
	PageAccessToken string  `env:"FACEBOOK_PAGE_ACCESS_TOKEN"`
	GraphAPIBase    string  `env:"GRAPH_API_BASE" envDefault:"https://graph.facebook.com"`
	GraphAPIVersion string  `env:"GRAPH_API_VERSION" envDefault:"v18.0"`
	GraphSendRPS    float64 `env:"GRAPH_SEND_RPS" envDefault:"0"`

	LLMProvider  string        `env:"LLM_PROVIDER" envDefault:"gemini"`
	OpenAIKey    string        `env:"OPENAI_API_KEY"`
	OpenAIModel  string        `env:"OPENAI_MODEL"`
	GeminiKey    string        `env:"GEMINI_API_KEY"`
	GeminiModel  string        `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	AITimeout    time.Duration `env:"AI_TIMEOUT" envDefault:"15s"`
	SendTimeout  time.Duration `env:"SEND_TIMEOUT" envDefault:"10s"`
	EventTimeout time.Duration `env:"EVENT_TIMEOUT" envDefault:"45s"`

	StoreDriver   string `env:"STORE_DRIVER" envDefault:"memory"`
	DatabaseURL   string `env:"DATABASE_URL"`
	MongoURI      string `env:"MONGODB_URI"`
	MongoDatabase string `env:"MONGODB_DATABASE" envDefault:"receptionist"`

	RateLimitBackend string        `env:"RATE_LIMIT_BACKEND" envDefault:"memory"`
	RedisAddr        string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword    string        `env:"REDIS_PASSWORD"`
	RedisDB          int           `env:"REDIS_DB" envDefault:"0"`
	SenderRateLimit  int           `env:"SENDER_RATE_LIMIT" envDefault:"20"`
	SenderRateWindow time.Duration `env:"SENDER_RATE_WINDOW" envDefault:"10m"`
	ClientRateLimit  int           `env:"CLIENT_RATE_LIMIT" envDefault:"10"`
	ClientRateWindow time.Duration `env:"CLIENT_RATE_WINDOW" envDefault:"1m"`

	WorkerCount         int   `env:"WORKER_COUNT" envDefault:"8"`
	QueueSize           int   `env:"QUEUE_SIZE" envDefault:"256"`
	WebhookMaxBodyBytes int64 `env:"WEBHOOK_MAX_BODY_BYTES" envDefault:"1048576"`

	// Used by the memory settings reader; the database drivers read the
	// settings table/collection instead.
	BusinessName     string `env:"BUSINESS_NAME"`
	BusinessPhone    string `env:"BUSINESS_PHONE"`
	BusinessAddress  string `env:"BUSINESS_ADDRESS"`
	BusinessHours    string `env:"BUSINESS_HOURS"`
	BusinessServices string `env:"BUSINESS_SERVICES"`
	BusinessPrices   string `env:"BUSINESS_PRICES"`
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks settings that only matter for the chosen drivers.
// Missing webhook secrets are not an error here: the handler answers 503
// so the misconfiguration is visible on every delivery.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return ErrMissingDatabaseURL
		}
	case "mongo":
		if c.MongoURI == "" {
			return ErrMissingMongoURI
		}
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.RateLimitBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unknown RATE_LIMIT_BACKEND %q", c.RateLimitBackend)
	}

	switch c.LLMProvider {
	case "openai":
		if c.OpenAIKey == "" {
			return fmt.Errorf("%w (OPENAI_API_KEY)", ErrMissingLLMKey)
		}
	case "gemini":
		if c.GeminiKey == "" {
			return fmt.Errorf("%w (GEMINI_API_KEY)", ErrMissingLLMKey)
		}
	default:
		return fmt.Errorf("config: unknown LLM_PROVIDER %q", c.LLMProvider)
	}

	if c.SenderRateLimit <= 0 || c.SenderRateWindow <= 0 {
		return errors.New("config: SENDER_RATE_LIMIT and SENDER_RATE_WINDOW must be positive")
	}
	if c.ClientRateLimit <= 0 || c.ClientRateWindow <= 0 {
		return errors.New("config: CLIENT_RATE_LIMIT and CLIENT_RATE_WINDOW must be positive")
	}
	if c.WorkerCount <= 0 || c.QueueSize <= 0 {
		return errors.New("config: WORKER_COUNT and QUEUE_SIZE must be positive")
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}
