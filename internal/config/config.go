package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"distill/internal/summarizer"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string `env:"OPENAI_BASE_URL"`
	AnthropicAPIKey  string `env:"ANTHROPIC_API_KEY"`
	AnthropicBaseURL string `env:"ANTHROPIC_BASE_URL" envDefault:"https://api.anthropic.com"`

	Model          string        `env:"DISTILL_MODEL"            envDefault:"gpt-5-mini"`
	MaxTokens      int           `env:"DISTILL_MAX_TOKENS"       envDefault:"3000"`
	TargetLength   int           `env:"DISTILL_TARGET_LENGTH"    envDefault:"400"`
	TimeoutSeconds int           `env:"DISTILL_TIMEOUT_SECONDS"  envDefault:"300"`
	MaxRetries     int           `env:"DISTILL_MAX_RETRIES"      envDefault:"3"`
	Parallelism    int           `env:"DISTILL_PARALLELISM"      envDefault:"4"`
	MaxDepth       int           `env:"DISTILL_MAX_DEPTH"        envDefault:"3"`
	RetryBaseDelay time.Duration `env:"DISTILL_RETRY_BASE_DELAY" envDefault:"1s"`
	RetryMaxDelay  time.Duration `env:"DISTILL_RETRY_MAX_DELAY"  envDefault:"30s"`

	RateLimitRPS   float64 `env:"DISTILL_RATE_LIMIT_RPS"   envDefault:"2"`
	RateLimitBurst int     `env:"DISTILL_RATE_LIMIT_BURST" envDefault:"4"`

	CacheSize int           `env:"DISTILL_CACHE_SIZE" envDefault:"1024"`
	CacheTTL  time.Duration `env:"DISTILL_CACHE_TTL"  envDefault:"24h"`

	VideoLanguages []string `env:"DISTILL_VIDEO_LANGUAGES" envDefault:"en" envSeparator:","`
	StripCitations bool     `env:"DISTILL_STRIP_CITATIONS"`

	DBPath    string        `env:"DB_PATH"           envDefault:"distill.sqlite"`
	Retention time.Duration `env:"DISTILL_RETENTION" envDefault:"720h"`
	WatchSpec string        `env:"DISTILL_WATCH_SPEC" envDefault:"0 * * * *"`
	PruneSpec string        `env:"DISTILL_PRUNE_SPEC" envDefault:"@daily"`

	TelegramToken  string `env:"TELEGRAM_TOKEN"`
	TelegramChatID int64  `env:"TELEGRAM_CHAT_ID"`

	MetricsAddr string `env:"METRICS_ADDR"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"text"`
	LogLevel    string `env:"LOG_LEVEL"  envDefault:"info"`
}

// Load reads .env (when present) and the process environment once.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	return cfg, cfg.Validate()
}

// LoadFrom parses the given key-value source instead of the process environment.
func LoadFrom(environment map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environment}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error

	switch summarizer.ProviderForModel(c.Model) {
	case summarizer.ProviderAnthropic:
		if strings.TrimSpace(c.AnthropicAPIKey) == "" {
			errs = append(errs, fmt.Errorf("ANTHROPIC_API_KEY is required for model %s", c.Model))
		}
	default:
		if strings.TrimSpace(c.OpenAIAPIKey) == "" {
			errs = append(errs, fmt.Errorf("OPENAI_API_KEY is required for model %s", c.Model))
		}
	}

	if c.MaxTokens <= 0 {
		errs = append(errs, errors.New("DISTILL_MAX_TOKENS must be positive"))
	}
	if c.TargetLength <= 0 {
		errs = append(errs, errors.New("DISTILL_TARGET_LENGTH must be positive"))
	}
	if c.Parallelism <= 0 {
		errs = append(errs, errors.New("DISTILL_PARALLELISM must be positive"))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("DISTILL_MAX_RETRIES must not be negative"))
	}
	if c.MaxDepth <= 0 {
		errs = append(errs, errors.New("DISTILL_MAX_DEPTH must be positive"))
	}
	if c.TelegramToken != "" && c.TelegramChatID == 0 {
		errs = append(errs, errors.New("TELEGRAM_CHAT_ID is required with TELEGRAM_TOKEN"))
	}

	return errors.Join(errs...)
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
