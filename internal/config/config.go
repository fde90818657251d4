package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel string `yaml:"log_level"`

	// Figure defaults
	Width    string  `yaml:"width"`
	Fraction float64 `yaml:"fraction"`

	Port      string  `yaml:"port"`
	RateLimit float64 `yaml:"rate_limit"` // render requests per second
	RateBurst int     `yaml:"rate_burst"`

	DBDriver string `yaml:"db_driver"`
	DBPath   string `yaml:"db_path"`

	RedisAddr string        `yaml:"redis_addr"` // empty keeps the in-memory cache
	RedisDB   int           `yaml:"redis_db"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`

	TelegramToken      string `yaml:"telegram_token"`
	TelegramChatID     int64  `yaml:"telegram_chat_id"`
	TelegramWebhookURL string `yaml:"telegram_webhook_url"`

	OpenAIKey   string `yaml:"openai_key"`
	OpenAIModel string `yaml:"openai_model"`
}

func Default() Config {
	return Config{
		LogLevel:    "info",
		Width:       "thesis",
		Fraction:    2,
		Port:        "9095",
		RateLimit:   5,
		RateBurst:   10,
		DBDriver:    "sqlite3",
		DBPath:      "data/runs.db",
		CacheTTL:    60 * time.Second,
		OpenAIModel: "gpt-4",
	}
}

// Load reads defaults, then the optional YAML file at path, then the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	str := func(k string, dst *string) {
		if v := os.Getenv(k); v != "" {
			*dst = v
		}
	}
	str("BACKTESTPLOT_LOG_LEVEL", &cfg.LogLevel)
	str("BACKTESTPLOT_WIDTH", &cfg.Width)
	str("PORT", &cfg.Port)
	str("DB_DRIVER", &cfg.DBDriver)
	str("DB_PATH", &cfg.DBPath)
	str("REDIS_ADDR", &cfg.RedisAddr)
	str("TELEGRAM_BOT_TOKEN", &cfg.TelegramToken)
	str("WEBHOOK_PUBLIC_URL", &cfg.TelegramWebhookURL)
	str("OPENAI_API_KEY", &cfg.OpenAIKey)
	str("OPENAI_MODEL", &cfg.OpenAIModel)

	if v := os.Getenv("BACKTESTPLOT_FRACTION"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid env BACKTESTPLOT_FRACTION: %w", err)
		}
		cfg.Fraction = f
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid env TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid env CACHE_TTL: %w", err)
		}
		cfg.CacheTTL = d
	}
	return nil
}
