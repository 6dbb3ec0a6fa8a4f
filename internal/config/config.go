package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	TelegramToken string  `env:"TG_BOT_TOKEN,required,notEmpty"`
	Whitelist     []int64 `env:"TG_WHITELIST" envSeparator:"|"`
	Admins        []int64 `env:"TG_ADMINS" envSeparator:"|"`

	ClientID     string `env:"YD_CLIENT_ID,required,notEmpty"`
	ClientSecret string `env:"YD_CLIENT_SECRET,required,notEmpty"`
	OAuthBaseURL string `env:"OAUTH_BASE_URL" envDefault:"https://oauth.yandex.ru"`
	DiskAPIURL   string `env:"DISK_API_URL" envDefault:"https://cloud-api.yandex.net/v1/disk"`

	DBDriver string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBDSN    string `env:"DB_DSN" envDefault:"file:storage/local.db"`

	RefreshInterval    time.Duration `env:"REFRESH_INTERVAL" envDefault:"5s"`
	RefreshTimeout     time.Duration `env:"REFRESH_TIMEOUT" envDefault:"30s"`
	RefreshConcurrency int           `env:"REFRESH_CONCURRENCY" envDefault:"4"`
	PollInterval       time.Duration `env:"POLL_INTERVAL" envDefault:"2s"`
	PollTimeout        time.Duration `env:"POLL_TIMEOUT" envDefault:"30m"`
	MaxFileSize        int64         `env:"MAX_FILE_SIZE" envDefault:"20971520"`

	RateLimit float64 `env:"RATE_LIMIT" envDefault:"1"`
	RateBurst int     `env:"RATE_BURST" envDefault:"5"`

	WebPort  string `env:"WEB_PORT" envDefault:"8080"`
	Env      string `env:"APP_ENV" envDefault:"prod"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load читает .env (если он есть) и переменные окружения.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if !slices.Contains([]string{"sqlite", "postgres", "memory"}, c.DBDriver) {
		return fmt.Errorf("invalid DB_DRIVER %q: expected sqlite, postgres or memory", c.DBDriver)
	}
	if c.RefreshInterval <= 0 || c.RefreshTimeout <= 0 || c.PollInterval <= 0 || c.PollTimeout <= 0 {
		return errors.New("intervals and timeouts must be positive")
	}
	if c.RefreshConcurrency <= 0 {
		return errors.New("REFRESH_CONCURRENCY must be positive")
	}
	if c.MaxFileSize <= 0 {
		return errors.New("MAX_FILE_SIZE must be positive")
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		return errors.New("RATE_LIMIT and RATE_BURST must be positive")
	}
	if len(c.Whitelist) == 0 && c.Env != "dev" {
		return errors.New("TG_WHITELIST is empty: set allowed chat ids or APP_ENV=dev to run an open bot")
	}
	return nil
}

// IsAdmin - может ли чат пользоваться административными командами.
func (c Config) IsAdmin(chatID int64) bool {
	return slices.Contains(c.Admins, chatID)
}

// IsAllowed - пустой белый список пропускает всех. Вне APP_ENV=dev такой конфиг не проходит Validate.
func (c Config) IsAllowed(chatID int64) bool {
	return len(c.Whitelist) == 0 || slices.Contains(c.Whitelist, chatID)
}
