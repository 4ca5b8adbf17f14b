package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Env             string `env:"ENVIRONMENT" envDefault:"development"`
	ServerPort      int    `env:"SERVER_PORT" envDefault:"8080"`
	DatabasePath    string `env:"DATABASE_PATH" envDefault:"timetablewatch.sqlite"`
	LogFile         string `env:"LOG_FILE"`
	BasicAuthCreds  string `env:"BASIC_AUTH_CREDS"`
	HTTPTimeoutSecs int    `env:"HTTP_TIMEOUT_SECS" envDefault:"30"`

	Scraper struct {
		URL           string `env:"SCRAPER_URL" envDefault:"http://grandabus.it/orari-per-localita/"`
		TableID       string `env:"SCRAPER_TABLE_ID" envDefault:"tablepress-99"`
		SkipUnchanged bool   `env:"SCRAPER_SKIP_UNCHANGED" envDefault:"false"`
		Hour          int    `env:"SCRAPER_HOUR" envDefault:"0"`
		RunOnStart    bool   `env:"SCRAPER_RUN_ON_START" envDefault:"true"`
		BatchSize     int    `env:"SCRAPER_BATCH_SIZE" envDefault:"500"`

		ShortenDelayMin time.Duration `env:"SCRAPER_SHORTEN_DELAY_MIN" envDefault:"1s"`
		ShortenDelayMax time.Duration `env:"SCRAPER_SHORTEN_DELAY_MAX" envDefault:"2s"`
		HashDelayMin    time.Duration `env:"SCRAPER_HASH_DELAY_MIN" envDefault:"5s"`
		HashDelayMax    time.Duration `env:"SCRAPER_HASH_DELAY_MAX" envDefault:"10s"`
	}
	Bitly struct {
		AccessToken string `env:"BITLY_ACCESS_TOKEN"`
		Endpoint    string `env:"BITLY_ENDPOINT" envDefault:"https://api-ssl.bitly.com/v4/shorten"`
	}
	Telegram struct {
		Token   string `env:"TELEGRAM_TOKEN"`
		APIBase string `env:"TELEGRAM_API_BASE" envDefault:"https://api.telegram.org"`
	}
	LocationIQ struct {
		APIKey   string `env:"LOCATIONIQ_API_KEY"`
		Endpoint string `env:"LOCATIONIQ_ENDPOINT" envDefault:"https://us1.locationiq.com/v1/reverse.php"`
	}
	Mailgun struct {
		Domain      string `env:"MAILGUN_DOMAIN"`
		APIKey      string `env:"MAILGUN_API_KEY"`
		APIBase     string `env:"MAILGUN_API_BASE"`
		SenderFrom  string `env:"MAILGUN_SENDER_FROM"`
		TimeoutSecs int    `env:"MAILGUN_TIMEOUT_SECS" envDefault:"10"`
	}

	creds map[string]string
}

// NewConfig reads an optional .env file, then the environment.
func NewConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return Parse(env.Options{})
}

func Parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	creds, err := cfg.parseCreds()
	if err != nil {
		return nil, err
	}
	cfg.creds = creds

	return cfg, nil
}

func (cfg *Config) IsProduction() bool {
	return cfg.Env == "production"
}

func (cfg *Config) HTTPTimeout() time.Duration {
	return time.Duration(cfg.HTTPTimeoutSecs) * time.Second
}

// GetCreds returns the API basic auth credentials; empty means auth is off.
func (cfg *Config) GetCreds() map[string]string {
	return cfg.creds
}

func (cfg *Config) validate() error {
	if h := cfg.Scraper.Hour; h < 0 || h > 23 {
		return fmt.Errorf("SCRAPER_HOUR must be within 0-23, got %d", h)
	}
	if cfg.Scraper.ShortenDelayMax < cfg.Scraper.ShortenDelayMin {
		return errors.New("SCRAPER_SHORTEN_DELAY_MAX must not be lower than SCRAPER_SHORTEN_DELAY_MIN")
	}
	if cfg.Scraper.HashDelayMax < cfg.Scraper.HashDelayMin {
		return errors.New("SCRAPER_HASH_DELAY_MAX must not be lower than SCRAPER_HASH_DELAY_MIN")
	}
	return nil
}

func (cfg *Config) parseCreds() (map[string]string, error) {
	result := make(map[string]string)
	if cfg.BasicAuthCreds == "" {
		return result, nil
	}

	creds := strings.Split(cfg.BasicAuthCreds, ",")
	for _, cred := range creds {
		userPass := strings.Split(cred, ":")
		if len(userPass) != 2 {
			return nil, fmt.Errorf("failed to parse '%s', each credential should be delimited by a colon -- user1:pass1,user2:pass2", cred)
		}

		user, pass := userPass[0], userPass[1]
		result[strings.Trim(user, " ")] = strings.Trim(pass, " ")
	}

	return result, nil
}
