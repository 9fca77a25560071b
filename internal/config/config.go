package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken  string `envconfig:"BOT_TOKEN" required:"true"`
	DBPath    string `envconfig:"DB_PATH" default:"./data/scheduler.db"`
	DefaultTZ string `envconfig:"DEFAULT_TZ" default:"Europe/Moscow"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error
	HTTPAddr  string `envconfig:"HTTP_ADDR" default:":8080"`

	TimetableURL  string        `envconfig:"TIMETABLE_URL" default:"https://old-guide.herzen.spb.ru"`
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"30s"`
	RefreshAt     string        `envconfig:"REFRESH_AT" default:"00:00"`       // HH:MM, local TZ
	DigestSpec    string        `envconfig:"DIGEST_SPEC" default:"0 18 * * *"` // cron, local TZ
}

// Load reads environment variables into Config.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
