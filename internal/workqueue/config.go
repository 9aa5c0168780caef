package workqueue

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

// Config tunes a batch run. Zero values take the defaults below.
type Config struct {
	Shards      int           `envconfig:"SHARDS" default:"4"`
	MaxAttempts int           `envconfig:"MAX_ATTEMPTS" default:"3"`
	BaseBackoff time.Duration `envconfig:"BASE_BACKOFF" default:"200ms"`
	MaxInterval time.Duration `envconfig:"MAX_INTERVAL" default:"5s"`

	Logger zerolog.Logger `ignored:"true"`
}

// LoadConfig reads VAULT_WORKQUEUE_* overrides from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("VAULT_WORKQUEUE", &cfg); err != nil {
		return Config{}, err
	}
	cfg.Logger = zerolog.Nop()
	return cfg, nil
}

func (c Config) withDefaults() Config {
	if c.Shards <= 0 {
		c.Shards = 4
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 200 * time.Millisecond
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 5 * time.Second
	}
	return c
}
