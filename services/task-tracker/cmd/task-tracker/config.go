package main

import (
	"fmt"
	"time"

	"github.com/md-rashed-zaman/tasktracker/libs/config"
	"github.com/md-rashed-zaman/tasktracker/libs/consumer"
	"github.com/md-rashed-zaman/tasktracker/libs/datasource"
)

const (
	modeServer   = "server"
	modeConsumer = "consumer"
	modeAll      = "all"
)

type Config struct {
	Service            string
	Mode               string
	Port               string
	JWTSecret          string
	RateLimitPerMinute int
	Consumer           consumer.Config
	Sources            datasource.Config
}

// loadConfig reads the environment; args[0], when present, picks the mode.
func loadConfig(args []string) (Config, error) {
	cfg := Config{
		Service: config.String("SERVICE_NAME", "task-tracker"),
		Mode:    modeServer,
	}
	if len(args) > 0 {
		cfg.Mode = args[0]
	}
	switch cfg.Mode {
	case modeServer, modeConsumer, modeAll:
	default:
		return Config{}, fmt.Errorf("unknown mode %q (want %s, %s or %s)", cfg.Mode, modeServer, modeConsumer, modeAll)
	}

	var err error
	if cfg.Port, err = config.Port("PORT", "8082"); err != nil {
		return Config{}, err
	}
	if cfg.Mode != modeConsumer {
		if cfg.JWTSecret, err = config.RequiredString("JWT_SECRET"); err != nil {
			return Config{}, err
		}
	}
	if cfg.RateLimitPerMinute, err = config.Int("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return Config{}, err
	}

	cfg.Consumer = consumer.Config{
		Durable:  config.String("CONSUMER_DURABLE", cfg.Service),
		Subjects: config.List("CONSUMER_SUBJECTS", nil),
	}
	if cfg.Consumer.BatchSize, err = config.Int("CONSUMER_BATCH_SIZE", 1); err != nil {
		return Config{}, err
	}
	if cfg.Consumer.MaxWait, err = config.Duration("CONSUMER_MAX_WAIT", 5*time.Second); err != nil {
		return Config{}, err
	}

	if cfg.Sources, err = datasource.ConfigFromEnv(cfg.Service); err != nil {
		return Config{}, fmt.Errorf("datasource: %w", err)
	}
	return cfg, nil
}
