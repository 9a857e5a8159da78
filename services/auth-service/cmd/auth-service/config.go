package main

import (
	"fmt"
	"time"

	"github.com/md-rashed-zaman/tasktracker/libs/auth"
	"github.com/md-rashed-zaman/tasktracker/libs/config"
	"github.com/md-rashed-zaman/tasktracker/libs/datasource"
)

type Config struct {
	Service            string
	Port               string
	JWTSecret          string
	JWTTTL             time.Duration
	CredentialPepper   string
	RateLimitPerMinute int
	Sources            datasource.Config
}

func loadConfig() (Config, error) {
	cfg := Config{Service: config.String("SERVICE_NAME", "auth-service")}
	var err error
	if cfg.Port, err = config.Port("PORT", "8081"); err != nil {
		return Config{}, err
	}
	if cfg.JWTSecret, err = config.RequiredString("JWT_SECRET"); err != nil {
		return Config{}, err
	}
	if cfg.JWTTTL, err = config.Duration("JWT_TTL", auth.DefaultTTL); err != nil {
		return Config{}, err
	}
	if cfg.CredentialPepper, err = config.RequiredString("CREDENTIAL_PEPPER"); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitPerMinute, err = config.Int("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return Config{}, err
	}
	if cfg.Sources, err = datasource.ConfigFromEnv(cfg.Service); err != nil {
		return Config{}, fmt.Errorf("datasource: %w", err)
	}
	return cfg, nil
}
