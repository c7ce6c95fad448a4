package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	cron_config "github.com/mailvault/mailvault/internal/cron/config"
	"github.com/mailvault/mailvault/internal/logger"
	"github.com/mailvault/mailvault/internal/tracing"
)

type Config struct {
	AppConfig      *AppConfig
	Logger         *logger.Config
	Tracing        *tracing.JaegerConfig
	DatabaseConfig *DatabaseConfig
	OAuthConfig    *OAuthConfig
	IMAPConfig     *IMAPConfig
	FetchConfig    *FetchConfig
	CronConfig     *cron_config.Config
}

func InitConfig() (*Config, error) {
	cfg := &Config{
		AppConfig:      &AppConfig{},
		Logger:         &logger.Config{},
		Tracing:        &tracing.JaegerConfig{},
		DatabaseConfig: &DatabaseConfig{},
		OAuthConfig:    &OAuthConfig{},
		IMAPConfig:     &IMAPConfig{},
		FetchConfig:    &FetchConfig{},
		CronConfig:     &cron_config.Config{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(cfg)
	if err != nil {
		log.Fatalf("Error loading mailvault config: %v", err)
	}

	return cfg, nil
}
