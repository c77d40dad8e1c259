package main

import (
	"os"
	"strings"

	"github.com/dfryer1193/photolog/shared/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type serverConfig struct {
	Addr      string `env:"PHOTO_HTTP_ADDR" envDefault:"127.0.0.1:8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

func loadServerConfig() (*serverConfig, error) {
	cfg := &serverConfig{}
	if err := config.ParseEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(cfg *serverConfig) error {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return nil
}
