// Package config содержит логику чтения конфигурации интернет-магазина.
package config

import (
	"flag"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации интернет-магазина.
type Config struct {
	RunAddress         string `env:"RUN_ADDRESS"`
	DatabaseURI        string `env:"DATABASE_URI"`
	AuthSecret         string `env:"AUTH_SECRET"`
	FulfillmentAddress string `env:"FULFILLMENT_ADDRESS"`
	RedisAddress       string `env:"REDIS_ADDRESS"`
	KafkaBrokers       string `env:"KAFKA_BROKERS"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envAuthSecret := cfg.AuthSecret
	envFulfillmentAddress := cfg.FulfillmentAddress
	envRedisAddress := cfg.RedisAddress
	envKafkaBrokers := cfg.KafkaBrokers

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI (empty for in-memory store)")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret key for signing tokens")
	flag.StringVar(&cfg.FulfillmentAddress, "f", "", "fulfillment system address")
	flag.StringVar(&cfg.RedisAddress, "c", "", "redis address for catalog cache")
	flag.StringVar(&cfg.KafkaBrokers, "k", "", "comma-separated kafka brokers for order events")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}
	if envFulfillmentAddress != "" {
		cfg.FulfillmentAddress = envFulfillmentAddress
	}
	if envRedisAddress != "" {
		cfg.RedisAddress = envRedisAddress
	}
	if envKafkaBrokers != "" {
		cfg.KafkaBrokers = envKafkaBrokers
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}

// BrokerList разбирает список брокеров Kafka.
func (c *Config) BrokerList() []string {
	if c.KafkaBrokers == "" {
		return nil
	}

	var res []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			res = append(res, b)
		}
	}
	return res
}
