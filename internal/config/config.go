package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration. Values come from the YAML
// file first, then environment variables override.
type Config struct {
	ListenAddr  string `yaml:"listen_addr" env:"EXPEDITER_LISTEN_ADDR"`
	MetricsAddr string `yaml:"metrics_addr" env:"EXPEDITER_METRICS_ADDR"`
	LogLevel    string `yaml:"log_level" env:"EXPEDITER_LOG_LEVEL"`
	JWTSecret   string `yaml:"jwt_secret" env:"EXPEDITER_JWT_SECRET"`

	Database struct {
		Driver string `yaml:"driver" env:"EXPEDITER_DB_DRIVER"`
		DSN    string `yaml:"dsn" env:"EXPEDITER_DB_DSN"`
	} `yaml:"database"`
}

// Load reads the configuration file at path (skipped when it does not
// exist), applies environment overrides, and fills defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{
		ListenAddr:  ":8080",
		MetricsAddr: ":9090",
		LogLevel:    "info",
	}
	cfg.Database.Driver = "sqlite3"
	cfg.Database.DSN = "expediter.db"

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
