// Package config loads service configuration from an optional YAML file with
// environment-variable overrides. Every field has a usable default.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port    string `yaml:"port"`
	Debug   bool   `yaml:"debug"`
	DataDir string `yaml:"data_dir"`

	Store struct {
		// Driver is "sqlite" or "postgres".
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"store"`

	Redis struct {
		Addr    string `yaml:"addr"`
		Channel string `yaml:"channel"`
	} `yaml:"redis"`

	Gemini struct {
		APIKey string `yaml:"api_key"`
		Model  string `yaml:"model"`
	} `yaml:"gemini"`

	DispatchTimeout time.Duration `yaml:"dispatch_timeout"`

	Scheduler struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"scheduler"`

	Email struct {
		APIKey      string `yaml:"api_key"`
		FromName    string `yaml:"from_name"`
		FromAddress string `yaml:"from_address"`
		To          string `yaml:"to"`
	} `yaml:"email"`
}

func defaults() *Config {
	cfg := &Config{
		Port:            "8000",
		DataDir:         "./data",
		DispatchTimeout: 10 * time.Minute,
	}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DSN = ""
	cfg.Redis.Channel = "nexus:events"
	cfg.Gemini.Model = "gemini-2.0-flash"
	cfg.Scheduler.Enabled = true
	return cfg
}

// Load reads the YAML file at path (skipped when empty) and then applies
// environment overrides, which always win over file values.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if cfg.Store.DSN == "" && cfg.Store.Driver == "sqlite" {
		cfg.Store.DSN = cfg.DataDir + "/nexus.db"
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Port, "PORT")
	setString(&cfg.DataDir, "NEXUS_DATA_DIR")
	setString(&cfg.Store.Driver, "STORE_DRIVER")
	setString(&cfg.Store.DSN, "STORE_DSN")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Channel, "REDIS_CHANNEL")
	setString(&cfg.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&cfg.Gemini.Model, "GEMINI_MODEL")
	setString(&cfg.Email.APIKey, "EMAIL_API_KEY")
	setString(&cfg.Email.FromName, "FROM_NAME")
	setString(&cfg.Email.FromAddress, "FROM_ADDRESS")
	setString(&cfg.Email.To, "ALERT_EMAIL")

	if v := os.Getenv("NEXUS_DEBUG"); v == "1" || v == "true" {
		cfg.Debug = true
	}
	if v := os.Getenv("DISPATCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.DispatchTimeout = d
		}
	}
	if v := os.Getenv("SCHEDULER_ENABLED"); v == "0" || v == "false" {
		cfg.Scheduler.Enabled = false
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
