package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort    = 8080
	defaultFeedURL = "http://localhost:5001/events"
)

// Config holds application configuration.
// The poll interval and display capacity are fixed and deliberately absent.
type Config struct {
	Port    string `yaml:"port" env:"PORT"`
	FeedURL string `yaml:"feed_url" env:"FEED_URL"`

	Log LogConfig `yaml:"log"`
}

// LogConfig configures the logrus logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" env:"LOG_LEVEL"`
	// Format is "text" or "json".
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Port:    strconv.Itoa(defaultPort),
		FeedURL: defaultFeedURL,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, then the optional YAML file at
// path, then environment variables. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.FeedURL == "" {
		return nil, errors.New("feed_url must not be empty")
	}
	cfg.Port = validatePort(cfg.Port)
	return cfg, nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// validatePort falls back to the default port for anything that is not 1-65535.
func validatePort(port string) string {
	p, err := strconv.Atoi(port)
	if err != nil || p < 1 || p > 65535 {
		return strconv.Itoa(defaultPort)
	}
	return port
}
