package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds runtime settings for challengectl.
type Config struct {
	ServerEndpointAddr string        `env:"CHALLENGECTL_ADDR"`
	AccessToken        string        `env:"CHALLENGECTL_TOKEN"`
	CallTimeout        time.Duration `env:"CHALLENGECTL_TIMEOUT"`
	// SecretKey is only used by the token subcommand to sign development tokens.
	SecretKey string `env:"CHALLENGES_SECRET_KEY"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.CallTimeout = 10 * time.Second
	c.SecretKey = "secretKey"
}

// LoadConfig applies defaults, then the JSON file, the environment and the
// flags found in args. Later sources take precedence over earlier ones.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
