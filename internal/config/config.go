// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the SPED service.
type Config struct {
	AppAddr         string `envconfig:"APP_ADDR" default:":8084"`
	GinMode         string `envconfig:"GIN_MODE" default:"release"`
	JWTSecret       string `envconfig:"JWT_SECRET"`
	MaxUploadMB     int64  `envconfig:"MAX_UPLOAD_MB" default:"32"`
	ReadConcurrency int    `envconfig:"READ_CONCURRENCY" default:"8"`
}

// Load reads variables from a .env file, when present, and then from the
// environment. Variables already set in the environment take precedence.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("erro ao carregar %s: %w", file, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.MaxUploadMB <= 0 {
		return nil, errors.New("MAX_UPLOAD_MB deve ser positivo")
	}
	return &cfg, nil
}

// AuthEnabled reports whether bearer tokens are required on the API.
func (c *Config) AuthEnabled() bool {
	return c != nil && c.JWTSecret != ""
}

// MaxUploadBytes is the multipart memory limit for one request.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}
