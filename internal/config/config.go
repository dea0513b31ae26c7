// Package config loads server settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting
type Config struct {
	Port         int    `env:"PORT" envDefault:"3001"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"snake.db"`

	JWTSecret        string `env:"AUTH_JWT_SECRET"`
	JWTPublicKeyFile string `env:"AUTH_JWT_PUBLIC_KEY_FILE"`
	JWTIssuer        string `env:"AUTH_JWT_ISSUER"`
	JWTAudience      string `env:"AUTH_JWT_AUDIENCE"`

	GracePeriod    time.Duration `env:"SESSION_GRACE_PERIOD" envDefault:"30s"`
	PersistTimeout time.Duration `env:"PERSIST_TIMEOUT" envDefault:"10s"`

	LogLevel       string   `env:"LOG_LEVEL" envDefault:"INFO"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	PublicURL      string   `env:"PUBLIC_URL"`
	OTelEndpoint   string   `env:"OTEL_ENDPOINT"`
}

// Load reads the named .env files, if present, then parses the environment.
// Variables already set in the environment win over .env values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that cannot be expressed as struct tags
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.GracePeriod < 0 {
		return fmt.Errorf("SESSION_GRACE_PERIOD must not be negative")
	}
	if c.JWTSecret == "" && c.JWTPublicKeyFile == "" {
		return fmt.Errorf("one of AUTH_JWT_SECRET or AUTH_JWT_PUBLIC_KEY_FILE is required")
	}
	return nil
}

// Addr is the listen address for the HTTP server
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// CheckOrigin builds a websocket origin check from AllowedOrigins. An empty
// list, or a "*" entry, accepts any origin.
func (c Config) CheckOrigin() func(r *http.Request) bool {
	if len(c.AllowedOrigins) == 0 || slices.Contains(c.AllowedOrigins, "*") {
		return nil
	}
	allowed := make(map[string]bool, len(c.AllowedOrigins))
	for _, o := range c.AllowedOrigins {
		allowed[strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return allowed[strings.ToLower(u.Scheme+"://"+u.Host)]
	}
}
