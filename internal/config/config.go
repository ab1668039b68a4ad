package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures the runtime configuration for the vibevideos client.
type Config struct {
	// ServerURL is the base URL of the video library service.
	ServerURL string `env:"VIBE_SERVER_URL" envDefault:"http://localhost:8080"`
	// SessionFile is the durable storage location for the session token.
	SessionFile string `env:"VIBE_SESSION_FILE" envDefault:"~/.vibevideos/session"`
	// RequestTimeout bounds every single API call.
	RequestTimeout time.Duration `env:"VIBE_REQUEST_TIMEOUT" envDefault:"30s"`
	// RequestsPerSecond throttles outgoing API calls.
	RequestsPerSecond float64 `env:"VIBE_REQUESTS_PER_SECOND" envDefault:"10"`
	// StubPort is the listen port for the bundled reference server.
	StubPort int `env:"VIBE_STUB_PORT" envDefault:"8080"`
	// StubSecret signs the reference server's session tokens.
	StubSecret string `env:"VIBE_STUB_SECRET" envDefault:"dev-only-secret"`
	// LogLevel selects the slog level: debug, info, warn, or error.
	LogLevel string `env:"VIBE_LOG_LEVEL" envDefault:"info"`
}

// Load reads configuration from environment variables, applying defaults
// suitable for running against a local stub server.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.RequestTimeout <= 0 {
		return Config{}, fmt.Errorf("request timeout must be positive, got %s", cfg.RequestTimeout)
	}
	if cfg.RequestsPerSecond <= 0 {
		return Config{}, fmt.Errorf("requests per second must be positive, got %g", cfg.RequestsPerSecond)
	}
	return cfg, nil
}
