package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port            string        `env:"PORT" envDefault:"8080"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Redis
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"8"`
	StorageKey    string        `env:"STORAGE_KEY" envDefault:"classroom_companion_data_v1"`
	EventsChannel string        `env:"EVENTS_CHANNEL" envDefault:"classroom:session:events"`
	SaveDebounce  time.Duration `env:"SAVE_DEBOUNCE" envDefault:"200ms"`

	// Session
	RollSteps    int           `env:"ROLL_STEPS" envDefault:"21"`
	RollInterval time.Duration `env:"ROLL_INTERVAL" envDefault:"80ms"`

	// Gemini (optional)
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"true"`
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT cannot be empty")
	}
	if c.StorageKey == "" {
		return errors.New("STORAGE_KEY cannot be empty")
	}
	if c.RollSteps < 1 {
		return fmt.Errorf("ROLL_STEPS must be positive, got %d", c.RollSteps)
	}
	if c.RollInterval <= 0 {
		return fmt.Errorf("ROLL_INTERVAL must be positive, got %s", c.RollInterval)
	}
	if c.SaveDebounce < 0 {
		return fmt.Errorf("SAVE_DEBOUNCE cannot be negative, got %s", c.SaveDebounce)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}
