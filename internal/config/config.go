package config

import (
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const redacted = "***REDACTED***"

// SecretString keeps credentials out of logs and JSON dumps.
type SecretString string

func (s SecretString) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// Unmask returns the raw value.
func (s SecretString) Unmask() string {
	return string(s)
}

// Trend sources.
const (
	TrendStatic   = "static"
	TrendRecorded = "recorded"
)

type AppConfig struct {
	Port string `envconfig:"PORT" default:"8080"`

	// The credential is optional: without it every assessment falls back,
	// but the service still starts.
	GeminiAPIKey  SecretString `envconfig:"GEMINI_API_KEY"`
	GeminiBaseURL string       `envconfig:"GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com/v1beta/models" validate:"url"`
	GeminiModel   string       `envconfig:"GEMINI_MODEL" default:"gemini-3-pro-preview" validate:"required"`

	OpenWeatherAPIKey SecretString `envconfig:"OPENWEATHER_API_KEY"`

	// HTTPTimeout bounds a single outbound HTTP attempt.
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s" validate:"gt=0"`

	// AssessmentTimeout bounds a whole provider call, retries included.
	AssessmentTimeout time.Duration `envconfig:"ASSESSMENT_TIMEOUT" default:"45s" validate:"gt=0"`

	// RefreshInterval re-runs the assessment periodically (0 = disabled).
	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL" default:"0s" validate:"gte=0"`

	// In-memory history retention.
	StoreMaxHistory int           `envconfig:"STORE_MAX_HISTORY" default:"96" validate:"gte=0"`
	StoreMaxAge     time.Duration `envconfig:"STORE_MAX_AGE" default:"168h" validate:"gte=0"`

	TrendSource string `envconfig:"TREND_SOURCE" default:"static" validate:"oneof=static recorded"`

	DatabaseURL SecretString `envconfig:"DATABASE_URL"`
}

// Load reads configuration from the environment (and an optional .env file)
// with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	return process()
}

func process() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("invalid environment configuration: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}
