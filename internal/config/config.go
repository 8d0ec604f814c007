package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15m"` // exports stream for a while
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	SynthAPIKey  string        `env:"SYNTH_API_KEY"`
	SynthBaseURL string        `env:"SYNTH_BASE_URL" envDefault:"https://api.elevenlabs.io"`
	SynthModel   string        `env:"SYNTH_MODEL" envDefault:"eleven_multilingual_v2"`
	SynthTimeout time.Duration `env:"SYNTH_TIMEOUT" envDefault:"60s"`
	DefaultVoice string        `env:"DEFAULT_VOICE" envDefault:"21m00Tcm4TlvDq8ikWAM"`
	DefaultSpeed float64       `env:"DEFAULT_SPEED" envDefault:"1.0"`

	MaxBlockLen   int           `env:"MAX_BLOCK_LENGTH" envDefault:"300"`
	CacheCapacity int           `env:"CACHE_CAPACITY" envDefault:"50"`
	PrefetchDelay time.Duration `env:"PREFETCH_DELAY" envDefault:"250ms"`

	FFmpegPath  string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	FFprobePath string `env:"FFPROBE_PATH" envDefault:"ffprobe"`
	PlayerPath  string `env:"PLAYER_PATH" envDefault:"ffplay"`
	TempDir     string `env:"TEMP_DIR"`

	ExportRetryAttempts  int           `env:"EXPORT_RETRY_ATTEMPTS" envDefault:"3"`
	ExportRetryBaseDelay time.Duration `env:"EXPORT_RETRY_BASE_DELAY" envDefault:"1s"`
	ExportRetryMaxDelay  time.Duration `env:"EXPORT_RETRY_MAX_DELAY" envDefault:"10s"`

	AuthToken string `env:"AUTH_TOKEN"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile     string
	HTTPAddr    string
	LogLevel    string
	SynthAPIKey string
	TempDir     string
}

// Load reads configuration from .env file, environment variables, and CLI
// overrides. Priority: CLI flags > environment variables > .env file >
// struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.SynthAPIKey != "" {
		cfg.SynthAPIKey = overrides.SynthAPIKey
	}
	if overrides.TempDir != "" {
		cfg.TempDir = overrides.TempDir
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MaxBlockLen < 1 {
		return fmt.Errorf("MAX_BLOCK_LENGTH must be >= 1, got %d", c.MaxBlockLen)
	}
	if c.CacheCapacity < 1 {
		return fmt.Errorf("CACHE_CAPACITY must be >= 1, got %d", c.CacheCapacity)
	}
	if c.DefaultSpeed <= 0 {
		return fmt.Errorf("DEFAULT_SPEED must be positive, got %f", c.DefaultSpeed)
	}
	if c.ExportRetryAttempts < 1 {
		return fmt.Errorf("EXPORT_RETRY_ATTEMPTS must be >= 1, got %d", c.ExportRetryAttempts)
	}
	return nil
}
