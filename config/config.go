package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	CaptionAPIListing = "listing"
	CaptionAPIFlat    = "flat"

	BackendFasterWhisper = "faster-whisper"
	BackendOpenAI        = "openai"
)

type Config struct {
	// Server settings
	ServerPort   string        `env:"SERVER_PORT" envDefault:"8080"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"31m"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	Debug        bool          `env:"DEBUG" envDefault:"false"`
	Environment  string        `env:"ENV" envDefault:"development"`

	// Application paths
	LogDir  string `env:"LOG_DIR" envDefault:"/var/log/yt-transcript"`
	TempDir string `env:"TEMP_DIR" envDefault:"/tmp/yt-transcript"`

	Log LogConfig

	// Middleware settings, derived from Environment
	Middleware MiddlewareConfig

	CORS      CORSConfig
	RateLimit RateLimitConfig
	Database  DatabaseConfig
	Captions  CaptionConfig
	Model     ModelConfig
	Download  DownloadConfig
	Archive   ArchiveConfig

	// Upload ceiling for POST /transcribe
	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"104857600"`

	// Application version
	Version string `env:"VERSION" envDefault:"1.0.0"`

	// Request and shutdown timeouts
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30m"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

type MiddlewareConfig struct {
	EnableRecover   bool
	EnableRequestID bool
	EnableLogger    bool
	EnableTimeout   bool
	EnableCORS      bool
	EnableRateLimit bool
}

type DatabaseConfig struct {
	Path               string        `env:"DB_PATH" envDefault:"/var/lib/yt-transcript/requests.db"`
	MaxConnections     int           `env:"DB_MAX_CONNECTIONS" envDefault:"10"`
	MaxIdleConnections int           `env:"DB_MAX_IDLE_CONNECTIONS" envDefault:"5"`
	ConnMaxLifetime    time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
}

type CORSConfig struct {
	Enabled          bool     `env:"CORS_ENABLED" envDefault:"true"`
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS" envDefault:"GET,POST,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS" envDefault:"Content-Type"`
	ExposedHeaders   []string `env:"CORS_EXPOSED_HEADERS"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"false"`
	MaxAge           int      `env:"CORS_MAX_AGE" envDefault:"86400"`
}

type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_RPM" envDefault:"60"`
	BurstSize         int  `env:"RATE_LIMIT_BURST" envDefault:"10"`
}

type CaptionConfig struct {
	DefaultLanguages []string      `env:"DEFAULT_LANGUAGES" envDefault:"en,en-US"`
	API              string        `env:"CAPTION_API" envDefault:"listing"`
	Timeout          time.Duration `env:"CAPTION_TIMEOUT" envDefault:"20s"`
	YouTubeAPIKey    string        `env:"YOUTUBE_API_KEY"`
}

type ModelConfig struct {
	Backend       string        `env:"MODEL_BACKEND" envDefault:"faster-whisper"`
	Name          string        `env:"WHISPER_MODEL" envDefault:"small"`
	Device        string        `env:"WHISPER_DEVICE" envDefault:"cpu"`
	ComputeType   string        `env:"WHISPER_COMPUTE_TYPE" envDefault:"int8"`
	BeamSize      int           `env:"BEAM_SIZE" envDefault:"5"`
	PythonPath    string        `env:"PYTHON_PATH" envDefault:"python3"`
	LoadTimeout   time.Duration `env:"MODEL_LOAD_TIMEOUT" envDefault:"10m"`
	OpenAIAPIKey  string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string        `env:"OPENAI_BASE_URL"`
	OpenAIModel   string        `env:"OPENAI_MODEL" envDefault:"whisper-1"`
}

type DownloadConfig struct {
	YTDLPPath  string        `env:"YTDLP_PATH" envDefault:"yt-dlp"`
	CookieFile string        `env:"COOKIE_FILE"`
	Timeout    time.Duration `env:"DOWNLOAD_TIMEOUT" envDefault:"10m"`
}

type ArchiveConfig struct {
	Bucket    string `env:"ARCHIVE_BUCKET"`
	Endpoint  string `env:"ARCHIVE_ENDPOINT"`
	Region    string `env:"ARCHIVE_REGION" envDefault:"us-east-1"`
	AccessKey string `env:"ARCHIVE_ACCESS_KEY"`
	SecretKey string `env:"ARCHIVE_SECRET_KEY"`
}

// Enabled reports whether transcripts should be archived.
func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Default configurations
func defaultDevConfig() MiddlewareConfig {
	return MiddlewareConfig{
		EnableRecover:   true,
		EnableRequestID: true,
		EnableLogger:    true,
		EnableTimeout:   false, // Disabled for easier debugging
		EnableCORS:      true,
		EnableRateLimit: false,
	}
}

func defaultProdConfig() MiddlewareConfig {
	return MiddlewareConfig{
		EnableRecover:   true,
		EnableRequestID: true,
		EnableLogger:    true,
		EnableTimeout:   true,
		EnableCORS:      true,
		EnableRateLimit: true,
	}
}

// Load reads configuration from the environment, after loading .env files
// when present. Variables already set in the environment win.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.Middleware = defaultDevConfig()
	if cfg.IsProduction() {
		cfg.Middleware = defaultProdConfig()
	}
	cfg.Captions.DefaultLanguages = trimAll(cfg.Captions.DefaultLanguages)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	// Validate paths
	if err := validatePaths(c); err != nil {
		return err
	}

	// Validate timeouts
	if err := validateTimeouts(c); err != nil {
		return err
	}

	// Validate services
	if err := validateServices(c); err != nil {
		return err
	}

	return nil
}

func validatePaths(c *Config) error {
	paths := []struct {
		path string
		name string
	}{
		{c.LogDir, "log directory"},
		{c.TempDir, "temp directory"},
		{filepath.Dir(c.Database.Path), "database directory"},
	}

	for _, p := range paths {
		if err := os.MkdirAll(p.path, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", p.name, err)
		}
	}

	return nil
}

func validateTimeouts(c *Config) error {
	timeouts := []struct {
		value time.Duration
		name  string
	}{
		{c.ReadTimeout, "read timeout"},
		{c.WriteTimeout, "write timeout"},
		{c.RequestTimeout, "request timeout"},
		{c.Captions.Timeout, "caption timeout"},
		{c.Download.Timeout, "download timeout"},
	}

	for _, t := range timeouts {
		if t.value <= 0 {
			return fmt.Errorf("%s must be positive", t.name)
		}
	}

	// The connection must stay writable long enough to deliver the 504.
	if c.WriteTimeout <= c.RequestTimeout {
		return fmt.Errorf("write timeout (%s) must exceed request timeout (%s)", c.WriteTimeout, c.RequestTimeout)
	}
	return nil
}

func validateServices(c *Config) error {
	switch c.Model.Backend {
	case BackendFasterWhisper:
	case BackendOpenAI:
		if c.Model.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the %s backend", BackendOpenAI)
		}
	default:
		return fmt.Errorf("unknown model backend %q", c.Model.Backend)
	}

	switch c.Captions.API {
	case CaptionAPIListing, CaptionAPIFlat:
	default:
		return fmt.Errorf("unknown caption api %q", c.Captions.API)
	}

	if len(c.Captions.DefaultLanguages) == 0 {
		return fmt.Errorf("at least one default language is required")
	}
	if c.Model.BeamSize <= 0 {
		return fmt.Errorf("beam size must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate limit must be positive when enabled")
	}
	return nil
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
