package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/youruser/thumbapp/internal/util"
)

// MaxFileSizeLimit is the largest MAX_FILE_SIZE_BYTES accepted (2MB).
const MaxFileSizeLimit = 2_000_000

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config holds all configuration for the application
type Config struct {
	Environment string
	LogLevel    string
	Provider    string

	OpenAIAPIKey            string
	OpenAIBaseURL           string
	OpenAIModel             string
	OpenAIQuality           string
	OpenAIImageSize         string
	OpenAIFallbackSize      string
	OpenAITimeout           time.Duration
	OpenAIRequestsPerMinute int

	GeminiAPIKey string
	GeminiModel  string

	DataDir    string
	CORSOrigin string
	ServerHost string
	ServerPort int

	MaxFileSizeBytes int
	JPEGQualityStart int
	JPEGQualityMin   int
	JPEGQualityStep  int

	TitleFontPath    string
	TitleFontSize    int
	TitleFontMinSize int

	MaxThumbnailsList int
	GenerationTimeout time.Duration
	BackgroundRetries int
	RetryInitialDelay time.Duration
	JaegerEndpoint    string
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	cfg := &Config{
		Environment: getString("ENVIRONMENT", "development"),
		LogLevel:    strings.ToUpper(getString("LOG_LEVEL", "INFO")),
		Provider:    strings.ToLower(getString("IMAGE_PROVIDER", ProviderOpenAI)),

		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:      strings.TrimRight(getString("OPENAI_BASE_URL", "https://api.openai.com/v1"), "/"),
		OpenAIModel:        getString("OPENAI_MODEL", "dall-e-3"),
		OpenAIQuality:      getString("OPENAI_QUALITY", "standard"),
		OpenAIImageSize:    getString("OPENAI_IMAGE_SIZE", "1536x864"),
		OpenAIFallbackSize: getString("OPENAI_FALLBACK_SIZE", "1024x1024"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getString("GEMINI_MODEL", "gemini-2.5-flash-image"),

		DataDir:    getString("DATA_DIR", "./data/thumbnails"),
		CORSOrigin: getString("CORS_ORIGIN", "http://localhost:5173"),
		ServerHost: getString("SERVER_HOST", "127.0.0.1"),

		TitleFontPath:  os.Getenv("TITLE_FONT_PATH"),
		JaegerEndpoint: os.Getenv("OTEL_EXPORTER_JAEGER_ENDPOINT"),
	}

	var err error
	ints := []struct {
		dst  *int
		name string
		def  int
	}{
		{&cfg.ServerPort, "SERVER_PORT", 8000},
		{&cfg.OpenAIRequestsPerMinute, "OPENAI_REQUESTS_PER_MINUTE", 20},
		{&cfg.MaxFileSizeBytes, "MAX_FILE_SIZE_BYTES", MaxFileSizeLimit},
		{&cfg.JPEGQualityStart, "JPEG_QUALITY_START", 92},
		{&cfg.JPEGQualityMin, "JPEG_QUALITY_MIN", 76},
		{&cfg.JPEGQualityStep, "JPEG_QUALITY_STEP", 4},
		{&cfg.TitleFontSize, "TITLE_FONT_SIZE", 96},
		{&cfg.TitleFontMinSize, "TITLE_FONT_MIN_SIZE", 32},
		{&cfg.MaxThumbnailsList, "MAX_THUMBNAILS_LIST", 50},
		{&cfg.BackgroundRetries, "BACKGROUND_RETRIES", 2},
	}
	for _, v := range ints {
		if *v.dst, err = getInt(v.name, v.def); err != nil {
			return nil, err
		}
	}

	timeoutSec, err := getInt("OPENAI_TIMEOUT_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	cfg.OpenAITimeout = time.Duration(timeoutSec) * time.Second

	genSec, err := getInt("GENERATION_TIMEOUT_SECONDS", 90)
	if err != nil {
		return nil, err
	}
	cfg.GenerationTimeout = time.Duration(genSec) * time.Second

	retryMs, err := getInt("BACKGROUND_RETRY_INTERVAL_MS", 500)
	if err != nil {
		return nil, err
	}
	cfg.RetryInitialDelay = time.Duration(retryMs) * time.Millisecond

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := util.EnsureDir(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("DATA_DIR: %w", err)
	}
	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}

	return cfg, nil
}

// Validate checks field ranges and provider credentials.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of DEBUG, INFO, WARNING, ERROR, CRITICAL, got %q", c.LogLevel)
	}

	switch c.Provider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required")
		}
		if !strings.HasPrefix(c.OpenAIAPIKey, "sk-") {
			return fmt.Errorf("OPENAI_API_KEY must start with 'sk-'")
		}
		if len(c.OpenAIAPIKey) < 20 {
			return fmt.Errorf("OPENAI_API_KEY appears to be too short")
		}
		if _, _, err := ParseSize(c.OpenAIImageSize); err != nil {
			return fmt.Errorf("OPENAI_IMAGE_SIZE: %w", err)
		}
		if _, _, err := ParseSize(c.OpenAIFallbackSize); err != nil {
			return fmt.Errorf("OPENAI_FALLBACK_SIZE: %w", err)
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required")
		}
	default:
		return fmt.Errorf("IMAGE_PROVIDER must be %q or %q, got %q", ProviderOpenAI, ProviderGemini, c.Provider)
	}

	if c.OpenAITimeout < 5*time.Second || c.OpenAITimeout > 120*time.Second {
		return fmt.Errorf("OPENAI_TIMEOUT_SECONDS must be between 5 and 120")
	}
	if c.JPEGQualityStart < 1 || c.JPEGQualityStart > 100 || c.JPEGQualityMin < 1 || c.JPEGQualityMin > 100 {
		return fmt.Errorf("JPEG qualities must be between 1 and 100")
	}
	if c.JPEGQualityMin > c.JPEGQualityStart {
		return fmt.Errorf("JPEG_QUALITY_MIN cannot be higher than JPEG_QUALITY_START")
	}
	if c.JPEGQualityStep < 1 {
		return fmt.Errorf("JPEG_QUALITY_STEP must be positive")
	}
	if c.MaxFileSizeBytes <= 0 || c.MaxFileSizeBytes > MaxFileSizeLimit {
		return fmt.Errorf("MAX_FILE_SIZE_BYTES must be between 1 and %d", MaxFileSizeLimit)
	}
	if c.TitleFontSize < 20 || c.TitleFontSize > 200 {
		return fmt.Errorf("TITLE_FONT_SIZE must be between 20 and 200")
	}
	if c.TitleFontMinSize < 8 || c.TitleFontMinSize > c.TitleFontSize {
		return fmt.Errorf("TITLE_FONT_MIN_SIZE must be between 8 and TITLE_FONT_SIZE")
	}
	if c.MaxThumbnailsList < 1 || c.MaxThumbnailsList > 200 {
		return fmt.Errorf("MAX_THUMBNAILS_LIST must be between 1 and 200")
	}
	if c.BackgroundRetries < 0 || c.BackgroundRetries > 5 {
		return fmt.Errorf("BACKGROUND_RETRIES must be between 0 and 5")
	}
	if c.GenerationTimeout <= 0 {
		return fmt.Errorf("GENERATION_TIMEOUT_SECONDS must be positive")
	}
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// ParseSize parses a WIDTHxHEIGHT string such as "1536x864".
func ParseSize(s string) (int, int, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("size %q is not WIDTHxHEIGHT", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("size %q has an invalid width", s)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("size %q has an invalid height", s)
	}
	return width, height, nil
}

func getString(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

func getInt(name string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", name, err)
	}
	return v, nil
}
