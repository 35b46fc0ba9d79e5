package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	AppName     = "photo-lister"
	EnvFileName = "config.env"
)

// Config holds the process-wide settings read at startup.
type Config struct {
	Addr           string
	DBPath         string
	DataDir        string
	LogFile        string
	MaxUploadBytes int64
	ThumbnailSize  int

	// Initial provider selection, used until an explicit update is stored.
	AIProvider   string
	AIModel      string
	AITimeout    time.Duration
	AIMaxRetries int
	AICache      bool
	UsageWindow  time.Duration

	// SecretKey encrypts API keys saved through the settings endpoint.
	// Empty disables stored secrets.
	SecretKey string

	OpenAIBaseURL    string
	AnthropicBaseURL string
	OllamaHost       string

	AssetBackend   string
	AzureAccount   string
	AzureKey       string
	AzureContainer string
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory and from a .env file in the working directory. Errors are
// ignored since neither file has to exist. Variables already present in the
// environment win.
func LoadEnvFile() {
	if configBase, err := os.UserConfigDir(); err == nil {
		_ = godotenv.Load(filepath.Join(configBase, AppName, EnvFileName))
	}
	_ = godotenv.Load()
}

// Load reads the configuration from the environment, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:           getEnvOrDefault("LISTER_ADDR", ":8080"),
		DBPath:         getEnvOrDefault("LISTER_DB_PATH", "lister.db"),
		DataDir:        getEnvOrDefault("LISTER_DATA_DIR", "data"),
		LogFile:        getEnvOrDefault("LISTER_LOG_FILE", "photo-lister.log"),
		MaxUploadBytes: parseIntOrDefault("LISTER_MAX_UPLOAD_BYTES", 10*1024*1024),
		ThumbnailSize:  int(parseIntOrDefault("LISTER_THUMBNAIL_SIZE", 300)),

		AIProvider:   strings.ToLower(os.Getenv("AI_PROVIDER")),
		AIModel:      os.Getenv("AI_MODEL"),
		AITimeout:    parseDurationOrDefault("AI_TIMEOUT", 120*time.Second),
		AIMaxRetries: int(parseIntOrDefault("AI_MAX_RETRIES", 2)),
		AICache:      parseBoolOrDefault("AI_CACHE", true),
		UsageWindow:  parseDurationOrDefault("AI_USAGE_WINDOW", 24*time.Hour),

		SecretKey: os.Getenv("LISTER_SECRET_KEY"),

		OpenAIBaseURL:    os.Getenv("OPENAI_BASE_URL"),
		AnthropicBaseURL: os.Getenv("ANTHROPIC_BASE_URL"),
		OllamaHost:       os.Getenv("OLLAMA_HOST"),

		AssetBackend:   strings.ToLower(getEnvOrDefault("ASSET_BACKEND", "local")),
		AzureAccount:   os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureKey:       os.Getenv("AZURE_STORAGE_KEY"),
		AzureContainer: getEnvOrDefault("AZURE_STORAGE_CONTAINER", "photos"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("LISTER_MAX_UPLOAD_BYTES must be > 0 (got %d)", c.MaxUploadBytes)
	}
	if c.ThumbnailSize <= 0 {
		return fmt.Errorf("LISTER_THUMBNAIL_SIZE must be > 0 (got %d)", c.ThumbnailSize)
	}
	if c.AITimeout <= 0 {
		return fmt.Errorf("AI_TIMEOUT must be > 0 (got %s)", c.AITimeout)
	}
	if c.AIMaxRetries < 0 {
		return fmt.Errorf("AI_MAX_RETRIES must be >= 0 (got %d)", c.AIMaxRetries)
	}
	if c.UsageWindow <= 0 {
		return fmt.Errorf("AI_USAGE_WINDOW must be > 0 (got %s)", c.UsageWindow)
	}
	switch c.AssetBackend {
	case "local":
	case "azure":
		if c.AzureAccount == "" || c.AzureKey == "" {
			return fmt.Errorf("ASSET_BACKEND=azure requires AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY")
		}
	default:
		return fmt.Errorf("invalid ASSET_BACKEND: %q (use local or azure)", c.AssetBackend)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}
