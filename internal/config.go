package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds client settings
type Config struct {
	APIURL        string        `yaml:"api_url" validate:"required,url"`
	ReadTimeout   time.Duration `yaml:"read_timeout" validate:"gt=0"`
	ChatTimeout   time.Duration `yaml:"chat_timeout" validate:"gt=0"`
	UploadTimeout time.Duration `yaml:"upload_timeout" validate:"gt=0"`

	Store        string        `yaml:"store" validate:"oneof=sqlite redis memory"`
	StorePath    string        `yaml:"store_path" validate:"required_if=Store sqlite"`
	RedisURL     string        `yaml:"redis_url" validate:"required_if=Store redis"`
	StoreKey     string        `yaml:"store_key" validate:"required"`
	MaxDocuments int           `yaml:"max_documents" validate:"gt=0"`
	CacheTTL     time.Duration `yaml:"cache_ttl" validate:"gte=0"`

	RemoteDelete bool          `yaml:"remote_delete"`
	PollInterval time.Duration `yaml:"poll_interval" validate:"gt=0"`

	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=error warn info debug"`
	LogFile  string `yaml:"log_file"`
}

// DefaultConfigDir returns ~/.doc-session
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".doc-session"
	}
	return filepath.Join(home, ".doc-session")
}

// DefaultConfig returns the built-in settings
func DefaultConfig() Config {
	dir := DefaultConfigDir()
	return Config{
		APIURL:        "http://localhost:8000/api",
		ReadTimeout:   15 * time.Second,
		ChatTimeout:   30 * time.Second,
		UploadTimeout: 60 * time.Second,
		Store:         "sqlite",
		StorePath:     filepath.Join(dir, "documents.db"),
		RedisURL:      "redis://localhost:6379/0",
		StoreKey:      "doc-session:documents",
		MaxDocuments:  50,
		RemoteDelete:  true,
		PollInterval:  2 * time.Second,
		LogLevel:      "info",
	}
}

// LoadConfig layers defaults, an optional YAML file, .env and environment variables.
// An empty path means the default config file; a missing default file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(DefaultConfigDir(), "config.yaml")
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, &ParseError{Source: "config", Key: path, Err: err}
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := godotenv.Load(); err != nil {
		LogDebug(".env file not found, using system environment")
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// Validate checks the settings
func (c Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.APIURL = getEnv("DOC_SESSION_API_URL", cfg.APIURL)
	cfg.Store = getEnv("DOC_SESSION_STORE", cfg.Store)
	cfg.StorePath = getEnv("DOC_SESSION_STORE_PATH", cfg.StorePath)
	cfg.RedisURL = getEnv("DOC_SESSION_REDIS_URL", cfg.RedisURL)
	cfg.LogFile = getEnv("DOC_SESSION_LOG_FILE", cfg.LogFile)
	cfg.LogLevel = getEnv("DOC_SESSION_LOG_LEVEL", cfg.LogLevel)

	if v, ok := os.LookupEnv("DOC_SESSION_MAX_DOCUMENTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DOC_SESSION_MAX_DOCUMENTS: %w", err)
		}
		cfg.MaxDocuments = n
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"DOC_SESSION_CACHE_TTL", &cfg.CacheTTL},
		{"DOC_SESSION_READ_TIMEOUT", &cfg.ReadTimeout},
		{"DOC_SESSION_CHAT_TIMEOUT", &cfg.ChatTimeout},
		{"DOC_SESSION_UPLOAD_TIMEOUT", &cfg.UploadTimeout},
	}
	for _, d := range durations {
		v, ok := os.LookupEnv(d.key)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
