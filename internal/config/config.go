package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location, relative to the working directory.
const ConfigPath = "config.yaml"

// Providers supported for text generation.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	Provider        string `yaml:"provider"`
	GeminiAPIKey    string `yaml:"geminiAPIKey"`
	GenerationModel string `yaml:"generationModel"`
	OllamaBaseURL   string `yaml:"ollamaBaseURL"`
	OpenAIBaseURL   string `yaml:"openaiBaseURL"`
	OpenAIAPIKey    string `yaml:"openaiAPIKey"`

	// DatabaseURL selects the Postgres store; empty keeps everything in memory.
	DatabaseURL string `yaml:"databaseURL"`

	RedisAddr          string `yaml:"redisAddr"`
	RedisPassword      string `yaml:"redisPassword"`
	RateLimitPerMinute int    `yaml:"rateLimitPerMinute"`
	TrustedProxies     string `yaml:"trustedProxies"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	MaxUploadBytes int64 `yaml:"maxUploadBytes"`

	RetentionHours     int `yaml:"retentionHours"`
	RetentionSweepMins int `yaml:"retentionSweepMins"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("AI_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := os.Getenv("GENERATION_MODEL"); v != "" {
		cfg.GenerationModel = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		cfg.OllamaBaseURL = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.OpenAIBaseURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitPerMinute = n
		}
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("RETENTION_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RetentionHours = n
		}
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.Provider == "" {
		cfg.Provider = ProviderGemini
	}
	if cfg.GenerationModel == "" {
		switch cfg.Provider {
		case ProviderOllama:
			cfg.GenerationModel = "qwen3:8b"
		case ProviderOpenAI:
			cfg.GenerationModel = "gpt-4o-mini"
		default:
			cfg.GenerationModel = "gemini-2.0-flash"
		}
	}
	if cfg.OllamaBaseURL == "" {
		cfg.OllamaBaseURL = "http://localhost:11434"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20 << 20
	}
	if cfg.RetentionSweepMins <= 0 {
		cfg.RetentionSweepMins = 10
	}
	if cfg.MinioBucket == "" {
		cfg.MinioBucket = "documents"
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	switch cfg.Provider {
	case ProviderGemini:
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			return errors.New("config: geminiAPIKey is required for provider gemini (set in config.yaml or GEMINI_API_KEY)")
		}
	case ProviderOllama:
		if strings.TrimSpace(cfg.OllamaBaseURL) == "" {
			return errors.New("config: ollamaBaseURL is required for provider ollama")
		}
	case ProviderOpenAI:
		if strings.TrimSpace(cfg.OpenAIBaseURL) == "" {
			return errors.New("config: openaiBaseURL is required for provider openai")
		}
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return errors.New("config: openaiAPIKey is required for provider openai (set in config.yaml or OPENAI_API_KEY)")
		}
	default:
		return fmt.Errorf("config: unknown provider %q (expected gemini, ollama or openai)", cfg.Provider)
	}
	if cfg.RateLimitPerMinute > 0 && strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: rateLimitPerMinute requires redisAddr (set in config.yaml or REDIS_ADDR)")
	}
	if cfg.MinioEndpoint != "" {
		if cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" {
			return errors.New("config: minio archival requires minioAccessKey and minioSecretKey")
		}
	}
	if cfg.RetentionHours < 0 {
		return errors.New("config: retentionHours must be >= 0")
	}
	return nil
}

// TrustedProxyList splits the comma-separated trustedProxies entry.
func (c FileConfig) TrustedProxyList() []string {
	if strings.TrimSpace(c.TrustedProxies) == "" {
		return nil
	}
	parts := strings.Split(c.TrustedProxies, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
