package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config del servicio. Se carga de un YAML opcional y se pisa con env
// vars (el env siempre gana, para dev/handoff).
type Config struct {
	Port      string `yaml:"port"`
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`

	// Record Store. Vacío => repos in-memory.
	DatabaseDSN string `yaml:"databaseDsn"`

	// Hints de autocompletado. Vacío => store in-memory.
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	// File/PDF store. Endpoint vacío => store in-memory.
	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSsl"`

	// Gateway de notificaciones. APIKey vacía => gateway dummy.
	SendgridAPIKey string `yaml:"sendgridApiKey"`
	NotifyFrom     string `yaml:"notifyFrom"`
	NotifyFromName string `yaml:"notifyFromName"`
	NotifyTo       string `yaml:"notifyTo"`

	// Verificador de tokens. BaseURL vacía => modo dev (headers X-Debug-*).
	AuthBaseURL string `yaml:"authBaseUrl"`
	AuthAPIKey  string `yaml:"authApiKey"`
}

// Load lee el YAML (si existe) y aplica overrides de env.
func Load(path string) (Config, error) {
	cfg := Config{
		Port:        "8080",
		MinioBucket: "exam-files",
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	set(&cfg.Port, "PORT")
	set(&cfg.LogLevel, "LOG_LEVEL")
	set(&cfg.LogFormat, "LOG_FORMAT")
	set(&cfg.DatabaseDSN, "DB_DSN")
	set(&cfg.RedisAddr, "REDIS_ADDR")
	set(&cfg.RedisPassword, "REDIS_PASSWORD")
	set(&cfg.MinioEndpoint, "MINIO_ENDPOINT")
	set(&cfg.MinioAccessKey, "MINIO_ACCESS_KEY")
	set(&cfg.MinioSecretKey, "MINIO_SECRET_KEY")
	set(&cfg.MinioBucket, "MINIO_BUCKET")
	set(&cfg.SendgridAPIKey, "SENDGRID_API_KEY")
	set(&cfg.NotifyFrom, "NOTIFY_FROM")
	set(&cfg.NotifyFromName, "NOTIFY_FROM_NAME")
	set(&cfg.NotifyTo, "NOTIFY_TO")
	set(&cfg.AuthBaseURL, "AUTH_BASE_URL")
	set(&cfg.AuthAPIKey, "AUTH_API_KEY")

	if v := strings.TrimSpace(os.Getenv("MINIO_USE_SSL")); v != "" {
		cfg.MinioUseSSL = strings.EqualFold(v, "true") || v == "1"
	}
}
