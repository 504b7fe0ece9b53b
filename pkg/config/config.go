package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Pagination PaginationConfig
	Stats      StatsConfig
	Metrics    MetricsConfig
	Export     ExportConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// PaginationConfig bounds skip/limit list endpoints.
type PaginationConfig struct {
	DefaultLimit int
	MaxLimit     int
}

// StatsConfig governs caching of attendance aggregates.
type StatsConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

// ExportConfig governs background export jobs and their files.
type ExportConfig struct {
	Dir             string
	SigningSecret   string
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	Workers         int
	MaxRetries      int
	RetryDelay      time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = strings.TrimRight(v.GetString("API_PREFIX"), "/")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Pagination = PaginationConfig{
		DefaultLimit: v.GetInt("DEFAULT_PAGE_SIZE"),
		MaxLimit:     v.GetInt("MAX_PAGE_SIZE"),
	}
	if cfg.Pagination.MaxLimit <= 0 {
		cfg.Pagination.MaxLimit = 100
	}
	if cfg.Pagination.DefaultLimit <= 0 || cfg.Pagination.DefaultLimit > cfg.Pagination.MaxLimit {
		cfg.Pagination.DefaultLimit = 20
	}

	cfg.Stats = StatsConfig{
		CacheEnabled: v.GetBool("ENABLE_STATS_CACHE"),
		CacheTTL:     parseDuration(v.GetString("STATS_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	cfg.Export = ExportConfig{
		Dir:             v.GetString("EXPORT_DIR"),
		SigningSecret:   v.GetString("EXPORT_SIGNING_SECRET"),
		ResultTTL:       parseDuration(v.GetString("EXPORT_RESULT_TTL"), 24*time.Hour),
		CleanupInterval: parseDuration(v.GetString("EXPORT_CLEANUP_INTERVAL"), time.Hour),
		Workers:         v.GetInt("EXPORT_WORKERS"),
		MaxRetries:      v.GetInt("EXPORT_MAX_RETRIES"),
		RetryDelay:      parseDuration(v.GetString("EXPORT_RETRY_DELAY"), 5*time.Second),
	}
	if cfg.Export.SigningSecret == "" {
		cfg.Export.SigningSecret = cfg.JWT.Secret
	}
	if cfg.Export.Workers <= 0 {
		cfg.Export.Workers = 2
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "school_mgmt")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "school-mgmt-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DEFAULT_PAGE_SIZE", 20)
	v.SetDefault("MAX_PAGE_SIZE", 100)

	v.SetDefault("ENABLE_STATS_CACHE", false)
	v.SetDefault("STATS_CACHE_TTL", "5m")
	v.SetDefault("ENABLE_METRICS", true)

	v.SetDefault("EXPORT_DIR", "./exports")
	v.SetDefault("EXPORT_SIGNING_SECRET", "")
	v.SetDefault("EXPORT_RESULT_TTL", "24h")
	v.SetDefault("EXPORT_CLEANUP_INTERVAL", "1h")
	v.SetDefault("EXPORT_WORKERS", 2)
	v.SetDefault("EXPORT_MAX_RETRIES", 3)
	v.SetDefault("EXPORT_RETRY_DELAY", "5s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
