package config

import (
	"errors"
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

	RBACDB    DatabaseConfig
	Warehouse DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Auth      AuthConfig
	CORS      CORSConfig
	Log       LogConfig
	Dashboard DashboardConfig
	Exports   ExportsConfig
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
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	Issuer        string
}

// AuthConfig carries authentication knobs outside of token signing.
type AuthConfig struct {
	InstitutionSuffix string
	BcryptCost        int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// DashboardConfig governs caching of scoped analytics payloads.
type DashboardConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// ExportsConfig toggles tabular report exports.
type ExportsConfig struct {
	Enabled bool
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.RBACDB = DatabaseConfig{
		Host:         v.GetString("RBAC_DB_HOST"),
		Port:         v.GetInt("RBAC_DB_PORT"),
		User:         v.GetString("RBAC_DB_USER"),
		Password:     v.GetString("RBAC_DB_PASSWORD"),
		Name:         v.GetString("RBAC_DB_NAME"),
		SSLMode:      v.GetString("RBAC_DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("RBAC_DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("RBAC_DB_MAX_IDLE_CONNS"),
	}

	cfg.Warehouse = DatabaseConfig{
		Host:         v.GetString("WAREHOUSE_DB_HOST"),
		Port:         v.GetInt("WAREHOUSE_DB_PORT"),
		User:         v.GetString("WAREHOUSE_DB_USER"),
		Password:     v.GetString("WAREHOUSE_DB_PASSWORD"),
		Name:         v.GetString("WAREHOUSE_DB_NAME"),
		SSLMode:      v.GetString("WAREHOUSE_DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("WAREHOUSE_DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("WAREHOUSE_DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:        v.GetString("JWT_SECRET"),
		AccessExpiry:  parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiry: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 30*24*time.Hour),
		Issuer:        v.GetString("JWT_ISSUER"),
	}

	cfg.Auth = AuthConfig{
		InstitutionSuffix: v.GetString("INSTITUTION_SUFFIX"),
		BcryptCost:        v.GetInt("BCRYPT_COST"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Dashboard = DashboardConfig{
		CacheEnabled: v.GetBool("ENABLE_DASHBOARD_CACHE"),
		CacheTTL:     parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Exports = ExportsConfig{
		Enabled: v.GetBool("ENABLE_EXPORTS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("RBAC_DB_HOST", "localhost")
	v.SetDefault("RBAC_DB_PORT", 5432)
	v.SetDefault("RBAC_DB_USER", "postgres")
	v.SetDefault("RBAC_DB_PASSWORD", "postgres")
	v.SetDefault("RBAC_DB_NAME", "ucu_rbac")
	v.SetDefault("RBAC_DB_SSL_MODE", "disable")
	v.SetDefault("RBAC_DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("RBAC_DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("WAREHOUSE_DB_HOST", "localhost")
	v.SetDefault("WAREHOUSE_DB_PORT", 5432)
	v.SetDefault("WAREHOUSE_DB_USER", "postgres")
	v.SetDefault("WAREHOUSE_DB_PASSWORD", "postgres")
	v.SetDefault("WAREHOUSE_DB_NAME", "ucu_data_warehouse")
	v.SetDefault("WAREHOUSE_DB_SSL_MODE", "disable")
	v.SetDefault("WAREHOUSE_DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("WAREHOUSE_DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "720h")
	v.SetDefault("JWT_ISSUER", "ucu-analytics-api")

	v.SetDefault("INSTITUTION_SUFFIX", "ucu")
	v.SetDefault("BCRYPT_COST", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_DASHBOARD_CACHE", false)
	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")

	v.SetDefault("ENABLE_EXPORTS", true)
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
