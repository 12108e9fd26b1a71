package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	API     APIConfig
	OAuth   OAuthConfig
	Storage StorageConfig
	Orders  OrdersConfig
	Options OptionsConfig
	Draft   DraftConfig
}

type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type OAuthConfig struct {
	TokenPath    string
	ClientID     string
	ClientSecret string
}

type StorageConfig struct {
	Dir string
}

type OrdersConfig struct {
	PageSize    int
	AllPageSize int
}

type OptionsConfig struct {
	CacheTTL time.Duration
}

type DraftConfig struct {
	Debounce time.Duration
	MaxAge   time.Duration
	SweepAge time.Duration
}

func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		API: APIConfig{
			BaseURL: getEnv("API_BASE_URL", "https://5secom.dientoan.vn/api"),
			Timeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),
		},
		OAuth: OAuthConfig{
			TokenPath:    getEnv("OAUTH_TOKEN_PATH", "/oauth2/token"),
			ClientID:     getEnv("OAUTH_CLIENT_ID", ""),
			ClientSecret: getEnv("OAUTH_CLIENT_SECRET", ""),
		},
		Storage: StorageConfig{
			Dir: getEnv("STORAGE_DIR", defaultStorageDir()),
		},
		Orders: OrdersConfig{
			PageSize:    getEnvInt("PAGE_SIZE", 20),
			AllPageSize: getEnvInt("ALL_PAGE_SIZE", 100),
		},
		Options: OptionsConfig{
			CacheTTL: getEnvDuration("OPTIONS_CACHE_TTL", time.Hour),
		},
		Draft: DraftConfig{
			Debounce: getEnvDuration("DRAFT_DEBOUNCE", 2*time.Second),
			MaxAge:   getEnvDuration("DRAFT_MAX_AGE", 24*time.Hour),
			SweepAge: getEnvDuration("DRAFT_SWEEP_AGE", 7*24*time.Hour),
		},
	}

	return cfg, nil
}

func defaultStorageDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".secom"
	}
	return home + "/.secom"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
