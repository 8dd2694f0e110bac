package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr          string
	MongoURI      string
	MongoDatabase string
	JWTSecret     string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	CORSOrigin    string
	MeiliURL      string
	MeiliAPIKey   string
	RedisURL      string
}

func Load() Config {
	_ = godotenv.Load(".env")

	return Config{
		Addr:          getenv("API_ADDR", ":8080"),
		MongoURI:      getenv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase: getenv("MONGODB_DATABASE", "tradepost"),
		JWTSecret:     getenv("TRADEPOST_JWT_SECRET", "tradepost-dev-secret"),
		AccessTTL:     time.Duration(getenvInt("TRADEPOST_ACCESS_TTL_SECONDS", 3600)) * time.Second,
		RefreshTTL:    time.Duration(getenvInt("TRADEPOST_REFRESH_TTL_SECONDS", 2592000)) * time.Second,
		CORSOrigin:    getenv("TRADEPOST_CORS_ORIGIN", "*"),
		MeiliURL:      getenv("MEILI_URL", ""),
		MeiliAPIKey:   getenv("MEILI_MASTER_KEY", ""),
		RedisURL:      getenv("REDIS_URL", "redis://localhost:6379/0"),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
