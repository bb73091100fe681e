package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                   string
	AllowedOrigin          string
	DatabaseURL            string
	RedisAddr              string
	RedisPassword          string
	RedisDB                int
	AuthSecret             string
	AccessTokenTTLMinutes  int
	IdempotencyTTLMinutes  int
	BootstrapManagerUser   string
	BootstrapManagerSecret string
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	idemTTL, err := strconv.Atoi(getEnv("SALE_IDEMPOTENCY_TTL_MINUTES", "1440"))
	if err != nil || idemTTL < 1 {
		idemTTL = 1440
	}

	cfg := Config{
		Port:                   getEnv("PORT", "4000"),
		AllowedOrigin:          getEnv("ALLOWED_ORIGIN", "http://localhost:3000"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                redisDB,
		AuthSecret:             strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:  tokenTTL,
		IdempotencyTTLMinutes:  idemTTL,
		BootstrapManagerUser:   strings.ToLower(strings.TrimSpace(os.Getenv("BOOTSTRAP_MANAGER_USERNAME"))),
		BootstrapManagerSecret: os.Getenv("BOOTSTRAP_MANAGER_PASSWORD"),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
