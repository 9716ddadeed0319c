package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port                  string
	Env                   string
	LogLevel              string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	JWTSecret             string
	TokenTTLMinutes       int
	ReportCacheTTLSeconds int
	AllowRegistration     bool
}

// Load reads the environment, after merging in a .env file from the working directory if one exists.
// Variables already set in the environment win over the file.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not read .env file")
	}

	cfg := Config{
		Port:                  getEnv("PORT", "5000"),
		Env:                   strings.ToLower(getEnv("APP_ENV", "development")),
		LogLevel:              strings.ToLower(getEnv("LOG_LEVEL", "info")),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "*"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               getInt("REDIS_DB", 0, 0),
		JWTSecret:             strings.TrimSpace(os.Getenv("JWT_SECRET")),
		TokenTTLMinutes:       getInt("TOKEN_TTL_MINUTES", 60, 1),
		ReportCacheTTLSeconds: getInt("REPORT_CACHE_TTL_SECONDS", 30, 1),
		AllowRegistration:     getBool("ALLOW_REGISTRATION", true),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

// getInt falls back when the value is missing, malformed or below min.
func getInt(key string, fallback int, min int) int {
	val, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || val < min {
		return fallback
	}
	return val
}

func getBool(key string, fallback bool) bool {
	val, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}
	return val
}
