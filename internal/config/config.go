package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	AuthSecret            string
	AccessTokenTTLMinutes int
	ManagerPIN            string
	GeminiAPIKey          string
	GeminiModel           string
	PointsDivisor         int64
	OpeningCash           decimal.Decimal
	AdvisoryTTLSeconds    int
	StrictStock           bool
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	advisoryTTL, err := strconv.Atoi(getEnv("ADVISORY_CACHE_TTL_SECONDS", "300"))
	if err != nil || advisoryTTL < 1 {
		advisoryTTL = 300
	}
	pointsDivisor, err := strconv.ParseInt(getEnv("POINTS_DIVISOR", "10"), 10, 64)
	if err != nil || pointsDivisor < 1 {
		pointsDivisor = 10
	}
	openingCash, err := decimal.NewFromString(getEnv("OPENING_CASH", "200.00"))
	if err != nil || openingCash.IsNegative() {
		openingCash = decimal.NewFromInt(200)
	}
	strictStock := strings.EqualFold(getEnv("STRICT_STOCK", "false"), "true")

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		ManagerPIN:            strings.TrimSpace(os.Getenv("MANAGER_PIN")),
		GeminiAPIKey:          strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:           strings.TrimSpace(os.Getenv("GEMINI_MODEL")),
		PointsDivisor:         pointsDivisor,
		OpeningCash:           openingCash,
		AdvisoryTTLSeconds:    advisoryTTL,
		StrictStock:           strictStock,
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
