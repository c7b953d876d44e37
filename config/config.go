package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

var (
	PORT       string
	DB_URL     string
	REDIS_URL  string
	JWT_SECRET string
	APP_URL    string

	CHARGILY_API_KEY        string
	CHARGILY_WEBHOOK_SECRET string
	CHARGILY_BASE_URL       string

	PADDLE_API_KEY        string
	PADDLE_WEBHOOK_SECRET string
	PADDLE_SANDBOX        bool
	PADDLE_PRICE_IDS      map[string]string
)

func LoadEnv() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}

	PORT = getEnv("PORT", "8080")
	DB_URL = mustEnv("DB_URL")
	REDIS_URL = getEnv("REDIS_URL", "redis://localhost:6379/0")
	JWT_SECRET = mustEnv("JWT_SECRET")
	APP_URL = getEnv("APP_URL", "http://localhost:3000")

	CHARGILY_API_KEY = mustEnv("CHARGILY_API_KEY")
	CHARGILY_WEBHOOK_SECRET = mustEnv("CHARGILY_WEBHOOK_SECRET")
	CHARGILY_BASE_URL = getEnv("CHARGILY_BASE_URL", "")

	PADDLE_API_KEY = mustEnv("PADDLE_API_KEY")
	PADDLE_WEBHOOK_SECRET = mustEnv("PADDLE_WEBHOOK_SECRET")
	PADDLE_SANDBOX = getEnv("PADDLE_SANDBOX", "false") == "true"
	PADDLE_PRICE_IDS = parsePriceIDs(getEnv("PADDLE_PRICE_IDS", ""))
}

// parsePriceIDs reads "plan:cycle=pri_xxx,plan:cycle=pri_yyy".
func parsePriceIDs(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		idx := strings.LastIndex(pair, "=")
		if idx <= 0 || idx == len(pair)-1 {
			log.Printf("Skipping malformed PADDLE_PRICE_IDS entry: %q", pair)
			continue
		}
		out[pair[:idx]] = pair[idx+1:]
	}
	return out
}

func mustEnv(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("Missing required environment variable: %s", key)
	}
	return v
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
