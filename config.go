package tinychat

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// DefaultBaseURL is the DeepSeek OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.deepseek.com/v1"

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	ChatDir     string
	Addr        string
	DatabaseURL string
}

// LoadConfig reads configuration from a .env file when present, falling back
// to the process environment. A missing API key is not an error here; the
// gateway rejects requests until one is configured.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file, falling back to environment variables")
	}

	return &Config{
		APIKey:      getEnv("DEEPSEEK_API_KEY", ""),
		BaseURL:     getEnv("DEEPSEEK_BASE_URL", DefaultBaseURL),
		Model:       getEnv("DEEPSEEK_MODEL", "deepseek-chat"),
		ChatDir:     getEnv("CHAT_DIR", ".chats"),
		Addr:        getEnv("CHAT_ADDR", ":8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
