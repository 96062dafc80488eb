package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	GeminiAPIKey          string
	DataDir               string
	HTTPPort              int
	WebhookURL            string
	ServiceName           string
	SystemInstructionFile string
	LogLevel              string
}

// Load reads configuration from the environment (and a .env file if present)
// and returns an immutable Config that is passed explicitly to every component.
func Load() (*Config, error) {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		DataDir:               getEnv("DATA_DIR", "data"),
		HTTPPort:              getEnvAsInt("HTTP_PORT", 5000),
		WebhookURL:            getEnv("WEBHOOK_URL", ""),
		ServiceName:           getEnv("SERVICE_NAME", "PlaygroundAI"),
		SystemInstructionFile: getEnv("SYSTEM_INSTRUCTION_FILE", "system_instruction.txt"),
		LogLevel:              getEnv("LOG_LEVEL", "INFO"),
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	return cfg, nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
