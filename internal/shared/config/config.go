package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	DatabaseURL     string
	Env             string

	HuggingFaceToken   string
	HuggingFaceBaseURL string
	WatsonAPIKey       string
	WatsonURL          string
	ReplicateToken     string
	ReplicateModel     string
	OrchestrateAPIKey  string
	OrchestrateBaseURL string

	AICallTimeout    time.Duration
	AIRequestsPerSec float64

	BatchConcurrency  int
	WorkerConcurrency int
	WorkerPollEvery   time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000")),
		DatabaseURL:     dbURL,
		Env:             env,

		HuggingFaceToken:   getEnv("HUGGINGFACE_API_TOKEN", ""),
		HuggingFaceBaseURL: getEnv("HUGGINGFACE_BASE_URL", "https://api-inference.huggingface.co/models"),
		WatsonAPIKey:       getEnv("IBM_WATSON_NLU_API_KEY", ""),
		WatsonURL:          getEnv("IBM_WATSON_NLU_URL", "https://api.us-south.natural-language-understanding.watson.cloud.ibm.com"),
		ReplicateToken:     getEnv("REPLICATE_API_TOKEN", ""),
		ReplicateModel:     getEnv("REPLICATE_MODEL", "ibm-granite/granite-3.3-8b-instruct"),
		OrchestrateAPIKey:  getEnv("IBM_ORCHESTRATE_API_KEY", ""),
		OrchestrateBaseURL: getEnv("IBM_ORCHESTRATE_BASE_URL", "https://dl.watson-orchestrate.ibm.com"),

		AICallTimeout:    getEnvDuration("AI_CALL_TIMEOUT", 30*time.Second),
		AIRequestsPerSec: getEnvFloat("AI_REQUESTS_PER_SEC", 5),

		BatchConcurrency:  getEnvInt("BATCH_CONCURRENCY", 5),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 4),
		WorkerPollEvery:   getEnvDuration("WORKER_POLL_INTERVAL", 10*time.Second),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		return def
	}
	return val
}

func getEnvFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil || val <= 0 {
		return def
	}
	return val
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil || val <= 0 {
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}
