package app

import (
	"os"
	"strconv"
)

type Config struct {
	HTTPAddr  string
	SentryDSN string
	LogLevel  string

	// Session diagnostics sink. Optional; sessions run without it.
	DatabaseURL string

	// Completion provider
	LLMProvider     string // "groq" or "anthropic"
	GroqAPIKey      string
	AnthropicAPIKey string
	LLMModel        string // empty picks the provider default

	// Generation settings
	MaxCompletionTokens int
	LLMTemperature      float64

	// Conversation window size per session
	MaxTurns int

	// Greeting sent in the connected frame
	GreetingText string
}

func LoadConfigFromEnv() Config {
	return Config{
		HTTPAddr:  getenv("HTTP_ADDR", ":8080"),
		SentryDSN: getenv("SENTRY_DSN", ""),
		LogLevel:  getenv("LOG_LEVEL", "info"),

		DatabaseURL: getenv("DATABASE_URL", ""),

		LLMProvider:     getenv("LLM_PROVIDER", "groq"),
		GroqAPIKey:      getenv("GROQ_API_KEY", ""),
		AnthropicAPIKey: getenv("ANTHROPIC_API_KEY", ""),
		LLMModel:        getenv("LLM_MODEL", ""),

		MaxCompletionTokens: getenvInt("MAX_COMPLETION_TOKENS", 500),
		LLMTemperature:      getenvFloat("LLM_TEMPERATURE", 0.7),

		MaxTurns: getenvInt("MAX_TURNS", 20),

		GreetingText: getenv("GREETING_TEXT", "Connected to Clio, your voice guide to history."),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
