package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Settings struct {
	Port             string
	DatabaseURL      string
	RedisURL         string
	JWTSecret        string
	FrontendURL      string
	AnthropicAPIKey  string
	WhatsAppAPIURL   string
	WhatsAppAPIToken string
	ResendAPIKey     string
	FromEmail        string
	SuperAdminEmails []string
	EnableJobs       bool
	Environment      string
	LogLevel         string
	Timezone         string
}

// Load reads .env (when present) and then the process environment.
// The returned bool reports whether a .env file was found.
func Load() (*Settings, bool) {
	envLoaded := godotenv.Load() == nil

	s := &Settings{
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:5173"),
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		WhatsAppAPIURL:   os.Getenv("WHATSAPP_API_URL"),
		WhatsAppAPIToken: os.Getenv("WHATSAPP_API_TOKEN"),
		ResendAPIKey:     os.Getenv("RESEND_API_KEY"),
		FromEmail:        getEnv("FROM_EMAIL", "nao-responda@jbapex.com.br"),
		SuperAdminEmails: splitList(os.Getenv("SUPER_ADMIN_EMAILS")),
		EnableJobs:       getEnv("ENABLE_JOBS", "true") == "true",
		Environment:      getEnv("ENVIRONMENT", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		Timezone:         getEnv("APP_TIMEZONE", "America/Sao_Paulo"),
	}

	return s, envLoaded
}

func (s *Settings) IsProduction() bool {
	return s.Environment == "production" || os.Getenv("GIN_MODE") == "release"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
