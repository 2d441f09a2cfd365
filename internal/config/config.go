// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string

	// Chat hand-off tuning. Both timers are sliding: they are cancelled and
	// replaced whenever their governing condition resets.
	HandoffGraceWindow time.Duration
	InactivityTimeout  time.Duration

	// AdminKey authenticates admin HTTP endpoints and websocket admin events.
	AdminKey string

	Assistant AssistantConfig
	Email     EmailConfig
	SMS       SMSConfig
}

// AssistantConfig controls the automated chat responder.
type AssistantConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// EmailConfig holds SMTP settings for outbound notifications.
type EmailConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	AdminEmail string
}

// SMSConfig holds Twilio settings for outbound notifications.
type SMSConfig struct {
	AccountSID  string
	AuthToken   string
	From        string
	AdminPhones []string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "3000"),
		FrontendURL:        getEnv("FRONTEND_URL", ""),
		DBPath:             getEnv("DB_PATH", "./data/ecopack.db"),
		HandoffGraceWindow: getEnvDuration("HANDOFF_GRACE_WINDOW", 60*time.Second),
		InactivityTimeout:  getEnvDuration("CHAT_INACTIVITY_TIMEOUT", 5*time.Minute),
		AdminKey:           getEnv("ADMIN_KEY", ""),
		Assistant: AssistantConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:   getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
			Timeout: getEnvDuration("OPENAI_TIMEOUT", 30*time.Second),
		},
		Email: EmailConfig{
			Host:       getEnv("EMAIL_HOST", "smtp.gmail.com"),
			Port:       getEnvInt("EMAIL_PORT", 587),
			Username:   getEnv("EMAIL_USER", ""),
			Password:   getEnv("EMAIL_PASS", ""),
			From:       getEnv("EMAIL_FROM", ""),
			AdminEmail: getEnv("ADMIN_EMAIL", ""),
		},
		SMS: SMSConfig{
			AccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
			From:        getEnv("TWILIO_PHONE_NUMBER", ""),
			AdminPhones: splitList(getEnv("ADMIN_PHONE_NUMBERS", "")),
		},
	}

	if cfg.Email.From == "" {
		cfg.Email.From = cfg.Email.Username
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.HandoffGraceWindow <= 0 {
		return fmt.Errorf("HANDOFF_GRACE_WINDOW must be > 0")
	}
	if c.InactivityTimeout <= 0 {
		return fmt.Errorf("CHAT_INACTIVITY_TIMEOUT must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// EmailEnabled reports whether SMTP credentials are configured.
func (c *Config) EmailEnabled() bool {
	return c.Email.Username != "" && c.Email.Password != "" && c.Email.AdminEmail != ""
}

// SMSEnabled reports whether Twilio credentials are configured.
func (c *Config) SMSEnabled() bool {
	return c.SMS.AccountSID != "" && c.SMS.AuthToken != "" &&
		c.SMS.From != "" && len(c.SMS.AdminPhones) > 0
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
