package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Secrets that should not live in config.yaml.
const (
	EnvIDNumber       = "THSR_ID_NUMBER"
	EnvSMTPPassword   = "THSR_SMTP_PASSWORD"
	EnvTelegramToken  = "THSR_TELEGRAM_TOKEN"
	EnvTelegramChatID = "THSR_TELEGRAM_CHAT_ID"
)

// applyEnv loads .env from the working directory when present, then lets the
// environment override secrets. A missing .env is not an error.
func applyEnv(c *Config) {
	_ = godotenv.Load()

	if v := lookup(EnvIDNumber); v != "" {
		c.Booking.IDNumber = v
	}
	if v := lookup(EnvSMTPPassword); v != "" {
		c.Notify.Email.Password = v
	}
	if v := lookup(EnvTelegramToken); v != "" {
		c.Notify.Telegram.BotToken = v
	}
	if v := lookup(EnvTelegramChatID); v != "" {
		c.Notify.Telegram.ChatID = v
	}
}

func lookup(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
