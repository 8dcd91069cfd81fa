package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"thsrbook/internal/config"
)

// Telegram caps a message at 4096 characters.
const telegramLimit = 4096

// Telegram sends plain-text messages to one chat. The Bot API's HTML mode
// rejects tables and lists, so bodies are flattened first.
type Telegram struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

func NewTelegram(cfg config.TelegramConfig) (*Telegram, error) {
	return NewTelegramWithEndpoint(cfg, tgbotapi.APIEndpoint, &http.Client{Timeout: 30 * time.Second}, time.Second)
}

// NewTelegramWithEndpoint is NewTelegram against another Bot API server. It calls
// getMe to verify the token.
func NewTelegramWithEndpoint(cfg config.TelegramConfig, endpoint string, client *http.Client, retryDelayBase time.Duration) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatID, err := strconv.ParseInt(cfg.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Telegram{
		bot:            bot,
		chatID:         chatID,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

func (t *Telegram) Send(ctx context.Context, subject, bodyHTML string) error {
	text := truncate(subject+"\n\n"+PlainText(bodyHTML), telegramLimit)
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true

	var lastErr error
	for i := 0; i < t.maxRetries; i++ {
		if _, err := t.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if i == t.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.retryDelayBase * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("telegram: failed after %d retries: %w", t.maxRetries, lastErr)
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-1]) + "…"
}
