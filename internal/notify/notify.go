// Package notify delivers booking, exhaustion, hit and fatal-error messages over
// e-mail and Telegram.
package notify

import (
	"context"
	"errors"
	"fmt"

	"thsrbook/internal/config"
	"thsrbook/internal/logger"
)

// Notifier sends one message. Body is HTML; channels that cannot render it
// convert it to plain text.
type Notifier interface {
	Send(ctx context.Context, subject, bodyHTML string) error
}

// Multi fans a message out to every channel and joins the failures.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, subject, bodyHTML string) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, subject, bodyHTML); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards messages. Used when no channel is enabled.
type Nop struct{}

func (Nop) Send(context.Context, string, string) error { return nil }

// New builds the enabled channels from config.
func New(cfg config.NotifyConfig) (Notifier, error) {
	var m Multi
	if cfg.Email.Enabled {
		m = append(m, NewEmail(cfg.Email))
	}
	if cfg.Telegram.Enabled {
		tg, err := NewTelegram(cfg.Telegram)
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		m = append(m, tg)
	}
	if len(m) == 0 {
		logger.Warn("no notification channel enabled; results are only logged")
		return Nop{}, nil
	}
	return m, nil
}
