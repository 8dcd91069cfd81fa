package config

import (
	"errors"
	"fmt"
	"regexp"
)

// Validate checks the settings every command needs. Booking-only fields are
// checked by ValidateBooking.
func (c *Config) Validate() error {
	return errors.Join(c.validateSearch(), c.validateRun())
}

// ValidateWatch skips the search form when an external scraper does the searching.
func (c *Config) ValidateWatch() error {
	if c.Watch.ScraperCommand != "" {
		return c.validateRun()
	}
	return c.Validate()
}

func (c *Config) validateSearch() error {
	var errs []error
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.SiteURL == "" {
		add("site_url: must not be empty")
	}
	if c.Search.Origin == "" || c.Search.Destination == "" {
		add("search.origin/search.destination: both stations are required")
	}
	if c.Search.Origin != "" && c.Search.Origin == c.Search.Destination {
		add("search.destination: must differ from search.origin")
	}
	if _, err := c.Criteria().DateField(); err != nil {
		add("search.date: %v", err)
	}
	if c.Search.Adults < 0 || c.Search.Students < 0 {
		add("search.adults/search.students: must not be negative")
	}
	if c.Search.Adults+c.Search.Students == 0 {
		add("search.adults/search.students: at least one ticket is required")
	}
	return errors.Join(errs...)
}

func (c *Config) validateRun() error {
	var errs []error
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Watch.IntervalMinSec < 0 || c.Watch.IntervalMaxSec < c.Watch.IntervalMinSec {
		add("watch.interval_min_sec/interval_max_sec: need 0 <= min <= max, got %d..%d",
			c.Watch.IntervalMinSec, c.Watch.IntervalMaxSec)
	}
	if c.Watch.MaxRounds < 0 {
		add("watch.max_rounds: must not be negative")
	}
	if _, err := c.Deadline(); err != nil {
		add("watch.until: %v", err)
	}
	if c.Retry.CaptchaMaxAttempts < 1 {
		add("retry.captcha_max_attempts: must be at least 1")
	}
	if c.Retry.SubmitMaxRetries < 1 {
		add("retry.submit_max_retries: must be at least 1")
	}
	if len(c.Selectors.Overlays) == 0 {
		add("selectors.overlays: at least one overlay selector is required")
	}
	if c.Selectors.CompletionPattern != "" {
		if _, err := regexp.Compile(c.Selectors.CompletionPattern); err != nil {
			add("selectors.completion_pattern: %v", err)
		}
	}

	switch c.Browser.Engine {
	case "rod", "playwright":
	default:
		add("browser.engine: unknown engine %q (rod, playwright)", c.Browser.Engine)
	}
	switch c.OCR.Engine {
	case "tesseract":
	case "http":
		if c.OCR.HTTPURL == "" {
			add("ocr.http_url: required for the http engine")
		}
	default:
		add("ocr.engine: unknown engine %q (tesseract, http)", c.OCR.Engine)
	}
	switch c.State.Backend {
	case "file", "sqlite":
		if c.State.Path == "" {
			add("state.path: required for the %s backend", c.State.Backend)
		}
	case "redis":
		if c.State.RedisAddr == "" {
			add("state.redis_addr: required for the redis backend")
		}
	default:
		add("state.backend: unknown backend %q (file, sqlite, redis)", c.State.Backend)
	}

	if e := c.Notify.Email; e.Enabled {
		if e.Host == "" || e.Port == 0 {
			add("notify.email.host/port: required when e-mail is enabled")
		}
		if e.From == "" || len(e.To) == 0 {
			add("notify.email.from/to: required when e-mail is enabled")
		}
	}
	if tg := c.Notify.Telegram; tg.Enabled && (tg.BotToken == "" || tg.ChatID == "") {
		add("notify.telegram.bot_token/chat_id: required when telegram is enabled (%s, %s)",
			EnvTelegramToken, EnvTelegramChatID)
	}

	return errors.Join(errs...)
}

// ValidateBooking additionally checks the passenger fields of the confirmation form.
func (c *Config) ValidateBooking() error {
	if err := c.Validate(); err != nil {
		return err
	}
	var errs []error
	if c.Booking.IDNumber == "" {
		errs = append(errs, fmt.Errorf("booking.id_number: required (or set %s)", EnvIDNumber))
	}
	if c.Booking.Phone == "" && c.Booking.Email == "" {
		errs = append(errs, fmt.Errorf("booking.phone/booking.email: at least one contact is required"))
	}
	return errors.Join(errs...)
}
