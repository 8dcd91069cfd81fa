// Package browser is the page-automation driver the wizard runs on. Two engines
// implement it: rod (Chrome DevTools) and playwright (bundled Chromium or Edge).
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"thsrbook/internal/config"
)

var (
	// ErrTimeout is wrapped by every operation that ran out of time.
	ErrTimeout = errors.New("browser: timeout")
	// ErrNotFound is wrapped when a selector matched nothing.
	ErrNotFound = errors.New("browser: element not found")
)

// Option picks an <option> by visible label or by value; Label wins when both are set.
type Option struct {
	Label string
	Value string
}

// Page is the subset of page automation the booking flow needs. Scripts passed to
// Eval and WaitFor are function expressions taking at most one argument. Every
// operation gives up with ErrTimeout once its timeout or ctx deadline passes.
type Page interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	Click(ctx context.Context, selector string, timeout time.Duration) error
	ClickNth(ctx context.Context, selector string, index int, timeout time.Duration) error
	Fill(ctx context.Context, selector, text string, timeout time.Duration) error
	Select(ctx context.Context, selector string, opt Option, timeout time.Duration) error
	Check(ctx context.Context, selector string, timeout time.Duration) error
	Eval(ctx context.Context, js string, timeout time.Duration, args ...interface{}) (Value, error)
	IsVisible(ctx context.Context, selector string, timeout time.Duration) (bool, error)
	Text(ctx context.Context, selector string, timeout time.Duration) (string, error)
	Screenshot(ctx context.Context, selector string, timeout time.Duration) ([]byte, error)
	WaitFor(ctx context.Context, predicate string, timeout time.Duration, args ...interface{}) error
	// Snapshot captures a full-page PNG and the current HTML for debugging.
	Snapshot(ctx context.Context) ([]byte, string, error)
}

// Session owns one browser process and its single page.
type Session interface {
	Page() Page
	Close() error
}

// Launcher starts a fresh session per round.
type Launcher interface {
	Open(ctx context.Context, proxy string) (Session, error)
}

// Value is the JSON result of a script.
type Value struct {
	raw json.RawMessage
}

func NewValue(v interface{}) (Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Value{}, err
	}
	return Value{raw: raw}, nil
}

// MustValue is NewValue for literals in tests and fakes.
func MustValue(v interface{}) Value {
	val, err := NewValue(v)
	if err != nil {
		panic(err)
	}
	return val
}

// Bool is JavaScript truthiness for the common result types.
func (v Value) Bool() bool {
	var x interface{}
	if err := json.Unmarshal(v.raw, &x); err != nil {
		return false
	}
	switch t := x.(type) {
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case nil:
		return false
	default:
		return true
	}
}

// Str returns a string result, or "" for anything else.
func (v Value) Str() string {
	var s string
	if err := json.Unmarshal(v.raw, &s); err != nil {
		return ""
	}
	return s
}

func (v Value) Decode(dst interface{}) error {
	if len(v.raw) == 0 {
		return fmt.Errorf("empty script result")
	}
	return json.Unmarshal(v.raw, dst)
}

func (v Value) Raw() json.RawMessage { return v.raw }

// Options is the browser context every session is opened with.
type Options struct {
	Headless       bool
	Bin            string
	Channel        string
	UserAgent      string
	AcceptLanguage string
	Locale         string
	Timezone       string
	ViewportWidth  int
	ViewportHeight int
}

func OptionsFrom(c config.BrowserConfig) Options {
	return Options{
		Headless:       c.Headless,
		Bin:            c.Bin,
		Channel:        c.Channel,
		UserAgent:      c.UserAgent,
		AcceptLanguage: c.AcceptLanguage,
		Locale:         c.Locale,
		Timezone:       c.Timezone,
		ViewportWidth:  c.ViewportWidth,
		ViewportHeight: c.ViewportHeight,
	}
}

// New returns the launcher for engine ("rod" or "playwright").
func New(engine string, opts Options) (Launcher, error) {
	switch engine {
	case "", "rod":
		return &RodLauncher{opts: opts}, nil
	case "playwright":
		return &PlaywrightLauncher{opts: opts}, nil
	default:
		return nil, fmt.Errorf("unknown browser engine %q", engine)
	}
}
