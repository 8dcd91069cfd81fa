//go:build cgo

// Package tesseract is the default OCR engine, backed by libtesseract through gosseract.
// Importing it registers the engine with ocr.New.
package tesseract

import (
	"context"
	"fmt"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"thsrbook/internal/config"
	"thsrbook/internal/ocr"
)

func init() {
	ocr.Factory = func(cfg config.OCRConfig) (ocr.Engine, error) {
		return New(cfg.Language, cfg.Whitelist)
	}
}

// Engine reuses one tesseract client; gosseract clients are not goroutine safe.
type Engine struct {
	mu     sync.Mutex
	client *gosseract.Client
}

func New(language, whitelist string) (*Engine, error) {
	client := gosseract.NewClient()
	if language != "" {
		if err := client.SetLanguage(language); err != nil {
			client.Close()
			return nil, fmt.Errorf("tesseract language %s: %w", language, err)
		}
	}
	if whitelist != "" {
		if err := client.SetWhitelist(whitelist); err != nil {
			client.Close()
			return nil, fmt.Errorf("tesseract whitelist: %w", err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		client.Close()
		return nil, fmt.Errorf("tesseract page seg mode: %w", err)
	}
	return &Engine{client: client}, nil
}

func (e *Engine) Classify(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("tesseract image: %w", err)
	}
	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return text, nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client.Close()
}
