// Package ocr turns a CAPTCHA image into text. Accuracy is the engine's business;
// callers sanitize and retry.
package ocr

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"thsrbook/internal/config"
)

type Engine interface {
	Classify(ctx context.Context, image []byte) (string, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, image []byte) (string, error)

func (f EngineFunc) Classify(ctx context.Context, image []byte) (string, error) {
	return f(ctx, image)
}

var nonAlnum = regexp.MustCompile(`[^0-9A-Za-z]`)

// Sanitize keeps ASCII letters and digits only.
func Sanitize(s string) string {
	return nonAlnum.ReplaceAllString(s, "")
}

// Factory builds engines that need native libraries. It is set when the tesseract
// package is linked in; builds without cgo leave it nil and offer only http.
var Factory func(cfg config.OCRConfig) (Engine, error)

// New returns the engine configured in cfg.
func New(cfg config.OCRConfig) (Engine, error) {
	switch cfg.Engine {
	case "http":
		return NewHTTP(cfg.HTTPURL, time.Duration(cfg.HTTPTimeoutMs)*time.Millisecond), nil
	case "tesseract", "":
		if Factory == nil {
			return nil, fmt.Errorf("ocr engine %q is not linked into this build; use ocr.engine: http", cfg.Engine)
		}
		return Factory(cfg)
	default:
		return nil, fmt.Errorf("unknown ocr engine %q", cfg.Engine)
	}
}
