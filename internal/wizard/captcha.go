package wizard

import (
	"context"
	"time"

	"thsrbook/internal/browser"
	"thsrbook/internal/logger"
	"thsrbook/internal/ocr"
)

// CaptchaSelectors locate the CAPTCHA widgets. Refresh may be empty.
type CaptchaSelectors struct {
	Image   string
	Refresh string
	Input   string
}

type CaptchaTiming struct {
	RefreshTimeout time.Duration
	RefreshWait    time.Duration
	ImageTimeout   time.Duration
	FillTimeout    time.Duration
	EvalTimeout    time.Duration
}

// CaptchaSolver reads the CAPTCHA image, runs OCR and types the answer in.
// It never checks whether the answer was right; the submission does.
type CaptchaSolver struct {
	page   browser.Page
	engine ocr.Engine
	sel    CaptchaSelectors
	timing CaptchaTiming
}

func NewCaptchaSolver(page browser.Page, engine ocr.Engine, sel CaptchaSelectors, timing CaptchaTiming) *CaptchaSolver {
	return &CaptchaSolver{page: page, engine: engine, sel: sel, timing: timing}
}

// SolveAndFill returns true once a non-empty answer has been typed in, false when
// maxAttempts attempts were spent.
func (c *CaptchaSolver) SolveAndFill(ctx context.Context, maxAttempts int) bool {
	for i := 1; i <= maxAttempts; i++ {
		if ctx.Err() != nil {
			return false
		}
		answer, err := c.solveOnce(ctx)
		if err != nil {
			logger.Warn("captcha attempt %d/%d failed: %v", i, maxAttempts, err)
			continue
		}
		logger.Info("captcha OCR: %q", answer)
		if answer == "" {
			continue
		}
		if err := c.fill(ctx, answer); err != nil {
			logger.Warn("captcha attempt %d/%d: %v", i, maxAttempts, err)
			continue
		}
		return true
	}
	logger.Warn("captcha not solved after %d attempts", maxAttempts)
	return false
}

func (c *CaptchaSolver) solveOnce(ctx context.Context) (string, error) {
	if c.sel.Refresh != "" {
		if err := c.page.Click(ctx, c.sel.Refresh, c.timing.RefreshTimeout); err == nil {
			_ = sleep(ctx, c.timing.RefreshWait)
		}
	}

	img, err := c.page.Screenshot(ctx, c.sel.Image, c.timing.ImageTimeout)
	if err != nil {
		return "", err
	}
	text, err := c.engine.Classify(ctx, img)
	if err != nil {
		return "", err
	}
	return ocr.Sanitize(text), nil
}

func (c *CaptchaSolver) fill(ctx context.Context, answer string) error {
	if err := c.page.Fill(ctx, c.sel.Input, answer, c.timing.FillTimeout); err != nil {
		return err
	}
	_, err := c.page.Eval(ctx, jsDispatchInput, c.timing.EvalTimeout, c.sel.Input)
	return err
}
