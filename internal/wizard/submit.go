package wizard

import (
	"context"
	"time"

	"thsrbook/internal/browser"
	"thsrbook/internal/logger"
	"thsrbook/internal/models"
)

// Solver is the part of CaptchaSolver the submission loop depends on.
type Solver interface {
	SolveAndFill(ctx context.Context, maxAttempts int) bool
}

// SubmissionController submits the search form until the results show up, a
// non-recoverable error is shown, or the retries run out.
type SubmissionController struct {
	page       browser.Page
	overlay    *OverlayResolver
	classifier *StepClassifier
	captcha    Solver
	policy     ErrorPolicy

	submitSelector    string
	submitTimeout     time.Duration
	clickTimeout      time.Duration
	captchaMaxAttempt int

	lastBanner string
	resolves   int
}

type SubmitOptions struct {
	SubmitSelector     string
	SubmitTimeout      time.Duration
	ClickTimeout       time.Duration
	CaptchaMaxAttempts int
}

func NewSubmissionController(page browser.Page, overlay *OverlayResolver, classifier *StepClassifier,
	captcha Solver, policy ErrorPolicy, opts SubmitOptions) *SubmissionController {
	return &SubmissionController{
		page:              page,
		overlay:           overlay,
		classifier:        classifier,
		captcha:           captcha,
		policy:            policy,
		submitSelector:    opts.SubmitSelector,
		submitTimeout:     opts.SubmitTimeout,
		clickTimeout:      opts.ClickTimeout,
		captchaMaxAttempt: opts.CaptchaMaxAttempts,
	}
}

// SubmitAndAwaitResults runs at most maxRetries submit cycles.
func (s *SubmissionController) SubmitAndAwaitResults(ctx context.Context, maxRetries int) bool {
	s.lastBanner = ""
	s.resolves = 0

	for i := 1; i <= maxRetries; i++ {
		if ctx.Err() != nil {
			return false
		}

		// The click may race the overlay; the classifier decides what happened.
		if err := s.page.Click(ctx, s.submitSelector, s.clickTimeout); err != nil {
			logger.Debug("submit click: %v", err)
		}
		s.overlay.AwaitClear(ctx, s.submitTimeout)

		switch s.classifier.Classify(ctx, s.submitTimeout) {
		case models.ClassStep2:
			return true

		case models.ClassError:
			s.lastBanner = s.classifier.ErrorText()
			logger.Info("submit %d/%d rejected: %q", i, maxRetries, s.lastBanner)
			if !s.policy.Recoverable(s.lastBanner) {
				return false
			}
			if !s.resolve(ctx) {
				return false
			}

		default:
			logger.Info("submit %d/%d: no result before timeout, resubmitting", i, maxRetries)
			s.resolve(ctx)
		}
	}
	logger.Warn("submission gave up after %d attempts", maxRetries)
	return false
}

func (s *SubmissionController) resolve(ctx context.Context) bool {
	s.resolves++
	return s.captcha.SolveAndFill(ctx, s.captchaMaxAttempt)
}

// LastBanner is the most recent error banner text.
func (s *SubmissionController) LastBanner() string { return s.lastBanner }

// Resolves counts CAPTCHA re-solves during the last call.
func (s *SubmissionController) Resolves() int { return s.resolves }
