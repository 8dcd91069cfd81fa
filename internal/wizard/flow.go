// Package wizard drives the booking site's multi-step form: overlay handling,
// step classification, CAPTCHA solving, submission retries and offer matching.
package wizard

import (
	"context"
	"fmt"
	"strconv"

	"thsrbook/internal/browser"
	"thsrbook/internal/config"
	"thsrbook/internal/logger"
	"thsrbook/internal/models"
	"thsrbook/internal/ocr"
)

// Flow is one round's view of the wizard on a single page.
type Flow struct {
	cfg  *config.Config
	page browser.Page

	overlay *OverlayResolver
	results *StepClassifier
	captcha *CaptchaSolver
	submit  *SubmissionController
	pause   *pauser
}

func NewFlow(cfg *config.Config, page browser.Page, engine ocr.Engine) *Flow {
	t := cfg.Timing
	sel := cfg.Selectors

	f := &Flow{
		cfg:   cfg,
		page:  page,
		pause: newPauser(ms(t.HumanDelayMinMs), ms(t.HumanDelayMaxMs)),
	}
	f.overlay = NewOverlayResolver(page, sel.Overlays, t.OverlayPoll(), t.Settle(), t.EvalTimeout())
	f.results = NewStepClassifier(page, Probe{
		Overlays:      sel.Overlays,
		Step1:         sel.Step1Form,
		ReadySelector: sel.ResultsPanel,
		Error:         sel.ErrorBanner,
	}, t.ClassifyPoll(), t.EvalTimeout())
	f.captcha = NewCaptchaSolver(page, engine, CaptchaSelectors{
		Image:   sel.CaptchaImage,
		Refresh: sel.CaptchaRefresh,
		Input:   sel.CaptchaInput,
	}, CaptchaTiming{
		RefreshTimeout: t.CaptchaRefresh(),
		RefreshWait:    t.CaptchaRefreshWait(),
		ImageTimeout:   t.CaptchaImageTimeout(),
		FillTimeout:    t.ClickTimeout(),
		EvalTimeout:    t.EvalTimeout(),
	})
	f.submit = NewSubmissionController(page, f.overlay, f.results, f.captcha,
		MarkerPolicy(cfg.Retry.RecoverableMarkers), SubmitOptions{
			SubmitSelector:     sel.SubmitButton,
			SubmitTimeout:      t.SubmitTimeout(),
			ClickTimeout:       t.ClickTimeout(),
			CaptchaMaxAttempts: cfg.Retry.CaptchaMaxAttempts,
		})
	return f
}

// Open loads the booking page, dismisses the consent dialog and waits out the
// first overlay.
func (f *Flow) Open(ctx context.Context) error {
	if err := f.page.Navigate(ctx, f.cfg.SiteURL, f.cfg.Timing.NavigateTimeout()); err != nil {
		return fmt.Errorf("open booking page: %w", err)
	}
	f.pause.pause(ctx)
	f.dismissConsent(ctx)
	f.overlay.AwaitClear(ctx, f.cfg.Timing.InitialOverlay())
	return nil
}

func (f *Flow) dismissConsent(ctx context.Context) {
	for _, label := range f.cfg.Selectors.ConsentLabels {
		v, err := f.page.Eval(ctx, jsClickButtonByText, f.cfg.Timing.EvalTimeout(), label)
		if err == nil && v.Bool() {
			logger.Debug("consent dismissed via %q", label)
			f.pause.pause(ctx)
			return
		}
	}
}

// FillSearch fills the step 1 form. The CAPTCHA is left to SolveCaptcha.
func (f *Flow) FillSearch(ctx context.Context, c models.SearchCriteria) error {
	sel := f.cfg.Selectors
	timeout := f.cfg.Timing.ConfirmTimeout()

	date, err := c.DateField()
	if err != nil {
		return err
	}

	steps := []struct {
		name string
		do   func() error
	}{
		{"origin", func() error {
			return f.page.Select(ctx, sel.OriginSelect, browser.Option{Label: c.Origin}, timeout)
		}},
		{"destination", func() error {
			return f.page.Select(ctx, sel.DestinationSelect, browser.Option{Label: c.Destination}, timeout)
		}},
		{"date", func() error {
			v, err := f.page.Eval(ctx, jsSetDate, f.cfg.Timing.EvalTimeout(), map[string]string{"sel": sel.DateInput, "value": date})
			if err == nil && !v.Bool() {
				return fmt.Errorf("%s: %w", sel.DateInput, browser.ErrNotFound)
			}
			return err
		}},
		{"time", func() error {
			return f.page.Select(ctx, sel.TimeSelect, browser.Option{Label: c.Time}, timeout)
		}},
		{"adults", func() error {
			return f.page.Select(ctx, sel.AdultSelect, browser.Option{Value: strconv.Itoa(c.Adults) + "F"}, timeout)
		}},
		{"students", func() error {
			return f.page.Select(ctx, sel.StudentSelect, browser.Option{Value: strconv.Itoa(c.Students) + "P"}, timeout)
		}},
	}

	for _, s := range steps {
		if err := s.do(); err != nil {
			return fmt.Errorf("fill %s: %w", s.name, err)
		}
		f.pause.pause(ctx)
	}
	logger.Debug("search form filled for %s", c.Route())
	return nil
}

// SolveCaptcha runs the CAPTCHA loop with the configured attempt budget.
func (f *Flow) SolveCaptcha(ctx context.Context) bool {
	return f.captcha.SolveAndFill(ctx, f.cfg.Retry.CaptchaMaxAttempts)
}

// Submit submits the search and waits for the result list.
func (f *Flow) Submit(ctx context.Context) bool {
	return f.submit.SubmitAndAwaitResults(ctx, f.cfg.Retry.SubmitMaxRetries)
}

// LastBanner is the last error banner seen while submitting.
func (f *Flow) LastBanner() string { return f.submit.LastBanner() }

// Search runs open, fill, CAPTCHA and submit, then reads the offers shown.
// A failed step is reported through the outcome (or err for driver faults); once
// the list was read the outcome is OutcomeNoMatch and matching is up to the caller.
func (f *Flow) Search(ctx context.Context, c models.SearchCriteria) ([]models.TrainOffer, models.Outcome, error) {
	if err := f.Open(ctx); err != nil {
		return nil, models.OutcomeException, err
	}
	if err := f.FillSearch(ctx, c); err != nil {
		return nil, models.OutcomeException, err
	}
	if !f.SolveCaptcha(ctx) {
		return nil, models.OutcomeCaptchaFailed, nil
	}
	logger.Info("submitting search %s", c.Route())
	if !f.Submit(ctx) {
		return nil, models.OutcomeSubmitFailed, nil
	}

	f.overlay.AwaitClear(ctx, f.cfg.Timing.StepOverlay())
	offers, err := f.ReadOffers(ctx, c.TargetDiscount)
	if err != nil {
		return nil, models.OutcomeException, err
	}
	return offers, models.OutcomeNoMatch, nil
}
