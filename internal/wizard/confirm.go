package wizard

import (
	"context"

	"thsrbook/internal/browser"
	"thsrbook/internal/config"
	"thsrbook/internal/logger"
	"thsrbook/internal/models"
)

// Confirm fills the passenger form and submits it once. It is never resubmitted:
// a second submit can book twice.
func (f *Flow) Confirm(ctx context.Context, b config.BookingConfig) bool {
	sel := f.cfg.Selectors
	t := f.cfg.Timing
	timeout := t.ConfirmTimeout()

	if ok, _ := f.page.IsVisible(ctx, sel.Step3Form, timeout); !ok {
		logger.Warn("passenger form did not show up")
		return false
	}

	if err := f.page.Select(ctx, sel.IDTypeSelect, browser.Option{Value: b.IDType}, timeout); err != nil {
		logger.Warn("id type: %v", err)
		return false
	}
	fields := []struct{ selector, value string }{
		{sel.IDNumberInput, b.IDNumber},
		{sel.PhoneInput, b.Phone},
		{sel.EmailInput, b.Email},
	}
	for _, field := range fields {
		if field.value == "" {
			continue
		}
		if err := f.page.Fill(ctx, field.selector, field.value, timeout); err != nil {
			logger.Warn("passenger form: %v", err)
			return false
		}
		f.pause.pause(ctx)
	}

	if sel.MemberRadio != "" {
		if err := f.page.Check(ctx, sel.MemberRadio, t.ClickTimeout()); err != nil {
			logger.Debug("member radio: %v", err)
		}
	}
	if err := f.page.Check(ctx, sel.AgreeCheckbox, timeout); err != nil {
		logger.Warn("agree checkbox: %v", err)
		return false
	}

	_, _ = f.page.Eval(ctx, jsScrollIntoView, t.EvalTimeout(), sel.FinalSubmit)
	f.pause.pause(ctx)
	if err := f.page.Click(ctx, sel.FinalSubmit, timeout); err != nil {
		logger.Warn("final submit: %v", err)
		return false
	}
	f.overlay.AwaitClear(ctx, t.StepOverlay())

	for _, popup := range sel.Popups {
		if err := f.page.Click(ctx, popup, t.ClickTimeout()); err == nil {
			logger.Debug("dismissed popup %s", popup)
		}
	}
	f.overlay.AwaitClear(ctx, t.StepOverlay())

	done := NewStepClassifier(f.page, Probe{
		Overlays:     sel.Overlays,
		ReadyPattern: sel.CompletionPattern,
		Error:        sel.ErrorBanner,
	}, t.ClassifyPoll(), t.EvalTimeout())
	switch done.Classify(ctx, timeout) {
	case models.ClassStep2:
		return true
	case models.ClassError:
		logger.Warn("booking rejected: %q", done.ErrorText())
	default:
		logger.Warn("no completion text within %v", timeout)
	}
	return false
}
