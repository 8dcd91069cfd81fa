package wizard

import (
	"context"
	"time"

	"thsrbook/internal/browser"
	"thsrbook/internal/logger"
	"thsrbook/internal/models"
)

// Probe names what a classifier looks for. Ready is satisfied by a visible
// ReadySelector or by page text matching ReadyPattern.
type Probe struct {
	Overlays      []string `json:"overlays"`
	Step1         string   `json:"step1"`
	ReadySelector string   `json:"ready"`
	ReadyPattern  string   `json:"readyPattern"`
	Error         string   `json:"error"`
}

// Observation is one raw sample of the page.
type Observation struct {
	Overlay   bool   `json:"overlay"`
	Step1     bool   `json:"step1"`
	Ready     bool   `json:"ready"`
	Error     bool   `json:"error"`
	ErrorText string `json:"errorText"`
}

// State derives the PageState. An asserted overlay hides everything else, and
// results take priority over an error banner.
func (o Observation) State() models.PageState {
	switch {
	case o.Overlay:
		return models.StateLoading
	case o.Ready:
		return models.StateReadyStep2
	case o.Error:
		return models.StateErrorShown
	case o.Step1:
		return models.StateReadyStep1
	default:
		return models.StateUnknown
	}
}

type StepClassifier struct {
	page     browser.Page
	probe    Probe
	interval time.Duration
	eval     time.Duration

	lastError string
}

func NewStepClassifier(page browser.Page, probe Probe, interval, eval time.Duration) *StepClassifier {
	return &StepClassifier{page: page, probe: probe, interval: interval, eval: eval}
}

// Observe samples the page once. Script failures yield StateUnknown.
func (c *StepClassifier) Observe(ctx context.Context) (models.PageState, Observation) {
	v, err := c.page.Eval(ctx, jsObserve, c.eval, c.probe)
	if err != nil {
		logger.Debug("observe: %v", err)
		return models.StateUnknown, Observation{}
	}
	var obs Observation
	if err := v.Decode(&obs); err != nil {
		logger.Debug("observe decode: %v", err)
		return models.StateUnknown, Observation{}
	}
	return obs.State(), obs
}

// Classify polls until the results or an error banner show up, or timeout.
func (c *StepClassifier) Classify(ctx context.Context, timeout time.Duration) models.Classification {
	result := models.ClassNone
	c.lastError = ""
	poll(ctx, c.interval, timeout, func(ctx context.Context) bool {
		state, obs := c.Observe(ctx)
		switch state {
		case models.StateReadyStep2:
			result = models.ClassStep2
			return true
		case models.StateErrorShown:
			c.lastError = obs.ErrorText
			result = models.ClassError
			return true
		}
		return false
	})
	return result
}

// ErrorText is the banner text seen by the last Classify that returned ClassError.
func (c *StepClassifier) ErrorText() string { return c.lastError }
