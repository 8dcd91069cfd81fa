package wizard

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"thsrbook/internal/browser"
	"thsrbook/internal/config"
	"thsrbook/internal/models"
	"thsrbook/internal/ocr"
)

// fakePage is a scripted stand-in for a browser page. It answers the package's
// scripts from its fields and runs hooks on clicks.
type fakePage struct {
	overlay      bool
	overlayStuck bool
	clearAfter   int // overlay checks before the overlay drops by itself
	overlayPolls int
	forced       int

	step1      bool
	results    bool
	errorShown bool
	errorText  string
	bodyText   string

	offers   []models.TrainOffer
	cardHTML string
	buttons  map[string]bool
	visible  map[string]bool
	missing  map[string]bool

	onClick map[string][]func(*fakePage)

	screenshotErr error
	panicOnSelect bool
	// evalStalls makes every script hang like a renderer blocked on alert().
	evalStalls bool
	evalCalls  int

	navigated []string
	clicks    []string
	fills     map[string]string
	selects   map[string]browser.Option
	checks    []string
}

func newFakePage() *fakePage {
	return &fakePage{
		step1:   true,
		buttons: map[string]bool{},
		visible: map[string]bool{},
		missing: map[string]bool{},
		onClick: map[string][]func(*fakePage){},
		fills:   map[string]string{},
		selects: map[string]browser.Option{},
	}
}

// queue appends hooks run on successive clicks of selector, one per click.
func (p *fakePage) queue(selector string, hooks ...func(*fakePage)) {
	p.onClick[selector] = append(p.onClick[selector], hooks...)
}

func (p *fakePage) clickCount(selector string) int {
	n := 0
	for _, c := range p.clicks {
		if c == selector {
			n++
		}
	}
	return n
}

func showResults(p *fakePage) {
	p.step1, p.results, p.errorShown, p.errorText = false, true, false, ""
}

func showError(text string) func(*fakePage) {
	return func(p *fakePage) {
		p.results, p.errorShown, p.errorText = false, true, text
	}
}

func showNothing(p *fakePage) {
	p.results, p.errorShown, p.errorText = false, false, ""
}

func (p *fakePage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	p.navigated = append(p.navigated, url)
	return nil
}

func (p *fakePage) Click(ctx context.Context, selector string, timeout time.Duration) error {
	if p.missing[selector] {
		return fmt.Errorf("click %s: %w", selector, browser.ErrTimeout)
	}
	p.clicks = append(p.clicks, selector)
	if hooks := p.onClick[selector]; len(hooks) > 0 {
		p.onClick[selector] = hooks[1:]
		hooks[0](p)
	}
	return nil
}

func (p *fakePage) ClickNth(ctx context.Context, selector string, index int, timeout time.Duration) error {
	return p.Click(ctx, fmt.Sprintf("%s[%d]", selector, index), timeout)
}

func (p *fakePage) Fill(ctx context.Context, selector, text string, timeout time.Duration) error {
	if p.missing[selector] {
		return fmt.Errorf("fill %s: %w", selector, browser.ErrNotFound)
	}
	p.fills[selector] = text
	return nil
}

func (p *fakePage) Select(ctx context.Context, selector string, opt browser.Option, timeout time.Duration) error {
	if p.panicOnSelect {
		panic("driver exploded")
	}
	if p.missing[selector] {
		return fmt.Errorf("select %s: %w", selector, browser.ErrNotFound)
	}
	p.selects[selector] = opt
	return nil
}

func (p *fakePage) Check(ctx context.Context, selector string, timeout time.Duration) error {
	if p.missing[selector] {
		return fmt.Errorf("check %s: %w", selector, browser.ErrNotFound)
	}
	p.checks = append(p.checks, selector)
	return nil
}

func (p *fakePage) overlayShown() bool {
	p.overlayPolls++
	if p.overlay && p.clearAfter > 0 && p.overlayPolls >= p.clearAfter {
		p.overlay = false
	}
	return p.overlay
}

func (p *fakePage) Eval(ctx context.Context, js string, timeout time.Duration, args ...interface{}) (browser.Value, error) {
	p.evalCalls++
	if p.evalStalls {
		return browser.Value{}, stall(ctx, timeout)
	}
	var arg interface{}
	if len(args) > 0 {
		arg = args[0]
	}

	switch js {
	case jsOverlayClear:
		return browser.MustValue(!p.overlayShown()), nil
	case jsForceHide:
		p.forced++
		if !p.overlayStuck {
			p.overlay = false
		}
		return browser.MustValue(true), nil
	case jsObserve:
		probe := arg.(Probe)
		ready := probe.ReadySelector != "" && p.results
		if !ready && probe.ReadyPattern != "" {
			ready = regexp.MustCompile(probe.ReadyPattern).MatchString(p.bodyText)
		}
		return browser.MustValue(Observation{
			Overlay:   p.overlay,
			Step1:     p.step1,
			Ready:     ready,
			Error:     p.errorShown,
			ErrorText: p.errorText,
		}), nil
	case jsSetDate:
		m := arg.(map[string]string)
		p.fills[m["sel"]] = m["value"]
		return browser.MustValue(true), nil
	case jsReadOffers:
		return browser.MustValue(p.offers), nil
	case jsClickButtonByText:
		return browser.MustValue(p.buttons[arg.(string)]), nil
	case jsInnerHTML:
		return browser.MustValue(p.cardHTML), nil
	case jsDispatchInput, jsScrollIntoView, jsBodyMatches:
		return browser.MustValue(true), nil
	}
	return browser.Value{}, fmt.Errorf("unexpected script %.40q", js)
}

func (p *fakePage) IsVisible(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	return p.visible[selector], nil
}

func (p *fakePage) Text(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	return "", nil
}

func (p *fakePage) Screenshot(ctx context.Context, selector string, timeout time.Duration) ([]byte, error) {
	if p.screenshotErr != nil {
		return nil, p.screenshotErr
	}
	return []byte("png:" + selector), nil
}

func (p *fakePage) WaitFor(ctx context.Context, predicate string, timeout time.Duration, args ...interface{}) error {
	return nil
}

func (p *fakePage) Snapshot(ctx context.Context) ([]byte, string, error) {
	return []byte("png"), "<html>snapshot</html>", nil
}

type fakeSession struct {
	page   *fakePage
	closed bool
}

func (s *fakeSession) Page() browser.Page { return s.page }
func (s *fakeSession) Close() error       { s.closed = true; return nil }

// fakeLauncher hands out one prepared page per Open call.
type fakeLauncher struct {
	pages    []*fakePage
	sessions []*fakeSession
	proxies  []string
	err      error
}

func (l *fakeLauncher) Open(ctx context.Context, proxy string) (browser.Session, error) {
	l.proxies = append(l.proxies, proxy)
	if l.err != nil {
		return nil, l.err
	}
	page := l.pages[0]
	if len(l.pages) > 1 {
		l.pages = l.pages[1:]
	}
	s := &fakeSession{page: page}
	l.sessions = append(l.sessions, s)
	return s, nil
}

// answers returns OCR results in order, repeating the last one.
func answers(texts ...string) ocr.Engine {
	i := 0
	return ocr.EngineFunc(func(ctx context.Context, img []byte) (string, error) {
		t := texts[i]
		if i < len(texts)-1 {
			i++
		}
		return t, nil
	})
}

// fastConfig keeps every wait in the low milliseconds.
func fastConfig() *config.Config {
	c := config.DefaultConfig()
	c.Search.Date = "2025-10-20"
	c.Booking.IDNumber = "A123456789"
	c.Booking.Phone = "0912345678"
	c.Timing = config.TimingConfig{
		OverlayPollMs:         2,
		ClassifyPollMs:        2,
		SettleMs:              2,
		SubmitTimeoutMs:       40,
		InitialOverlayMs:      20,
		StepOverlayMs:         20,
		NavigateTimeoutMs:     20,
		ClickTimeoutMs:        5,
		CaptchaRefreshMs:      5,
		CaptchaRefreshWaitMs:  1,
		CaptchaImageTimeoutMs: 5,
		ConfirmTimeoutMs:      40,
	}
	c.DebugDir = ""
	return c
}

// stall blocks the way a driver does on a page that never answers: until its
// own timeout or ctx ends.
func stall(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	<-ctx.Done()
	return fmt.Errorf("eval: %w", browser.ErrTimeout)
}
