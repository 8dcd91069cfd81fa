package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightLauncher starts Chromium, or Edge when Channel is "msedge".
type PlaywrightLauncher struct {
	opts Options
}

func (l *PlaywrightLauncher) Open(ctx context.Context, proxy string) (Session, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}
	s := &pwSession{pw: pw}

	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.opts.Headless),
		Args:     []string{"--disable-blink-features=AutomationControlled"},
	}
	if l.opts.Channel != "" {
		launch.Channel = playwright.String(l.opts.Channel)
	}
	if l.opts.Bin != "" {
		launch.ExecutablePath = playwright.String(l.opts.Bin)
	}
	if proxy != "" {
		launch.Proxy = &playwright.Proxy{Server: proxy}
	}

	s.browser, err = pw.Chromium.Launch(launch)
	if err != nil {
		s.Close()
		if isLaunchLockError(err) {
			return nil, fmt.Errorf("browser already running with this profile: %w", err)
		}
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{}
	if l.opts.Locale != "" {
		contextOpts.Locale = playwright.String(l.opts.Locale)
	}
	if l.opts.Timezone != "" {
		contextOpts.TimezoneId = playwright.String(l.opts.Timezone)
	}
	if l.opts.UserAgent != "" {
		contextOpts.UserAgent = playwright.String(l.opts.UserAgent)
	}
	if l.opts.ViewportWidth > 0 && l.opts.ViewportHeight > 0 {
		contextOpts.Viewport = &playwright.Size{Width: l.opts.ViewportWidth, Height: l.opts.ViewportHeight}
	}
	if l.opts.AcceptLanguage != "" {
		contextOpts.ExtraHttpHeaders = map[string]string{"Accept-Language": l.opts.AcceptLanguage}
	}

	s.context, err = s.browser.NewContext(contextOpts)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("could not create context: %w", err)
	}
	if err := s.context.AddInitScript(playwright.Script{Content: playwright.String(initScript)}); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to install init script: %w", err)
	}

	page, err := s.context.NewPage()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("could not create page: %w", err)
	}
	s.page = &pwPage{page: page}
	return s, nil
}

type pwSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    *pwPage
}

func (s *pwSession) Page() Page { return s.page }

func (s *pwSession) Close() error {
	var errs []error
	if s.context != nil {
		errs = append(errs, s.context.Close())
	}
	if s.browser != nil {
		errs = append(errs, s.browser.Close())
	}
	if s.pw != nil {
		errs = append(errs, s.pw.Stop())
	}
	return errors.Join(errs...)
}

type pwPage struct {
	page playwright.Page
}

func millis(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

func pwErr(op, selector string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%s %s: %w", op, selector, ErrTimeout)
	}
	return fmt.Errorf("%s %s: %w", op, selector, err)
}

// Playwright calls are not context-aware; a cancelled context is checked up front.
func live(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

func (p *pwPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := live(ctx); err != nil {
		return err
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   millis(timeout),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	return pwErr("navigate", url, err)
}

func (p *pwPage) Click(ctx context.Context, selector string, timeout time.Duration) error {
	return p.ClickNth(ctx, selector, 0, timeout)
}

func (p *pwPage) ClickNth(ctx context.Context, selector string, index int, timeout time.Duration) error {
	if err := live(ctx); err != nil {
		return err
	}
	err := p.page.Locator(selector).Nth(index).Click(playwright.LocatorClickOptions{
		Timeout:     millis(timeout),
		NoWaitAfter: playwright.Bool(true),
	})
	return pwErr("click", selector, err)
}

func (p *pwPage) Fill(ctx context.Context, selector, text string, timeout time.Duration) error {
	if err := live(ctx); err != nil {
		return err
	}
	err := p.page.Locator(selector).First().Fill(text, playwright.LocatorFillOptions{Timeout: millis(timeout)})
	return pwErr("fill", selector, err)
}

func (p *pwPage) Select(ctx context.Context, selector string, opt Option, timeout time.Duration) error {
	if err := live(ctx); err != nil {
		return err
	}
	values := playwright.SelectOptionValues{Values: &[]string{opt.Value}}
	if opt.Label != "" {
		values = playwright.SelectOptionValues{Labels: &[]string{opt.Label}}
	}
	_, err := p.page.Locator(selector).First().SelectOption(values, playwright.LocatorSelectOptionOptions{
		Timeout: millis(timeout),
	})
	return pwErr("select", selector, err)
}

func (p *pwPage) Check(ctx context.Context, selector string, timeout time.Duration) error {
	if err := live(ctx); err != nil {
		return err
	}
	err := p.page.Locator(selector).First().Check(playwright.LocatorCheckOptions{Timeout: millis(timeout)})
	return pwErr("check", selector, err)
}

type evalResult struct {
	value interface{}
	err   error
}

// Eval has no driver-side timeout, so the call runs aside and is abandoned when
// timeout or ctx ends first. A stalled evaluate is released when the session closes.
func (p *pwPage) Eval(ctx context.Context, js string, timeout time.Duration, args ...interface{}) (Value, error) {
	if err := live(ctx); err != nil {
		return Value{}, err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan evalResult, 1)
	go func() {
		v, err := p.page.Evaluate(js, args...)
		done <- evalResult{value: v, err: err}
	}()

	var res interface{}
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Value{}, fmt.Errorf("eval: %w", ErrTimeout)
		}
		return Value{}, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return Value{}, pwErr("eval", "", r.err)
		}
		res = r.value
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return Value{}, fmt.Errorf("eval: %w", err)
	}
	return Value{raw: raw}, nil
}

func (p *pwPage) IsVisible(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	if err := live(ctx); err != nil {
		return false, err
	}
	loc := p.page.Locator(selector).First()
	if timeout <= 0 {
		visible, err := loc.IsVisible()
		return visible, pwErr("visible", selector, err)
	}
	err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: millis(timeout),
	})
	if errors.Is(err, playwright.ErrTimeout) {
		return false, nil
	}
	return err == nil, pwErr("visible", selector, err)
}

func (p *pwPage) Text(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	if err := live(ctx); err != nil {
		return "", err
	}
	text, err := p.page.Locator(selector).First().InnerText(playwright.LocatorInnerTextOptions{Timeout: millis(timeout)})
	return text, pwErr("text", selector, err)
}

func (p *pwPage) Screenshot(ctx context.Context, selector string, timeout time.Duration) ([]byte, error) {
	if err := live(ctx); err != nil {
		return nil, err
	}
	loc := p.page.Locator(selector).First()
	err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: millis(timeout),
	})
	if err != nil {
		return nil, pwErr("screenshot", selector, err)
	}
	img, err := loc.Screenshot(playwright.LocatorScreenshotOptions{Timeout: millis(timeout)})
	return img, pwErr("screenshot", selector, err)
}

func (p *pwPage) WaitFor(ctx context.Context, predicate string, timeout time.Duration, args ...interface{}) error {
	if err := live(ctx); err != nil {
		return err
	}
	var arg interface{}
	if len(args) > 0 {
		arg = args[0]
	}
	_, err := p.page.WaitForFunction(predicate, arg, playwright.PageWaitForFunctionOptions{
		Timeout: millis(timeout),
	})
	return pwErr("wait", "", err)
}

func (p *pwPage) Snapshot(ctx context.Context) ([]byte, string, error) {
	if err := live(ctx); err != nil {
		return nil, "", err
	}
	img, err := p.page.Screenshot(playwright.PageScreenshotOptions{FullPage: playwright.Bool(true)})
	if err != nil {
		return nil, "", fmt.Errorf("screenshot: %w", err)
	}
	html, err := p.page.Content()
	if err != nil {
		return img, "", fmt.Errorf("html: %w", err)
	}
	return img, html, nil
}
