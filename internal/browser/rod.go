package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"thsrbook/internal/logger"
)

// RodLauncher drives a local Chrome/Edge over the DevTools protocol.
type RodLauncher struct {
	opts Options
}

func (l *RodLauncher) Open(ctx context.Context, proxy string) (Session, error) {
	// Leakless deadlocks on Windows: https://github.com/go-rod/rod/issues/853
	l2 := launcher.New().
		Context(ctx).
		Leakless(runtime.GOOS != "windows").
		Headless(l.opts.Headless).
		Set("lang", l.opts.Locale)

	if proxy != "" {
		l2 = l2.Proxy(proxy)
	}

	if l.opts.Bin != "" {
		l2 = l2.Bin(l.opts.Bin)
	} else if path, ok := launcher.LookPath(); ok {
		l2 = l2.Bin(path)
		logger.Debug("using system browser %s", path)
	}

	url, err := l2.Launch()
	if err != nil {
		l2.Cleanup()
		switch {
		case isLaunchLockError(err):
			return nil, fmt.Errorf("browser already running with this profile, close it and retry: %w", err)
		case isPermissionError(err):
			return nil, fmt.Errorf("browser download or start was denied, set browser.bin to an installed Chrome/Edge: %w", err)
		}
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().Context(ctx).ControlURL(url)
	if err := b.Connect(); err != nil {
		l2.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	s := &rodSession{launcher: l2, browser: b}
	page, err := stealth.Page(b)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create stealth page: %w", err)
	}
	s.page = &rodPage{page: page}

	if err := l.configure(page); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (l *RodLauncher) configure(page *rod.Page) error {
	if _, err := page.EvalOnNewDocument(initScript); err != nil {
		return fmt.Errorf("failed to install init script: %w", err)
	}
	if l.opts.UserAgent != "" {
		err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      l.opts.UserAgent,
			AcceptLanguage: l.opts.AcceptLanguage,
		})
		if err != nil {
			logger.Warn("failed to set user agent: %v", err)
		}
	}
	if l.opts.ViewportWidth > 0 && l.opts.ViewportHeight > 0 {
		err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             l.opts.ViewportWidth,
			Height:            l.opts.ViewportHeight,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			logger.Warn("failed to set viewport: %v", err)
		}
	}
	if l.opts.Timezone != "" {
		if err := (proto.EmulationSetTimezoneOverride{TimezoneID: l.opts.Timezone}).Call(page); err != nil {
			logger.Warn("failed to set timezone: %v", err)
		}
	}
	if l.opts.Locale != "" {
		if err := (proto.EmulationSetLocaleOverride{Locale: l.opts.Locale}).Call(page); err != nil {
			logger.Warn("failed to set locale: %v", err)
		}
	}
	return nil
}

type rodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rodPage
}

func (s *rodSession) Page() Page { return s.page }

func (s *rodSession) Close() error {
	var errs []error
	if s.page != nil {
		errs = append(errs, s.page.page.Close())
	}
	if s.browser != nil {
		errs = append(errs, s.browser.Close())
	}
	if s.launcher != nil {
		s.launcher.Cleanup()
	}
	return errors.Join(errs...)
}

type rodPage struct {
	page *rod.Page
}

// scoped binds ctx and an optional timeout to a page clone.
func (p *rodPage) scoped(ctx context.Context, timeout time.Duration) (*rod.Page, func()) {
	pg := p.page.Context(ctx)
	if timeout <= 0 {
		return pg, func() {}
	}
	pg = pg.Timeout(timeout)
	return pg, func() { pg.CancelTimeout() }
}

func rodErr(op, selector string, err error) error {
	if err == nil {
		return nil
	}
	var notFound *rod.ElementNotFoundError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s %s: %w", op, selector, ErrTimeout)
	case errors.As(err, &notFound):
		return fmt.Errorf("%s %s: %w", op, selector, ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, selector, err)
}

func (p *rodPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	pg, cancel := p.scoped(ctx, timeout)
	defer cancel()
	if err := pg.Navigate(url); err != nil {
		return rodErr("navigate", url, err)
	}
	return rodErr("load", url, pg.WaitLoad())
}

func (p *rodPage) element(ctx context.Context, selector string, timeout time.Duration) (*rod.Element, func(), error) {
	pg, cancel := p.scoped(ctx, timeout)
	el, err := pg.Element(selector)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return el, cancel, nil
}

func (p *rodPage) Click(ctx context.Context, selector string, timeout time.Duration) error {
	el, cancel, err := p.element(ctx, selector, timeout)
	if err != nil {
		return rodErr("click", selector, err)
	}
	defer cancel()
	return rodErr("click", selector, el.Click(proto.InputMouseButtonLeft, 1))
}

func (p *rodPage) ClickNth(ctx context.Context, selector string, index int, timeout time.Duration) error {
	pg, cancel := p.scoped(ctx, timeout)
	defer cancel()
	if _, err := pg.Element(selector); err != nil {
		return rodErr("click", selector, err)
	}
	els, err := pg.Elements(selector)
	if err != nil {
		return rodErr("click", selector, err)
	}
	if index < 0 || index >= len(els) {
		return fmt.Errorf("click %s[%d] of %d: %w", selector, index, len(els), ErrNotFound)
	}
	return rodErr("click", selector, els[index].Click(proto.InputMouseButtonLeft, 1))
}

func (p *rodPage) Fill(ctx context.Context, selector, text string, timeout time.Duration) error {
	el, cancel, err := p.element(ctx, selector, timeout)
	if err != nil {
		return rodErr("fill", selector, err)
	}
	defer cancel()
	if err := el.SelectAllText(); err != nil {
		return rodErr("fill", selector, err)
	}
	return rodErr("fill", selector, el.Input(text))
}

func (p *rodPage) Select(ctx context.Context, selector string, opt Option, timeout time.Duration) error {
	el, cancel, err := p.element(ctx, selector, timeout)
	if err != nil {
		return rodErr("select", selector, err)
	}
	defer cancel()
	if opt.Label != "" {
		return rodErr("select", selector, el.Select([]string{opt.Label}, true, rod.SelectorTypeText))
	}
	css := fmt.Sprintf(`[value="%s"]`, opt.Value)
	return rodErr("select", selector, el.Select([]string{css}, true, rod.SelectorTypeCSSSector))
}

func (p *rodPage) Check(ctx context.Context, selector string, timeout time.Duration) error {
	el, cancel, err := p.element(ctx, selector, timeout)
	if err != nil {
		return rodErr("check", selector, err)
	}
	defer cancel()
	checked, err := el.Property("checked")
	if err == nil && checked.Bool() {
		return nil
	}
	return rodErr("check", selector, el.Click(proto.InputMouseButtonLeft, 1))
}

func (p *rodPage) Eval(ctx context.Context, js string, timeout time.Duration, args ...interface{}) (Value, error) {
	pg, cancel := p.scoped(ctx, timeout)
	defer cancel()
	res, err := pg.Eval(js, args...)
	if err != nil {
		return Value{}, rodErr("eval", "", err)
	}
	raw, err := json.Marshal(res.Value)
	if err != nil {
		return Value{}, fmt.Errorf("eval: %w", err)
	}
	return Value{raw: raw}, nil
}

func (p *rodPage) IsVisible(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	pg, cancel := p.scoped(ctx, timeout)
	defer cancel()
	if timeout > 0 {
		if _, err := pg.Element(selector); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return false, nil
			}
			return false, rodErr("visible", selector, err)
		}
	}
	has, el, err := pg.Has(selector)
	if err != nil || !has {
		return false, rodErr("visible", selector, err)
	}
	visible, err := el.Visible()
	return visible, rodErr("visible", selector, err)
}

func (p *rodPage) Text(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	el, cancel, err := p.element(ctx, selector, timeout)
	if err != nil {
		return "", rodErr("text", selector, err)
	}
	defer cancel()
	text, err := el.Text()
	return text, rodErr("text", selector, err)
}

func (p *rodPage) Screenshot(ctx context.Context, selector string, timeout time.Duration) ([]byte, error) {
	el, cancel, err := p.element(ctx, selector, timeout)
	if err != nil {
		return nil, rodErr("screenshot", selector, err)
	}
	defer cancel()
	if err := el.WaitVisible(); err != nil {
		return nil, rodErr("screenshot", selector, err)
	}
	img, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	return img, rodErr("screenshot", selector, err)
}

func (p *rodPage) WaitFor(ctx context.Context, predicate string, timeout time.Duration, args ...interface{}) error {
	pg, cancel := p.scoped(ctx, timeout)
	defer cancel()
	return rodErr("wait", "", pg.Wait(rod.Eval(predicate, args...)))
}

func (p *rodPage) Snapshot(ctx context.Context) ([]byte, string, error) {
	pg := p.page.Context(ctx)
	img, err := pg.Screenshot(true, nil)
	if err != nil {
		return nil, "", fmt.Errorf("screenshot: %w", err)
	}
	html, err := pg.HTML()
	if err != nil {
		return img, "", fmt.Errorf("html: %w", err)
	}
	return img, html, nil
}
