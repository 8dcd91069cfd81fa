package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"thsrbook/internal/browser"
	"thsrbook/internal/clock"
	"thsrbook/internal/config"
	"thsrbook/internal/locale"
	"thsrbook/internal/logger"
	"thsrbook/internal/notify"
	"thsrbook/internal/ocr"
	"thsrbook/internal/scheduler"
)

// app holds what every command builds from the config file.
type app struct {
	cfg      *config.Config
	loc      *locale.Locale
	reporter *notify.Reporter
}

func load(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.debug {
		cfg.DebugMode = true
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// start finishes setup once flags have been applied to cfg.
func start(cfg *config.Config) (*app, error) {
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	checkDataDir()

	loc := locale.MustLoad(locale.Detect(cfg.Notify.Language))
	n, err := notify.New(cfg.Notify)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:      cfg,
		loc:      loc,
		reporter: notify.NewReporter(n, loc, cfg.Criteria()),
	}, nil
}

// guard turns a panic into a fatal notification and exit status 1.
func (a *app) guard(ctx context.Context) {
	r := recover()
	if r == nil {
		return
	}
	stack := debug.Stack()
	logger.Error("fatal: %v\n%s", r, stack)
	a.fatal(ctx, fmt.Errorf("panic: %v", r), stack)
	os.Exit(1)
}

func (a *app) fatal(ctx context.Context, cause error, stack []byte) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := a.reporter.Fatal(sendCtx, cause, stack); err != nil {
		logger.Error("fatal notification failed: %v", err)
	}
}

// finish reports run errors other than cancellation.
func (a *app) finish(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		if err != nil {
			logger.Info("stopped")
		}
		return nil
	}
	a.fatal(ctx, err, nil)
	return err
}

func (a *app) engines() (browser.Launcher, ocr.Engine, error) {
	launcher, err := browser.New(a.cfg.Browser.Engine, browser.OptionsFrom(a.cfg.Browser))
	if err != nil {
		return nil, nil, err
	}
	engine, err := ocr.New(a.cfg.OCR)
	if err != nil {
		return nil, nil, fmt.Errorf("ocr: %w", err)
	}
	return launcher, engine, nil
}

// schedule builds a scheduler over attempter using the watch limits.
func (a *app) schedule(ctx context.Context, attempter scheduler.Attempter, notifyExhausted bool) (*scheduler.Scheduler, error) {
	proxies, err := a.cfg.LoadProxies()
	if err != nil {
		return nil, err
	}
	deadline, err := a.cfg.Deadline()
	if err != nil {
		return nil, err
	}
	min, max := a.cfg.Watch.Backoff()

	var options []scheduler.Option
	if a.cfg.Watch.SyncClock {
		c := clock.NewSynced(a.cfg.SiteURL)
		if err := c.Sync(ctx); err != nil {
			logger.Warn("clock sync failed, using local time: %v", err)
		} else {
			logger.Info("clock offset vs %s: %v", a.cfg.SiteURL, c.Offset())
		}
		options = append(options, scheduler.WithClock(c))
	}

	return scheduler.New(attempter, a.reporter, scheduler.Options{
		MaxRounds:       a.cfg.Watch.MaxRounds,
		Deadline:        deadline,
		BackoffMin:      min,
		BackoffMax:      max,
		Proxies:         proxies,
		NotifyExhausted: notifyExhausted,
	}, options...), nil
}

// checkDataDir creates the state directory and explains the macOS privacy
// prompt when that fails.
func checkDataDir() {
	dir := config.DataDir()
	err := os.MkdirAll(dir, 0o755)
	if err == nil {
		return
	}
	if runtime.GOOS == "darwin" && strings.Contains(err.Error(), "operation not permitted") {
		logger.Warn("macOS blocked access to %s. Grant your terminal Full Disk Access in System Settings > Privacy & Security, then retry.", dir)
	}
	logger.Warn("could not create data directory %s: %v", dir, err)
}
