package wizard

import (
	"context"
	"time"

	"thsrbook/internal/browser"
	"thsrbook/internal/logger"
)

// OverlayResolver waits out the site's blocking "please wait" overlay and forces
// it closed when it outlives its timeout.
type OverlayResolver struct {
	page      browser.Page
	selectors []string
	interval  time.Duration
	settle    time.Duration
	eval      time.Duration
}

// NewOverlayResolver checks every interval; each script call is bounded by eval.
func NewOverlayResolver(page browser.Page, selectors []string, interval, settle, eval time.Duration) *OverlayResolver {
	return &OverlayResolver{page: page, selectors: selectors, interval: interval, settle: settle, eval: eval}
}

// clear is one visibility check; driver errors count as not clear.
func (o *OverlayResolver) clear(ctx context.Context) bool {
	v, err := o.page.Eval(ctx, jsOverlayClear, o.eval, o.selectors)
	if err != nil {
		logger.Debug("overlay check: %v", err)
		return false
	}
	return v.Bool()
}

// AwaitClear reports whether the overlay is gone. Past maxWait it forces the
// overlay hidden, waits the settle delay, and checks once more.
func (o *OverlayResolver) AwaitClear(ctx context.Context, maxWait time.Duration) bool {
	if poll(ctx, o.interval, maxWait, o.clear) {
		return true
	}
	if ctx.Err() != nil {
		return false
	}

	logger.Warn("overlay still shown after %v, forcing it closed", maxWait)
	if _, err := o.page.Eval(ctx, jsForceHide, o.eval, o.selectors); err != nil {
		logger.Debug("force hide: %v", err)
	}
	if err := sleep(ctx, o.settle); err != nil {
		return false
	}
	return o.clear(ctx)
}
