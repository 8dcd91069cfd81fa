package wizard

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"thsrbook/internal/browser"
	"thsrbook/internal/config"
	"thsrbook/internal/logger"
	"thsrbook/internal/models"
	"thsrbook/internal/ocr"
)

// Booker runs one complete booking attempt per round on a fresh browser session.
type Booker struct {
	cfg      *config.Config
	launcher browser.Launcher
	engine   ocr.Engine
	criteria models.SearchCriteria
}

func NewBooker(cfg *config.Config, launcher browser.Launcher, engine ocr.Engine) *Booker {
	return &Booker{cfg: cfg, launcher: launcher, engine: engine, criteria: cfg.Criteria()}
}

// Attempt never panics and always closes the session it opened.
func (b *Booker) Attempt(ctx context.Context, round int, proxy string) (res models.AttemptResult) {
	session, err := b.launcher.Open(ctx, proxy)
	if err != nil {
		return models.AttemptResult{Outcome: models.OutcomeException, Cause: err.Error(), Err: err}
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Debug("close session: %v", err)
		}
	}()

	page := session.Page()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("round %d panicked: %v\n%s", round, r, debug.Stack())
			res = models.AttemptResult{
				Outcome: models.OutcomeException,
				Cause:   fmt.Sprintf("panic: %v", r),
				Err:     fmt.Errorf("panic: %v", r),
			}
		}
		if res.Outcome != models.OutcomeBooked && b.cfg.DebugMode {
			label := fmt.Sprintf("round%03d_%s_%s", round, res.Outcome, time.Now().Format("150405"))
			if err := SaveSnapshot(context.WithoutCancel(ctx), page, b.cfg.DebugDir, label); err != nil {
				logger.Debug("debug snapshot: %v", err)
			}
		}
	}()

	return b.run(ctx, NewFlow(b.cfg, page, b.engine))
}

func (b *Booker) run(ctx context.Context, flow *Flow) models.AttemptResult {
	offers, outcome, err := flow.Search(ctx, b.criteria)
	if err != nil {
		return models.AttemptResult{Outcome: models.OutcomeException, Cause: err.Error(), Err: err}
	}
	switch outcome {
	case models.OutcomeCaptchaFailed:
		return models.AttemptResult{Outcome: outcome, Cause: "captcha not solved"}
	case models.OutcomeSubmitFailed:
		cause := "no results after submit"
		if banner := flow.LastBanner(); banner != "" {
			cause = banner
		}
		return models.AttemptResult{Outcome: outcome, Cause: cause}
	}

	idx := PickMatching(offers, b.criteria.TargetDiscount)
	if idx == NotFound {
		return models.AttemptResult{
			Outcome: models.OutcomeNoMatch,
			Cause:   fmt.Sprintf("%d trains, none with %s", len(offers), b.criteria.TargetDiscount),
			Offers:  offers,
		}
	}
	picked := offers[idx]
	logger.Info("matched %s", picked.Summary())

	if err := flow.SelectOffer(ctx, idx); err != nil {
		return models.AttemptResult{Outcome: models.OutcomeException, Cause: err.Error(), Err: err, Offers: offers}
	}
	card := flow.TicketCard(ctx)

	if !flow.Confirm(ctx, b.cfg.Booking) {
		return models.AttemptResult{
			Outcome:      models.OutcomeSubmitFailed,
			Cause:        "booking confirmation not completed",
			Confirmation: card,
			Offers:       offers,
		}
	}
	return models.AttemptResult{
		Outcome:      models.OutcomeBooked,
		Cause:        picked.Summary(),
		Confirmation: card,
		Offers:       offers,
	}
}

// ErrSearchFailed is returned by Searcher.Search when no result list was reached.
var ErrSearchFailed = errors.New("search failed")

// Searcher runs the search half of the flow and returns every offer shown.
type Searcher struct {
	cfg      *config.Config
	launcher browser.Launcher
	engine   ocr.Engine
	criteria models.SearchCriteria
}

func NewSearcher(cfg *config.Config, launcher browser.Launcher, engine ocr.Engine) *Searcher {
	return &Searcher{cfg: cfg, launcher: launcher, engine: engine, criteria: cfg.Criteria()}
}

// Search saves a debug snapshot on failure, on an empty list and on panics.
func (s *Searcher) Search(ctx context.Context, proxy string) (offers []models.TrainOffer, err error) {
	session, err := s.launcher.Open(ctx, proxy)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logger.Debug("close session: %v", cerr)
		}
	}()

	page := session.Page()
	snapshot := func(label string) {
		if serr := SaveSnapshot(context.WithoutCancel(ctx), page, s.cfg.DebugDir, label); serr != nil {
			logger.Debug("debug snapshot: %v", serr)
		}
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("search panicked: %v\n%s", r, debug.Stack())
			snapshot("exception")
			offers, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	offers, outcome, err := NewFlow(s.cfg, page, s.engine).Search(ctx, s.criteria)
	switch {
	case err != nil:
		snapshot("exception")
		return nil, err
	case outcome != models.OutcomeNoMatch:
		snapshot("failed")
		return nil, fmt.Errorf("%w: %s", ErrSearchFailed, outcome)
	case len(offers) == 0:
		snapshot("no_rows")
	}
	return offers, nil
}
