// Package watch polls for discounted trains and announces each new one once.
package watch

import (
	"context"
	"fmt"
	"strings"

	"thsrbook/internal/export"
	"thsrbook/internal/logger"
	"thsrbook/internal/models"
	"thsrbook/internal/store"
)

// Source produces this round's offers.
type Source interface {
	Fetch(ctx context.Context, proxy string) ([]models.TrainOffer, error)
}

// Searcher is satisfied by *wizard.Searcher.
type Searcher interface {
	Search(ctx context.Context, proxy string) ([]models.TrainOffer, error)
}

// HitNotifier is satisfied by *notify.Reporter.
type HitNotifier interface {
	Hits(ctx context.Context, keyword string, hits []models.TrainOffer) error
}

// Watcher implements scheduler.Attempter. Its rounds never book, so the
// scheduler keeps it running until the round budget or deadline.
type Watcher struct {
	source   Source
	store    store.Store
	notifier HitNotifier
	keyword  string
}

func New(source Source, st store.Store, n HitNotifier, keyword string) *Watcher {
	return &Watcher{source: source, store: st, notifier: n, keyword: keyword}
}

func (w *Watcher) Attempt(ctx context.Context, round int, proxy string) models.AttemptResult {
	offers, err := w.source.Fetch(ctx, proxy)
	if err != nil {
		// Rows returned alongside the error are still checked.
		logger.Warn("round %d: fetch: %v", round, err)
	}

	hits := Matching(offers, w.keyword)
	fresh, ferr := w.fresh(ctx, hits)
	if ferr != nil {
		return models.AttemptResult{Outcome: models.OutcomeException, Cause: ferr.Error(), Err: ferr}
	}
	if len(fresh) == 0 {
		res := models.AttemptResult{
			Outcome: models.OutcomeNoMatch,
			Cause:   fmt.Sprintf("%d rows, %d with %s, none new", len(offers), len(hits), w.keyword),
			Offers:  offers,
		}
		if err != nil {
			res.Outcome, res.Cause, res.Err = models.OutcomeException, err.Error(), err
		}
		return res
	}

	for _, o := range fresh {
		logger.Info("new hit: %s", o.Summary())
	}
	if err := w.notifier.Hits(ctx, w.keyword, fresh); err != nil {
		// Not recorded, so the next round tries again.
		return models.AttemptResult{
			Outcome: models.OutcomeException,
			Cause:   fmt.Sprintf("notify %d hits: %v", len(fresh), err),
			Offers:  fresh,
			Err:     err,
		}
	}

	keys := make([]string, len(fresh))
	for i, o := range fresh {
		keys[i] = o.Key()
	}
	if err := w.store.Add(ctx, keys...); err != nil {
		return models.AttemptResult{Outcome: models.OutcomeException, Cause: err.Error(), Offers: fresh, Err: err}
	}
	return models.AttemptResult{
		Outcome: models.OutcomeNoMatch,
		Cause:   fmt.Sprintf("notified %d new hits", len(fresh)),
		Offers:  fresh,
	}
}

// fresh keeps the first offer per key that the store has not seen.
func (w *Watcher) fresh(ctx context.Context, hits []models.TrainOffer) ([]models.TrainOffer, error) {
	byKey := make(map[string]models.TrainOffer, len(hits))
	keys := make([]string, 0, len(hits))
	for _, o := range hits {
		k := o.Key()
		if _, ok := byKey[k]; !ok {
			byKey[k] = o
		}
		keys = append(keys, k)
	}
	newKeys, err := store.Filter(ctx, w.store, keys)
	if err != nil {
		return nil, fmt.Errorf("dedupe: %w", err)
	}
	out := make([]models.TrainOffer, 0, len(newKeys))
	for _, k := range newKeys {
		out = append(out, byKey[k])
	}
	return out, nil
}

// Matching returns the offers whose discount text contains keyword.
func Matching(offers []models.TrainOffer, keyword string) []models.TrainOffer {
	if keyword == "" {
		return nil
	}
	var out []models.TrainOffer
	for _, o := range offers {
		if strings.Contains(o.Discount, keyword) {
			out = append(out, o)
		}
	}
	return out
}

// InProcess searches with the wizard and appends every row to csvPath.
type InProcess struct {
	Searcher Searcher
	CSVPath  string
}

func (s InProcess) Fetch(ctx context.Context, proxy string) ([]models.TrainOffer, error) {
	offers, err := s.Searcher.Search(ctx, proxy)
	if err != nil {
		return nil, err
	}
	if s.CSVPath != "" {
		n, err := export.Append(s.CSVPath, offers)
		if err != nil {
			logger.Warn("export: %v", err)
		} else if n > 0 {
			logger.Info("wrote %d rows to %s", n, s.CSVPath)
		}
	}
	return offers, nil
}
