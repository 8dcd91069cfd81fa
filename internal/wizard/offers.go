package wizard

import (
	"context"
	"fmt"

	"thsrbook/internal/logger"
	"thsrbook/internal/models"
)

// ReadOffers scrapes the result list in rendered order.
func (f *Flow) ReadOffers(ctx context.Context, target string) ([]models.TrainOffer, error) {
	sel := f.cfg.Selectors
	v, err := f.page.Eval(ctx, jsReadOffers, f.cfg.Timing.EvalTimeout(), map[string]string{
		"row":      sel.ResultRow,
		"radio":    sel.ResultRadio,
		"discount": sel.ResultDiscount,
	})
	if err != nil {
		return nil, fmt.Errorf("read offers: %w", err)
	}

	var offers []models.TrainOffer
	if err := v.Decode(&offers); err != nil {
		return nil, fmt.Errorf("decode offers: %w", err)
	}
	for i := range offers {
		offers[i].Derive(target)
	}
	logger.Debug("read %d offers", len(offers))
	return offers, nil
}

// SelectOffer picks the row at index, confirms the train and waits out the overlay.
func (f *Flow) SelectOffer(ctx context.Context, index int) error {
	sel := f.cfg.Selectors
	timeout := f.cfg.Timing.ConfirmTimeout()

	if err := f.page.ClickNth(ctx, sel.ResultRow, index, timeout); err != nil {
		return fmt.Errorf("select offer %d: %w", index, err)
	}
	f.pause.pause(ctx)

	if err := f.page.Click(ctx, sel.ConfirmTrain, f.cfg.Timing.ClickTimeout()); err != nil {
		logger.Debug("confirm button: %v, trying by text", err)
		v, err := f.page.Eval(ctx, jsClickButtonByText, f.cfg.Timing.EvalTimeout(), "確認車次")
		if err != nil || !v.Bool() {
			logger.Warn("confirm train button not found")
		}
	}

	f.overlay.AwaitClear(ctx, f.cfg.Timing.StepOverlay())
	return nil
}

// TicketCard returns the booking summary card HTML, or "" when there is none.
func (f *Flow) TicketCard(ctx context.Context) string {
	v, err := f.page.Eval(ctx, jsInnerHTML, f.cfg.Timing.EvalTimeout(), f.cfg.Selectors.TicketCard)
	if err != nil {
		logger.Debug("ticket card: %v", err)
		return ""
	}
	return v.Str()
}
