package wizard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thsrbook/internal/models"
)

const submitSel = "#SubmitButton"

type countingSolver struct {
	calls int
	ok    bool
}

func (s *countingSolver) SolveAndFill(ctx context.Context, maxAttempts int) bool {
	s.calls++
	return s.ok
}

func newController(p *fakePage, solver Solver) *SubmissionController {
	return NewSubmissionController(p,
		NewOverlayResolver(p, overlays, time.Millisecond, time.Millisecond, time.Second),
		resultsClassifier(p),
		solver,
		MarkerPolicy{"驗證碼", "錯誤", "請重新輸入"},
		SubmitOptions{
			SubmitSelector:     submitSel,
			SubmitTimeout:      20 * time.Millisecond,
			ClickTimeout:       time.Millisecond,
			CaptchaMaxAttempts: 6,
		})
}

func TestSubmitSucceedsAfterCaptchaErrors(t *testing.T) {
	for k := 1; k <= 4; k++ {
		p := newFakePage()
		for i := 1; i < k; i++ {
			p.queue(submitSel, showError("驗證碼錯誤，請重新輸入"))
		}
		p.queue(submitSel, showResults)

		solver := &countingSolver{ok: true}
		s := newController(p, solver)

		require.True(t, s.SubmitAndAwaitResults(context.Background(), 6), "k=%d", k)
		assert.Equal(t, k-1, solver.calls, "k=%d", k)
		assert.Equal(t, k-1, s.Resolves())
		assert.Equal(t, k, p.clickCount(submitSel))
	}
}

func TestSubmitAbortsOnTerminalBanner(t *testing.T) {
	p := newFakePage()
	p.queue(submitSel, showError("查無可售車次"))
	solver := &countingSolver{ok: true}
	s := newController(p, solver)

	assert.False(t, s.SubmitAndAwaitResults(context.Background(), 6))
	assert.Equal(t, 0, solver.calls)
	assert.Equal(t, 1, p.clickCount(submitSel))
	assert.Equal(t, "查無可售車次", s.LastBanner())
}

func TestSubmitTerminatesWithinMaxRetries(t *testing.T) {
	tests := []struct {
		name string
		hook func(*fakePage)
	}{
		{"recoverable error every time", showError("驗證碼錯誤")},
		{"nothing ever shows", showNothing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakePage()
			for i := 0; i < 10; i++ {
				p.queue(submitSel, tt.hook)
			}
			solver := &countingSolver{ok: true}
			s := newController(p, solver)

			assert.False(t, s.SubmitAndAwaitResults(context.Background(), 3))
			assert.Equal(t, 3, p.clickCount(submitSel))
			assert.Equal(t, 3, solver.calls)
		})
	}
}

func TestSubmitStopsWhenResolveFails(t *testing.T) {
	p := newFakePage()
	p.queue(submitSel, showError("驗證碼錯誤"), showResults)
	solver := &countingSolver{ok: false}
	s := newController(p, solver)

	assert.False(t, s.SubmitAndAwaitResults(context.Background(), 6))
	assert.Equal(t, 1, solver.calls)
	assert.Equal(t, 1, p.clickCount(submitSel))
}

func TestSubmitTimeoutResolveIsBestEffort(t *testing.T) {
	p := newFakePage()
	p.queue(submitSel, showNothing, showResults)
	solver := &countingSolver{ok: false}
	s := newController(p, solver)

	assert.True(t, s.SubmitAndAwaitResults(context.Background(), 6))
	assert.Equal(t, 1, solver.calls)
}

func TestMarkerPolicy(t *testing.T) {
	p := MarkerPolicy{"驗證碼", "請重新輸入"}
	assert.True(t, p.Recoverable("檢測碼輸入錯誤，請重新輸入"))
	assert.True(t, p.Recoverable("驗證碼錯誤"))
	assert.False(t, p.Recoverable("去程查無可售車次"))
	assert.False(t, MarkerPolicy{""}.Recoverable("anything"))
}

func TestCaptchaSolveAndFill(t *testing.T) {
	p := newFakePage()
	sel := CaptchaSelectors{Image: "#img", Refresh: "#refresh", Input: "#securityCode"}
	solver := NewCaptchaSolver(p, answers("", " a-1b\n"), sel, CaptchaTiming{})

	assert.True(t, solver.SolveAndFill(context.Background(), 6))
	assert.Equal(t, "a1b", p.fills["#securityCode"])
	assert.Equal(t, 2, p.clickCount("#refresh"))
}

func TestCaptchaExhaustion(t *testing.T) {
	p := newFakePage()
	p.screenshotErr = errors.New("image not visible")
	sel := CaptchaSelectors{Image: "#img", Refresh: "#refresh", Input: "#securityCode"}

	solver := NewCaptchaSolver(p, answers("AB12"), sel, CaptchaTiming{})
	assert.False(t, solver.SolveAndFill(context.Background(), 4))
	assert.Equal(t, 4, p.clickCount("#refresh"))
	assert.Empty(t, p.fills)

	p = newFakePage()
	solver = NewCaptchaSolver(p, answers("學生!!"), sel, CaptchaTiming{})
	assert.False(t, solver.SolveAndFill(context.Background(), 3))
	assert.Empty(t, p.fills)
}

func TestCaptchaMissingRefreshIsIgnored(t *testing.T) {
	p := newFakePage()
	p.missing["#refresh"] = true
	sel := CaptchaSelectors{Image: "#img", Refresh: "#refresh", Input: "#securityCode"}

	solver := NewCaptchaSolver(p, answers("Z9"), sel, CaptchaTiming{})
	assert.True(t, solver.SolveAndFill(context.Background(), 1))
	assert.Equal(t, "Z9", p.fills["#securityCode"])
}

func TestPickMatching(t *testing.T) {
	offers := func(discounts ...string) []models.TrainOffer {
		out := make([]models.TrainOffer, len(discounts))
		for i, d := range discounts {
			out[i] = models.TrainOffer{Code: string(rune('A' + i)), Discount: d}
		}
		return out
	}

	assert.Equal(t, 1, PickMatching(offers("學生75折", "學生88折", "學生88折"), "學生88折"))
	assert.Equal(t, 0, PickMatching(offers("早鳥65折 學生88折"), "學生88折"))
	assert.Equal(t, NotFound, PickMatching(offers("學生75折", "早鳥"), "學生88折"))
	assert.Equal(t, NotFound, PickMatching(nil, "學生88折"))
	assert.Equal(t, NotFound, PickMatching(offers("學生88折"), ""))
}
