package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"thsrbook/internal/locale"
	"thsrbook/internal/models"
	"thsrbook/internal/scheduler"
)

// Reporter renders localised messages and hands them to a Notifier. It
// satisfies scheduler.Reporter.
type Reporter struct {
	n        Notifier
	loc      *locale.Locale
	criteria models.SearchCriteria
}

func NewReporter(n Notifier, loc *locale.Locale, criteria models.SearchCriteria) *Reporter {
	if n == nil {
		n = Nop{}
	}
	return &Reporter{n: n, loc: loc, criteria: criteria}
}

var _ scheduler.Reporter = (*Reporter)(nil)

func (r *Reporter) Booked(ctx context.Context, run scheduler.Run, res models.AttemptResult) error {
	var b strings.Builder
	paragraph(&b, r.loc.T("booked_intro", r.criteria.Route()))
	if res.Confirmation != "" {
		b.WriteString("<div>")
		b.WriteString(res.Confirmation)
		b.WriteString("</div>\n")
	} else if res.Cause != "" {
		paragraph(&b, res.Cause)
	}
	paragraph(&b, r.loc.T("run_id", run.ID))
	return r.n.Send(ctx, r.loc.T("booked_subject", r.criteria.Route()), b.String())
}

func (r *Reporter) Exhausted(ctx context.Context, run scheduler.Run, reason scheduler.Reason, last models.AttemptResult) error {
	var b strings.Builder
	paragraph(&b, r.loc.T("exhausted_intro", run.Rounds, last.Outcome, orDash(last.Cause)))
	paragraph(&b, r.loc.T("reason_label", r.loc.T("reason_"+string(reason))))
	if len(last.Offers) > 0 {
		r.table(&b, last.Offers)
	}
	paragraph(&b, r.loc.T("run_id", run.ID))
	return r.n.Send(ctx, r.loc.T("exhausted_subject", r.criteria.Route()), b.String())
}

// Hits announces newly seen offers carrying keyword.
func (r *Reporter) Hits(ctx context.Context, keyword string, hits []models.TrainOffer) error {
	var b strings.Builder
	paragraph(&b, r.loc.T("hits_intro", r.criteria.Route(), keyword))
	r.table(&b, hits)
	return r.n.Send(ctx, r.loc.T("hits_subject", len(hits), keyword), b.String())
}

// Fatal reports an unrecoverable error with its stack.
func (r *Reporter) Fatal(ctx context.Context, cause error, stack []byte) error {
	var b strings.Builder
	paragraph(&b, r.loc.T("fatal_intro"))
	b.WriteString("<pre>")
	b.WriteString(html.EscapeString(cause.Error()))
	if len(stack) > 0 {
		b.WriteString("\n\n")
		b.WriteString(html.EscapeString(string(stack)))
	}
	b.WriteString("</pre>\n")
	return r.n.Send(ctx, r.loc.T("fatal_subject"), b.String())
}

func (r *Reporter) table(b *strings.Builder, offers []models.TrainOffer) {
	b.WriteString("<table border=\"1\" cellpadding=\"4\" cellspacing=\"0\">\n<tr>")
	for _, key := range []string{"col_date", "col_code", "col_departure", "col_arrival", "col_duration", "col_discount"} {
		fmt.Fprintf(b, "<th>%s</th>", html.EscapeString(r.loc.T(key)))
	}
	b.WriteString("</tr>\n")
	for _, o := range offers {
		b.WriteString("<tr>")
		for _, v := range []string{o.Date, o.Code, o.Departure, o.Arrival, o.Duration, o.Discount} {
			fmt.Fprintf(b, "<td>%s</td>", html.EscapeString(v))
		}
		b.WriteString("</tr>\n")
	}
	b.WriteString("</table>\n")
}

func paragraph(b *strings.Builder, s string) {
	b.WriteString("<p>")
	b.WriteString(html.EscapeString(s))
	b.WriteString("</p>\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
