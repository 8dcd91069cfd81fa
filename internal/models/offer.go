// Package models holds the data shared by the wizard, scheduler and watch loops.
package models

import (
	"fmt"
	"strings"
)

// SearchCriteria is what the search form is filled with. Immutable per run.
type SearchCriteria struct {
	Origin         string
	Destination    string
	Date           string // YYYY-MM-DD
	Time           string // departure label as shown in the drop-down, e.g. "15:00"
	Adults         int
	Students       int
	TargetDiscount string
}

// DateField renders Date the way the hidden date input expects it (YYYY/MM/DD).
func (c SearchCriteria) DateField() (string, error) {
	parts := strings.Split(strings.TrimSpace(c.Date), "-")
	if len(parts) != 3 {
		return "", fmt.Errorf("invalid date %q, want YYYY-MM-DD", c.Date)
	}
	var y, m, d int
	if _, err := fmt.Sscanf(parts[0]+" "+parts[1]+" "+parts[2], "%d %d %d", &y, &m, &d); err != nil {
		return "", fmt.Errorf("invalid date %q: %w", c.Date, err)
	}
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return "", fmt.Errorf("invalid date %q: month or day out of range", c.Date)
	}
	return fmt.Sprintf("%04d/%02d/%02d", y, m, d), nil
}

// Route is a short human description used in logs and notifications.
func (c SearchCriteria) Route() string {
	return fmt.Sprintf("%s→%s %s %s", c.Origin, c.Destination, c.Date, c.Time)
}

// TrainOffer is one row of the step 2 result list.
type TrainOffer struct {
	Date            string `json:"date"`
	Code            string `json:"code"`
	Departure       string `json:"departure"`
	Arrival         string `json:"arrival"`
	Duration        string `json:"estimated"`
	Discount        string `json:"discount"`
	Selected        bool   `json:"selected"`
	IsTarget        bool   `json:"-"`
	StudentDiscount bool   `json:"-"`
}

// Key identifies an offer across rounds for notification dedupe.
func (o TrainOffer) Key() string {
	return strings.Join([]string{
		strings.TrimSpace(o.Date),
		strings.TrimSpace(o.Code),
		strings.TrimSpace(o.Departure),
		strings.TrimSpace(o.Arrival),
		strings.TrimSpace(o.Discount),
	}, "|")
}

// Summary is a one-line description for logs, e-mails and messages.
func (o TrainOffer) Summary() string {
	return fmt.Sprintf("%s 車次 %s %s → %s 車程 %s 折扣:%s",
		o.Date, o.Code, o.Departure, o.Arrival, o.Duration, o.Discount)
}

// studentMarkers covers the plain glyph and the Kangxi-radical look-alike the site
// sometimes renders.
var studentMarkers = []string{"學生", "學⽣"}

// Derive fills the derived flags against the target discount label.
func (o *TrainOffer) Derive(target string) {
	o.Discount = strings.Join(strings.Fields(o.Discount), " ")
	o.IsTarget = target != "" && strings.Contains(o.Discount, target)
	o.StudentDiscount = false
	for _, m := range studentMarkers {
		if strings.Contains(o.Discount, m) {
			o.StudentDiscount = true
			break
		}
	}
}
