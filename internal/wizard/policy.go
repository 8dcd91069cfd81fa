package wizard

import "strings"

// ErrorPolicy decides whether an error banner is worth a re-solve and resubmit.
type ErrorPolicy interface {
	Recoverable(banner string) bool
}

// MarkerPolicy treats a banner as recoverable when it contains any marker.
type MarkerPolicy []string

func (m MarkerPolicy) Recoverable(banner string) bool {
	for _, marker := range m {
		if marker != "" && strings.Contains(banner, marker) {
			return true
		}
	}
	return false
}
