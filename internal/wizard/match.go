package wizard

import (
	"strings"

	"thsrbook/internal/models"
)

// NotFound is returned by PickMatching when no offer carries the target.
const NotFound = -1

// PickMatching returns the index of the first offer, in rendered order, whose
// discount label contains target.
func PickMatching(offers []models.TrainOffer, target string) int {
	if target == "" {
		return NotFound
	}
	for i, o := range offers {
		if strings.Contains(o.Discount, target) {
			return i
		}
	}
	return NotFound
}
