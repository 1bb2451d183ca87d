package errand

import "errand-marketplace/internal/models"

// validTransitions is the fixed adjacency table over errand statuses.
// Completed and cancelled are terminal; self-transitions are not listed and
// therefore rejected. This table is the sole gate before the service applies
// a status change.
var validTransitions = map[string][]string{
	models.StatusPending:    {models.StatusAccepted, models.StatusCancelled},
	models.StatusAccepted:   {models.StatusInProgress, models.StatusCancelled},
	models.StatusInProgress: {models.StatusCompleted, models.StatusCancelled},
	models.StatusCompleted:  {},
	models.StatusCancelled:  {},
}

// ValidTransition reports whether moving from one status to another is
// listed in the transition table.
func ValidTransition(from, to string) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
