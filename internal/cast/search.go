package cast

import (
	"time"

	"castplayd/internal/models"
)

// FindClosest returns the index in list[lower..upper] of the event whose TotalDelay is nearest to
// needle. list must be ordered by TotalDelay. Reversed bounds are swapped; when two candidates
// are equally close the lower index wins.
func FindClosest(needle time.Duration, list []models.TimelineEvent, lower, upper int) int {
	if upper < lower {
		lower, upper = upper, lower
	}

	for upper-lower >= 3 {
		guess := lower + (upper-lower)/2
		delay := list[guess].TotalDelay
		if delay == needle {
			return guess
		}
		// The guess stays in the window: it may be the nearest even though it is not a match.
		if delay < needle {
			lower = guess
		} else {
			upper = guess
		}
	}

	// At most three candidates left; drop the farther end until one remains.
	for upper != lower {
		lowerDiff := absDuration(needle - list[lower].TotalDelay)
		upperDiff := absDuration(list[upper].TotalDelay - needle)
		if lowerDiff <= upperDiff {
			upper--
		} else {
			lower++
		}
	}
	return lower
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
