package sync

import (
	"errors"
	"math"

	"github.com/drallgood/abs-hardcover-progress/internal/models"
)

// ErrNoUnitCount is returned when an edition has neither a duration nor a page count.
var ErrNoUnitCount = errors.New("no unit count available")

// Method names for progress writes
const (
	MethodPages   = "pages"
	MethodSeconds = "seconds"
)

// ProgressValue converts a source book's progress into the native unit of ed.
// Audio editions with a known duration take elapsed seconds, preferring the
// reported playback position. Everything else takes a page number. Both are
// at least 1.
func ProgressValue(ed models.Edition, book models.SourceBook) (value int, isDuration bool, err error) {
	if ed.IsAudio() && ed.AudioSeconds > 0 {
		if book.CurrentTime != nil && *book.CurrentTime > 0 {
			secs := int(math.Floor(*book.CurrentTime))
			if secs > ed.AudioSeconds {
				secs = ed.AudioSeconds
			}
			return atLeastOne(secs), true, nil
		}
		return scaled(book.ProgressPercent, ed.AudioSeconds), true, nil
	}
	if ed.Pages > 0 {
		return scaled(book.ProgressPercent, ed.Pages), false, nil
	}
	return 0, false, ErrNoUnitCount
}

func scaled(percent float64, units int) int {
	return atLeastOne(int(math.Floor(percent * float64(units) / 100)))
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func method(isDuration bool) string {
	if isDuration {
		return MethodSeconds
	}
	return MethodPages
}
