// Package status decides which Hardcover reading status a progress value implies.
package status

import "fmt"

// Status is a Hardcover user_book status_id.
type Status int

const (
	Unknown      Status = 0
	WantToRead   Status = 1
	Reading      Status = 2
	Read         Status = 3
	DidNotFinish Status = 4
)

func (s Status) String() string {
	switch s {
	case WantToRead:
		return "want"
	case Reading:
		return "reading"
	case Read:
		return "done"
	case DidNotFinish:
		return "dnf"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Thresholds are percentages in the range 0..100.
type Thresholds struct {
	// Activation is the minimum percent for a book to count as started
	Activation float64 `yaml:"activation_threshold"`
	// Completion is the minimum percent for a book to count as finished
	Completion float64 `yaml:"completion_threshold"`
}

// DefaultThresholds returns 5% activation and 95% completion.
func DefaultThresholds() Thresholds {
	return Thresholds{Activation: 5, Completion: 95}
}

// Validate requires 0 < Activation < Completion <= 100.
func (t Thresholds) Validate() error {
	if t.Activation <= 0 || t.Activation >= t.Completion || t.Completion > 100 {
		return fmt.Errorf("invalid thresholds: need 0 < activation (%.1f) < completion (%.1f) <= 100",
			t.Activation, t.Completion)
	}
	return nil
}

// IsComplete reports whether percent reaches the completion threshold.
func (t Thresholds) IsComplete(percent float64) bool {
	return percent >= t.Completion
}

// IsActive reports whether percent reaches the activation threshold.
func (t Thresholds) IsActive(percent float64) bool {
	return percent >= t.Activation
}

// Initial is the status a book is added to the library with. Completion is
// left to Transition so the finish is recorded as a status change.
func (t Thresholds) Initial(percent float64) Status {
	if t.IsActive(percent) {
		return Reading
	}
	return WantToRead
}

// Target returns the status percent implies given the current remote status.
// Statuses other than want, reading and done are left alone unless the book
// is complete. Target is stable: Target(p, Target(p, s)) == Target(p, s).
func (t Thresholds) Target(percent float64, remote Status) Status {
	switch {
	case t.IsComplete(percent):
		return Read
	case remote == Read:
		// re-read or corrected progress
		if t.IsActive(percent) {
			return Reading
		}
		return WantToRead
	case remote == WantToRead && t.IsActive(percent):
		return Reading
	case remote == Reading && !t.IsActive(percent):
		return WantToRead
	default:
		return remote
	}
}

// Transition returns the target status and whether it differs from remote.
func (t Thresholds) Transition(percent float64, remote Status) (Status, bool) {
	target := t.Target(percent, remote)
	return target, target != remote
}
