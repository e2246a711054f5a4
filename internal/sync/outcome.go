package sync

import (
	"fmt"
	"time"
)

// OutcomeStatus tags the result of reconciling one book.
type OutcomeStatus string

const (
	StatusSynced    OutcomeStatus = "synced"
	StatusCompleted OutcomeStatus = "completed"
	StatusAutoAdded OutcomeStatus = "auto_added"
	StatusSkipped   OutcomeStatus = "skipped"
	StatusFailed    OutcomeStatus = "failed"
)

// Outcome is the result of reconciling one source book.
type Outcome struct {
	Status        OutcomeStatus `json:"status"`
	Title         string        `json:"title"`
	Identifier    string        `json:"identifier,omitempty"`
	Reason        string        `json:"reason"`
	EditionID     int           `json:"edition_id,omitempty"`
	EditionSource string        `json:"edition_source,omitempty"`
	// Method is "pages" or "seconds" when progress was (or would be) written
	Method string `json:"method,omitempty"`
	Value  int    `json:"value,omitempty"`
	DryRun bool   `json:"dry_run,omitempty"`
}

func skipped(title, reason string) Outcome {
	return Outcome{Status: StatusSkipped, Title: title, Reason: reason}
}

func failed(title string, err error) Outcome {
	return Outcome{Status: StatusFailed, Title: title, Reason: err.Error()}
}

// Summary aggregates the outcomes of one run.
type Summary struct {
	RunID      string    `json:"run_id"`
	UserID     string    `json:"user_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DryRun     bool      `json:"dry_run"`

	Total     int `json:"total"`
	Synced    int `json:"synced"`
	Completed int `json:"completed"`
	AutoAdded int `json:"auto_added"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`

	Errors   []string  `json:"errors"`
	Outcomes []Outcome `json:"outcomes"`
}

// add counts o and records failures in the error list.
func (s *Summary) add(o Outcome) {
	s.Total++
	switch o.Status {
	case StatusSynced:
		s.Synced++
	case StatusCompleted:
		s.Completed++
	case StatusAutoAdded:
		s.AutoAdded++
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
		s.Errors = append(s.Errors, fmt.Sprintf("%s: %s", o.Title, o.Reason))
	}
	s.Outcomes = append(s.Outcomes, o)
}

// Duration is the wall time of the run.
func (s *Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

func (s *Summary) String() string {
	return fmt.Sprintf("total=%d synced=%d completed=%d auto_added=%d skipped=%d failed=%d",
		s.Total, s.Synced, s.Completed, s.AutoAdded, s.Skipped, s.Failed)
}
