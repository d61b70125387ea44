package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// RunReport describes one rotate or backup run for monitoring.
type RunReport struct {
	Command       string    `json:"command"`
	Status        string    `json:"status"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at"`
	DurationMS    int64     `json:"duration_ms"`
	Targets       int       `json:"targets"`
	FailedTargets int       `json:"failed_targets"`
	Promoted      int       `json:"promoted,omitempty"`
	Deleted       int       `json:"deleted,omitempty"`
	Created       int       `json:"created,omitempty"`
	Errors        []string  `json:"errors,omitempty"`
}

const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// NewRunReport starts a report for command.
func NewRunReport(command string, startedAt time.Time) *RunReport {
	return &RunReport{Command: command, StartedAt: startedAt}
}

// Finish records the outcome of the run and derives its status: failed when
// every target failed, partial when some did.
func (r *RunReport) Finish(completedAt time.Time, targets, failed int, errs []error) {
	r.CompletedAt = completedAt
	r.DurationMS = completedAt.Sub(r.StartedAt).Milliseconds()
	r.Targets = targets
	r.FailedTargets = failed
	for _, err := range errs {
		r.Errors = append(r.Errors, err.Error())
	}
	switch {
	case targets > 0 && failed == targets:
		r.Status = StatusFailed
	case len(errs) > 0:
		r.Status = StatusPartial
	default:
		r.Status = StatusSuccess
	}
}

// Fail records a run that could not start working on any target, such as a
// configuration error. The status is always failed.
func (r *RunReport) Fail(completedAt time.Time, err error) {
	r.Finish(completedAt, 0, 0, []error{err})
	r.Status = StatusFailed
}

// Write encodes the report as indented JSON.
func (r *RunReport) Write(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(r); err != nil {
		return fmt.Errorf("encode run report: %w", err)
	}
	return nil
}

// WriteSummary prints a one-line human summary.
func (r *RunReport) WriteSummary(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"%s %s: targets=%d failed=%d created=%d promoted=%d deleted=%d errors=%d\n",
		r.Command, r.Status, r.Targets, r.FailedTargets, r.Created, r.Promoted, r.Deleted, len(r.Errors),
	)
	return err
}
