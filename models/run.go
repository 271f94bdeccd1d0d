package models

import (
	"time"
)

// RunSummary is the outcome of one batch price update.
type RunSummary struct {
	ID           string        `json:"id"`
	RanAt        time.Time     `json:"ran_at"`
	FinishedAt   *time.Time    `json:"finished_at,omitempty"`
	SuccessCount int           `json:"success_count"`
	FailedCount  int           `json:"failed_count"`
	Errors       []ScrapeError `json:"errors"`
	Cancelled    bool          `json:"cancelled,omitempty"`
}

// NewRunSummary starts a summary stamped with ranAt.
func NewRunSummary(ranAt time.Time) *RunSummary {
	return &RunSummary{
		ID:     "run_" + ranAt.UTC().Format("20060102T150405Z"),
		RanAt:  ranAt,
		Errors: []ScrapeError{},
	}
}

// RecordSuccess counts one stored price.
func (s *RunSummary) RecordSuccess() {
	s.SuccessCount++
}

// RecordFailure counts one failed link.
func (s *RunSummary) RecordFailure(e ScrapeError) {
	s.FailedCount++
	s.Errors = append(s.Errors, e)
}

// Finish stamps the end of the run.
func (s *RunSummary) Finish(at time.Time) {
	s.FinishedAt = &at
}

// Duration returns how long the run took, or 0 while unfinished.
func (s *RunSummary) Duration() time.Duration {
	if s.FinishedAt == nil {
		return 0
	}
	return s.FinishedAt.Sub(s.RanAt)
}

// Total is the number of links attempted.
func (s *RunSummary) Total() int {
	return s.SuccessCount + s.FailedCount
}

// RunStatus reports whether a run is in flight and how the last one ended.
type RunStatus struct {
	Running     bool        `json:"running"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	LastSummary *RunSummary `json:"last_summary,omitempty"`
	LastError   string      `json:"last_error,omitempty"`
}
