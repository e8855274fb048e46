// Package report collects the results of a beekeeper run, archives
// them for comparison with the next run, and prints summaries.
package report

import (
	"time"

	"digital.vasic.beekeeper/pkg/check"
)

// RunReport is the outcome of one invocation.
type RunReport struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`

	// Production is true when alerts were delivered.
	Production bool `json:"production"`

	// Selected lists the requested codes. Empty means all.
	Selected []string `json:"selected,omitempty"`

	// Unmatched lists requested codes that named no check.
	Unmatched []string `json:"unmatched,omitempty"`

	Results []*check.Result `json:"results"`

	// Changes lists status changes since the previous archive.
	Changes []Change `json:"changes,omitempty"`
}

// Counts tallies results by status.
type Counts struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Errored int `json:"errored"`
}

// Counts tallies the report's results.
func (r *RunReport) Counts() Counts {
	var c Counts
	for _, res := range r.Results {
		c.Total++
		switch res.Status {
		case check.StatusPassed:
			c.Passed++
		case check.StatusFailed:
			c.Failed++
		case check.StatusSkipped:
			c.Skipped++
		case check.StatusError:
			c.Errored++
		}
	}
	return c
}

// HasProblems reports whether any result failed or errored.
func (r *RunReport) HasProblems() bool {
	for _, res := range r.Results {
		if res.IsProblem() {
			return true
		}
	}
	return false
}
