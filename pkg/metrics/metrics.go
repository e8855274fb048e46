// Package metrics records run, check and fetch counters for
// beekeeper runs.
package metrics

import "time"

// CheckMetrics defines the interface for recording audit metrics.
type CheckMetrics interface {
	// RecordCheck records one evaluated check and its status.
	RecordCheck(code, status string, duration time.Duration)
	// RecordPage records a fetched datastore page.
	RecordPage(resourceID string, records int)
	// RecordFetchError records a failed catalog call.
	RecordFetchError(op string)
	// RecordTreatment records an applied treatment.
	RecordTreatment(action string, ok bool)
	// IncrementRunTotal increments the total run counter.
	IncrementRunTotal()
	// SetSelectedChecks sets the gauge of checks selected for a run.
	SetSelectedChecks(count int)
}

// NoopMetrics is a no-op implementation of CheckMetrics
// useful for testing or when metrics collection is disabled.
type NoopMetrics struct{}

func (NoopMetrics) RecordCheck(_, _ string, _ time.Duration) {}
func (NoopMetrics) RecordPage(_ string, _ int)               {}
func (NoopMetrics) RecordFetchError(_ string)                {}
func (NoopMetrics) RecordTreatment(_ string, _ bool)         {}
func (NoopMetrics) IncrementRunTotal()                       {}
func (NoopMetrics) SetSelectedChecks(_ int)                  {}
