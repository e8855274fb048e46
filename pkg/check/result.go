package check

import "time"

// Status constants for check outcomes.
const (
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// Result captures the outcome of one check against one resource.
// Package-scoped checks yield one Result per datastore resource.
type Result struct {
	// Code and Name identify the check.
	Code string `json:"code"`
	Name string `json:"name"`

	ResourceID string `json:"resource_id,omitempty"`
	PackageID  string `json:"package_id,omitempty"`
	Field      string `json:"field"`

	// Assertion is the compact form of the per-record assertion.
	Assertion string `json:"assertion"`

	// Status is one of the Status* constants.
	Status string `json:"status"`

	// Message is a human-readable description of the outcome.
	Message string `json:"message,omitempty"`

	// RowCount is the datastore row count at evaluation time.
	RowCount int `json:"row_count"`

	// Scanned is the number of records the assertion saw.
	Scanned int `json:"scanned"`

	// FailedValue is the first value failing a per-record
	// assertion.
	FailedValue any `json:"failed_value,omitempty"`

	// Leftover lists reference values never observed.
	Leftover []string `json:"leftover,omitempty"`

	// Treatment names the treatment applied, if any.
	Treatment string `json:"treatment,omitempty"`

	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`

	// Error contains the error message for StatusError.
	Error string `json:"error,omitempty"`
}

// NewResult starts a result for c.
func NewResult(c *Check) *Result {
	return &Result{
		Code:       c.Code(),
		Name:       c.Name(),
		ResourceID: c.ResourceID(),
		PackageID:  c.PackageID(),
		Field:      c.Field(),
		Assertion:  c.Assertion().String(),
		StartTime:  time.Now(),
	}
}

// Finish sets the status and message and records the duration.
func (r *Result) Finish(status, message string) *Result {
	r.Status = status
	r.Message = message
	r.Duration = time.Since(r.StartTime)
	return r
}

// Key identifies the result across runs.
func (r *Result) Key() string {
	return r.Code + "/" + r.ResourceID
}

// IsProblem reports whether the result needs attention.
func (r *Result) IsProblem() bool {
	return r.Status == StatusFailed || r.Status == StatusError
}
