package runner

import (
	"time"

	"digital.vasic.beekeeper/pkg/logging"
	"digital.vasic.beekeeper/pkg/metrics"
)

// RunnerOption configures a DefaultRunner.
type RunnerOption func(*DefaultRunner)

// WithLogger sets the logger used by the runner.
func WithLogger(logger logging.Logger) RunnerOption {
	return func(r *DefaultRunner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics sets the metrics backend. A backend with a
// WriteTextfile method is dumped after each run when a textfile
// path is configured.
func WithMetrics(m metrics.CheckMetrics) RunnerOption {
	return func(r *DefaultRunner) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithArchive sets the last-scan snapshot path.
func WithArchive(path string) RunnerOption {
	return func(r *DefaultRunner) {
		r.archivePath = path
	}
}

// WithHistory sets the JSON-lines history path.
func WithHistory(path string) RunnerOption {
	return func(r *DefaultRunner) {
		r.historyPath = path
	}
}

// WithMetricsTextfile sets where metrics are written after a run.
func WithMetricsTextfile(path string) RunnerOption {
	return func(r *DefaultRunner) {
		r.metricsTextfile = path
	}
}

// WithProduction records whether alerts are delivered.
func WithProduction(production bool) RunnerOption {
	return func(r *DefaultRunner) {
		r.production = production
	}
}

// WithClock replaces time.Now. Intended for tests.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *DefaultRunner) {
		r.now = now
	}
}

// WithRunID fixes the run identifier generator. Intended for tests.
func WithRunID(newID func() string) RunnerOption {
	return func(r *DefaultRunner) {
		r.newID = newID
	}
}
