// Package runner executes a selection of checks in order and
// records the run: archive snapshot, history log and metrics.
package runner

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"digital.vasic.beekeeper/pkg/check"
	"digital.vasic.beekeeper/pkg/logging"
	"digital.vasic.beekeeper/pkg/metrics"
	"digital.vasic.beekeeper/pkg/report"
)

// Dispatcher evaluates one check. *dispatch.Dispatcher satisfies
// it.
type Dispatcher interface {
	Run(ctx context.Context, c *check.Check) ([]*check.Result, error)
}

// Plan is what a run should execute.
type Plan struct {
	Checks []*check.Check

	// Selected lists the requested codes. Empty means all.
	Selected []string

	// Unmatched lists requested codes that named no check.
	Unmatched []string
}

// textfileWriter is implemented by metrics backends that can dump
// their state for the node exporter.
type textfileWriter interface {
	WriteTextfile(path string) error
}

// DefaultRunner runs plans sequentially.
type DefaultRunner struct {
	dispatcher      Dispatcher
	logger          logging.Logger
	metrics         metrics.CheckMetrics
	archivePath     string
	historyPath     string
	metricsTextfile string
	production      bool
	now             func() time.Time
	newID           func() string
}

// NewRunner creates a DefaultRunner with the supplied options.
func NewRunner(d Dispatcher, opts ...RunnerOption) *DefaultRunner {
	r := &DefaultRunner{
		dispatcher: d,
		logger:     logging.NullLogger{},
		metrics:    metrics.NoopMetrics{},
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every check of the plan in order. A dispatcher
// error stops the run; the partial report is returned with it and
// nothing is persisted. After a complete run the archive, history
// and metrics textfile are written when their paths are set.
func (r *DefaultRunner) Run(ctx context.Context, plan Plan) (*report.RunReport, error) {
	rep := &report.RunReport{
		RunID:      r.newID(),
		StartedAt:  r.now(),
		Production: r.production,
		Selected:   plan.Selected,
		Unmatched:  plan.Unmatched,
	}
	log := r.logger.WithFields(logging.StringField("run_id", rep.RunID))

	r.metrics.IncrementRunTotal()
	r.metrics.SetSelectedChecks(len(plan.Checks))

	for _, code := range plan.Unmatched {
		log.Warn("no check has this code", logging.StringField("code", code))
	}

	prev, err := r.loadPrevious()
	if err != nil {
		log.Warn("previous archive unreadable, diff skipped", logging.ErrorField(err))
	}

	log.Info("run started",
		logging.IntField("checks", len(plan.Checks)),
		logging.BoolField("production", r.production))

	for _, c := range plan.Checks {
		if err := ctx.Err(); err != nil {
			r.finish(rep)
			return rep, errors.Wrap(err, "run interrupted")
		}

		log.Debug("check started",
			logging.StringField("check", c.Code()),
			logging.StringField("target", c.Target()))

		results, err := r.dispatcher.Run(ctx, c)
		rep.Results = append(rep.Results, results...)
		for _, res := range results {
			log.Info("check completed",
				logging.StringField("check", res.Code),
				logging.StringField("resource", res.ResourceID),
				logging.StringField("status", res.Status),
				logging.DurationField("duration", res.Duration))
		}
		if err != nil {
			r.finish(rep)
			return rep, errors.Wrapf(err, "check %s", c.Code())
		}
	}

	r.finish(rep)
	rep.Changes = report.Diff(prev, rep)
	for _, ch := range rep.Changes {
		if ch.IsRegression() {
			log.Warn("check regressed",
				logging.StringField("check", ch.Code),
				logging.StringField("resource", ch.ResourceID),
				logging.StringField("from", ch.From),
				logging.StringField("to", ch.To))
		}
	}

	if err := r.persist(rep); err != nil {
		return rep, err
	}

	counts := rep.Counts()
	done := log.Info
	if rep.HasProblems() {
		done = log.Warn
	}
	done("run completed",
		logging.IntField("passed", counts.Passed),
		logging.IntField("failed", counts.Failed),
		logging.IntField("errors", counts.Errored),
		logging.IntField("skipped", counts.Skipped),
		logging.DurationField("duration", rep.Duration))
	return rep, nil
}

func (r *DefaultRunner) finish(rep *report.RunReport) {
	rep.FinishedAt = r.now()
	rep.Duration = rep.FinishedAt.Sub(rep.StartedAt)
}

func (r *DefaultRunner) loadPrevious() (*report.RunReport, error) {
	if r.archivePath == "" {
		return nil, nil
	}
	return report.LoadArchive(r.archivePath)
}

// persist writes the archive, history and metrics textfile.
func (r *DefaultRunner) persist(rep *report.RunReport) error {
	if r.archivePath != "" {
		if err := report.SaveArchive(r.archivePath, rep); err != nil {
			return err
		}
	}
	if r.historyPath != "" {
		if err := report.AppendToHistory(r.historyPath, rep); err != nil {
			return errors.Wrap(err, "append history")
		}
	}
	if r.metricsTextfile != "" {
		tw, ok := r.metrics.(textfileWriter)
		if !ok {
			r.logger.Warn("metrics backend cannot write a textfile",
				logging.StringField("path", r.metricsTextfile))
			return nil
		}
		if err := tw.WriteTextfile(r.metricsTextfile); err != nil {
			return errors.Wrap(err, "write metrics textfile")
		}
	}
	return nil
}
