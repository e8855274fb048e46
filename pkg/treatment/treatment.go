// Package treatment applies corrective actions to the catalog when a
// check fails.
package treatment

import (
	"context"

	"github.com/cockroachdb/errors"

	"digital.vasic.beekeeper/pkg/catalog"
	"digital.vasic.beekeeper/pkg/check"
	"digital.vasic.beekeeper/pkg/logging"
	"digital.vasic.beekeeper/pkg/metrics"
)

// Action is a corrective side effect for a failed check.
type Action interface {
	Apply(ctx context.Context, c *check.Check) error
}

// MakePrivate makes the package owning the check's target private.
type MakePrivate struct {
	Catalog catalog.Catalog
	Logger  logging.Logger
}

// Apply implements Action.
func (m MakePrivate) Apply(ctx context.Context, c *check.Check) error {
	logger := m.Logger
	if logger == nil {
		logger = logging.NullLogger{}
	}

	packageID := c.PackageID()
	if packageID == "" {
		res, err := m.Catalog.Resource(ctx, c.ResourceID())
		if err != nil {
			return errors.Wrapf(err, "resolve package of resource %s", c.ResourceID())
		}
		packageID = res.PackageID
	}

	before, err := catalog.IsPackagePrivate(ctx, m.Catalog, packageID)
	if err != nil {
		return errors.Wrapf(err, "read package %s", packageID)
	}
	if err := m.Catalog.SetPackagePrivate(ctx, packageID); err != nil {
		return errors.Wrapf(err, "make package %s private", packageID)
	}

	logger.Info("package parameters changed",
		logging.StringField("package_id", packageID),
		logging.StringField("parameter", "private"),
		logging.BoolField("from", before),
		logging.BoolField("to", true),
		logging.StringField("check", c.Code()))
	return nil
}

// DryRun logs the treatment it stands in for and changes nothing.
// Test runs bind it to every treatment.
type DryRun struct {
	Treatment check.Treatment
	Logger    logging.Logger
}

// Apply implements Action.
func (d DryRun) Apply(_ context.Context, c *check.Check) error {
	if d.Logger != nil {
		d.Logger.Info("treatment skipped in test mode",
			logging.StringField("treatment", d.Treatment.String()),
			logging.StringField("check", c.Code()),
			logging.StringField("target", c.Target()))
	}
	return nil
}

// Executor maps a check's treatment to its Action.
type Executor struct {
	actions map[check.Treatment]Action
	metrics metrics.CheckMetrics
}

// NewExecutor creates an Executor with the built-in actions bound
// to cat.
func NewExecutor(cat catalog.Catalog, logger logging.Logger, m metrics.CheckMetrics) *Executor {
	if m == nil {
		m = metrics.NoopMetrics{}
	}
	return &Executor{
		actions: map[check.Treatment]Action{
			check.TreatmentMakePrivate: MakePrivate{Catalog: cat, Logger: logger},
		},
		metrics: m,
	}
}

// Register binds an action to a treatment, replacing any existing
// binding.
func (e *Executor) Register(t check.Treatment, a Action) {
	e.actions[t] = a
}

// Execute applies the check's treatment when passed is false. It
// reports whether an action ran. The action is not retried and its
// error is returned as is.
func (e *Executor) Execute(ctx context.Context, c *check.Check, passed bool) (bool, error) {
	t := c.Treatment()
	if passed || t == check.TreatmentNone {
		return false, nil
	}
	a, ok := e.actions[t]
	if !ok {
		return false, errors.Newf("no action registered for treatment %s", t)
	}

	err := a.Apply(ctx, c)
	e.metrics.RecordTreatment(t.String(), err == nil)
	if err != nil {
		return false, errors.Wrapf(err, "treatment %s for check %s", t, c.Code())
	}
	return true, nil
}
