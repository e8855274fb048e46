// Package dispatch resolves checks to the resources they audit and
// runs the validation loop on each, turning verdicts into results,
// alerts and treatments.
package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"digital.vasic.beekeeper/pkg/assertion"
	"digital.vasic.beekeeper/pkg/catalog"
	"digital.vasic.beekeeper/pkg/check"
	"digital.vasic.beekeeper/pkg/logging"
	"digital.vasic.beekeeper/pkg/metrics"
	"digital.vasic.beekeeper/pkg/mind"
	"digital.vasic.beekeeper/pkg/notify"
	"digital.vasic.beekeeper/pkg/reference"
	"digital.vasic.beekeeper/pkg/treatment"
)

// maxListedLeftover bounds how many unmatched reference values an
// alert lists.
const maxListedLeftover = 10

// References resolves a reference descriptor to its value set.
type References interface {
	Values(ctx context.Context, d reference.Descriptor, defaultField string) ([]string, error)
}

// Dispatcher evaluates checks one at a time.
type Dispatcher struct {
	catalog    catalog.Catalog
	loop       *mind.Loop
	references References
	notifier   notify.Notifier
	treatments *treatment.Executor
	logger     logging.Logger
	metrics    metrics.CheckMetrics
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithReferences sets the reference resolver used by containment
// checks.
func WithReferences(r References) Option {
	return func(d *Dispatcher) { d.references = r }
}

// WithNotifier sets the alert channel.
func WithNotifier(n notify.Notifier) Option {
	return func(d *Dispatcher) {
		if n != nil {
			d.notifier = n
		}
	}
}

// WithTreatments sets the treatment executor.
func WithTreatments(e *treatment.Executor) Option {
	return func(d *Dispatcher) {
		if e != nil {
			d.treatments = e
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.CheckMetrics) Option {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

// New creates a Dispatcher reading from cat through loop.
func New(cat catalog.Catalog, loop *mind.Loop, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		catalog:  cat,
		loop:     loop,
		notifier: notify.Muted{},
		logger:   logging.NullLogger{},
		metrics:  metrics.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.treatments == nil {
		d.treatments = treatment.NewExecutor(cat, d.logger, d.metrics)
	}
	return d
}

// Run evaluates c and returns one result per audited resource.
//
// Data-quality failures, private targets and exhausted fetch
// budgets all produce results. The returned error is reserved for
// what must stop the whole run: a failed treatment, a reference
// that cannot be configured, or a cancelled context.
func (d *Dispatcher) Run(ctx context.Context, c *check.Check) ([]*check.Result, error) {
	if c.IsPackageScoped() && c.ResourceID() == "" {
		return d.runPackage(ctx, c)
	}
	r, err := d.runResource(ctx, c, true)
	if r == nil {
		return nil, err
	}
	return []*check.Result{r}, err
}

func (d *Dispatcher) runPackage(ctx context.Context, c *check.Check) ([]*check.Result, error) {
	res := check.NewResult(c)

	var pkg *catalog.Package
	err := d.loop.Do(ctx, "package_show", func(ctx context.Context) error {
		var err error
		pkg, err = d.catalog.Package(ctx, c.PackageID())
		return err
	})
	if err != nil {
		r, err := d.operational(ctx, c, res, "package metadata", err)
		return []*check.Result{r}, err
	}

	if pkg.Private {
		d.logger.Info("package is private, skipping",
			logging.StringField("check", c.Code()),
			logging.StringField("package_id", c.PackageID()))
		return []*check.Result{d.finish(c, res, check.StatusSkipped,
			fmt.Sprintf("package %s is private", c.PackageID()))}, nil
	}

	var results []*check.Result
	for _, resource := range pkg.Resources {
		if !resource.DatastoreActive {
			d.logger.Debug("resource has no datastore",
				logging.StringField("resource_id", resource.ID))
			continue
		}
		r, err := d.runResource(ctx, c.ForResource(resource.ID), false)
		if r != nil {
			results = append(results, r)
		}
		if err != nil {
			return results, err
		}
	}

	if len(results) == 0 {
		return []*check.Result{d.finish(c, res, check.StatusSkipped,
			fmt.Sprintf("package %s has no datastore resources", c.PackageID()))}, nil
	}
	return results, nil
}

// runResource evaluates c against its resource. checkPrivacy is
// false when the owning package is already known to be public.
func (d *Dispatcher) runResource(
	ctx context.Context, c *check.Check, checkPrivacy bool,
) (*check.Result, error) {
	res := check.NewResult(c)
	logger := d.logger.WithFields(
		logging.StringField("check", c.Code()),
		logging.StringField("resource_id", c.ResourceID()),
	)

	if checkPrivacy {
		var private bool
		err := d.loop.Do(ctx, "resource_show", func(ctx context.Context) error {
			var err error
			private, err = catalog.IsResourcePrivate(ctx, d.catalog, c.ResourceID())
			return err
		})
		if err != nil {
			return d.operational(ctx, c, res, "resource metadata", err)
		}
		if private {
			logger.Info("resource is private, skipping")
			return d.finish(c, res, check.StatusSkipped,
				fmt.Sprintf("resource %s is private", c.ResourceID())), nil
		}
	}

	var fields []catalog.Field
	err := d.loop.Do(ctx, "schema", func(ctx context.Context) error {
		var err error
		fields, err = d.catalog.Schema(ctx, c.ResourceID())
		return err
	})
	if err != nil {
		return d.operational(ctx, c, res, "schema", err)
	}
	if !hasField(fields, c.Field()) {
		msg := fmt.Sprintf(
			"Unable to find field called '%s' in schema for resource with resource ID %s.",
			c.Field(), c.ResourceID())
		logger.Warn(msg)
		d.alert(ctx, msg, notify.IconDefault)
		return d.finish(c, res, check.StatusError, msg), nil
	}

	initial, err := d.initialAccumulator(ctx, c)
	if err != nil {
		if errors.Is(err, reference.ErrDescriptor) {
			return nil, errors.Mark(
				errors.Wrapf(err, "check %s", c.Code()), check.ErrConfig)
		}
		return d.operational(ctx, c, res, "reference", err)
	}

	verdict, err := d.loop.Evaluate(ctx, mind.Input{
		ResourceID: c.ResourceID(),
		Field:      c.Field(),
		Assertion:  c.Assertion(),
		Initial:    initial,
		Post:       c.PostAssertion(),
	})
	res.RowCount = verdict.RowCount
	res.Scanned = verdict.Scanned
	if err != nil {
		return d.operational(ctx, c, res, "records", err)
	}

	if verdict.Passed {
		logger.Info("everything is fine",
			logging.IntField("row_count", verdict.RowCount),
			logging.IntField("scanned", verdict.Scanned))
		return d.finish(c, res, check.StatusPassed, "Everything is fine."), nil
	}

	if verdict.RecordFailed {
		res.FailedValue = verdict.FailedValue
	}
	if verdict.PostFailed {
		res.Leftover = verdict.Leftover()
	}
	msg := failureMessage(c, verdict)
	logger.Warn("check failed", logging.StringField("detail", msg))
	d.alert(ctx, msg, notify.IconDefault)

	ran, err := d.treatments.Execute(ctx, c, false)
	if ran {
		res.Treatment = c.Treatment().String()
	}
	d.finish(c, res, check.StatusFailed, msg)
	if err != nil {
		res.Error = err.Error()
		return res, err
	}
	return res, nil
}

func (d *Dispatcher) initialAccumulator(ctx context.Context, c *check.Check) (assertion.Accumulator, error) {
	if !c.Assertion().NeedsReference() {
		return assertion.NewAccumulator(), nil
	}
	if d.references == nil {
		return assertion.Accumulator{}, errors.Mark(
			errors.New("no reference resolver configured"),
			reference.ErrDescriptor,
		)
	}

	var values []string
	var cfgErr error
	err := d.loop.Do(ctx, "reference", func(ctx context.Context) error {
		var err error
		values, err = d.references.Values(ctx, c.Reference(), c.Field())
		if errors.Is(err, reference.ErrDescriptor) {
			cfgErr = err
			return nil
		}
		return err
	})
	if cfgErr != nil {
		return assertion.Accumulator{}, cfgErr
	}
	if err != nil {
		return assertion.Accumulator{}, err
	}
	return assertion.NewAccumulator(values...), nil
}

// operational turns a non-assertion failure into an error result
// and alert. Cancellation is returned to stop the run.
func (d *Dispatcher) operational(
	ctx context.Context, c *check.Check, res *check.Result, stage string, err error,
) (*check.Result, error) {
	if ctx.Err() != nil {
		return nil, errors.Wrapf(ctx.Err(), "check %s", c.Code())
	}

	msg := fmt.Sprintf("Unable to evaluate check %s on %s (%s): %v",
		c.Code(), c.Target(), stage, err)
	d.logger.Error("check could not be evaluated",
		logging.StringField("check", c.Code()),
		logging.StringField("stage", stage),
		logging.BoolField("budget_exhausted", errors.Is(err, mind.ErrFetchBudgetExhausted)),
		logging.ErrorField(err))
	d.alert(ctx, msg, notify.IconDefault)

	res.Error = err.Error()
	return d.finish(c, res, check.StatusError, msg), nil
}

func (d *Dispatcher) finish(c *check.Check, res *check.Result, status, msg string) *check.Result {
	res.Finish(status, msg)
	d.metrics.RecordCheck(c.Code(), status, res.Duration)
	return res
}

// alert delivers msg. Delivery failures are logged, not returned,
// so one bad webhook call does not hide the remaining results.
func (d *Dispatcher) alert(ctx context.Context, msg, icon string) {
	if err := d.notifier.Notify(ctx, notify.Message{Text: msg, Icon: icon}); err != nil {
		d.logger.Error("alert delivery failed", logging.ErrorField(err))
	}
}

func hasField(fields []catalog.Field, name string) bool {
	for _, f := range fields {
		if f.ID == name {
			return true
		}
	}
	return false
}

func failureMessage(c *check.Check, v mind.Verdict) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The assertion %s failed on field name '%s' for resource with ID %s.",
		c.Assertion(), c.Field(), c.ResourceID())

	if v.RecordFailed {
		fmt.Fprintf(&b, " First failing value: %q at record %d.",
			assertion.Stringify(v.FailedValue), v.FailedOffset)
	}
	if v.PostFailed {
		leftover := v.Leftover()
		fmt.Fprintf(&b, " %s never observed", pluralize("reference value", len(leftover)))
		shown := leftover
		if len(shown) > maxListedLeftover {
			shown = shown[:maxListedLeftover]
		}
		fmt.Fprintf(&b, ": %s", strings.Join(shown, ", "))
		if len(leftover) > len(shown) {
			fmt.Fprintf(&b, " and %d more", len(leftover)-len(shown))
		}
		b.WriteString(".")
	}
	return b.String()
}

func pluralize(word string, n int) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
