// Package mind evaluates one field of a datastore resource: it pages
// through the records, folds every value through an assertion and
// settles the result with an optional post-loop assertion.
//
// A Loop tolerates transient fetch failures by retrying the same
// offset, up to a fixed budget of consecutive failures. Running out
// of budget is reported as ErrFetchBudgetExhausted, which callers
// must treat as an operational error and never as a failed check.
package mind

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"digital.vasic.beekeeper/pkg/assertion"
	"digital.vasic.beekeeper/pkg/catalog"
	"digital.vasic.beekeeper/pkg/logging"
	"digital.vasic.beekeeper/pkg/metrics"
)

// Defaults for a Loop.
const (
	DefaultChunkSize     = 5000
	DefaultFailureBudget = 5
	DefaultDelay         = 10 * time.Millisecond
)

// ErrFetchBudgetExhausted marks errors returned once the
// consecutive failure budget is spent.
var ErrFetchBudgetExhausted = errors.New("fetch failure budget exhausted")

// Source is the part of the catalog the loop reads from.
type Source interface {
	RowCount(ctx context.Context, resourceID string) (int, error)
	Page(
		ctx context.Context,
		resourceID, field string,
		limit, offset int,
	) ([]any, error)
}

// Input describes a single evaluation.
type Input struct {
	ResourceID string
	Field      string

	// Assertion is applied to every record.
	Assertion assertion.Spec

	// Initial is the starting accumulator. It is consumed by the
	// evaluation.
	Initial assertion.Accumulator

	// Post, when non-zero, runs once after the scan.
	Post assertion.Spec
}

// Verdict is the outcome of one evaluation.
type Verdict struct {
	Passed      bool
	Accumulator assertion.Accumulator

	RowCount int
	Scanned  int
	Pages    int
	Retries  int

	// FailedValue and FailedOffset identify the first record that
	// failed the per-record assertion.
	FailedValue  any
	FailedOffset int
	RecordFailed bool

	PostFailed bool
}

// Leftover returns the reference values never observed.
func (v Verdict) Leftover() []string {
	return v.Accumulator.Leftover()
}

// Loop drives paged evaluations against a Source.
type Loop struct {
	source    Source
	chunkSize int
	budget    int
	delay     time.Duration
	logger    logging.Logger
	metrics   metrics.CheckMetrics
	sleep     func(ctx context.Context, d time.Duration) error
}

// Option configures a Loop.
type Option func(*Loop)

// WithChunkSize sets the page size. Non-positive values are ignored.
func WithChunkSize(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.chunkSize = n
		}
	}
}

// WithFailureBudget sets how many consecutive failed attempts are
// tolerated. Non-positive values are ignored.
func WithFailureBudget(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.budget = n
		}
	}
}

// WithDelay sets the pause held before every attempt.
func WithDelay(d time.Duration) Option {
	return func(l *Loop) {
		if d >= 0 {
			l.delay = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.CheckMetrics) Option {
	return func(l *Loop) {
		if m != nil {
			l.metrics = m
		}
	}
}

// WithSleep replaces the delay implementation.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Loop) {
		if fn != nil {
			l.sleep = fn
		}
	}
}

// NewLoop creates a Loop reading from source.
func NewLoop(source Source, opts ...Option) *Loop {
	l := &Loop{
		source:    source,
		chunkSize: DefaultChunkSize,
		budget:    DefaultFailureBudget,
		delay:     DefaultDelay,
		logger:    logging.NullLogger{},
		metrics:   metrics.NoopMetrics{},
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ChunkSize returns the configured page size.
func (l *Loop) ChunkSize() int { return l.chunkSize }

// FailureBudget returns the configured failure budget.
func (l *Loop) FailureBudget() int { return l.budget }

// Evaluate runs in against the source.
func (l *Loop) Evaluate(ctx context.Context, in Input) (Verdict, error) {
	v := Verdict{Passed: true, Accumulator: in.Initial}

	var rows int
	err := l.Do(ctx, "row_count", func(ctx context.Context) error {
		n, err := l.source.RowCount(ctx, in.ResourceID)
		if errors.Is(err, catalog.ErrDatastoreInactive) {
			rows = 0
			return nil
		}
		rows = n
		return err
	})
	if err != nil {
		return v, err
	}
	v.RowCount = rows
	if rows <= 0 {
		l.logger.Info("no rows to validate",
			logging.StringField("resource_id", in.ResourceID))
		return v, nil
	}

	step := in.Assertion.Func()
	acc := in.Initial
	recordOK := true

scan:
	for offset := 0; offset < rows; offset += l.chunkSize {
		var page []any
		retries, err := l.retry(ctx, "page", func(ctx context.Context) error {
			var err error
			page, err = l.source.Page(
				ctx, in.ResourceID, in.Field, l.chunkSize, offset,
			)
			return err
		})
		v.Retries += retries
		if err != nil {
			v.Accumulator = acc
			return v, errors.Wrapf(err,
				"fetch %s offset %d", in.ResourceID, offset)
		}
		v.Pages++
		l.metrics.RecordPage(in.ResourceID, len(page))

		if len(page) == 0 {
			l.logger.Warn("empty page before reaching row count",
				logging.StringField("resource_id", in.ResourceID),
				logging.IntField("offset", offset),
				logging.IntField("row_count", rows))
			break
		}

		for i, value := range page {
			var ok bool
			ok, acc = step(value, acc)
			v.Scanned++
			if !ok {
				recordOK = false
				v.RecordFailed = true
				v.FailedValue = value
				v.FailedOffset = offset + i
				break scan
			}
		}
	}

	postOK := true
	if !in.Post.IsZero() {
		postOK, acc = in.Post.Func()(nil, acc)
		v.PostFailed = !postOK
	}

	v.Accumulator = acc
	v.Passed = recordOK && postOK
	return v, nil
}

// Do runs op with the loop's delay and failure budget. It is used
// for metadata calls that share the page fetch policy.
func (l *Loop) Do(
	ctx context.Context, name string, op func(ctx context.Context) error,
) error {
	_, err := l.retry(ctx, name, op)
	return err
}

// retry returns the number of failed attempts, including the one
// that spent the budget.
func (l *Loop) retry(
	ctx context.Context, name string, op func(ctx context.Context) error,
) (int, error) {
	failures := 0
	for {
		if err := l.sleep(ctx, l.delay); err != nil {
			return failures, errors.Wrap(err, name)
		}

		err := op(ctx)
		if err == nil {
			return failures, nil
		}
		if ctx.Err() != nil {
			return failures, errors.Wrap(ctx.Err(), name)
		}

		failures++
		l.metrics.RecordFetchError(name)
		l.logger.Warn("catalog call failed",
			logging.StringField("op", name),
			logging.IntField("attempt", failures),
			logging.IntField("budget", l.budget),
			logging.ErrorField(err))

		if failures >= l.budget {
			return failures, errors.Mark(
				errors.Wrapf(err, "%s failed %d times in a row",
					name, failures),
				ErrFetchBudgetExhausted,
			)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
