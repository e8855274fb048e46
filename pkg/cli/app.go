package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"digital.vasic.beekeeper/pkg/bank"
	"digital.vasic.beekeeper/pkg/catalog"
	"digital.vasic.beekeeper/pkg/check"
	"digital.vasic.beekeeper/pkg/config"
	"digital.vasic.beekeeper/pkg/dispatch"
	"digital.vasic.beekeeper/pkg/env"
	"digital.vasic.beekeeper/pkg/filelock"
	"digital.vasic.beekeeper/pkg/httpclient"
	"digital.vasic.beekeeper/pkg/logging"
	"digital.vasic.beekeeper/pkg/metrics"
	"digital.vasic.beekeeper/pkg/mind"
	"digital.vasic.beekeeper/pkg/notify"
	"digital.vasic.beekeeper/pkg/reference"
	"digital.vasic.beekeeper/pkg/report"
	"digital.vasic.beekeeper/pkg/runner"
	"digital.vasic.beekeeper/pkg/treatment"
)

const defaultEnvFile = ".env"

// app is the state shared by the commands of one invocation.
type app struct {
	settings *config.Settings
	vars     *env.Loader
	logger   logging.Logger
	out      io.Writer
}

// runMode decides where alerts go and whether treatments apply.
type runMode struct {
	production bool
	mute       bool
	test       bool
	persist    bool
}

// loadApp reads the .env file and settings and builds the logger.
func loadApp(cmd *cobra.Command, g *globalFlags) (*app, error) {
	if g.noColor {
		color.NoColor = true
	}

	vars := env.NewLoader()
	if g.envFile != "" {
		if err := vars.Load(g.envFile); err != nil {
			return nil, err
		}
	} else if err := vars.LoadIfExists(defaultEnvFile); err != nil {
		return nil, err
	}

	settings, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}

	level := logging.ParseLevel(settings.Log.Level)
	if g.debug {
		level = logging.LevelDebug
	}
	var logger logging.Logger = logging.NewConsoleLogger(
		cmd.ErrOrStderr(), level, color.NoColor || !isTerminal(cmd.ErrOrStderr()),
	)
	if settings.Log.File != "" {
		fileLogger, err := logging.NewJSONLogger(settings.Log.File, level)
		if err != nil {
			return nil, err
		}
		logger = logging.NewMultiLogger(logger, fileLogger)
	}

	return &app{
		settings: settings,
		vars:     vars,
		logger:   logger,
		out:      cmd.OutOrStdout(),
	}, nil
}

// isTerminal reports whether w is a terminal. Anything that is not
// an *os.File is treated as a pipe.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Close flushes the log file, if any.
func (a *app) Close() error {
	return a.logger.Close()
}

// loadBank reads checks from path, the settings file's checks path,
// or the embedded defaults, in that order.
func (a *app) loadBank(path string) (*bank.Bank, error) {
	if path == "" {
		path = a.settings.Paths.Checks
	}
	if path == "" {
		return bank.Default()
	}
	return bank.Load(path)
}

// credentials resolves the catalog credentials and masks their
// secrets in every later log line. When they are incomplete the
// alert settings are still returned with the error so the failure
// can be reported.
func (a *app) credentials() (env.Credentials, error) {
	creds, err := a.vars.Credentials()
	if err != nil {
		creds = env.Credentials{
			WebhookURL: a.vars.Get(env.KeyWebhook),
			Production: a.vars.GetBool(env.KeyProduction),
		}
	}
	a.logger = logging.NewRedactingLogger(a.logger, creds.Secrets()...)
	if err != nil {
		return creds, err
	}
	for k, v := range creds.Redacted() {
		a.logger.Debug("credential", logging.StringField("name", k), logging.StringField("value", v))
	}
	return creds, nil
}

func (a *app) notifier(creds env.Credentials, mode runMode) notify.Notifier {
	if mode.mute || !mode.production || creds.WebhookURL == "" {
		return notify.Muted{Logger: a.logger}
	}
	return notify.NewSlack(creds.WebhookURL, notify.SlackOptions{
		Username: a.settings.Slack.Username,
		Channel:  a.settings.Slack.Channel,
		Icon:     a.settings.Slack.Icon,
	}, httpclient.WithTimeout(a.settings.HTTP.Timeout))
}

func (a *app) dispatcher(
	creds env.Credentials, n notify.Notifier, m metrics.CheckMetrics, mode runMode,
) *dispatch.Dispatcher {
	s := a.settings
	api := httpclient.NewAPIClient(creds.Site,
		httpclient.WithAPIKey(creds.APIKey),
		httpclient.WithAuthHeader(s.HTTP.AuthHeader),
		httpclient.WithTimeout(s.HTTP.Timeout),
		httpclient.WithRateLimit(s.HTTP.RequestsPerSecond, 1),
		httpclient.WithUserAgent(s.HTTP.UserAgent),
		httpclient.WithLogger(a.logger),
	)
	cat := catalog.NewCKAN(api)

	loop := mind.NewLoop(cat,
		mind.WithChunkSize(s.Loop.ChunkSize),
		mind.WithFailureBudget(s.Loop.FailureBudget),
		mind.WithDelay(s.Loop.PageDelay),
		mind.WithLogger(a.logger),
		mind.WithMetrics(m),
	)

	resolver := reference.NewResolver(s.Paths.ReferenceDir,
		reference.WithFetcher(reference.TypeSFTP, reference.NewSFTPFetcher(s.Publishers, a.logger)),
		reference.WithLogger(a.logger),
	)

	treatments := treatment.NewExecutor(cat, a.logger, m)
	if mode.test {
		treatments.Register(check.TreatmentMakePrivate,
			treatment.DryRun{Treatment: check.TreatmentMakePrivate, Logger: a.logger})
	}

	return dispatch.New(cat, loop,
		dispatch.WithReferences(resolver),
		dispatch.WithNotifier(n),
		dispatch.WithTreatments(treatments),
		dispatch.WithLogger(a.logger),
		dispatch.WithMetrics(m),
	)
}

// execute builds the plan and runs it under the run lock, then
// prints the summary. Every failure from resolving credentials
// onwards, including a broken checks file, is logged and, in
// production, alerted.
func (a *app) execute(ctx context.Context, mode runMode, build func() (runner.Plan, error)) error {
	creds, err := a.credentials()
	if creds.Production {
		mode.production = true
	}
	n := a.notifier(creds, mode)

	if err == nil {
		var plan runner.Plan
		if plan, err = build(); err == nil {
			err = a.executeWith(ctx, creds, n, plan, mode)
		}
	}
	if err != nil {
		a.reportFailure(ctx, n, mode, err)
	}
	return err
}

func (a *app) executeWith(
	ctx context.Context, creds env.Credentials, n notify.Notifier, plan runner.Plan, mode runMode,
) error {
	lock, err := filelock.Acquire(a.settings.Paths.Lock)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			a.logger.Warn("release run lock", logging.ErrorField(err))
		}
	}()

	m := metrics.NewPrometheusMetrics()
	opts := []runner.RunnerOption{
		runner.WithLogger(a.logger),
		runner.WithMetrics(m),
		runner.WithProduction(mode.production && !mode.mute),
	}
	if mode.persist {
		opts = append(opts,
			runner.WithArchive(a.settings.Paths.Archive),
			runner.WithHistory(a.settings.Paths.History),
			runner.WithMetricsTextfile(a.settings.Paths.MetricsTextfile),
		)
	}

	r := runner.NewRunner(a.dispatcher(creds, n, m, mode), opts...)
	rep, err := r.Run(ctx, plan)
	if rep != nil {
		report.PrintSummary(a.out, rep, rep.Changes)
	}
	return err
}

// reportFailure logs err with its stack and, in production, sends
// it to the operator channel.
func (a *app) reportFailure(ctx context.Context, n notify.Notifier, mode runMode, err error) {
	msg := failureAlert(err)
	a.logger.Error("beekeeper failed", logging.ErrorField(err))
	if hint := errors.FlattenHints(err); hint != "" {
		a.logger.Info(hint)
	}
	if !mode.production {
		return
	}
	nerr := n.Notify(context.WithoutCancel(ctx), notify.Message{
		Text: msg,
		Icon: notify.IconFailure,
	})
	if nerr != nil {
		a.logger.Error("failure alert not delivered", logging.ErrorField(nerr))
	}
}

// failureAlert renders err with its stack, every line prefixed
// with "!! ".
func failureAlert(err error) string {
	var b strings.Builder
	b.WriteString("beekeeper failed for some reason.\n")
	for _, line := range strings.Split(strings.TrimRight(fmt.Sprintf("%+v", err), "\n"), "\n") {
		b.WriteString("!! ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
