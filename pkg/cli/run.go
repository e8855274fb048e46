package cli

import (
	"github.com/spf13/cobra"

	"digital.vasic.beekeeper/pkg/runner"
)

func newRunCommand(g *globalFlags) *cobra.Command {
	var (
		mode       runMode
		checksPath string
	)

	cmd := &cobra.Command{
		Use:   "run [codes...]",
		Short: "Run configured checks",
		Long: `Run every configured check, or only those whose codes are given.

Alerts go to Slack only in production (BEEKEEPER_PRODUCTION=true or
--production) and never with --mute. With --test, treatments are
logged instead of applied.

Examples:
  beekeeper run
  beekeeper run dog-zip --mute
  beekeeper run --checks checks.yaml --test`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.Close()

			mode.persist = true
			return a.execute(cmd.Context(), mode, func() (runner.Plan, error) {
				b, err := a.loadBank(checksPath)
				if err != nil {
					return runner.Plan{}, err
				}
				plan := runner.Plan{Checks: b.All()}
				if len(args) > 0 {
					plan.Checks, plan.Unmatched = b.Select(args...)
					plan.Selected = args
				}
				return plan, nil
			})
		},
	}

	cmd.Flags().BoolVar(&mode.mute, "mute", false, "Do not send alerts")
	cmd.Flags().BoolVar(&mode.production, "production", false, "Run in production mode (send alerts)")
	cmd.Flags().BoolVar(&mode.test, "test", false, "Log treatments instead of applying them")
	cmd.Flags().StringVar(&checksPath, "checks", "", "Checks file or directory (default: embedded checks)")

	return cmd
}
