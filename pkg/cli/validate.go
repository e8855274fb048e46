package cli

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"digital.vasic.beekeeper/pkg/bank"
	"digital.vasic.beekeeper/pkg/check"
)

func newValidateCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [checks-file]",
		Short: "Validate a checks file and report every problem",
		Long: `Parse a checks file and report every problem found.
Without an argument, the settings file's checks path is validated,
or the embedded checks when none is set.

Exit code: 0 if valid, 1 if errors found`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.Close()

			path := a.settings.Paths.Checks
			if len(args) == 1 {
				path = args[0]
			}

			green := color.New(color.FgGreen)
			red := color.New(color.FgRed)

			if path == "" {
				b, err := bank.Default()
				if err != nil {
					return err
				}
				green.Fprintf(a.out, "embedded checks are valid (%d check(s))\n", b.Count())
				return nil
			}

			problems := bank.ValidateFile(path)
			if len(problems) == 0 {
				green.Fprintf(a.out, "%s is valid\n", path)
				return nil
			}
			for _, p := range problems {
				red.Fprintf(a.out, "  ✗ ")
				fmt.Fprintln(a.out, p.Error())
			}
			return errors.Mark(
				errors.Newf("%s: %d problem(s) found", path, len(problems)),
				check.ErrConfig,
			)
		},
	}
}
