package cli

import (
	"github.com/spf13/cobra"

	"digital.vasic.beekeeper/pkg/check"
	"digital.vasic.beekeeper/pkg/runner"
)

func newResourceCommand(g *globalFlags) *cobra.Command {
	var (
		mode runMode
		def  = check.Definition{Code: "adhoc"}
	)

	cmd := &cobra.Command{
		Use:   "resource",
		Short: "Run one ad hoc check against a resource",
		Long: `Check one field of one resource without a checks file.
The run is not archived and alerts are muted unless --production.

Example:
  beekeeper resource --resource-id 37b11f07-361f-442a-966e-fbdc5eef0840 \
    --field OwnerZip --assertion int`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.execute(cmd.Context(), mode, func() (runner.Plan, error) {
				c, err := check.New(def)
				if err != nil {
					return runner.Plan{}, err
				}
				return runner.Plan{Checks: []*check.Check{c}}, nil
			})
		},
	}

	cmd.Flags().StringVar(&def.ResourceID, "resource-id", "", "Resource to check")
	cmd.Flags().StringVar(&def.FieldName, "field", "", "Field to check")
	cmd.Flags().StringVar(&def.Assertion, "assertion", "", "Per-record type assertion (int, float, bool, date, text)")
	cmd.Flags().StringVar(&def.PostAssertion, "post-assertion", "", "Assertion on the final accumulator (leftover_empty)")
	cmd.Flags().BoolVar(&mode.production, "production", false, "Send alerts")
	_ = cmd.MarkFlagRequired("resource-id")
	_ = cmd.MarkFlagRequired("field")
	_ = cmd.MarkFlagRequired("assertion")

	return cmd
}
