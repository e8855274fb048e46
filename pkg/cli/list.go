package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newListCommand(g *globalFlags) *cobra.Command {
	var checksPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.Close()

			b, err := a.loadBank(checksPath)
			if err != nil {
				return err
			}

			cyan := color.New(color.FgCyan, color.Bold)
			cyan.Fprintf(a.out, "%d check(s) from %v\n\n", b.Count(), b.Sources())
			for _, c := range b.All() {
				cyan.Fprintf(a.out, "%s", c.Code())
				if c.Name() != c.Code() {
					fmt.Fprintf(a.out, " (%s)", c.Name())
				}
				fmt.Fprintln(a.out)
				fmt.Fprintf(a.out, "  target:    %s\n", c.Target())
				fmt.Fprintf(a.out, "  field:     %s\n", c.Field())
				fmt.Fprintf(a.out, "  assertion: %s\n", c.Assertion())
				if !c.PostAssertion().IsZero() {
					fmt.Fprintf(a.out, "  post:      %s\n", c.PostAssertion())
				}
				if !c.Reference().IsZero() {
					fmt.Fprintf(a.out, "  reference: %s\n", c.Reference())
				}
				if t := c.Treatment().String(); t != "" {
					fmt.Fprintf(a.out, "  treatment: %s\n", t)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&checksPath, "checks", "", "Checks file or directory (default: embedded checks)")
	return cmd
}
