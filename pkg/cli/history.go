package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"digital.vasic.beekeeper/pkg/check"
	"digital.vasic.beekeeper/pkg/report"
)

func newHistoryCommand(g *globalFlags) *cobra.Command {
	var (
		limit int
		code  string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent check results from the run history",
		Long: `Show the most recent entries of the run history, oldest first.

Examples:
  beekeeper history
  beekeeper history --code dog-license-zip --limit 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := report.ReadHistory(a.settings.Paths.History)
			if err != nil {
				return err
			}
			if code != "" {
				kept := entries[:0]
				for _, e := range entries {
					if e.Code == code {
						kept = append(kept, e)
					}
				}
				entries = kept
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[len(entries)-limit:]
			}

			if len(entries) == 0 {
				fmt.Fprintln(a.out, "No history recorded.")
				return nil
			}

			green := color.New(color.FgGreen)
			red := color.New(color.FgRed)
			yellow := color.New(color.FgYellow)
			for _, e := range entries {
				c := yellow
				switch e.Status {
				case check.StatusPassed:
					c = green
				case check.StatusFailed, check.StatusError:
					c = red
				}
				fmt.Fprintf(a.out, "%s  ", e.Timestamp.Local().Format(time.DateTime))
				c.Fprintf(a.out, "%-8s", e.Status)
				fmt.Fprintf(a.out, " %s", e.Code)
				if e.ResourceID != "" {
					fmt.Fprintf(a.out, " [%s]", e.ResourceID)
				}
				fmt.Fprintf(a.out, " rows=%d scanned=%d\n", e.RowCount, e.Scanned)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of entries to show (0 for all)")
	cmd.Flags().StringVar(&code, "code", "", "Only show entries for this check code")
	return cmd
}
