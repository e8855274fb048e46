package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"digital.vasic.beekeeper/pkg/check"
)

// PrintSummary writes a human-readable summary of r to w, listing
// every result and the status changes since the previous run.
func PrintSummary(w io.Writer, r *RunReport, changes []Change) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)

	statusColor := func(status string) *color.Color {
		switch status {
		case check.StatusPassed:
			return green
		case check.StatusFailed, check.StatusError:
			return red
		}
		return yellow
	}

	cyan.Fprintf(w, "\n=== beekeeper run %s ===\n\n", r.RunID)

	for _, res := range r.Results {
		fmt.Fprintf(w, "  ")
		statusColor(res.Status).Fprintf(w, "%-8s", strings.ToUpper(res.Status))
		fmt.Fprintf(w, " %s", res.Code)
		if res.ResourceID != "" {
			fmt.Fprintf(w, " [%s]", res.ResourceID)
		}
		fmt.Fprintln(w)
		if res.Status != check.StatusPassed && res.Message != "" {
			fmt.Fprintf(w, "           %s\n", res.Message)
		}
	}

	if len(r.Unmatched) > 0 {
		fmt.Fprintln(w)
		yellow.Fprintf(w, "  No check has code: %s\n", strings.Join(r.Unmatched, ", "))
	}

	if len(changes) > 0 {
		fmt.Fprintln(w)
		cyan.Fprintf(w, "Changes since last run:\n")
		for _, c := range changes {
			from := c.From
			if from == "" {
				from = "new"
			}
			line := fmt.Sprintf("  %s [%s]: %s -> %s\n", c.Code, c.ResourceID, from, c.To)
			if c.IsRegression() {
				red.Fprint(w, line)
			} else {
				fmt.Fprint(w, line)
			}
		}
	}

	counts := r.Counts()
	fmt.Fprintln(w)
	cyan.Fprintf(w, "Totals:\n")
	fmt.Fprintf(w, "  Results: %d\n", counts.Total)
	fmt.Fprintf(w, "  Passed: ")
	green.Fprintf(w, "%d\n", counts.Passed)
	fmt.Fprintf(w, "  Failed: ")
	red.Fprintf(w, "%d\n", counts.Failed)
	fmt.Fprintf(w, "  Errors: ")
	red.Fprintf(w, "%d\n", counts.Errored)
	fmt.Fprintf(w, "  Skipped: ")
	yellow.Fprintf(w, "%d\n", counts.Skipped)
	fmt.Fprintf(w, "  Duration: %v\n", r.Duration.Round(1e6))
}
