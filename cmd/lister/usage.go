package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/raine/photo-lister/internal/usage"
	"github.com/spf13/cobra"
)

func usageCommand(c *cli) *cobra.Command {
	var window time.Duration

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Print token usage and cost",
		Example: `  lister usage
  lister usage --window 168h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if window <= 0 {
				window = c.app.Config.UsageWindow
			}
			summary, err := c.app.Ledger.Aggregate(time.Now().Add(-window))
			if err != nil {
				return err
			}
			printSummary(summary, window)
			return nil
		},
	}
	cmd.Flags().DurationVar(&window, "window", 0, "How far back to sum (default AI_USAGE_WINDOW)")
	return cmd
}

func printSummary(s *usage.Summary, window time.Duration) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	headerColor.Fprintf(w, "--- AI usage, last %s ---\n", window)
	fmt.Fprintf(w, "%s:\t%d\n", labelColor.Sprint("Requests"), s.TotalRequests)
	fmt.Fprintf(w, "%s:\t%d\n", labelColor.Sprint("Tokens"), s.TotalTokens)
	fmt.Fprintf(w, "%s:\t%s %s\n", labelColor.Sprint("Cost"), goodColor.Sprint(s.TotalCost.StringFixed(4)), s.Currency)

	if len(s.Operations) == 0 {
		return
	}
	ops := make([]string, 0, len(s.Operations))
	for op := range s.Operations {
		ops = append(ops, string(op))
	}
	sort.Strings(ops)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
		labelColor.Sprint("OPERATION"), labelColor.Sprint("REQUESTS"),
		labelColor.Sprint("IN"), labelColor.Sprint("OUT"), labelColor.Sprint("COST"))
	for _, name := range ops {
		o := s.Operations[usage.Operation(name)]
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n", name, o.Requests, o.PromptTokens, o.CompletionTokens, o.Cost.StringFixed(4))
	}
}
