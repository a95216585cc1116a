package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"sitescore/internal/collect"
	"sitescore/internal/logging"
	"sitescore/internal/orchestrate"
	"sitescore/internal/score"
)

var (
	auditJSON    bool
	auditTimeout time.Duration
)

var auditCmd = &cobra.Command{
	Use:   "audit <url>",
	Short: "Run a one-shot audit and print the score breakdown",
	Args:  cobra.ExactArgs(1),
	RunE:  runAudit,
}

func init() {
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "print the raw breakdown as JSON")
	auditCmd.Flags().DurationVar(&auditTimeout, "timeout", 5*time.Minute, "audit deadline")
}

func runAudit(cmd *cobra.Command, args []string) error {
	logging.Init(logging.ParseLevel(os.Getenv("LOG_LEVEL")), "text")

	target, err := orchestrate.NormalizeURL(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), auditTimeout)
	defer cancel()

	runtime := collect.NewChromeRuntime(ctx)
	defer runtime.Close()

	collector, err := collect.New(runtime, collect.WithLogger(logging.New("collect")))
	if err != nil {
		return err
	}

	bundle, err := collector.Collect(ctx, target)
	if err != nil {
		return fmt.Errorf("collect %s: %w", target, err)
	}
	breakdown, err := score.New(nil).Score(bundle)
	if err != nil {
		return fmt.Errorf("score %s: %w", target, err)
	}

	if auditJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(breakdown)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", target)
	fmt.Fprintf(out, "Score: %d/100 (%s)\n\n", breakdown.Total, breakdown.Grade)

	w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	for _, cat := range breakdown.Categories {
		if len(cat.Metrics) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s\t%d/100 raw\t%d/%d weighted\n", cat.Name, cat.Raw, cat.Subtotal, cat.Weight)
		for _, m := range cat.Metrics {
			fmt.Fprintf(w, "  %s\t%d/%d\t\n", m.Name, m.Earned, m.Possible)
		}
	}
	w.Flush()

	if len(breakdown.Recommendations) > 0 {
		fmt.Fprintln(out)
		for _, rec := range breakdown.Recommendations {
			fmt.Fprintf(out, "[%s] %s: %s\n", rec.Priority, rec.Issue, rec.Advice)
		}
	}
	return nil
}
