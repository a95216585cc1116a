package main

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"sitescore/internal/config"
	"sitescore/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Look up an audit record in the configured store",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Store.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	rec, err := st.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "id:        %s\n", rec.ID)
	fmt.Fprintf(out, "url:       %s\n", rec.URL)
	fmt.Fprintf(out, "status:    %s\n", rec.Status)
	fmt.Fprintf(out, "created:   %s\n", rec.CreatedAt.Format(time.RFC3339))
	if rec.CompletedAt != nil {
		fmt.Fprintf(out, "completed: %s\n", rec.CompletedAt.Format(time.RFC3339))
	}
	if rec.Score != nil {
		fmt.Fprintf(out, "score:     %d\n", *rec.Score)
	}
	if rec.Error != "" {
		fmt.Fprintf(out, "error:     %s\n", rec.Error)
	}
	if rec.ReportReady {
		fmt.Fprintf(out, "report:    %s\n", rec.ReportPath)
	}
	fmt.Fprintf(out, "expires:   %s\n", rec.ExpiresAt.Format(time.RFC3339))

	events, err := st.Events(cmd.Context(), rec.ID)
	if err == nil && len(events) > 0 {
		fmt.Fprintln(out, "events:")
		for _, e := range events {
			if e.Message != "" {
				fmt.Fprintf(out, "  %s  %s (%s)\n", e.At.Format(time.RFC3339), e.Type, e.Message)
			} else {
				fmt.Fprintf(out, "  %s  %s\n", e.At.Format(time.RFC3339), e.Type)
			}
		}
	}
	return nil
}
