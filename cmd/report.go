package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Govind-619/SettleSphere/report"
	"github.com/Govind-619/SettleSphere/store"
	"github.com/Govind-619/SettleSphere/utils"
	"github.com/spf13/cobra"
)

func reportCmd() *cobra.Command {
	var (
		out   string
		since string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export payments, deposits and gateway events to Excel",
		RunE: func(cmd *cobra.Command, args []string) error {
			var from time.Time
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since %q: expected YYYY-MM-DD", since)
				}
				from = t
			}

			_, db, err := bootstrap()
			if err != nil {
				return err
			}

			snap, err := store.New(db).Snapshot(cmd.Context(), from)
			if err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			defer f.Close()

			if err := report.Write(f, snap, from); err != nil {
				return err
			}
			utils.LogInfo("Wrote %d payments, %d deposits and %d events to %s",
				len(snap.Payments), len(snap.Deposits), len(snap.Events), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "reconciliation.xlsx", "Output file")
	cmd.Flags().StringVar(&since, "since", "", "Only include records updated on or after this date (YYYY-MM-DD)")

	return cmd
}
