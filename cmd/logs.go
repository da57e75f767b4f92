package cmd

import (
	"fmt"
	"time"

	"github.com/Govind-619/SettleSphere/report"
	"github.com/spf13/cobra"
)

func logsCmd() *cobra.Command {
	var (
		dir string
		day string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Summarise a day of service logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			when := time.Now()
			if day != "" {
				t, err := time.Parse("2006-01-02", day)
				if err != nil {
					return fmt.Errorf("invalid --day %q: expected YYYY-MM-DD", day)
				}
				when = t
			}

			stats, err := report.AnalyzeLogs(dir, when)
			if err != nil {
				return err
			}
			report.PrintLogStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "logs", "Directory holding the log files")
	cmd.Flags().StringVar(&day, "day", "", "Day to analyse (YYYY-MM-DD, default today)")

	return cmd
}
