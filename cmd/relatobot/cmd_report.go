package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/relatobot/internal/archive"
)

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportListCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect archived reports",
}

var reportListLimit int

func init() {
	reportListCmd.Flags().IntVar(&reportListLimit, "limit", 20, "max records to show")
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived reports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := archive.NewStore(filepath.Join(cfg.DataDir, "reports.jsonl"))

		records, err := store.List(reportListLimit)
		if err != nil {
			return fmt.Errorf("list reports: %w", err)
		}
		if len(records) == 0 {
			fmt.Println("No archived reports.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TARGET\tINITIATOR\tOUTCOME\tANSWERS\tCOMPLETED")
		for _, rec := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				rec.TargetLabel,
				rec.Initiator,
				rec.Outcome,
				len(rec.Entries),
				rec.CompletedAt.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}
