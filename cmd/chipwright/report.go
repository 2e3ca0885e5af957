package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"chipwright/internal/report"
	"chipwright/internal/store"
)

var reportLimit int

var reportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "Show journaled runs",
	Long: `Without arguments, lists recent runs from the journal. With a run id
(or unique prefix), renders the full run report: module states, attempt
log and last diagnostics.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().IntVar(&reportLimit, "limit", 20, "max runs to list")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Store.Path == "" {
		return fmt.Errorf("run journal disabled (store.path is empty)")
	}

	journal, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer journal.Close()

	var markdown string
	if len(args) == 1 {
		rec, err := journal.GetRun(args[0])
		if err != nil {
			return err
		}
		markdown = report.RunMarkdown(rec)
	} else {
		runs, err := journal.ListRuns(reportLimit)
		if err != nil {
			return err
		}
		markdown = report.RunListMarkdown(runs)
	}

	fmt.Fprint(cmd.OutOrStdout(), report.Render(markdown))
	return nil
}
