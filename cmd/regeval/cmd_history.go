package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"regeval/internal/config"
	"regeval/internal/format"
	"regeval/internal/history"
	"regeval/internal/store"
)

var historyFlags struct {
	historicDir string
	markdown    bool
	jsonOut     bool
	db          string
	scenario    string
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Summarize historic result files by run and by scenario",
	RunE:  runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyFlags.historicDir, "historic-dir", config.Default().HistoricDir, "Directory of historic result files")
	f.BoolVar(&historyFlags.markdown, "markdown", false, "Render Markdown tables")
	f.BoolVar(&historyFlags.jsonOut, "json", false, "Print the summary as JSON")
	f.StringVar(&historyFlags.db, "db", "", "Also list executions from this SQLite result index")
	f.StringVar(&historyFlags.scenario, "scenario", "", "With --db, print the trend of one scenario")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	corpus, err := history.LoadDir(historyFlags.historicDir)
	if err != nil {
		return err
	}
	summary := corpus.Summary()
	out := cmd.OutOrStdout()

	if historyFlags.jsonOut {
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	mode := format.ASCII
	if historyFlags.markdown {
		mode = format.Markdown
	}
	fmt.Fprintln(out, summary.String())
	if summary.Records > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, format.RunTable(summary.Runs, mode))
		fmt.Fprintln(out)
		fmt.Fprintln(out, format.ScenarioTable(summary.Scenarios, mode))
	}

	if historyFlags.db == "" {
		return nil
	}
	db, err := store.Open(historyFlags.db)
	if err != nil {
		return err
	}
	defer db.Close()

	execs, err := db.ListExecutions(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, format.ExecutionTable(execs, mode))

	if historyFlags.scenario != "" {
		trend, err := db.ScenarioTrend(cmd.Context(), historyFlags.scenario)
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, format.TrendTable(historyFlags.scenario, trend, mode))
	}
	return nil
}
