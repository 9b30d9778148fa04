package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"regeval/internal/format"
	"regeval/internal/logging"
	"regeval/internal/regression"
)

var runFlags configFlags

var runMarkdown bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the regression suite and persist a result CSV",
	Long: `Run rotates previous result files into the historic directory, loads the
scenario file, asks every scenario --runs times, scores each answer and writes
result_DDMMYYYY_HHMM.csv to the output directory.

Per-item failures are reported after the summary table; only fatal errors
(unreadable input, rotation or write failures, abort policy) exit non-zero.`,
	RunE: runRun,
}

func init() {
	addConfigFlags(runCmd, &runFlags)
	runCmd.Flags().BoolVar(&runMarkdown, "markdown", false, "Print the summary as a Markdown table")
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd, &runFlags)
	if err != nil {
		return err
	}
	w, err := buildWiring(cfg, runFlags.dryRun)
	if err != nil {
		return err
	}
	defer w.Close()

	runner, err := regression.New(w.caller, w.regCfg, regression.WithSinks(w.sinks...))
	if err != nil {
		return err
	}
	res, err := runner.Run(cmd.Context())
	if err != nil {
		return err
	}
	if err := w.flushMetrics(); err != nil {
		logging.New("cli").Warn("metrics textfile not written", "error", err)
	}

	mode := format.ASCII
	if runMarkdown {
		mode = format.Markdown
	}
	fmt.Fprint(cmd.OutOrStdout(), format.ResultReport(res, mode))
	return nil
}
