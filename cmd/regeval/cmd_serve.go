package main

import (
	"context"

	"github.com/spf13/cobra"

	"regeval/internal/logging"
	mcpserver "regeval/internal/mcp"
)

var serveFlags configFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server over stdio",
	Long: `Starts an MCP server over stdin/stdout with the tools run_regression,
score_answer and history_summary. The same config file and flags as "run"
configure the executions it starts.

The server monitors for parent process death and exits when its client goes
away.`,
	RunE: runServe,
}

func init() {
	addConfigFlags(serveCmd, &serveFlags)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd, &serveFlags)
	if err != nil {
		return err
	}
	w, err := buildWiring(cfg, serveFlags.dryRun)
	if err != nil {
		return err
	}
	defer w.Close()

	srv := mcpserver.NewServer(w.caller, w.regCfg, version, w.sinks...)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	mcpserver.WatchParent(ctx, cancel)

	logging.New("mcp").Info("starting regeval MCP server over stdio (parent watchdog active)")
	err = srv.Serve(ctx)
	if ferr := w.flushMetrics(); ferr != nil {
		logging.New("cli").Warn("metrics textfile not written", "error", ferr)
	}
	return err
}
