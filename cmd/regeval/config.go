package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"regeval/internal/answer"
	"regeval/internal/config"
	"regeval/internal/logging"
	"regeval/internal/metrics"
	"regeval/internal/regression"
	"regeval/internal/store"
)

// configFlags override values of the configuration file. Only flags the user
// set are applied.
type configFlags struct {
	configPath     string
	envFile        string
	baseURL        string
	callsPerMinute int
	runs           int
	input          string
	outputDir      string
	historicDir    string
	onCallError    string
	parallel       int
	db             string
	metricsFile    string
	dryRun         bool
}

func addConfigFlags(cmd *cobra.Command, cf *configFlags) {
	def := config.Default()
	f := cmd.Flags()
	f.StringVar(&cf.configPath, "config", "", "Path to YAML config file (defaults are used when empty)")
	f.StringVar(&cf.envFile, "env-file", "", "Dotenv file loaded before the config file is expanded")
	f.StringVar(&cf.baseURL, "base-url", def.Service.BaseURL, "Answer service base URL")
	f.IntVar(&cf.callsPerMinute, "calls-per-minute", def.Service.CallsPerMinute, "Max concurrent answer service calls")
	f.IntVar(&cf.runs, "runs", def.Runs, "Number of runs over the scenario set")
	f.StringVar(&cf.input, "input", def.Input, "Scenario file (.csv, .yaml)")
	f.StringVar(&cf.outputDir, "output-dir", def.OutputDir, "Directory for the new result file")
	f.StringVar(&cf.historicDir, "historic-dir", def.HistoricDir, "Directory previous results are rotated into (empty disables rotation)")
	f.StringVar(&cf.onCallError, "on-call-error", def.OnCallError, "Failed call policy (record, skip, abort)")
	f.IntVar(&cf.parallel, "parallel", def.Parallel, "Scenarios in flight per run (1 = sequential)")
	f.StringVar(&cf.db, "db", "", "SQLite result index path (empty = disabled)")
	f.StringVar(&cf.metricsFile, "metrics-file", "", "Write Prometheus textfile metrics to path (empty = disabled)")
	f.BoolVar(&cf.dryRun, "dry-run", false, "Answer every question with a placeholder instead of calling the service")
}

// resolveConfig loads the config file, if any, and applies the flags that
// were set on the command line.
func resolveConfig(cmd *cobra.Command, cf *configFlags) (config.Config, error) {
	if cf.envFile != "" {
		if err := config.LoadEnv(cf.envFile); err != nil {
			return config.Config{}, err
		}
	}
	cfg := config.Default()
	if cf.configPath != "" {
		loaded, err := config.Load(cf.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	f := cmd.Flags()
	if f.Changed("base-url") {
		cfg.Service.BaseURL = cf.baseURL
	}
	if f.Changed("calls-per-minute") {
		cfg.Service.CallsPerMinute = cf.callsPerMinute
	}
	if f.Changed("runs") {
		cfg.Runs = cf.runs
	}
	if f.Changed("input") {
		cfg.Input = cf.input
	}
	if f.Changed("output-dir") {
		cfg.OutputDir = cf.outputDir
	}
	if f.Changed("historic-dir") {
		cfg.HistoricDir = cf.historicDir
	}
	if f.Changed("on-call-error") {
		cfg.OnCallError = cf.onCallError
	}
	if f.Changed("parallel") {
		cfg.Parallel = cf.parallel
	}
	if f.Changed("db") {
		cfg.DB = cf.db
	}
	if f.Changed("metrics-file") {
		cfg.MetricsFile = cf.metricsFile
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	// The file's log section applies unless the persistent flags were set.
	if cf.configPath != "" {
		if !cmd.Flag("log-level").Changed {
			rootFlags.logLevel = cfg.Log.Level
		}
		if !cmd.Flag("log-format").Changed {
			rootFlags.logFormat = cfg.Log.Format
		}
		if err := initLogging(cmd, nil); err != nil {
			return cfg, fmt.Errorf("config log section: %w", err)
		}
	}
	return cfg, nil
}

// wiring is everything a regression execution needs besides its config.
type wiring struct {
	caller  answer.Caller
	rec     *metrics.Recorder
	db      *store.SqlStore
	sinks   []regression.Sink
	regCfg  regression.Config
	metrics string
}

func (w *wiring) Close() {
	if w.db != nil {
		_ = w.db.Close()
	}
}

func buildWiring(cfg config.Config, dryRun bool) (*wiring, error) {
	regCfg, err := cfg.Regression()
	if err != nil {
		return nil, err
	}
	w := &wiring{regCfg: regCfg, rec: metrics.New(), metrics: cfg.MetricsFile}
	w.sinks = append(w.sinks, w.rec)

	if dryRun {
		logging.New("cli").Info("dry run: answering with placeholder")
		w.caller = answer.Placeholder()
	} else {
		opts := []answer.Option{
			answer.WithObserver(w.rec),
			answer.WithTimeout(cfg.Service.Timeout),
			answer.WithPacing(cfg.Service.PacingPerMinute),
		}
		if cfg.Service.Path != "" {
			opts = append(opts, answer.WithPath(cfg.Service.Path))
		}
		client, err := answer.New(cfg.Service.BaseURL, cfg.Service.CallsPerMinute, opts...)
		if err != nil {
			return nil, fmt.Errorf("create answer client: %w", err)
		}
		w.caller = client
	}

	if cfg.DB != "" {
		db, err := store.Open(cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("open result index: %w", err)
		}
		w.db = db
		w.sinks = append(w.sinks, db)
	}
	return w, nil
}

// flushMetrics writes the textfile when one is configured.
func (w *wiring) flushMetrics() error {
	if w.metrics == "" {
		return nil
	}
	return w.rec.WriteTextfile(w.metrics)
}
