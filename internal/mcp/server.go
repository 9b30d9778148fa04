package mcp

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"regeval/internal/answer"
	"regeval/internal/history"
	"regeval/internal/logging"
	"regeval/internal/regression"
	"regeval/internal/similarity"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// ErrBusy is returned by run_regression while another execution is running.
var ErrBusy = errors.New("a regression run is already in progress")

// Server wraps the MCP SDK server and runs regression executions on demand.
type Server struct {
	MCPServer *sdkmcp.Server

	caller answer.Caller
	cfg    regression.Config
	sinks  []regression.Sink

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewServer creates an MCP server whose run_regression tool drives caller
// with cfg. Sinks receive every persisted result.
func NewServer(caller answer.Caller, cfg regression.Config, version string, sinks ...regression.Sink) *Server {
	if version == "" {
		version = "dev"
	}
	s := &Server{caller: caller, cfg: cfg, sinks: sinks}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "regeval", Version: version},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "run_regression",
		Description: "Run the regression suite: rotate previous results, ask every scenario N times, score the answers and persist a result CSV.",
	}, s.handleRunRegression)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "score_answer",
		Description: "Score an answer against an expected answer. Returns the similarity ratio in [0,1] and whether it passes (>= 0.9).",
	}, s.handleScoreAnswer)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "history_summary",
		Description: "Summarize historic result files: mean score and pass ratio per run, quadrant per scenario.",
	}, s.handleHistorySummary)
}

// --- Tool input/output types ---

type runRegressionInput struct {
	Runs     int    `json:"runs,omitempty" jsonschema:"number of runs over the scenario set (default from config)"`
	Input    string `json:"input,omitempty" jsonschema:"scenario file path, .csv or .yaml (default from config)"`
	Parallel int    `json:"parallel,omitempty" jsonschema:"scenarios in flight per run (default from config)"`
}

type runRegressionOutput struct {
	ExecutionID string                  `json:"execution_id"`
	Artifact    string                  `json:"artifact"`
	Records     int                     `json:"records"`
	Passed      int                     `json:"passed"`
	Rotated     int                     `json:"rotated"`
	Scenarios   []history.ScenarioStats `json:"scenarios"`
	Errors      []string                `json:"errors,omitempty"`
}

type scoreAnswerInput struct {
	Actual   string `json:"actual" jsonschema:"answer returned by the service"`
	Expected string `json:"expected" jsonschema:"expected answer"`
}

type scoreAnswerOutput struct {
	Score float64 `json:"score"`
	Pass  bool    `json:"pass"`
}

type historySummaryInput struct {
	Dir string `json:"dir,omitempty" jsonschema:"directory of result files (default: historic directory)"`
}

// --- Tool handlers ---

func (s *Server) handleRunRegression(ctx context.Context, _ *sdkmcp.CallToolRequest, input runRegressionInput) (*sdkmcp.CallToolResult, runRegressionOutput, error) {
	logger := logging.New("mcp")
	cfg := s.cfg
	if input.Runs > 0 {
		cfg.Runs = input.Runs
	}
	if input.Input != "" {
		cfg.Input = input.Input
	}
	if input.Parallel > 0 {
		cfg.Parallel = input.Parallel
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return nil, runRegressionOutput{}, ErrBusy
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		cancel()
	}()

	runner, err := regression.New(s.caller, cfg, regression.WithLogger(logger), regression.WithSinks(s.sinks...))
	if err != nil {
		return nil, runRegressionOutput{}, err
	}
	res, err := runner.Run(runCtx)
	if err != nil {
		return nil, runRegressionOutput{}, fmt.Errorf("run_regression: %w", err)
	}

	out := runRegressionOutput{
		ExecutionID: res.ExecutionID,
		Artifact:    res.Path,
		Records:     len(res.Records),
		Passed:      res.Passed(),
		Rotated:     len(res.Rotated),
		Scenarios:   history.Summarize(res.Records),
	}
	for _, e := range res.Errors {
		out.Errors = append(out.Errors, e.Error())
	}
	logger.Info("run_regression finished", "execution_id", res.ExecutionID, "artifact", filepath.Base(res.Path),
		"records", out.Records, "passed", out.Passed, "errors", len(out.Errors))
	return nil, out, nil
}

func (s *Server) handleScoreAnswer(_ context.Context, _ *sdkmcp.CallToolRequest, input scoreAnswerInput) (*sdkmcp.CallToolResult, scoreAnswerOutput, error) {
	score, pass := similarity.Score(input.Actual, input.Expected)
	return nil, scoreAnswerOutput{Score: score, Pass: pass}, nil
}

func (s *Server) handleHistorySummary(_ context.Context, _ *sdkmcp.CallToolRequest, input historySummaryInput) (*sdkmcp.CallToolResult, history.Summary, error) {
	dir := input.Dir
	if dir == "" {
		dir = s.cfg.HistoricDir
	}
	if dir == "" {
		return nil, history.Summary{}, fmt.Errorf("history_summary: no directory given and no historic directory configured")
	}
	corpus, err := history.LoadDir(dir)
	if err != nil {
		return nil, history.Summary{}, fmt.Errorf("history_summary: %w", err)
	}
	return nil, corpus.Summary(), nil
}

// Running reports whether a run_regression call is in progress.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Shutdown cancels any in-flight execution. The canceled run writes no artifact.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Serve runs the server over stdio until ctx is canceled or the client
// disconnects.
func (s *Server) Serve(ctx context.Context) error {
	defer s.Shutdown()
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}
