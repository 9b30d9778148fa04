package regression

import (
	"context"
	"fmt"
	"time"

	"regeval/internal/artifact"
	"regeval/internal/scenario"
)

// FailurePolicy decides what a failed answer-service call does to the execution.
type FailurePolicy string

const (
	// RecordFailure appends a sentinel record (empty answer, score 0, fail).
	RecordFailure FailurePolicy = "record"
	// SkipFailure appends no record for the failed item.
	SkipFailure FailurePolicy = "skip"
	// AbortOnFailure stops the execution; no artifact is written.
	AbortOnFailure FailurePolicy = "abort"
)

// ParseFailurePolicy validates a policy name. Empty means RecordFailure.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", RecordFailure:
		return RecordFailure, nil
	case SkipFailure:
		return SkipFailure, nil
	case AbortOnFailure:
		return AbortOnFailure, nil
	default:
		return "", fmt.Errorf("unknown call-error policy %q (available: record, skip, abort)", s)
	}
}

// Config holds the inputs of one regression execution.
type Config struct {
	Input       string // scenario file (.csv, .yaml)
	OutputDir   string
	HistoricDir string // empty disables rotation
	Runs        int
	OnCallError FailurePolicy
	OnMalformed scenario.Policy
	Parallel    int // scenarios in flight per run; <= 1 is sequential
}

// DefaultConfig returns the defaults of the command-line tool.
func DefaultConfig() Config {
	return Config{
		Input:       "data/input/input.csv",
		OutputDir:   "data/output",
		HistoricDir: "data/historic",
		Runs:        3,
		OnCallError: RecordFailure,
		OnMalformed: scenario.Skip,
		Parallel:    1,
	}
}

// Validate checks required fields and policy names.
func (c Config) Validate() error {
	if c.Input == "" {
		return fmt.Errorf("regression: input is required")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("regression: output directory is required")
	}
	if c.Runs < 1 {
		return fmt.Errorf("regression: runs must be >= 1, got %d", c.Runs)
	}
	if _, err := ParseFailurePolicy(string(c.OnCallError)); err != nil {
		return fmt.Errorf("regression: %w", err)
	}
	if _, err := scenario.ParsePolicy(string(c.OnMalformed)); err != nil {
		return fmt.Errorf("regression: %w", err)
	}
	return nil
}

// Result is a completed execution: the persisted artifact and its records,
// plus every per-item error that did not stop it.
type Result struct {
	ExecutionID string
	Path        string
	Records     []artifact.Record
	Errors      []error
	Rotated     []string // historic paths of artifacts moved before this execution
	Runs        int
	Scenarios   int
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Passed counts passing records.
func (r *Result) Passed() int {
	n := 0
	for i := range r.Records {
		if r.Records[i].Pass {
			n++
		}
	}
	return n
}

// ItemError is a failure confined to one scenario in one run.
type ItemError struct {
	Run      int
	Scenario string
	Err      error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("run %d, scenario %s: %v", e.Run, e.Scenario, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// Sink receives every persisted Result. Sink errors are reported in
// Result.Errors and never remove the artifact.
type Sink interface {
	Save(ctx context.Context, res *Result) error
}
