// Package regression drives a full regression execution: rotate the previous
// artifacts away, load scenarios, ask the answer service every question once
// per run, score the answers and persist one artifact.
package regression

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"regeval/internal/answer"
	"regeval/internal/artifact"
	"regeval/internal/listfield"
	"regeval/internal/logging"
	"regeval/internal/scenario"
	"regeval/internal/similarity"
)

// Runner executes regressions against one Caller.
type Runner struct {
	caller answer.Caller
	cfg    Config
	logger *slog.Logger
	sinks  []Sink
	now    func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithSinks adds sinks that receive the Result after the artifact is written.
func WithSinks(sinks ...Sink) Option {
	return func(r *Runner) { r.sinks = append(r.sinks, sinks...) }
}

// WithClock replaces time.Now, which names the artifact.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New validates cfg and returns a Runner.
func New(caller answer.Caller, cfg Config, opts ...Option) (*Runner, error) {
	if caller == nil {
		return nil, fmt.Errorf("regression: caller is required")
	}
	if cfg.OnCallError == "" {
		cfg.OnCallError = RecordFailure
	}
	if cfg.OnMalformed == "" {
		cfg.OnMalformed = scenario.Skip
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{
		caller: caller,
		cfg:    cfg,
		logger: logging.New("regression"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run performs one execution. It returns either a Result whose artifact has
// been persisted, or an error and no artifact. Rotation completes before
// scenarios are loaded, and no artifact is written until every run is done.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		ExecutionID: uuid.NewString(),
		Runs:        r.cfg.Runs,
		StartedAt:   r.now(),
	}
	log := r.logger.With("execution", res.ExecutionID)

	// Init
	if err := artifact.EnsureDir(r.cfg.OutputDir); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	if err := artifact.EnsureDir(r.cfg.HistoricDir); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	// Archive-Rotate
	rotated, err := artifact.Rotate(r.cfg.OutputDir, r.cfg.HistoricDir)
	if err != nil {
		return nil, fmt.Errorf("rotate: %w", err)
	}
	res.Rotated = rotated
	if len(rotated) > 0 {
		log.Info("rotated previous artifacts", "count", len(rotated), "historic_dir", r.cfg.HistoricDir)
	}

	// Load-Scenarios
	loaded, err := scenario.LoadFile(r.cfg.Input, r.cfg.OnMalformed)
	if err != nil {
		return nil, fmt.Errorf("load scenarios: %w", err)
	}
	res.Scenarios = len(loaded.Scenarios)
	res.Errors = append(res.Errors, loaded.Skipped...)
	log.Info("loaded scenarios", "path", r.cfg.Input, "scenarios", res.Scenarios, "skipped", len(loaded.Skipped))

	// Execute + Aggregate
	res.Records = make([]artifact.Record, 0, res.Scenarios*r.cfg.Runs)
	for run := 1; run <= r.cfg.Runs; run++ {
		log.Info("starting run", "run", run, "total", r.cfg.Runs)
		records, itemErrs, err := r.executeRun(ctx, run, loaded.Scenarios)
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", run, err)
		}
		res.Records = append(res.Records, records...)
		res.Errors = append(res.Errors, itemErrs...)
	}

	// Persist
	path, err := artifact.Write(r.cfg.OutputDir, res.Records, r.now(), r.cfg.HistoricDir)
	if err != nil {
		return nil, fmt.Errorf("persist: %w", err)
	}
	res.Path = path
	res.FinishedAt = r.now()
	log.Info("persisted artifact", "path", path, "records", len(res.Records), "passed", res.Passed(), "errors", len(res.Errors))

	for _, s := range r.sinks {
		if err := s.Save(ctx, res); err != nil {
			log.Warn("sink failed", "error", err)
			res.Errors = append(res.Errors, fmt.Errorf("sink: %w", err))
		}
	}
	return res, nil
}

// outcome is the result of asking one scenario once.
type outcome struct {
	record artifact.Record
	err    error
}

// executeRun asks every scenario once. Records keep scenario order whether
// or not the run fans out. The returned error is fatal to the execution.
func (r *Runner) executeRun(ctx context.Context, run int, scenarios []scenario.Scenario) ([]artifact.Record, []error, error) {
	outcomes := make([]outcome, len(scenarios))

	if r.cfg.Parallel <= 1 {
		for i := range scenarios {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			outcomes[i] = r.ask(ctx, run, &scenarios[i])
			if outcomes[i].err != nil && r.cfg.OnCallError == AbortOnFailure {
				return nil, nil, outcomes[i].err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.cfg.Parallel)
		for i := range scenarios {
			g.Go(func() error {
				outcomes[i] = r.ask(gctx, run, &scenarios[i])
				if outcomes[i].err != nil && r.cfg.OnCallError == AbortOnFailure {
					return outcomes[i].err
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	records := make([]artifact.Record, 0, len(outcomes))
	var errs []error
	for _, o := range outcomes {
		if o.err != nil {
			errs = append(errs, o.err)
			if r.cfg.OnCallError == SkipFailure {
				continue
			}
		}
		records = append(records, o.record)
	}
	return records, errs, nil
}

// ask calls the service for one scenario and scores the answer. On failure
// the record is the sentinel and err is an *ItemError.
func (r *Runner) ask(ctx context.Context, run int, sc *scenario.Scenario) outcome {
	rec := artifact.Record{
		Run:                run,
		Scenario:           sc.ID,
		Question:           sc.Question,
		Mode:               sc.Mode,
		ExpectedAnswer:     sc.ExpectedAnswer,
		InterpJira:         []string{},
		ExpectedInterpJira: slices.Clone(listfield.Normalize(sc.ExpectedInterpJira)),
		ImplJira:           []string{},
		ExpectedImplJira:   slices.Clone(listfield.Normalize(sc.ExpectedImplJira)),
		ImplPR:             []string{},
		ExpectedImplPR:     slices.Clone(listfield.Normalize(sc.ExpectedImplPR)),
	}

	resp, err := r.caller.Call(ctx, sc.Question, sc.Mode)
	if err == nil {
		err = checkResponse(resp)
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.logger.Warn("answer call failed", "run", run, "scenario", sc.ID, "error", err)
		}
		return outcome{record: rec, err: &ItemError{Run: run, Scenario: sc.ID, Err: err}}
	}

	rec.Answer = resp.Answer
	rec.InterpJira = slices.Clone(listfield.Normalize(resp.InterpJira))
	rec.ImplJira = slices.Clone(listfield.Normalize(resp.ImplJira))
	rec.ImplPR = slices.Clone(listfield.Normalize(resp.ImplPR))
	rec.Score, rec.Pass = similarity.Score(resp.Answer, sc.ExpectedAnswer)
	r.logger.Debug("scored answer", "run", run, "scenario", sc.ID, "score", rec.Score, "pass", rec.Pass)
	return outcome{record: rec}
}

// checkResponse rejects responses whose lists cannot be persisted losslessly.
func checkResponse(resp *answer.Response) error {
	if resp == nil {
		return fmt.Errorf("%w: empty response", answer.ErrServiceCall)
	}
	fields := []struct {
		name  string
		items []string
	}{
		{"interp_jira", resp.InterpJira},
		{"impl_jira", resp.ImplJira},
		{"impl_pr", resp.ImplPR},
	}
	for _, f := range fields {
		if err := listfield.Validate(listfield.Normalize(f.items)); err != nil {
			return fmt.Errorf("response %s: %w", f.name, err)
		}
	}
	return nil
}
