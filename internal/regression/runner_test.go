package regression

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"regeval/internal/answer"
	"regeval/internal/artifact"
	"regeval/internal/logging"
	"regeval/internal/scenario"
)

type callerFunc func(ctx context.Context, question, mode string) (*answer.Response, error)

func (f callerFunc) Call(ctx context.Context, question, mode string) (*answer.Response, error) {
	return f(ctx, question, mode)
}

func echoCaller() callerFunc {
	return func(_ context.Context, question, _ string) (*answer.Response, error) {
		return &answer.Response{Answer: question}, nil
	}
}

var fixedNow = time.Date(2026, time.October, 15, 9, 30, 0, 0, time.Local)

type env struct {
	input, out, hist string
}

func newEnv(t *testing.T, csv string) env {
	t.Helper()
	root := t.TempDir()
	e := env{
		input: filepath.Join(root, "input.csv"),
		out:   filepath.Join(root, "output"),
		hist:  filepath.Join(root, "historic"),
	}
	if err := os.WriteFile(e.input, []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}
	return e
}

func (e env) config(runs int) Config {
	return Config{Input: e.input, OutputDir: e.out, HistoricDir: e.hist, Runs: runs}
}

func newRunner(t *testing.T, caller answer.Caller, cfg Config, opts ...Option) *Runner {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow }), WithLogger(logging.Discard())}, opts...)
	r, err := New(caller, cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

const threeScenarios = `scenario,question,mode,expected_answer
A,alpha,direct,alpha
B,beta,direct,beta
C,gamma,direct,gamma
`

type key struct {
	Run      int
	Scenario string
}

func keys(records []artifact.Record) []key {
	out := make([]key, len(records))
	for i, r := range records {
		out[i] = key{r.Run, r.Scenario}
	}
	return out
}

func TestRun_RecordsAreRunMajorInScenarioOrder(t *testing.T) {
	for _, parallel := range []int{1, 3} {
		t.Run(fmt.Sprintf("parallel=%d", parallel), func(t *testing.T) {
			e := newEnv(t, threeScenarios)
			cfg := e.config(2)
			cfg.Parallel = parallel
			res, err := newRunner(t, echoCaller(), cfg).Run(context.Background())
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			want := []key{{1, "A"}, {1, "B"}, {1, "C"}, {2, "A"}, {2, "B"}, {2, "C"}}
			if diff := cmp.Diff(want, keys(res.Records)); diff != "" {
				t.Errorf("record order (-want +got):\n%s", diff)
			}
			if res.Passed() != 6 || len(res.Errors) != 0 {
				t.Errorf("passed=%d errors=%v", res.Passed(), res.Errors)
			}

			onDisk, err := artifact.Read(res.Path)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if diff := cmp.Diff(res.Records, onDisk); diff != "" {
				t.Errorf("artifact differs from in-memory table (-mem +disk):\n%s", diff)
			}
			if filepath.Base(res.Path) != "result_15102026_0930.csv" {
				t.Errorf("artifact name = %s", filepath.Base(res.Path))
			}
			if res.ExecutionID == "" {
				t.Error("missing execution id")
			}
		})
	}
}

func TestRun_RotatesPreviousArtifactsFirst(t *testing.T) {
	e := newEnv(t, threeScenarios)
	if err := os.MkdirAll(e.out, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"result_A.csv", "result_B.csv", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(e.out, name), []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	var sawOldArtifact bool
	caller := callerFunc(func(ctx context.Context, q, m string) (*answer.Response, error) {
		if _, err := os.Stat(filepath.Join(e.out, "result_A.csv")); err == nil {
			sawOldArtifact = true
		}
		return &answer.Response{Answer: q}, nil
	})
	res, err := newRunner(t, caller, e.config(1)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sawOldArtifact {
		t.Error("old artifact still in output dir while calls were running")
	}
	if len(res.Rotated) != 2 {
		t.Errorf("Rotated = %v", res.Rotated)
	}

	outArtifacts, _ := artifact.List(e.out)
	if diff := cmp.Diff([]string{res.Path}, outArtifacts); diff != "" {
		t.Errorf("output artifacts (-want +got):\n%s", diff)
	}
	histArtifacts, _ := artifact.List(e.hist)
	want := []string{filepath.Join(e.hist, "result_A.csv"), filepath.Join(e.hist, "result_B.csv")}
	if diff := cmp.Diff(want, histArtifacts); diff != "" {
		t.Errorf("historic artifacts (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(filepath.Join(e.out, "notes.txt")); err != nil {
		t.Errorf("notes.txt should stay in output: %v", err)
	}
}

func TestRun_RotationFailureAbortsBeforeLoading(t *testing.T) {
	e := newEnv(t, threeScenarios)
	for _, dir := range []string{e.out, e.hist} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "result_A.csv"), []byte(dir), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	called := false
	caller := callerFunc(func(context.Context, string, string) (*answer.Response, error) {
		called = true
		return &answer.Response{Answer: "x"}, nil
	})
	res, err := newRunner(t, caller, e.config(1)).Run(context.Background())
	if !errors.Is(err, artifact.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if res != nil || called {
		t.Errorf("execution continued after rotation failure: res=%v called=%t", res, called)
	}
	outArtifacts, _ := artifact.List(e.out)
	if len(outArtifacts) != 1 {
		t.Errorf("output dir should hold only the unrotated file, got %v", outArtifacts)
	}
}

func TestRun_NoHistoricDirKeepsArtifacts(t *testing.T) {
	e := newEnv(t, threeScenarios)
	cfg := e.config(1)
	cfg.HistoricDir = ""
	r := newRunner(t, echoCaller(), cfg)
	first, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	second, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if first.Path == second.Path {
		t.Fatalf("second execution overwrote %s", first.Path)
	}
	if filepath.Base(second.Path) != "result_15102026_0930_2.csv" {
		t.Errorf("second artifact = %s", filepath.Base(second.Path))
	}
}

func failingOn(question string) callerFunc {
	return func(_ context.Context, q, _ string) (*answer.Response, error) {
		if q == question {
			return nil, fmt.Errorf("answer: do request: %w", answer.ErrServiceCall)
		}
		return &answer.Response{Answer: q, ImplPR: []string{"PR-1"}}, nil
	}
}

func TestRun_CallErrorPolicies(t *testing.T) {
	t.Run("record", func(t *testing.T) {
		e := newEnv(t, threeScenarios)
		res, err := newRunner(t, failingOn("beta"), e.config(2)).Run(context.Background())
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if len(res.Records) != 6 {
			t.Fatalf("records = %d, want 6", len(res.Records))
		}
		sentinel := res.Records[1]
		if sentinel.Scenario != "B" || sentinel.Answer != "" || sentinel.Score != 0 || sentinel.Pass {
			t.Errorf("unexpected sentinel: %+v", sentinel)
		}
		if len(sentinel.ImplPR) != 0 {
			t.Errorf("sentinel lists should be empty: %v", sentinel.ImplPR)
		}
		if len(res.Errors) != 2 {
			t.Fatalf("errors = %v", res.Errors)
		}
		var itemErr *ItemError
		if !errors.As(res.Errors[0], &itemErr) || itemErr.Run != 1 || itemErr.Scenario != "B" {
			t.Errorf("first error = %v", res.Errors[0])
		}
		if !errors.Is(res.Errors[1], answer.ErrServiceCall) {
			t.Errorf("item error should wrap ErrServiceCall: %v", res.Errors[1])
		}
	})

	t.Run("skip", func(t *testing.T) {
		e := newEnv(t, threeScenarios)
		cfg := e.config(2)
		cfg.OnCallError = SkipFailure
		res, err := newRunner(t, failingOn("beta"), cfg).Run(context.Background())
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		want := []key{{1, "A"}, {1, "C"}, {2, "A"}, {2, "C"}}
		if diff := cmp.Diff(want, keys(res.Records)); diff != "" {
			t.Errorf("records (-want +got):\n%s", diff)
		}
		if len(res.Errors) != 2 {
			t.Errorf("errors = %v", res.Errors)
		}
	})

	t.Run("abort", func(t *testing.T) {
		e := newEnv(t, threeScenarios)
		cfg := e.config(2)
		cfg.OnCallError = AbortOnFailure
		var calls int
		var mu sync.Mutex
		inner := failingOn("beta")
		caller := callerFunc(func(ctx context.Context, q, m string) (*answer.Response, error) {
			mu.Lock()
			calls++
			mu.Unlock()
			return inner(ctx, q, m)
		})
		res, err := newRunner(t, caller, cfg).Run(context.Background())
		var itemErr *ItemError
		if !errors.As(err, &itemErr) || itemErr.Scenario != "B" {
			t.Fatalf("expected ItemError for B, got %v", err)
		}
		if res != nil {
			t.Error("expected no result on abort")
		}
		if calls != 2 {
			t.Errorf("calls = %d, want 2 (stopped at B)", calls)
		}
		if paths, _ := artifact.List(e.out); len(paths) != 0 {
			t.Errorf("abort left an artifact: %v", paths)
		}
	})
}

func TestRun_ResponseListWithDelimiterIsItemError(t *testing.T) {
	e := newEnv(t, "question,expected_answer\nq,a\n")
	caller := callerFunc(func(context.Context, string, string) (*answer.Response, error) {
		return &answer.Response{Answer: "a", InterpJira: []string{"INT-1;INT-2"}}, nil
	})
	res, err := newRunner(t, caller, e.config(1)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Errors) != 1 || res.Records[0].Pass {
		t.Errorf("expected one item error and a failed sentinel, got errors=%v record=%+v", res.Errors, res.Records[0])
	}
}

func TestRun_ResponseListWithEmptyElementIsScored(t *testing.T) {
	e := newEnv(t, "question,expected_answer,impl_pr\nq,a,X;\n")
	caller := callerFunc(func(context.Context, string, string) (*answer.Response, error) {
		return &answer.Response{Answer: "a", ImplPR: []string{"X", ""}, InterpJira: []string{""}}, nil
	})
	res, err := newRunner(t, caller, e.config(1)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Errors) != 0 || len(res.Records) != 1 {
		t.Fatalf("errors=%v records=%d", res.Errors, len(res.Records))
	}
	rec := res.Records[0]
	if rec.Score != 1 || !rec.Pass {
		t.Errorf("record = %+v, want a passing score", rec)
	}
	if diff := cmp.Diff([]string{"X", ""}, rec.ImplPR); diff != "" {
		t.Errorf("impl_pr (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"X", ""}, rec.ExpectedImplPR); diff != "" {
		t.Errorf("expected_impl_pr (-want +got):\n%s", diff)
	}
	if len(rec.InterpJira) != 0 {
		t.Errorf("interp_jira = %#v, want empty", rec.InterpJira)
	}

	onDisk, err := artifact.Read(res.Path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := cmp.Diff(res.Records, onDisk); diff != "" {
		t.Errorf("artifact mismatch (-memory +disk):\n%s", diff)
	}
}

func TestRun_MalformedScenariosReportedAlongsideArtifact(t *testing.T) {
	e := newEnv(t, "scenario,question,expected_answer\nA,alpha,alpha\nB,,beta\n")
	res, err := newRunner(t, echoCaller(), e.config(1)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Scenarios != 1 || len(res.Records) != 1 {
		t.Errorf("scenarios=%d records=%d", res.Scenarios, len(res.Records))
	}
	if len(res.Errors) != 1 || !errors.Is(res.Errors[0], scenario.ErrMalformed) {
		t.Errorf("errors = %v", res.Errors)
	}

	cfg := e.config(1)
	cfg.OnMalformed = scenario.Abort
	if _, err := newRunner(t, echoCaller(), cfg).Run(context.Background()); !errors.Is(err, scenario.ErrMalformed) {
		t.Errorf("abort policy: expected ErrMalformed, got %v", err)
	}
}

type sinkFunc func(ctx context.Context, res *Result) error

func (f sinkFunc) Save(ctx context.Context, res *Result) error { return f(ctx, res) }

func TestRun_SinksSeePersistedResult(t *testing.T) {
	e := newEnv(t, threeScenarios)
	var seen string
	ok := sinkFunc(func(_ context.Context, res *Result) error {
		if _, err := os.Stat(res.Path); err != nil {
			return err
		}
		seen = res.Path
		return nil
	})
	broken := sinkFunc(func(context.Context, *Result) error { return errors.New("disk full") })

	res, err := newRunner(t, echoCaller(), e.config(1), WithSinks(ok, broken)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if seen != res.Path {
		t.Errorf("sink saw %q, want %q", seen, res.Path)
	}
	if len(res.Errors) != 1 {
		t.Errorf("sink failure not reported: %v", res.Errors)
	}
	if _, err := os.Stat(res.Path); err != nil {
		t.Errorf("artifact removed after sink failure: %v", err)
	}
}

func TestRun_CanceledContextWritesNothing(t *testing.T) {
	e := newEnv(t, threeScenarios)
	ctx, cancel := context.WithCancel(context.Background())
	caller := callerFunc(func(ctx context.Context, q, _ string) (*answer.Response, error) {
		cancel()
		return nil, ctx.Err()
	})
	if _, err := newRunner(t, caller, e.config(2)).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if paths, _ := artifact.List(e.out); len(paths) != 0 {
		t.Errorf("canceled execution left an artifact: %v", paths)
	}
}

func TestNew_Validation(t *testing.T) {
	valid := Config{Input: "in.csv", OutputDir: "out", Runs: 1}
	if _, err := New(nil, valid); err == nil {
		t.Error("expected error for nil caller")
	}
	for name, mutate := range map[string]func(*Config){
		"no input":      func(c *Config) { c.Input = "" },
		"no output":     func(c *Config) { c.OutputDir = "" },
		"zero runs":     func(c *Config) { c.Runs = 0 },
		"bad policy":    func(c *Config) { c.OnCallError = "retry" },
		"bad malformed": func(c *Config) { c.OnMalformed = "ignore" },
	} {
		cfg := valid
		mutate(&cfg)
		if _, err := New(echoCaller(), cfg); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if _, err := New(echoCaller(), valid); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestParseFailurePolicy(t *testing.T) {
	for in, want := range map[string]FailurePolicy{"": RecordFailure, "record": RecordFailure, "skip": SkipFailure, "abort": AbortOnFailure} {
		if got, err := ParseFailurePolicy(in); err != nil || got != want {
			t.Errorf("ParseFailurePolicy(%q) = %q, %v", in, got, err)
		}
	}
}
