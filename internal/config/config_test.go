package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"regeval/internal/regression"
	"regeval/internal/scenario"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "regeval.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	rc, err := cfg.Regression()
	if err != nil {
		t.Fatalf("Regression: %v", err)
	}
	want := regression.Config{
		Input:       "data/input/input.csv",
		OutputDir:   "data/output",
		HistoricDir: "data/historic",
		Runs:        3,
		OnCallError: regression.RecordFailure,
		OnMalformed: scenario.Skip,
		Parallel:    1,
	}
	if diff := cmp.Diff(want, rc); diff != "" {
		t.Errorf("regression config (-want +got):\n%s", diff)
	}
	if cfg.Service.BaseURL != "http://localhost:8000" || cfg.Service.CallsPerMinute != 20 {
		t.Errorf("service defaults = %+v", cfg.Service)
	}
}

func TestLoad_OverlaysDefaultsAndExpandsEnv(t *testing.T) {
	t.Setenv("REGEVAL_TEST_HOST", "qa.internal:9000")
	path := writeConfig(t, `
service:
  base_url: http://${REGEVAL_TEST_HOST}
  calls_per_minute: 5
  timeout: 45s
runs: 1
on_call_error: skip
historic_dir: ""
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Service.BaseURL != "http://qa.internal:9000" {
		t.Errorf("base_url = %q", cfg.Service.BaseURL)
	}
	if cfg.Service.Timeout != 45*time.Second || cfg.Service.CallsPerMinute != 5 {
		t.Errorf("service = %+v", cfg.Service)
	}
	if cfg.Service.Path != "/answer" || cfg.OutputDir != "data/output" {
		t.Errorf("defaults not kept: path=%q output=%q", cfg.Service.Path, cfg.OutputDir)
	}
	if cfg.HistoricDir != "" || cfg.Runs != 1 || cfg.OnCallError != "skip" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"zero cap":      "service:\n  calls_per_minute: 0\n",
		"bad policy":    "on_call_error: retry\n",
		"zero runs":     "runs: 0\n",
		"negative pace": "service:\n  pacing_per_minute: -1\n",
		"not yaml":      "service: [unterminated\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "none.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestLoadEnv_FeedsExpansion(t *testing.T) {
	t.Setenv("REGEVAL_TEST_BASE_URL", "")
	os.Unsetenv("REGEVAL_TEST_BASE_URL")
	t.Setenv("REGEVAL_TEST_RUNS_SET", "kept")

	envPath := filepath.Join(t.TempDir(), ".env")
	env := "REGEVAL_TEST_BASE_URL=http://answers.internal:9000\nREGEVAL_TEST_RUNS_SET=overridden\n"
	if err := os.WriteFile(envPath, []byte(env), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := LoadEnv(envPath); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if got := os.Getenv("REGEVAL_TEST_RUNS_SET"); got != "kept" {
		t.Errorf("existing variable overridden: %q", got)
	}

	cfg, err := Load(writeConfig(t, "service:\n  base_url: ${REGEVAL_TEST_BASE_URL}\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Service.BaseURL != "http://answers.internal:9000" {
		t.Errorf("base_url = %q", cfg.Service.BaseURL)
	}
}

func TestLoadEnv_MissingFile(t *testing.T) {
	if err := LoadEnv(filepath.Join(t.TempDir(), "absent.env")); err == nil {
		t.Error("expected error for missing env file")
	}
	if err := LoadEnv(); err != nil {
		t.Errorf("LoadEnv() = %v", err)
	}
}
