// Package config loads the regeval configuration file. Every field has a
// default, so a missing file is not an error for callers that use Default.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"regeval/internal/regression"
	"regeval/internal/scenario"
)

// Service configures the answer-service client.
type Service struct {
	BaseURL         string        `yaml:"base_url"`
	Path            string        `yaml:"path"`
	CallsPerMinute  int           `yaml:"calls_per_minute"` // concurrency cap
	PacingPerMinute int           `yaml:"pacing_per_minute"`
	Timeout         time.Duration `yaml:"timeout"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the whole configuration file.
type Config struct {
	Service     Service `yaml:"service"`
	Input       string  `yaml:"input"`
	OutputDir   string  `yaml:"output_dir"`
	HistoricDir string  `yaml:"historic_dir"`
	Runs        int     `yaml:"runs"`
	OnCallError string  `yaml:"on_call_error"`
	OnMalformed string  `yaml:"on_malformed"`
	Parallel    int     `yaml:"parallel"`
	DB          string  `yaml:"db"`
	MetricsFile string  `yaml:"metrics_file"`
	Log         Log     `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	rc := regression.DefaultConfig()
	return Config{
		Service: Service{
			BaseURL:        "http://localhost:8000",
			Path:           "/answer",
			CallsPerMinute: 20,
			Timeout:        30 * time.Second,
		},
		Input:       rc.Input,
		OutputDir:   rc.OutputDir,
		HistoricDir: rc.HistoricDir,
		Runs:        rc.Runs,
		OnCallError: string(rc.OnCallError),
		OnMalformed: string(rc.OnMalformed),
		Parallel:    rc.Parallel,
		Log:         Log{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults. Environment references ($VAR, ${VAR})
// are expanded before parsing.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadEnv sets variables from dotenv files for the expansion in Load.
// Variables already present in the environment win.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// Validate checks values the client and runner would reject later.
func (c Config) Validate() error {
	if c.Service.BaseURL == "" {
		return fmt.Errorf("service.base_url is required")
	}
	if c.Service.CallsPerMinute <= 0 {
		return fmt.Errorf("service.calls_per_minute must be > 0, got %d", c.Service.CallsPerMinute)
	}
	if c.Service.PacingPerMinute < 0 {
		return fmt.Errorf("service.pacing_per_minute must be >= 0, got %d", c.Service.PacingPerMinute)
	}
	if c.Service.Timeout < 0 {
		return fmt.Errorf("service.timeout must be >= 0, got %s", c.Service.Timeout)
	}
	if c.Parallel < 0 {
		return fmt.Errorf("parallel must be >= 0, got %d", c.Parallel)
	}
	_, err := c.Regression()
	return err
}

// Regression converts the file layout into a runner configuration.
func (c Config) Regression() (regression.Config, error) {
	onCall, err := regression.ParseFailurePolicy(c.OnCallError)
	if err != nil {
		return regression.Config{}, err
	}
	onMalformed, err := scenario.ParsePolicy(c.OnMalformed)
	if err != nil {
		return regression.Config{}, err
	}
	rc := regression.Config{
		Input:       c.Input,
		OutputDir:   c.OutputDir,
		HistoricDir: c.HistoricDir,
		Runs:        c.Runs,
		OnCallError: onCall,
		OnMalformed: onMalformed,
		Parallel:    c.Parallel,
	}
	return rc, rc.Validate()
}
