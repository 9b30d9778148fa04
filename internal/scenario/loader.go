package scenario

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"regeval/internal/listfield"
	"regeval/internal/logging"
)

// Result is the outcome of a load: the scenarios in source order plus the
// malformed rows that were skipped.
type Result struct {
	Scenarios []Scenario
	Skipped   []error
}

// LoadFile reads a scenario file. Format is chosen by extension
// (.yaml/.yml → YAML, anything else → CSV).
func LoadFile(path string, policy Policy) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenarios: %w", err)
	}
	res, err := Load(data, filepath.Ext(path), policy)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, skipped := range res.Skipped {
		logging.New("scenario").Warn("skipping malformed scenario", "path", path, "error", skipped)
	}
	return res, nil
}

// Load parses scenarios from bytes. ext is the file extension used as a format hint.
func Load(data []byte, ext string, policy Policy) (*Result, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return loadYAML(data, policy)
	default:
		return loadCSV(bytes.NewReader(data), policy)
	}
}

// Columns of the scenario CSV. Only question and expected_answer must carry
// values; the list columns may be absent entirely.
const (
	colScenario       = "scenario"
	colQuestion       = "question"
	colMode           = "mode"
	colExpectedAnswer = "expected_answer"
	colInterpJira     = "interp_jira"
	colImplJira       = "impl_jira"
	colImplPR         = "impl_pr"
)

var requiredColumns = []string{colQuestion, colExpectedAnswer}

func loadCSV(r io.Reader, policy Policy) (*Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &Result{Scenarios: []Scenario{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parse scenario csv header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("parse scenario csv header: missing column %q", col)
		}
	}

	res := &Result{Scenarios: []Scenario{}}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				line = perr.Line
			}
			if skipErr := res.reject(&MalformedError{Line: line, Field: "row", Reason: err.Error()}, policy); skipErr != nil {
				return nil, skipErr
			}
			continue
		}
		line, _ := cr.FieldPos(0)
		get := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(row) {
				return ""
			}
			return row[i]
		}
		s := Scenario{
			ID:                 strings.TrimSpace(get(colScenario)),
			Question:           get(colQuestion),
			Mode:               get(colMode),
			ExpectedAnswer:     get(colExpectedAnswer),
			ExpectedInterpJira: listfield.Split(get(colInterpJira)),
			ExpectedImplJira:   listfield.Split(get(colImplJira)),
			ExpectedImplPR:     listfield.Split(get(colImplPR)),
		}
		if err := s.validate(line); err != nil {
			if skipErr := res.reject(err, policy); skipErr != nil {
				return nil, skipErr
			}
			continue
		}
		res.Scenarios = append(res.Scenarios, s)
	}
	return res, nil
}

type yamlFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

func loadYAML(data []byte, policy Policy) (*Result, error) {
	var f yamlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse scenario yaml: %w", err)
	}
	res := &Result{Scenarios: []Scenario{}}
	for i, s := range f.Scenarios {
		if err := s.validate(i + 1); err != nil {
			if skipErr := res.reject(err, policy); skipErr != nil {
				return nil, skipErr
			}
			continue
		}
		res.Scenarios = append(res.Scenarios, s)
	}
	return res, nil
}

// reject records err under Skip, or returns it under Abort.
func (r *Result) reject(err error, policy Policy) error {
	if policy == Abort {
		return err
	}
	r.Skipped = append(r.Skipped, err)
	return nil
}
