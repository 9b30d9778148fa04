// Package scenario loads regression scenarios: a question, the mode to ask it
// in, and the expected answer and identifier lists.
package scenario

import (
	"errors"
	"fmt"

	"regeval/internal/listfield"
)

// Scenario is one test case. It is never mutated after loading.
type Scenario struct {
	ID                 string   `json:"scenario" yaml:"scenario"`
	Question           string   `json:"question" yaml:"question"`
	Mode               string   `json:"mode" yaml:"mode"`
	ExpectedAnswer     string   `json:"expected_answer" yaml:"expected_answer"`
	ExpectedInterpJira []string `json:"interp_jira" yaml:"interp_jira"`
	ExpectedImplJira   []string `json:"impl_jira" yaml:"impl_jira"`
	ExpectedImplPR     []string `json:"impl_pr" yaml:"impl_pr"`
}

// ErrMalformed is matched by every *MalformedError.
var ErrMalformed = errors.New("malformed scenario")

// MalformedError describes a scenario row that failed required-field parsing.
// Line is the 1-based source line for CSV, or the 1-based entry index for YAML.
type MalformedError struct {
	Line   int
	Field  string
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("scenario at line %d: %s: %s", e.Line, e.Field, e.Reason)
}

func (e *MalformedError) Is(target error) bool { return target == ErrMalformed }

// Policy decides what a malformed row does to the whole load.
type Policy string

const (
	// Skip drops malformed rows and reports them alongside the loaded scenarios.
	Skip Policy = "skip"
	// Abort fails the load on the first malformed row.
	Abort Policy = "abort"
)

// ParsePolicy validates a policy name. Empty means Skip.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", Skip:
		return Skip, nil
	case Abort:
		return Abort, nil
	default:
		return "", fmt.Errorf("unknown malformed-scenario policy %q (available: skip, abort)", s)
	}
}

// validate checks required fields and list encodability, and fills defaults.
func (s *Scenario) validate(line int) error {
	if s.Question == "" {
		return &MalformedError{Line: line, Field: "question", Reason: "required"}
	}
	if s.ExpectedAnswer == "" {
		return &MalformedError{Line: line, Field: "expected_answer", Reason: "required"}
	}
	lists := []struct {
		field string
		items *[]string
	}{
		{"interp_jira", &s.ExpectedInterpJira},
		{"impl_jira", &s.ExpectedImplJira},
		{"impl_pr", &s.ExpectedImplPR},
	}
	for _, l := range lists {
		*l.items = listfield.Normalize(*l.items)
		if err := listfield.Validate(*l.items); err != nil {
			return &MalformedError{Line: line, Field: l.field, Reason: err.Error()}
		}
	}
	if s.ID == "" {
		s.ID = fmt.Sprintf("%d", line)
	}
	return nil
}
