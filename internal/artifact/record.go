// Package artifact owns the persisted result table: one CSV file per
// regression execution, named by its creation time, rotated into a historic
// directory before the next execution writes its own.
package artifact

import (
	"errors"
	"fmt"
	"math"

	"regeval/internal/listfield"
	"regeval/internal/similarity"
)

// Record is one scored answer: a single scenario in a single run.
type Record struct {
	Run                int      `json:"run"`
	Scenario           string   `json:"scenario"`
	Question           string   `json:"question"`
	Mode               string   `json:"mode"`
	Answer             string   `json:"answer"`
	ExpectedAnswer     string   `json:"expected_answer"`
	InterpJira         []string `json:"interp_jira"`
	ExpectedInterpJira []string `json:"expected_interp_jira"`
	ImplJira           []string `json:"impl_jira"`
	ExpectedImplJira   []string `json:"expected_impl_jira"`
	ImplPR             []string `json:"impl_pr"`
	ExpectedImplPR     []string `json:"expected_impl_pr"`
	Score              float64  `json:"score"`
	Pass               bool     `json:"pass"`
}

// ErrInvalidRecord is wrapped by every Validate failure.
var ErrInvalidRecord = errors.New("invalid record")

// Validate checks the record invariants: a positive run, a score in [0,1]
// whose threshold verdict agrees with Pass, and encodable list fields.
func (r *Record) Validate() error {
	if r.Run < 1 {
		return fmt.Errorf("%w: run %d < 1", ErrInvalidRecord, r.Run)
	}
	if math.IsNaN(r.Score) || r.Score < 0 || r.Score > 1 {
		return fmt.Errorf("%w: score %v outside [0,1]", ErrInvalidRecord, r.Score)
	}
	if r.Pass != similarity.Passed(r.Score) {
		return fmt.Errorf("%w: pass=%t disagrees with score %v", ErrInvalidRecord, r.Pass, r.Score)
	}
	for _, f := range r.listFields() {
		if err := listfield.Validate(*f.items); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidRecord, f.column, err)
		}
	}
	return nil
}

type listColumn struct {
	column string
	items  *[]string
}

func (r *Record) listFields() []listColumn {
	return []listColumn{
		{ColInterpJira, &r.InterpJira},
		{ColExpectedInterpJira, &r.ExpectedInterpJira},
		{ColImplJira, &r.ImplJira},
		{ColExpectedImplJira, &r.ExpectedImplJira},
		{ColImplPR, &r.ImplPR},
		{ColExpectedImplPR, &r.ExpectedImplPR},
	}
}
