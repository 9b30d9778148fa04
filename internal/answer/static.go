package answer

import (
	"context"
	"slices"
)

// Static is a Caller that returns the same payload for every question. It
// stands in for the service in dry runs and tests.
type Static struct {
	Response Response
}

// Placeholder is the payload of a dry run.
func Placeholder() *Static {
	return &Static{Response: Response{
		Answer:     "<DUMMY>",
		InterpJira: []string{"INT-000"},
		ImplJira:   []string{"IMP-000"},
		ImplPR:     []string{"PR-000"},
	}}
}

// Call returns a copy of the configured response.
func (s *Static) Call(ctx context.Context, _, _ string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Response{
		Answer:     s.Response.Answer,
		InterpJira: clone(s.Response.InterpJira),
		ImplJira:   clone(s.Response.ImplJira),
		ImplPR:     clone(s.Response.ImplPR),
	}, nil
}

func clone(in []string) []string {
	if in == nil {
		return []string{}
	}
	return slices.Clone(in)
}
