package format

import (
	"fmt"
	"strings"

	"regeval/internal/history"
	"regeval/internal/regression"
	"regeval/internal/store"
)

// questionWidth caps the question column in result tables.
const questionWidth = 48

// ResultReport renders a finished execution: one row per scenario with its
// mean score and a pass mark per run, then the artifact path and item errors.
func ResultReport(res *regression.Result, m Mode) string {
	var b strings.Builder

	tb := NewTable(m)
	tb.Title(fmt.Sprintf("Execution %s", res.ExecutionID))
	header := []string{"Scenario", "Question", "Mean", "Band"}
	for run := 1; run <= res.Runs; run++ {
		header = append(header, fmt.Sprintf("Run %d", run))
	}
	tb.Header(header...)

	type cell struct {
		question string
		marks    map[int]string
	}
	cells := map[string]*cell{}
	for _, r := range res.Records {
		c, ok := cells[r.Scenario]
		if !ok {
			c = &cell{question: r.Question, marks: map[int]string{}}
			cells[r.Scenario] = c
		}
		c.marks[r.Run] = BoolMark(r.Pass) + " " + FmtScore(r.Score)
	}
	for _, s := range history.Summarize(res.Records) {
		c := cells[s.Scenario]
		row := []any{s.Scenario, Truncate(c.question, questionWidth), FmtScore(s.MeanScore), string(history.BandOf(s.MeanScore))}
		for run := 1; run <= res.Runs; run++ {
			mark, ok := c.marks[run]
			if !ok {
				mark = "-"
			}
			row = append(row, mark)
		}
		tb.Row(row...)
	}
	footer := []any{"TOTAL", fmt.Sprintf("%d/%d passed", res.Passed(), len(res.Records)), "", ""}
	for run := 1; run <= res.Runs; run++ {
		footer = append(footer, "")
	}
	tb.Footer(footer...)
	tb.Columns(ColumnConfig{Number: 3, Align: AlignRight})
	b.WriteString(tb.String())
	b.WriteString("\n")

	fmt.Fprintf(&b, "\nArtifact: %s\n", res.Path)
	if len(res.Rotated) > 0 {
		fmt.Fprintf(&b, "Rotated %d previous artifact(s) to history\n", len(res.Rotated))
	}
	if len(res.Errors) > 0 {
		fmt.Fprintf(&b, "\n%d item error(s):\n", len(res.Errors))
		for _, err := range res.Errors {
			fmt.Fprintf(&b, "  - %v\n", err)
		}
	}
	return b.String()
}

// RunTable renders per-run trends of a corpus.
func RunTable(runs []history.RunStats, m Mode) string {
	tb := NewTable(m)
	tb.Title("Historic score by run")
	tb.Header("Run", "Records", "Passed", "Mean score", "Pass ratio")
	for _, r := range runs {
		tb.Row(r.Run, r.Records, r.Passed, FmtScore(r.MeanScore), FmtPercent(r.PassRatio))
	}
	tb.Columns(
		ColumnConfig{Number: 4, Align: AlignRight},
		ColumnConfig{Number: 5, Align: AlignRight},
	)
	return tb.String()
}

// ScenarioTable renders per-scenario quadrants of a corpus.
func ScenarioTable(scenarios []history.ScenarioStats, m Mode) string {
	tb := NewTable(m)
	tb.Title("Scenario quadrants")
	tb.Header("Scenario", "Records", "Mean score", "Pass rate", "Quadrant")
	for _, s := range scenarios {
		tb.Row(s.Scenario, s.Records, FmtScore(s.MeanScore), FmtPercent(s.PassRate), string(s.Quadrant))
	}
	tb.Columns(
		ColumnConfig{Number: 3, Align: AlignRight},
		ColumnConfig{Number: 4, Align: AlignRight},
	)
	return tb.String()
}

// ExecutionTable renders indexed executions, oldest first.
func ExecutionTable(execs []store.Execution, m Mode) string {
	tb := NewTable(m)
	tb.Title("Indexed executions")
	tb.Header("Started", "Artifact", "Records", "Passed", "Errors", "Mean score", "Took")
	for _, e := range execs {
		tb.Row(e.StartedAt.Local().Format("2006-01-02 15:04"), e.Artifact, e.Records, e.Passed, e.Errors,
			FmtScore(e.MeanScore), FmtDuration(e.FinishedAt.Sub(e.StartedAt)))
	}
	return tb.String()
}

// TrendTable renders one scenario across indexed executions.
func TrendTable(scenario string, trend []store.TrendPoint, m Mode) string {
	tb := NewTable(m)
	tb.Title(fmt.Sprintf("Trend of scenario %s", scenario))
	tb.Header("Started", "Execution", "Records", "Mean score", "Pass rate", "Band")
	for _, p := range trend {
		tb.Row(p.StartedAt.Local().Format("2006-01-02 15:04"), p.ExecutionID, p.Records,
			FmtScore(p.MeanScore), FmtPercent(p.PassRate), string(history.BandOf(p.MeanScore)))
	}
	return tb.String()
}
