package artifact

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"regeval/internal/listfield"
)

// Artifact columns, in file order.
const (
	ColRun                = "run"
	ColScenario           = "scenario"
	ColQuestion           = "question"
	ColMode               = "mode"
	ColAnswer             = "answer"
	ColExpectedAnswer     = "expected_answer"
	ColInterpJira         = "interp_jira"
	ColExpectedInterpJira = "expected_interp_jira"
	ColImplJira           = "impl_jira"
	ColExpectedImplJira   = "expected_impl_jira"
	ColImplPR             = "impl_pr"
	ColExpectedImplPR     = "expected_impl_pr"
	ColScore              = "score"
	ColPass               = "pass"
)

// Header is the first row of every artifact.
var Header = []string{
	ColRun, ColScenario, ColQuestion, ColMode, ColAnswer, ColExpectedAnswer,
	ColInterpJira, ColExpectedInterpJira, ColImplJira, ColExpectedImplJira,
	ColImplPR, ColExpectedImplPR, ColScore, ColPass,
}

// Encode writes the header and one row per record. A record that fails
// Validate aborts the encode; nothing after the failing row is written.
func Encode(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := range records {
		row, err := encodeRow(&records[i])
		if err != nil {
			return fmt.Errorf("record %d (run %d, scenario %q): %w", i, records[i].Run, records[i].Scenario, err)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func encodeRow(r *Record) ([]string, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	lists := make(map[string]string, 6)
	for _, f := range r.listFields() {
		cell, err := listfield.Join(*f.items)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.column, err)
		}
		lists[f.column] = cell
	}
	return []string{
		strconv.Itoa(r.Run),
		r.Scenario,
		r.Question,
		r.Mode,
		r.Answer,
		r.ExpectedAnswer,
		lists[ColInterpJira],
		lists[ColExpectedInterpJira],
		lists[ColImplJira],
		lists[ColExpectedImplJira],
		lists[ColImplPR],
		lists[ColExpectedImplPR],
		strconv.FormatFloat(r.Score, 'f', -1, 64),
		formatPass(r.Pass),
	}, nil
}

func formatPass(p bool) string {
	if p {
		return "True"
	}
	return "False"
}

// Decode reads an artifact. Columns are located by header name, so extra
// columns are ignored; every column in Header must be present.
func Decode(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, col := range Header {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("read header: missing column %q", col)
		}
	}

	records := []Record{}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		line, _ := cr.FieldPos(0)
		get := func(col string) string {
			if i := index[col]; i < len(row) {
				return row[i]
			}
			return ""
		}
		rec, err := decodeRow(get)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeRow(get func(string) string) (Record, error) {
	run, err := strconv.Atoi(strings.TrimSpace(get(ColRun)))
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", ColRun, err)
	}
	score, err := strconv.ParseFloat(strings.TrimSpace(get(ColScore)), 64)
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", ColScore, err)
	}
	pass, err := strconv.ParseBool(strings.TrimSpace(get(ColPass)))
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", ColPass, err)
	}
	return Record{
		Run:                run,
		Scenario:           get(ColScenario),
		Question:           get(ColQuestion),
		Mode:               get(ColMode),
		Answer:             get(ColAnswer),
		ExpectedAnswer:     get(ColExpectedAnswer),
		InterpJira:         listfield.Split(get(ColInterpJira)),
		ExpectedInterpJira: listfield.Split(get(ColExpectedInterpJira)),
		ImplJira:           listfield.Split(get(ColImplJira)),
		ExpectedImplJira:   listfield.Split(get(ColExpectedImplJira)),
		ImplPR:             listfield.Split(get(ColImplPR)),
		ExpectedImplPR:     listfield.Split(get(ColExpectedImplPR)),
		Score:              score,
		Pass:               pass,
	}, nil
}
